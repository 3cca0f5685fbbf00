package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"serve", "resolve", "preload", "tracts", "convert"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "opportunity-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestResolveCommand_Flags(t *testing.T) {
	for _, name := range []string{"address", "lon", "lat", "zoom", "id-column", "value-column", "bands"} {
		require.NotNil(t, resolveCmd.Flags().Lookup(name), "resolve command should have --%s flag", name)
	}
	assert.Equal(t, "GEOID", resolveCmd.Flags().Lookup("id-column").DefValue)
}

func TestTractsCommand_Flags(t *testing.T) {
	flag := tractsCmd.Flags().Lookup("year")
	require.NotNil(t, flag)
	assert.Equal(t, "2024", flag.DefValue)
	assert.Equal(t, "29", tractsCmd.Flags().Lookup("state").DefValue)
}
