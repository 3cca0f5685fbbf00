package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/movewise/opportunity-cli/internal/dataset"
)

var convertOut string

var convertCmd = &cobra.Command{
	Use:   "convert <workbook.xlsx>",
	Short: "Convert a metric workbook to the CSV form the cache ingests",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := dataset.ReadXLSXTable(args[0])
		if err != nil {
			return err
		}
		zap.L().Info("parsed workbook",
			zap.String("path", args[0]),
			zap.Int("rows", len(table.Rows)),
			zap.Strings("columns", table.Columns),
		)

		csvData := table.WriteCSV()
		if convertOut == "" || convertOut == "-" {
			_, err = os.Stdout.WriteString(csvData)
			return err
		}
		if err := os.WriteFile(convertOut, []byte(csvData), 0o644); err != nil {
			return eris.Wrapf(err, "write %s", convertOut)
		}
		return nil
	},
}

func init() {
	convertCmd.Flags().StringVar(&convertOut, "out", "-", "output CSV path, - for stdout")
	rootCmd.AddCommand(convertCmd)
}
