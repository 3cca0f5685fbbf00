package enrich

import (
	"fmt"
	"strconv"
	"strings"
)

// GEOID layout for census tracts: 2-digit state, 3-digit county, 6-digit
// tract, 11 characters total.
const (
	geoidStateEnd  = 2
	geoidCountyEnd = 5
	geoidLen       = 11
)

// CanonicalTractID derives a tract identifier from a feature property bag.
// A structured STATEFP/COUNTYFP/TRACTCE triple wins when all three parts
// are present; otherwise the combined GEOID (or GEOID10/GEOID20 vintage
// keys) is used as-is.
func CanonicalTractID(props map[string]any) string {
	state := propString(props, "STATEFP", "STATEFP10", "STATEFP20", "state")
	county := propString(props, "COUNTYFP", "COUNTYFP10", "COUNTYFP20", "county")
	tract := propString(props, "TRACTCE", "TRACTCE10", "TRACTCE20", "tract")
	if state != "" && county != "" && tract != "" {
		return state + county + tract
	}

	if geoid := propString(props, "GEOID", "GEOID10", "GEOID20", "geoid"); geoid != "" {
		return geoid
	}
	return ""
}

// SplitGEOID breaks a combined identifier into its state, county, and tract
// codes at the fixed offsets. Short identifiers are zero-padded first.
func SplitGEOID(id string) (state, county, tract string) {
	id = PadTractID(id)
	if len(id) < geoidLen {
		return "", "", ""
	}
	return id[:geoidStateEnd], id[geoidStateEnd:geoidCountyEnd], id[geoidCountyEnd:geoidLen]
}

// PadTractID zero-pads a numeric identifier to the canonical 11 digits.
// Non-numeric or already-long identifiers are returned unchanged.
func PadTractID(id string) string {
	if len(id) >= geoidLen || !isDigits(id) {
		return id
	}
	return fmt.Sprintf("%0*s", geoidLen, id)
}

// Variants returns the lookup forms for an identifier in match order:
// as-is, zero-padded to 11 digits, and integer-normalized with leading
// zeros stripped. Duplicates are elided.
func Variants(id string) []string {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}

	out := []string{id}
	if padded := PadTractID(id); padded != id {
		out = append(out, padded)
	}
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		if normalized := strconv.FormatInt(n, 10); normalized != id {
			out = append(out, normalized)
		}
	}
	return out
}

func propString(props map[string]any, keys ...string) string {
	for _, key := range keys {
		v, ok := props[key]
		if !ok {
			continue
		}
		switch s := v.(type) {
		case string:
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				return trimmed
			}
		case float64:
			return strconv.FormatInt(int64(s), 10)
		}
	}
	return ""
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
