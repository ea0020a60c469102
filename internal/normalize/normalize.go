// Package normalize maps raw land-cover class codes to canonical codes.
//
// Input codes arrive from shapefile attributes and priority tables in mixed
// shapes: integers, floats with a spurious fractional part, padded strings.
// Everything is coerced to a canonical integer-string form before the
// many-to-one parent rules are applied.
package normalize

import (
	"strconv"
	"strings"
)

// UnknownCode is the sentinel assigned to features whose class code is
// missing or unparseable. It is never merged away silently; occurrences are
// surfaced through the QA counters.
const UnknownCode = "999"

// parentCodes collapses sub-code variants to their parent class.
var parentCodes = map[string]string{
	"1211": "121",
	"1212": "121",
}

// Code returns the canonical form of a raw class code. Codes absent from the
// parent table pass through unchanged; blank input maps to UnknownCode.
func Code(raw string) string {
	s := Coerce(raw)
	if s == "" {
		return UnknownCode
	}
	if parent, ok := parentCodes[s]; ok {
		return parent
	}
	return s
}

// Coerce converts a raw attribute value to a comparable code string without
// applying parent rules. Numeric values lose any integral fractional part
// ("121.0" becomes "121"); blank or malformed input yields "".
func Coerce(raw string) string {
	s := strings.TrimRight(raw, "\x00")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if f == float64(int64(f)) {
			return strconv.FormatInt(int64(f), 10)
		}
	}
	return s
}
