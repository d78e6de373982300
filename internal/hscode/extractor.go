// Package hscode extracts and normalizes Harmonized System codes found in free text.
package hscode

import (
	"regexp"
	"strings"
)

// CodeLength is the number of digits in a normalized HS subheading.
const CodeLength = 6

// codePattern matches dddd.dd.dd, dddd.dd and dddddd. The longest dotted form
// comes first so a tariff line is not cut short at its first separator.
var codePattern = regexp.MustCompile(`\b\d{4}\.\d{2}\.\d{2}\b|\b\d{4}\.\d{2}\b|\b\d{6}\b`)

// Extract returns the unique 6-digit codes mentioned in text, in order of
// first appearance. Any code-shaped numeral is accepted; nothing is checked
// against a registry here.
func Extract(text string) []string {
	codes := []string{}
	if text == "" {
		return codes
	}

	seen := make(map[string]struct{})
	for _, match := range codePattern.FindAllString(text, -1) {
		code := strip(match)
		if len(code) > CodeLength {
			code = code[:CodeLength]
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}

	return codes
}

// Normalize turns a stored or typed code such as "8471.30", "'847130" or
// "8471.30.01" into its 6-digit form. A five-digit code is taken to have lost
// the leading zero of chapters 01 to 09, as spreadsheets do with numeric cells.
// It reports false when fewer digits remain or any character is not a digit.
func Normalize(code string) (string, bool) {
	code = strip(strings.Trim(strings.TrimSpace(code), "'\""))
	if len(code) == CodeLength-1 {
		code = "0" + code
	}
	if len(code) < CodeLength {
		return "", false
	}
	code = code[:CodeLength]
	for _, r := range code {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return code, true
}

func strip(s string) string {
	return strings.NewReplacer(".", "", " ", "").Replace(s)
}
