package hscode

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "empty text",
			text: "",
			want: []string{},
		},
		{
			name: "no codes",
			text: "I am not sure how to classify this product.",
			want: []string{},
		},
		{
			name: "dotted subheading",
			text: "The HS code is 8471.30 for portable machines.",
			want: []string{"847130"},
		},
		{
			name: "plain six digits",
			text: "HS code: 847130",
			want: []string{"847130"},
		},
		{
			name: "tariff line truncated to six digits",
			text: "Classify under 7323.93.00 (stainless steel table and kitchen ware).",
			want: []string{"732393"},
		},
		{
			name: "duplicates removed preserving first occurrence",
			text: "7323.93 is likely. Alternatively 9617.00. Final answer: 732393.",
			want: []string{"732393", "961700"},
		},
		{
			name: "numbers of other lengths ignored",
			text: "Founded in 1999, model 12345, serial 1234567.",
			want: []string{},
		},
		{
			name: "code in markdown emphasis",
			text: "**HS Code: 8501.10**\n\nJustification: small motors.",
			want: []string{"850110"},
		},
		{
			name: "multiple distinct codes in order",
			text: "Options: 3924.10, 7323.93, 7615.10",
			want: []string{"392410", "732393", "761510"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.text))
		})
	}
}

func TestExtract_DottedAndPlainMerge(t *testing.T) {
	first := Extract("The most specific code is 8471.30.")
	second := Extract("847130 - portable automatic data processing machines")

	require.Equal(t, []string{"847130"}, first)
	require.Equal(t, []string{"847130"}, second)
	assert.Equal(t, []string{"847130"}, Extract("8471.30 and also 847130"))
}

func TestExtract_Properties(t *testing.T) {
	inputs := []string{
		"",
		"8471.30",
		"8471.30.01 8471.30 847130 847130",
		"prices: 100000, 999999.99, 1234.56.78",
		"no digits at all",
		"0101.21 live horses, pure-bred breeding animals",
	}
	sixDigits := regexp.MustCompile(`^\d{6}$`)

	for _, in := range inputs {
		got := Extract(in)
		again := Extract(in)
		assert.Equal(t, got, again, "extraction must be deterministic for %q", in)

		seen := map[string]bool{}
		for _, code := range got {
			assert.Regexp(t, sixDigits, code)
			assert.False(t, seen[code], "duplicate code %s for %q", code, in)
			seen[code] = true
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{in: "8471.30", want: "847130", wantOK: true},
		{in: "847130", want: "847130", wantOK: true},
		{in: "'847130", want: "847130", wantOK: true},
		{in: " 8471.30.01 ", want: "847130", wantOK: true},
		{in: "010121", want: "010121", wantOK: true},
		{in: "10121", want: "010121", wantOK: true},
		{in: "'10121", want: "010121", wantOK: true},
		{in: " 8501 10 ", want: "850110", wantOK: true},
		{in: "85O110", wantOK: false},
		{in: "8471", wantOK: false},
		{in: "No HS codes found", wantOK: false},
		{in: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := Normalize(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
