// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package stat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input    string
		expected Parsed
	}{
		{"$5,000,000", Parsed{Prefix: "$", Number: 5000000, Group: true}},
		{"24.1%", Parsed{Number: 24.1, Suffix: "%", Decimals: 1}},
		{"1.9x", Parsed{Number: 1.9, Suffix: "x", Decimals: 1}},
		{"$6.3M", Parsed{Prefix: "$", Number: 6.3, Suffix: "M", Decimals: 1}},
		{"85%+", Parsed{Number: 85, Suffix: "%+"}},
		{"$2,800+", Parsed{Prefix: "$", Number: 2800, Suffix: "+", Group: true}},
		{"5.2 g/t", Parsed{Number: 5.2, Suffix: " g/t", Decimals: 1}},
		{"18 mo", Parsed{Number: 18, Suffix: " mo"}},
		{"($75,000,000)", Parsed{Prefix: "(", Number: 75000000, Suffix: ")", Group: true}},
		{"0.50", Parsed{Number: 0.5, Decimals: 2}},
		{"4.5:1", Parsed{Number: 4.5, Suffix: ":1", Decimals: 1}},
		{"-3%", Parsed{Prefix: "-", Number: 3, Suffix: "%"}},
		{"Q2 2026", Parsed{Prefix: "Q", Number: 2, Suffix: " 2026"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := Parse(tt.input)
			require.True(t, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseRejects(t *testing.T) {
	for _, input := range []string{
		"",
		"TBD",
		"30-36 months",
		"18–36 months",
		"2029—2042",
		"1.2.3",
		"1,234.5,6",
		"1,00,000",
		"5,0000",
		",5",
		"5,",
		"007",
		"$",
		"12345678901234567890",
		"9,007,199,254,740,993",
	} {
		t.Run(input, func(t *testing.T) {
			_, ok := Parse(input)
			assert.False(t, ok, "%q should not be parseable", input)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	for _, input := range []string{
		"$5,000,000", "24.1%", "1.9x", "$6.3M", "85%+", "$2,800+", "5.2 g/t",
		"18 mo", "52%", "4.2x", "$185M", "$2.69B", "$1,535,000", "94.5%",
		"3,500 tpd", "$1,000,000", "0", "0.05%", "120,000 oz Au",
	} {
		t.Run(input, func(t *testing.T) {
			p, ok := Parse(input)
			require.True(t, ok)
			assert.Equal(t, input, p.String())
			assert.Equal(t, input, p.Prefix+Format(p.Number, p.Decimals, p.Group)+p.Suffix)
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		value    float64
		decimals int
		group    bool
		expected string
	}{
		{2431018, 0, true, "2,431,018"},
		{2431018.4, 0, true, "2,431,018"},
		{999, 0, true, "999"},
		{1000, 0, true, "1,000"},
		{123456.789, 2, true, "123,456.79"},
		{123456.789, 2, false, "123456.79"},
		{24.1, 1, false, "24.1"},
		{0, 1, false, "0.0"},
		{-0.0001, 2, false, "-0.00"},
		{-0.0, 0, false, "0"},
		{-1234.5, 1, true, "-1,234.5"},
		{7, -1, false, "7"},
		// Exact ties round away from zero.
		{2.5, 0, false, "3"},
		{0.5, 0, false, "1"},
		{1.25, 1, false, "1.3"},
		{1.125, 2, false, "1.13"},
		{2500.5, 0, true, "2,501"},
		{999.5, 0, true, "1,000"},
		{-2.5, 0, false, "-3"},
		// Not ties once the binary value is expanded.
		{1.005, 2, false, "1.00"},
		{2.675, 2, false, "2.67"},
		{1.45, 1, false, "1.4"},
		{9007199254740992, 0, true, "9,007,199,254,740,992"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, Format(tt.value, tt.decimals, tt.group), "Format(%v, %d, %v)", tt.value, tt.decimals, tt.group)
	}
}

func TestRenderIntermediate(t *testing.T) {
	p, ok := Parse("$5,000,000")
	require.True(t, ok)
	assert.Equal(t, "$2,431,018", p.Render(2431018.2))
	assert.Equal(t, "$0", p.Zero())

	p, ok = Parse("24.1%")
	require.True(t, ok)
	assert.Equal(t, "12.0%", p.Render(12.01))
	assert.Equal(t, "0%", p.Zero())
}
