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

// Package stat parses human formatted numeric display strings such as
// "$5,000,000" or "24.1%" and formats interpolated values back into the
// same shape.
package stat

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	// prefix (shortest), numeric segment, everything else.
	statPattern    = regexp.MustCompile(`(?s)^([^0-9]*?)([0-9,]+(?:\.[0-9]+)?)(.*)$`)
	plainPattern   = regexp.MustCompile(`^[0-9]+(?:\.[0-9]+)?$`)
	groupedPattern = regexp.MustCompile(`^[0-9]{1,3}(?:,[0-9]{3})+(?:\.[0-9]+)?$`)
)

// Parsed is a stat string split into its animatable parts.
type Parsed struct {
	Prefix   string  `json:"prefix"`
	Number   float64 `json:"number"`
	Suffix   string  `json:"suffix"`
	Decimals int     `json:"decimals"`
	Group    bool    `json:"group"`
}

// Parse splits raw into prefix, number and suffix. The second return value
// is false when raw is not a single animatable number: ranges ("30-36
// months"), labels without digits, repeated decimal points and
// inconsistent thousands grouping are all rejected.
func Parse(raw string) (Parsed, bool) {
	m := statPattern.FindStringSubmatch(raw)
	if m == nil {
		return Parsed{}, false
	}
	prefix, num, suffix := m[1], m[2], m[3]

	if hasDash(num) || hasDash(suffix) {
		return Parsed{}, false
	}
	// "1.2.3" leaves ".3" behind, "1,234.5,6" leaves ",6".
	if len(suffix) >= 2 && (suffix[0] == '.' || suffix[0] == ',') && isDigit(suffix[1]) {
		return Parsed{}, false
	}

	group := strings.Contains(num, ",")
	if group {
		if !groupedPattern.MatchString(num) {
			return Parsed{}, false
		}
	} else if !plainPattern.MatchString(num) {
		return Parsed{}, false
	}

	intPart, frac, _ := strings.Cut(num, ".")
	if len(intPart) > 1 && intPart[0] == '0' {
		return Parsed{}, false
	}

	value, err := strconv.ParseFloat(strings.ReplaceAll(num, ",", ""), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return Parsed{}, false
	}

	p := Parsed{
		Prefix:   prefix,
		Number:   value,
		Suffix:   suffix,
		Decimals: len(frac),
		Group:    group,
	}
	// Digits beyond float64 precision cannot be reproduced.
	if p.String() != raw {
		return Parsed{}, false
	}
	return p, true
}

// Render formats value with the precision and grouping of p, wrapped in
// p's prefix and suffix.
func (p Parsed) Render(value float64) string {
	return p.Prefix + Format(value, p.Decimals, p.Group) + p.Suffix
}

// String reproduces the source string.
func (p Parsed) String() string {
	return p.Render(p.Number)
}

// Zero is what a counter shows before it starts.
func (p Parsed) Zero() string {
	return p.Prefix + "0" + p.Suffix
}

// Format renders value with a fixed number of decimals, optionally grouping
// the integer part by thousands with commas. Rounding matches JavaScript's
// Number.prototype.toFixed: the exact binary value is rounded, and exact
// ties go away from zero. The output does not depend on the process locale.
func Format(value float64, decimals int, group bool) string {
	if decimals < 0 {
		decimals = 0
	}
	s := toFixed(value, decimals)
	if !group {
		return s
	}

	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")
	out := sign + groupThousands(intPart)
	if hasFrac {
		out += "." + frac
	}
	return out
}

func toFixed(value float64, decimals int) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return strconv.FormatFloat(value, 'f', -1, 64)
	}
	sign := ""
	if value < 0 {
		sign, value = "-", -value
	}
	// A float64 with binary exponent e has at most 53-e fractional decimal
	// digits, so this precision prints the value exactly.
	prec := decimals + 1
	if value != 0 {
		if _, e := math.Frexp(value); 53-e > prec {
			prec = 53 - e
		}
	}
	exact := strconv.FormatFloat(value, 'f', prec, 64)
	intPart, frac, _ := strings.Cut(exact, ".")
	digits := []byte(intPart + frac[:decimals])
	if frac[decimals] >= '5' {
		digits = incrementDigits(digits)
	}
	cut := len(digits) - decimals
	if decimals == 0 {
		return sign + string(digits)
	}
	return sign + string(digits[:cut]) + "." + string(digits[cut:])
}

// incrementDigits adds one to a decimal digit string.
func incrementDigits(digits []byte) []byte {
	for i := len(digits) - 1; i >= 0; i-- {
		if digits[i] < '9' {
			digits[i]++
			return digits
		}
		digits[i] = '0'
	}
	return append([]byte{'1'}, digits...)
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		b.WriteByte(',')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// hasDash reports whether s contains an ASCII hyphen or one of the unicode
// dashes authors use for ranges.
func hasDash(s string) bool {
	return strings.ContainsAny(s, "-‐‑‒–—―")
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
