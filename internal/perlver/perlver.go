// Package perlver compares Perl module version strings the way perl's
// version.pm numifies them.
//
// A decimal version such as "1.62" is a number: its fraction is read in
// groups of three digits, so "1.62" is 1.620 and ranks above "1.4602"
// (1.460200). A dotted version ("v1.2.3", "1.2.3") is a tuple of integers,
// and "1.2.3" equals the decimal "1.002003".
package perlver

import (
	"regexp"
	"strconv"
	"strings"
)

// EpochThreshold is the version below which a requirement is qualified with
// epoch 0 rather than epoch 1.
const EpochThreshold = "5.8"

// Epoch returns the RPM epoch prefix ("0:" or "1:") for a version string.
// The comparison is lexical, matching how the base runtime package history
// assigned epochs.
func Epoch(version string) string {
	if version < EpochThreshold {
		return "0:"
	}
	return "1:"
}

// Leading numeric part; suffixes such as "-TRIAL" are ignored.
var numericRe = regexp.MustCompile(`^v?[0-9_]+(?:\.[0-9_]*)*`)

// Satisfies reports whether the bundled version have meets the minimum
// version want. An unknown ("undef") bundled version satisfies anything.
func Satisfies(have, want string) bool {
	if strings.TrimSpace(have) == "undef" {
		return true
	}
	return Compare(have, want) >= 0
}

// Compare returns -1, 0 or 1 as a is lower than, equal to or higher than b.
func Compare(a, b string) int {
	x, y := parts(a), parts(b)
	for i := 0; i < len(x) || i < len(y); i++ {
		var p, q int
		if i < len(x) {
			p = x[i]
		}
		if i < len(y) {
			q = y[i]
		}
		switch {
		case p < q:
			return -1
		case p > q:
			return 1
		}
	}
	return 0
}

// Max returns the higher of two versions, preferring a on a tie.
func Max(a, b string) string {
	if Compare(b, a) > 0 {
		return b
	}
	return a
}

// parts returns the integer tuple of a version. Trailing zeros do not
// matter to Compare.
func parts(v string) []int {
	v = numericRe.FindString(strings.TrimSpace(v))
	if v == "" {
		return nil
	}

	if dotted := strings.HasPrefix(v, "v") || strings.Count(v, ".") > 1; dotted {
		// Underscores in dotted versions separate a development component.
		fields := strings.FieldsFunc(strings.TrimPrefix(v, "v"), func(r rune) bool {
			return r == '.' || r == '_'
		})
		out := make([]int, len(fields))
		for i, f := range fields {
			out[i], _ = strconv.Atoi(f)
		}
		return out
	}

	// Decimal: 1.23_01 numifies as 1.2301.
	whole, frac, _ := strings.Cut(strings.ReplaceAll(v, "_", ""), ".")
	n, _ := strconv.Atoi(whole)
	out := []int{n}
	if pad := len(frac) % 3; pad != 0 {
		frac += strings.Repeat("0", 3-pad)
	}
	for ; frac != ""; frac = frac[3:] {
		g, _ := strconv.Atoi(frac[:3])
		out = append(out, g)
	}
	return out
}
