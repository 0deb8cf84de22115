package metas

import (
	"math"
	"strconv"
	"strings"
)

// PartialSum maps an input field to its running total for one court.
type PartialSum map[string]float64

// NewPartialSum returns a sum with every field present at zero.
func NewPartialSum(fields []string) PartialSum {
	s := make(PartialSum, len(fields))
	for _, f := range fields {
		s[f] = 0
	}
	return s
}

// Get returns the total for field; unseen fields are zero.
func (s PartialSum) Get(field string) float64 {
	return s[field]
}

// Merge adds other into s field by field.
func (s PartialSum) Merge(other PartialSum) {
	for f, v := range other {
		s[f] += v
	}
}

// Clone returns an independent copy.
func (s PartialSum) Clone() PartialSum {
	c := make(PartialSum, len(s))
	for f, v := range s {
		c[f] = v
	}
	return c
}

// Coerce converts a raw cell to a number. Anything that isn't a finite number
// contributes zero. A lone comma with no dot is read as a decimal separator,
// unless exactly three digits follow it: "1,000" is a grouped count, not a
// number, and counts as zero.
func Coerce(s string) float64 {
	s = strings.TrimSpace(strings.TrimPrefix(s, "\ufeff"))
	if s == "" {
		return 0
	}
	if whole, frac, ok := strings.Cut(s, ","); ok {
		if strings.ContainsAny(frac, ",.") || strings.Contains(whole, ".") || isThreeDigits(frac) {
			return 0
		}
		s = whole + "." + frac
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func isThreeDigits(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
