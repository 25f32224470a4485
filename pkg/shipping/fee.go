// Package shipping maps package dimensions to domestic shipping-fee tiers.
package shipping

import "math"

// FeeUnavailable is returned when no tier covers the given dimensions.
const FeeUnavailable = -1

// feeBand is one row of the shipping rate table: the fee applies when the
// dimension total is at or below Limit.
type feeBand struct {
	Limit float64
	Fee   int
}

// Rate table for standard domestic shipment, in centimeters and yen.
// The bands are ordered and the first match wins.
var feeBands = []feeBand{
	{60, 580},
	{80, 670},
	{100, 780},
	{120, 900},
	{140, 1050},
	{160, 1300},
	{170, 2000},
	{180, 2500},
	{200, 3000},
}

// Fee returns the shipping fee in yen for a package with the given height,
// length and width in centimeters. The second return value is false when no
// tier applies (oversize or invalid dimensions).
//
// Thin packages get a special rate: height at most 3 cm with a dimension
// total strictly under 60 cm ships as compact mail for 290 yen. This band
// overlaps the generic <=60 band and pre-empts it only when both hold.
func Fee(height, length, width float64) (int, bool) {
	if !valid(height) || !valid(length) || !valid(width) {
		return FeeUnavailable, false
	}

	total := height + length + width

	if height <= 3 && total < 60 {
		return 290, true
	}
	for _, band := range feeBands {
		if total <= band.Limit {
			return band.Fee, true
		}
	}
	return FeeUnavailable, false
}

func valid(dim float64) bool {
	return !math.IsNaN(dim) && !math.IsInf(dim, 0) && dim >= 0
}
