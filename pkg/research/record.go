package research

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/sedori-labs/resale-research/pkg/pricing"
)

// RankUnknown is the sales-rank sentinel for items with no rank data.
const RankUnknown = 999999

// ItemDetailRecord is the externally visible result for one identifier.
// It is immutable once appended to a run's output.
//
// Rank and Price carry the raw values for in-process sorting and must be
// excluded from any externally persisted export; the display fields are the
// exported representation.
type ItemDetailRecord struct {
	ASIN     string
	Title    string
	Brand    string
	Category string
	JAN      string

	Rank        int
	RankDisplay string

	PackageSize     string
	ShippingDisplay string

	Price            decimal.Decimal
	PriceDisplay     string
	SellerLabel      string
	Tier             pricing.SourceTier
	PointRateDisplay string
	FeeRateDisplay   string
}

// formatYen renders an amount as a display price like "¥1,980".
func formatYen(amount decimal.Decimal) string {
	digits := amount.Round(0).IntPart()

	s := strconv.FormatInt(digits, 10)
	neg := false
	if s[0] == '-' {
		neg = true
		s = s[1:]
	}

	var grouped []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			grouped = append(grouped, ',')
		}
		grouped = append(grouped, c)
	}

	if neg {
		return "-¥" + string(grouped)
	}
	return "¥" + string(grouped)
}

// formatPercent renders a fraction as a display rate like "4.8%".
func formatPercent(fraction decimal.Decimal) string {
	pct, _ := fraction.Mul(decimal.NewFromInt(100)).Float64()
	return fmt.Sprintf("%.1f%%", pct)
}

// formatRank renders a sales rank like "1234位"; the unknown sentinel
// renders empty.
func formatRank(rank int) string {
	if rank == RankUnknown {
		return ""
	}
	return fmt.Sprintf("%d位", rank)
}

// formatDimension renders one package dimension without trailing zeros.
func formatDimension(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
