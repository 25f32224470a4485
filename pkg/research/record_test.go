package research

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFormatYen(t *testing.T) {
	tests := []struct {
		amount int64
		want   string
	}{
		{0, "¥0"},
		{5, "¥5"},
		{290, "¥290"},
		{1050, "¥1,050"},
		{123456, "¥123,456"},
		{1234567, "¥1,234,567"},
	}

	for _, tt := range tests {
		if got := formatYen(decimal.NewFromInt(tt.amount)); got != tt.want {
			t.Errorf("formatYen(%d) = %q, want %q", tt.amount, got, tt.want)
		}
	}
}

func TestFormatYen_Rounds(t *testing.T) {
	if got := formatYen(decimal.NewFromFloat(1049.6)); got != "¥1,050" {
		t.Errorf("formatYen(1049.6) = %q, want ¥1,050", got)
	}
}

func TestFormatPercent(t *testing.T) {
	// 50 points on a 1050 reconciled price is about 4.8%.
	fraction := decimal.NewFromInt(50).Div(decimal.NewFromInt(1050))
	if got := formatPercent(fraction); got != "4.8%" {
		t.Errorf("formatPercent(50/1050) = %q, want 4.8%%", got)
	}
	if got := formatPercent(decimal.NewFromFloat(0.1)); got != "10.0%" {
		t.Errorf("formatPercent(0.1) = %q, want 10.0%%", got)
	}
}

func TestFormatRank(t *testing.T) {
	if got := formatRank(1234); got != "1234位" {
		t.Errorf("formatRank(1234) = %q", got)
	}
	if got := formatRank(RankUnknown); got != "" {
		t.Errorf("formatRank(RankUnknown) = %q, want empty", got)
	}
}

func TestFormatDimension(t *testing.T) {
	tests := []struct {
		value float64
		want  string
	}{
		{2, "2"},
		{2.5, "2.5"},
		{30.25, "30.25"},
	}
	for _, tt := range tests {
		if got := formatDimension(tt.value); got != tt.want {
			t.Errorf("formatDimension(%v) = %q, want %q", tt.value, got, tt.want)
		}
	}
}
