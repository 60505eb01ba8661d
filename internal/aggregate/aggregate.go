package aggregate

import (
	"time"

	"github.com/shopspring/decimal"

	"metalrates/internal/market"
	"metalrates/internal/provider"
)

// CityRate is one row of the city comparison table. Prices are per gram.
type CityRate struct {
	City      market.City     `json:"city"`
	Currency  market.Currency `json:"currency"`
	Gold24k   float64         `json:"gold_24k"`
	Gold22k   float64         `json:"gold_22k"`
	Silver    float64         `json:"silver"`
	UpdatedAt int64           `json:"updated_at"`
	Source    string          `json:"source"`
}

// CityRateFrom builds a row from a gold and a silver quote for the same city.
// Source is the gold quote's source; the two may differ when only one fell
// back.
func CityRateFrom(city market.City, gold, silver provider.Quote) CityRate {
	return CityRate{
		City:      city,
		Currency:  gold.Currency,
		Gold24k:   round(gold.Gram24k, 2),
		Gold22k:   round(gold.Gram22k, 2),
		Silver:    round(market.PerGram(silver.Price), 2),
		UpdatedAt: max(gold.Timestamp, silver.Timestamp),
		Source:    gold.Source,
	}
}

// ClosingRate is one day of the closing-rates table in display units.
type ClosingRate struct {
	Date        string  `json:"date"`
	GoldPer10g  float64 `json:"gold_24k_10g"`
	SilverPerKg float64 `json:"silver_kg"`
}

// ClosingRates zips two oldest-first daily series by index and returns the
// newest n rows, newest first. A missing silver point is reported as 0.
func ClosingRates(gold, silver []provider.HistoryPoint, n int) []ClosingRate {
	if n <= 0 || n > len(gold) {
		n = len(gold)
	}
	out := make([]ClosingRate, 0, n)
	for i := len(gold) - 1; i >= len(gold)-n; i-- {
		row := ClosingRate{
			Date:       gold[i].Date,
			GoldPer10g: round(gold[i].Price*10, 2),
		}
		if i < len(silver) {
			row.SilverPerKg = round(silver[i].Price*1000, 2)
		}
		out = append(out, row)
	}
	return out
}

// SpliceLive returns a copy of an oldest-first intraday series whose newest
// point carries the live per-gram price, stamped now.
func SpliceLive(series []provider.HistoryPoint, livePerGram float64, now time.Time) []provider.HistoryPoint {
	out := make([]provider.HistoryPoint, len(series))
	copy(out, series)
	if len(out) == 0 || livePerGram <= 0 {
		return out
	}
	now = now.UTC()
	out[len(out)-1] = provider.HistoryPoint{
		Date:  now.Format(time.RFC3339),
		Price: round(livePerGram, 2),
		At:    now,
	}
	return out
}

// Reverse returns the series newest-first without modifying the input.
func Reverse(series []provider.HistoryPoint) []provider.HistoryPoint {
	out := make([]provider.HistoryPoint, len(series))
	for i, p := range series {
		out[len(series)-1-i] = p
	}
	return out
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
