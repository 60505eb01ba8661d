package market

import (
	"errors"
	"fmt"
	"strings"
)

// TroyOunceGrams converts a per-ounce spot price to a per-gram price.
const TroyOunceGrams = 31.1035

// ErrInvalidParam is wrapped by every Parse* error.
var ErrInvalidParam = errors.New("invalid parameter")

type Metal string

const (
	Gold   Metal = "XAU"
	Silver Metal = "XAG"
)

type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	INR Currency = "INR"
	AUD Currency = "AUD"
	CAD Currency = "CAD"
)

type City string

const (
	National   City = "National"
	Mumbai     City = "Mumbai"
	Delhi      City = "Delhi"
	Bangalore  City = "Bangalore"
	Chennai    City = "Chennai"
	Kolkata    City = "Kolkata"
	Hyderabad  City = "Hyderabad"
	Ahmedabad  City = "Ahmedabad"
	Pune       City = "Pune"
	Jaipur     City = "Jaipur"
	Lucknow    City = "Lucknow"
	Chandigarh City = "Chandigarh"
	Nagpur     City = "Nagpur"
)

// Range selects the span and step of a history series.
type Range string

const (
	Day   Range = "1D"
	Week  Range = "1W"
	Month Range = "1M"
)

var (
	Metals     = []Metal{Gold, Silver}
	Currencies = []Currency{USD, EUR, GBP, INR, AUD, CAD}
	Cities     = []City{
		National, Mumbai, Delhi, Bangalore, Chennai, Kolkata,
		Hyderabad, Ahmedabad, Pune, Jaipur, Lucknow, Chandigarh, Nagpur,
	}
	Ranges = []Range{Day, Week, Month}
)

// cityVariance is the premium (positive) or discount (negative) of a city
// relative to the national average.
var cityVariance = map[City]float64{
	National:   0,
	Mumbai:     0.002,
	Delhi:      0.003,
	Chennai:    0.005,
	Kolkata:    0.004,
	Bangalore:  0.001,
	Hyderabad:  0.0015,
	Ahmedabad:  -0.001,
	Pune:       0.001,
	Jaipur:     0.002,
	Lucknow:    0.0025,
	Chandigarh: 0.003,
	Nagpur:     0.0015,
}

// currencyFactors are static USD multipliers, not live FX.
var currencyFactors = map[Currency]float64{
	USD: 1,
	EUR: 0.90,
	GBP: 0.76,
	INR: 96.50,
	AUD: 1.45,
	CAD: 1.32,
}

// Base is the static USD snapshot used when no live feed is available.
type Base struct {
	Price         float64
	Change        float64
	ChangePercent float64
	PrevClose     float64
}

var bases = map[Metal]Base{
	Gold:   {Price: 4920.50, Change: 35.5, ChangePercent: 0.72, PrevClose: 4885.00},
	Silver: {Price: 82.20, Change: 0.85, ChangePercent: 1.05, PrevClose: 81.35},
}

func (m Metal) Base() Base { return bases[m] }

func (m Metal) Name() string {
	switch m {
	case Gold:
		return "Gold"
	case Silver:
		return "Silver"
	}
	return string(m)
}

func (c City) Variance() float64 { return cityVariance[c] }

func (c Currency) Factor() float64 { return currencyFactors[c] }

// Purity is a karat grade and its multiplier relative to 24k.
type Purity struct {
	Karat      int
	Multiplier float64
}

// Purities is ordered from purest to least pure.
var Purities = []Purity{
	{24, 1},
	{22, 0.916},
	{21, 0.875},
	{20, 0.833},
	{18, 0.75},
	{16, 0.667},
	{14, 0.583},
	{10, 0.417},
}

// PerGram converts a per-troy-ounce price to a per-gram price.
func PerGram(perOunce float64) float64 { return perOunce / TroyOunceGrams }

// ParseMetal accepts a symbol (XAU, xag) or a common name (gold, silver).
func ParseMetal(s string) (Metal, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "XAU", "GOLD":
		return Gold, nil
	case "XAG", "SILVER":
		return Silver, nil
	}
	return "", fmt.Errorf("%w: unknown metal %q", ErrInvalidParam, s)
}

func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := currencyFactors[c]; ok {
		return c, nil
	}
	return "", fmt.Errorf("%w: unsupported currency %q", ErrInvalidParam, s)
}

// ParseCity matches city names case-insensitively.
func ParseCity(s string) (City, error) {
	t := strings.TrimSpace(s)
	for _, c := range Cities {
		if strings.EqualFold(string(c), t) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: unsupported city %q", ErrInvalidParam, s)
}

func ParseRange(s string) (Range, error) {
	r := Range(strings.ToUpper(strings.TrimSpace(s)))
	for _, v := range Ranges {
		if v == r {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: unsupported range %q", ErrInvalidParam, s)
}
