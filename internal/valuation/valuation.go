// Package valuation computes depreciation schedules and book values from an
// asset's financial basis. Every function is pure and deterministic: the
// same inputs always yield the same outputs, which audit reproduction
// depends on.
package valuation

import (
	"math"
	"time"

	"assetflow.org/internal/asset"
)

// Valuation is the result of a book value computation. Monetary fields are
// minor units, matching the asset record.
type Valuation struct {
	BookValue               int64     `json:"book_value"`
	AccumulatedDepreciation int64     `json:"accumulated_depreciation"`
	PeriodDepreciation      int64     `json:"period_depreciation"`
	AsOf                    time.Time `json:"as_of"`
}

// Compute returns the asset's book value as of the given date.
//
// PeriodDepreciation is the charge attributable to the most recent elapsed
// month: zero before the first full month and zero once the useful life has
// fully elapsed. BookValue never exceeds the purchase cost and never falls
// below the salvage value.
func Compute(a asset.Asset, asOf time.Time) (Valuation, error) {
	b := a.Basis()
	if err := b.Validate(); err != nil {
		return Valuation{}, err
	}

	elapsed := monthsBetween(b.PurchaseDate, asOf)
	book := bookAt(b, elapsed)

	var period int64
	if elapsed > 0 && elapsed < b.UsefulLifeMonths {
		period = bookAt(b, elapsed-1) - book
	}

	return Valuation{
		BookValue:               book,
		AccumulatedDepreciation: b.PurchaseCost - book,
		PeriodDepreciation:      period,
		AsOf:                    asOf.UTC(),
	}, nil
}

// bookAt evaluates the depreciation schedule after the given number of full
// elapsed months. Values are rounded to minor units only at the end, so the
// schedule stays monotonically non-increasing.
func bookAt(b asset.FinancialBasis, elapsedMonths int) int64 {
	if elapsedMonths <= 0 {
		return b.PurchaseCost
	}
	if elapsedMonths >= b.UsefulLifeMonths {
		return b.SalvageValue
	}

	cost := float64(b.PurchaseCost)
	salvage := float64(b.SalvageValue)

	var book float64
	switch b.Method {
	case asset.StraightLine:
		monthly := (cost - salvage) / float64(b.UsefulLifeMonths)
		book = cost - monthly*float64(elapsedMonths)
	case asset.WrittenDownValue:
		book = reducingBalance(cost, wdvRate(b), elapsedMonths)
	case asset.DoubleDecliningBalance:
		book = reducingBalance(cost, ddbRate(b), elapsedMonths)
	default:
		book = cost
	}

	if book < salvage {
		book = salvage
	}
	if book > cost {
		book = cost
	}
	return int64(math.Round(book))
}

// wdvRate derives the written-down-value annual rate from the salvage
// ratio: 1 - (salvage/cost)^(12/life). A zero cost basis depreciates at
// rate zero.
func wdvRate(b asset.FinancialBasis) float64 {
	if b.PurchaseCost == 0 {
		return 0
	}
	ratio := float64(b.SalvageValue) / float64(b.PurchaseCost)
	return 1 - math.Pow(ratio, 12/float64(b.UsefulLifeMonths))
}

// ddbRate is twice the straight-line annual rate, capped so a short life
// never produces a negative balance.
func ddbRate(b asset.FinancialBasis) float64 {
	r := 24 / float64(b.UsefulLifeMonths)
	if r > 1 {
		r = 1
	}
	return r
}

// reducingBalance applies the annual rate year over year from the purchase
// date, pro-rating the partial final year by elapsed months over 12.
func reducingBalance(cost, rate float64, elapsedMonths int) float64 {
	book := cost
	years := elapsedMonths / 12
	for i := 0; i < years; i++ {
		book *= 1 - rate
	}
	if rem := elapsedMonths % 12; rem > 0 {
		book *= 1 - rate*float64(rem)/12
	}
	return book
}

// monthsBetween counts full calendar months from a to b, never negative.
func monthsBetween(a, b time.Time) int {
	a = a.UTC()
	b = b.UTC()
	if !b.After(a) {
		return 0
	}
	months := (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
	if b.Day() < a.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}
