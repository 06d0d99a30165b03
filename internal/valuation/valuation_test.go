package valuation

import (
	"testing"
	"time"

	"assetflow.org/internal/asset"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testAsset(method asset.Method, cost, salvage int64, lifeMonths int) asset.Asset {
	return asset.Asset{
		ID:               "A-1",
		PurchaseCost:     cost,
		SalvageValue:     salvage,
		PurchaseDate:     date(2023, time.January, 1),
		UsefulLifeMonths: lifeMonths,
		Method:           method,
	}
}

func TestStraightLineScenario(t *testing.T) {
	// 75,000 cost, 5,000 salvage, 36 months; after 12 months the book value
	// is 75,000 - 70,000/36*12 = 51,666.67.
	a := testAsset(asset.StraightLine, 7_500_000, 500_000, 36)
	v, err := Compute(a, date(2024, time.January, 1))
	if err != nil {
		t.Fatal(err)
	}
	if v.BookValue != 5_166_667 {
		t.Fatalf("book value = %d, want 5166667", v.BookValue)
	}
	if v.AccumulatedDepreciation != 7_500_000-5_166_667 {
		t.Fatalf("accumulated = %d", v.AccumulatedDepreciation)
	}
	if v.PeriodDepreciation == 0 {
		t.Fatal("expected non-zero period depreciation mid-life")
	}
}

func TestBookValueEqualsCostAtPurchaseDate(t *testing.T) {
	for _, m := range []asset.Method{asset.StraightLine, asset.WrittenDownValue, asset.DoubleDecliningBalance} {
		a := testAsset(m, 1_000_000, 100_000, 48)
		v, err := Compute(a, a.PurchaseDate)
		if err != nil {
			t.Fatal(err)
		}
		if v.BookValue != a.PurchaseCost {
			t.Fatalf("%s: book at purchase date = %d, want cost", m, v.BookValue)
		}
		if v.PeriodDepreciation != 0 {
			t.Fatalf("%s: period depreciation at purchase date = %d", m, v.PeriodDepreciation)
		}
	}
}

func TestBookValueEqualsSalvageAfterUsefulLife(t *testing.T) {
	for _, m := range []asset.Method{asset.StraightLine, asset.WrittenDownValue, asset.DoubleDecliningBalance} {
		a := testAsset(m, 1_000_000, 150_000, 36)
		for _, months := range []int{36, 48, 120} {
			v, err := Compute(a, a.PurchaseDate.AddDate(0, months, 0))
			if err != nil {
				t.Fatal(err)
			}
			if v.BookValue != a.SalvageValue {
				t.Fatalf("%s after %d months: book = %d, want salvage %d", m, months, v.BookValue, a.SalvageValue)
			}
			if v.PeriodDepreciation != 0 {
				t.Fatalf("%s after %d months: period = %d, want 0", m, months, v.PeriodDepreciation)
			}
		}
	}
}

func TestAsOfBeforePurchaseDate(t *testing.T) {
	a := testAsset(asset.StraightLine, 500_000, 0, 24)
	v, err := Compute(a, date(2020, time.June, 15))
	if err != nil {
		t.Fatal(err)
	}
	if v.BookValue != a.PurchaseCost || v.AccumulatedDepreciation != 0 {
		t.Fatalf("negative depreciation: %+v", v)
	}
}

func TestCostEqualsSalvageNoDepreciation(t *testing.T) {
	for _, m := range []asset.Method{asset.StraightLine, asset.WrittenDownValue, asset.DoubleDecliningBalance} {
		a := testAsset(m, 300_000, 300_000, 12)
		v, err := Compute(a, a.PurchaseDate.AddDate(0, 6, 0))
		if err != nil {
			t.Fatal(err)
		}
		if v.BookValue != 300_000 || v.PeriodDepreciation != 0 {
			t.Fatalf("%s: expected zero depreciation, got %+v", m, v)
		}
	}
}

func TestZeroCost(t *testing.T) {
	a := testAsset(asset.WrittenDownValue, 0, 0, 24)
	v, err := Compute(a, a.PurchaseDate.AddDate(0, 12, 0))
	if err != nil {
		t.Fatal(err)
	}
	if v.BookValue != 0 || v.AccumulatedDepreciation != 0 {
		t.Fatalf("zero-cost asset depreciated: %+v", v)
	}
}

func TestMonotonicNonIncreasingAndBounded(t *testing.T) {
	for _, m := range []asset.Method{asset.StraightLine, asset.WrittenDownValue, asset.DoubleDecliningBalance} {
		a := testAsset(m, 2_400_000, 200_000, 60)
		prev := a.PurchaseCost
		for months := 0; months <= 72; months++ {
			v, err := Compute(a, a.PurchaseDate.AddDate(0, months, 0))
			if err != nil {
				t.Fatal(err)
			}
			if v.BookValue > prev {
				t.Fatalf("%s: book value increased at month %d: %d > %d", m, months, v.BookValue, prev)
			}
			if v.BookValue > a.PurchaseCost || v.BookValue < a.SalvageValue {
				t.Fatalf("%s: book value out of bounds at month %d: %d", m, months, v.BookValue)
			}
			prev = v.BookValue
		}
	}
}

func TestWrittenDownValueYearlyApplication(t *testing.T) {
	// salvage/cost = 0.25 over 24 months: annual rate = 1 - 0.25^(1/2) = 0.5,
	// so one full year halves the balance.
	a := testAsset(asset.WrittenDownValue, 1_000_000, 250_000, 24)
	v, err := Compute(a, a.PurchaseDate.AddDate(1, 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if v.BookValue != 500_000 {
		t.Fatalf("book after one year = %d, want 500000", v.BookValue)
	}
}

func TestDoubleDecliningBalanceRate(t *testing.T) {
	// 60 months => annual rate 2/5 = 0.4; one full year leaves 60%.
	a := testAsset(asset.DoubleDecliningBalance, 1_000_000, 0, 60)
	v, err := Compute(a, a.PurchaseDate.AddDate(1, 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if v.BookValue != 600_000 {
		t.Fatalf("book after one year = %d, want 600000", v.BookValue)
	}
}

func TestPartialMonthNotCounted(t *testing.T) {
	a := testAsset(asset.StraightLine, 1_200_000, 0, 12)
	// One day short of a full month.
	v, err := Compute(a, date(2023, time.January, 31))
	if err != nil {
		t.Fatal(err)
	}
	if v.BookValue != a.PurchaseCost {
		t.Fatalf("partial month depreciated: %d", v.BookValue)
	}
}

func TestInvalidBasisRejected(t *testing.T) {
	a := testAsset(asset.StraightLine, 100, 200, 12)
	if _, err := Compute(a, date(2024, time.January, 1)); err == nil {
		t.Fatal("expected validation error for salvage > cost")
	}
	a = testAsset(asset.StraightLine, 100, 0, 0)
	if _, err := Compute(a, date(2024, time.January, 1)); err == nil {
		t.Fatal("expected validation error for zero useful life")
	}
}

func TestDeterministic(t *testing.T) {
	a := testAsset(asset.WrittenDownValue, 3_333_333, 333_333, 84)
	asOf := date(2026, time.March, 14)
	v1, err := Compute(a, asOf)
	if err != nil {
		t.Fatal(err)
	}
	v2, _ := Compute(a, asOf)
	if v1 != v2 {
		t.Fatalf("non-deterministic valuation: %+v != %+v", v1, v2)
	}
}
