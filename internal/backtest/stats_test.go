package backtest

import (
	"math"
	"testing"

	"github.com/aleeOstovar/chart-pattern-dashboard/internal/domain"
)

func tradesWithReturns(returns ...float64) []domain.TradeRecord {
	trades := make([]domain.TradeRecord, len(returns))
	for i, r := range returns {
		trades[i] = domain.TradeRecord{
			PatternName:     "DOJI",
			PatternType:     domain.PatternBullish,
			Return:          r,
			HoldingDuration: i + 1,
		}
	}
	return trades
}

func TestAggregateEmpty(t *testing.T) {
	st, ok := Aggregate(nil)
	if ok {
		t.Errorf("Aggregate(nil) ok = true, want false (got %+v)", st)
	}
	if _, ok := Aggregate([]domain.TradeRecord{}); ok {
		t.Error("Aggregate(empty) ok = true, want false")
	}
}

func TestAggregateSingleTrade(t *testing.T) {
	st, ok := Aggregate(tradesWithReturns(0.03))
	if !ok {
		t.Fatal("Aggregate returned no statistics for one trade")
	}
	if st.TotalTrades != 1 || st.WinningTrades != 1 || st.LosingTrades != 0 {
		t.Errorf("counts = %d/%d/%d, want 1/1/0", st.TotalTrades, st.WinningTrades, st.LosingTrades)
	}
	if st.AvgReturn != 0.03 {
		t.Errorf("AvgReturn = %v, want 0.03", st.AvgReturn)
	}
	if st.StdReturn != 0 {
		t.Errorf("StdReturn = %v, want 0", st.StdReturn)
	}
	if st.SharpeRatio != 0 {
		t.Errorf("SharpeRatio = %v, want 0", st.SharpeRatio)
	}
	if st.MaxDrawdown != 0 {
		t.Errorf("MaxDrawdown = %v, want 0", st.MaxDrawdown)
	}
	if st.MaxReturn != 0.03 || st.MinReturn != 0.03 {
		t.Errorf("Max/MinReturn = %v/%v, want 0.03/0.03", st.MaxReturn, st.MinReturn)
	}
}

func TestAggregateMoments(t *testing.T) {
	returns := []float64{0.1, -0.05, 0.02, -0.1, 0}
	st, ok := Aggregate(tradesWithReturns(returns...))
	if !ok {
		t.Fatal("Aggregate returned no statistics")
	}

	if st.TotalTrades != 5 {
		t.Errorf("TotalTrades = %d, want 5", st.TotalTrades)
	}
	// A zero return counts as a loss.
	if st.WinningTrades != 2 || st.LosingTrades != 3 {
		t.Errorf("Winning/LosingTrades = %d/%d, want 2/3", st.WinningTrades, st.LosingTrades)
	}
	if st.WinningTrades+st.LosingTrades != st.TotalTrades {
		t.Error("winning + losing != total")
	}
	if !approx(st.WinRate, 0.4) {
		t.Errorf("WinRate = %v, want 0.4", st.WinRate)
	}

	mean := (0.1 - 0.05 + 0.02 - 0.1 + 0) / 5
	var sq float64
	for _, r := range returns {
		sq += (r - mean) * (r - mean)
	}
	std := math.Sqrt(sq / 5) // population form

	if !approx(st.AvgReturn, mean) {
		t.Errorf("AvgReturn = %v, want %v", st.AvgReturn, mean)
	}
	if !approx(st.StdReturn, std) {
		t.Errorf("StdReturn = %v, want %v", st.StdReturn, std)
	}
	if !approx(st.SharpeRatio, mean/std) {
		t.Errorf("SharpeRatio = %v, want %v", st.SharpeRatio, mean/std)
	}
	if st.MaxReturn != 0.1 || st.MinReturn != -0.1 {
		t.Errorf("Max/MinReturn = %v/%v, want 0.1/-0.1", st.MaxReturn, st.MinReturn)
	}
	if !approx(st.AvgHoldingDuration, 3) {
		t.Errorf("AvgHoldingDuration = %v, want 3", st.AvgHoldingDuration)
	}
}

func TestAggregateMaxDrawdown(t *testing.T) {
	st, _ := Aggregate(tradesWithReturns(0.1, -0.05, 0.02, -0.1))

	peak := 1.1
	trough := 1.1 * 0.95 * 1.02 * 0.9
	want := (trough - peak) / peak
	if !approx(st.MaxDrawdown, want) {
		t.Errorf("MaxDrawdown = %v, want %v", st.MaxDrawdown, want)
	}

	// Order matters: the same returns sorted ascending give a different curve.
	sorted, _ := Aggregate(tradesWithReturns(-0.1, -0.05, 0.02, 0.1))
	wantSorted := (0.9*0.95 - 0.9) / 0.9
	if !approx(sorted.MaxDrawdown, wantSorted) {
		t.Errorf("sorted MaxDrawdown = %v, want %v", sorted.MaxDrawdown, wantSorted)
	}

	rising, _ := Aggregate(tradesWithReturns(0.01, 0.02, 0.03))
	if rising.MaxDrawdown != 0 {
		t.Errorf("monotone MaxDrawdown = %v, want 0", rising.MaxDrawdown)
	}
}

func TestAggregateConstantReturnsHaveZeroSharpe(t *testing.T) {
	st, _ := Aggregate(tradesWithReturns(-0.25, -0.25, -0.25))
	if st.StdReturn != 0 {
		t.Errorf("StdReturn = %v, want 0", st.StdReturn)
	}
	if st.SharpeRatio != 0 {
		t.Errorf("SharpeRatio = %v, want 0", st.SharpeRatio)
	}
	if st.WinRate != 0 {
		t.Errorf("WinRate = %v, want 0", st.WinRate)
	}
}
