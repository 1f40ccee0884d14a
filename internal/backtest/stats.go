package backtest

import (
	"math"

	"github.com/aleeOstovar/chart-pattern-dashboard/internal/domain"
)

// Aggregate computes performance statistics over trades in the order given.
// The boolean is false when trades is empty and no statistics exist.
//
// Standard deviation is the population form. The Sharpe ratio is per trade,
// unannualised, and zero when returns do not vary. Max drawdown is taken over
// the compounded equity curve and is <= 0.
func Aggregate(trades []domain.TradeRecord) (PerformanceStatistics, bool) {
	n := len(trades)
	if n == 0 {
		return PerformanceStatistics{}, false
	}

	st := PerformanceStatistics{
		TotalTrades: n,
		MaxReturn:   math.Inf(-1),
		MinReturn:   math.Inf(1),
	}

	var sum, holding float64
	for i := range trades {
		r := trades[i].Return
		if r > 0 {
			st.WinningTrades++
		} else {
			st.LosingTrades++
		}
		if r > st.MaxReturn {
			st.MaxReturn = r
		}
		if r < st.MinReturn {
			st.MinReturn = r
		}
		sum += r
		holding += float64(trades[i].HoldingDuration)
	}

	st.WinRate = float64(st.WinningTrades) / float64(n)
	st.AvgReturn = sum / float64(n)
	st.AvgHoldingDuration = holding / float64(n)

	var sq float64
	for i := range trades {
		d := trades[i].Return - st.AvgReturn
		sq += d * d
	}
	st.StdReturn = math.Sqrt(sq / float64(n))
	if st.StdReturn > 0 {
		st.SharpeRatio = st.AvgReturn / st.StdReturn
	}

	st.MaxDrawdown = maxDrawdown(trades)
	return st, true
}

// maxDrawdown returns the deepest peak-to-trough decline of the cumulative
// product of (1 + return), as a negative fraction. The running peak starts at
// the first trade's equity, not at 1.
func maxDrawdown(trades []domain.TradeRecord) float64 {
	equity := 1.0
	peak := math.Inf(-1)
	worst := 0.0
	for i := range trades {
		equity *= 1 + trades[i].Return
		if equity > peak {
			peak = equity
		}
		if peak <= 0 {
			continue
		}
		if dd := (equity - peak) / peak; dd < worst {
			worst = dd
		}
	}
	return worst
}
