package backtest

import (
	"fmt"
	"math"

	"github.com/aleeOstovar/chart-pattern-dashboard/internal/domain"
)

// Simulator replays a single pattern occurrence bar by bar under stop-loss,
// take-profit and holding-period exit rules.
type Simulator struct {
	transactionCost float64
}

// NewSimulator creates a Simulator that charges transactionCost on each side
// of every trade.
func NewSimulator(transactionCost float64) *Simulator {
	return &Simulator{transactionCost: transactionCost}
}

// Simulate opens a position at the open of the bar after the occurrence ends
// and walks forward until a threshold fires or the holding period runs out.
//
// The boolean result is false when the occurrence leaves no room for an entry
// bar plus at least one following bar; that is a skip, not an error. An error
// is returned only for malformed input.
func (s *Simulator) Simulate(series domain.PriceSeries, occ domain.PatternOccurrence, p Params) (domain.TradeRecord, bool, error) {
	n := len(series)
	if err := occ.Validate(n); err != nil {
		return domain.TradeRecord{}, false, err
	}

	entryIdx := occ.EndIndex + 1
	if entryIdx >= n-1 {
		return domain.TradeRecord{}, false, nil
	}

	entryPrice := series[entryIdx].Open
	if math.IsNaN(entryPrice) || math.IsInf(entryPrice, 0) || entryPrice <= 0 {
		return domain.TradeRecord{}, false, fmt.Errorf("entry price %v at index %d is not usable", entryPrice, entryIdx)
	}
	isLong := occ.PatternType == domain.PatternBullish

	exitIdx := entryIdx
	exitPrice := entryPrice
	reason := domain.ExitHoldingPeriod

	last := min(entryIdx+p.HoldingPeriod, n-1)
	for j := entryIdx + 1; j <= last; j++ {
		price := series[j].Close
		if math.IsNaN(price) || math.IsInf(price, 0) {
			return domain.TradeRecord{}, false, fmt.Errorf("close %v at index %d is not finite", price, j)
		}
		ret := (price - entryPrice) / entryPrice

		if isLong {
			if ret <= p.StopLoss {
				exitIdx, exitPrice, reason = j, entryPrice*(1+p.StopLoss), domain.ExitStopLoss
				break
			}
			if ret >= p.TakeProfit {
				exitIdx, exitPrice, reason = j, entryPrice*(1+p.TakeProfit), domain.ExitTakeProfit
				break
			}
		} else {
			if ret >= -p.StopLoss {
				exitIdx, exitPrice, reason = j, entryPrice*(1-p.StopLoss), domain.ExitStopLoss
				break
			}
			if ret <= -p.TakeProfit {
				exitIdx, exitPrice, reason = j, entryPrice*(1-p.TakeProfit), domain.ExitTakeProfit
				break
			}
		}

		// Fallback exit: latest close seen inside the window.
		exitIdx, exitPrice = j, price
	}

	tradeReturn := (exitPrice - entryPrice) / entryPrice
	if !isLong {
		tradeReturn = -tradeReturn
	}
	tradeReturn -= 2 * s.transactionCost

	return domain.TradeRecord{
		PatternName:     occ.PatternName,
		PatternType:     occ.PatternType,
		Confidence:      occ.Confidence,
		EntryIndex:      entryIdx,
		ExitIndex:       exitIdx,
		EntryTime:       series[entryIdx].Timestamp,
		ExitTime:        series[exitIdx].Timestamp,
		EntryPrice:      entryPrice,
		ExitPrice:       exitPrice,
		Return:          tradeReturn,
		ExitReason:      reason,
		HoldingDuration: exitIdx - entryIdx,
	}, true, nil
}
