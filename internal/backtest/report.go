package backtest

import (
	"fmt"
	"strings"
)

// NoResultsReport is the full report text for a run without statistics.
const NoResultsReport = "No backtest results available."

// FormatReport renders res as a plain-text performance report. Pattern rows
// with fewer than minTrades trades are omitted; confidence brackets are
// always listed.
func FormatReport(res *Result, minTrades int) string {
	if res.Empty() {
		return NoResultsReport
	}
	o := res.Overall

	lines := []string{
		"Pattern Performance Report",
		"========================\n",
		"Overall Performance:",
		fmt.Sprintf("Total Trades: %d", o.TotalTrades),
		fmt.Sprintf("Win Rate: %s", pct(o.WinRate)),
		fmt.Sprintf("Average Return: %s", pct(o.AvgReturn)),
		fmt.Sprintf("Sharpe Ratio: %.2f", o.SharpeRatio),
		fmt.Sprintf("Maximum Drawdown: %s\n", pct(o.MaxDrawdown)),
		"Performance by Pattern:",
		"----------------------",
	}

	for _, name := range res.PatternNames() {
		st := res.PatternStats[name]
		if st.TotalTrades < minTrades {
			continue
		}
		lines = append(lines, statLines("\n"+name+":", st)...)
	}

	lines = append(lines,
		"\nPerformance by Confidence Level:",
		"------------------------------",
	)

	for _, br := range ConfidenceBrackets {
		label := br.Label()
		st, ok := res.ConfidenceStats[label]
		if !ok {
			continue
		}
		lines = append(lines, statLines("\nConfidence "+label+":", st)...)
	}

	return strings.Join(lines, "\n")
}

func statLines(title string, st PerformanceStatistics) []string {
	return []string{
		title,
		fmt.Sprintf("Trades: %d", st.TotalTrades),
		fmt.Sprintf("Win Rate: %s", pct(st.WinRate)),
		fmt.Sprintf("Average Return: %s", pct(st.AvgReturn)),
	}
}

// pct formats a fraction as a two-decimal percentage.
func pct(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}
