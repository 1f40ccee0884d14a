// Package pattern detects candlestick patterns in a price series and
// validates detector output arriving from outside the process.
package pattern

import (
	"math"
	"sort"

	"github.com/aleeOstovar/chart-pattern-dashboard/internal/domain"
)

// DefaultThreshold is the minimum confidence reported by NewRuleDetector
// when no threshold is configured.
const DefaultThreshold = 0.6

// Detector produces pattern occurrences for a price series.
type Detector interface {
	Detect(series domain.PriceSeries) []domain.PatternOccurrence
	Patterns() []string
}

// RuleDetector scans a series with the fixed candlestick rule library.
type RuleDetector struct {
	rules     []Rule
	threshold float64
}

// NewRuleDetector returns a detector that keeps hits with confidence at or
// above threshold. When names is non-empty only those rules run; unknown
// names are ignored.
func NewRuleDetector(threshold float64, names ...string) *RuleDetector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	rules := Rules
	if len(names) > 0 {
		want := make(map[string]bool, len(names))
		for _, n := range names {
			want[n] = true
		}
		rules = nil
		for _, r := range Rules {
			if want[r.Name] {
				rules = append(rules, r)
			}
		}
	}

	return &RuleDetector{rules: rules, threshold: threshold}
}

// Patterns returns the names of the active rules.
func (d *RuleDetector) Patterns() []string {
	out := make([]string, len(d.rules))
	for i, r := range d.rules {
		out[i] = r.Name
	}
	return out
}

// Threshold returns the minimum confidence of reported occurrences.
func (d *RuleDetector) Threshold() float64 { return d.threshold }

// Detect runs every active rule over every bar. A hit at bar i covers
// [i-length+1, i]. Results are sorted by confidence, highest first; ties
// keep rule then bar order.
func (d *RuleDetector) Detect(series domain.PriceSeries) []domain.PatternOccurrence {
	var out []domain.PatternOccurrence
	for _, r := range d.rules {
		for i := r.Length - 1; i < len(series); i++ {
			dir, q := r.Match(series, i)
			if dir == 0 {
				continue
			}
			conf := math.Max(0, math.Min(1, q))
			if conf < d.threshold {
				continue
			}

			typ := domain.PatternBullish
			if dir < 0 {
				typ = domain.PatternBearish
			}
			out = append(out, domain.PatternOccurrence{
				PatternName: r.Name,
				Confidence:  conf,
				StartIndex:  max(0, i-r.Length+1),
				EndIndex:    i,
				PatternType: typ,
				Method:      domain.MethodRule,
			})
		}
	}

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Confidence > out[b].Confidence
	})
	return out
}
