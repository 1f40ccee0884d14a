package pattern

import (
	"github.com/aleeOstovar/chart-pattern-dashboard/internal/domain"
)

// Analysis summarises price and volume behaviour inside one occurrence.
type Analysis struct {
	PatternName     string             `json:"pattern_name"`
	PatternType     domain.PatternType `json:"pattern_type"`
	Confidence      float64            `json:"confidence"`
	PriceChange     float64            `json:"price_change"`
	VolumeChange    float64            `json:"volume_change"`
	Duration        int                `json:"duration"`
	PriceRange      float64            `json:"price_range"`
	VolumeIntensity float64            `json:"volume_intensity"`
}

// Analyze measures the bars [StartIndex, EndIndex] of occ. Ratios whose
// denominator is zero are reported as 0.
func Analyze(series domain.PriceSeries, occ domain.PatternOccurrence) (Analysis, error) {
	if err := occ.Validate(len(series)); err != nil {
		return Analysis{}, err
	}

	bars := series[occ.StartIndex : occ.EndIndex+1]
	first, last := bars[0], bars[len(bars)-1]

	hi, lo := first.High, first.Low
	var closeSum, volSum float64
	for _, b := range bars {
		hi = max(hi, b.High)
		lo = min(lo, b.Low)
		closeSum += b.Close
		volSum += b.Volume
	}
	var allVol float64
	for _, b := range series {
		allVol += b.Volume
	}

	n := float64(len(bars))
	return Analysis{
		PatternName:     occ.PatternName,
		PatternType:     occ.PatternType,
		Confidence:      occ.Confidence,
		PriceChange:     ratio(last.Close-first.Close, first.Close),
		VolumeChange:    ratio(last.Volume-first.Volume, first.Volume),
		Duration:        len(bars),
		PriceRange:      ratio(hi-lo, closeSum/n),
		VolumeIntensity: ratio(volSum/n, allVol/float64(len(series))),
	}, nil
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
