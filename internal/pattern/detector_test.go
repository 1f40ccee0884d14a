package pattern

import (
	"math"
	"testing"
	"time"

	"github.com/aleeOstovar/chart-pattern-dashboard/internal/domain"
)

var t0 = time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC)

func bar(o, h, l, c float64) domain.PriceBar {
	return domain.PriceBar{Open: o, High: h, Low: l, Close: c, Volume: 1000}
}

func series(bars ...domain.PriceBar) domain.PriceSeries {
	s := make(domain.PriceSeries, len(bars))
	for i, b := range bars {
		b.Timestamp = t0.Add(time.Duration(i) * time.Hour)
		s[i] = b
	}
	return s
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestDetectDoji(t *testing.T) {
	occs := NewRuleDetector(0.6, "DOJI").Detect(series(bar(100, 101, 99, 100)))
	if len(occs) != 1 {
		t.Fatalf("len(occs) = %d, want 1", len(occs))
	}
	o := occs[0]
	if o.PatternName != "DOJI" || o.StartIndex != 0 || o.EndIndex != 0 {
		t.Errorf("occ = %+v, want DOJI at [0,0]", o)
	}
	if o.Confidence != 1 || o.PatternType != domain.PatternBullish {
		t.Errorf("occ confidence/type = %v/%s, want 1/bullish", o.Confidence, o.PatternType)
	}
	if o.Method != domain.MethodRule {
		t.Errorf("Method = %q, want %q", o.Method, domain.MethodRule)
	}
}

func TestDetectEngulfing(t *testing.T) {
	d := NewRuleDetector(0.6, "ENGULFING")

	bull := d.Detect(series(bar(102, 102.5, 99.5, 100), bar(99.5, 103.5, 99, 103)))
	if len(bull) != 1 {
		t.Fatalf("bullish engulfing: len = %d, want 1", len(bull))
	}
	if bull[0].PatternType != domain.PatternBullish || bull[0].StartIndex != 0 || bull[0].EndIndex != 1 {
		t.Errorf("bullish engulfing = %+v", bull[0])
	}
	if !approx(bull[0].Confidence, 0.9) {
		t.Errorf("Confidence = %v, want 0.9", bull[0].Confidence)
	}

	bear := d.Detect(series(bar(100, 102.5, 99.5, 102), bar(102.5, 103, 98.5, 99)))
	if len(bear) != 1 || bear[0].PatternType != domain.PatternBearish {
		t.Fatalf("bearish engulfing = %+v, want one bearish hit", bear)
	}
}

func TestDetectHammerNeedsDowntrend(t *testing.T) {
	hammer := bar(105, 106.1, 99, 106)
	d := NewRuleDetector(0.6, "HAMMER")

	down := series(bar(111, 112, 109, 110), bar(110, 110.5, 107.5, 108), bar(108, 108.5, 105.5, 106), hammer)
	occs := d.Detect(down)
	if len(occs) != 1 || occs[0].EndIndex != 3 || occs[0].Confidence != 1 {
		t.Errorf("hammer after downtrend = %+v, want one hit at 3 with confidence 1", occs)
	}

	up := series(bar(100, 101, 99, 100), bar(100, 102.5, 99.5, 102), bar(102, 104.5, 101.5, 104), hammer)
	if occs := d.Detect(up); len(occs) != 0 {
		t.Errorf("hammer after uptrend = %+v, want none", occs)
	}
}

func TestDetectMorningStar(t *testing.T) {
	s := series(bar(110, 110.5, 103.5, 104), bar(103, 103.5, 102, 102.5), bar(103, 109.5, 102.5, 109))
	occs := NewRuleDetector(0.6, "MORNING_STAR").Detect(s)
	if len(occs) != 1 {
		t.Fatalf("len(occs) = %d, want 1", len(occs))
	}
	if occs[0].StartIndex != 0 || occs[0].EndIndex != 2 || occs[0].PatternType != domain.PatternBullish {
		t.Errorf("morning star = %+v, want bullish [0,2]", occs[0])
	}
}

func TestDetectThreshold(t *testing.T) {
	s := series(bar(102, 102.5, 99.5, 100), bar(99.5, 103.5, 99, 103))
	if occs := NewRuleDetector(0.95, "ENGULFING").Detect(s); len(occs) != 0 {
		t.Errorf("threshold 0.95: got %+v, want none", occs)
	}
	if got := NewRuleDetector(0).Threshold(); got != DefaultThreshold {
		t.Errorf("Threshold() = %v, want %v", got, DefaultThreshold)
	}
}

func TestPatternsFilter(t *testing.T) {
	if got := len(NewRuleDetector(0.6).Patterns()); got != len(Rules) {
		t.Errorf("len(Patterns()) = %d, want %d", got, len(Rules))
	}

	got := NewRuleDetector(0.6, "HARAMI", "NOT_A_PATTERN", "DOJI").Patterns()
	if len(got) != 2 || got[0] != "DOJI" || got[1] != "HARAMI" {
		t.Errorf("Patterns() = %v, want [DOJI HARAMI] in library order", got)
	}
}

func TestDetectOutputInvariants(t *testing.T) {
	bars := make([]domain.PriceBar, 300)
	for i := range bars {
		x := float64(i)
		o := 100 + 8*math.Sin(x/5)
		c := 100 + 8*math.Sin((x+1)/5) + 1.5*math.Sin(x*1.7)
		h := math.Max(o, c) + 0.5 + math.Abs(math.Sin(x*0.9))*2
		l := math.Min(o, c) - 0.5 - math.Abs(math.Cos(x*1.3))*2
		bars[i] = bar(o, h, l, c)
	}
	s := series(bars...)

	d := NewRuleDetector(0.6)
	occs := d.Detect(s)
	if len(occs) == 0 {
		t.Fatal("expected detections on a varied series")
	}

	lengths := make(map[string]int)
	for _, r := range Rules {
		lengths[r.Name] = r.Length
	}
	for i, o := range occs {
		if err := o.Validate(len(s)); err != nil {
			t.Errorf("occs[%d] invalid: %v", i, err)
		}
		if o.Confidence < d.Threshold() {
			t.Errorf("occs[%d].Confidence = %v below threshold", i, o.Confidence)
		}
		if o.EndIndex-o.StartIndex+1 != lengths[o.PatternName] {
			t.Errorf("occs[%d] %s spans %d bars, want %d", i, o.PatternName, o.EndIndex-o.StartIndex+1, lengths[o.PatternName])
		}
		if i > 0 && occs[i-1].Confidence < o.Confidence {
			t.Errorf("occs not sorted by confidence at %d: %v < %v", i, occs[i-1].Confidence, o.Confidence)
		}
	}
}

func TestDetectKicking(t *testing.T) {
	d := NewRuleDetector(0.6, "KICKING")

	bull := d.Detect(series(bar(105, 105, 100, 100), bar(106, 111, 106, 111)))
	if len(bull) != 1 || bull[0].PatternType != domain.PatternBullish || !approx(bull[0].Confidence, 1) {
		t.Fatalf("bullish kicking = %+v, want one bullish hit at confidence 1", bull)
	}
	if bull[0].StartIndex != 0 || bull[0].EndIndex != 1 {
		t.Errorf("span = [%d,%d], want [0,1]", bull[0].StartIndex, bull[0].EndIndex)
	}

	bear := d.Detect(series(bar(100, 105, 100, 105), bar(99, 99, 94, 94)))
	if len(bear) != 1 || bear[0].PatternType != domain.PatternBearish {
		t.Errorf("bearish kicking = %+v", bear)
	}

	if got := d.Detect(series(bar(105, 105, 100, 100), bar(104, 109, 104, 109))); len(got) != 0 {
		t.Errorf("no gap: got %+v, want none", got)
	}
}

func TestDetectAbandonedBaby(t *testing.T) {
	s := series(
		bar(110, 110.5, 99.5, 100),
		bar(97, 98, 96, 97),
		bar(99, 108, 98.5, 107),
	)
	occs := NewRuleDetector(0.6, "ABANDONED_BABY").Detect(s)
	if len(occs) != 1 {
		t.Fatalf("len(occs) = %d, want 1", len(occs))
	}
	o := occs[0]
	if o.PatternType != domain.PatternBullish || o.StartIndex != 0 || o.EndIndex != 2 {
		t.Errorf("occ = %+v, want bullish at [0,2]", o)
	}
	if want := 0.6 + 0.4*4.0/7.0; !approx(o.Confidence, want) {
		t.Errorf("Confidence = %v, want %v", o.Confidence, want)
	}

	// Third bar overlaps the doji: no gap, no pattern.
	s[2].Low = 97.5
	if got := NewRuleDetector(0.6, "ABANDONED_BABY").Detect(s); len(got) != 0 {
		t.Errorf("overlapping third bar: got %+v, want none", got)
	}
}

func TestDetectBreakaway(t *testing.T) {
	s := series(
		bar(120, 120.5, 109.5, 110),
		bar(108, 108.5, 105.5, 106),
		bar(106, 106.5, 103.5, 104),
		bar(104, 104.5, 101.5, 102),
		bar(102, 109.5, 101.8, 109),
	)
	occs := NewRuleDetector(0.6, "BREAKAWAY").Detect(s)
	if len(occs) != 1 {
		t.Fatalf("len(occs) = %d, want 1", len(occs))
	}
	o := occs[0]
	if o.PatternType != domain.PatternBullish || o.StartIndex != 0 || o.EndIndex != 4 {
		t.Errorf("occ = %+v, want bullish at [0,4]", o)
	}
	if !approx(o.Confidence, 0.8) {
		t.Errorf("Confidence = %v, want 0.8", o.Confidence)
	}

	// Closing above the first bar's close fills the gap entirely.
	s[4].Close, s[4].High = 111, 111.5
	if got := NewRuleDetector(0.6, "BREAKAWAY").Detect(s); len(got) != 0 {
		t.Errorf("gap filled: got %+v, want none", got)
	}
}

func TestDetectLadderBottom(t *testing.T) {
	s := series(
		bar(110, 110.5, 107.5, 108),
		bar(108.5, 109, 105.5, 106),
		bar(106.5, 107, 103.5, 104),
		bar(103, 105, 101.5, 102),
		bar(103.5, 106, 103.2, 105.5),
	)
	occs := NewRuleDetector(0.6, "LADDER_BOTTOM").Detect(s)
	if len(occs) != 1 {
		t.Fatalf("len(occs) = %d, want 1", len(occs))
	}
	if o := occs[0]; o.PatternType != domain.PatternBullish || o.StartIndex != 0 || o.EndIndex != 4 || o.Confidence != 1 {
		t.Errorf("occ = %+v, want bullish at [0,4] with confidence 1", o)
	}

	// The last bar must close above the fourth bar's high.
	s[4].Close = 104.5
	if got := NewRuleDetector(0.6, "LADDER_BOTTOM").Detect(s); len(got) != 0 {
		t.Errorf("weak close: got %+v, want none", got)
	}
}

func TestDetectClampsQuality(t *testing.T) {
	d := &RuleDetector{
		rules: []Rule{{Name: "WIDE", Length: 1, Match: func(domain.PriceSeries, int) (int, float64) {
			return -1, 1.7
		}}},
		threshold: DefaultThreshold,
	}
	occs := d.Detect(series(bar(100, 101, 99, 100)))
	if len(occs) != 1 {
		t.Fatalf("len(occs) = %d, want 1", len(occs))
	}
	if occs[0].Confidence != 1 || occs[0].PatternType != domain.PatternBearish {
		t.Errorf("occ = %+v, want bearish at confidence 1", occs[0])
	}
}
