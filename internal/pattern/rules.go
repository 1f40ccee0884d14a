package pattern

import (
	"math"

	"github.com/aleeOstovar/chart-pattern-dashboard/internal/domain"
)

// Rule is a single candlestick pattern. Match inspects the Length bars ending
// at index i and returns the direction (+1 bullish, -1 bearish, 0 no match)
// and a match quality in [0,1] that becomes the occurrence confidence.
type Rule struct {
	Name   string
	Length int
	Match  func(s domain.PriceSeries, i int) (dir int, quality float64)
}

// Rules is the fixed rule library, in reporting order.
var Rules = []Rule{
	// Single candlestick patterns
	{Name: "DOJI", Length: 1, Match: matchDoji},
	{Name: "HAMMER", Length: 1, Match: matchHammer},
	{Name: "SHOOTING_STAR", Length: 1, Match: matchShootingStar},
	{Name: "SPINNING_TOP", Length: 1, Match: matchSpinningTop},
	{Name: "MARUBOZU", Length: 1, Match: matchMarubozu},

	// Double candlestick patterns
	{Name: "ENGULFING", Length: 2, Match: matchEngulfing},
	{Name: "HARAMI", Length: 2, Match: matchHarami},
	{Name: "PIERCING", Length: 2, Match: matchPiercing},
	{Name: "DARK_CLOUD_COVER", Length: 2, Match: matchDarkCloudCover},
	{Name: "KICKING", Length: 2, Match: matchKicking},

	// Triple candlestick patterns
	{Name: "MORNING_STAR", Length: 3, Match: matchMorningStar},
	{Name: "EVENING_STAR", Length: 3, Match: matchEveningStar},
	{Name: "THREE_WHITE_SOLDIERS", Length: 3, Match: matchThreeWhiteSoldiers},
	{Name: "THREE_BLACK_CROWS", Length: 3, Match: matchThreeBlackCrows},
	{Name: "THREE_INSIDE_UP", Length: 3, Match: matchThreeInside},
	{Name: "THREE_OUTSIDE_UP", Length: 3, Match: matchThreeOutside},
	{Name: "ABANDONED_BABY", Length: 3, Match: matchAbandonedBaby},

	// Five candlestick patterns
	{Name: "BREAKAWAY", Length: 5, Match: matchBreakaway},
	{Name: "LADDER_BOTTOM", Length: 5, Match: matchLadderBottom},
}

// ---------------------------------------------------------------------------
// Candle geometry
// ---------------------------------------------------------------------------

func body(b domain.PriceBar) float64  { return math.Abs(b.Close - b.Open) }
func span(b domain.PriceBar) float64  { return b.High - b.Low }
func upper(b domain.PriceBar) float64 { return b.High - math.Max(b.Open, b.Close) }
func lower(b domain.PriceBar) float64 { return math.Min(b.Open, b.Close) - b.Low }
func isUp(b domain.PriceBar) bool     { return b.Close > b.Open }
func isDown(b domain.PriceBar) bool   { return b.Close < b.Open }
func mid(b domain.PriceBar) float64   { return (b.Open + b.Close) / 2 }

func bodyTop(b domain.PriceBar) float64    { return math.Max(b.Open, b.Close) }
func bodyBottom(b domain.PriceBar) float64 { return math.Min(b.Open, b.Close) }

func color(b domain.PriceBar) int {
	switch {
	case isUp(b):
		return 1
	case isDown(b):
		return -1
	}
	return 0
}

// scale maps x from [lo, hi] onto [0.6, 1.0], clamped. Anything that passes
// a rule's hard conditions starts at the default confidence threshold.
func scale(x, lo, hi float64) float64 {
	if hi == lo {
		return 1
	}
	t := (x - lo) / (hi - lo)
	t = math.Max(0, math.Min(1, t))
	return 0.6 + 0.4*t
}

// downtrend reports whether closes fell over the three bars before i.
func downtrend(s domain.PriceSeries, i int) bool {
	return i >= 3 && s[i-1].Close < s[i-3].Close
}

func uptrend(s domain.PriceSeries, i int) bool {
	return i >= 3 && s[i-1].Close > s[i-3].Close
}

// ---------------------------------------------------------------------------
// Single-bar rules
// ---------------------------------------------------------------------------

func matchDoji(s domain.PriceSeries, i int) (int, float64) {
	b := s[i]
	r := span(b)
	if r <= 0 || body(b) > 0.1*r {
		return 0, 0
	}
	return 1, scale(0.1*r-body(b), 0, 0.1*r)
}

func matchHammer(s domain.PriceSeries, i int) (int, float64) {
	b := s[i]
	bd := body(b)
	if bd <= 0 || lower(b) < 2*bd || upper(b) > 0.5*bd || !downtrend(s, i) {
		return 0, 0
	}
	return 1, scale(lower(b)/bd, 2, 4)
}

func matchShootingStar(s domain.PriceSeries, i int) (int, float64) {
	b := s[i]
	bd := body(b)
	if bd <= 0 || upper(b) < 2*bd || lower(b) > 0.5*bd || !uptrend(s, i) {
		return 0, 0
	}
	return -1, scale(upper(b)/bd, 2, 4)
}

func matchSpinningTop(s domain.PriceSeries, i int) (int, float64) {
	b := s[i]
	bd, r := body(b), span(b)
	if bd <= 0 || r <= 0 || bd > 0.3*r || bd <= 0.1*r || upper(b) <= bd || lower(b) <= bd {
		return 0, 0
	}
	return color(b), scale(0.3*r-bd, 0, 0.2*r)
}

func matchMarubozu(s domain.PriceSeries, i int) (int, float64) {
	b := s[i]
	r := span(b)
	if r <= 0 || body(b) < 0.9*r {
		return 0, 0
	}
	return color(b), scale(body(b)/r, 0.9, 1)
}

// ---------------------------------------------------------------------------
// Two-bar rules
// ---------------------------------------------------------------------------

func matchEngulfing(s domain.PriceSeries, i int) (int, float64) {
	prev, cur := s[i-1], s[i]
	pb := body(prev)
	if pb <= 0 || color(prev) == 0 || color(cur) != -color(prev) {
		return 0, 0
	}
	top, bottom := math.Max(cur.Open, cur.Close), math.Min(cur.Open, cur.Close)
	ptop, pbottom := math.Max(prev.Open, prev.Close), math.Min(prev.Open, prev.Close)
	if top < ptop || bottom > pbottom || body(cur) <= pb {
		return 0, 0
	}
	return color(cur), scale(body(cur)/pb, 1, 2)
}

func matchHarami(s domain.PriceSeries, i int) (int, float64) {
	prev, cur := s[i-1], s[i]
	pb, cb := body(prev), body(cur)
	if pb <= 0 || cb <= 0 || color(prev) == 0 || color(cur) != -color(prev) {
		return 0, 0
	}
	top, bottom := math.Max(cur.Open, cur.Close), math.Min(cur.Open, cur.Close)
	ptop, pbottom := math.Max(prev.Open, prev.Close), math.Min(prev.Open, prev.Close)
	if top >= ptop || bottom <= pbottom || cb > 0.5*pb {
		return 0, 0
	}
	return color(cur), scale(0.5*pb-cb, 0, 0.5*pb)
}

func matchPiercing(s domain.PriceSeries, i int) (int, float64) {
	prev, cur := s[i-1], s[i]
	pb := body(prev)
	if !isDown(prev) || !isUp(cur) || pb <= 0 {
		return 0, 0
	}
	if cur.Open >= prev.Low || cur.Close <= mid(prev) || cur.Close >= prev.Open {
		return 0, 0
	}
	return 1, scale((cur.Close-prev.Close)/pb, 0.5, 1)
}

func matchDarkCloudCover(s domain.PriceSeries, i int) (int, float64) {
	prev, cur := s[i-1], s[i]
	pb := body(prev)
	if !isUp(prev) || !isDown(cur) || pb <= 0 {
		return 0, 0
	}
	if cur.Open <= prev.High || cur.Close >= mid(prev) || cur.Close <= prev.Open {
		return 0, 0
	}
	return -1, scale((prev.Close-cur.Close)/pb, 0.5, 1)
}

// matchKicking is a marubozu followed by an opposite-coloured marubozu that
// gaps away from it. The second bar gives the direction.
func matchKicking(s domain.PriceSeries, i int) (int, float64) {
	pdir, pq := matchMarubozu(s, i-1)
	cdir, cq := matchMarubozu(s, i)
	if pdir == 0 || cdir != -pdir {
		return 0, 0
	}
	prev, cur := s[i-1], s[i]
	if cdir > 0 && cur.Low <= prev.High {
		return 0, 0
	}
	if cdir < 0 && cur.High >= prev.Low {
		return 0, 0
	}
	return cdir, math.Min(pq, cq)
}

// ---------------------------------------------------------------------------
// Three-bar rules
// ---------------------------------------------------------------------------

func matchMorningStar(s domain.PriceSeries, i int) (int, float64) {
	a, b, c := s[i-2], s[i-1], s[i]
	ab := body(a)
	if !isDown(a) || !isUp(c) || ab <= 0 || body(b) > 0.3*ab {
		return 0, 0
	}
	if math.Max(b.Open, b.Close) >= a.Close || c.Close <= mid(a) {
		return 0, 0
	}
	return 1, scale((c.Close-a.Close)/ab, 0.5, 1)
}

func matchEveningStar(s domain.PriceSeries, i int) (int, float64) {
	a, b, c := s[i-2], s[i-1], s[i]
	ab := body(a)
	if !isUp(a) || !isDown(c) || ab <= 0 || body(b) > 0.3*ab {
		return 0, 0
	}
	if math.Min(b.Open, b.Close) <= a.Close || c.Close >= mid(a) {
		return 0, 0
	}
	return -1, scale((a.Close-c.Close)/ab, 0.5, 1)
}

func matchThreeWhiteSoldiers(s domain.PriceSeries, i int) (int, float64) {
	worst := math.Inf(1)
	for k := i - 2; k <= i; k++ {
		b := s[k]
		bd := body(b)
		if !isUp(b) || bd <= 0 || upper(b) > 0.5*bd {
			return 0, 0
		}
		if k > i-2 {
			p := s[k-1]
			if b.Close <= p.Close || b.Open < p.Open || b.Open > p.Close {
				return 0, 0
			}
		}
		worst = math.Min(worst, (0.5*bd-upper(b))/(0.5*bd))
	}
	return 1, scale(worst, 0, 1)
}

func matchThreeBlackCrows(s domain.PriceSeries, i int) (int, float64) {
	worst := math.Inf(1)
	for k := i - 2; k <= i; k++ {
		b := s[k]
		bd := body(b)
		if !isDown(b) || bd <= 0 || lower(b) > 0.5*bd {
			return 0, 0
		}
		if k > i-2 {
			p := s[k-1]
			if b.Close >= p.Close || b.Open > p.Open || b.Open < p.Close {
				return 0, 0
			}
		}
		worst = math.Min(worst, (0.5*bd-lower(b))/(0.5*bd))
	}
	return -1, scale(worst, 0, 1)
}

// matchThreeInside is a harami confirmed by a third bar closing beyond the
// first bar's open.
func matchThreeInside(s domain.PriceSeries, i int) (int, float64) {
	dir, q := matchHarami(s, i-1)
	if dir == 0 {
		return 0, 0
	}
	a, c := s[i-2], s[i]
	if dir > 0 && (!isUp(c) || c.Close <= a.Open) {
		return 0, 0
	}
	if dir < 0 && (!isDown(c) || c.Close >= a.Open) {
		return 0, 0
	}
	return dir, q
}

// matchThreeOutside is an engulfing pattern confirmed by a third bar
// continuing in the engulfing direction.
func matchThreeOutside(s domain.PriceSeries, i int) (int, float64) {
	dir, q := matchEngulfing(s, i-1)
	if dir == 0 {
		return 0, 0
	}
	b, c := s[i-1], s[i]
	if dir > 0 && (!isUp(c) || c.Close <= b.Close) {
		return 0, 0
	}
	if dir < 0 && (!isDown(c) || c.Close >= b.Close) {
		return 0, 0
	}
	return dir, q
}

// matchAbandonedBaby is a star whose middle bar is a doji separated from both
// neighbours by full-range gaps. The third bar must close at least 30% into
// the first bar's body.
func matchAbandonedBaby(s domain.PriceSeries, i int) (int, float64) {
	a, b, c := s[i-2], s[i-1], s[i]
	ab := body(a)
	if ab <= 0 || ab < 0.5*span(a) || body(b) > 0.1*span(b) {
		return 0, 0
	}
	switch {
	case isDown(a) && isUp(c) && b.High < a.Low && c.Low > b.High:
		pen := (c.Close - a.Close) / ab
		if pen < 0.3 {
			return 0, 0
		}
		return 1, scale(pen, 0.3, 1)
	case isUp(a) && isDown(c) && b.Low > a.High && c.High < b.Low:
		pen := (a.Close - c.Close) / ab
		if pen < 0.3 {
			return 0, 0
		}
		return -1, scale(pen, 0.3, 1)
	}
	return 0, 0
}

// ---------------------------------------------------------------------------
// Five-bar rules
// ---------------------------------------------------------------------------

// matchBreakaway: a long bar, a same-coloured bar gapping away from its body,
// two bars extending the move, then an opposite bar closing inside the gap.
// Quality is the share of the gap the last bar recovers.
func matchBreakaway(s domain.PriceSeries, i int) (int, float64) {
	a, b, c, d, e := s[i-4], s[i-3], s[i-2], s[i-1], s[i]
	ab := body(a)
	if ab <= 0 || ab < 0.5*span(a) || color(a) == 0 || color(b) != color(a) || color(d) != color(a) || color(e) != -color(a) {
		return 0, 0
	}
	if isDown(a) {
		gap := bodyBottom(a) - bodyTop(b)
		if gap <= 0 || c.High >= b.High || c.Low >= b.Low || d.High >= c.High || d.Low >= c.Low {
			return 0, 0
		}
		if e.Close <= b.Open || e.Close >= a.Close {
			return 0, 0
		}
		return 1, scale((e.Close-b.Open)/(a.Close-b.Open), 0, 1)
	}
	gap := bodyBottom(b) - bodyTop(a)
	if gap <= 0 || c.High <= b.High || c.Low <= b.Low || d.High <= c.High || d.Low <= c.Low {
		return 0, 0
	}
	if e.Close >= b.Open || e.Close <= a.Close {
		return 0, 0
	}
	return -1, scale((b.Open-e.Close)/(b.Open-a.Close), 0, 1)
}

// matchLadderBottom: three falling black bars, a fourth black bar with an
// upper shadow, then a white bar opening above the fourth's body and closing
// above its high. Bullish only.
func matchLadderBottom(s domain.PriceSeries, i int) (int, float64) {
	for k := i - 4; k <= i-1; k++ {
		if !isDown(s[k]) {
			return 0, 0
		}
		if k > i-4 && k < i-1 && (s[k].Open >= s[k-1].Open || s[k].Close >= s[k-1].Close) {
			return 0, 0
		}
	}
	d, e := s[i-1], s[i]
	r := span(d)
	if r <= 0 || upper(d) <= 0.1*r || !isUp(e) || e.Open <= d.Open || e.Close <= d.High {
		return 0, 0
	}
	return 1, scale(upper(d)/r, 0.1, 0.5)
}
