package pattern

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/aleeOstovar/chart-pattern-dashboard/internal/domain"
)

// RawOccurrence is one loosely typed detector record as decoded from JSON.
type RawOccurrence map[string]any

// ParseOccurrences converts raw detector records into validated occurrences
// for a series of n bars. Records that are malformed or out of range are
// dropped and described in the returned warnings.
func ParseOccurrences(raw []RawOccurrence, n int) ([]domain.PatternOccurrence, []string) {
	var (
		out      []domain.PatternOccurrence
		warnings []string
	)
	for i, r := range raw {
		occ, err := parseOne(r)
		if err == nil {
			err = occ.Validate(n)
		}
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("occurrence %d dropped: %v", i, err))
			continue
		}
		out = append(out, occ)
	}
	return out, warnings
}

func parseOne(r RawOccurrence) (domain.PatternOccurrence, error) {
	var occ domain.PatternOccurrence

	name, ok := r["pattern_name"].(string)
	if !ok || name == "" {
		return occ, fmt.Errorf("%w: missing pattern_name", domain.ErrInvalidOccurrence)
	}
	occ.PatternName = name

	conf, err := number(r, "confidence")
	if err != nil {
		return occ, err
	}
	occ.Confidence = conf

	if occ.StartIndex, err = index(r, "start_index"); err != nil {
		return occ, err
	}
	if occ.EndIndex, err = index(r, "end_index"); err != nil {
		return occ, err
	}

	typ, _ := r["pattern_type"].(string)
	occ.PatternType = domain.PatternType(strings.ToLower(typ))

	occ.Method, _ = r["detection_method"].(string)
	return occ, nil
}

func number(r RawOccurrence, key string) (float64, error) {
	switch v := r[key].(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", domain.ErrInvalidOccurrence, key, err)
		}
		return f, nil
	case nil:
		return 0, fmt.Errorf("%w: missing %s", domain.ErrInvalidOccurrence, key)
	default:
		return 0, fmt.Errorf("%w: %s has type %T", domain.ErrInvalidOccurrence, key, v)
	}
}

func index(r RawOccurrence, key string) (int, error) {
	f, err := number(r, key)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s %v is not an integer", domain.ErrInvalidOccurrence, key, f)
	}
	return int(f), nil
}
