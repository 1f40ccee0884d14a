package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aleeOstovar/chart-pattern-dashboard/internal/domain"
	"github.com/aleeOstovar/chart-pattern-dashboard/internal/pattern"
)

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// readBarsCSV parses OHLCV rows with a header naming at least
// timestamp (or date/time), open, high, low and close. Volume is optional.
func readBarsCSV(r io.Reader) (domain.PriceSeries, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("CSV has no data rows")
	}

	col := map[string]int{}
	for i, h := range records[0] {
		switch name := strings.ToLower(strings.TrimSpace(h)); name {
		case "date", "time", "datetime":
			col["timestamp"] = i
		default:
			col[name] = i
		}
	}
	for _, need := range []string{"timestamp", "open", "high", "low", "close"} {
		if _, ok := col[need]; !ok {
			return nil, fmt.Errorf("CSV header missing %q column", need)
		}
	}

	series := make(domain.PriceSeries, 0, len(records)-1)
	for n, row := range records[1:] {
		line := n + 2
		ts, err := parseTime(row[col["timestamp"]])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		var vals [5]float64
		for k, name := range []string{"open", "high", "low", "close", "volume"} {
			i, ok := col[name]
			if !ok {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, name, err)
			}
			vals[k] = v
		}
		series = append(series, domain.PriceBar{
			Timestamp: ts,
			Open:      vals[0],
			High:      vals[1],
			Low:       vals[2],
			Close:     vals[3],
			Volume:    vals[4],
		})
	}
	return series, nil
}

// parseTime accepts the common layouts above or unix seconds.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

func loadBarsFile(path string) (domain.PriceSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readBarsCSV(f)
}

// loadPatternsFile reads a JSON array of occurrence records produced by an
// external detector.
func loadPatternsFile(path string) ([]pattern.RawOccurrence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw []pattern.RawOccurrence
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return raw, nil
}
