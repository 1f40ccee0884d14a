package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	alpacamd "github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"github.com/aleeOstovar/chart-pattern-dashboard/internal/domain"
	"github.com/aleeOstovar/chart-pattern-dashboard/internal/util"
)

// AlpacaSource fetches historical bars from the Alpaca market-data API.
type AlpacaSource struct {
	client  *alpacamd.Client
	feed    string
	limiter *util.RateLimiter
	log     *slog.Logger
}

// NewAlpacaSource creates an AlpacaSource. An empty dataURL uses the SDK
// default endpoint; perMinute bounds outgoing requests.
func NewAlpacaSource(apiKey, apiSecret, dataURL, feed string, perMinute int, log *slog.Logger) *AlpacaSource {
	opts := alpacamd.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	if log == nil {
		log = slog.Default()
	}

	return &AlpacaSource{
		client:  alpacamd.NewClient(opts),
		feed:    feed,
		limiter: util.NewRateLimiter(perMinute),
		log:     log.With("source", "alpaca"),
	}
}

// FetchBars requests bars for symbol, retrying transient failures with
// backoff.
func (a *AlpacaSource) FetchBars(ctx context.Context, symbol string, tf Timeframe, start, end time.Time) (domain.PriceSeries, error) {
	atf, err := tf.alpaca()
	if err != nil {
		return nil, err
	}
	symbol = strings.ToUpper(symbol)

	var bars []alpacamd.Bar
	err = util.Retry(ctx, 3, time.Second, func() error {
		if err := a.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}
		var ferr error
		bars, ferr = a.client.GetBars(symbol, alpacamd.GetBarsRequest{
			TimeFrame: atf,
			Start:     start,
			End:       end,
			Feed:      a.feed,
		})
		if ferr != nil {
			a.log.Warn("GetBars failed", "symbol", symbol, "timeframe", tf, "error", ferr)
		}
		return ferr
	})
	if err != nil {
		return nil, fmt.Errorf("GetBars %s %s: %w", symbol, tf, err)
	}

	series := make(domain.PriceSeries, 0, len(bars))
	for _, b := range bars {
		series = append(series, domain.PriceBar{
			Timestamp: b.Timestamp.UTC(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    float64(b.Volume),
		})
	}
	a.log.Debug("fetched bars", "symbol", symbol, "timeframe", tf, "count", len(series))
	return series, nil
}
