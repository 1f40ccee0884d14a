package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/aleeOstovar/chart-pattern-dashboard/internal/backtest"
	"github.com/aleeOstovar/chart-pattern-dashboard/internal/config"
	"github.com/aleeOstovar/chart-pattern-dashboard/internal/marketdata"
	"github.com/aleeOstovar/chart-pattern-dashboard/internal/pattern"
	"github.com/aleeOstovar/chart-pattern-dashboard/internal/service"
	"github.com/aleeOstovar/chart-pattern-dashboard/internal/store"
	"github.com/aleeOstovar/chart-pattern-dashboard/internal/util"
	"github.com/aleeOstovar/chart-pattern-dashboard/pkg/patternlab"
)

const version = "0.1.0"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: patternlab-cli <command> [options]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  version    Print the CLI version\n")
		fmt.Fprintf(os.Stderr, "  patterns   List detectable patterns\n")
		fmt.Fprintf(os.Stderr, "  detect     Detect patterns in a CSV file or a server-side symbol\n")
		fmt.Fprintf(os.Stderr, "  backtest   Backtest patterns on a CSV file or a server-side symbol\n")
		fmt.Fprintf(os.Stderr, "  runs       List backtest runs stored on a server\n")
		fmt.Fprintf(os.Stderr, "  report     Print the report of a stored run\n")
		fmt.Fprintf(os.Stderr, "  sync       Download bars from Alpaca into the local parquet store\n")
		fmt.Fprintf(os.Stderr, "\n")
	}

	if len(os.Args) < 2 {
		flag.Usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := loadConfig()
	args := os.Args[2:]

	var err error
	switch os.Args[1] {
	case "version":
		fmt.Printf("patternlab-cli %s\n", version)
	case "patterns":
		for _, name := range pattern.NewRuleDetector(0).Patterns() {
			fmt.Println(name)
		}
	case "detect":
		err = runDetect(ctx, cfg, args, os.Stdout)
	case "backtest":
		err = runBacktest(ctx, cfg, args, os.Stdout)
	case "runs":
		err = runRuns(ctx, args, os.Stdout)
	case "report":
		err = runReport(ctx, args, os.Stdout)
	case "sync":
		err = runSync(ctx, cfg, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		flag.Usage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

// loadConfig reads the config file when present and falls back to defaults.
func loadConfig() *config.Config {
	cfgPath := "config/patternlab.yaml"
	if p := os.Getenv("PATTERNLAB_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Fatalf("loading config: %v", err)
		}
		cfg = config.Default()
	}
	util.SetDefault(util.NewLoggerTo(os.Stderr, cfg.Logging.Level, "text"))
	return cfg
}

func localService(cfg *config.Config) *service.Service {
	return service.New(service.Options{
		Detector: pattern.NewRuleDetector(cfg.Detection.ConfidenceThreshold),
		Backtester: backtest.NewBacktester(backtest.Config{
			TransactionCost: cfg.Backtest.TransactionCost,
			MinTrades:       cfg.Backtest.MinTrades,
			Workers:         cfg.Backtest.Workers,
		}, nil),
		Defaults: backtest.Params{
			HoldingPeriod: cfg.Backtest.HoldingPeriod,
			StopLoss:      cfg.Backtest.StopLoss,
			TakeProfit:    cfg.Backtest.TakeProfit,
		},
	})
}

// sourceFlags are shared by detect and backtest.
type sourceFlags struct {
	csv       string
	server    string
	symbol    string
	timeframe string
	patterns  string
	threshold float64
}

func (s *sourceFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&s.csv, "csv", "", "OHLCV CSV file to analyse locally")
	fs.StringVar(&s.server, "server", "", "patternlab-server base URL, e.g. http://localhost:8080")
	fs.StringVar(&s.symbol, "symbol", "", "symbol to fetch on the server")
	fs.StringVar(&s.timeframe, "timeframe", "", "bar interval for -symbol (1m, 5m, 15m, 30m, 1h, 4h, 1d)")
	fs.StringVar(&s.patterns, "patterns", "", "comma-separated pattern names to detect (default all)")
	fs.Float64Var(&s.threshold, "threshold", 0, "minimum detection confidence (default from config)")
}

func (s *sourceFlags) source() (service.Source, error) {
	if s.csv != "" {
		bars, err := loadBarsFile(s.csv)
		if err != nil {
			return service.Source{}, err
		}
		return service.Source{Bars: bars}, nil
	}
	if s.server == "" || s.symbol == "" {
		return service.Source{}, fmt.Errorf("either -csv or -server with -symbol is required")
	}
	return service.Source{Symbol: strings.ToUpper(s.symbol), Timeframe: s.timeframe}, nil
}

func (s *sourceFlags) names() []string {
	if s.patterns == "" {
		return nil
	}
	var out []string
	for _, n := range strings.Split(s.patterns, ",") {
		if n = strings.ToUpper(strings.TrimSpace(n)); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func (s *sourceFlags) thresholdPtr() *float64 {
	if s.threshold <= 0 {
		return nil
	}
	return &s.threshold
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

func runDetect(ctx context.Context, cfg *config.Config, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("detect", flag.ExitOnError)
	var sf sourceFlags
	sf.register(fs)
	analyze := fs.Bool("analyze", false, "include per-occurrence price and volume analysis")
	asJSON := fs.Bool("json", false, "print the raw JSON response")
	fs.Parse(args)

	src, err := sf.source()
	if err != nil {
		return err
	}
	req := service.DetectRequest{
		Source:              src,
		PatternsToDetect:    sf.names(),
		ConfidenceThreshold: sf.thresholdPtr(),
		Analyze:             *analyze,
	}

	var resp *service.DetectResponse
	if sf.server != "" && sf.csv == "" {
		resp, err = patternlab.NewClient(sf.server).Detect(ctx, req)
	} else {
		resp, err = localService(cfg).Detect(ctx, req)
	}
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(w, resp)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATTERN\tTYPE\tCONFIDENCE\tSTART\tEND")
	for _, o := range resp.Patterns {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%d\t%d\n", o.PatternName, o.PatternType, o.Confidence, o.StartIndex, o.EndIndex)
	}
	fmt.Fprintf(tw, "\n%d occurrences in %d bars\n", len(resp.Patterns), resp.Bars)
	return tw.Flush()
}

func runBacktest(ctx context.Context, cfg *config.Config, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("backtest", flag.ExitOnError)
	var sf sourceFlags
	sf.register(fs)
	patternsFile := fs.String("patterns-file", "", "JSON array of pre-detected occurrences")
	holding := fs.Int("holding", cfg.Backtest.HoldingPeriod, "maximum bars in a position")
	stopLoss := fs.Float64("stop-loss", cfg.Backtest.StopLoss, "stop loss as a negative fraction")
	takeProfit := fs.Float64("take-profit", cfg.Backtest.TakeProfit, "take profit as a positive fraction")
	dryRun := fs.Bool("dry-run", false, "do not store the run on the server")
	asJSON := fs.Bool("json", false, "print the raw JSON response instead of the report")
	fs.Parse(args)

	src, err := sf.source()
	if err != nil {
		return err
	}
	req := service.BacktestRequest{
		Source:              src,
		PatternsToDetect:    sf.names(),
		ConfidenceThreshold: sf.thresholdPtr(),
		HoldingPeriod:       holding,
		StopLoss:            stopLoss,
		TakeProfit:          takeProfit,
		DryRun:              *dryRun,
	}
	if *patternsFile != "" {
		if req.Patterns, err = loadPatternsFile(*patternsFile); err != nil {
			return err
		}
	}

	start := time.Now()
	var resp *service.BacktestResponse
	if sf.server != "" && sf.csv == "" {
		resp, err = patternlab.NewClient(sf.server).RunBacktest(ctx, req)
	} else {
		resp, err = localService(cfg).Backtest(ctx, req)
	}
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(w, resp)
	}

	fmt.Fprint(w, resp.Report)
	for _, warn := range resp.Result.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
	if resp.RunID != "" {
		fmt.Fprintf(w, "run: %s\n", resp.RunID)
	}
	fmt.Fprintf(w, "elapsed: %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func runRuns(ctx context.Context, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	server := fs.String("server", "http://localhost:8080", "patternlab-server base URL")
	limit := fs.Int("limit", 20, "maximum runs to list")
	fs.Parse(args)

	runs, err := patternlab.NewClient(*server).ListRuns(ctx, *limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tSYMBOL\tTF\tTRADES\tWIN RATE\tAVG RETURN")
	for _, r := range runs {
		trades, win, avg := 0, 0.0, 0.0
		if r.Summary != nil {
			trades, win, avg = r.Summary.TotalTrades, r.Summary.WinRate, r.Summary.AvgReturn
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%.1f%%\t%.2f%%\n",
			r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Symbol, r.Timeframe, trades, win*100, avg*100)
	}
	return tw.Flush()
}

func runReport(ctx context.Context, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	server := fs.String("server", "http://localhost:8080", "patternlab-server base URL")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: patternlab-cli report [-server URL] <run-id>")
	}

	report, err := patternlab.NewClient(*server).GetReport(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	fmt.Fprint(w, report)
	return nil
}

func runSync(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	symbols := fs.String("symbols", "", "comma-separated symbols to download")
	timeframe := fs.String("timeframe", cfg.MarketData.DefaultTimeframe, "bar interval")
	days := fs.Int("days", cfg.MarketData.LookbackDays, "days of history to download")
	fs.Parse(args)

	if *symbols == "" {
		return fmt.Errorf("-symbols is required")
	}
	if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
		return fmt.Errorf("alpaca credentials not configured")
	}
	tf, err := marketdata.ParseTimeframe(*timeframe)
	if err != nil {
		return err
	}

	logger := util.NewLoggerTo(os.Stderr, cfg.Logging.Level, "text")
	src := marketdata.NewAlpacaSource(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret,
		cfg.Alpaca.DataURL, cfg.Alpaca.Feed, cfg.Alpaca.RateLimit, logger)
	ps := store.NewParquetStore(cfg.Storage.DataDir)

	end := time.Now().UTC().Truncate(tf.Duration())
	start := end.AddDate(0, 0, -*days)
	for _, sym := range strings.Split(*symbols, ",") {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		bars, err := src.FetchBars(ctx, sym, tf, start, end)
		if err != nil {
			return fmt.Errorf("fetching %s: %w", sym, err)
		}
		if err := ps.WriteBars(ctx, sym, string(tf), bars); err != nil {
			return fmt.Errorf("storing %s: %w", sym, err)
		}
		logger.Info("synced bars", "symbol", sym, "timeframe", string(tf), "bars", len(bars))
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
