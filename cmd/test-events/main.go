package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/huecast/internal/simulate"
	"github.com/okian/huecast/pkg/logger"
)

// Default configuration constants.
const (
	defaultTimeout     = 30 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

// test-events replays a synthetic light history against a running
// huecast service.
func main() {
	var (
		baseURL = flag.String("url", "http://localhost:9080", "Base URL of the service")
		from    = flag.String("from", "", "first day, YYYY-MM-DD (default: 14 days ago)")
		to      = flag.String("to", "", "last day, YYYY-MM-DD (default: yesterday)")
		seed    = flag.Uint64("seed", 1, "random seed of the history")
		lightID = flag.String("light", "/lights/3", "light id used to derive event ids")
		timeout = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logging: "+err.Error())
		os.Exit(1)
	}
	log := logger.Get().Named("test-events")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultTestTimeout)
	defer cancel()

	cfg, err := historyConfig(*from, *to, time.Now().UTC())
	if err != nil {
		log.Error(ctx, "bad date range", logger.Error(err))
		os.Exit(2)
	}
	cfg.Seed = *seed
	cfg.LightID = *lightID

	events, err := simulate.Generate(cfg)
	if err != nil {
		log.Error(ctx, "generate events", logger.Error(err))
		os.Exit(1)
	}
	log.Info(ctx, "replaying synthetic history",
		logger.Int("events", len(events)),
		logger.String("url", *baseURL))

	st, err := simulate.NewSubmitter(*baseURL, *timeout).Submit(ctx, events)
	if err != nil {
		log.Error(ctx, "replay interrupted", logger.Error(err))
	}
	fmt.Printf("submitted %d: accepted %d, duplicate %d, failed %d in %s\n",
		st.Submitted, st.Accepted, st.Duplicate, st.Failed, st.Duration.Round(time.Millisecond))
	if err != nil || st.Failed > 0 {
		os.Exit(1)
	}
}

// historyConfig fills missing bounds relative to now: the last fourteen
// full days.
func historyConfig(from, to string, now time.Time) (simulate.Config, error) {
	var cfg simulate.Config
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	cfg.To = today.AddDate(0, 0, -1)
	cfg.From = today.AddDate(0, 0, -14)
	if from != "" {
		t, err := time.Parse(time.DateOnly, from)
		if err != nil {
			return cfg, err
		}
		cfg.From = t
	}
	if to != "" {
		t, err := time.Parse(time.DateOnly, to)
		if err != nil {
			return cfg, err
		}
		cfg.To = t
	}
	return cfg, nil
}
