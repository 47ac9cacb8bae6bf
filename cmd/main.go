package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/huecast/internal/adapters/http/api"
	"github.com/okian/huecast/internal/adapters/postgres"
	"github.com/okian/huecast/internal/adapters/repository"
	app "github.com/okian/huecast/internal/app"
	"github.com/okian/huecast/internal/config"
	"github.com/okian/huecast/internal/domain/scoring"
	"github.com/okian/huecast/internal/jobs"
	"github.com/okian/huecast/internal/simulate"
	"github.com/okian/huecast/pkg/logger"
	"github.com/okian/huecast/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

var errUsage = errors.New("usage")

// env carries what every command needs.
type env struct {
	cfg    *config.Config
	stdout io.Writer
	log    logger.Logger
}

type command struct {
	summary string
	run     func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{ //nolint:gochecknoglobals // command table
	"explore":   {"stream light events from Postgres and print them", runExplore},
	"export-db": {"resample Postgres events into the sample store", runExportDB},
	"import":    {"resample timestamp,state CSV events into the sample store", runImport},
	"simulate":  {"resample a synthetic light history into the sample store", runSimulate},
	"train":     {"train a network on stored samples", runTrain},
	"predict":   {"evaluate a network against stored samples", runPredict},
	"serve":     {"run the HTTP ingest and prediction service", runServe},
}

var commandOrder = []string{"explore", "export-db", "import", "simulate", "train", "predict", "serve"} //nolint:gochecknoglobals // usage order

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run parses the global flags, loads configuration and dispatches to a
// command. Logs go to stderr; command output goes to stdout.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("huecast", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "YAML config file (overrides "+config.EnvConfigFile+")")
	debug := fs.Bool("debug", false, "enable debug logging")
	fs.Usage = func() { usage(fs, stderr) }
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return exitUsage
	}
	name := fs.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", name)
		fs.Usage()
		return exitUsage
	}

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFile(ctx, *configPath)
	} else {
		cfg, err = config.Load(ctx)
	}
	if err != nil {
		fmt.Fprintln(stderr, "failed to load config: "+err.Error())
		return exitError
	}

	if err := logger.InitWithWriter(stderr, cfg.LogFormat); err != nil {
		fmt.Fprintln(stderr, "failed to initialize logging: "+err.Error())
		return exitError
	}
	log := logger.Get()
	level := cfg.LogLevel
	if *debug {
		level = "debug"
	}
	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(level); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", level), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	e := &env{cfg: cfg, stdout: stdout, log: log.Named(name)}
	if err := cmd.run(ctx, e, fs.Args()[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(stderr, "%s: %v\n", name, err)
			return exitUsage
		}
		e.log.Error(ctx, "command failed", logger.Error(err))
		fmt.Fprintf(stderr, "%s: %v\n", name, err)
		return exitError
	}
	return exitOK
}

func usage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintln(w, "usage: huecast [-config file] [-debug] <command> [flags]")
	fmt.Fprintln(w, "\ncommands:")
	for _, name := range commandOrder {
		fmt.Fprintf(w, "  %-10s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(w, "\nglobal flags:")
	fs.PrintDefaults()
}

// subcommand returns a flag set for name. Parse errors are returned to
// run instead of being printed or exiting.
func subcommand(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: unexpected arguments %v", errUsage, fs.Args())
	}
	return nil
}

func rangeFlags(fs *flag.FlagSet) (from, to *string) {
	from = fs.String("from", "", "first day, YYYY-MM-DD")
	to = fs.String("to", "", "last day, YYYY-MM-DD (inclusive)")
	return from, to
}

func openSource(ctx context.Context, e *env) (*postgres.Source, error) {
	if e.cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("%w: database_url is required", config.ErrInvalidConfig)
	}
	return postgres.Open(ctx, e.cfg.DatabaseURL,
		postgres.WithLightID(e.cfg.LightID),
		postgres.WithLogger(e.log.Named("postgres")))
}

func openStore(ctx context.Context, e *env) (repository.Store, error) {
	store, err := repository.NewStore(e.cfg.StoreDriver, e.cfg.StorePath)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func closeWith(ctx context.Context, e *env, what string, c io.Closer) {
	if err := c.Close(); err != nil {
		e.log.Warn(ctx, "close "+what, logger.Error(err))
	}
}

func runExplore(ctx context.Context, e *env, args []string) error {
	fs := subcommand("explore")
	from, to := rangeFlags(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	r, err := jobs.ParseRange(*from, *to)
	if err != nil {
		return err
	}
	src, err := openSource(ctx, e)
	if err != nil {
		return err
	}
	defer closeWith(ctx, e, "postgres", src)

	n, err := jobs.Explore(ctx, src, r, e.stdout)
	e.log.Info(ctx, "explore finished", logger.Int("events", n))
	return err
}

func runExportDB(ctx context.Context, e *env, args []string) error {
	fs := subcommand("export-db")
	from, to := rangeFlags(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	r, err := jobs.ParseRange(*from, *to)
	if err != nil {
		return err
	}
	src, err := openSource(ctx, e)
	if err != nil {
		return err
	}
	defer closeWith(ctx, e, "postgres", src)
	store, err := openStore(ctx, e)
	if err != nil {
		return err
	}
	defer closeWith(ctx, e, "store", store)

	res, err := jobs.ExportDB(ctx, src, store, r, e.cfg.SampleInterval())
	fmt.Fprintf(e.stdout, "%d events, %d samples, %d skipped\n", res.Events, res.Samples, res.Skipped)
	return err
}

func runImport(ctx context.Context, e *env, args []string) error {
	fs := subcommand("import")
	file := fs.String("file", "", "CSV file of timestamp,state records")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("%w: --file is required", errUsage)
	}
	f, err := os.Open(*file)
	if err != nil {
		return err
	}
	defer closeWith(ctx, e, "csv", f)
	store, err := openStore(ctx, e)
	if err != nil {
		return err
	}
	defer closeWith(ctx, e, "store", store)

	res, err := jobs.Import(ctx, f, store, e.cfg.SampleInterval())
	fmt.Fprintf(e.stdout, "%d events, %d samples, %d skipped\n", res.Events, res.Samples, res.Skipped)
	return err
}

func runSimulate(ctx context.Context, e *env, args []string) error {
	fs := subcommand("simulate")
	from, to := rangeFlags(fs)
	seed := fs.Uint64("seed", e.cfg.Seed, "random seed")
	if err := parse(fs, args); err != nil {
		return err
	}
	r, err := jobs.ParseRange(*from, *to)
	if err != nil {
		return err
	}
	store, err := openStore(ctx, e)
	if err != nil {
		return err
	}
	defer closeWith(ctx, e, "store", store)

	cfg := simulate.Config{From: r.From, To: r.To, LightID: e.cfg.LightID, Seed: *seed}
	res, err := jobs.Simulate(ctx, cfg, store, e.cfg.SampleInterval())
	fmt.Fprintf(e.stdout, "%d events, %d samples\n", res.Events, res.Samples)
	return err
}

func runTrain(ctx context.Context, e *env, args []string) error {
	fs := subcommand("train")
	from, to := rangeFlags(fs)
	layers := fs.String("layers", e.cfg.Layers, "comma separated layer sizes")
	epochs := fs.Int("epochs", e.cfg.Epochs, "training epochs")
	model := fs.String("model", e.cfg.ModelPath, "model output path")
	seed := fs.Uint64("seed", e.cfg.Seed, "random seed, 0 for random")
	if err := parse(fs, args); err != nil {
		return err
	}
	r, err := jobs.ParseRange(*from, *to)
	if err != nil {
		return err
	}
	cfg := *e.cfg
	cfg.Layers = *layers
	nc, err := cfg.NetworkConfig()
	if err != nil {
		return err
	}
	store, err := openStore(ctx, e)
	if err != nil {
		return err
	}
	defer closeWith(ctx, e, "store", store)

	_, err = jobs.Train(ctx, store, r, jobs.TrainOptions{
		Network:   nc,
		Epochs:    *epochs,
		ModelPath: *model,
		Seed:      *seed,
	}, e.stdout)
	return err
}

func runPredict(ctx context.Context, e *env, args []string) error {
	fs := subcommand("predict")
	from, to := rangeFlags(fs)
	model := fs.String("model", e.cfg.ModelPath, "model path")
	threshold := fs.Float64("threshold", e.cfg.Threshold, "probability at which the light is predicted on")
	if err := parse(fs, args); err != nil {
		return err
	}
	r, err := jobs.ParseRange(*from, *to)
	if err != nil {
		return err
	}
	store, err := openStore(ctx, e)
	if err != nil {
		return err
	}
	defer closeWith(ctx, e, "store", store)

	_, err = jobs.Predict(ctx, store, r, *model, scoring.NewScorer(scoring.WithThreshold(*threshold)), e.stdout)
	return err
}

func runServe(ctx context.Context, e *env, args []string) error {
	fs := subcommand("serve")
	if err := parse(fs, args); err != nil {
		return err
	}
	metrics.RegisterRuntimeCollectors()

	store, err := repository.NewStore(e.cfg.StoreDriver, e.cfg.StorePath)
	if err != nil {
		return err
	}
	svc := app.New(
		app.WithLogger(e.log),
		app.WithStore(store),
		app.WithQueueSize(e.cfg.EventQueueSize),
		app.WithDedupeSize(e.cfg.DedupeSize),
		app.WithSampleInterval(e.cfg.SampleInterval()),
		app.WithThreshold(e.cfg.Threshold),
	)
	if err := svc.LoadModel(e.cfg.ModelPath); err != nil {
		e.log.Warn(ctx, "serving without a model", logger.String("path", e.cfg.ModelPath), logger.Error(err))
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	go startServiceMetricsUpdater(ctx, svc)

	mux := http.NewServeMux()
	api.NewServer(svc, svc).Register(ctx, mux)
	srv := &http.Server{
		Addr:              e.cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		e.log.Info(ctx, "starting HTTP server", logger.String("addr", e.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serveErr:
	}
	e.log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), e.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		e.log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		e.log.Error(ctx, "service shutdown failed", logger.Error(err))
	}
	e.log.Info(ctx, "server stopped")
	return runErr
}

// startServiceMetricsUpdater periodically refreshes gauges derived from
// service statistics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateServiceMetrics updates service-level metrics.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()
	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	if loaded, ok := stats["modelLoaded"].(bool); ok {
		metrics.UpdateModelLoaded(loaded)
	}
}
