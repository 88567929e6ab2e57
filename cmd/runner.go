package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trackmatch/internal/cache"
	"github.com/desertthunder/trackmatch/internal/matcher"
	"github.com/desertthunder/trackmatch/internal/repositories"
	"github.com/desertthunder/trackmatch/internal/services"
	"github.com/desertthunder/trackmatch/internal/shared"
	"github.com/desertthunder/trackmatch/internal/tasks"
	"github.com/gofrs/flock"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The catalog client and cache backend are built on first use so commands that need neither
// (setup, --help) never touch the network or the disk.
type Runner struct {
	config     *shared.Config
	configPath string
	catalog    services.Catalog
	store      cache.Store
	runs       *repositories.RunRepository
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	closers    []io.Closer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Catalog    services.Catalog
	Store      cache.Store
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		catalog:    opts.Catalog,
		store:      opts.Store,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, matchCommand, lookupCommand, searchCommand, cacheCommand, runsCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Configure loads the config file named by --config before any command runs.
//
// A missing file keeps the embedded defaults; a file that fails to parse or validate is an error.
func (r *Runner) Configure(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := cmd.String("config")
	r.configPath = path

	if _, err := os.Stat(path); err == nil {
		config, err := shared.LoadConfig(path)
		if err != nil {
			return ctx, err
		}
		r.config = config
	} else {
		r.logger.Debug("config file not found, using defaults", "path", path)
	}

	if err := r.config.Validate(); err != nil {
		return ctx, err
	}

	logger := shared.NewLoggerFromConfig(r.config.Log)
	if cmd.Bool("verbose") {
		shared.SetLogLevel(logger, log.DebugLevel)
	}
	r.logger = logger
	return ctx, nil
}

// Close releases every backend opened by the runner.
func (r *Runner) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// catalogClient returns the rate-limited Navidrome client described by the catalog config.
func (r *Runner) catalogClient() services.Catalog {
	if r.catalog != nil {
		return r.catalog
	}

	cfg := r.config.Catalog
	client := services.NewHTTPClient(cfg, r.httpClient.Transport)
	navidrome := services.NewNavidromeService(cfg.URL, client)
	r.catalog = services.NewRateLimitedCatalog(navidrome, cfg.RateLimit, cfg.Burst)
	r.logger.Debug("catalog client ready", "url", cfg.URL, "rate_limit", cfg.RateLimit)
	return r.catalog
}

// openStore opens the cache backend selected by cache.driver.
//
// The sqlite driver also provides run history; the other drivers leave it disabled.
func (r *Runner) openStore(ctx context.Context) (cache.Store, error) {
	if r.store != nil {
		return r.store, nil
	}

	cfg := r.config.Cache
	switch cfg.Driver {
	case "sqlite":
		db, err := shared.OpenCacheDatabase(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open cache database: %w", err)
		}
		r.closers = append(r.closers, db)
		r.store = repositories.NewSnapshotRepository(db)
		r.runs = repositories.NewRunRepository(db)
	case "badger":
		store, err := repositories.OpenBadgerStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, store)
		r.store = store
	case "redis":
		store, err := repositories.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.MaxAge())
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, store)
		r.store = store
	case "memory", "":
		r.store = cache.NewMemoryStore()
	default:
		return nil, fmt.Errorf("%w: unknown cache driver %q", shared.ErrInvalidConfig, cfg.Driver)
	}

	r.logger.Debug("cache backend ready", "driver", cfg.Driver, "path", cfg.Path)
	return r.store, nil
}

// snapshotCache wraps the configured store in a validating [cache.Cache].
func (r *Runner) snapshotCache(ctx context.Context) (*cache.Cache, error) {
	store, err := r.openStore(ctx)
	if err != nil {
		return nil, err
	}
	return cache.New(store, r.logger), nil
}

// newOrchestrator builds the cascade over the catalog client.
func (r *Runner) newOrchestrator() *matcher.Orchestrator {
	return matcher.NewOrchestrator(r.catalogClient(), matchOptions(r.config.Matching), r.logger)
}

// newEngine wires orchestrator, batch matcher, snapshot cache and run history.
func (r *Runner) newEngine(ctx context.Context, concurrency int) (*tasks.PlaylistEngine, error) {
	snapshots, err := r.snapshotCache(ctx)
	if err != nil {
		return nil, err
	}
	if concurrency <= 0 {
		concurrency = r.config.Matching.Concurrency
	}

	batch := tasks.NewBatchMatcher(r.newOrchestrator(), concurrency, r.logger)
	engine := tasks.NewPlaylistEngine(batch, snapshots, r.logger)
	if r.runs != nil {
		engine.WithRunRecorder(r.runs)
	}
	return engine, nil
}

// lockCache takes the advisory cache lock so two reconciliations never interleave snapshot writes.
//
// The returned func releases it. An empty lock path disables locking.
func (r *Runner) lockCache() (func(), error) {
	path := r.config.Cache.LockPath
	if path == "" {
		return func() {}, nil
	}

	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire cache lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrLocked, path)
	}

	r.logger.Debug("cache lock acquired", "path", path)
	return func() {
		if err := lock.Unlock(); err != nil {
			r.logger.Warn("failed to release cache lock", "path", path, "error", err)
		}
	}, nil
}

// matchOptions maps the [matching] config section onto cascade options.
func matchOptions(cfg shared.MatchingConfig) matcher.Options {
	opts := matcher.DefaultOptions()
	opts.EnableIdentifier = cfg.EnableISRC
	opts.EnableStrict = cfg.EnableStrict
	opts.EnableFuzzy = cfg.EnableFuzzy
	if cfg.FuzzyThreshold > 0 {
		opts.FuzzyThreshold = cfg.FuzzyThreshold
	}
	if cfg.StrictResults > 0 {
		opts.StrictResults = cfg.StrictResults
	}
	if cfg.FuzzyResults > 0 {
		opts.FuzzyResults = cfg.FuzzyResults
	}
	return opts
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
