package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/canvasinfo/canvasinfo/config"
	"github.com/canvasinfo/canvasinfo/internal/application/command"
	"github.com/canvasinfo/canvasinfo/internal/domain/export"
	"github.com/canvasinfo/canvasinfo/internal/domain/roster"
	"github.com/canvasinfo/canvasinfo/internal/infrastructure/external/canvas"
	"github.com/canvasinfo/canvasinfo/internal/infrastructure/persistence/jsonfile"
	"github.com/canvasinfo/canvasinfo/internal/infrastructure/persistence/postgres"
	rediscache "github.com/canvasinfo/canvasinfo/internal/infrastructure/persistence/redis"
	"github.com/canvasinfo/canvasinfo/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPLICATION WIRING
// ══════════════════════════════════════════════════════════════════════════════

// app holds the process wide state shared by all subcommands.
type app struct {
	stdout io.Writer
	stderr io.Writer

	// Global flags
	configPath  string
	courseID    string
	baseURL     string
	accessToken string
	verbose     bool

	cfg      *config.Config
	log      *logger.Logger
	reporter *consoleReporter

	// httpClient overrides the Canvas HTTP client (tests).
	httpClient *http.Client

	closers []func()
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout:   stdout,
		stderr:   stderr,
		log:      logger.Nop(),
		reporter: newConsoleReporter(stdout, stderr),
	}
}

// setup loads the configuration, applies the global flags and builds the
// logger. It runs before every subcommand.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	if a.courseID != "" {
		cfg.SelectCourse(a.courseID)
	}
	if a.baseURL != "" {
		cfg.Course.BaseURL = a.baseURL
	}
	if a.accessToken != "" {
		cfg.Course.AccessToken = a.accessToken
	}

	level := logger.ParseLevel(cfg.Observability.LogLevel)
	if a.verbose {
		level = logger.LevelDebug
	}
	a.log = logger.New(logger.Options{
		Output: a.stderr,
		Level:  level,
		JSON:   cfg.JSONLogs(),
	})
	a.cfg = cfg

	a.log.Debug("configuration loaded",
		logger.Operation(cmd.Name()),
		logger.Path(cfg.Path),
		logger.String("course", cfg.Course.CourseID),
	)
	return nil
}

// close releases connections in reverse order. Safe to call more than once.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	_ = a.log.Sync()
}

// canvasClient builds the Canvas client for the selected course.
func (a *app) canvasClient(course config.Course) (*canvas.Client, error) {
	cc := canvas.DefaultClientConfig(course.BaseURL, course.AccessToken)
	cc.Timeout = a.cfg.Canvas.RequestTimeout
	cc.GroupConcurrency = a.cfg.Canvas.GroupConcurrency
	cc.RateLimiterConfig.RequestsPerSecond = float64(a.cfg.Canvas.RateLimit)
	cc.RateLimiterConfig.BurstSize = a.cfg.Canvas.RateLimitBurst
	cc.Logger = a.log
	cc.HTTPClient = a.httpClient

	return canvas.NewClient(cc)
}

var _ command.Invalidator = (*rediscache.CachedSource)(nil)

// courseSource returns the Canvas client, wrapped in the Redis course cache
// when one is configured and reachable. The cache honors info --refresh.
func (a *app) courseSource(ctx context.Context, client *canvas.Client, course config.Course, useCache bool) roster.CourseSource {
	if !useCache || !a.cfg.Redis.Enabled() {
		return client
	}

	cache, err := a.redisCache(ctx)
	if err != nil {
		a.log.Warn("course cache unavailable, reading from Canvas", logger.Err(err))
		return client
	}

	host := course.BaseURL
	if u, err := url.Parse(course.BaseURL); err == nil && u.Host != "" {
		host = u.Host
	}
	return rediscache.NewCachedSource(client, cache, host, a.cfg.Redis.TTL, a.log)
}

func (a *app) redisCache(ctx context.Context) (*rediscache.Cache, error) {
	rc := rediscache.DefaultConfig()
	rc.Addr = a.cfg.Redis.Addr
	rc.Password = a.cfg.Redis.Password
	rc.DB = a.cfg.Redis.DB
	rc.TTL = a.cfg.Redis.TTL
	if a.cfg.Redis.DialTimeout > 0 {
		rc.DialTimeout = a.cfg.Redis.DialTimeout
	}

	cache, err := rediscache.NewCache(ctx, rc)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = cache.Close() })
	return cache, nil
}

// exportRuns opens the export history. It returns nil, nil when no
// database is configured.
func (a *app) exportRuns(ctx context.Context) (export.Repository, error) {
	if !a.cfg.Database.Enabled() {
		return nil, nil
	}

	pc := postgres.DefaultConfig(a.cfg.Database.URL)
	if a.cfg.Database.MaxConns > 0 {
		pc.MaxConns = int32(a.cfg.Database.MaxConns)
	}
	if a.cfg.Database.ConnectTimeout > 0 {
		pc.ConnectTimeout = a.cfg.Database.ConnectTimeout
	}

	conn, err := postgres.NewConnection(ctx, pc)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, conn.Close)

	if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate export history: %w", err)
	}
	return postgres.NewExportRepository(conn), nil
}

// snapshots returns the offline snapshot store.
func (a *app) snapshots() *jsonfile.Provider {
	return jsonfile.New(a.cfg.Snapshot.Dir)
}
