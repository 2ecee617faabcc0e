package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rupamthxt/lookalike/internal/cluster"
	"github.com/rupamthxt/lookalike/internal/config"
	vectorHttp "github.com/rupamthxt/lookalike/internal/http"
	"github.com/rupamthxt/lookalike/internal/logging"
	"github.com/rupamthxt/lookalike/internal/metrics"
	"github.com/rupamthxt/lookalike/internal/store"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load the catalog and serve the matching API",
		RunE:  runServe,
	}
	addMatchingFlags(cmd)
	cmd.Flags().String("addr", "", "Listen address")
	cmd.Flags().String("join", "", "HTTP URL of a running cluster member to join on start")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resolve := sourceResolver(cfg)
	dim := cfg.Matching.ExpectedDimension
	scoreMode, err := store.ParseScoreMode(cfg.Matching.ScoreMode)
	if err != nil {
		return err
	}

	// Nothing is served until the catalog has loaded and validated.
	src, err := resolve(ctx, cfg.Catalog.Path)
	if err != nil {
		return err
	}
	cat, err := store.LoadSource(ctx, src, dim)
	log.LogCatalogLoad(ctx, src.String(), rowsOf(cat), dim, checksumOf(cat), err)
	if err != nil {
		return err
	}

	engine, err := store.NewEngine(cat, store.MatchOptions{
		TopK:      cfg.Matching.TopK,
		Threshold: cfg.Matching.Threshold,
	})
	if err != nil {
		return err
	}
	metrics.CatalogRows.Set(float64(cat.Len()))

	var (
		reloader vectorHttp.Reloader
		joiner   vectorHttp.Joiner
	)
	if cfg.Cluster.Enabled {
		node, err := startCluster(ctx, cfg, engine, resolve, log)
		if err != nil {
			return err
		}
		defer node.Shutdown()
		reloader = &raftReloader{node: node, pin: pinFor(cfg)}
		joiner = node
	} else {
		reloader = &localReloader{
			engine:  engine,
			dim:     dim,
			resolve: resolve,
			pin:     pinFor(cfg),
			log:     log,
		}
	}

	if cfg.Catalog.Watch {
		startWatcher(ctx, cfg, src, engine, log)
	}

	if cfg.Server.AdminToken == "" {
		log.Warn("server.admin_token is not set, /admin routes are disabled")
	}
	app := newServer(cfg, engine, scoreMode, reloader, joiner, log, true)

	errCh := make(chan error, 1)
	go func() {
		log.Info("lookalike listening", "addr", cfg.Server.Addr, "rows", cat.Len(), "dimension", cat.Dim())
		errCh <- app.Listen(cfg.Server.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.ShutdownWithContext(shutdownCtx)
}

func newServer(cfg *config.Config, engine *store.Engine, scoreMode store.ScoreMode, reloader vectorHttp.Reloader, joiner vectorHttp.Joiner, log *logging.Logger, accessLog bool) *fiber.App {
	handler := vectorHttp.NewHandler(engine, scoreMode, reloader, joiner, log, version)
	return vectorHttp.NewApp(handler, vectorHttp.ServerOptions{
		AllowOrigins: cfg.Server.AllowOrigins,
		BodyLimit:    cfg.Server.BodyLimit,
		AdminToken:   cfg.Server.AdminToken,
		AccessLog:    accessLog,
	})
}

func sourceResolver(cfg *config.Config) cluster.SourceResolver {
	opts := store.S3Options{Region: cfg.Catalog.S3Region, Endpoint: cfg.Catalog.S3Endpoint}
	return func(ctx context.Context, location string) (store.Source, error) {
		return store.ParseSource(ctx, location, opts)
	}
}

func startWatcher(ctx context.Context, cfg *config.Config, src store.Source, engine *store.Engine, log *logging.Logger) {
	file, ok := src.(store.FileSource)
	if !ok {
		log.Warn("catalog.watch only applies to file catalogs, ignoring", "source", src.String())
		return
	}
	if cfg.Cluster.Enabled {
		log.Warn("catalog.watch is ignored in cluster mode, use /admin/reload on the leader")
		return
	}
	wlog := log.With("component", "watcher", "path", file.Path)
	w := store.NewWatcher(file.Path, cfg.Matching.ExpectedDimension, engine, reloadObserver(ctx, wlog, "watch"))
	go func() {
		if err := w.Run(ctx); err != nil {
			wlog.Error("catalog watcher stopped", "error", err)
		}
	}()
}

// reloadObserver logs and counts every reload attempt made for trigger.
func reloadObserver(ctx context.Context, log *logging.Logger, trigger string) func(*store.Catalog, error) {
	return func(cat *store.Catalog, err error) {
		outcome := "success"
		if err != nil {
			outcome = "failure"
		} else {
			metrics.CatalogRows.Set(float64(cat.Len()))
		}
		metrics.CatalogReloads.WithLabelValues(trigger, outcome).Inc()
		log.LogReload(ctx, trigger, sourceOf(cat), rowsOf(cat), err)
	}
}

// sourcePin decides which location an admin reload may load.
type sourcePin struct {
	location      string
	allowOverride bool
}

func pinFor(cfg *config.Config) sourcePin {
	return sourcePin{location: cfg.Catalog.Path, allowOverride: cfg.Server.AllowReloadSource}
}

// resolve returns the location to load for a request naming requested.
// An empty request means the configured catalog.
func (p sourcePin) resolve(requested string) (string, error) {
	if requested == "" || requested == p.location {
		return p.location, nil
	}
	if !p.allowOverride {
		return "", fmt.Errorf("%w: %s", vectorHttp.ErrSourceNotAllowed, requested)
	}
	return requested, nil
}

type localReloader struct {
	engine  *store.Engine
	dim     int
	resolve cluster.SourceResolver
	pin     sourcePin
	log     *logging.Logger
}

func (r *localReloader) Reload(ctx context.Context, location, checksum string) (int, string, error) {
	location, err := r.pin.resolve(location)
	if err != nil {
		return 0, "", err
	}
	src, err := r.resolve(ctx, location)
	if err != nil {
		return 0, "", err
	}
	cat, err := store.Reload(ctx, r.engine, src, r.dim, checksum)
	reloadObserver(ctx, r.log, "admin")(cat, err)
	if err != nil {
		return 0, "", err
	}
	return cat.Len(), cat.Checksum(), nil
}

func rowsOf(cat *store.Catalog) int {
	if cat == nil {
		return 0
	}
	return cat.Len()
}

func checksumOf(cat *store.Catalog) string {
	if cat == nil {
		return ""
	}
	return cat.Checksum()
}

func sourceOf(cat *store.Catalog) string {
	if cat == nil {
		return ""
	}
	return cat.Source()
}
