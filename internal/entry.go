// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"

	"github.com/starford/datatree/internal/api"
	"github.com/starford/datatree/internal/mcpserver"
	"github.com/starford/datatree/internal/sse"
	"github.com/starford/datatree/internal/storage"
	"github.com/starford/datatree/internal/treeservice"
	"github.com/starford/datatree/internal/tui"
	"github.com/starford/datatree/internal/watch"
	"github.com/starford/datatree/internal/workbench"
)

var errConfigRequired = errors.New("config is required")

// openWorkbench prepares the data directory and opens every configured tree.
func (a *application) openWorkbench(ctx context.Context, logger *slog.Logger, listener treeservice.Listener) (*workbench.Workbench, storage.Provider, error) {
	cfg := a.config

	if err := os.MkdirAll(cfg.Trees.Dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create trees dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Trees.Dir)
	if err != nil {
		return nil, nil, fmt.Errorf("init storage: %w", err)
	}

	wb := workbench.New(cfg.Trees.Mode, cfg.Trees.InstanceList(), store, logger, listener)
	if err := wb.Open(ctx); err != nil {
		return nil, nil, err
	}
	return wb, store, nil
}

func watchTargets(wb *workbench.Workbench) []watch.Target {
	svcs := wb.Services()
	targets := make([]watch.Target, len(svcs))
	for i, svc := range svcs {
		targets[i] = svc
	}
	return targets
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("trees_dir", cfg.Trees.Dir),
		slog.String("mode", cfg.Trees.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(cfg.Events.OutlineThrottle)
	defer broker.Close()

	wb, store, err := app.openWorkbench(ctx, logger, func(ev treeservice.Event) {
		broker.PublishTreeEvent(ev.Tree, string(ev.Kind), ev.Path)
	})
	if err != nil {
		return err
	}

	apiRouter := api.NewRouter(wb, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)
	mcpHTTP := server.NewStreamableHTTPServer(mcpserver.New(wb, app.version).MCPServer())

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	// MCP over streamable HTTP shares the API token.
	r.With(api.AuthMiddleware(cfg.Auth.AuthEnabled(), cfg.Auth.Token)).Handle("/mcp", mcpHTTP)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Reload trees edited outside the program.
	if cfg.Watch.Enabled {
		g.Go(func() error {
			return watch.Watch(gCtx, store, watchTargets(wb), cfg.Watch.Debounce, logger)
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown stops the watcher once the HTTP server has shut down.
var errShutdown = errors.New("shutdown")

// RunTUI starts the terminal UI. Logs go to tui.log in the trees directory so they do not
// draw over the screen.
func RunTUI(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	if err := os.MkdirAll(cfg.Trees.Dir, 0o755); err != nil {
		return fmt.Errorf("create trees dir: %w", err)
	}
	logFile, err := os.OpenFile(filepath.Join(cfg.Trees.Dir, "tui.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()
	logger := slog.New(slog.NewJSONHandler(logFile, &slog.HandlerOptions{Level: cfg.App.LogLevel}))

	events := make(chan treeservice.Event, 64)
	wb, store, err := app.openWorkbench(ctx, logger, func(ev treeservice.Event) {
		select {
		case events <- ev:
		default:
			logger.Debug("tui: event dropped", slog.String("tree", ev.Tree), slog.String("path", ev.Path))
		}
	})
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(runCtx)

	if cfg.Watch.Enabled {
		g.Go(func() error {
			return watch.Watch(gCtx, store, watchTargets(wb), cfg.Watch.Debounce, logger)
		})
	}
	g.Go(func() error {
		defer cancel()
		return tui.Run(gCtx, wb, events)
	})
	return g.Wait()
}

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.App.LogLevel}))
	wb, store, err := app.openWorkbench(ctx, logger, nil)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(runCtx)

	if cfg.Watch.Enabled {
		g.Go(func() error {
			return watch.Watch(gCtx, store, watchTargets(wb), cfg.Watch.Debounce, logger)
		})
	}
	g.Go(func() error {
		defer cancel()
		return mcpserver.New(wb, app.version).ServeStdio()
	})
	return g.Wait()
}

// quietLogger is used by the one-shot commands, which print results rather than logs.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func (a *application) service(ctx context.Context, name string) (*treeservice.Service, error) {
	wb, _, err := a.openWorkbench(ctx, quietLogger(), nil)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return wb.Services()[0], nil
	}
	return wb.Get(name)
}

// Search prints the search hits for term in one tree.
func Search(ctx context.Context, tree, term string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	svc, err := app.service(ctx, tree)
	if err != nil {
		return err
	}
	lines, err := svc.Search(term)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(app.out, strings.Join(lines, "\n"))
	return err
}

// ListFolders prints every folder path of one tree.
func ListFolders(ctx context.Context, tree string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	svc, err := app.service(ctx, tree)
	if err != nil {
		return err
	}
	for _, p := range svc.FolderChoices()[1:] {
		if _, err := fmt.Fprintln(app.out, p); err != nil {
			return err
		}
	}
	return nil
}

// Migrate rewrites every tree file whose legacy string entries were converted on load.
func Migrate(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	wb, _, err := app.openWorkbench(ctx, quietLogger(), nil)
	if err != nil {
		return err
	}
	for _, svc := range wb.Services() {
		n, err := svc.Migrate(ctx)
		if err != nil {
			return fmt.Errorf("migrate %s: %w", svc.Name(), err)
		}
		if _, err := fmt.Fprintf(app.out, "%s: %d legacy entries converted\n", svc.File(), n); err != nil {
			return err
		}
	}
	return nil
}
