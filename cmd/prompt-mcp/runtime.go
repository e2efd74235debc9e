package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/vines90/mcp-prompt-server/internal/apistore"
	"github.com/vines90/mcp-prompt-server/internal/catalog"
	"github.com/vines90/mcp-prompt-server/internal/config"
	"github.com/vines90/mcp-prompt-server/internal/filesource"
	"github.com/vines90/mcp-prompt-server/internal/identity"
	"github.com/vines90/mcp-prompt-server/internal/logging"
	"github.com/vines90/mcp-prompt-server/internal/mcp"
	"github.com/vines90/mcp-prompt-server/internal/reload"
	"github.com/vines90/mcp-prompt-server/internal/store"
	"github.com/vines90/mcp-prompt-server/internal/toolhost"
)

// backend is what a primary store offers beyond record fetching.
type backend interface {
	catalog.RecordFetcher
	toolhost.Insights
	toolhost.UsageStore
	Categories(ctx context.Context) ([]string, error)
}

// runtime holds the wired catalog, tool host and backing stores of one
// process.
type runtime struct {
	cfg     config.Config
	logger  *log.Logger
	backend backend
	sql     *store.SQLStore
	builder *catalog.Builder
	catalog *catalog.Service
	tools   *toolhost.Registry
	usage   *toolhost.UsageRecorder
	closers []io.Closer
}

type closerFunc func()

func (f closerFunc) Close() error {
	f()
	return nil
}

// loadConfig reads the config file and builds the process logger.
func loadConfig() (config.Config, *log.Logger, io.Closer, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, nil, nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.EnsurePaths(); err != nil {
		return cfg, nil, nil, err
	}
	logger, closer := logging.New(cfg)
	return cfg, logger, closer, nil
}

// openRuntime wires the source chain and tool host, then builds the first
// catalog generation.
func openRuntime(ctx context.Context) (*runtime, error) {
	cfg, logger, logCloser, err := loadConfig()
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, logger: logger, closers: []io.Closer{logCloser}}

	var sources []catalog.Source
	ownerID := ""
	switch cfg.Backend {
	case config.BackendAPI:
		client, err := apistore.New(apistore.Options{
			BaseURL:   cfg.APIURL,
			SecretKey: cfg.APISecretKey,
			Token:     cfg.APIToken,
			Timeout:   cfg.FetchTimeout(),
		}, logger)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.backend = client
		sources = append(sources, catalog.NewFetcherSource(config.BackendAPI, client, cfg.FetchTimeout()))
		if client.Authenticated() {
			if profile, err := client.Profile(ctx); err != nil {
				logger.Warn("owner lookup failed, serving public prompts only", "error", err)
			} else {
				ownerID = profile.ID
			}
		}
	default:
		st, err := store.Open(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			logger.Warn("prompt database unavailable, using fallback prompts", "error", err)
			break
		}
		rt.sql = st
		rt.backend = st
		rt.closers = append(rt.closers, st)
		sources = append(sources, catalog.NewFetcherSource(config.BackendSQL, st, cfg.FetchTimeout()))
		ownerID, err = identity.NewResolver(st, cfg.JWTSecret, logger).Resolve(ctx, cfg.OwnerToken)
		if err != nil {
			logger.Warn("owner token rejected, serving public prompts only", "error", err)
			ownerID = ""
		}
	}
	sources = append(sources, filesource.New(cfg.FallbackDir, logger))

	rt.builder = catalog.NewBuilder(logger, catalog.Options{
		Budget:   cfg.MaxPromptTools,
		Reserved: toolhost.ManagementToolNames(),
	}, sources...)
	rt.catalog = catalog.NewService(logger, rt.builder, ownerID)

	var (
		insights toolhost.Insights
		reporter toolhost.UsageReporter
	)
	if rt.backend != nil {
		insights = rt.backend
		rt.usage = toolhost.NewUsageRecorder(logger, rt.backend, cfg.UsageReportConcurrency, cfg.UsageReportTimeout())
		reporter = rt.usage
		rt.closers = append(rt.closers, closerFunc(rt.usage.Wait))
	}

	rt.tools = toolhost.NewRegistry()
	host := toolhost.NewHost(logger, rt.tools, reporter,
		toolhost.Limits{SoftLimit: cfg.ToolSoftLimit, Ceiling: cfg.ToolCeiling},
		toolhost.ManagementTools(rt.catalog, insights),
	)
	rt.catalog.OnSwap(func(snap *catalog.Snapshot) { host.Install(snap) })

	if _, err := rt.catalog.Reload(ctx); err != nil {
		rt.Close()
		return nil, fmt.Errorf("initial catalog build: %w", err)
	}
	return rt, nil
}

// newServer builds the MCP server. Request events are persisted when the
// SQL backend is in use.
func (rt *runtime) newServer() *mcp.Server {
	var sink mcp.RequestLogSink
	if rt.sql != nil {
		sink = rt.sql
	}
	return mcp.NewServer(rt.cfg.ServerName, rt.tools, rt.catalog, rt.logger, sink)
}

// startReloads runs the reload worker fed by SIGHUP, the fallback directory
// watcher and the configured interval.
func (rt *runtime) startReloads(ctx context.Context, hangup bool) {
	var inputs []<-chan string
	if hangup {
		inputs = append(inputs, hangupTriggers(ctx))
	}
	if rt.cfg.WatchFallbackDir {
		w, err := filesource.NewWatcher(rt.cfg.FallbackDir, filesource.DefaultDebounce, rt.logger)
		if err == nil {
			err = w.Start(ctx)
		}
		if err != nil {
			rt.logger.Warn("fallback directory watch disabled", "dir", rt.cfg.FallbackDir, "error", err)
		} else {
			rt.closers = append(rt.closers, closerFunc(w.Stop))
			inputs = append(inputs, w.Changes())
		}
	}
	go reload.Start(ctx, rt.logger, rt.cfg.ReloadInterval(), rt.catalog, reload.Merge(ctx, inputs...))
}

func hangupTriggers(ctx context.Context) <-chan string {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP)
	out := make(chan string)
	go func() {
		defer signal.Stop(sig)
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sig:
				select {
				case out <- "sighup":
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Close releases resources in reverse order of acquisition.
func (rt *runtime) Close() {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil && rt.logger != nil {
		rt.logger.Warn("shutdown", "error", err)
	}
}
