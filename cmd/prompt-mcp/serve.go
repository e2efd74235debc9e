package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var httpAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server over stdio",
	RunE:  runServe,
}

var serveHTTPCmd = &cobra.Command{
	Use:   "serve-http",
	Short: "Run the MCP server over HTTP and WebSocket",
	Long: `Serve JSON-RPC on POST /mcp and WebSocket sessions on /ws, with
/health and Prometheus /metrics alongside.`,
	RunE: runServeHTTP,
}

func init() {
	serveHTTPCmd.Flags().StringVar(&httpAddr, "addr", "", "Listen address (defaults to http_addr from config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	rt.startReloads(ctx, true)

	server := rt.newServer()
	rt.logger.Info("starting MCP stdio server",
		"backend", rt.cfg.Backend,
		"prompts", rt.catalog.Snapshot().Len(),
		"tools", rt.tools.Current().Len(),
	)
	if err := server.Serve(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runServeHTTP(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	rt.startReloads(ctx, true)

	if rt.cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	addr := httpAddr
	if addr == "" {
		addr = rt.cfg.HTTPAddr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           rt.newServer().HTTPHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		rt.logger.Info("starting MCP HTTP server", "addr", addr, "backend", rt.cfg.Backend)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	rt.logger.Info("shutting down HTTP server")
	return srv.Shutdown(shutdownCtx)
}
