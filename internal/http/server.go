// Package http serves the memory tools over HTTP: MCP streamable HTTP on
// /mcp plus a plain JSON API for scripts.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/nextlevelbuilder/gomemory/internal/mcp"
	"github.com/nextlevelbuilder/gomemory/internal/tools"
)

// Server is the HTTP surface.
type Server struct {
	addr    string
	handler http.Handler
	logger  *slog.Logger
}

// NewServer routes:
//
//	GET  /healthz          liveness, no auth
//	GET  /v1/tools         tool catalogue
//	POST /v1/tools/invoke  {"tool": ..., "args": {...}, "dryRun": false}
//	     /mcp              MCP streamable HTTP
//
// Everything but /healthz requires token when it is non-empty.
func NewServer(addr, token string, registry *tools.Registry, mcpServer *mcp.Server, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "tools": registry.Count()})
	})
	mux.Handle("GET /v1/tools", requireToken(token, ToolsListHandler(registry)))
	mux.Handle("/v1/tools/invoke", requireToken(token, NewToolsInvokeHandler(registry, logger)))
	if mcpServer != nil {
		mux.Handle("/mcp", requireToken(token, mcpServer.HTTPHandler()))
	}
	return &Server{addr: addr, handler: mux, logger: logger}
}

// Handler returns the routed handler, for tests.
func (s *Server) Handler() http.Handler { return s.handler }

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
