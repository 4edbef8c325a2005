package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/RBarbieri13/Decant-sub001/internal/service"
)

// Version is the MCP server version.
const Version = "1.0.0"

// ErrMissingService is returned when a required service is not wired.
var ErrMissingService = errors.New("mcp: audit and relation services are required")

// Services are the read paths exposed as tools.
type Services struct {
	Audit     *service.AuditService
	Relations *service.RelationService
}

// Server exposes ledger and relation reads to AI agents over MCP.
type Server struct {
	svc    Services
	server *mcp.Server
}

// NewServer creates a new MCP server.
func NewServer(svc Services) (*Server, error) {
	if svc.Audit == nil || svc.Relations == nil {
		return nil, ErrMissingService
	}
	s := &Server{
		svc:    svc,
		server: mcp.NewServer(&mcp.Implementation{Name: "decant", Version: Version}, nil),
	}
	s.registerTools()
	return s, nil
}

// Run serves MCP over stdio until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves MCP over streamable HTTP on addr until ctx is cancelled.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("MCP shutdown", "error", err)
		}
	}()

	slog.Info("MCP server starting", "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("mcp http: %w", err)
	}
	return nil
}
