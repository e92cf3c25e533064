package http

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/artiart/lazymint/extensions/idempotency"
)

type settings struct {
	logger *zap.Logger
	guard  *idempotency.Guard
	mcp    http.Handler
}

// Option configures a Server.
type Option func(*settings)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithIdempotency sets the guard deduplicating mint and authorize requests.
// Default: an in-memory guard.
func WithIdempotency(guard *idempotency.Guard) Option {
	return func(s *settings) {
		s.guard = guard
	}
}

// WithMCPHandler mounts an MCP transport at /mcp.
func WithMCPHandler(handler http.Handler) Option {
	return func(s *settings) {
		s.mcp = handler
	}
}
