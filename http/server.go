// Package http exposes the ledger and zone over a JSON API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/artiart/lazymint/extensions/idempotency"
	"github.com/artiart/lazymint/ledger"
	"github.com/artiart/lazymint/zone"
)

// Server serves the JSON API.
type Server struct {
	ledger *ledger.Ledger
	zone   *zone.Zone
	auth   *AuthService
	guard  *idempotency.Guard
	mcp    http.Handler
	logger *zap.Logger
	engine *gin.Engine
}

// NewServer builds the API over l and z.
func NewServer(l *ledger.Ledger, z *zone.Zone, auth *AuthService, opts ...Option) *Server {
	s := settings{}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.guard == nil {
		s.guard = idempotency.New(idempotency.WithLogger(s.logger))
	}

	srv := &Server{
		ledger: l,
		zone:   z,
		auth:   auth,
		guard:  s.guard,
		mcp:    s.mcp,
		logger: s.logger,
	}
	srv.engine = srv.routes()
	return srv
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), AccessLog(s.logger), Recovery(s.logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.POST("/auth/nonce", s.handleNonce)
	r.POST("/auth/login", s.handleLogin)

	optional := Authenticate(s.auth, false)
	required := Authenticate(s.auth, true)

	v1 := r.Group("/v1")

	l := v1.Group("/ledger")
	l.GET("", s.handleLedgerInfo)
	l.GET("/tokens/:tokenId", s.handleToken)
	l.GET("/balances/:holder/:tokenId", s.handleBalance)
	l.GET("/approvals/:holder/:operator", s.handleApproval)
	l.GET("/global-approvers/:operator", s.handleGlobalApprover)
	l.GET("/opt-outs/:holder", s.handleOptOut)
	l.GET("/interfaces/:id", s.handleLedgerInterface)
	l.POST("/mint", optional, s.handleMint)
	l.POST("/signer", required, s.handleSetSigner)
	l.POST("/owner", required, s.handleTransferOwnership)
	l.POST("/approvals", required, s.handleSetApproval)
	l.POST("/global-approvers", required, s.handleSetGlobalApproval)
	l.POST("/opt-out", required, s.handleSetOptOut)

	z := v1.Group("/zone")
	z.GET("", s.handleZoneInfo)
	z.GET("/metadata", s.handleZoneMetadata)
	z.GET("/interfaces/:id", s.handleZoneInterface)
	z.POST("/authorize", optional, s.handleAuthorize)
	z.POST("/validate", optional, s.handleValidate)
	z.POST("/nft", required, s.handleSetNft)
	z.POST("/owner", required, s.handleZoneTransferOwnership)

	if s.mcp != nil {
		r.Any("/mcp", gin.WrapH(s.mcp))
	}
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then drains
// in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
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

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

// bindJSON validates the body against schema and decodes it into dst.
func bindJSON(c *gin.Context, schema string, dst any) ([]byte, bool) {
	body, err := c.GetRawData()
	if err != nil {
		abortInvalidRequest(c, "failed to read request body", nil)
		return nil, false
	}

	result, err := ValidateBody(schema, body)
	if err != nil {
		abortWithError(c, err)
		return nil, false
	}
	if !result.Valid {
		abortInvalidRequest(c, "request body failed validation", map[string]interface{}{
			"errors": result.Errors,
		})
		return nil, false
	}

	if err := json.Unmarshal(body, dst); err != nil {
		abortInvalidRequest(c, err.Error(), nil)
		return nil, false
	}
	return body, true
}

// idempotent runs fn once per scope and body and replays its JSON result.
// A client Idempotency-Key reused with a different body is rejected.
func (s *Server) idempotent(c *gin.Context, scope string, body []byte, fn func(ctx context.Context) (any, error)) {
	clientKey := c.GetHeader(HeaderIdempotencyKey)
	if err := s.guard.BindClientKey(c.Request.Context(), scope, clientKey, body); err != nil {
		abortWithError(c, err)
		return
	}

	key := s.guard.Key(scope, clientKey, body)
	result, replayed, err := s.guard.Do(c.Request.Context(), key, func(ctx context.Context) ([]byte, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	if replayed {
		c.Header(HeaderReplayed, "true")
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", result)
}
