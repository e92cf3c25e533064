package cli

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/artiart/lazymint/config"
	"github.com/artiart/lazymint/extensions/idempotency"
	lazyhttp "github.com/artiart/lazymint/http"
	"github.com/artiart/lazymint/ledger"
	"github.com/artiart/lazymint/ledger/sqlite"
	"github.com/artiart/lazymint/mcp"
	"github.com/artiart/lazymint/zone"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the ledger and zone over HTTP and MCP",
		Long: `Start the HTTP API, with the MCP query tools mounted at /mcp.

Configuration comes from the environment and an optional .env file:
PORT, ENVIRONMENT, LOG_LEVEL, JWT_SECRET, CHAIN_ID, OWNER_ADDRESS,
SIGNER_ADDRESS, LEDGER_ADDRESS, ZONE_ADDRESS, DATABASE_PATH,
LEDGER_DATABASES, REDIS_URL and IDEMPOTENCY_TTL. An empty store is
deployed with OWNER_ADDRESS as owner and SIGNER_ADDRESS as the authorized
signer. The zone's owner and ledger pointer are kept in the store, so
OWNER_ADDRESS only seeds them on first start. LEDGER_DATABASES lists
further deployed SQLite ledgers the zone can be repointed at.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(rootOpts, cmd)
		},
	}
}

func runServe(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cfg, err := config.Load()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, err)
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStartup, err)
	}
	defer app.Close()

	if err := app.Server.ListenAndServe(ctx, cfg.Addr()); err != nil {
		return formatter.Fail(ExitFailure, ErrCodeStartup, err)
	}
	return nil
}

// App is the wired service: ledger, zone and the servers in front of them.
type App struct {
	Ledger *ledger.Ledger
	Zone   *zone.Zone
	Server *lazyhttp.Server

	closers []func() error
}

// NewApp opens the configured store, deploys the ledger when the store is
// empty, and wires the zone, idempotency guard, MCP tools and HTTP server.
func NewApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	app := &App{}

	store, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, store.Close)

	app.Ledger, err = openLedger(ctx, cfg, store, logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	meta, err := app.Ledger.Meta(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}
	directory := zone.StaticDirectory{meta.Address: app.Ledger}
	if err := app.openExtraLedgers(ctx, cfg, directory, logger); err != nil {
		app.Close()
		return nil, err
	}

	zoneOwner := cfg.Owner()
	if zoneOwner == (common.Address{}) {
		zoneOwner = meta.Owner
	}
	zoneOpts := []zone.Option{zone.WithLogger(logger.Named("zone"))}
	if address, ok := cfg.Zone(); ok {
		zoneOpts = append(zoneOpts, zone.WithAddress(address))
	}
	app.Zone, err = zone.Open(ctx, store, zoneOwner, meta.Address, directory, zoneOpts...)
	if err != nil {
		app.Close()
		return nil, err
	}

	guard, err := app.newGuard(ctx, cfg, logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	secret := cfg.JWTSecret
	if secret == "" {
		secret, err = ephemeralSecret()
		if err != nil {
			app.Close()
			return nil, err
		}
		logger.Warn("JWT_SECRET not set, using an ephemeral secret; tokens will not survive a restart")
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	mcpServer := mcp.NewServer(app.Ledger, app.Zone, mcp.WithLogger(logger.Named("mcp")))
	app.Server = lazyhttp.NewServer(app.Ledger, app.Zone, lazyhttp.NewAuthService(secret),
		lazyhttp.WithLogger(logger.Named("http")),
		lazyhttp.WithIdempotency(guard),
		lazyhttp.WithMCPHandler(mcp.NewSSEHandler(mcpServer)),
	)

	logger.Info("service ready",
		zap.String("ledger", meta.Address.Hex()),
		zap.String("zone", app.Zone.Address().Hex()),
		zap.String("chainId", meta.ChainID.String()),
	)
	return app, nil
}

// Close releases the store and any external connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// closableStore is a ledger.Store that holds resources.
type closableStore interface {
	ledger.Store
	Close() error
}

func openStore(cfg config.Config, logger *zap.Logger) (closableStore, error) {
	if cfg.DatabasePath == "" {
		logger.Info("using in-memory ledger store")
		return ledger.NewMemoryStore(), nil
	}
	store, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	logger.Info("using sqlite ledger store", zap.String("path", cfg.DatabasePath))
	return store, nil
}

func openLedger(ctx context.Context, cfg config.Config, store ledger.Store, logger *zap.Logger) (*ledger.Ledger, error) {
	logger = logger.Named("ledger")
	l := ledger.New(store, ledger.WithLogger(logger))

	deployed, err := l.IsDeployed(ctx)
	if err != nil {
		return nil, err
	}
	if deployed {
		return l, nil
	}

	opts := []ledger.Option{ledger.WithLogger(logger), ledger.WithChainID(cfg.ChainIDBig())}
	if address, ok := cfg.Ledger(); ok {
		opts = append(opts, ledger.WithAddress(address))
	}
	l, err = ledger.Deploy(ctx, store, cfg.Owner(), cfg.Signer(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to deploy ledger (OWNER_ADDRESS and SIGNER_ADDRESS are required for an empty store): %w", err)
	}
	return l, nil
}

// openExtraLedgers registers each LEDGER_DATABASES store in directory under
// its ledger address. The stores must already hold a deployed ledger.
func (a *App) openExtraLedgers(ctx context.Context, cfg config.Config, directory zone.StaticDirectory, logger *zap.Logger) error {
	for _, path := range cfg.LedgerDatabases {
		store, err := sqlite.Open(path)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, store.Close)

		l := ledger.New(store, ledger.WithLogger(logger.Named("ledger")))
		meta, err := l.Meta(ctx)
		if err != nil {
			return fmt.Errorf("ledger database %s: %w", path, err)
		}
		if _, ok := directory[meta.Address]; ok {
			return fmt.Errorf("ledger database %s: ledger %s is already registered", path, meta.Address.Hex())
		}
		directory[meta.Address] = l
		logger.Info("registered ledger", zap.String("path", path), zap.String("ledger", meta.Address.Hex()))
	}
	return nil
}

func (a *App) newGuard(ctx context.Context, cfg config.Config, logger *zap.Logger) (*idempotency.Guard, error) {
	opts := []idempotency.Option{
		idempotency.WithTTL(cfg.IdempotencyTTL),
		idempotency.WithLogger(logger.Named("idempotency")),
	}
	if cfg.RedisURL != "" {
		client, err := idempotency.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		opts = append(opts, idempotency.WithStore(idempotency.NewRedisStore(client, cfg.IdempotencyTTL)))
		logger.Info("using redis idempotency store")
	}
	return idempotency.New(opts...), nil
}

func ephemeralSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate JWT secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
