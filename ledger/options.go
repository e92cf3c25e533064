package ledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

type settings struct {
	logger  *zap.Logger
	chainID *big.Int
	address *common.Address
}

// Option configures a Ledger.
type Option func(*settings)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithChainID sets the network id bound into the signing domain.
// Only used by Deploy. Default: 31337.
func WithChainID(chainID *big.Int) Option {
	return func(s *settings) {
		s.chainID = chainID
	}
}

// WithAddress sets the ledger's own identity, the verifying contract of the
// signing domain. Only used by Deploy. Default: the first contract address
// the deployer would create.
func WithAddress(address common.Address) Option {
	return func(s *settings) {
		s.address = &address
	}
}

func applyOptions(opts ...Option) settings {
	s := settings{}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}
