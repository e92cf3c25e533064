package zone

import (
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

type settings struct {
	logger  *zap.Logger
	address *common.Address
}

// Option configures a Zone.
type Option func(*settings)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithAddress sets the zone's own identity. Default: the second contract
// address the owner would create.
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
