package ledger

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/artiart/lazymint"
)

// MintContext contains information passed to mint hooks
type MintContext struct {
	Ctx       context.Context
	Voucher   lazymint.Voucher
	Recipient common.Address
	Timestamp time.Time
}

// MintResultContext contains a successful mint's receipt and context
type MintResultContext struct {
	MintContext
	Receipt  lazymint.MintReceipt
	Duration time.Duration
}

// MintFailureContext contains a failed mint's error and context
type MintFailureContext struct {
	MintContext
	Error    error
	Duration time.Duration
}

// BeforeMintHookResult represents the result of a "before" hook.
// If Abort is true, the mint is rejected with the given Reason and no state is touched.
type BeforeMintHookResult struct {
	Abort  bool
	Reason string
}

// BeforeMintHook runs before the mint transaction starts.
type BeforeMintHook func(MintContext) (*BeforeMintHookResult, error)

// AfterMintHook runs after a mint succeeded, including idempotent no-ops.
type AfterMintHook func(MintResultContext) error

// OnMintFailureHook runs after a mint failed and its writes were discarded.
type OnMintFailureHook func(MintFailureContext) error

// OnBeforeMint registers a hook executed before every mint.
func (l *Ledger) OnBeforeMint(hook BeforeMintHook) *Ledger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.beforeMintHooks = append(l.beforeMintHooks, hook)
	return l
}

// OnAfterMint registers a hook executed after every successful mint.
func (l *Ledger) OnAfterMint(hook AfterMintHook) *Ledger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.afterMintHooks = append(l.afterMintHooks, hook)
	return l
}

// OnMintFailure registers a hook executed after every failed mint.
func (l *Ledger) OnMintFailure(hook OnMintFailureHook) *Ledger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onMintFailureHooks = append(l.onMintFailureHooks, hook)
	return l
}

func (l *Ledger) runBeforeMint(mc MintContext) error {
	l.mu.RLock()
	hooks := l.beforeMintHooks
	l.mu.RUnlock()

	for _, hook := range hooks {
		result, err := hook(mc)
		if err != nil {
			return lazymint.NewLedgerError(lazymint.ErrCodeMintAborted, err.Error(), nil)
		}
		if result != nil && result.Abort {
			return lazymint.NewLedgerError(lazymint.ErrCodeMintAborted, result.Reason, nil)
		}
	}
	return nil
}

// After and failure hooks observe only; their errors are logged.
func (l *Ledger) runAfterMint(rc MintResultContext) {
	l.mu.RLock()
	hooks := l.afterMintHooks
	l.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(rc); err != nil {
			l.logger.Warn("after-mint hook failed", zapTokenID(rc.Voucher.TokenID), zap.Error(err))
		}
	}
}

func (l *Ledger) runMintFailure(fc MintFailureContext) {
	l.mu.RLock()
	hooks := l.onMintFailureHooks
	l.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(fc); err != nil {
			l.logger.Warn("mint-failure hook failed", zapTokenID(fc.Voucher.TokenID), zap.Error(err))
		}
	}
}
