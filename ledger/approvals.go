package ledger

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// IsApprovedForAll reports whether operator may act for holder: either holder
// approved operator directly, or operator is a global approver and holder has
// not opted out.
func (l *Ledger) IsApprovedForAll(ctx context.Context, holder, operator common.Address) (bool, error) {
	var approved bool
	err := l.store.View(ctx, func(tx Tx) error {
		var err error
		approved, err = isApprovedForAll(tx, holder, operator)
		return err
	})
	return approved, err
}

func isApprovedForAll(tx Tx, holder, operator common.Address) (bool, error) {
	standard, err := tx.Approval(holder, operator)
	if err != nil || standard {
		return standard, err
	}
	global, err := tx.GlobalApprover(operator)
	if err != nil || !global {
		return false, err
	}
	optedOut, err := tx.OptedOut(holder)
	if err != nil {
		return false, err
	}
	return !optedOut, nil
}

// SetApprovalForAll sets caller's own approval of operator.
func (l *Ledger) SetApprovalForAll(ctx context.Context, caller, operator common.Address, approved bool) error {
	if operator == (common.Address{}) {
		return invalidAddress("operator")
	}
	err := l.store.Update(ctx, func(tx Tx) error {
		return tx.PutApproval(caller, operator, approved)
	})
	if err != nil {
		return err
	}
	l.logger.Debug("approval for all set",
		zap.String("holder", caller.Hex()),
		zap.String("operator", operator.Hex()),
		zap.Bool("approved", approved),
	)
	return nil
}

// SetGlobalApproval adds or removes operator from the global approver set. Owner only.
func (l *Ledger) SetGlobalApproval(ctx context.Context, caller, operator common.Address, approved bool) error {
	err := l.store.Update(ctx, func(tx Tx) error {
		meta, err := deployedMeta(tx)
		if err != nil {
			return err
		}
		if err := RequireOwner(caller, meta.Owner); err != nil {
			return err
		}
		return tx.PutGlobalApprover(operator, approved)
	})
	if err != nil {
		return err
	}
	l.logger.Info("global approval set",
		zap.String("operator", operator.Hex()),
		zap.Bool("approved", approved),
	)
	return nil
}

// IsGlobalApprover reports whether operator is in the global approver set.
func (l *Ledger) IsGlobalApprover(ctx context.Context, operator common.Address) (bool, error) {
	var global bool
	err := l.store.View(ctx, func(tx Tx) error {
		var err error
		global, err = tx.GlobalApprover(operator)
		return err
	})
	return global, err
}

// SetGlobalApprovalOptOut sets whether global approvers are denied for caller.
func (l *Ledger) SetGlobalApprovalOptOut(ctx context.Context, caller common.Address, optOut bool) error {
	err := l.store.Update(ctx, func(tx Tx) error {
		return tx.PutOptOut(caller, optOut)
	})
	if err != nil {
		return err
	}
	l.logger.Debug("global approval opt-out set",
		zap.String("holder", caller.Hex()),
		zap.Bool("optOut", optOut),
	)
	return nil
}

// HasOptedOutOfGlobalApproval reports holder's opt-out flag.
func (l *Ledger) HasOptedOutOfGlobalApproval(ctx context.Context, holder common.Address) (bool, error) {
	var optedOut bool
	err := l.store.View(ctx, func(tx Tx) error {
		var err error
		optedOut, err = tx.OptedOut(holder)
		return err
	})
	return optedOut, err
}
