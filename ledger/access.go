package ledger

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/artiart/lazymint"
)

// RequireOwner returns a not_owner error unless caller is owner.
func RequireOwner(caller, owner common.Address) error {
	if caller != owner {
		return lazymint.NewLedgerError(lazymint.ErrCodeNotOwner, fmt.Sprintf("caller %s is not the owner", caller.Hex()), map[string]interface{}{
			"caller": caller.Hex(),
		})
	}
	return nil
}

// SetSigner replaces the authorized voucher signer. Owner only; the zero
// address is rejected.
func (l *Ledger) SetSigner(ctx context.Context, caller, signer common.Address) error {
	err := l.store.Update(ctx, func(tx Tx) error {
		meta, err := deployedMeta(tx)
		if err != nil {
			return err
		}
		if err := RequireOwner(caller, meta.Owner); err != nil {
			return err
		}
		if signer == (common.Address{}) {
			return invalidAddress("signer")
		}
		meta.Signer = signer
		return tx.PutMeta(meta)
	})
	if err != nil {
		return err
	}
	l.logger.Info("signer updated", zap.String("signer", signer.Hex()))
	return nil
}

// TransferOwnership hands administrative rights to newOwner. Owner only; the
// zero address is rejected.
func (l *Ledger) TransferOwnership(ctx context.Context, caller, newOwner common.Address) error {
	var previous common.Address
	err := l.store.Update(ctx, func(tx Tx) error {
		meta, err := deployedMeta(tx)
		if err != nil {
			return err
		}
		if err := RequireOwner(caller, meta.Owner); err != nil {
			return err
		}
		if newOwner == (common.Address{}) {
			return invalidAddress("owner")
		}
		previous = meta.Owner
		meta.Owner = newOwner
		return tx.PutMeta(meta)
	})
	if err != nil {
		return err
	}
	l.logger.Info("ownership transferred",
		zap.String("previousOwner", previous.Hex()),
		zap.String("newOwner", newOwner.Hex()),
	)
	return nil
}
