// Package ledger implements the lazy-mint issuance ledger: voucher-gated,
// once-per-token issuance, the dual-track approval registry, and owner-only
// administration, all over a pluggable transactional Store.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/artiart/lazymint"
	"github.com/artiart/lazymint/mechanisms/evm"
)

// Ledger is the issuance ledger. All state lives in its Store; a Ledger holds
// only its logger and hooks, so several Ledgers may share a store.
type Ledger struct {
	store  Store
	logger *zap.Logger

	mu                 sync.RWMutex
	beforeMintHooks    []BeforeMintHook
	afterMintHooks     []AfterMintHook
	onMintFailureHooks []OnMintFailureHook
}

// New attaches a Ledger to a store that has already been deployed.
func New(store Store, opts ...Option) *Ledger {
	s := applyOptions(opts...)
	return &Ledger{
		store:  store,
		logger: s.logger,
	}
}

// Deploy initializes an empty store with deployer as owner and signer as the
// authorized voucher signer, and returns a Ledger over it.
func Deploy(ctx context.Context, store Store, deployer, signer common.Address, opts ...Option) (*Ledger, error) {
	if deployer == (common.Address{}) {
		return nil, invalidAddress("owner")
	}
	if signer == (common.Address{}) {
		return nil, invalidAddress("signer")
	}

	s := applyOptions(opts...)
	chainID := s.chainID
	if chainID == nil {
		chainID = evm.ChainIDHardhat
	}
	address := crypto.CreateAddress(deployer, 0)
	if s.address != nil {
		address = *s.address
	}

	err := store.Update(ctx, func(tx Tx) error {
		meta, err := tx.Meta()
		if err != nil {
			return err
		}
		if meta.Deployed() {
			return ErrAlreadyDeployed
		}
		return tx.PutMeta(Meta{
			Address: address,
			ChainID: chainID,
			Owner:   deployer,
			Signer:  signer,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ledger deployed",
		zap.String("address", address.Hex()),
		zap.String("chainId", chainID.String()),
		zap.String("owner", deployer.Hex()),
		zap.String("signer", signer.Hex()),
	)
	return &Ledger{store: store, logger: s.logger}, nil
}

// Meta returns the ledger's identities.
func (l *Ledger) Meta(ctx context.Context) (Meta, error) {
	var meta Meta
	err := l.store.View(ctx, func(tx Tx) error {
		var err error
		meta, err = deployedMeta(tx)
		return err
	})
	return meta, err
}

// Address returns the ledger's own identity.
func (l *Ledger) Address(ctx context.Context) (common.Address, error) {
	meta, err := l.Meta(ctx)
	return meta.Address, err
}

// Owner returns the current owner.
func (l *Ledger) Owner(ctx context.Context) (common.Address, error) {
	meta, err := l.Meta(ctx)
	return meta.Owner, err
}

// Signer returns the authorized voucher signer.
func (l *Ledger) Signer(ctx context.Context) (common.Address, error) {
	meta, err := l.Meta(ctx)
	return meta.Signer, err
}

// Domain returns the EIP-712 domain vouchers must be signed under.
func (l *Ledger) Domain(ctx context.Context) (evm.TypedDataDomain, error) {
	meta, err := l.Meta(ctx)
	if err != nil {
		return evm.TypedDataDomain{}, err
	}
	return evm.VoucherDomain(meta.ChainID, meta.Address), nil
}

// MintIfNotExists issues voucher to recipient unless the token was already minted.
func (l *Ledger) MintIfNotExists(ctx context.Context, voucher lazymint.Voucher, recipient common.Address) error {
	_, err := l.Mint(ctx, voucher, recipient)
	return err
}

// Mint is MintIfNotExists returning a receipt. The voucher's owner must equal
// recipient and its signature must recover to the current signer; both are
// checked before the already-minted short-circuit, so an invalid voucher for
// a minted token still fails. They are also checked before the before-mint
// hooks, which only see vouchers the ledger would accept.
func (l *Ledger) Mint(ctx context.Context, voucher lazymint.Voucher, recipient common.Address) (lazymint.MintReceipt, error) {
	start := time.Now()
	mc := MintContext{Ctx: ctx, Voucher: voucher, Recipient: recipient, Timestamp: start}
	fail := func(err error) (lazymint.MintReceipt, error) {
		l.logger.Info("mint rejected",
			zapTokenID(voucher.TokenID),
			zap.String("recipient", recipient.Hex()),
			zap.String("code", lazymint.CodeOf(err)),
			zap.Error(err),
		)
		l.runMintFailure(MintFailureContext{MintContext: mc, Error: err, Duration: time.Since(start)})
		return lazymint.MintReceipt{}, err
	}

	err := l.store.View(ctx, func(tx Tx) error {
		return checkVoucher(tx, voucher, recipient)
	})
	if err != nil {
		return fail(err)
	}
	if err := l.runBeforeMint(mc); err != nil {
		return fail(err)
	}

	var receipt lazymint.MintReceipt
	err = l.store.Update(ctx, func(tx Tx) error {
		var err error
		receipt, err = mint(tx, voucher, recipient)
		return err
	})
	if err != nil {
		return fail(err)
	}

	if receipt.Issued {
		l.logger.Info("token minted",
			zapTokenID(receipt.TokenID),
			zap.String("recipient", recipient.Hex()),
			zap.String("amount", receipt.Amount.String()),
		)
	} else {
		l.logger.Debug("token already minted", zapTokenID(receipt.TokenID))
	}
	l.runAfterMint(MintResultContext{MintContext: mc, Receipt: receipt, Duration: time.Since(start)})
	return receipt, nil
}

// checkVoucher verifies the voucher's owner and signature against the
// ledger's current state.
func checkVoucher(tx Tx, voucher lazymint.Voucher, recipient common.Address) error {
	if voucher.Owner != recipient {
		return lazymint.NewLedgerError(lazymint.ErrCodeOwnershipMismatch, "voucher owner mismatch", map[string]interface{}{
			"owner":     voucher.Owner.Hex(),
			"recipient": recipient.Hex(),
		})
	}

	meta, err := deployedMeta(tx)
	if err != nil {
		return err
	}
	return evm.VerifyVoucher(voucher, evm.VoucherDomain(meta.ChainID, meta.Address), meta.Signer)
}

// mint re-checks the voucher inside the write transaction, since the signer
// may have rotated since Mint's first check.
func mint(tx Tx, voucher lazymint.Voucher, recipient common.Address) (lazymint.MintReceipt, error) {
	if err := checkVoucher(tx, voucher, recipient); err != nil {
		return lazymint.MintReceipt{}, err
	}

	tokenID := lazymint.BigOrZero(voucher.TokenID)
	amount := lazymint.BigOrZero(voucher.Amount)
	receipt := lazymint.MintReceipt{
		TokenID:   tokenID,
		Recipient: recipient,
		Amount:    amount,
		URI:       voucher.URI,
	}

	record, err := tx.Token(tokenID)
	if err != nil {
		return lazymint.MintReceipt{}, err
	}
	if record.Minted {
		return receipt, nil
	}

	if recipient == (common.Address{}) {
		return lazymint.MintReceipt{}, invalidAddress("recipient")
	}

	balance, err := tx.Balance(recipient, tokenID)
	if err != nil {
		return lazymint.MintReceipt{}, err
	}
	if err := tx.PutBalance(recipient, tokenID, new(big.Int).Add(balance, amount)); err != nil {
		return lazymint.MintReceipt{}, err
	}
	if err := tx.PutToken(tokenID, TokenRecord{Minted: true, URI: voucher.URI}); err != nil {
		return lazymint.MintReceipt{}, err
	}

	receipt.Issued = true
	return receipt, nil
}

// IsTokenMinted reports whether tokenID has been issued.
func (l *Ledger) IsTokenMinted(ctx context.Context, tokenID *big.Int) (bool, error) {
	var minted bool
	err := l.store.View(ctx, func(tx Tx) error {
		record, err := tx.Token(tokenID)
		minted = record.Minted
		return err
	})
	return minted, err
}

// BalanceOf returns holder's balance of tokenID.
func (l *Ledger) BalanceOf(ctx context.Context, holder common.Address, tokenID *big.Int) (*big.Int, error) {
	var balance *big.Int
	err := l.store.View(ctx, func(tx Tx) error {
		var err error
		balance, err = tx.Balance(holder, tokenID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return balance, nil
}

// URI returns the metadata pointer stored when tokenID was minted, or "" if it was not.
func (l *Ledger) URI(ctx context.Context, tokenID *big.Int) (string, error) {
	var uri string
	err := l.store.View(ctx, func(tx Tx) error {
		record, err := tx.Token(tokenID)
		uri = record.URI
		return err
	})
	return uri, err
}

// SupportsInterface reports ERC-165, ERC-1155 and ERC-1155 metadata URI support.
func (l *Ledger) SupportsInterface(interfaceID [4]byte) bool {
	switch interfaceID {
	case evm.InterfaceIDERC165, evm.InterfaceIDERC1155, evm.InterfaceIDERC1155MetadataURI:
		return true
	}
	return false
}

func deployedMeta(tx Tx) (Meta, error) {
	meta, err := tx.Meta()
	if err != nil {
		return Meta{}, err
	}
	if !meta.Deployed() {
		return Meta{}, ErrNotDeployed
	}
	return meta, nil
}

func invalidAddress(field string) *lazymint.LedgerError {
	return lazymint.NewLedgerError(lazymint.ErrCodeInvalidAddress, fmt.Sprintf("%s cannot be the zero address", field), map[string]interface{}{
		"field": field,
	})
}

func zapTokenID(tokenID *big.Int) zap.Field {
	return zap.String("tokenId", lazymint.BigOrZero(tokenID).String())
}

// IsDeployed reports whether the store backing l has been initialized.
func (l *Ledger) IsDeployed(ctx context.Context) (bool, error) {
	_, err := l.Meta(ctx)
	if errors.Is(err, ErrNotDeployed) {
		return false, nil
	}
	return err == nil, err
}

var (
	_ lazymint.Minter                = (*Ledger)(nil)
	_ lazymint.ApprovalRegistry      = (*Ledger)(nil)
	_ lazymint.InterfaceIntrospector = (*Ledger)(nil)
)
