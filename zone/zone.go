// Package zone implements the order authorization hook a settlement protocol
// calls during fulfillment. authorizeOrder decodes a signed voucher from the
// order's extraData and lazily mints it to the fulfiller; validateOrder is a
// no-op acknowledgement.
package zone

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/artiart/lazymint"
	"github.com/artiart/lazymint/ledger"
	"github.com/artiart/lazymint/mechanisms/evm"
)

// LedgerDirectory resolves a ledger address to the issuance ledger deployed there.
type LedgerDirectory interface {
	Lookup(address common.Address) (lazymint.Minter, bool)
}

// StaticDirectory is a fixed address-to-ledger map.
type StaticDirectory map[common.Address]lazymint.Minter

// Lookup implements LedgerDirectory.
func (d StaticDirectory) Lookup(address common.Address) (lazymint.Minter, bool) {
	m, ok := d[address]
	return m, ok
}

// Zone is the order authorization hook.
type Zone struct {
	mu        sync.RWMutex
	owner     common.Address
	nft       common.Address
	address   common.Address
	directory LedgerDirectory
	store     ledger.Store
	logger    *zap.Logger
}

// New creates a zone owned by owner that mints through the ledger at nft.
func New(owner, nft common.Address, directory LedgerDirectory, opts ...Option) (*Zone, error) {
	if owner == (common.Address{}) {
		return nil, lazymint.NewLedgerError(lazymint.ErrCodeInvalidAddress, "owner cannot be the zero address", nil)
	}

	s := applyOptions(opts...)
	address := crypto.CreateAddress(owner, 1)
	if s.address != nil {
		address = *s.address
	}

	return &Zone{
		owner:     owner,
		nft:       nft,
		address:   address,
		directory: directory,
		logger:    s.logger,
	}, nil
}

// Open restores the zone persisted in store, or creates one from owner and
// nft and persists it when store holds none. Later ownership and pointer
// changes are written through to store.
func Open(ctx context.Context, store ledger.Store, owner, nft common.Address, directory LedgerDirectory, opts ...Option) (*Zone, error) {
	var record ledger.ZoneRecord
	err := store.View(ctx, func(tx ledger.Tx) error {
		var err error
		record, err = tx.Zone()
		return err
	})
	if err != nil {
		return nil, err
	}

	if record.Exists() {
		z, err := New(record.Owner, record.Nft, directory, append(opts, WithAddress(record.Address))...)
		if err != nil {
			return nil, err
		}
		z.store = store
		z.logger.Info("zone restored",
			zap.String("owner", record.Owner.Hex()),
			zap.String("nft", record.Nft.Hex()),
		)
		return z, nil
	}

	z, err := New(owner, nft, directory, opts...)
	if err != nil {
		return nil, err
	}
	if err := store.Update(ctx, func(tx ledger.Tx) error {
		return tx.PutZone(z.recordLocked())
	}); err != nil {
		return nil, err
	}
	z.store = store
	return z, nil
}

// Address returns the zone's own identity.
func (z *Zone) Address() common.Address {
	return z.address
}

// Owner returns the zone owner.
func (z *Zone) Owner() common.Address {
	z.mu.RLock()
	defer z.mu.RUnlock()
	return z.owner
}

// NftAddress returns the address of the ledger the zone mints through.
func (z *Zone) NftAddress() common.Address {
	z.mu.RLock()
	defer z.mu.RUnlock()
	return z.nft
}

// AuthorizeOrder decodes the voucher carried in params.ExtraData and mints it
// to params.Fulfiller. The returned acknowledgement is the authorizeOrder selector.
func (z *Zone) AuthorizeOrder(ctx context.Context, caller common.Address, params lazymint.ZoneParameters) (lazymint.AckToken, error) {
	voucher, err := evm.DecodeVoucher(params.ExtraData)
	if err != nil {
		z.logger.Info("authorizeOrder rejected",
			zap.String("orderHash", params.OrderHash.Hex()),
			zap.String("caller", caller.Hex()),
			zap.Error(err),
		)
		return lazymint.AckToken{}, err
	}

	minter, err := z.ledger()
	if err != nil {
		return lazymint.AckToken{}, err
	}

	if err := minter.MintIfNotExists(ctx, voucher, params.Fulfiller); err != nil {
		z.logger.Info("authorizeOrder rejected",
			zap.String("orderHash", params.OrderHash.Hex()),
			zap.String("fulfiller", params.Fulfiller.Hex()),
			zap.String("code", lazymint.CodeOf(err)),
			zap.Error(err),
		)
		return lazymint.AckToken{}, err
	}

	z.logger.Info("order authorized",
		zap.String("orderHash", params.OrderHash.Hex()),
		zap.String("fulfiller", params.Fulfiller.Hex()),
		zap.String("tokenId", lazymint.BigOrZero(voucher.TokenID).String()),
	)
	return evm.AuthorizeOrderSelector, nil
}

// ValidateOrder acknowledges the order without inspecting it.
func (z *Zone) ValidateOrder(ctx context.Context, caller common.Address, params lazymint.ZoneParameters) (lazymint.AckToken, error) {
	return evm.ValidateOrderSelector, nil
}

// SetNftAddress repoints the zone at another ledger. Owner only; the zero
// address is rejected. Any other address is accepted, and authorization
// fails with unknown_ledger until the directory can resolve it.
func (z *Zone) SetNftAddress(ctx context.Context, caller, nft common.Address) error {
	z.mu.Lock()
	defer z.mu.Unlock()

	if err := ledger.RequireOwner(caller, z.owner); err != nil {
		return err
	}
	if nft == (common.Address{}) {
		return lazymint.NewLedgerError(lazymint.ErrCodeInvalidAddress, "nft address cannot be the zero address", map[string]interface{}{
			"field": "nft",
		})
	}

	record := z.recordLocked()
	record.Nft = nft
	if err := z.persistLocked(ctx, record); err != nil {
		return err
	}
	z.nft = nft
	if _, ok := z.directory.Lookup(nft); !ok {
		z.logger.Warn("nft address has no registered ledger", zap.String("nft", nft.Hex()))
	}
	z.logger.Info("nft address updated", zap.String("nft", nft.Hex()))
	return nil
}

// TransferOwnership hands the zone to newOwner. Owner only; the zero address is rejected.
func (z *Zone) TransferOwnership(ctx context.Context, caller, newOwner common.Address) error {
	z.mu.Lock()
	defer z.mu.Unlock()

	if err := ledger.RequireOwner(caller, z.owner); err != nil {
		return err
	}
	if newOwner == (common.Address{}) {
		return lazymint.NewLedgerError(lazymint.ErrCodeInvalidAddress, "owner cannot be the zero address", map[string]interface{}{
			"field": "owner",
		})
	}

	record := z.recordLocked()
	record.Owner = newOwner
	if err := z.persistLocked(ctx, record); err != nil {
		return err
	}
	z.owner = newOwner
	return nil
}

func (z *Zone) recordLocked() ledger.ZoneRecord {
	return ledger.ZoneRecord{Address: z.address, Owner: z.owner, Nft: z.nft}
}

// persistLocked writes record through to the store, if the zone has one.
// In-memory state is only updated after this succeeds.
func (z *Zone) persistLocked(ctx context.Context, record ledger.ZoneRecord) error {
	if z.store == nil {
		return nil
	}
	return z.store.Update(ctx, func(tx ledger.Tx) error {
		return tx.PutZone(record)
	})
}

// GetSeaportMetadata returns the zone name and the single schema it implements.
func (z *Zone) GetSeaportMetadata() (string, []lazymint.Schema) {
	return evm.ZoneName, []lazymint.Schema{{ID: evm.SchemaID, Metadata: []byte{}}}
}

// SupportsInterface reports support for the zone interface and ERC-165.
func (z *Zone) SupportsInterface(interfaceID [4]byte) bool {
	return interfaceID == evm.InterfaceIDZone || interfaceID == evm.InterfaceIDERC165
}

func (z *Zone) ledger() (lazymint.Minter, error) {
	nft := z.NftAddress()
	minter, ok := z.directory.Lookup(nft)
	if !ok {
		return nil, lazymint.NewLedgerError(lazymint.ErrCodeUnknownLedger, fmt.Sprintf("no ledger registered at %s", nft.Hex()), map[string]interface{}{
			"nft": nft.Hex(),
		})
	}
	return minter, nil
}

var (
	_ lazymint.OrderAuthorizer       = (*Zone)(nil)
	_ lazymint.MetadataProvider      = (*Zone)(nil)
	_ lazymint.InterfaceIntrospector = (*Zone)(nil)
)
