package ledger

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrReadOnly is returned by Tx setters inside View.
	ErrReadOnly = errors.New("ledger: write attempted in read-only transaction")
	// ErrNotDeployed is returned when a ledger is used before Deploy initialized its store.
	ErrNotDeployed = errors.New("ledger: store has not been deployed")
	// ErrAlreadyDeployed is returned by Deploy when the store already holds a ledger.
	ErrAlreadyDeployed = errors.New("ledger: store already deployed")
	// ErrStoreClosed is returned by a store after Close.
	ErrStoreClosed = errors.New("ledger: store closed")
)

// Meta holds the identities fixed or administered at the ledger level.
type Meta struct {
	Address common.Address // verifying entity of the signing domain
	ChainID *big.Int
	Owner   common.Address
	Signer  common.Address
}

// Deployed reports whether the metadata has been initialized by Deploy.
func (m Meta) Deployed() bool {
	return m.Owner != (common.Address{})
}

// ZoneRecord is the persisted state of the order zone served alongside the ledger.
type ZoneRecord struct {
	Address common.Address
	Owner   common.Address
	Nft     common.Address
}

// Exists reports whether the record has been written.
func (z ZoneRecord) Exists() bool {
	return z.Owner != (common.Address{})
}

// TokenRecord is the per-token issuance record. Minted is never reset.
type TokenRecord struct {
	Minted bool   `json:"minted"`
	URI    string `json:"uri,omitempty"`
}

// Tx is a view of ledger state within a single store transaction.
type Tx interface {
	Meta() (Meta, error)
	PutMeta(meta Meta) error

	Zone() (ZoneRecord, error)
	PutZone(record ZoneRecord) error

	Token(tokenID *big.Int) (TokenRecord, error)
	PutToken(tokenID *big.Int, record TokenRecord) error

	Balance(holder common.Address, tokenID *big.Int) (*big.Int, error)
	PutBalance(holder common.Address, tokenID *big.Int, amount *big.Int) error

	Approval(holder, operator common.Address) (bool, error)
	PutApproval(holder, operator common.Address, approved bool) error

	GlobalApprover(operator common.Address) (bool, error)
	PutGlobalApprover(operator common.Address, approved bool) error

	OptedOut(holder common.Address) (bool, error)
	PutOptOut(holder common.Address, optOut bool) error
}

// Store serializes access to ledger state.
//
// Update runs fn with exclusive access and commits its writes only if fn
// returns nil; on error every write made by fn is discarded. View runs fn
// against a consistent read-only view. Implementations must be safe for
// concurrent use.
type Store interface {
	View(ctx context.Context, fn func(tx Tx) error) error
	Update(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}
