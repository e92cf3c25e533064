package lazymint

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ============================================================================
// Capability interfaces
// ============================================================================

// Minter issues tokens from signed vouchers, at most once per token id.
type Minter interface {
	// MintIfNotExists validates the voucher for recipient and issues it unless
	// the token has already been minted, in which case it is a no-op.
	MintIfNotExists(ctx context.Context, voucher Voucher, recipient common.Address) error

	IsTokenMinted(ctx context.Context, tokenID *big.Int) (bool, error)

	BalanceOf(ctx context.Context, holder common.Address, tokenID *big.Int) (*big.Int, error)
}

// ApprovalRegistry resolves operator approvals. Effective approval combines
// holder approvals with owner-curated global approvers, subject to holder opt-out.
type ApprovalRegistry interface {
	IsApprovedForAll(ctx context.Context, holder, operator common.Address) (bool, error)
	SetApprovalForAll(ctx context.Context, caller, operator common.Address, approved bool) error
	SetGlobalApproval(ctx context.Context, caller, operator common.Address, approved bool) error
	IsGlobalApprover(ctx context.Context, operator common.Address) (bool, error)
	SetGlobalApprovalOptOut(ctx context.Context, caller common.Address, optOut bool) error
	HasOptedOutOfGlobalApproval(ctx context.Context, holder common.Address) (bool, error)
}

// InterfaceIntrospector answers ERC-165 style capability queries.
type InterfaceIntrospector interface {
	SupportsInterface(interfaceID [4]byte) bool
}

// OrderAuthorizer is the callback surface a settlement protocol invokes on a zone.
type OrderAuthorizer interface {
	AuthorizeOrder(ctx context.Context, caller common.Address, params ZoneParameters) (AckToken, error)
	ValidateOrder(ctx context.Context, caller common.Address, params ZoneParameters) (AckToken, error)
}

// MetadataProvider returns the zone's name and the extension schemas it implements.
type MetadataProvider interface {
	GetSeaportMetadata() (string, []Schema)
}
