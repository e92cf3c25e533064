package http

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/artiart/lazymint"
	"github.com/artiart/lazymint/mechanisms/evm"
)

// ============================================================================
// Auth
// ============================================================================

type NonceRequest struct {
	Address common.Address `json:"address"`
}

type NonceResponse struct {
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type LoginRequest struct {
	Address   common.Address `json:"address"`
	Signature string         `json:"signature"`
}

type LoginResponse struct {
	Token     string         `json:"token"`
	Address   common.Address `json:"address"`
	ExpiresAt time.Time      `json:"expiresAt"`
}

// ============================================================================
// Ledger
// ============================================================================

type LedgerInfo struct {
	Address common.Address      `json:"address"`
	ChainID *big.Int            `json:"chainId"`
	Owner   common.Address      `json:"owner"`
	Signer  common.Address      `json:"signer"`
	Domain  evm.TypedDataDomain `json:"domain"`
}

type TokenResponse struct {
	TokenID *big.Int `json:"tokenId"`
	Minted  bool     `json:"minted"`
	URI     string   `json:"uri"`
}

type BalanceResponse struct {
	Holder  common.Address `json:"holder"`
	TokenID *big.Int       `json:"tokenId"`
	Balance *big.Int       `json:"balance"`
}

type ApprovalResponse struct {
	Holder   common.Address `json:"holder"`
	Operator common.Address `json:"operator"`
	Approved bool           `json:"approved"`
}

type GlobalApproverResponse struct {
	Operator common.Address `json:"operator"`
	Approved bool           `json:"approved"`
}

type OptOutResponse struct {
	Holder   common.Address `json:"holder"`
	OptedOut bool           `json:"optedOut"`
}

// MintRequest carries a signed voucher. Recipient defaults to the
// authenticated caller when omitted.
type MintRequest struct {
	Voucher   lazymint.Voucher `json:"voucher"`
	Recipient *common.Address  `json:"recipient,omitempty"`
}

type SignerRequest struct {
	Signer common.Address `json:"signer"`
}

type OwnerRequest struct {
	Owner common.Address `json:"owner"`
}

type ApprovalRequest struct {
	Operator common.Address `json:"operator"`
	Approved bool           `json:"approved"`
}

type OptOutRequest struct {
	OptOut bool `json:"optOut"`
}

// ============================================================================
// Zone
// ============================================================================

type ZoneInfo struct {
	Address common.Address `json:"address"`
	Owner   common.Address `json:"owner"`
	Nft     common.Address `json:"nft"`
}

type NftRequest struct {
	Nft common.Address `json:"nft"`
}

type MetadataResponse struct {
	Name    string            `json:"name"`
	Schemas []lazymint.Schema `json:"schemas"`
}

type InterfaceResponse struct {
	InterfaceID string `json:"interfaceId"`
	Supported   bool   `json:"supported"`
}

type AckResponse struct {
	Magic lazymint.AckToken `json:"magic"`
}
