package mcp

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/artiart/lazymint"
)

// Tool names
const (
	ToolIsTokenMinted    = "is_token_minted"
	ToolBalanceOf        = "balance_of"
	ToolIsApprovedForAll = "is_approved_for_all"
	ToolZoneMetadata     = "zone_metadata"
	ToolLedgerInfo       = "ledger_info"
)

// TokenArgs selects a token.
type TokenArgs struct {
	TokenID string `json:"tokenId"`
}

// BalanceArgs selects a holder's balance of a token.
type BalanceArgs struct {
	Holder  string `json:"holder"`
	TokenID string `json:"tokenId"`
}

// ApprovalArgs selects a holder/operator pair.
type ApprovalArgs struct {
	Holder   string `json:"holder"`
	Operator string `json:"operator"`
}

type TokenMintedResult struct {
	TokenID *big.Int `json:"tokenId"`
	Minted  bool     `json:"minted"`
}

type BalanceResult struct {
	Holder  common.Address `json:"holder"`
	TokenID *big.Int       `json:"tokenId"`
	Balance *big.Int       `json:"balance"`
}

type ApprovalResult struct {
	Holder   common.Address `json:"holder"`
	Operator common.Address `json:"operator"`
	Approved bool           `json:"approved"`
}

type ZoneMetadataResult struct {
	Name    string            `json:"name"`
	Schemas []lazymint.Schema `json:"schemas"`
	Zone    common.Address    `json:"zone"`
	Nft     common.Address    `json:"nft"`
}

type LedgerInfoResult struct {
	Address common.Address `json:"address"`
	ChainID *big.Int       `json:"chainId"`
	Owner   common.Address `json:"owner"`
	Signer  common.Address `json:"signer"`
}

// ToolError is the payload of a tool call that failed.
type ToolError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
