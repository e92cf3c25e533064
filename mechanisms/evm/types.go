package evm

import (
	"math/big"
)

// TypedDataDomain represents the EIP-712 domain
type TypedDataDomain struct {
	Name              string   `json:"name"`
	Version           string   `json:"version"`
	ChainID           *big.Int `json:"chainId"`
	VerifyingContract string   `json:"verifyingContract"`
}

// TypedDataField represents a field in EIP-712 typed data
type TypedDataField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// NetworkConfig describes a supported EVM network
type NetworkConfig struct {
	ChainID *big.Int
	Name    string
}

// GetVoucherEIP712Types returns the EIP-712 type set used to sign vouchers.
func GetVoucherEIP712Types() map[string][]TypedDataField {
	return map[string][]TypedDataField{
		"EIP712Domain": {
			{Name: "name", Type: "string"},
			{Name: "version", Type: "string"},
			{Name: "chainId", Type: "uint256"},
			{Name: "verifyingContract", Type: "address"},
		},
		VoucherPrimaryType: {
			{Name: "owner", Type: "address"},
			{Name: "tokenId", Type: "uint256"},
			{Name: "amount", Type: "uint256"},
			{Name: "uri", Type: "string"},
		},
	}
}
