package evm

import (
	"math/big"
)

const (
	// EIP-712 domain of the issuance ledger
	DomainName    = "LazyMint1155"
	DomainVersion = "1"

	// Primary type of the signed voucher payload
	VoucherPrimaryType = "Voucher"

	// ZoneName is reported by the order authorization hook's metadata.
	ZoneName = "ArtiartZone"

	// SchemaID is the settlement-protocol extension schema the hook implements.
	SchemaID = 3003

	// DefaultNetwork is used when no network is configured.
	DefaultNetwork = "eip155:31337"
)

var (
	// ERC-165 interface identifiers
	InterfaceIDERC165             = [4]byte{0x01, 0xff, 0xc9, 0xa7}
	InterfaceIDZone               = [4]byte{0x39, 0xdd, 0x69, 0x33}
	InterfaceIDERC1155            = [4]byte{0xd9, 0xb6, 0x7a, 0x26}
	InterfaceIDERC1155MetadataURI = [4]byte{0x0e, 0x89, 0x34, 0x1c}
	InterfaceIDInvalid            = [4]byte{0xff, 0xff, 0xff, 0xff}

	// Network chain IDs
	ChainIDMainnet     = big.NewInt(1)
	ChainIDSepolia     = big.NewInt(11155111)
	ChainIDBase        = big.NewInt(8453)
	ChainIDBaseSepolia = big.NewInt(84532)
	ChainIDHardhat     = big.NewInt(31337)

	// Network configurations, keyed by CAIP-2 identifier and legacy name
	NetworkConfigs = map[string]NetworkConfig{
		"eip155:1":        {ChainID: ChainIDMainnet, Name: "Ethereum"},
		"ethereum":        {ChainID: ChainIDMainnet, Name: "Ethereum"},
		"eip155:11155111": {ChainID: ChainIDSepolia, Name: "Sepolia"},
		"sepolia":         {ChainID: ChainIDSepolia, Name: "Sepolia"},
		"eip155:8453":     {ChainID: ChainIDBase, Name: "Base"},
		"base":            {ChainID: ChainIDBase, Name: "Base"},
		"eip155:84532":    {ChainID: ChainIDBaseSepolia, Name: "Base Sepolia"},
		"base-sepolia":    {ChainID: ChainIDBaseSepolia, Name: "Base Sepolia"},
		"eip155:31337":    {ChainID: ChainIDHardhat, Name: "Hardhat"},
		"hardhat":         {ChainID: ChainIDHardhat, Name: "Hardhat"},
	}
)
