package evm

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// GetNetworkConfig returns the configuration for a network identifier. Unknown
// "eip155:<id>" identifiers resolve to a bare config carrying the parsed chain id.
func GetNetworkConfig(network string) (*NetworkConfig, error) {
	if config, ok := NetworkConfigs[network]; ok {
		return &config, nil
	}
	if rest, ok := strings.CutPrefix(network, "eip155:"); ok {
		chainID, ok := new(big.Int).SetString(rest, 10)
		if ok && chainID.Sign() > 0 {
			return &NetworkConfig{ChainID: chainID, Name: network}, nil
		}
	}
	return nil, fmt.Errorf("unsupported network: %s", network)
}

// IsValidNetwork checks if a network is supported
func IsValidNetwork(network string) bool {
	_, err := GetNetworkConfig(network)
	return err == nil
}

// ParseAddress parses a hex address, rejecting anything that is not 20 bytes of hex.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address: %q", s)
	}
	return common.HexToAddress(s), nil
}

// ParseInterfaceID parses a 0x-prefixed 4-byte interface identifier.
func ParseInterfaceID(s string) ([4]byte, error) {
	var id [4]byte
	raw := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(raw) != 8 {
		return id, fmt.Errorf("invalid interface id: %q", s)
	}
	b := common.FromHex(raw)
	if len(b) != 4 {
		return id, fmt.Errorf("invalid interface id: %q", s)
	}
	copy(id[:], b)
	return id, nil
}
