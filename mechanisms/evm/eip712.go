package evm

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/artiart/lazymint"
)

// HashTypedData hashes EIP-712 typed data
//
// The hash is computed as: keccak256("\x19\x01" + domainSeparator + structHash)
//
// Args:
//
//	domain: The EIP-712 domain separator parameters
//	types: The type definitions for the structured data
//	primaryType: The name of the primary type being hashed
//	message: The message data to hash
//
// Returns:
//
//	32-byte hash suitable for signing or verification
//	error if hashing fails
func HashTypedData(
	domain TypedDataDomain,
	types map[string][]TypedDataField,
	primaryType string,
	message map[string]interface{},
) ([]byte, error) {
	typedData := toAPITypedData(domain, types, primaryType, message)

	dataHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash struct: %w", err)
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}

	// Create EIP-712 digest: 0x19 0x01 <domainSeparator> <dataHash>
	rawData := []byte{0x19, 0x01}
	rawData = append(rawData, domainSeparator...)
	rawData = append(rawData, dataHash...)
	return crypto.Keccak256(rawData), nil
}

// HashDomainSeparator returns the EIP-712 domain separator for domain.
func HashDomainSeparator(domain TypedDataDomain) ([]byte, error) {
	typedData := toAPITypedData(domain, nil, "", nil)
	separator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}
	return separator, nil
}

func toAPITypedData(
	domain TypedDataDomain,
	types map[string][]TypedDataField,
	primaryType string,
	message map[string]interface{},
) apitypes.TypedData {
	typedData := apitypes.TypedData{
		Types:       make(apitypes.Types),
		PrimaryType: primaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              domain.Name,
			Version:           domain.Version,
			ChainId:           (*math.HexOrDecimal256)(domain.ChainID),
			VerifyingContract: domain.VerifyingContract,
		},
		Message: message,
	}

	for typeName, fields := range types {
		typedFields := make([]apitypes.Type, len(fields))
		for i, field := range fields {
			typedFields[i] = apitypes.Type{
				Name: field.Name,
				Type: field.Type,
			}
		}
		typedData.Types[typeName] = typedFields
	}

	if _, exists := typedData.Types["EIP712Domain"]; !exists {
		typedData.Types["EIP712Domain"] = []apitypes.Type{
			{Name: "name", Type: "string"},
			{Name: "version", Type: "string"},
			{Name: "chainId", Type: "uint256"},
			{Name: "verifyingContract", Type: "address"},
		}
	}
	return typedData
}

// VoucherDomain returns the signing domain of the ledger deployed at ledger on chainID.
func VoucherDomain(chainID *big.Int, ledger common.Address) TypedDataDomain {
	return TypedDataDomain{
		Name:              DomainName,
		Version:           DomainVersion,
		ChainID:           new(big.Int).Set(lazymint.BigOrZero(chainID)),
		VerifyingContract: ledger.Hex(),
	}
}

// VoucherMessage converts a voucher into the EIP-712 message map. The
// signature is not part of the signed payload.
func VoucherMessage(voucher lazymint.Voucher) map[string]interface{} {
	return map[string]interface{}{
		"owner":   voucher.Owner.Hex(),
		"tokenId": lazymint.BigOrZero(voucher.TokenID),
		"amount":  lazymint.BigOrZero(voucher.Amount),
		"uri":     voucher.URI,
	}
}

// HashVoucher returns the EIP-712 digest a signer must sign to authorize voucher.
func HashVoucher(voucher lazymint.Voucher, domain TypedDataDomain) ([]byte, error) {
	return HashTypedData(domain, GetVoucherEIP712Types(), VoucherPrimaryType, VoucherMessage(voucher))
}
