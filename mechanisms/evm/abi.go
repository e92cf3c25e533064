package evm

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/artiart/lazymint"
)

// voucherTuple mirrors tuple(address owner,uint256 tokenId,uint256 amount,string uri,bytes signature).
// Field names follow the ABI's camel-cased component names.
type voucherTuple struct {
	Owner     common.Address
	TokenId   *big.Int
	Amount    *big.Int
	Uri       string
	Signature []byte
}

var voucherArguments = mustVoucherArguments()

func mustVoucherArguments() abi.Arguments {
	tupleType, err := abi.NewType("tuple", "", []abi.ArgumentMarshaling{
		{Name: "owner", Type: "address"},
		{Name: "tokenId", Type: "uint256"},
		{Name: "amount", Type: "uint256"},
		{Name: "uri", Type: "string"},
		{Name: "signature", Type: "bytes"},
	})
	if err != nil {
		panic(fmt.Sprintf("voucher tuple type: %v", err))
	}
	return abi.Arguments{{Name: "voucher", Type: tupleType}}
}

// EncodeVoucher ABI-encodes a signed voucher as the zone's extraData payload.
func EncodeVoucher(voucher lazymint.Voucher) ([]byte, error) {
	data, err := voucherArguments.Pack(voucherTuple{
		Owner:     voucher.Owner,
		TokenId:   lazymint.BigOrZero(voucher.TokenID),
		Amount:    lazymint.BigOrZero(voucher.Amount),
		Uri:       voucher.URI,
		Signature: voucher.Signature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode voucher: %w", err)
	}
	return data, nil
}

// DecodeVoucher decodes extraData produced by EncodeVoucher. Malformed or
// undersized payloads yield a decode_failure LedgerError; the decoder never panics.
func DecodeVoucher(extraData []byte) (voucher lazymint.Voucher, err error) {
	defer func() {
		if r := recover(); r != nil {
			voucher = lazymint.Voucher{}
			err = decodeFailure(fmt.Sprintf("%v", r), len(extraData))
		}
	}()

	values, err := voucherArguments.Unpack(extraData)
	if err != nil {
		return lazymint.Voucher{}, decodeFailure(err.Error(), len(extraData))
	}
	if len(values) != 1 {
		return lazymint.Voucher{}, decodeFailure(fmt.Sprintf("expected 1 value, got %d", len(values)), len(extraData))
	}

	tuple := *abi.ConvertType(values[0], new(voucherTuple)).(*voucherTuple)
	return lazymint.Voucher{
		Owner:     tuple.Owner,
		TokenID:   tuple.TokenId,
		Amount:    tuple.Amount,
		URI:       tuple.Uri,
		Signature: tuple.Signature,
	}, nil
}

func decodeFailure(reason string, size int) *lazymint.LedgerError {
	return lazymint.NewLedgerError(lazymint.ErrCodeDecodeFailure, "malformed voucher payload: "+reason, map[string]interface{}{
		"size": size,
	})
}

// Selector returns the 4-byte function selector of a canonical signature.
func Selector(signature string) lazymint.AckToken {
	var selector lazymint.AckToken
	copy(selector[:], crypto.Keccak256([]byte(signature))[:4])
	return selector
}

// Seaport 1.6 zone callback selectors. XORed with getSeaportMetadata() and
// supportsInterface(bytes4) they give InterfaceIDZone.
var (
	// AuthorizeOrderSelector is returned by a zone that authorized an order.
	AuthorizeOrderSelector = lazymint.AckToken{0x01, 0xe4, 0xd7, 0x2a}
	// ValidateOrderSelector is returned by a zone that validated an order.
	ValidateOrderSelector = lazymint.AckToken{0x17, 0xb1, 0xf9, 0x42}
)
