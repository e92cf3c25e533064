package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/artiart/lazymint"
	lazyevm "github.com/artiart/lazymint/mechanisms/evm"
)

// VoucherSigner signs vouchers and login messages with an ECDSA private key.
type VoucherSigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewVoucherSignerFromPrivateKey creates a signer from a hex-encoded private key.
//
// Args:
//
//	privateKeyHex: Hex-encoded private key (with or without "0x" prefix)
//
// Example:
//
//	signer, err := evm.NewVoucherSignerFromPrivateKey("0x1234...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	voucher, err = signer.SignVoucher(ctx, voucher, domain)
func NewVoucherSignerFromPrivateKey(privateKeyHex string) (*VoucherSigner, error) {
	privateKeyHex = strings.TrimPrefix(privateKeyHex, "0x")

	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return NewVoucherSigner(privateKey), nil
}

// NewVoucherSigner wraps an existing private key.
func NewVoucherSigner(privateKey *ecdsa.PrivateKey) *VoucherSigner {
	return &VoucherSigner{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
	}
}

// Address returns the Ethereum address of the signer.
func (s *VoucherSigner) Address() common.Address {
	return s.address
}

// SignTypedData signs EIP-712 typed data.
//
// Returns:
//
//	65-byte signature (r, s, v) with v in {27, 28}
//	Error if hashing or signing fails
func (s *VoucherSigner) SignTypedData(
	ctx context.Context,
	domain lazyevm.TypedDataDomain,
	types map[string][]lazyevm.TypedDataField,
	primaryType string,
	message map[string]interface{},
) ([]byte, error) {
	digest, err := lazyevm.HashTypedData(domain, types, primaryType, message)
	if err != nil {
		return nil, err
	}
	return s.signDigest(digest)
}

// SignVoucher returns a copy of voucher carrying the signer's EIP-712 signature under domain.
func (s *VoucherSigner) SignVoucher(ctx context.Context, voucher lazymint.Voucher, domain lazyevm.TypedDataDomain) (lazymint.Voucher, error) {
	signature, err := s.SignTypedData(ctx, domain, lazyevm.GetVoucherEIP712Types(), lazyevm.VoucherPrimaryType, lazyevm.VoucherMessage(voucher))
	if err != nil {
		return lazymint.Voucher{}, err
	}
	voucher.Signature = signature
	return voucher, nil
}

// SignPersonalMessage signs message with the EIP-191 personal_sign prefix.
func (s *VoucherSigner) SignPersonalMessage(ctx context.Context, message []byte) ([]byte, error) {
	return s.signDigest(accounts.TextHash(message))
}

func (s *VoucherSigner) signDigest(digest []byte) ([]byte, error) {
	signature, err := crypto.Sign(digest, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}

	// Adjust v value for Ethereum (recovery ID 0/1 → 27/28)
	signature[64] += 27

	return signature, nil
}
