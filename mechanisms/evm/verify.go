package evm

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/artiart/lazymint"
)

var (
	errSignatureLength = errors.New("signature must be 65 bytes")
	errSignatureValues = errors.New("signature has invalid v, r or s")
	errZeroSigner      = errors.New("signature recovers to the zero address")
)

// RecoverVoucherSigner recovers the address that signed voucher under domain.
func RecoverVoucherSigner(voucher lazymint.Voucher, domain TypedDataDomain) (common.Address, error) {
	digest, err := HashVoucher(voucher, domain)
	if err != nil {
		return common.Address{}, err
	}
	return RecoverDigestSigner(digest, voucher.Signature)
}

// VerifyVoucher checks that voucher carries a valid signature by expected
// under domain. Every failure, including malformed signatures and
// signatures over a different encoding, is reported as a signature mismatch.
func VerifyVoucher(voucher lazymint.Voucher, domain TypedDataDomain, expected common.Address) error {
	recovered, err := RecoverVoucherSigner(voucher, domain)
	if err != nil {
		return lazymint.NewLedgerError(lazymint.ErrCodeSignatureMismatch, err.Error(), map[string]interface{}{
			"expected": expected.Hex(),
		})
	}
	if recovered != expected {
		return lazymint.NewLedgerError(lazymint.ErrCodeSignatureMismatch,
			fmt.Sprintf("voucher signed by %s, expected %s", recovered.Hex(), expected.Hex()),
			map[string]interface{}{
				"expected":  expected.Hex(),
				"recovered": recovered.Hex(),
			})
	}
	return nil
}

// RecoverDigestSigner recovers the signer of a 32-byte digest from a 65-byte
// [r || s || v] signature. v may be 27/28 or 0/1. High-s signatures are
// rejected, matching the malleability rules of on-chain recovery.
func RecoverDigestSigner(digest []byte, signature []byte) (common.Address, error) {
	if len(signature) != crypto.SignatureLength {
		return common.Address{}, errSignatureLength
	}

	sig := make([]byte, crypto.SignatureLength)
	copy(sig, signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if !crypto.ValidateSignatureValues(sig[crypto.RecoveryIDOffset], r, s, true) {
		return common.Address{}, errSignatureValues
	}

	pubKey, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	address := crypto.PubkeyToAddress(*pubKey)
	if address == (common.Address{}) {
		return common.Address{}, errZeroSigner
	}
	return address, nil
}

// RecoverPersonalSigner recovers the signer of an EIP-191 personal_sign message.
func RecoverPersonalSigner(message []byte, signature []byte) (common.Address, error) {
	return RecoverDigestSigner(accounts.TextHash(message), signature)
}
