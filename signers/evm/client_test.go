package evm

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artiart/lazymint"
	lazyevm "github.com/artiart/lazymint/mechanisms/evm"
)

const hardhatKey0 = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestNewVoucherSignerFromPrivateKey(t *testing.T) {
	withPrefix, err := NewVoucherSignerFromPrivateKey(hardhatKey0)
	require.NoError(t, err)
	withoutPrefix, err := NewVoucherSignerFromPrivateKey(hardhatKey0[2:])
	require.NoError(t, err)

	assert.Equal(t, withPrefix.Address(), withoutPrefix.Address())
	assert.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), withPrefix.Address())

	_, err = NewVoucherSignerFromPrivateKey("0xnothex")
	assert.Error(t, err)
}

func TestSignVoucher(t *testing.T) {
	ctx := context.Background()
	signer, err := NewVoucherSignerFromPrivateKey(hardhatKey0)
	require.NoError(t, err)

	domain := lazyevm.VoucherDomain(lazyevm.ChainIDHardhat, common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"))
	voucher := lazymint.Voucher{
		Owner:   common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"),
		TokenID: big.NewInt(189),
		Amount:  big.NewInt(7),
		URI:     "ipfs://x",
	}

	signed, err := signer.SignVoucher(ctx, voucher, domain)
	require.NoError(t, err)
	require.Len(t, signed.Signature, 65)
	assert.Contains(t, []byte{27, 28}, signed.Signature[64])
	assert.Nil(t, voucher.Signature, "input voucher is not modified")

	assert.NoError(t, lazyevm.VerifyVoucher(signed, domain, signer.Address()))
}

func TestSignPersonalMessage(t *testing.T) {
	ctx := context.Background()
	signer, err := NewVoucherSignerFromPrivateKey(hardhatKey0)
	require.NoError(t, err)

	message := []byte("Welcome to Artiart!")
	signature, err := signer.SignPersonalMessage(ctx, message)
	require.NoError(t, err)

	recovered, err := lazyevm.RecoverPersonalSigner(message, signature)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), recovered)

	// A personal signature is never a voucher signature.
	voucher := lazymint.Voucher{Owner: signer.Address(), TokenID: big.NewInt(1), Amount: big.NewInt(1), Signature: signature}
	err = lazyevm.VerifyVoucher(voucher, lazyevm.VoucherDomain(lazyevm.ChainIDHardhat, common.Address{}), signer.Address())
	assert.True(t, errors.Is(err, lazymint.ErrSignatureMismatch))
}
