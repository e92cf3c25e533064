// Package storetest holds the behavioural suite every ledger.Store
// implementation must pass, plus fixtures shared by ledger tests.
package storetest

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artiart/lazymint"
	"github.com/artiart/lazymint/ledger"
	signers "github.com/artiart/lazymint/signers/evm"
)

// Hardhat development keys.
const (
	OwnerKey     = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	RecipientKey = "0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
	StrangerKey  = "0x5de4111afa1a4b94908f83103eb1f1706367c2e68ca870fc3fb9a804cdab365a"
	SignerKey    = "0x7c852118294e51e653712a81e05800f419141751be58f605c371e15141b007a6"
)

// Fixture bundles the identities used across ledger tests.
type Fixture struct {
	Owner     *signers.VoucherSigner
	Signer    *signers.VoucherSigner
	Recipient *signers.VoucherSigner
	Stranger  *signers.VoucherSigner
}

// NewFixture loads the development keys.
func NewFixture(t testing.TB) Fixture {
	t.Helper()
	load := func(key string) *signers.VoucherSigner {
		s, err := signers.NewVoucherSignerFromPrivateKey(key)
		require.NoError(t, err)
		return s
	}
	return Fixture{
		Owner:     load(OwnerKey),
		Signer:    load(SignerKey),
		Recipient: load(RecipientKey),
		Stranger:  load(StrangerKey),
	}
}

// Deploy deploys a ledger over store with the fixture's owner and signer.
func (f Fixture) Deploy(t testing.TB, store ledger.Store, opts ...ledger.Option) *ledger.Ledger {
	t.Helper()
	l, err := ledger.Deploy(context.Background(), store, f.Owner.Address(), f.Signer.Address(), opts...)
	require.NoError(t, err)
	return l
}

// Voucher returns a voucher for owner signed by signer under l's domain.
func (f Fixture) Voucher(t testing.TB, l *ledger.Ledger, signer *signers.VoucherSigner, owner common.Address, tokenID, amount int64, uri string) lazymint.Voucher {
	t.Helper()
	ctx := context.Background()
	domain, err := l.Domain(ctx)
	require.NoError(t, err)
	v, err := signer.SignVoucher(ctx, lazymint.Voucher{
		Owner:   owner,
		TokenID: big.NewInt(tokenID),
		Amount:  big.NewInt(amount),
		URI:     uri,
	}, domain)
	require.NoError(t, err)
	return v
}

// Run exercises a Store implementation through the Ledger API.
// newStore must return a fresh, empty store on every call.
func Run(t *testing.T, newStore func(t *testing.T) ledger.Store) {
	f := NewFixture(t)
	ctx := context.Background()

	t.Run("deploy", func(t *testing.T) {
		store := newStore(t)
		l := f.Deploy(t, store)

		meta, err := l.Meta(ctx)
		require.NoError(t, err)
		assert.Equal(t, f.Owner.Address(), meta.Owner)
		assert.Equal(t, f.Signer.Address(), meta.Signer)
		assert.Equal(t, crypto.CreateAddress(f.Owner.Address(), 0), meta.Address)
		assert.Equal(t, int64(31337), meta.ChainID.Int64())

		_, err = ledger.Deploy(ctx, store, f.Stranger.Address(), f.Stranger.Address())
		assert.ErrorIs(t, err, ledger.ErrAlreadyDeployed)

		owner, err := ledger.New(store).Owner(ctx)
		require.NoError(t, err)
		assert.Equal(t, f.Owner.Address(), owner)
	})

	t.Run("not deployed", func(t *testing.T) {
		l := ledger.New(newStore(t))
		_, err := l.Owner(ctx)
		assert.ErrorIs(t, err, ledger.ErrNotDeployed)

		deployed, err := l.IsDeployed(ctx)
		require.NoError(t, err)
		assert.False(t, deployed)
	})

	t.Run("mint once per token", func(t *testing.T) {
		l := f.Deploy(t, newStore(t))
		r := f.Recipient.Address()
		v := f.Voucher(t, l, f.Signer, r, 189, 7, "ipfs://x")

		minted, err := l.IsTokenMinted(ctx, big.NewInt(189))
		require.NoError(t, err)
		assert.False(t, minted)

		receipt, err := l.Mint(ctx, v, r)
		require.NoError(t, err)
		assert.True(t, receipt.Issued)

		receipt, err = l.Mint(ctx, v, r)
		require.NoError(t, err)
		assert.False(t, receipt.Issued)

		again := f.Voucher(t, l, f.Signer, r, 189, 1000, "ipfs://other")
		require.NoError(t, l.MintIfNotExists(ctx, again, r))

		balance, err := l.BalanceOf(ctx, r, big.NewInt(189))
		require.NoError(t, err)
		assert.Equal(t, int64(7), balance.Int64())

		minted, err = l.IsTokenMinted(ctx, big.NewInt(189))
		require.NoError(t, err)
		assert.True(t, minted)

		uri, err := l.URI(ctx, big.NewInt(189))
		require.NoError(t, err)
		assert.Equal(t, "ipfs://x", uri)
	})

	t.Run("large token ids and amounts", func(t *testing.T) {
		l := f.Deploy(t, newStore(t))
		r := f.Recipient.Address()
		domain, err := l.Domain(ctx)
		require.NoError(t, err)

		maxUint256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
		v, err := f.Signer.SignVoucher(ctx, lazymint.Voucher{Owner: r, TokenID: maxUint256, Amount: maxUint256, URI: "ipfs://max"}, domain)
		require.NoError(t, err)
		require.NoError(t, l.MintIfNotExists(ctx, v, r))

		balance, err := l.BalanceOf(ctx, r, maxUint256)
		require.NoError(t, err)
		assert.Equal(t, 0, maxUint256.Cmp(balance))
	})

	t.Run("ownership mismatch", func(t *testing.T) {
		l := f.Deploy(t, newStore(t))
		v := f.Voucher(t, l, f.Signer, f.Recipient.Address(), 1, 1, "ipfs://1")

		err := l.MintIfNotExists(ctx, v, f.Stranger.Address())
		assert.ErrorIs(t, err, lazymint.ErrOwnershipMismatch)

		// An unsigned voucher still reports the ownership failure first.
		err = l.MintIfNotExists(ctx, v.Unsigned(), f.Stranger.Address())
		assert.ErrorIs(t, err, lazymint.ErrOwnershipMismatch)

		minted, err := l.IsTokenMinted(ctx, big.NewInt(1))
		require.NoError(t, err)
		assert.False(t, minted)
	})

	t.Run("signature mismatch", func(t *testing.T) {
		l := f.Deploy(t, newStore(t))
		r := f.Recipient.Address()

		forged := f.Voucher(t, l, f.Stranger, r, 2, 5, "ipfs://2")
		err := l.MintIfNotExists(ctx, forged, r)
		assert.ErrorIs(t, err, lazymint.ErrSignatureMismatch)

		balance, err := l.BalanceOf(ctx, r, big.NewInt(2))
		require.NoError(t, err)
		assert.Equal(t, 0, balance.Sign())
	})

	t.Run("tampered voucher for minted token still fails", func(t *testing.T) {
		l := f.Deploy(t, newStore(t))
		r := f.Recipient.Address()
		v := f.Voucher(t, l, f.Signer, r, 3, 1, "ipfs://3")
		require.NoError(t, l.MintIfNotExists(ctx, v, r))

		v.Amount = big.NewInt(99)
		err := l.MintIfNotExists(ctx, v, r)
		assert.ErrorIs(t, err, lazymint.ErrSignatureMismatch)
	})

	t.Run("signer rotation", func(t *testing.T) {
		l := f.Deploy(t, newStore(t))
		r := f.Recipient.Address()

		err := l.SetSigner(ctx, f.Stranger.Address(), f.Stranger.Address())
		assert.ErrorIs(t, err, lazymint.ErrNotOwner)

		err = l.SetSigner(ctx, f.Owner.Address(), common.Address{})
		assert.ErrorIs(t, err, lazymint.ErrInvalidAddress)

		old := f.Voucher(t, l, f.Signer, r, 4, 1, "ipfs://4")
		require.NoError(t, l.SetSigner(ctx, f.Owner.Address(), f.Stranger.Address()))

		signer, err := l.Signer(ctx)
		require.NoError(t, err)
		assert.Equal(t, f.Stranger.Address(), signer)

		assert.ErrorIs(t, l.MintIfNotExists(ctx, old, r), lazymint.ErrSignatureMismatch)
		fresh := f.Voucher(t, l, f.Stranger, r, 4, 1, "ipfs://4")
		assert.NoError(t, l.MintIfNotExists(ctx, fresh, r))
	})

	t.Run("ownership transfer", func(t *testing.T) {
		l := f.Deploy(t, newStore(t))
		assert.ErrorIs(t, l.TransferOwnership(ctx, f.Stranger.Address(), f.Stranger.Address()), lazymint.ErrNotOwner)
		assert.ErrorIs(t, l.TransferOwnership(ctx, f.Owner.Address(), common.Address{}), lazymint.ErrInvalidAddress)

		require.NoError(t, l.TransferOwnership(ctx, f.Owner.Address(), f.Stranger.Address()))
		assert.ErrorIs(t, l.SetGlobalApproval(ctx, f.Owner.Address(), f.Recipient.Address(), true), lazymint.ErrNotOwner)
		assert.NoError(t, l.SetGlobalApproval(ctx, f.Stranger.Address(), f.Recipient.Address(), true))
	})

	t.Run("approval truth table", func(t *testing.T) {
		holder := f.Recipient.Address()
		operator := f.Stranger.Address()

		for _, standard := range []bool{false, true} {
			for _, global := range []bool{false, true} {
				for _, optOut := range []bool{false, true} {
					l := f.Deploy(t, newStore(t))
					require.NoError(t, l.SetApprovalForAll(ctx, holder, operator, standard))
					require.NoError(t, l.SetGlobalApproval(ctx, f.Owner.Address(), operator, global))
					require.NoError(t, l.SetGlobalApprovalOptOut(ctx, holder, optOut))

					approved, err := l.IsApprovedForAll(ctx, holder, operator)
					require.NoError(t, err)
					assert.Equal(t, standard || (global && !optOut), approved,
						"standard=%v global=%v optOut=%v", standard, global, optOut)
				}
			}
		}
	})

	t.Run("opt-out is per holder", func(t *testing.T) {
		l := f.Deploy(t, newStore(t))
		marketplace := common.HexToAddress("0x00000000000000ADc04C56Bf30aC9d3c0aAF14dC")
		a, b := f.Recipient.Address(), f.Stranger.Address()

		require.NoError(t, l.SetGlobalApproval(ctx, f.Owner.Address(), marketplace, true))
		global, err := l.IsGlobalApprover(ctx, marketplace)
		require.NoError(t, err)
		assert.True(t, global)

		for _, h := range []common.Address{a, b} {
			approved, err := l.IsApprovedForAll(ctx, h, marketplace)
			require.NoError(t, err)
			assert.True(t, approved)
		}

		require.NoError(t, l.SetGlobalApprovalOptOut(ctx, a, true))
		optedOut, err := l.HasOptedOutOfGlobalApproval(ctx, a)
		require.NoError(t, err)
		assert.True(t, optedOut)

		approved, err := l.IsApprovedForAll(ctx, a, marketplace)
		require.NoError(t, err)
		assert.False(t, approved)
		approved, err = l.IsApprovedForAll(ctx, b, marketplace)
		require.NoError(t, err)
		assert.True(t, approved)

		// A standard approval survives the opt-out.
		require.NoError(t, l.SetApprovalForAll(ctx, a, marketplace, true))
		approved, err = l.IsApprovedForAll(ctx, a, marketplace)
		require.NoError(t, err)
		assert.True(t, approved)
	})

	t.Run("admin operations reject non-owners", func(t *testing.T) {
		l := f.Deploy(t, newStore(t))
		for _, caller := range []common.Address{f.Signer.Address(), f.Recipient.Address(), f.Stranger.Address(), {}} {
			assert.ErrorIs(t, l.SetSigner(ctx, caller, f.Stranger.Address()), lazymint.ErrNotOwner)
			assert.ErrorIs(t, l.SetGlobalApproval(ctx, caller, f.Stranger.Address(), true), lazymint.ErrNotOwner)
		}
		global, err := l.IsGlobalApprover(ctx, f.Stranger.Address())
		require.NoError(t, err)
		assert.False(t, global)
	})

	t.Run("zero operator rejected", func(t *testing.T) {
		l := f.Deploy(t, newStore(t))
		err := l.SetApprovalForAll(ctx, f.Recipient.Address(), common.Address{}, true)
		assert.ErrorIs(t, err, lazymint.ErrInvalidAddress)
	})

	t.Run("failed update leaves no trace", func(t *testing.T) {
		store := newStore(t)
		l := f.Deploy(t, store)
		holder := f.Recipient.Address()
		boom := errors.New("boom")

		err := store.Update(ctx, func(tx ledger.Tx) error {
			require.NoError(t, tx.PutBalance(holder, big.NewInt(9), big.NewInt(50)))
			require.NoError(t, tx.PutToken(big.NewInt(9), ledger.TokenRecord{Minted: true, URI: "ipfs://9"}))
			require.NoError(t, tx.PutApproval(holder, f.Stranger.Address(), true))
			require.NoError(t, tx.PutGlobalApprover(f.Stranger.Address(), true))
			require.NoError(t, tx.PutOptOut(holder, true))
			meta, err := tx.Meta()
			require.NoError(t, err)
			meta.Signer = f.Stranger.Address()
			require.NoError(t, tx.PutMeta(meta))
			return boom
		})
		assert.ErrorIs(t, err, boom)

		minted, err := l.IsTokenMinted(ctx, big.NewInt(9))
		require.NoError(t, err)
		assert.False(t, minted)
		balance, err := l.BalanceOf(ctx, holder, big.NewInt(9))
		require.NoError(t, err)
		assert.Equal(t, 0, balance.Sign())
		approved, err := l.IsApprovedForAll(ctx, holder, f.Stranger.Address())
		require.NoError(t, err)
		assert.False(t, approved)
		optedOut, err := l.HasOptedOutOfGlobalApproval(ctx, holder)
		require.NoError(t, err)
		assert.False(t, optedOut)
		signer, err := l.Signer(ctx)
		require.NoError(t, err)
		assert.Equal(t, f.Signer.Address(), signer)
	})

	t.Run("zone record", func(t *testing.T) {
		store := newStore(t)
		read := func() ledger.ZoneRecord {
			var record ledger.ZoneRecord
			require.NoError(t, store.View(ctx, func(tx ledger.Tx) error {
				var err error
				record, err = tx.Zone()
				return err
			}))
			return record
		}
		assert.False(t, read().Exists())

		want := ledger.ZoneRecord{
			Address: common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"),
			Owner:   f.Owner.Address(),
			Nft:     common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"),
		}
		require.NoError(t, store.Update(ctx, func(tx ledger.Tx) error { return tx.PutZone(want) }))
		assert.Equal(t, want, read())

		boom := errors.New("boom")
		err := store.Update(ctx, func(tx ledger.Tx) error {
			changed := want
			changed.Owner = f.Stranger.Address()
			require.NoError(t, tx.PutZone(changed))
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, want, read())
	})

	t.Run("view is read-only", func(t *testing.T) {
		store := newStore(t)
		f.Deploy(t, store)
		err := store.View(ctx, func(tx ledger.Tx) error {
			return tx.PutOptOut(f.Recipient.Address(), true)
		})
		assert.ErrorIs(t, err, ledger.ErrReadOnly)
	})

	t.Run("cancelled context", func(t *testing.T) {
		store := newStore(t)
		l := f.Deploy(t, store)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		v := f.Voucher(t, l, f.Signer, f.Recipient.Address(), 10, 1, "ipfs://10")
		err := l.MintIfNotExists(cancelled, v, f.Recipient.Address())
		assert.ErrorIs(t, err, context.Canceled)
	})
}
