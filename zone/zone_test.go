package zone

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artiart/lazymint"
	"github.com/artiart/lazymint/ledger"
	"github.com/artiart/lazymint/ledger/storetest"
	"github.com/artiart/lazymint/mechanisms/evm"
)

var seaport = common.HexToAddress("0x0000000000000068F116a894984e2DB1123eB395")

type zoneFixture struct {
	storetest.Fixture
	ledger     *ledger.Ledger
	ledgerAddr common.Address
	zone       *Zone
}

func newZoneFixture(t *testing.T) zoneFixture {
	t.Helper()
	f := storetest.NewFixture(t)
	l := f.Deploy(t, ledger.NewMemoryStore())
	addr, err := l.Address(context.Background())
	require.NoError(t, err)

	z, err := New(f.Owner.Address(), addr, StaticDirectory{addr: l})
	require.NoError(t, err)
	return zoneFixture{Fixture: f, ledger: l, ledgerAddr: addr, zone: z}
}

func (zf zoneFixture) params(t *testing.T, voucher lazymint.Voucher, fulfiller common.Address) lazymint.ZoneParameters {
	t.Helper()
	extraData, err := evm.EncodeVoucher(voucher)
	require.NoError(t, err)
	return lazymint.ZoneParameters{
		OrderHash: common.HexToHash("0x01"),
		Fulfiller: fulfiller,
		Offerer:   zf.Owner.Address(),
		ExtraData: extraData,
		StartTime: big.NewInt(0),
		EndTime:   big.NewInt(1 << 40),
	}
}

func TestAuthorizeOrderMints(t *testing.T) {
	ctx := context.Background()
	zf := newZoneFixture(t)
	r := zf.Recipient.Address()
	v := zf.Voucher(t, zf.ledger, zf.Signer, r, 189, 7, "ipfs://x")

	ack, err := zf.zone.AuthorizeOrder(ctx, seaport, zf.params(t, v, r))
	require.NoError(t, err)
	assert.Equal(t, evm.AuthorizeOrderSelector, ack)

	minted, err := zf.ledger.IsTokenMinted(ctx, big.NewInt(189))
	require.NoError(t, err)
	assert.True(t, minted)

	// A second fill of the same voucher is acknowledged without minting again.
	ack, err = zf.zone.AuthorizeOrder(ctx, seaport, zf.params(t, v, r))
	require.NoError(t, err)
	assert.Equal(t, evm.AuthorizeOrderSelector, ack)

	balance, err := zf.ledger.BalanceOf(ctx, r, big.NewInt(189))
	require.NoError(t, err)
	assert.Equal(t, int64(7), balance.Int64())
}

func TestAuthorizeOrderPropagatesLedgerErrors(t *testing.T) {
	ctx := context.Background()
	zf := newZoneFixture(t)
	r := zf.Recipient.Address()

	v := zf.Voucher(t, zf.ledger, zf.Signer, r, 1, 1, "ipfs://1")
	_, err := zf.zone.AuthorizeOrder(ctx, seaport, zf.params(t, v, zf.Stranger.Address()))
	assert.ErrorIs(t, err, lazymint.ErrOwnershipMismatch)

	forged := zf.Voucher(t, zf.ledger, zf.Stranger, r, 1, 1, "ipfs://1")
	_, err = zf.zone.AuthorizeOrder(ctx, seaport, zf.params(t, forged, r))
	assert.ErrorIs(t, err, lazymint.ErrSignatureMismatch)

	minted, err := zf.ledger.IsTokenMinted(ctx, big.NewInt(1))
	require.NoError(t, err)
	assert.False(t, minted)
}

func TestAuthorizeOrderDecodeFailure(t *testing.T) {
	ctx := context.Background()
	zf := newZoneFixture(t)
	r := zf.Recipient.Address()

	// tuple(address,uint256,uint256,string): the voucher without its signature
	tupleType, err := abi.NewType("tuple", "", []abi.ArgumentMarshaling{
		{Name: "owner", Type: "address"},
		{Name: "tokenId", Type: "uint256"},
		{Name: "amount", Type: "uint256"},
		{Name: "uri", Type: "string"},
	})
	require.NoError(t, err)
	data, err := abi.Arguments{{Type: tupleType}}.Pack(struct {
		Owner   common.Address
		TokenId *big.Int
		Amount  *big.Int
		Uri     string
	}{r, big.NewInt(189), big.NewInt(7), "ipfs://x"})
	require.NoError(t, err)

	for name, extraData := range map[string][]byte{
		"missing signature": data,
		"empty":             nil,
		"undersized":        {0x00, 0x01},
	} {
		t.Run(name, func(t *testing.T) {
			params := lazymint.ZoneParameters{Fulfiller: r, ExtraData: extraData}
			ack, err := zf.zone.AuthorizeOrder(ctx, seaport, params)
			assert.ErrorIs(t, err, lazymint.ErrDecodeFailure)
			assert.Equal(t, lazymint.AckToken{}, ack)
		})
	}

	minted, err := zf.ledger.IsTokenMinted(ctx, big.NewInt(189))
	require.NoError(t, err)
	assert.False(t, minted)
}

func TestValidateOrderIsNoop(t *testing.T) {
	ctx := context.Background()
	zf := newZoneFixture(t)
	r := zf.Recipient.Address()
	v := zf.Voucher(t, zf.ledger, zf.Signer, r, 77, 1, "ipfs://77")

	for _, params := range []lazymint.ZoneParameters{
		zf.params(t, v, r),
		{ExtraData: []byte{0xff}},
		{},
	} {
		ack, err := zf.zone.ValidateOrder(ctx, seaport, params)
		require.NoError(t, err)
		assert.Equal(t, evm.ValidateOrderSelector, ack)
	}

	minted, err := zf.ledger.IsTokenMinted(ctx, big.NewInt(77))
	require.NoError(t, err)
	assert.False(t, minted)
}

func TestSetNftAddress(t *testing.T) {
	ctx := context.Background()
	zf := newZoneFixture(t)
	r := zf.Recipient.Address()

	for _, caller := range []common.Address{zf.Stranger.Address(), zf.Signer.Address(), r} {
		assert.ErrorIs(t, zf.zone.SetNftAddress(ctx, caller, common.HexToAddress("0x1234")), lazymint.ErrNotOwner)
	}
	assert.ErrorIs(t, zf.zone.SetNftAddress(ctx, zf.Owner.Address(), common.Address{}), lazymint.ErrInvalidAddress)
	assert.Equal(t, zf.ledgerAddr, zf.zone.NftAddress())

	// Repointing at an address with no ledger makes authorization fail.
	unknown := common.HexToAddress("0x1234")
	require.NoError(t, zf.zone.SetNftAddress(ctx, zf.Owner.Address(), unknown))
	assert.Equal(t, unknown, zf.zone.NftAddress())

	v := zf.Voucher(t, zf.ledger, zf.Signer, r, 5, 1, "ipfs://5")
	_, err := zf.zone.AuthorizeOrder(ctx, seaport, zf.params(t, v, r))
	assert.ErrorIs(t, err, lazymint.ErrUnknownLedger)
}

func TestRepointToSecondLedger(t *testing.T) {
	ctx := context.Background()
	zf := newZoneFixture(t)
	r := zf.Recipient.Address()

	second := common.HexToAddress("0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0")
	other, err := ledger.Deploy(ctx, ledger.NewMemoryStore(), zf.Owner.Address(), zf.Signer.Address(), ledger.WithAddress(second))
	require.NoError(t, err)

	z, err := New(zf.Owner.Address(), zf.ledgerAddr, StaticDirectory{zf.ledgerAddr: zf.ledger, second: other})
	require.NoError(t, err)
	require.NoError(t, z.SetNftAddress(ctx, zf.Owner.Address(), second))

	// Vouchers are domain-bound: one signed for the first ledger is rejected by the second.
	stale := zf.Voucher(t, zf.ledger, zf.Signer, r, 8, 1, "ipfs://8")
	_, err = z.AuthorizeOrder(ctx, seaport, zf.params(t, stale, r))
	assert.ErrorIs(t, err, lazymint.ErrSignatureMismatch)

	fresh := zf.Voucher(t, other, zf.Signer, r, 8, 1, "ipfs://8")
	_, err = z.AuthorizeOrder(ctx, seaport, zf.params(t, fresh, r))
	require.NoError(t, err)

	minted, err := other.IsTokenMinted(ctx, big.NewInt(8))
	require.NoError(t, err)
	assert.True(t, minted)
	minted, err = zf.ledger.IsTokenMinted(ctx, big.NewInt(8))
	require.NoError(t, err)
	assert.False(t, minted)
}

func TestMetadataAndInterfaces(t *testing.T) {
	zf := newZoneFixture(t)

	name, schemas := zf.zone.GetSeaportMetadata()
	assert.Equal(t, "ArtiartZone", name)
	require.Len(t, schemas, 1)
	assert.Equal(t, uint64(3003), schemas[0].ID)
	assert.Empty(t, schemas[0].Metadata)

	assert.True(t, zf.zone.SupportsInterface([4]byte{0x39, 0xdd, 0x69, 0x33}))
	assert.True(t, zf.zone.SupportsInterface([4]byte{0x01, 0xff, 0xc9, 0xa7}))
	assert.False(t, zf.zone.SupportsInterface([4]byte{0xff, 0xff, 0xff, 0xff}))
	assert.False(t, zf.zone.SupportsInterface(evm.InterfaceIDERC1155))
}

func TestNewAndOwnership(t *testing.T) {
	ctx := context.Background()
	zf := newZoneFixture(t)

	_, err := New(common.Address{}, zf.ledgerAddr, StaticDirectory{})
	assert.ErrorIs(t, err, lazymint.ErrInvalidAddress)

	explicit := common.HexToAddress("0x000000000000000000000000000000000000cafe")
	z, err := New(zf.Owner.Address(), zf.ledgerAddr, StaticDirectory{}, WithAddress(explicit))
	require.NoError(t, err)
	assert.Equal(t, explicit, z.Address())

	assert.ErrorIs(t, z.TransferOwnership(ctx, zf.Stranger.Address(), zf.Stranger.Address()), lazymint.ErrNotOwner)
	require.NoError(t, z.TransferOwnership(ctx, zf.Owner.Address(), zf.Stranger.Address()))
	assert.Equal(t, zf.Stranger.Address(), z.Owner())
	assert.ErrorIs(t, z.SetNftAddress(ctx, zf.Owner.Address(), common.HexToAddress("0x01")), lazymint.ErrNotOwner)
}

func TestOpenPersistsOwnerAndNft(t *testing.T) {
	ctx := context.Background()
	zf := newZoneFixture(t)
	store := ledger.NewMemoryStore()
	second := common.HexToAddress("0x000000000000000000000000000000000000beef")

	z, err := Open(ctx, store, zf.Owner.Address(), zf.ledgerAddr, StaticDirectory{zf.ledgerAddr: zf.ledger})
	require.NoError(t, err)
	require.NoError(t, z.SetNftAddress(ctx, zf.Owner.Address(), second))
	require.NoError(t, z.TransferOwnership(ctx, zf.Owner.Address(), zf.Stranger.Address()))

	// Reopening with the original arguments restores the persisted state.
	reopened, err := Open(ctx, store, zf.Owner.Address(), zf.ledgerAddr, StaticDirectory{zf.ledgerAddr: zf.ledger})
	require.NoError(t, err)
	assert.Equal(t, zf.Stranger.Address(), reopened.Owner())
	assert.Equal(t, second, reopened.NftAddress())
	assert.Equal(t, z.Address(), reopened.Address())

	assert.ErrorIs(t, reopened.TransferOwnership(ctx, zf.Owner.Address(), zf.Owner.Address()), lazymint.ErrNotOwner)
}

func TestOpenValidatesFreshZone(t *testing.T) {
	ctx := context.Background()
	zf := newZoneFixture(t)
	store := ledger.NewMemoryStore()

	_, err := Open(ctx, store, common.Address{}, zf.ledgerAddr, StaticDirectory{})
	assert.ErrorIs(t, err, lazymint.ErrInvalidAddress)

	var record ledger.ZoneRecord
	require.NoError(t, store.View(ctx, func(tx ledger.Tx) error {
		record, err = tx.Zone()
		return err
	}))
	assert.False(t, record.Exists())
}

func TestMutatorsKeepStateWhenPersistFails(t *testing.T) {
	zf := newZoneFixture(t)
	z, err := Open(context.Background(), ledger.NewMemoryStore(), zf.Owner.Address(), zf.ledgerAddr, StaticDirectory{})
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, z.SetNftAddress(cancelled, zf.Owner.Address(), common.HexToAddress("0x01")), context.Canceled)
	assert.Equal(t, zf.ledgerAddr, z.NftAddress())
	assert.ErrorIs(t, z.TransferOwnership(cancelled, zf.Owner.Address(), zf.Stranger.Address()), context.Canceled)
	assert.Equal(t, zf.Owner.Address(), z.Owner())
}
