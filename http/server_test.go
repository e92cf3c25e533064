package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artiart/lazymint"
	"github.com/artiart/lazymint/ledger"
	"github.com/artiart/lazymint/ledger/storetest"
	"github.com/artiart/lazymint/mechanisms/evm"
	signers "github.com/artiart/lazymint/signers/evm"
	"github.com/artiart/lazymint/zone"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	storetest.Fixture
	ledger *ledger.Ledger
	zone   *zone.Zone
	server *httptest.Server
	client *Client
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	ctx := context.Background()
	f := storetest.NewFixture(t)
	l := f.Deploy(t, ledger.NewMemoryStore())
	addr, err := l.Address(ctx)
	require.NoError(t, err)
	z, err := zone.New(f.Owner.Address(), addr, zone.StaticDirectory{addr: l})
	require.NoError(t, err)

	srv := NewServer(l, z, NewAuthService("test-secret"))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return testEnv{
		Fixture: f,
		ledger:  l,
		zone:    z,
		server:  ts,
		client:  NewClient(ClientConfig{URL: ts.URL}),
	}
}

func (e testEnv) login(t *testing.T, s *signers.VoucherSigner) *Client {
	t.Helper()
	c, err := e.client.Login(context.Background(), s.Address(), s.SignPersonalMessage)
	require.NoError(t, err)
	return c
}

// request sends a raw JSON request and returns the response with its body.
func (e testEnv) request(t *testing.T, method, path string, headers map[string]string, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp.Error
}

func TestHealthAndRequestID(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.request(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
	assert.NotEmpty(t, resp.Header.Get(HeaderRequestID))

	resp, _ = env.request(t, http.MethodGet, "/health", map[string]string{HeaderRequestID: "req-1"}, "")
	assert.Equal(t, "req-1", resp.Header.Get(HeaderRequestID))
}

func TestLedgerInfo(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	info, err := env.client.LedgerInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"), info.Address)
	assert.Equal(t, env.Owner.Address(), info.Owner)
	assert.Equal(t, env.Signer.Address(), info.Signer)
	assert.Equal(t, int64(31337), info.ChainID.Int64())
	assert.Equal(t, evm.DomainName, info.Domain.Name)
	assert.Equal(t, evm.DomainVersion, info.Domain.Version)
}

func TestMintScenarioOverHTTP(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	r := env.Recipient.Address()
	v := env.Voucher(t, env.ledger, env.Signer, r, 189, 7, "ipfs://x")

	receipt, err := env.client.Mint(ctx, v, r, "")
	require.NoError(t, err)
	assert.True(t, receipt.Issued)
	assert.Equal(t, int64(189), receipt.TokenID.Int64())
	assert.Equal(t, int64(7), receipt.Amount.Int64())

	balance, err := env.client.BalanceOf(ctx, r, big.NewInt(189))
	require.NoError(t, err)
	assert.Equal(t, int64(7), balance.Int64())

	token, err := env.client.Token(ctx, big.NewInt(189))
	require.NoError(t, err)
	assert.True(t, token.Minted)
	assert.Equal(t, "ipfs://x", token.URI)

	minted, err := env.client.IsTokenMinted(ctx, big.NewInt(190))
	require.NoError(t, err)
	assert.False(t, minted)
}

func TestMintIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	r := env.Recipient.Address()
	v := env.Voucher(t, env.ledger, env.Signer, r, 5, 2, "ipfs://5")
	body, err := json.Marshal(MintRequest{Voucher: v, Recipient: &r})
	require.NoError(t, err)

	headers := map[string]string{HeaderIdempotencyKey: "retry-1"}
	resp, first := env.request(t, http.MethodPost, "/v1/ledger/mint", headers, string(body))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(first))
	assert.Empty(t, resp.Header.Get(HeaderReplayed))

	resp, second := env.request(t, http.MethodPost, "/v1/ledger/mint", headers, string(body))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "true", resp.Header.Get(HeaderReplayed))
	assert.JSONEq(t, string(first), string(second))

	// A new key reaches the ledger, which reports the token as already minted.
	receipt, err := env.client.Mint(ctx, v, r, "retry-2")
	require.NoError(t, err)
	assert.False(t, receipt.Issued)

	balance, err := env.ledger.BalanceOf(ctx, r, big.NewInt(5))
	require.NoError(t, err)
	assert.Equal(t, int64(2), balance.Int64())
}

func TestMintIdempotencyKeyReusedWithDifferentBody(t *testing.T) {
	env := newTestEnv(t)
	r := env.Recipient.Address()
	headers := map[string]string{HeaderIdempotencyKey: "k1"}

	valid, err := json.Marshal(MintRequest{Voucher: env.Voucher(t, env.ledger, env.Signer, r, 42, 1, "ipfs://42"), Recipient: &r})
	require.NoError(t, err)
	resp, body := env.request(t, http.MethodPost, "/v1/ledger/mint", headers, string(valid))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	// A forged voucher under the same key must not be answered with the
	// cached success.
	forged, err := json.Marshal(MintRequest{Voucher: env.Voucher(t, env.ledger, env.Stranger, r, 42, 999, "ipfs://42"), Recipient: &r})
	require.NoError(t, err)
	resp, body = env.request(t, http.MethodPost, "/v1/ledger/mint", headers, string(forged))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, ErrCodeKeyReused, errorCode(t, body))
	assert.Empty(t, resp.Header.Get(HeaderReplayed))

	resp, body = env.request(t, http.MethodPost, "/v1/ledger/mint", map[string]string{HeaderIdempotencyKey: "k2"}, string(forged))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, lazymint.ErrCodeSignatureMismatch, errorCode(t, body))

	// The original body is still replayed under its key.
	resp, _ = env.request(t, http.MethodPost, "/v1/ledger/mint", headers, string(valid))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "true", resp.Header.Get(HeaderReplayed))
}

func TestMintReplayNotServedAfterSignerRotation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	r := env.Recipient.Address()
	headers := map[string]string{HeaderIdempotencyKey: "rotate-1"}

	body, err := json.Marshal(MintRequest{Voucher: env.Voucher(t, env.ledger, env.Signer, r, 8, 1, "ipfs://8"), Recipient: &r})
	require.NoError(t, err)
	resp, raw := env.request(t, http.MethodPost, "/v1/ledger/mint", headers, string(body))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	require.NoError(t, env.ledger.SetSigner(ctx, env.Owner.Address(), env.Stranger.Address()))

	resp, raw = env.request(t, http.MethodPost, "/v1/ledger/mint", headers, string(body))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, lazymint.ErrCodeSignatureMismatch, errorCode(t, raw))
	assert.Empty(t, resp.Header.Get(HeaderReplayed))
}

func TestMintErrors(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	r := env.Recipient.Address()

	v := env.Voucher(t, env.ledger, env.Signer, r, 1, 1, "ipfs://1")
	_, err := env.client.Mint(ctx, v, env.Stranger.Address(), "")
	assert.ErrorIs(t, err, lazymint.ErrOwnershipMismatch)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)

	forged := env.Voucher(t, env.ledger, env.Stranger, r, 1, 1, "ipfs://1")
	_, err = env.client.Mint(ctx, forged, r, "")
	assert.ErrorIs(t, err, lazymint.ErrSignatureMismatch)

	// Failures are not cached: the valid voucher still mints.
	receipt, err := env.client.Mint(ctx, v, r, "")
	require.NoError(t, err)
	assert.True(t, receipt.Issued)
}

func TestMintRecipientDefaultsToCaller(t *testing.T) {
	env := newTestEnv(t)
	r := env.Recipient.Address()
	v := env.Voucher(t, env.ledger, env.Signer, r, 9, 1, "ipfs://9")
	body, err := json.Marshal(map[string]any{"voucher": v})
	require.NoError(t, err)

	resp, raw := env.request(t, http.MethodPost, "/v1/ledger/mint", nil, string(body))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, ErrCodeInvalidRequest, errorCode(t, raw))

	authed := env.login(t, env.Recipient)
	resp, raw = env.request(t, http.MethodPost, "/v1/ledger/mint",
		map[string]string{"Authorization": "Bearer " + authed.token}, string(body))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	var receipt lazymint.MintReceipt
	require.NoError(t, json.Unmarshal(raw, &receipt))
	assert.Equal(t, r, receipt.Recipient)
	assert.True(t, receipt.Issued)
}

func TestRequestValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"mint empty body", http.MethodPost, "/v1/ledger/mint", `{}`, http.StatusBadRequest, ErrCodeInvalidRequest},
		{"mint not json", http.MethodPost, "/v1/ledger/mint", `{`, http.StatusBadRequest, ErrCodeInvalidRequest},
		{"bad token id", http.MethodGet, "/v1/ledger/tokens/abc", "", http.StatusBadRequest, ErrCodeInvalidRequest},
		{"token id overflow", http.MethodGet, "/v1/ledger/tokens/0x1" + string(bytes.Repeat([]byte("0"), 64)), "", http.StatusBadRequest, ErrCodeInvalidRequest},
		{"bad holder", http.MethodGet, "/v1/ledger/opt-outs/0x1234", "", http.StatusBadRequest, ErrCodeInvalidRequest},
		{"bad interface id", http.MethodGet, "/v1/zone/interfaces/0x12", "", http.StatusBadRequest, ErrCodeInvalidRequest},
		{"authorize missing extraData", http.MethodPost, "/v1/zone/authorize", `{"fulfiller":"0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"}`, http.StatusBadRequest, ErrCodeInvalidRequest},
		{"nonce bad address", http.MethodPost, "/auth/nonce", `{"address":"nope"}`, http.StatusBadRequest, ErrCodeInvalidRequest},
		{"login bad signature", http.MethodPost, "/auth/login", `{"address":"0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266","signature":"0x` + string(bytes.Repeat([]byte("ab"), 65)) + `"}`, http.StatusUnauthorized, ErrCodeUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.request(t, tt.method, tt.path, nil, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode, string(body))
			assert.Equal(t, tt.code, errorCode(t, body))
		})
	}
}

func TestAdminRoutesRequireOwner(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	newSigner := env.Stranger.Address()

	err := env.client.SetSigner(ctx, newSigner)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	stranger := env.login(t, env.Stranger)
	err = stranger.SetSigner(ctx, newSigner)
	assert.ErrorIs(t, err, lazymint.ErrNotOwner)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.ErrorIs(t, stranger.SetGlobalApproval(ctx, newSigner, true), lazymint.ErrNotOwner)
	assert.ErrorIs(t, stranger.SetNftAddress(ctx, newSigner), lazymint.ErrNotOwner)

	owner := env.login(t, env.Owner)
	require.NoError(t, owner.SetSigner(ctx, newSigner))
	info, err := env.client.LedgerInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, newSigner, info.Signer)

	assert.ErrorIs(t, owner.SetSigner(ctx, common.Address{}), lazymint.ErrInvalidAddress)

	resp, body := env.request(t, http.MethodPost, "/v1/ledger/signer",
		map[string]string{"Authorization": "Bearer garbage"}, `{"signer":"0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, ErrCodeUnauthorized, errorCode(t, body))
}

func TestTransferOwnershipOverHTTP(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	owner := env.login(t, env.Owner)
	require.NoError(t, owner.TransferOwnership(ctx, env.Stranger.Address()))

	info, err := env.client.LedgerInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, env.Stranger.Address(), info.Owner)
	assert.ErrorIs(t, owner.SetSigner(ctx, env.Owner.Address()), lazymint.ErrNotOwner)
}

func TestApprovalsOverHTTP(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	holder := env.Recipient.Address()
	operator := env.Stranger.Address()
	marketplace := common.HexToAddress("0x00000000000000ADc04C56Bf30aC9d3c0aAF14dC")

	holderClient := env.login(t, env.Recipient)
	require.NoError(t, holderClient.SetApprovalForAll(ctx, operator, true))
	approved, err := env.client.IsApprovedForAll(ctx, holder, operator)
	require.NoError(t, err)
	assert.True(t, approved)

	owner := env.login(t, env.Owner)
	require.NoError(t, owner.SetGlobalApproval(ctx, marketplace, true))
	global, err := env.client.IsGlobalApprover(ctx, marketplace)
	require.NoError(t, err)
	assert.True(t, global)
	approved, err = env.client.IsApprovedForAll(ctx, holder, marketplace)
	require.NoError(t, err)
	assert.True(t, approved)

	require.NoError(t, holderClient.SetGlobalApprovalOptOut(ctx, true))
	optedOut, err := env.client.HasOptedOutOfGlobalApproval(ctx, holder)
	require.NoError(t, err)
	assert.True(t, optedOut)
	approved, err = env.client.IsApprovedForAll(ctx, holder, marketplace)
	require.NoError(t, err)
	assert.False(t, approved)

	// Another holder is unaffected by the opt-out.
	approved, err = env.client.IsApprovedForAll(ctx, env.Owner.Address(), marketplace)
	require.NoError(t, err)
	assert.True(t, approved)
}

func TestZoneOverHTTP(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	r := env.Recipient.Address()
	v := env.Voucher(t, env.ledger, env.Signer, r, 189, 7, "ipfs://x")
	extraData, err := evm.EncodeVoucher(v)
	require.NoError(t, err)
	params := lazymint.ZoneParameters{
		OrderHash: common.HexToHash("0x01"),
		Fulfiller: r,
		Offerer:   env.Owner.Address(),
		ExtraData: extraData,
	}

	ack, err := env.client.ValidateOrder(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, evm.ValidateOrderSelector, ack)
	minted, err := env.ledger.IsTokenMinted(ctx, big.NewInt(189))
	require.NoError(t, err)
	assert.False(t, minted)

	ack, err = env.client.AuthorizeOrder(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, evm.AuthorizeOrderSelector, ack)
	balance, err := env.client.BalanceOf(ctx, r, big.NewInt(189))
	require.NoError(t, err)
	assert.Equal(t, int64(7), balance.Int64())

	_, err = env.client.AuthorizeOrder(ctx, lazymint.ZoneParameters{Fulfiller: r, ExtraData: []byte{0x01}})
	assert.ErrorIs(t, err, lazymint.ErrDecodeFailure)

	metadata, err := env.client.ZoneMetadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ArtiartZone", metadata.Name)
	require.Len(t, metadata.Schemas, 1)
	assert.Equal(t, uint64(3003), metadata.Schemas[0].ID)

	supported, err := env.client.ZoneSupportsInterface(ctx, evm.InterfaceIDZone)
	require.NoError(t, err)
	assert.True(t, supported)
	supported, err = env.client.ZoneSupportsInterface(ctx, evm.InterfaceIDERC1155)
	require.NoError(t, err)
	assert.False(t, supported)

	info, err := env.client.ZoneInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, env.zone.Address(), info.Address)
	assert.Equal(t, env.Owner.Address(), info.Owner)
}

func TestZoneRepointOverHTTP(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	r := env.Recipient.Address()
	owner := env.login(t, env.Owner)

	assert.ErrorIs(t, owner.SetNftAddress(ctx, common.Address{}), lazymint.ErrInvalidAddress)

	unknown := common.HexToAddress("0x1234")
	require.NoError(t, owner.SetNftAddress(ctx, unknown))

	v := env.Voucher(t, env.ledger, env.Signer, r, 3, 1, "ipfs://3")
	extraData, err := evm.EncodeVoucher(v)
	require.NoError(t, err)
	_, err = env.client.AuthorizeOrder(ctx, lazymint.ZoneParameters{Fulfiller: r, ExtraData: extraData})
	assert.ErrorIs(t, err, lazymint.ErrUnknownLedger)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestAuthorizeNotReplayedAfterRepoint(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	r := env.Recipient.Address()

	extraData, err := evm.EncodeVoucher(env.Voucher(t, env.ledger, env.Signer, r, 11, 1, "ipfs://11"))
	require.NoError(t, err)
	body, err := json.Marshal(lazymint.ZoneParameters{Fulfiller: r, ExtraData: extraData})
	require.NoError(t, err)
	headers := map[string]string{HeaderIdempotencyKey: "order-11"}

	resp, raw := env.request(t, http.MethodPost, "/v1/zone/authorize", headers, string(body))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	require.NoError(t, env.zone.SetNftAddress(ctx, env.Owner.Address(), common.HexToAddress("0x1234")))

	resp, raw = env.request(t, http.MethodPost, "/v1/zone/authorize", headers, string(body))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, lazymint.ErrCodeUnknownLedger, errorCode(t, raw))
	assert.Empty(t, resp.Header.Get(HeaderReplayed))
}

func TestLedgerNotDeployed(t *testing.T) {
	f := storetest.NewFixture(t)
	l := ledger.New(ledger.NewMemoryStore())
	z, err := zone.New(f.Owner.Address(), common.HexToAddress("0x01"), zone.StaticDirectory{})
	require.NoError(t, err)

	srv := NewServer(l, z, NewAuthService("secret"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/ledger", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, ErrCodeNotDeployed, errorCode(t, rec.Body.Bytes()))
}

func TestLedgerInterfaces(t *testing.T) {
	env := newTestEnv(t)
	for id, supported := range map[string]bool{
		"0xd9b67a26": true,
		"0x0e89341c": true,
		"0x01ffc9a7": true,
		"0x39dd6933": false,
		"0xffffffff": false,
	} {
		resp, body := env.request(t, http.MethodGet, "/v1/ledger/interfaces/"+id, nil, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var out InterfaceResponse
		require.NoError(t, json.Unmarshal(body, &out))
		assert.Equal(t, supported, out.Supported, id)
	}
}
