package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/artiart/lazymint"
)

// ClientConfig configures the API client.
type ClientConfig struct {
	// URL is the base URL of the service
	URL string

	// HTTPClient is the HTTP client to use (optional)
	HTTPClient *http.Client

	// Token is a bearer token from Login (optional)
	Token string

	// Timeout for requests (optional, defaults to 30s)
	Timeout time.Duration
}

// Client is a typed client for the JSON API.
type Client struct {
	url        string
	httpClient *http.Client
	token      string
}

// APIError is a non-2xx response. Its code maps onto the ledger error
// sentinels, so errors.Is(err, lazymint.ErrNotOwner) works client side.
type APIError struct {
	StatusCode int
	Response   ErrorResponse
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Response.Error, e.StatusCode, e.Response.Message)
}

// Unwrap exposes the ledger error carried by the response.
func (e *APIError) Unwrap() error {
	return lazymint.NewLedgerError(e.Response.Error, e.Response.Message, e.Response.Details)
}

// NewClient creates an API client.
func NewClient(config ClientConfig) *Client {
	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{url: config.URL, httpClient: httpClient, token: config.Token}
}

// WithToken returns a copy of c authenticating as token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// Login runs the nonce/sign/login exchange with sign producing a
// personal_sign signature, and returns a client carrying the token.
func (c *Client) Login(ctx context.Context, address common.Address, sign func(ctx context.Context, message []byte) ([]byte, error)) (*Client, error) {
	var nonce NonceResponse
	if err := c.do(ctx, http.MethodPost, "/auth/nonce", nil, NonceRequest{Address: address}, &nonce); err != nil {
		return nil, err
	}
	sig, err := sign(ctx, []byte(nonce.Message))
	if err != nil {
		return nil, fmt.Errorf("failed to sign login message: %w", err)
	}

	var login LoginResponse
	req := LoginRequest{Address: address, Signature: fmt.Sprintf("0x%x", sig)}
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, req, &login); err != nil {
		return nil, err
	}
	return c.WithToken(login.Token), nil
}

func (c *Client) LedgerInfo(ctx context.Context) (LedgerInfo, error) {
	var out LedgerInfo
	err := c.do(ctx, http.MethodGet, "/v1/ledger", nil, nil, &out)
	return out, err
}

func (c *Client) Token(ctx context.Context, tokenID *big.Int) (TokenResponse, error) {
	var out TokenResponse
	err := c.do(ctx, http.MethodGet, "/v1/ledger/tokens/"+lazymint.BigOrZero(tokenID).String(), nil, nil, &out)
	return out, err
}

func (c *Client) IsTokenMinted(ctx context.Context, tokenID *big.Int) (bool, error) {
	token, err := c.Token(ctx, tokenID)
	return token.Minted, err
}

func (c *Client) BalanceOf(ctx context.Context, holder common.Address, tokenID *big.Int) (*big.Int, error) {
	var out BalanceResponse
	path := fmt.Sprintf("/v1/ledger/balances/%s/%s", holder.Hex(), lazymint.BigOrZero(tokenID))
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Balance, nil
}

func (c *Client) IsApprovedForAll(ctx context.Context, holder, operator common.Address) (bool, error) {
	var out ApprovalResponse
	path := fmt.Sprintf("/v1/ledger/approvals/%s/%s", holder.Hex(), operator.Hex())
	err := c.do(ctx, http.MethodGet, path, nil, nil, &out)
	return out.Approved, err
}

func (c *Client) IsGlobalApprover(ctx context.Context, operator common.Address) (bool, error) {
	var out GlobalApproverResponse
	err := c.do(ctx, http.MethodGet, "/v1/ledger/global-approvers/"+operator.Hex(), nil, nil, &out)
	return out.Approved, err
}

func (c *Client) HasOptedOutOfGlobalApproval(ctx context.Context, holder common.Address) (bool, error) {
	var out OptOutResponse
	err := c.do(ctx, http.MethodGet, "/v1/ledger/opt-outs/"+holder.Hex(), nil, nil, &out)
	return out.OptedOut, err
}

// Mint submits a voucher. A non-empty idempotencyKey makes retries replay
// the first response.
func (c *Client) Mint(ctx context.Context, voucher lazymint.Voucher, recipient common.Address, idempotencyKey string) (lazymint.MintReceipt, error) {
	var out lazymint.MintReceipt
	headers := map[string]string{}
	if idempotencyKey != "" {
		headers[HeaderIdempotencyKey] = idempotencyKey
	}
	err := c.do(ctx, http.MethodPost, "/v1/ledger/mint", headers, MintRequest{Voucher: voucher, Recipient: &recipient}, &out)
	return out, err
}

func (c *Client) SetSigner(ctx context.Context, signer common.Address) error {
	return c.do(ctx, http.MethodPost, "/v1/ledger/signer", nil, SignerRequest{Signer: signer}, nil)
}

func (c *Client) TransferOwnership(ctx context.Context, owner common.Address) error {
	return c.do(ctx, http.MethodPost, "/v1/ledger/owner", nil, OwnerRequest{Owner: owner}, nil)
}

func (c *Client) SetApprovalForAll(ctx context.Context, operator common.Address, approved bool) error {
	return c.do(ctx, http.MethodPost, "/v1/ledger/approvals", nil, ApprovalRequest{Operator: operator, Approved: approved}, nil)
}

func (c *Client) SetGlobalApproval(ctx context.Context, operator common.Address, approved bool) error {
	return c.do(ctx, http.MethodPost, "/v1/ledger/global-approvers", nil, ApprovalRequest{Operator: operator, Approved: approved}, nil)
}

func (c *Client) SetGlobalApprovalOptOut(ctx context.Context, optOut bool) error {
	return c.do(ctx, http.MethodPost, "/v1/ledger/opt-out", nil, OptOutRequest{OptOut: optOut}, nil)
}

func (c *Client) ZoneInfo(ctx context.Context) (ZoneInfo, error) {
	var out ZoneInfo
	err := c.do(ctx, http.MethodGet, "/v1/zone", nil, nil, &out)
	return out, err
}

func (c *Client) ZoneMetadata(ctx context.Context) (MetadataResponse, error) {
	var out MetadataResponse
	err := c.do(ctx, http.MethodGet, "/v1/zone/metadata", nil, nil, &out)
	return out, err
}

func (c *Client) ZoneSupportsInterface(ctx context.Context, interfaceID [4]byte) (bool, error) {
	var out InterfaceResponse
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/zone/interfaces/0x%x", interfaceID), nil, nil, &out)
	return out.Supported, err
}

func (c *Client) AuthorizeOrder(ctx context.Context, params lazymint.ZoneParameters) (lazymint.AckToken, error) {
	var out AckResponse
	err := c.do(ctx, http.MethodPost, "/v1/zone/authorize", nil, params, &out)
	return out.Magic, err
}

func (c *Client) ValidateOrder(ctx context.Context, params lazymint.ZoneParameters) (lazymint.AckToken, error) {
	var out AckResponse
	err := c.do(ctx, http.MethodPost, "/v1/zone/validate", nil, params, &out)
	return out.Magic, err
}

func (c *Client) SetNftAddress(ctx context.Context, nft common.Address) error {
	return c.do(ctx, http.MethodPost, "/v1/zone/nft", nil, NftRequest{Nft: nft}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, headers map[string]string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	endpoint, err := url.JoinPath(c.url, path)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		if err := json.Unmarshal(responseBody, &errResp); err != nil || errResp.Error == "" {
			return fmt.Errorf("%s %s failed (%d): %s", method, path, resp.StatusCode, string(responseBody))
		}
		return &APIError{StatusCode: resp.StatusCode, Response: errResp}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(responseBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
