package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/artiart/lazymint"
	"github.com/artiart/lazymint/ledger"
	"github.com/artiart/lazymint/mechanisms/evm"
	"github.com/artiart/lazymint/zone"
)

const (
	serverName    = "lazymint"
	serverVersion = "1.0.0"

	invalidArguments = "invalid_arguments"
)

var (
	tokenSchema = json.RawMessage(`{
		"type": "object",
		"required": ["tokenId"],
		"properties": {"tokenId": {"type": "string", "description": "token id, decimal or 0x-hex"}}
	}`)
	balanceSchema = json.RawMessage(`{
		"type": "object",
		"required": ["holder", "tokenId"],
		"properties": {
			"holder": {"type": "string", "description": "holder address"},
			"tokenId": {"type": "string", "description": "token id, decimal or 0x-hex"}
		}
	}`)
	approvalSchema = json.RawMessage(`{
		"type": "object",
		"required": ["holder", "operator"],
		"properties": {
			"holder": {"type": "string", "description": "holder address"},
			"operator": {"type": "string", "description": "operator address"}
		}
	}`)
	emptySchema = json.RawMessage(`{"type": "object"}`)
)

// Option configures the server.
type Option func(*settings)

type settings struct {
	logger *zap.Logger
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// toolFunc computes a tool's result object from its raw arguments.
type toolFunc func(ctx context.Context, args json.RawMessage) (any, error)

// NewServer creates an MCP server with the read-only query tools.
func NewServer(l *ledger.Ledger, z *zone.Zone, opts ...Option) *mcpsdk.Server {
	s := settings{}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	server := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, nil)

	add := func(name, description string, schema json.RawMessage, fn toolFunc) {
		server.AddTool(&mcpsdk.Tool{
			Name:        name,
			Description: description,
			InputSchema: schema,
		}, wrap(name, fn, s.logger))
	}

	add(ToolIsTokenMinted, "Report whether a token id has been minted", tokenSchema,
		func(ctx context.Context, raw json.RawMessage) (any, error) {
			var args TokenArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			tokenID, err := parseTokenID(args.TokenID)
			if err != nil {
				return nil, err
			}
			minted, err := l.IsTokenMinted(ctx, tokenID)
			if err != nil {
				return nil, err
			}
			return TokenMintedResult{TokenID: tokenID, Minted: minted}, nil
		})

	add(ToolBalanceOf, "Return a holder's balance of a token", balanceSchema,
		func(ctx context.Context, raw json.RawMessage) (any, error) {
			var args BalanceArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			holder, err := parseAddress("holder", args.Holder)
			if err != nil {
				return nil, err
			}
			tokenID, err := parseTokenID(args.TokenID)
			if err != nil {
				return nil, err
			}
			balance, err := l.BalanceOf(ctx, holder, tokenID)
			if err != nil {
				return nil, err
			}
			return BalanceResult{Holder: holder, TokenID: tokenID, Balance: balance}, nil
		})

	add(ToolIsApprovedForAll, "Report effective operator approval, including global approvers", approvalSchema,
		func(ctx context.Context, raw json.RawMessage) (any, error) {
			var args ApprovalArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}
			holder, err := parseAddress("holder", args.Holder)
			if err != nil {
				return nil, err
			}
			operator, err := parseAddress("operator", args.Operator)
			if err != nil {
				return nil, err
			}
			approved, err := l.IsApprovedForAll(ctx, holder, operator)
			if err != nil {
				return nil, err
			}
			return ApprovalResult{Holder: holder, Operator: operator, Approved: approved}, nil
		})

	add(ToolZoneMetadata, "Return the order zone's name, schemas and ledger pointer", emptySchema,
		func(ctx context.Context, raw json.RawMessage) (any, error) {
			name, schemas := z.GetSeaportMetadata()
			return ZoneMetadataResult{Name: name, Schemas: schemas, Zone: z.Address(), Nft: z.NftAddress()}, nil
		})

	add(ToolLedgerInfo, "Return the ledger's address, chain id, owner and signer", emptySchema,
		func(ctx context.Context, raw json.RawMessage) (any, error) {
			meta, err := l.Meta(ctx)
			if err != nil {
				return nil, err
			}
			return LedgerInfoResult{Address: meta.Address, ChainID: meta.ChainID, Owner: meta.Owner, Signer: meta.Signer}, nil
		})

	return server
}

// NewSSEHandler serves server over the SSE transport.
func NewSSEHandler(server *mcpsdk.Server) http.Handler {
	return mcpsdk.NewSSEHandler(func(*http.Request) *mcpsdk.Server {
		return server
	}, &mcpsdk.SSEOptions{})
}

// wrap adapts a toolFunc to the SDK handler, reporting failures as tool errors.
func wrap(name string, fn toolFunc, logger *zap.Logger) mcpsdk.ToolHandler {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		var raw json.RawMessage
		if req.Params != nil {
			raw = req.Params.Arguments
		}

		result, err := fn(ctx, raw)
		if err != nil {
			logger.Debug("tool call failed", zap.String("tool", name), zap.Error(err))
			return errorResult(err), nil
		}
		return jsonResult(result)
	}
}

func jsonResult(v any) (*mcpsdk.CallToolResult, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool result: %w", err)
	}
	var structured map[string]interface{}
	if err := json.Unmarshal(raw, &structured); err != nil {
		return nil, fmt.Errorf("failed to unmarshal structured content: %w", err)
	}
	return &mcpsdk.CallToolResult{
		Content:           []mcpsdk.Content{&mcpsdk.TextContent{Text: string(raw)}},
		StructuredContent: structured,
	}, nil
}

func errorResult(err error) *mcpsdk.CallToolResult {
	payload := ToolError{Error: lazymint.CodeOf(err), Message: err.Error()}
	switch {
	case payload.Error != "":
	case errors.Is(err, ledger.ErrNotDeployed):
		payload.Error = "not_deployed"
	default:
		payload.Error = "internal_error"
	}
	raw, _ := json.Marshal(payload)
	return &mcpsdk.CallToolResult{
		IsError: true,
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(raw)}},
	}
}

func decodeArgs(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return lazymint.NewLedgerError(invalidArguments, fmt.Sprintf("failed to decode arguments: %v", err), nil)
	}
	return nil
}

func parseTokenID(s string) (*big.Int, error) {
	if s == "" {
		return nil, lazymint.NewLedgerError(invalidArguments, "tokenId is required", nil)
	}
	n, err := lazymint.ParseUint256(s)
	if err != nil {
		return nil, lazymint.NewLedgerError(invalidArguments, err.Error(), nil)
	}
	return n, nil
}

func parseAddress(field, s string) (common.Address, error) {
	address, err := evm.ParseAddress(s)
	if err != nil {
		return common.Address{}, lazymint.NewLedgerError(invalidArguments, fmt.Sprintf("%s: %v", field, err), nil)
	}
	return address, nil
}
