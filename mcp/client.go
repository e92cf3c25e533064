package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/artiart/lazymint"
)

// Client calls the query tools over a connected MCP session.
type Client struct {
	session *mcpsdk.ClientSession
}

// NewClient wraps an MCP client session.
func NewClient(session *mcpsdk.ClientSession) *Client {
	return &Client{session: session}
}

// IsTokenMinted calls is_token_minted.
func (c *Client) IsTokenMinted(ctx context.Context, tokenID *big.Int) (bool, error) {
	var result TokenMintedResult
	err := c.call(ctx, ToolIsTokenMinted, TokenArgs{TokenID: lazymint.BigOrZero(tokenID).String()}, &result)
	return result.Minted, err
}

// BalanceOf calls balance_of.
func (c *Client) BalanceOf(ctx context.Context, holder common.Address, tokenID *big.Int) (*big.Int, error) {
	var result BalanceResult
	args := BalanceArgs{Holder: holder.Hex(), TokenID: lazymint.BigOrZero(tokenID).String()}
	if err := c.call(ctx, ToolBalanceOf, args, &result); err != nil {
		return nil, err
	}
	return lazymint.BigOrZero(result.Balance), nil
}

// IsApprovedForAll calls is_approved_for_all.
func (c *Client) IsApprovedForAll(ctx context.Context, holder, operator common.Address) (bool, error) {
	var result ApprovalResult
	err := c.call(ctx, ToolIsApprovedForAll, ApprovalArgs{Holder: holder.Hex(), Operator: operator.Hex()}, &result)
	return result.Approved, err
}

// ZoneMetadata calls zone_metadata.
func (c *Client) ZoneMetadata(ctx context.Context) (ZoneMetadataResult, error) {
	var result ZoneMetadataResult
	err := c.call(ctx, ToolZoneMetadata, struct{}{}, &result)
	return result, err
}

// LedgerInfo calls ledger_info.
func (c *Client) LedgerInfo(ctx context.Context) (LedgerInfoResult, error) {
	var result LedgerInfoResult
	err := c.call(ctx, ToolLedgerInfo, struct{}{}, &result)
	return result, err
}

// call invokes a tool and decodes its JSON text content into dst.
// Tool errors are returned as *lazymint.LedgerError.
func (c *Client) call(ctx context.Context, name string, args any, dst any) error {
	result, err := c.session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return fmt.Errorf("mcp call %s failed: %w", name, err)
	}

	text := textContent(result)
	if result.IsError {
		var toolErr ToolError
		if err := json.Unmarshal([]byte(text), &toolErr); err != nil || toolErr.Error == "" {
			return fmt.Errorf("mcp tool %s failed: %s", name, text)
		}
		return lazymint.NewLedgerError(toolErr.Error, toolErr.Message, nil)
	}

	if err := json.Unmarshal([]byte(text), dst); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", name, err)
	}
	return nil
}

func textContent(result *mcpsdk.CallToolResult) string {
	for _, content := range result.Content {
		if text, ok := content.(*mcpsdk.TextContent); ok {
			return text.Text
		}
	}
	return ""
}
