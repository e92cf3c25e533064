// Package mcp exposes read-only ledger and zone queries as MCP (Model Context
// Protocol) tools.
//
// # Server Usage
//
//	server := mcp.NewServer(l, z)
//	handler := mcp.NewSSEHandler(server)
//	mux.Handle("/mcp", handler)
//
// # Client Usage
//
// Connect with the official SDK and wrap the session:
//
//	import (
//	    "github.com/artiart/lazymint/mcp"
//	    mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
//	)
//
//	mcpClient := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "my-agent", Version: "1.0.0"}, nil)
//	session, _ := mcpClient.Connect(ctx, &mcpsdk.SSEClientTransport{Endpoint: url + "/mcp"}, nil)
//
//	client := mcp.NewClient(session)
//	minted, err := client.IsTokenMinted(ctx, big.NewInt(189))
//
// # Tools
//
//   - is_token_minted {tokenId}
//   - balance_of {holder, tokenId}
//   - is_approved_for_all {holder, operator}
//   - zone_metadata {}
//   - ledger_info {}
//
// Numbers are passed as decimal or 0x-hex strings. Every tool answers with a
// JSON text item and the same object as structured content; invalid
// arguments and ledger errors come back as tool errors, not protocol errors.
package mcp
