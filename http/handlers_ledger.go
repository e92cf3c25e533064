package http

import (
	"context"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/artiart/lazymint"
	"github.com/artiart/lazymint/mechanisms/evm"
)

func (s *Server) handleLedgerInfo(c *gin.Context) {
	meta, err := s.ledger.Meta(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, LedgerInfo{
		Address: meta.Address,
		ChainID: meta.ChainID,
		Owner:   meta.Owner,
		Signer:  meta.Signer,
		Domain:  evm.VoucherDomain(meta.ChainID, meta.Address),
	})
}

func (s *Server) handleToken(c *gin.Context) {
	tokenID, ok := uintParam(c, "tokenId")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	minted, err := s.ledger.IsTokenMinted(ctx, tokenID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	uri, err := s.ledger.URI(ctx, tokenID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, TokenResponse{TokenID: tokenID, Minted: minted, URI: uri})
}

func (s *Server) handleBalance(c *gin.Context) {
	holder, ok := addressParam(c, "holder")
	if !ok {
		return
	}
	tokenID, ok := uintParam(c, "tokenId")
	if !ok {
		return
	}
	balance, err := s.ledger.BalanceOf(c.Request.Context(), holder, tokenID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, BalanceResponse{Holder: holder, TokenID: tokenID, Balance: balance})
}

func (s *Server) handleApproval(c *gin.Context) {
	holder, ok := addressParam(c, "holder")
	if !ok {
		return
	}
	operator, ok := addressParam(c, "operator")
	if !ok {
		return
	}
	approved, err := s.ledger.IsApprovedForAll(c.Request.Context(), holder, operator)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ApprovalResponse{Holder: holder, Operator: operator, Approved: approved})
}

func (s *Server) handleGlobalApprover(c *gin.Context) {
	operator, ok := addressParam(c, "operator")
	if !ok {
		return
	}
	approved, err := s.ledger.IsGlobalApprover(c.Request.Context(), operator)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, GlobalApproverResponse{Operator: operator, Approved: approved})
}

func (s *Server) handleOptOut(c *gin.Context) {
	holder, ok := addressParam(c, "holder")
	if !ok {
		return
	}
	optedOut, err := s.ledger.HasOptedOutOfGlobalApproval(c.Request.Context(), holder)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, OptOutResponse{Holder: holder, OptedOut: optedOut})
}

func (s *Server) handleLedgerInterface(c *gin.Context) {
	raw := c.Param("id")
	id, err := evm.ParseInterfaceID(raw)
	if err != nil {
		abortInvalidRequest(c, err.Error(), nil)
		return
	}
	c.JSON(http.StatusOK, InterfaceResponse{InterfaceID: raw, Supported: s.ledger.SupportsInterface(id)})
}

func (s *Server) handleMint(c *gin.Context) {
	var req MintRequest
	body, ok := bindJSON(c, schemaMint, &req)
	if !ok {
		return
	}

	caller, authenticated := callerFrom(c)
	recipient := caller
	if req.Recipient != nil {
		recipient = *req.Recipient
	} else if !authenticated {
		abortInvalidRequest(c, "recipient is required for anonymous requests", nil)
		return
	}

	// A signer rotation changes which vouchers are valid, so results cached
	// under the previous signer are not replayed.
	signer, err := s.ledger.Signer(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	scope := "mint:" + caller.Hex() + ":" + signer.Hex()

	s.idempotent(c, scope, body, func(ctx context.Context) (any, error) {
		return s.ledger.Mint(ctx, req.Voucher, recipient)
	})
}

func (s *Server) handleSetSigner(c *gin.Context) {
	var req SignerRequest
	if _, ok := bindJSON(c, schemaSigner, &req); !ok {
		return
	}
	caller, _ := callerFrom(c)
	if err := s.ledger.SetSigner(c.Request.Context(), caller, req.Signer); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (s *Server) handleTransferOwnership(c *gin.Context) {
	var req OwnerRequest
	if _, ok := bindJSON(c, schemaOwner, &req); !ok {
		return
	}
	caller, _ := callerFrom(c)
	if err := s.ledger.TransferOwnership(c.Request.Context(), caller, req.Owner); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (s *Server) handleSetApproval(c *gin.Context) {
	var req ApprovalRequest
	if _, ok := bindJSON(c, schemaApproval, &req); !ok {
		return
	}
	caller, _ := callerFrom(c)
	if err := s.ledger.SetApprovalForAll(c.Request.Context(), caller, req.Operator, req.Approved); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ApprovalResponse{Holder: caller, Operator: req.Operator, Approved: req.Approved})
}

func (s *Server) handleSetGlobalApproval(c *gin.Context) {
	var req ApprovalRequest
	if _, ok := bindJSON(c, schemaApproval, &req); !ok {
		return
	}
	caller, _ := callerFrom(c)
	if err := s.ledger.SetGlobalApproval(c.Request.Context(), caller, req.Operator, req.Approved); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, GlobalApproverResponse{Operator: req.Operator, Approved: req.Approved})
}

func (s *Server) handleSetOptOut(c *gin.Context) {
	var req OptOutRequest
	if _, ok := bindJSON(c, schemaOptOut, &req); !ok {
		return
	}
	caller, _ := callerFrom(c)
	if err := s.ledger.SetGlobalApprovalOptOut(c.Request.Context(), caller, req.OptOut); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, OptOutResponse{Holder: caller, OptedOut: req.OptOut})
}

func addressParam(c *gin.Context, name string) (common.Address, bool) {
	address, err := evm.ParseAddress(c.Param(name))
	if err != nil {
		abortInvalidRequest(c, err.Error(), map[string]interface{}{"param": name})
		return common.Address{}, false
	}
	return address, true
}

func uintParam(c *gin.Context, name string) (*big.Int, bool) {
	raw := c.Param(name)
	if raw == "" {
		abortInvalidRequest(c, name+" is required", map[string]interface{}{"param": name})
		return nil, false
	}
	n, err := lazymint.ParseUint256(raw)
	if err != nil {
		abortInvalidRequest(c, err.Error(), map[string]interface{}{"param": name})
		return nil, false
	}
	return n, true
}
