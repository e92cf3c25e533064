package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/artiart/lazymint"
	"github.com/artiart/lazymint/mechanisms/evm"
)

func (s *Server) handleZoneInfo(c *gin.Context) {
	c.JSON(http.StatusOK, ZoneInfo{
		Address: s.zone.Address(),
		Owner:   s.zone.Owner(),
		Nft:     s.zone.NftAddress(),
	})
}

func (s *Server) handleZoneMetadata(c *gin.Context) {
	name, schemas := s.zone.GetSeaportMetadata()
	c.JSON(http.StatusOK, MetadataResponse{Name: name, Schemas: schemas})
}

func (s *Server) handleZoneInterface(c *gin.Context) {
	raw := c.Param("id")
	id, err := evm.ParseInterfaceID(raw)
	if err != nil {
		abortInvalidRequest(c, err.Error(), nil)
		return
	}
	c.JSON(http.StatusOK, InterfaceResponse{InterfaceID: raw, Supported: s.zone.SupportsInterface(id)})
}

func (s *Server) handleAuthorize(c *gin.Context) {
	var params lazymint.ZoneParameters
	if _, ok := bindJSON(c, schemaZoneParameters, &params); !ok {
		return
	}
	caller, _ := callerFrom(c)

	// Not result-cached: the outcome depends on the zone's nft pointer, and a
	// repeated fill is already a no-op mint.
	ack, err := s.zone.AuthorizeOrder(c.Request.Context(), caller, params)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, AckResponse{Magic: ack})
}

func (s *Server) handleValidate(c *gin.Context) {
	var params lazymint.ZoneParameters
	if _, ok := bindJSON(c, schemaZoneParameters, &params); !ok {
		return
	}
	caller, _ := callerFrom(c)
	ack, err := s.zone.ValidateOrder(c.Request.Context(), caller, params)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, AckResponse{Magic: ack})
}

func (s *Server) handleSetNft(c *gin.Context) {
	var req NftRequest
	if _, ok := bindJSON(c, schemaNft, &req); !ok {
		return
	}
	caller, _ := callerFrom(c)
	if err := s.zone.SetNftAddress(c.Request.Context(), caller, req.Nft); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (s *Server) handleZoneTransferOwnership(c *gin.Context) {
	var req OwnerRequest
	if _, ok := bindJSON(c, schemaOwner, &req); !ok {
		return
	}
	caller, _ := callerFrom(c)
	if err := s.zone.TransferOwnership(c.Request.Context(), caller, req.Owner); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}
