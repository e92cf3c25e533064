package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleNonce(c *gin.Context) {
	var req NonceRequest
	if _, ok := bindJSON(c, schemaNonce, &req); !ok {
		return
	}
	message, expiresAt, err := s.auth.NonceMessage(req.Address)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, NonceResponse{Message: message, ExpiresAt: expiresAt})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req LoginRequest
	if _, ok := bindJSON(c, schemaLogin, &req); !ok {
		return
	}
	token, expiresAt, err := s.auth.Login(req.Address, req.Signature)
	if err != nil {
		if errors.Is(err, ErrInvalidSignature) || errors.Is(err, ErrExpiredNonce) {
			abortUnauthorized(c, err.Error())
			return
		}
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, LoginResponse{Token: token, Address: req.Address, ExpiresAt: expiresAt})
}
