package http

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/golang-jwt/jwt/v5"

	"github.com/artiart/lazymint/mechanisms/evm"
)

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrExpiredNonce     = errors.New("nonce has expired")
	ErrInvalidToken     = errors.New("invalid or expired token")
)

const (
	nonceValidity   = 5 * time.Minute
	nonceLength     = 32
	tokenDuration   = 24 * time.Hour
	tokenIssuer     = "lazymint"
	messageTemplate = "Welcome to Artiart!\n\nPlease sign this message to verify your wallet ownership.\n\nNonce: %s\nAddress: %s"
)

type pendingNonce struct {
	message   string
	expiresAt time.Time
}

// AuthService issues login messages and exchanges signed messages for
// bearer tokens whose subject is the wallet address.
type AuthService struct {
	secret []byte
	now    func() time.Time

	mu     sync.Mutex
	nonces map[common.Address]pendingNonce
}

// NewAuthService creates an auth service signing tokens with secret.
func NewAuthService(secret string) *AuthService {
	return &AuthService{
		secret: []byte(secret),
		now:    time.Now,
		nonces: make(map[common.Address]pendingNonce),
	}
}

// NonceMessage returns the message address must sign to log in. An
// unexpired message is reused.
func (s *AuthService) NonceMessage(address common.Address) (string, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if pending, ok := s.nonces[address]; ok && now.Before(pending.expiresAt) {
		return pending.message, pending.expiresAt, nil
	}

	nonce, err := randomHex(nonceLength)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate nonce: %w", err)
	}
	pending := pendingNonce{
		message:   fmt.Sprintf(messageTemplate, nonce, address.Hex()),
		expiresAt: now.Add(nonceValidity),
	}
	s.nonces[address] = pending
	s.cleanupLocked(now)
	return pending.message, pending.expiresAt, nil
}

// Login verifies a personal_sign signature over the pending message for
// address, consumes the nonce, and returns a signed token.
func (s *AuthService) Login(address common.Address, signature string) (string, time.Time, error) {
	sig, err := hexutil.Decode(ensureHexPrefix(signature))
	if err != nil {
		return "", time.Time{}, ErrInvalidSignature
	}

	s.mu.Lock()
	pending, ok := s.nonces[address]
	if !ok {
		s.mu.Unlock()
		return "", time.Time{}, ErrInvalidSignature
	}
	recovered, err := evm.RecoverPersonalSigner([]byte(pending.message), sig)
	if err != nil || recovered != address {
		s.mu.Unlock()
		return "", time.Time{}, ErrInvalidSignature
	}
	delete(s.nonces, address)
	s.mu.Unlock()

	if !s.now().Before(pending.expiresAt) {
		return "", time.Time{}, ErrExpiredNonce
	}
	return s.IssueToken(address)
}

// IssueToken signs an HS256 token for address.
func (s *AuthService) IssueToken(address common.Address) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(tokenDuration)
	claims := jwt.RegisteredClaims{
		Subject:   address.Hex(),
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, expiresAt, nil
}

// VerifyToken returns the address a token was issued to.
func (s *AuthService) VerifyToken(token string) (common.Address, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return common.Address{}, ErrInvalidToken
	}
	if !common.IsHexAddress(claims.Subject) {
		return common.Address{}, ErrInvalidToken
	}
	return common.HexToAddress(claims.Subject), nil
}

// cleanupLocked drops expired nonces. Must be called with lock held.
func (s *AuthService) cleanupLocked(now time.Time) {
	for address, pending := range s.nonces {
		if !now.Before(pending.expiresAt) {
			delete(s.nonces, address)
		}
	}
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func ensureHexPrefix(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s
	}
	return "0x" + s
}
