package lazymint

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
)

// Voucher is an off-ledger signed authorization to issue Amount units of
// TokenID to Owner. URI is bound into the signed payload.
type Voucher struct {
	Owner     common.Address
	TokenID   *big.Int
	Amount    *big.Int
	URI       string
	Signature []byte
}

type voucherJSON struct {
	Owner     common.Address `json:"owner"`
	TokenID   string         `json:"tokenId"`
	Amount    string         `json:"amount"`
	URI       string         `json:"uri"`
	Signature hexutil.Bytes  `json:"signature,omitempty"`
}

// MarshalJSON encodes numeric fields as decimal strings.
func (v Voucher) MarshalJSON() ([]byte, error) {
	return json.Marshal(voucherJSON{
		Owner:     v.Owner,
		TokenID:   BigOrZero(v.TokenID).String(),
		Amount:    BigOrZero(v.Amount).String(),
		URI:       v.URI,
		Signature: v.Signature,
	})
}

// UnmarshalJSON accepts decimal or 0x-prefixed hex strings for tokenId and amount.
func (v *Voucher) UnmarshalJSON(data []byte) error {
	var raw voucherJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	tokenID, err := ParseUint256(raw.TokenID)
	if err != nil {
		return fmt.Errorf("invalid tokenId: %w", err)
	}
	amount, err := ParseUint256(raw.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	*v = Voucher{
		Owner:     raw.Owner,
		TokenID:   tokenID,
		Amount:    amount,
		URI:       raw.URI,
		Signature: raw.Signature,
	}
	return nil
}

// Unsigned returns a copy of v without its signature.
func (v Voucher) Unsigned() Voucher {
	v.Signature = nil
	return v
}

// SpentItem is an offer item as seen by a zone.
type SpentItem struct {
	ItemType   uint8          `json:"itemType"`
	Token      common.Address `json:"token"`
	Identifier *big.Int       `json:"identifier"`
	Amount     *big.Int       `json:"amount"`
}

// ReceivedItem is a consideration item as seen by a zone.
type ReceivedItem struct {
	ItemType   uint8          `json:"itemType"`
	Token      common.Address `json:"token"`
	Identifier *big.Int       `json:"identifier"`
	Amount     *big.Int       `json:"amount"`
	Recipient  common.Address `json:"recipient"`
}

// ZoneParameters is the order context the settlement protocol hands to a zone.
// Only Fulfiller and ExtraData are consumed; the remaining fields are carried
// so payloads round-trip unchanged.
type ZoneParameters struct {
	OrderHash     common.Hash    `json:"orderHash"`
	Fulfiller     common.Address `json:"fulfiller"`
	Offerer       common.Address `json:"offerer"`
	Offer         []SpentItem    `json:"offer"`
	Consideration []ReceivedItem `json:"consideration"`
	ExtraData     hexutil.Bytes  `json:"extraData"`
	OrderHashes   []common.Hash  `json:"orderHashes"`
	StartTime     *big.Int       `json:"startTime"`
	EndTime       *big.Int       `json:"endTime"`
	ZoneHash      common.Hash    `json:"zoneHash"`
}

// AckToken is the 4-byte acknowledgement a zone returns from a callback.
type AckToken [4]byte

func (a AckToken) String() string {
	return hexutil.Encode(a[:])
}

// MarshalText encodes the token as 0x-prefixed hex.
func (a AckToken) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText decodes a 0x-prefixed 4-byte hex string.
func (a *AckToken) UnmarshalText(text []byte) error {
	b, err := hexutil.Decode(string(text))
	if err != nil {
		return err
	}
	if len(b) != len(a) {
		return fmt.Errorf("ack token must be %d bytes, got %d", len(a), len(b))
	}
	copy(a[:], b)
	return nil
}

// Schema identifies a settlement-protocol extension schema a zone implements.
type Schema struct {
	ID       uint64        `json:"id"`
	Metadata hexutil.Bytes `json:"metadata"`
}

// MintReceipt describes the outcome of a successful issuance call. Issued is
// false when the token had already been minted and the call was a no-op.
type MintReceipt struct {
	TokenID   *big.Int       `json:"tokenId"`
	Recipient common.Address `json:"recipient"`
	Amount    *big.Int       `json:"amount"`
	URI       string         `json:"uri"`
	Issued    bool           `json:"issued"`
}

// ParseUint256 parses a decimal or 0x-prefixed hex string bounded to 256 bits.
// The empty string parses as zero.
func ParseUint256(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	n, ok := math.ParseBig256(s)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("not a uint256: %q", s)
	}
	return n, nil
}

// BigOrZero returns n, or zero when n is nil.
func BigOrZero(n *big.Int) *big.Int {
	if n == nil {
		return new(big.Int)
	}
	return n
}
