package ledger

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/artiart/lazymint"
)

// BalanceKey addresses a (holder, token id) balance. TokenID is the decimal token id.
type BalanceKey struct {
	Holder  common.Address
	TokenID string
}

// ApprovalKey addresses a standard (holder, operator) approval.
type ApprovalKey struct {
	Holder   common.Address
	Operator common.Address
}

// Snapshot is a complete image of ledger state. False flags and zero
// balances are omitted.
type Snapshot struct {
	Meta            Meta
	Zone            ZoneRecord
	Tokens          map[string]TokenRecord
	Balances        map[BalanceKey]*big.Int
	Approvals       map[ApprovalKey]bool
	GlobalApprovers map[common.Address]bool
	OptOuts         map[common.Address]bool
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() Snapshot {
	return Snapshot{
		Tokens:          make(map[string]TokenRecord),
		Balances:        make(map[BalanceKey]*big.Int),
		Approvals:       make(map[ApprovalKey]bool),
		GlobalApprovers: make(map[common.Address]bool),
		OptOuts:         make(map[common.Address]bool),
	}
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	out := NewSnapshot()
	out.Meta = s.Meta
	out.Zone = s.Zone
	if s.Meta.ChainID != nil {
		out.Meta.ChainID = new(big.Int).Set(s.Meta.ChainID)
	}
	for k, v := range s.Tokens {
		out.Tokens[k] = v
	}
	for k, v := range s.Balances {
		out.Balances[k] = new(big.Int).Set(v)
	}
	for k, v := range s.Approvals {
		out.Approvals[k] = v
	}
	for k, v := range s.GlobalApprovers {
		out.GlobalApprovers[k] = v
	}
	for k, v := range s.OptOuts {
		out.OptOuts[k] = v
	}
	return out
}

// MemoryStore keeps ledger state in process memory.
//
// Update holds the write lock for the whole callback and journals every write;
// if the callback fails or panics the journal is replayed in reverse so the
// state is exactly as before the call.
type MemoryStore struct {
	mu     sync.RWMutex
	state  Snapshot
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: NewSnapshot()}
}

// NewMemoryStoreFromSnapshot creates a store seeded with a copy of snapshot.
func NewMemoryStoreFromSnapshot(snapshot Snapshot) *MemoryStore {
	return &MemoryStore{state: snapshot.Clone()}
}

// Snapshot returns a deep copy of the current state.
func (m *MemoryStore) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Clone()
}

func (m *MemoryStore) View(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrStoreClosed
	}
	return fn(&memoryTx{state: &m.state, readOnly: true})
}

func (m *MemoryStore) Update(ctx context.Context, fn func(tx Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}

	tx := &memoryTx{state: &m.state}
	defer func() {
		if r := recover(); r != nil {
			tx.rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

type memoryTx struct {
	state    *Snapshot
	readOnly bool
	undo     []func()
}

func (t *memoryTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memoryTx) writable() error {
	if t.readOnly {
		return ErrReadOnly
	}
	return nil
}

// journal records how to restore key in m before it is overwritten.
func journal[K comparable, V any](t *memoryTx, m map[K]V, key K) {
	prev, existed := m[key]
	t.undo = append(t.undo, func() {
		if existed {
			m[key] = prev
		} else {
			delete(m, key)
		}
	})
}

func (t *memoryTx) Meta() (Meta, error) {
	meta := t.state.Meta
	if meta.ChainID != nil {
		meta.ChainID = new(big.Int).Set(meta.ChainID)
	}
	return meta, nil
}

func (t *memoryTx) PutMeta(meta Meta) error {
	if err := t.writable(); err != nil {
		return err
	}
	prev := t.state.Meta
	t.undo = append(t.undo, func() { t.state.Meta = prev })
	if meta.ChainID != nil {
		meta.ChainID = new(big.Int).Set(meta.ChainID)
	}
	t.state.Meta = meta
	return nil
}

func (t *memoryTx) Zone() (ZoneRecord, error) {
	return t.state.Zone, nil
}

func (t *memoryTx) PutZone(record ZoneRecord) error {
	if err := t.writable(); err != nil {
		return err
	}
	prev := t.state.Zone
	t.undo = append(t.undo, func() { t.state.Zone = prev })
	t.state.Zone = record
	return nil
}

func (t *memoryTx) Token(tokenID *big.Int) (TokenRecord, error) {
	return t.state.Tokens[tokenKey(tokenID)], nil
}

func (t *memoryTx) PutToken(tokenID *big.Int, record TokenRecord) error {
	if err := t.writable(); err != nil {
		return err
	}
	key := tokenKey(tokenID)
	journal(t, t.state.Tokens, key)
	t.state.Tokens[key] = record
	return nil
}

func (t *memoryTx) Balance(holder common.Address, tokenID *big.Int) (*big.Int, error) {
	if balance, ok := t.state.Balances[BalanceKey{Holder: holder, TokenID: tokenKey(tokenID)}]; ok {
		return new(big.Int).Set(balance), nil
	}
	return new(big.Int), nil
}

func (t *memoryTx) PutBalance(holder common.Address, tokenID *big.Int, amount *big.Int) error {
	if err := t.writable(); err != nil {
		return err
	}
	key := BalanceKey{Holder: holder, TokenID: tokenKey(tokenID)}
	journal(t, t.state.Balances, key)
	if amount == nil || amount.Sign() == 0 {
		delete(t.state.Balances, key)
		return nil
	}
	t.state.Balances[key] = new(big.Int).Set(amount)
	return nil
}

func (t *memoryTx) Approval(holder, operator common.Address) (bool, error) {
	return t.state.Approvals[ApprovalKey{Holder: holder, Operator: operator}], nil
}

func (t *memoryTx) PutApproval(holder, operator common.Address, approved bool) error {
	if err := t.writable(); err != nil {
		return err
	}
	return putFlag(t, t.state.Approvals, ApprovalKey{Holder: holder, Operator: operator}, approved)
}

func (t *memoryTx) GlobalApprover(operator common.Address) (bool, error) {
	return t.state.GlobalApprovers[operator], nil
}

func (t *memoryTx) PutGlobalApprover(operator common.Address, approved bool) error {
	if err := t.writable(); err != nil {
		return err
	}
	return putFlag(t, t.state.GlobalApprovers, operator, approved)
}

func (t *memoryTx) OptedOut(holder common.Address) (bool, error) {
	return t.state.OptOuts[holder], nil
}

func (t *memoryTx) PutOptOut(holder common.Address, optOut bool) error {
	if err := t.writable(); err != nil {
		return err
	}
	return putFlag(t, t.state.OptOuts, holder, optOut)
}

func putFlag[K comparable](t *memoryTx, m map[K]bool, key K, value bool) error {
	journal(t, m, key)
	if value {
		m[key] = true
	} else {
		delete(m, key)
	}
	return nil
}

func tokenKey(tokenID *big.Int) string {
	return lazymint.BigOrZero(tokenID).String()
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
