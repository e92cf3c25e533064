// Package sqlite provides a durable ledger.Store backed by SQLite.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	_ "github.com/mattn/go-sqlite3"

	"github.com/artiart/lazymint"
	"github.com/artiart/lazymint/ledger"
)

//go:embed schema.sql
var schemaSQL string

// Store persists ledger state in a SQLite database.
// Every Update is one SQL transaction; a failed callback rolls it back.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//   - a single connection, so transactions are totally ordered
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func (s *Store) View(ctx context.Context, fn func(tx ledger.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("failed to begin read transaction: %w", err)
	}
	defer tx.Rollback()

	return fn(&sqlTx{ctx: ctx, tx: tx, readOnly: true})
}

func (s *Store) Update(ctx context.Context, fn func(tx ledger.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(&sqlTx{ctx: ctx, tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type sqlTx struct {
	ctx      context.Context
	tx       *sql.Tx
	readOnly bool
}

func (t *sqlTx) exec(query string, args ...any) error {
	if t.readOnly {
		return ledger.ErrReadOnly
	}
	if _, err := t.tx.ExecContext(t.ctx, query, args...); err != nil {
		return fmt.Errorf("ledger write failed: %w", err)
	}
	return nil
}

// exists runs a single-row presence query.
func (t *sqlTx) exists(query string, args ...any) (bool, error) {
	var one int
	err := t.tx.QueryRowContext(t.ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ledger read failed: %w", err)
	}
	return true, nil
}

func (t *sqlTx) Meta() (ledger.Meta, error) {
	var address, chainID, owner, signer string
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT address, chain_id, owner, signer FROM ledger_meta WHERE id = 1`,
	).Scan(&address, &chainID, &owner, &signer)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Meta{}, nil
	}
	if err != nil {
		return ledger.Meta{}, fmt.Errorf("ledger read failed: %w", err)
	}

	id, err := parseAmount(chainID)
	if err != nil {
		return ledger.Meta{}, err
	}
	return ledger.Meta{
		Address: common.HexToAddress(address),
		ChainID: id,
		Owner:   common.HexToAddress(owner),
		Signer:  common.HexToAddress(signer),
	}, nil
}

func (t *sqlTx) PutMeta(meta ledger.Meta) error {
	return t.exec(`
		INSERT INTO ledger_meta (id, address, chain_id, owner, signer) VALUES (1, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			address = excluded.address,
			chain_id = excluded.chain_id,
			owner = excluded.owner,
			signer = excluded.signer`,
		meta.Address.Hex(), lazymint.BigOrZero(meta.ChainID).String(), meta.Owner.Hex(), meta.Signer.Hex(),
	)
}

func (t *sqlTx) Zone() (ledger.ZoneRecord, error) {
	var address, owner, nft string
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT address, owner, nft FROM zone_meta WHERE id = 1`,
	).Scan(&address, &owner, &nft)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.ZoneRecord{}, nil
	}
	if err != nil {
		return ledger.ZoneRecord{}, fmt.Errorf("ledger read failed: %w", err)
	}
	return ledger.ZoneRecord{
		Address: common.HexToAddress(address),
		Owner:   common.HexToAddress(owner),
		Nft:     common.HexToAddress(nft),
	}, nil
}

func (t *sqlTx) PutZone(record ledger.ZoneRecord) error {
	return t.exec(`
		INSERT INTO zone_meta (id, address, owner, nft) VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			address = excluded.address,
			owner = excluded.owner,
			nft = excluded.nft`,
		record.Address.Hex(), record.Owner.Hex(), record.Nft.Hex(),
	)
}

func (t *sqlTx) Token(tokenID *big.Int) (ledger.TokenRecord, error) {
	var record ledger.TokenRecord
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT minted, uri FROM tokens WHERE token_id = ?`, tokenKey(tokenID),
	).Scan(&record.Minted, &record.URI)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.TokenRecord{}, nil
	}
	if err != nil {
		return ledger.TokenRecord{}, fmt.Errorf("ledger read failed: %w", err)
	}
	return record, nil
}

func (t *sqlTx) PutToken(tokenID *big.Int, record ledger.TokenRecord) error {
	return t.exec(`
		INSERT INTO tokens (token_id, minted, uri) VALUES (?, ?, ?)
		ON CONFLICT (token_id) DO UPDATE SET minted = excluded.minted, uri = excluded.uri`,
		tokenKey(tokenID), record.Minted, record.URI,
	)
}

func (t *sqlTx) Balance(holder common.Address, tokenID *big.Int) (*big.Int, error) {
	var amount string
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT amount FROM balances WHERE holder = ? AND token_id = ?`, holder.Hex(), tokenKey(tokenID),
	).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger read failed: %w", err)
	}
	return parseAmount(amount)
}

func (t *sqlTx) PutBalance(holder common.Address, tokenID *big.Int, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return t.exec(`DELETE FROM balances WHERE holder = ? AND token_id = ?`, holder.Hex(), tokenKey(tokenID))
	}
	return t.exec(`
		INSERT INTO balances (holder, token_id, amount) VALUES (?, ?, ?)
		ON CONFLICT (holder, token_id) DO UPDATE SET amount = excluded.amount`,
		holder.Hex(), tokenKey(tokenID), amount.String(),
	)
}

func (t *sqlTx) Approval(holder, operator common.Address) (bool, error) {
	return t.exists(`SELECT 1 FROM approvals WHERE holder = ? AND operator = ?`, holder.Hex(), operator.Hex())
}

func (t *sqlTx) PutApproval(holder, operator common.Address, approved bool) error {
	if approved {
		return t.exec(`INSERT OR IGNORE INTO approvals (holder, operator) VALUES (?, ?)`, holder.Hex(), operator.Hex())
	}
	return t.exec(`DELETE FROM approvals WHERE holder = ? AND operator = ?`, holder.Hex(), operator.Hex())
}

func (t *sqlTx) GlobalApprover(operator common.Address) (bool, error) {
	return t.exists(`SELECT 1 FROM global_approvers WHERE operator = ?`, operator.Hex())
}

func (t *sqlTx) PutGlobalApprover(operator common.Address, approved bool) error {
	if approved {
		return t.exec(`INSERT OR IGNORE INTO global_approvers (operator) VALUES (?)`, operator.Hex())
	}
	return t.exec(`DELETE FROM global_approvers WHERE operator = ?`, operator.Hex())
}

func (t *sqlTx) OptedOut(holder common.Address) (bool, error) {
	return t.exists(`SELECT 1 FROM opt_outs WHERE holder = ?`, holder.Hex())
}

func (t *sqlTx) PutOptOut(holder common.Address, optOut bool) error {
	if optOut {
		return t.exec(`INSERT OR IGNORE INTO opt_outs (holder) VALUES (?)`, holder.Hex())
	}
	return t.exec(`DELETE FROM opt_outs WHERE holder = ?`, holder.Hex())
}

func tokenKey(tokenID *big.Int) string {
	return lazymint.BigOrZero(tokenID).String()
}

func parseAmount(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("corrupt integer in ledger: %q", s)
	}
	return n, nil
}

// Ensure Store implements ledger.Store
var _ ledger.Store = (*Store)(nil)
