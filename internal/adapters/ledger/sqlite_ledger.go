package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"rentmesh/internal/domain/shared"
	"rentmesh/internal/ports/outbound"
)

// SQLiteLedger implements the opaque transfer capability on a sqlite
// file. The ledger is external infrastructure shared by the agents that
// hold the capability (the payer agents and the scheduler); it stands in
// for whatever settlement network a deployment actually uses.
type SQLiteLedger struct {
	mu   sync.Mutex
	conn *sqlite.Conn

	// pollInterval controls how often AwaitSettlement re-checks for a
	// settlement written by another process.
	pollInterval time.Duration
}

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS wallets (
	address TEXT PRIMARY KEY,
	balance INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS settlements (
	tx_hash    TEXT PRIMARY KEY,
	payer      TEXT NOT NULL,
	payee      TEXT NOT NULL,
	amount     INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);`

// Open creates or opens a ledger file. Use ":memory:" in tests.
func Open(path string) (*SQLiteLedger, error) {
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite, sqlite.OpenCreate, sqlite.OpenWAL)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger %s: %w", path, err)
	}
	if err := sqlitex.ExecuteScript(conn, ledgerSchema, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create ledger schema: %w", err)
	}
	return &SQLiteLedger{conn: conn, pollInterval: 200 * time.Millisecond}, nil
}

// Credit adds funds to a wallet, creating it if needed.
func (l *SQLiteLedger) Credit(address string, amountCents int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return sqlitex.Execute(l.conn,
		`INSERT INTO wallets (address, balance) VALUES (?, ?)
		 ON CONFLICT(address) DO UPDATE SET balance = balance + excluded.balance`,
		&sqlitex.ExecOptions{Args: []any{address, amountCents}})
}

// Balance returns a wallet's current balance; unknown wallets hold zero.
func (l *SQLiteLedger) Balance(address string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var balance int64
	err := sqlitex.Execute(l.conn, `SELECT balance FROM wallets WHERE address = ?`, &sqlitex.ExecOptions{
		Args: []any{address},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			balance = stmt.ColumnInt64(0)
			return nil
		},
	})
	return balance, err
}

// SubmitTransfer moves funds between wallets and records the settlement
// under a fresh transaction hash.
func (l *SQLiteLedger) SubmitTransfer(ctx context.Context, from, to string, amountCents int64) (string, error) {
	if amountCents <= 0 {
		return "", fmt.Errorf("transfer amount must be positive")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	endFn, err := sqlitex.ImmediateTransaction(l.conn)
	if err != nil {
		return "", fmt.Errorf("failed to begin ledger transaction: %w", err)
	}
	defer endFn(&err)

	var balance int64
	err = sqlitex.Execute(l.conn, `SELECT balance FROM wallets WHERE address = ?`, &sqlitex.ExecOptions{
		Args: []any{from},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			balance = stmt.ColumnInt64(0)
			return nil
		},
	})
	if err != nil {
		return "", err
	}
	if balance < amountCents {
		err = shared.ErrInsufficientFunds
		return "", err
	}

	err = sqlitex.Execute(l.conn,
		`UPDATE wallets SET balance = balance - ? WHERE address = ?`,
		&sqlitex.ExecOptions{Args: []any{amountCents, from}})
	if err != nil {
		return "", err
	}
	err = sqlitex.Execute(l.conn,
		`INSERT INTO wallets (address, balance) VALUES (?, ?)
		 ON CONFLICT(address) DO UPDATE SET balance = balance + excluded.balance`,
		&sqlitex.ExecOptions{Args: []any{to, amountCents}})
	if err != nil {
		return "", err
	}

	txHash := uuid.NewString()
	err = sqlitex.Execute(l.conn,
		`INSERT INTO settlements (tx_hash, payer, payee, amount, created_at) VALUES (?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{txHash, from, to, amountCents, time.Now().Unix()}})
	if err != nil {
		return "", err
	}
	return txHash, nil
}

// AwaitSettlement polls for the settlement of an earlier transfer until
// it appears or the context expires.
func (l *SQLiteLedger) AwaitSettlement(ctx context.Context, txHash string) (*outbound.Settlement, error) {
	for {
		st, err := l.settlement(txHash)
		if err != nil {
			return nil, err
		}
		if st != nil {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("settlement %s not observed: %w", txHash, ctx.Err())
		case <-time.After(l.pollInterval):
		}
	}
}

func (l *SQLiteLedger) settlement(txHash string) (*outbound.Settlement, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var st *outbound.Settlement
	err := sqlitex.Execute(l.conn,
		`SELECT payer, payee, amount FROM settlements WHERE tx_hash = ?`,
		&sqlitex.ExecOptions{
			Args: []any{txHash},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				st = &outbound.Settlement{
					Payer:       stmt.ColumnText(0),
					Payee:       stmt.ColumnText(1),
					AmountCents: stmt.ColumnInt64(2),
				}
				return nil
			},
		})
	return st, err
}

func (l *SQLiteLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn.Close()
}
