// Package sqlite provides the durable client-side state: the order
// pointer slot (a key-value table) and the append-only receipts table.
//
// WAL mode is enabled on Open so that readers never block writers and
// vice versa — the receipt lookup endpoint may read while a checkout
// confirmation is writing.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/redstick-goods/storefront/internal/checkout"

	// Register the pure-Go SQLite driver. modernc.org/sqlite avoids
	// CGO, which keeps Docker builds (Alpine) simple.
	_ "modernc.org/sqlite"
)

// schema is the DDL executed once on startup.
const schema = `
CREATE TABLE IF NOT EXISTS kv (
    -- The capability is a flat string map; the engine stores its
    -- order pointer JSON under a single well-known key.
    key         TEXT PRIMARY KEY,
    value       TEXT NOT NULL,

    -- Wall-clock of the last write (RFC3339 TEXT, SQLite idiom).
    updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS receipts (
    -- Surrogate primary key — auto-incremented by SQLite.
    id           INTEGER PRIMARY KEY AUTOINCREMENT,

    -- Platform identifiers for the completed purchase.
    payment_id   TEXT NOT NULL,
    order_id     TEXT NOT NULL,

    -- Full receipt JSON (items, customer, totals). Receipts are
    -- display data, not re-validated against the platform, so one
    -- opaque blob is deliberate.
    body         TEXT NOT NULL,

    -- W3C trace/span ids from the span active at payment completion,
    -- for joining a receipt with its distributed trace.
    trace_id     TEXT NOT NULL DEFAULT '',
    span_id      TEXT NOT NULL DEFAULT '',

    completed_at TEXT NOT NULL
);

-- The confirmation page asks for the newest receipt.
CREATE INDEX IF NOT EXISTS idx_receipts_completed_at ON receipts(completed_at);
`

// Repository implements store.KV and checkout.ReceiptStore on one
// SQLite database file.
type Repository struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Repository, error) {
	// _pragma query parameters configure connection state for the
	// pure-Go driver. WAL enables concurrent readers; busy_timeout
	// waits for locks instead of failing immediately.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// SQLite performs best with a single writer connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close releases the database connection. Call it with defer in main().
func (r *Repository) Close() error {
	return r.db.Close()
}

// Get returns the value for key, or "" when the key is absent.
func (r *Repository) Get(ctx context.Context, key string) (string, error) {
	const q = `SELECT value FROM kv WHERE key = ?`

	var value string
	err := r.db.QueryRowContext(ctx, q, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("sqlite: get %q: %w", key, err)
	}
	return value, nil
}

// Set upserts the value for key.
func (r *Repository) Set(ctx context.Context, key, value string) error {
	const q = `
		INSERT INTO kv (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, q, key, value, nowRFC3339())
	if err != nil {
		return fmt.Errorf("sqlite: set %q: %w", key, err)
	}
	return nil
}

// Delete removes key; deleting an absent key is not an error.
func (r *Repository) Delete(ctx context.Context, key string) error {
	const q = `DELETE FROM kv WHERE key = ?`

	if _, err := r.db.ExecContext(ctx, q, key); err != nil {
		return fmt.Errorf("sqlite: delete %q: %w", key, err)
	}
	return nil
}

// Save appends a receipt row. Safe to call concurrently.
func (r *Repository) Save(ctx context.Context, receipt *checkout.Receipt) error {
	body, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("sqlite: encode receipt: %w", err)
	}

	const q = `
		INSERT INTO receipts (payment_id, order_id, body, trace_id, span_id, completed_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, q,
		receipt.PaymentID,
		receipt.OrderID,
		string(body),
		receipt.TraceID,
		receipt.SpanID,
		formatRFC3339(receipt.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save receipt for order %q: %w", receipt.OrderID, err)
	}
	return nil
}

// Latest returns the most recent receipt, or (nil, nil) when none
// exists yet.
func (r *Repository) Latest(ctx context.Context) (*checkout.Receipt, error) {
	const q = `
		SELECT body
		FROM   receipts
		ORDER  BY completed_at DESC, id DESC
		LIMIT  1`

	var body string
	err := r.db.QueryRowContext(ctx, q).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: latest receipt: %w", err)
	}

	var receipt checkout.Receipt
	if err := json.Unmarshal([]byte(body), &receipt); err != nil {
		return nil, fmt.Errorf("sqlite: decode receipt: %w", err)
	}
	return &receipt, nil
}
