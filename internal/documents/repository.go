package documents

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-docs/internal/documents/record"
	"github.com/odyssey-erp/odyssey-docs/internal/platform/db"
)

// Schema creates the snapshot tables.
//
//go:embed schema.sql
var Schema string

// Repository stores record snapshots keyed by variant and document number.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository wrapper.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSchema applies Schema. It is idempotent.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if r == nil || r.pool == nil {
		return fmt.Errorf("documents: repository not initialised")
	}
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("documents: apply schema: %w", err)
	}
	return nil
}

// Load returns the stored record for a document number.
func (r *Repository) Load(ctx context.Context, v record.Variant, number string) (*record.Record, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("documents: repository not initialised")
	}
	const query = `SELECT payload FROM document_snapshots WHERE variant = $1 AND doc_number = $2`
	var payload []byte
	if err := r.pool.QueryRow(ctx, query, string(v), strings.TrimSpace(number)).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s %s", ErrRecordNotFound, v, number)
		}
		return nil, err
	}
	return decodeSnapshot(payload)
}

// Save upserts the snapshot for rec and appends it to the snapshot history
// in the same transaction.
func (r *Repository) Save(ctx context.Context, v record.Variant, rec *record.Record) error {
	if r == nil || r.pool == nil {
		return fmt.Errorf("documents: repository not initialised")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("documents: encode snapshot: %w", err)
	}
	const upsert = `INSERT INTO document_snapshots (variant, doc_number, payload, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (variant, doc_number) DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()`
	const history = `INSERT INTO document_snapshot_history (variant, doc_number, payload) VALUES ($1, $2, $3)`
	number := strings.TrimSpace(rec.Number)
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsert, string(v), number, payload); err != nil {
			return fmt.Errorf("documents: upsert snapshot: %w", err)
		}
		if _, err := tx.Exec(ctx, history, string(v), number, payload); err != nil {
			return fmt.Errorf("documents: record history: %w", err)
		}
		return nil
	})
}

func decodeSnapshot(payload []byte) (*record.Record, error) {
	var rec record.Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("%w: decode snapshot: %v", record.ErrInvalidRecord, err)
	}
	return &rec, nil
}
