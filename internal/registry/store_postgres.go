package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"veridoc/internal/domain"
)

// uniqueViolation is the postgres error code raised when an insert loses a
// race against the partial unique index.
const uniqueViolation = "23505"

// PostgresStore persists registry records in PostgreSQL. See schema.sql for
// the partial index on (issuer_id, lane, natural_key) WHERE natural_key IS
// NOT NULL and the full index on content_hash.
type PostgresStore struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, clock: time.Now}
}

const recordColumns = `id, issuer_id, lane, category, natural_key, content_hash, embedded_hash, bucket, path, size_bytes, created_at, updated_at`

// Upsert records the artifact. ON CONFLICT cannot target the partial
// natural-key index, so that path is an explicit lookup-update-or-insert.
// In-process callers are expected to serialize per natural key; a
// cross-process race still cannot duplicate rows — the losing insert hits
// the partial index and is retried as an update.
func (s *PostgresStore) Upsert(ctx context.Context, rec domain.RegistryRecord) (domain.RegistryRecord, UpsertOutcome, error) {
	if rec.NaturalKey == "" {
		return s.upsertByHash(ctx, rec)
	}

	existing, err := s.FindByNaturalKey(ctx, rec.IssuerID, rec.Lane, rec.NaturalKey)
	switch {
	case err == nil:
		updated, err := s.updateInPlace(ctx, existing.ID, rec)
		if err != nil {
			return domain.RegistryRecord{}, "", fmt.Errorf("registry update: %w", err)
		}
		return updated, OutcomeUpdated, nil
	case errors.Is(err, ErrNotFound):
		inserted, err := s.insert(ctx, rec)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
				// Lost the lookup-then-insert race; the row exists now.
				existing, lookupErr := s.FindByNaturalKey(ctx, rec.IssuerID, rec.Lane, rec.NaturalKey)
				if lookupErr != nil {
					return domain.RegistryRecord{}, "", fmt.Errorf("registry lookup after conflict: %w", lookupErr)
				}
				updated, updateErr := s.updateInPlace(ctx, existing.ID, rec)
				if updateErr != nil {
					return domain.RegistryRecord{}, "", fmt.Errorf("registry update after conflict: %w", updateErr)
				}
				return updated, OutcomeUpdated, nil
			}
			return domain.RegistryRecord{}, "", fmt.Errorf("registry insert: %w", err)
		}
		return inserted, OutcomeInserted, nil
	default:
		return domain.RegistryRecord{}, "", fmt.Errorf("registry lookup: %w", err)
	}
}

// upsertByHash targets the full content_hash uniqueness rule, which the
// native ON CONFLICT primitive supports directly. Byte-identical
// regeneration collapses onto the same row.
func (s *PostgresStore) upsertByHash(ctx context.Context, rec domain.RegistryRecord) (domain.RegistryRecord, UpsertOutcome, error) {
	now := s.clock().UTC()
	query := `
		INSERT INTO document_records (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, NULL, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (content_hash) DO UPDATE SET updated_at = EXCLUDED.updated_at
		RETURNING ` + recordColumns + `, (xmax = 0) AS inserted
	`
	row := s.db.QueryRowContext(ctx, query,
		uuid.NewString(), rec.IssuerID, string(rec.Lane), rec.Category,
		string(rec.ContentHash), string(rec.EmbeddedHash),
		rec.Location.Bucket, rec.Location.Path, rec.SizeBytes, now)
	var out domain.RegistryRecord
	var inserted bool
	if err := scanRecord(row, &out, &inserted); err != nil {
		return domain.RegistryRecord{}, "", fmt.Errorf("registry insert: %w", err)
	}
	if inserted {
		return out, OutcomeInserted, nil
	}
	return out, OutcomeCollapsed, nil
}

func (s *PostgresStore) insert(ctx context.Context, rec domain.RegistryRecord) (domain.RegistryRecord, error) {
	now := s.clock().UTC()
	query := `
		INSERT INTO document_records (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		RETURNING ` + recordColumns + `, true
	`
	row := s.db.QueryRowContext(ctx, query,
		uuid.NewString(), rec.IssuerID, string(rec.Lane), rec.Category, rec.NaturalKey,
		string(rec.ContentHash), string(rec.EmbeddedHash),
		rec.Location.Bucket, rec.Location.Path, rec.SizeBytes, now)
	var out domain.RegistryRecord
	var inserted bool
	if err := scanRecord(row, &out, &inserted); err != nil {
		return domain.RegistryRecord{}, err
	}
	return out, nil
}

func (s *PostgresStore) updateInPlace(ctx context.Context, id string, rec domain.RegistryRecord) (domain.RegistryRecord, error) {
	query := `
		UPDATE document_records
		SET content_hash = $2, embedded_hash = $3, bucket = $4, path = $5, size_bytes = $6, category = $7, updated_at = $8
		WHERE id = $1
		RETURNING ` + recordColumns + `, false
	`
	row := s.db.QueryRowContext(ctx, query,
		id, string(rec.ContentHash), string(rec.EmbeddedHash),
		rec.Location.Bucket, rec.Location.Path,
		rec.SizeBytes, rec.Category, s.clock().UTC())
	var out domain.RegistryRecord
	var inserted bool
	if err := scanRecord(row, &out, &inserted); err != nil {
		return domain.RegistryRecord{}, err
	}
	return out, nil
}

func (s *PostgresStore) FindByNaturalKey(ctx context.Context, issuerID string, lane domain.Lane, naturalKey string) (domain.RegistryRecord, error) {
	query := `
		SELECT ` + recordColumns + `, false FROM document_records
		WHERE issuer_id = $1 AND lane = $2 AND natural_key = $3
	`
	row := s.db.QueryRowContext(ctx, query, issuerID, string(lane), naturalKey)
	var out domain.RegistryRecord
	var inserted bool
	if err := scanRecord(row, &out, &inserted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.RegistryRecord{}, ErrNotFound
		}
		return domain.RegistryRecord{}, fmt.Errorf("find by natural key: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) FindByContentHash(ctx context.Context, hash domain.ContentHash) (domain.RegistryRecord, error) {
	query := `
		SELECT ` + recordColumns + `, false FROM document_records
		WHERE content_hash = $1
	`
	row := s.db.QueryRowContext(ctx, query, string(hash))
	var out domain.RegistryRecord
	var inserted bool
	if err := scanRecord(row, &out, &inserted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.RegistryRecord{}, ErrNotFound
		}
		return domain.RegistryRecord{}, fmt.Errorf("find by content hash: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) FindByEmbeddedHash(ctx context.Context, hash domain.ContentHash) (domain.RegistryRecord, error) {
	query := `
		SELECT ` + recordColumns + `, false FROM document_records
		WHERE embedded_hash = $1
		ORDER BY updated_at DESC
		LIMIT 1
	`
	row := s.db.QueryRowContext(ctx, query, string(hash))
	var out domain.RegistryRecord
	var inserted bool
	if err := scanRecord(row, &out, &inserted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.RegistryRecord{}, ErrNotFound
		}
		return domain.RegistryRecord{}, fmt.Errorf("find by embedded hash: %w", err)
	}
	return out, nil
}

func scanRecord(row *sql.Row, out *domain.RegistryRecord, inserted *bool) error {
	var lane, hash, embedded string
	var naturalKey sql.NullString
	err := row.Scan(&out.ID, &out.IssuerID, &lane, &out.Category, &naturalKey,
		&hash, &embedded, &out.Location.Bucket, &out.Location.Path, &out.SizeBytes,
		&out.CreatedAt, &out.UpdatedAt, inserted)
	if err != nil {
		return err
	}
	out.Lane = domain.Lane(lane)
	out.ContentHash = domain.ContentHash(hash)
	out.EmbeddedHash = domain.ContentHash(embedded)
	out.NaturalKey = naturalKey.String
	return nil
}
