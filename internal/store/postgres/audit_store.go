package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/shadowtrade/shadowbot/internal/domain"
)

// AuditStore implements domain.AuditStore on PostgreSQL.
type AuditStore struct {
	client *Client
}

// NewAuditStore returns an AuditStore backed by the given client.
func NewAuditStore(client *Client) *AuditStore {
	return &AuditStore{client: client}
}

var _ domain.AuditStore = (*AuditStore)(nil)

// Insert persists one attempt record.
func (s *AuditStore) Insert(ctx context.Context, rec domain.ActionRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.client.pool.Exec(ctx, `
		INSERT INTO action_audit (id, participant, market, kind, status, tx_hash, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.Participant, rec.Market,
		string(rec.Kind), string(rec.Status), rec.TxHash, rec.Detail, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert audit record: %w", err)
	}
	return nil
}

// ListRecent returns the participant's most recent attempts, newest first.
func (s *AuditStore) ListRecent(ctx context.Context, participant string, limit int) ([]domain.ActionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.client.pool.Query(ctx, `
		SELECT id, participant, market, kind, status, tx_hash, detail, created_at
		FROM action_audit
		WHERE participant = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		participant, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent audit records: %w", err)
	}
	defer rows.Close()
	return scanActionRecords(rows)
}

// ListBefore returns attempts older than cutoff, oldest first, for archival.
func (s *AuditStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.ActionRecord, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.client.pool.Query(ctx, `
		SELECT id, participant, market, kind, status, tx_hash, detail, created_at
		FROM action_audit
		WHERE created_at < $1
		ORDER BY created_at ASC
		LIMIT $2`,
		cutoff, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit records before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	defer rows.Close()
	return scanActionRecords(rows)
}

// DeleteBefore removes attempts older than cutoff and reports how many rows
// were deleted. Call only after ListBefore output has been archived.
func (s *AuditStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.client.pool.Exec(ctx,
		`DELETE FROM action_audit WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete audit records before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

// rowScanner matches the subset of pgx.Rows used by scanActionRecords.
type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanActionRecords(rows rowScanner) ([]domain.ActionRecord, error) {
	var out []domain.ActionRecord
	for rows.Next() {
		var (
			rec          domain.ActionRecord
			kind, status string
		)
		if err := rows.Scan(&rec.ID, &rec.Participant, &rec.Market,
			&kind, &status, &rec.TxHash, &rec.Detail, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan audit record: %w", err)
		}
		rec.Kind = domain.ActionKind(kind)
		rec.Status = domain.ActionStatus(status)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate audit records: %w", err)
	}
	return out, nil
}
