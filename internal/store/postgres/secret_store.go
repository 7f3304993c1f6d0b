package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/shadowtrade/shadowbot/internal/commitment"
	"github.com/shadowtrade/shadowbot/internal/domain"
	"github.com/shadowtrade/shadowbot/internal/vault"
)

// SecretStore implements domain.SecretVault on PostgreSQL. Secrets are sealed
// with the vault box before they touch the database; plaintext never leaves
// process memory.
type SecretStore struct {
	client *Client
	box    *vault.Box
}

// NewSecretStore returns a SecretStore backed by the given client and sealing
// secrets with box.
func NewSecretStore(client *Client, box *vault.Box) *SecretStore {
	return &SecretStore{client: client, box: box}
}

var _ domain.SecretVault = (*SecretStore)(nil)

// Generate creates and stores a fresh random secret for (participant, market).
// It returns domain.ErrAlreadyExists if a secret is already stored for the
// pair; the existing secret is never replaced by Generate.
func (s *SecretStore) Generate(ctx context.Context, participant, market string) (domain.SecretRecord, error) {
	secret, err := commitment.NewSecret()
	if err != nil {
		return domain.SecretRecord{}, fmt.Errorf("postgres: generate secret: %w", err)
	}

	sealed, err := s.box.Seal([]byte(secret))
	if err != nil {
		return domain.SecretRecord{}, fmt.Errorf("postgres: seal secret: %w", err)
	}

	now := time.Now().UTC()
	tag, err := s.client.pool.Exec(ctx, `
		INSERT INTO vault_secrets (participant, market, secret_blob, vote, committed, created_at, updated_at)
		VALUES ($1, $2, $3, 0, FALSE, $4, $4)
		ON CONFLICT (participant, market) DO NOTHING`,
		participant, market, sealed, now,
	)
	if err != nil {
		return domain.SecretRecord{}, fmt.Errorf("postgres: insert secret: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.SecretRecord{}, fmt.Errorf("postgres: secret for %s/%s: %w", participant, market, domain.ErrAlreadyExists)
	}

	return domain.SecretRecord{
		Participant: participant,
		Market:      market,
		Secret:      secret,
		Vote:        domain.VoteNone,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Get fetches and unseals the secret for (participant, market). It returns
// domain.ErrNotFound when no secret is stored.
func (s *SecretStore) Get(ctx context.Context, participant, market string) (domain.SecretRecord, error) {
	var (
		blob []byte
		rec  = domain.SecretRecord{Participant: participant, Market: market}
		vote int16
	)
	err := s.client.pool.QueryRow(ctx, `
		SELECT secret_blob, vote, committed, created_at, updated_at
		FROM vault_secrets
		WHERE participant = $1 AND market = $2`,
		participant, market,
	).Scan(&blob, &vote, &rec.Committed, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SecretRecord{}, fmt.Errorf("postgres: secret for %s/%s: %w", participant, market, domain.ErrNotFound)
	}
	if err != nil {
		return domain.SecretRecord{}, fmt.Errorf("postgres: query secret: %w", err)
	}

	plain, err := s.box.Open(blob)
	if err != nil {
		return domain.SecretRecord{}, fmt.Errorf("postgres: unseal secret for %s/%s: %w", participant, market, err)
	}
	rec.Secret = string(plain)
	rec.Vote = domain.Vote(vote)
	return rec, nil
}

// Put stores rec, replacing any existing secret for the pair. Replacing a
// secret whose commitment was already submitted on-chain would strand the
// stake, so that case returns domain.ErrSecretOverwriteHazard unless force is
// set.
func (s *SecretStore) Put(ctx context.Context, rec domain.SecretRecord, force bool) error {
	if !force {
		var committed bool
		err := s.client.pool.QueryRow(ctx, `
			SELECT committed FROM vault_secrets
			WHERE participant = $1 AND market = $2`,
			rec.Participant, rec.Market,
		).Scan(&committed)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("postgres: check existing secret: %w", err)
		}
		if err == nil && committed {
			return fmt.Errorf("postgres: secret for %s/%s already backs a live commitment: %w",
				rec.Participant, rec.Market, domain.ErrSecretOverwriteHazard)
		}
	}

	sealed, err := s.box.Seal([]byte(rec.Secret))
	if err != nil {
		return fmt.Errorf("postgres: seal secret: %w", err)
	}

	_, err = s.client.pool.Exec(ctx, `
		INSERT INTO vault_secrets (participant, market, secret_blob, vote, committed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (participant, market) DO UPDATE SET
			secret_blob = EXCLUDED.secret_blob,
			vote        = EXCLUDED.vote,
			committed   = EXCLUDED.committed,
			updated_at  = NOW()`,
		rec.Participant, rec.Market, sealed, int16(rec.Vote), rec.Committed,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert secret: %w", err)
	}
	return nil
}

// MarkCommitted records that the commitment built from this secret was
// accepted on-chain, locking the row against accidental overwrite.
func (s *SecretStore) MarkCommitted(ctx context.Context, participant, market string, vote domain.Vote) error {
	tag, err := s.client.pool.Exec(ctx, `
		UPDATE vault_secrets
		SET committed = TRUE, vote = $3, updated_at = NOW()
		WHERE participant = $1 AND market = $2`,
		participant, market, int16(vote),
	)
	if err != nil {
		return fmt.Errorf("postgres: mark committed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: secret for %s/%s: %w", participant, market, domain.ErrNotFound)
	}
	return nil
}
