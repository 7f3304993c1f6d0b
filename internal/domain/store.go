package domain

import (
	"context"
	"time"
)

// SecretRecord is one vault entry: the secret salt and vote choice for a
// single (participant, market) pair. The record is the only place the vote
// and salt exist until reveal succeeds.
type SecretRecord struct {
	Participant string
	Market      string
	Secret      string
	Vote        Vote
	Committed   bool // a commitment using this secret has been submitted on-chain
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SecretVault is the durable per-market secret store. Keys are strictly
// (participant, market); a single shared slot across markets collides as soon
// as the catalogue holds more than one market.
type SecretVault interface {
	// Generate creates and stores a fresh random secret for the pair. It
	// returns ErrAlreadyExists when a record is already present.
	Generate(ctx context.Context, participant, market string) (SecretRecord, error)
	// Get returns the stored record, or ErrNotFound when the participant has
	// never committed on this market from this client.
	Get(ctx context.Context, participant, market string) (SecretRecord, error)
	// Put stores rec, overwriting any existing record. Overwriting a record
	// whose Committed flag is set returns ErrSecretOverwriteHazard unless
	// force is true.
	Put(ctx context.Context, rec SecretRecord, force bool) error
	// MarkCommitted flips the overwrite guard after the commitment has been
	// submitted on-chain and records the committed vote.
	MarkCommitted(ctx context.Context, participant, market string, vote Vote) error
}

// ActionKind identifies one of the three state-changing operations.
type ActionKind string

const (
	ActionCommit ActionKind = "commit"
	ActionReveal ActionKind = "reveal"
	ActionClaim  ActionKind = "claim"
)

// ActionStatus is the terminal state of one orchestrated attempt.
type ActionStatus string

const (
	ActionStatusSubmitted   ActionStatus = "submitted"
	ActionStatusFailed      ActionStatus = "failed"
	ActionStatusPartial     ActionStatus = "partial"      // approval landed, second call did not
	ActionStatusAlreadyDone ActionStatus = "already_done" // benign remote rejection
)

// ActionRecord is the audit trail entry for one attempt. One row per attempt,
// retries included.
type ActionRecord struct {
	ID          string // uuid
	Participant string
	Market      string
	Kind        ActionKind
	Status      ActionStatus
	TxHash      string
	Detail      string
	CreatedAt   time.Time
}

// AuditStore persists orchestrator attempt records.
type AuditStore interface {
	Insert(ctx context.Context, rec ActionRecord) error
	ListRecent(ctx context.Context, participant string, limit int) ([]ActionRecord, error)
	// ListBefore and DeleteBefore support cold-storage archival.
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]ActionRecord, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
