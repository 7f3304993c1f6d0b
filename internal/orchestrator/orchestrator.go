// Package orchestrator sequences the three state-changing market actions:
// commit, reveal, and claim. Every attempt follows the same discipline: check
// the phase locally, persist anything unrecoverable before submission, then
// submit and classify the outcome into the audit trail.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shadowtrade/shadowbot/internal/commitment"
	"github.com/shadowtrade/shadowbot/internal/domain"
	"github.com/shadowtrade/shadowbot/internal/notify"
	"github.com/shadowtrade/shadowbot/internal/platform/settlement"
)

// ChannelActions is the signal bus channel attempt records are published on.
const ChannelActions = "shadowtrade:actions"

// Snapshots supplies the current market view for phase checks. Satisfied by
// the aggregator.
type Snapshots interface {
	Snapshot(ctx context.Context, address string) (domain.Snapshot, error)
}

// Notifier is the outbound alert hook. Satisfied by notify.Notifier.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Orchestrator drives the write surface for one participant.
type Orchestrator struct {
	vault       domain.SecretVault
	submitter   domain.BatchSubmitter
	snapshots   Snapshots
	cache       domain.SnapshotCache
	audit       domain.AuditStore
	bus         domain.SignalBus
	notifier    Notifier
	participant string
	stakeToken  string
	logger      *slog.Logger
	now         func() time.Time
}

// New creates an Orchestrator. notifier may be nil.
func New(
	vault domain.SecretVault,
	submitter domain.BatchSubmitter,
	snapshots Snapshots,
	cache domain.SnapshotCache,
	audit domain.AuditStore,
	bus domain.SignalBus,
	notifier Notifier,
	participant string,
	stakeToken string,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		vault:       vault,
		submitter:   submitter,
		snapshots:   snapshots,
		cache:       cache,
		audit:       audit,
		bus:         bus,
		notifier:    notifier,
		participant: participant,
		stakeToken:  stakeToken,
		logger:      logger.With("component", "orchestrator"),
		now:         time.Now,
	}
}

// Commit hides a (vote, secret) pair behind a commitment and stakes on it.
//
// The secret is generated and persisted to the vault before anything is
// submitted; a relayer failure after that point leaves the secret safely
// stored for the retry, and the retry reuses it so the commitment stays
// stable. The batch is ordered approve-then-commit.
func (o *Orchestrator) Commit(ctx context.Context, market string, vote domain.Vote, stake *big.Int) (domain.ActionRecord, error) {
	rec := o.newRecord(market, domain.ActionCommit)

	if !vote.Valid() {
		return o.fail(ctx, rec, fmt.Errorf("orchestrator: vote sentinel %d is not committable", vote))
	}
	if stake == nil || stake.Sign() <= 0 {
		return o.fail(ctx, rec, fmt.Errorf("orchestrator: stake must be positive"))
	}

	snap, err := o.snapshots.Snapshot(ctx, market)
	if err != nil {
		return o.fail(ctx, rec, fmt.Errorf("orchestrator: load snapshot: %w", err))
	}
	if snap.Position != nil && snap.Position.HasCommitted {
		return o.alreadyDone(ctx, rec, "participant already committed on this market")
	}
	phase := o.phase(snap)
	if phase != domain.PhaseCommit {
		return o.fail(ctx, rec, fmt.Errorf("orchestrator: commit in phase %s: %w", phase, domain.ErrStalePhase))
	}

	// Reuse a secret from an earlier failed attempt so the commitment does
	// not drift between retries.
	secret, err := o.vault.Get(ctx, o.participant, market)
	if errors.Is(err, domain.ErrNotFound) {
		secret, err = o.vault.Generate(ctx, o.participant, market)
	}
	if err != nil {
		return o.fail(ctx, rec, fmt.Errorf("orchestrator: obtain secret: %w", err))
	}

	// Bind the chosen vote to the stored secret before submission. Losing
	// the vote after the commitment lands would make the reveal unguessable.
	secret.Vote = vote
	if err := o.vault.Put(ctx, secret, false); err != nil {
		return o.fail(ctx, rec, fmt.Errorf("orchestrator: persist vote: %w", err))
	}

	hash, err := commitment.Compute(vote, secret.Secret)
	if err != nil {
		return o.fail(ctx, rec, fmt.Errorf("orchestrator: compute commitment: %w", err))
	}

	calls, err := settlement.CommitBatch(o.stakeToken, market, hash, stake)
	if err != nil {
		return o.fail(ctx, rec, err)
	}

	result, err := o.submitter.Submit(ctx, calls)
	rec.TxHash = result.TxHash
	if err != nil {
		return o.classify(ctx, rec, err)
	}

	if err := o.vault.MarkCommitted(ctx, o.participant, market, vote); err != nil {
		// The commitment is on-chain either way; a guard-flag failure is
		// logged, not surfaced as an action failure.
		o.logger.Error("mark committed failed", "market", market, "error", err)
	}
	return o.succeed(ctx, rec)
}

// Reveal opens the participant's commitment with the stored (vote, secret)
// pair.
func (o *Orchestrator) Reveal(ctx context.Context, market string) (domain.ActionRecord, error) {
	rec := o.newRecord(market, domain.ActionReveal)

	snap, err := o.snapshots.Snapshot(ctx, market)
	if err != nil {
		return o.fail(ctx, rec, fmt.Errorf("orchestrator: load snapshot: %w", err))
	}
	if snap.Position != nil && snap.Position.HasRevealed {
		return o.alreadyDone(ctx, rec, "participant already revealed on this market")
	}
	phase := o.phase(snap)
	if phase != domain.PhaseReveal {
		return o.fail(ctx, rec, fmt.Errorf("orchestrator: reveal in phase %s: %w", phase, domain.ErrStalePhase))
	}
	// A vault record alone is not proof of a commitment: a failed commit
	// attempt persists the secret before submission. The ledger flag is
	// authoritative.
	if snap.Position != nil && !snap.Position.HasCommitted {
		return o.fail(ctx, rec, fmt.Errorf("orchestrator: reveal without commitment: %w", domain.ErrStalePhase))
	}

	secret, err := o.vault.Get(ctx, o.participant, market)
	if errors.Is(err, domain.ErrNotFound) {
		// Committed from another client, or the vault was lost. Nothing this
		// client can do; the stake is only recoverable where the secret lives.
		return o.fail(ctx, rec, fmt.Errorf("orchestrator: reveal %s: %w", market, domain.ErrSecretMissing))
	}
	if err != nil {
		return o.fail(ctx, rec, fmt.Errorf("orchestrator: load secret: %w", err))
	}
	if !secret.Vote.Valid() {
		return o.fail(ctx, rec, fmt.Errorf("orchestrator: stored record has no vote: %w", domain.ErrSecretMissing))
	}

	secretHex, err := commitment.SecretHex(secret.Secret)
	if err != nil {
		return o.fail(ctx, rec, fmt.Errorf("orchestrator: encode secret: %w", err))
	}
	calls, err := settlement.RevealCall(market, secret.Vote, secretHex)
	if err != nil {
		return o.fail(ctx, rec, err)
	}

	result, err := o.submitter.Submit(ctx, calls)
	rec.TxHash = result.TxHash
	if err != nil {
		return o.classify(ctx, rec, err)
	}
	return o.succeed(ctx, rec)
}

// Claim collects winnings from a resolved market.
func (o *Orchestrator) Claim(ctx context.Context, market string) (domain.ActionRecord, error) {
	rec := o.newRecord(market, domain.ActionClaim)

	snap, err := o.snapshots.Snapshot(ctx, market)
	if err != nil {
		return o.fail(ctx, rec, fmt.Errorf("orchestrator: load snapshot: %w", err))
	}
	if snap.Position != nil && snap.Position.HasClaimed {
		return o.alreadyDone(ctx, rec, "participant already claimed on this market")
	}
	if !snap.Market.Resolved {
		return o.fail(ctx, rec, fmt.Errorf("orchestrator: claim before resolution: %w", domain.ErrStalePhase))
	}
	if snap.Position != nil && !snap.Position.HasRevealed {
		return o.fail(ctx, rec, fmt.Errorf("orchestrator: claim without reveal: %w", domain.ErrStalePhase))
	}

	result, err := o.submitter.Submit(ctx, settlement.ClaimCall(market))
	rec.TxHash = result.TxHash
	if err != nil {
		return o.classify(ctx, rec, err)
	}
	return o.succeed(ctx, rec)
}

// History returns the participant's recent attempts.
func (o *Orchestrator) History(ctx context.Context, limit int) ([]domain.ActionRecord, error) {
	return o.audit.ListRecent(ctx, o.participant, limit)
}

// --------------------------------------------------------------------------
// Outcome plumbing
// --------------------------------------------------------------------------

func (o *Orchestrator) newRecord(market string, kind domain.ActionKind) domain.ActionRecord {
	return domain.ActionRecord{
		ID:          uuid.NewString(),
		Participant: o.participant,
		Market:      market,
		Kind:        kind,
		CreatedAt:   o.now().UTC(),
	}
}

func (o *Orchestrator) phase(snap domain.Snapshot) domain.Phase {
	return domain.ResolvePhase(o.now().Unix(), snap.Market.CommitDeadline, snap.Market.RevealDeadline, snap.Market.Resolved)
}

// classify maps a submission error onto a terminal attempt status. A partial
// batch is its own status so operators can see a stranded approval; benign
// engine rejections complete the attempt as already done.
func (o *Orchestrator) classify(ctx context.Context, rec domain.ActionRecord, err error) (domain.ActionRecord, error) {
	switch {
	case errors.Is(err, domain.ErrPartialBatchFailure):
		rec.Status = domain.ActionStatusPartial
	case errors.Is(err, domain.ErrRemoteRejected) && isAlreadyDone(err):
		// Raced a submission from another client; the action is complete,
		// just not by us.
		return o.alreadyDone(ctx, rec, err.Error())
	default:
		rec.Status = domain.ActionStatusFailed
	}
	rec.Detail = err.Error()
	o.finish(ctx, rec)
	return rec, err
}

// isAlreadyDone reports whether an engine rejection carries a double-action
// revert (already committed / revealed / claimed).
func isAlreadyDone(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "already")
}

func (o *Orchestrator) fail(ctx context.Context, rec domain.ActionRecord, err error) (domain.ActionRecord, error) {
	rec.Status = domain.ActionStatusFailed
	rec.Detail = err.Error()
	o.finish(ctx, rec)
	return rec, err
}

func (o *Orchestrator) alreadyDone(ctx context.Context, rec domain.ActionRecord, detail string) (domain.ActionRecord, error) {
	rec.Status = domain.ActionStatusAlreadyDone
	rec.Detail = detail
	o.finish(ctx, rec)
	return rec, nil
}

func (o *Orchestrator) succeed(ctx context.Context, rec domain.ActionRecord) (domain.ActionRecord, error) {
	rec.Status = domain.ActionStatusSubmitted
	// The cached snapshot now lies about the position; drop it so the next
	// read refetches.
	if err := o.cache.Invalidate(ctx, rec.Market); err != nil {
		o.logger.Warn("cache invalidate failed", "market", rec.Market, "error", err)
	}
	o.finish(ctx, rec)
	return rec, nil
}

// finish records the attempt in the audit trail and fans it out to the bus
// and the notifier. Best effort: a full audit table must not block the action
// result.
func (o *Orchestrator) finish(ctx context.Context, rec domain.ActionRecord) {
	if err := o.audit.Insert(ctx, rec); err != nil {
		o.logger.Error("audit insert failed", "action", rec.ID, "error", err)
	}

	if payload, err := json.Marshal(rec); err == nil {
		if err := o.bus.Publish(ctx, ChannelActions, payload); err != nil {
			o.logger.Warn("publish action event failed", "action", rec.ID, "error", err)
		}
	}

	if o.notifier != nil {
		title, message := notify.ActionMessage(rec)
		if err := o.notifier.Notify(ctx, notify.ActionEvent(rec), title, message); err != nil {
			o.logger.Warn("notify failed", "action", rec.ID, "error", err)
		}
	}

	o.logger.Info("action finished",
		"action", rec.ID,
		"kind", rec.Kind,
		"market", rec.Market,
		"status", rec.Status,
		"tx", rec.TxHash,
	)
}
