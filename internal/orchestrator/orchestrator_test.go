package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/shadowtrade/shadowbot/internal/commitment"
	"github.com/shadowtrade/shadowbot/internal/domain"
)

// --------------------------------------------------------------------------
// Fakes
// --------------------------------------------------------------------------

type fakeVault struct {
	records   map[string]domain.SecretRecord
	generated int
}

func newFakeVault() *fakeVault {
	return &fakeVault{records: map[string]domain.SecretRecord{}}
}

func vaultKey(participant, market string) string {
	return participant + "/" + market
}

func (v *fakeVault) Generate(_ context.Context, participant, market string) (domain.SecretRecord, error) {
	key := vaultKey(participant, market)
	if _, ok := v.records[key]; ok {
		return domain.SecretRecord{}, domain.ErrAlreadyExists
	}
	secret, err := commitment.NewSecret()
	if err != nil {
		return domain.SecretRecord{}, err
	}
	rec := domain.SecretRecord{Participant: participant, Market: market, Secret: secret}
	v.records[key] = rec
	v.generated++
	return rec, nil
}

func (v *fakeVault) Get(_ context.Context, participant, market string) (domain.SecretRecord, error) {
	rec, ok := v.records[vaultKey(participant, market)]
	if !ok {
		return domain.SecretRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

func (v *fakeVault) Put(_ context.Context, rec domain.SecretRecord, force bool) error {
	key := vaultKey(rec.Participant, rec.Market)
	if existing, ok := v.records[key]; ok && existing.Committed && !force {
		return domain.ErrSecretOverwriteHazard
	}
	v.records[key] = rec
	return nil
}

func (v *fakeVault) MarkCommitted(_ context.Context, participant, market string, vote domain.Vote) error {
	key := vaultKey(participant, market)
	rec, ok := v.records[key]
	if !ok {
		return domain.ErrNotFound
	}
	rec.Committed = true
	rec.Vote = vote
	v.records[key] = rec
	return nil
}

type fakeSubmitter struct {
	batches [][]domain.Call
	errs    []error // popped per call; nil means success
}

func (s *fakeSubmitter) Submit(_ context.Context, calls []domain.Call) (domain.BatchResult, error) {
	s.batches = append(s.batches, calls)
	var err error
	if len(s.errs) > 0 {
		err = s.errs[0]
		s.errs = s.errs[1:]
	}
	if err != nil {
		return domain.BatchResult{}, err
	}
	return domain.BatchResult{TxHash: fmt.Sprintf("0xtx%d", len(s.batches))}, nil
}

type fakeSnapshots struct {
	snap domain.Snapshot
	err  error
}

func (s *fakeSnapshots) Snapshot(context.Context, string) (domain.Snapshot, error) {
	return s.snap, s.err
}

type fakeCache struct {
	invalidated []string
}

func (c *fakeCache) SetSnapshot(context.Context, string, domain.Snapshot) error { return nil }
func (c *fakeCache) GetSnapshot(context.Context, string) (domain.Snapshot, error) {
	return domain.Snapshot{}, domain.ErrNotFound
}
func (c *fakeCache) Invalidate(_ context.Context, market string) error {
	c.invalidated = append(c.invalidated, market)
	return nil
}

type fakeAudit struct {
	records []domain.ActionRecord
}

func (a *fakeAudit) Insert(_ context.Context, rec domain.ActionRecord) error {
	a.records = append(a.records, rec)
	return nil
}
func (a *fakeAudit) ListRecent(context.Context, string, int) ([]domain.ActionRecord, error) {
	return a.records, nil
}
func (a *fakeAudit) ListBefore(context.Context, time.Time, int) ([]domain.ActionRecord, error) {
	return nil, nil
}
func (a *fakeAudit) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }

type fakeBus struct {
	published [][]byte
}

func (b *fakeBus) Publish(_ context.Context, _ string, payload []byte) error {
	b.published = append(b.published, payload)
	return nil
}
func (b *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) { return nil, nil }

// --------------------------------------------------------------------------
// Harness
// --------------------------------------------------------------------------

type harness struct {
	orch      *Orchestrator
	vault     *fakeVault
	submitter *fakeSubmitter
	snapshots *fakeSnapshots
	cache     *fakeCache
	audit     *fakeAudit
	bus       *fakeBus
}

func newHarness(snap domain.Snapshot) *harness {
	h := &harness{
		vault:     newFakeVault(),
		submitter: &fakeSubmitter{},
		snapshots: &fakeSnapshots{snap: snap},
		cache:     &fakeCache{},
		audit:     &fakeAudit{},
		bus:       &fakeBus{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.orch = New(h.vault, h.submitter, h.snapshots, h.cache, h.audit, h.bus, nil,
		"0xme", "0xtoken", logger)
	h.orch.now = func() time.Time { return time.Unix(1500, 0) }
	return h
}

func commitWindowSnap() domain.Snapshot {
	return domain.Snapshot{
		Market: domain.Market{Address: "0xmarket", CommitDeadline: 2000, RevealDeadline: 3000},
		Position: &domain.UserPosition{},
	}
}

func revealWindowSnap(vote domain.Vote) domain.Snapshot {
	return domain.Snapshot{
		Market:   domain.Market{Address: "0xmarket", CommitDeadline: 1000, RevealDeadline: 2000},
		Position: &domain.UserPosition{HasCommitted: true, Vote: vote},
	}
}

var stake = big.NewInt(500_000_000_000_000)

// --------------------------------------------------------------------------
// Commit
// --------------------------------------------------------------------------

func TestCommitSubmitsOrderedBatch(t *testing.T) {
	h := newHarness(commitWindowSnap())

	rec, err := h.orch.Commit(context.Background(), "0xmarket", domain.VoteYes, stake)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if rec.Status != domain.ActionStatusSubmitted {
		t.Fatalf("status = %s, want submitted", rec.Status)
	}
	if len(h.submitter.batches) != 1 {
		t.Fatalf("got %d batches, want 1", len(h.submitter.batches))
	}
	batch := h.submitter.batches[0]
	if len(batch) != 2 || batch[0].Entrypoint != "approve" || batch[1].Entrypoint != "commit" {
		t.Fatalf("batch = %+v, want [approve, commit]", batch)
	}

	// Secret persisted and guard raised.
	stored, err := h.vault.Get(context.Background(), "0xme", "0xmarket")
	if err != nil {
		t.Fatalf("vault get: %v", err)
	}
	if !stored.Committed || stored.Vote != domain.VoteYes {
		t.Fatalf("stored record = %+v, want committed yes", stored)
	}

	if len(h.cache.invalidated) != 1 || h.cache.invalidated[0] != "0xmarket" {
		t.Fatalf("invalidated = %v, want [0xmarket]", h.cache.invalidated)
	}
	if len(h.audit.records) != 1 {
		t.Fatalf("got %d audit records, want 1", len(h.audit.records))
	}
}

func TestCommitSecretStableAcrossRetries(t *testing.T) {
	h := newHarness(commitWindowSnap())
	h.submitter.errs = []error{errors.New("relayer down")}

	_, err := h.orch.Commit(context.Background(), "0xmarket", domain.VoteYes, stake)
	if err == nil {
		t.Fatal("first attempt unexpectedly succeeded")
	}
	first, err := h.vault.Get(context.Background(), "0xme", "0xmarket")
	if err != nil {
		t.Fatalf("secret not persisted before submission: %v", err)
	}
	if first.Committed {
		t.Fatal("guard raised despite failed submission")
	}

	// Retry succeeds and must reuse the same secret.
	rec, err := h.orch.Commit(context.Background(), "0xmarket", domain.VoteYes, stake)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if rec.Status != domain.ActionStatusSubmitted {
		t.Fatalf("retry status = %s", rec.Status)
	}
	second, _ := h.vault.Get(context.Background(), "0xme", "0xmarket")
	if second.Secret != first.Secret {
		t.Fatal("retry generated a different secret; the commitment drifted")
	}
	if h.vault.generated != 1 {
		t.Fatalf("generated %d secrets, want 1", h.vault.generated)
	}

	// Both commitments across the attempts are identical.
	c1 := h.submitter.batches[0][1].Calldata[0]
	c2 := h.submitter.batches[1][1].Calldata[0]
	if c1 != c2 {
		t.Fatalf("commitment changed between attempts: %s vs %s", c1, c2)
	}
}

func TestCommitRejectedOutsideWindow(t *testing.T) {
	snap := commitWindowSnap()
	snap.Market.CommitDeadline = 1000 // window closed at now=1500
	snap.Market.RevealDeadline = 2000
	h := newHarness(snap)

	_, err := h.orch.Commit(context.Background(), "0xmarket", domain.VoteYes, stake)
	if !errors.Is(err, domain.ErrStalePhase) {
		t.Fatalf("error = %v, want ErrStalePhase", err)
	}
	if len(h.submitter.batches) != 0 {
		t.Fatal("batch submitted despite closed window")
	}
}

func TestCommitInvalidVote(t *testing.T) {
	h := newHarness(commitWindowSnap())
	if _, err := h.orch.Commit(context.Background(), "0xmarket", domain.VoteNone, stake); err == nil {
		t.Fatal("Commit accepted the none sentinel")
	}
}

func TestCommitAlreadyCommittedIsBenign(t *testing.T) {
	snap := commitWindowSnap()
	snap.Position.HasCommitted = true
	h := newHarness(snap)

	rec, err := h.orch.Commit(context.Background(), "0xmarket", domain.VoteYes, stake)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if rec.Status != domain.ActionStatusAlreadyDone {
		t.Fatalf("status = %s, want already_done", rec.Status)
	}
	if len(h.submitter.batches) != 0 {
		t.Fatal("batch submitted for an already-committed market")
	}
}

func TestCommitPartialBatchClassified(t *testing.T) {
	h := newHarness(commitWindowSnap())
	h.submitter.errs = []error{fmt.Errorf("approve landed, commit reverted: %w", domain.ErrPartialBatchFailure)}

	rec, err := h.orch.Commit(context.Background(), "0xmarket", domain.VoteYes, stake)
	if !errors.Is(err, domain.ErrPartialBatchFailure) {
		t.Fatalf("error = %v, want ErrPartialBatchFailure", err)
	}
	if rec.Status != domain.ActionStatusPartial {
		t.Fatalf("status = %s, want partial", rec.Status)
	}
}

func TestCommitRemoteAlreadyRejectionIsBenign(t *testing.T) {
	h := newHarness(commitWindowSnap())
	h.submitter.errs = []error{fmt.Errorf("engine revert: Already committed: %w", domain.ErrRemoteRejected)}

	rec, err := h.orch.Commit(context.Background(), "0xmarket", domain.VoteYes, stake)
	if err != nil {
		t.Fatalf("benign rejection surfaced as error: %v", err)
	}
	if rec.Status != domain.ActionStatusAlreadyDone {
		t.Fatalf("status = %s, want already_done", rec.Status)
	}
}

// --------------------------------------------------------------------------
// Reveal
// --------------------------------------------------------------------------

func TestRevealUsesStoredPair(t *testing.T) {
	h := newHarness(revealWindowSnap(domain.VoteNone))
	h.vault.records[vaultKey("0xme", "0xmarket")] = domain.SecretRecord{
		Participant: "0xme", Market: "0xmarket",
		Secret: "0xdeadbeef", Vote: domain.VoteNo, Committed: true,
	}

	rec, err := h.orch.Reveal(context.Background(), "0xmarket")
	if err != nil {
		t.Fatalf("Reveal: %v", err)
	}
	if rec.Status != domain.ActionStatusSubmitted {
		t.Fatalf("status = %s", rec.Status)
	}
	call := h.submitter.batches[0][0]
	if call.Entrypoint != "reveal" {
		t.Fatalf("entrypoint = %s", call.Entrypoint)
	}
	if call.Calldata[0] != "0x2" {
		t.Fatalf("vote calldata = %s, want 0x2 (no)", call.Calldata[0])
	}
	if call.Calldata[1] != "0xdeadbeef" {
		t.Fatalf("secret calldata = %s", call.Calldata[1])
	}
}

func TestRevealWithoutSecret(t *testing.T) {
	h := newHarness(revealWindowSnap(domain.VoteNone))

	_, err := h.orch.Reveal(context.Background(), "0xmarket")
	if !errors.Is(err, domain.ErrSecretMissing) {
		t.Fatalf("error = %v, want ErrSecretMissing", err)
	}
	if len(h.submitter.batches) != 0 {
		t.Fatal("batch submitted without a secret")
	}
}

func TestRevealOutsideWindow(t *testing.T) {
	h := newHarness(commitWindowSnap()) // still in commit phase at now=1500

	_, err := h.orch.Reveal(context.Background(), "0xmarket")
	if !errors.Is(err, domain.ErrStalePhase) {
		t.Fatalf("error = %v, want ErrStalePhase", err)
	}
}

func TestRevealWithoutCommitmentFailsLocally(t *testing.T) {
	snap := revealWindowSnap(domain.VoteNone)
	snap.Position.HasCommitted = false
	h := newHarness(snap)
	// A failed commit attempt leaves the secret behind; the ledger still
	// shows no commitment, so reveal must not go out.
	h.vault.records[vaultKey("0xme", "0xmarket")] = domain.SecretRecord{
		Participant: "0xme", Market: "0xmarket",
		Secret: "0xdeadbeef", Vote: domain.VoteYes,
	}

	_, err := h.orch.Reveal(context.Background(), "0xmarket")
	if !errors.Is(err, domain.ErrStalePhase) {
		t.Fatalf("error = %v, want ErrStalePhase", err)
	}
	if len(h.submitter.batches) != 0 {
		t.Fatal("reveal submitted without an on-chain commitment")
	}
}

func TestRevealAlreadyRevealedIsBenign(t *testing.T) {
	snap := revealWindowSnap(domain.VoteYes)
	snap.Position.HasRevealed = true
	h := newHarness(snap)

	rec, err := h.orch.Reveal(context.Background(), "0xmarket")
	if err != nil {
		t.Fatalf("Reveal: %v", err)
	}
	if rec.Status != domain.ActionStatusAlreadyDone {
		t.Fatalf("status = %s, want already_done", rec.Status)
	}
}

// --------------------------------------------------------------------------
// Claim
// --------------------------------------------------------------------------

func TestClaimRequiresResolution(t *testing.T) {
	h := newHarness(domain.Snapshot{
		Market:   domain.Market{Address: "0xmarket", CommitDeadline: 100, RevealDeadline: 200},
		Position: &domain.UserPosition{HasCommitted: true, HasRevealed: true},
	})

	_, err := h.orch.Claim(context.Background(), "0xmarket")
	if !errors.Is(err, domain.ErrStalePhase) {
		t.Fatalf("error = %v, want ErrStalePhase", err)
	}
}

func TestClaimWithoutRevealFailsLocally(t *testing.T) {
	h := newHarness(domain.Snapshot{
		Market:   domain.Market{Address: "0xmarket", CommitDeadline: 100, RevealDeadline: 200, Resolved: true},
		Position: &domain.UserPosition{HasCommitted: true, HasRevealed: false},
	})

	_, err := h.orch.Claim(context.Background(), "0xmarket")
	if !errors.Is(err, domain.ErrStalePhase) {
		t.Fatalf("error = %v, want ErrStalePhase", err)
	}
	if len(h.submitter.batches) != 0 {
		t.Fatal("claim submitted for an unrevealed position")
	}
}

func TestClaimOnResolvedMarket(t *testing.T) {
	h := newHarness(domain.Snapshot{
		Market:   domain.Market{Address: "0xmarket", CommitDeadline: 100, RevealDeadline: 200, Resolved: true},
		Position: &domain.UserPosition{HasCommitted: true, HasRevealed: true},
	})

	rec, err := h.orch.Claim(context.Background(), "0xmarket")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if rec.Status != domain.ActionStatusSubmitted {
		t.Fatalf("status = %s", rec.Status)
	}
	if h.submitter.batches[0][0].Entrypoint != "claim" {
		t.Fatalf("entrypoint = %s", h.submitter.batches[0][0].Entrypoint)
	}
}

func TestEveryAttemptGetsUniqueID(t *testing.T) {
	h := newHarness(commitWindowSnap())
	h.submitter.errs = []error{errors.New("down"), errors.New("down")}

	r1, _ := h.orch.Commit(context.Background(), "0xmarket", domain.VoteYes, stake)
	r2, _ := h.orch.Commit(context.Background(), "0xmarket", domain.VoteYes, stake)
	if r1.ID == r2.ID || r1.ID == "" {
		t.Fatalf("attempt IDs not unique: %q vs %q", r1.ID, r2.ID)
	}
	if len(h.audit.records) != 2 {
		t.Fatalf("got %d audit records, want one per attempt", len(h.audit.records))
	}
}
