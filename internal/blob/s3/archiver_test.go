package s3blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/shadowtrade/shadowbot/internal/domain"
)

type memBlob struct {
	objects map[string][]byte
	puts    int
}

func newMemBlob() *memBlob {
	return &memBlob{objects: make(map[string][]byte)}
}

func (m *memBlob) Put(_ context.Context, path string, data io.Reader, _ string) error {
	buf, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.objects[path] = buf
	m.puts++
	return nil
}

func (m *memBlob) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return m.Put(ctx, path, data, contentTypeJSONL)
}

func (m *memBlob) Get(_ context.Context, path string) (io.ReadCloser, error) {
	buf, ok := m.objects[path]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", path, domain.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(buf)), nil
}

type memAudit struct {
	rows         []domain.ActionRecord
	deleteCutoff time.Time
}

func (m *memAudit) Insert(context.Context, domain.ActionRecord) error { return nil }

func (m *memAudit) ListRecent(context.Context, string, int) ([]domain.ActionRecord, error) {
	return nil, nil
}

func (m *memAudit) ListBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.ActionRecord, error) {
	var out []domain.ActionRecord
	for _, r := range m.rows {
		if r.CreatedAt.Before(cutoff) {
			out = append(out, r)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memAudit) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.deleteCutoff = cutoff
	var kept []domain.ActionRecord
	var deleted int64
	for _, r := range m.rows {
		if r.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	m.rows = kept
	return deleted, nil
}

type memSnapshots struct {
	snaps map[string]domain.Snapshot
	calls int
}

func (m *memSnapshots) Snapshot(_ context.Context, address string) (domain.Snapshot, error) {
	m.calls++
	snap, ok := m.snaps[address]
	if !ok {
		return domain.Snapshot{}, domain.ErrNotFound
	}
	return snap, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func auditRow(id string, at time.Time) domain.ActionRecord {
	return domain.ActionRecord{
		ID:          id,
		Participant: "0xabc",
		Market:      "0xm1",
		Kind:        domain.ActionCommit,
		Status:      domain.ActionStatusSubmitted,
		CreatedAt:   at,
	}
}

func newTestArchiver(blob *memBlob, audit *memAudit, snaps *memSnapshots, addrs []string, now time.Time) *Archiver {
	a := NewArchiver(blob, blob, audit, snaps, addrs, 30*24*time.Hour, time.Hour, testLogger())
	a.now = func() time.Time { return now }
	return a
}

func TestArchiveActionsUploadsAndDeletes(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	old1 := now.Add(-40 * 24 * time.Hour) // 2026-02
	old2 := now.Add(-60 * 24 * time.Hour) // 2026-01
	fresh := now.Add(-time.Hour)

	blob := newMemBlob()
	audit := &memAudit{rows: []domain.ActionRecord{
		auditRow("a", old2),
		auditRow("b", old1),
		auditRow("c", fresh),
	}}

	arch := newTestArchiver(blob, audit, &memSnapshots{}, nil, now)

	n, err := arch.ArchiveActions(context.Background())
	if err != nil {
		t.Fatalf("ArchiveActions: %v", err)
	}
	if n != 2 {
		t.Fatalf("archived %d rows, want 2", n)
	}

	jan := blob.objects["archive/actions/2026-01.jsonl"]
	feb := blob.objects["archive/actions/2026-02.jsonl"]
	if !strings.Contains(string(jan), `"a"`) {
		t.Errorf("january archive missing row a: %q", jan)
	}
	if !strings.Contains(string(feb), `"b"`) {
		t.Errorf("february archive missing row b: %q", feb)
	}

	if len(audit.rows) != 1 || audit.rows[0].ID != "c" {
		t.Errorf("fresh row should survive, got %+v", audit.rows)
	}
}

func TestArchiveActionsAppendsToExistingObject(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	old := now.Add(-40 * 24 * time.Hour)

	blob := newMemBlob()
	blob.objects["archive/actions/2026-02.jsonl"] = []byte("{\"ID\":\"prior\"}\n")

	audit := &memAudit{rows: []domain.ActionRecord{auditRow("b", old)}}
	arch := newTestArchiver(blob, audit, &memSnapshots{}, nil, now)

	if _, err := arch.ArchiveActions(context.Background()); err != nil {
		t.Fatalf("ArchiveActions: %v", err)
	}

	got := string(blob.objects["archive/actions/2026-02.jsonl"])
	if !strings.Contains(got, `"prior"`) || !strings.Contains(got, `"b"`) {
		t.Fatalf("expected appended archive with both rows, got %q", got)
	}
	if strings.Count(got, "\n") != 2 {
		t.Fatalf("expected 2 lines, got %q", got)
	}
}

func TestArchiveActionsFullBatchHoldsBackNewestRow(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	base := now.Add(-60 * 24 * time.Hour)

	audit := &memAudit{}
	for i := 0; i < auditBatchSize; i++ {
		audit.rows = append(audit.rows, auditRow(fmt.Sprintf("r%04d", i), base.Add(time.Duration(i)*time.Second)))
	}

	blob := newMemBlob()
	arch := newTestArchiver(blob, audit, &memSnapshots{}, nil, now)

	n, err := arch.ArchiveActions(context.Background())
	if err != nil {
		t.Fatalf("ArchiveActions: %v", err)
	}
	if n != auditBatchSize-1 {
		t.Fatalf("archived %d rows, want %d", n, auditBatchSize-1)
	}
	if len(audit.rows) != 1 {
		t.Fatalf("expected the held-back row to survive, got %d rows", len(audit.rows))
	}

	last := base.Add(time.Duration(auditBatchSize-1) * time.Second)
	if !audit.deleteCutoff.Equal(last) {
		t.Fatalf("delete cutoff = %v, want %v", audit.deleteCutoff, last)
	}
}

func TestArchiveActionsNothingToDo(t *testing.T) {
	blob := newMemBlob()
	arch := newTestArchiver(blob, &memAudit{}, &memSnapshots{}, nil, time.Now())

	n, err := arch.ArchiveActions(context.Background())
	if err != nil {
		t.Fatalf("ArchiveActions: %v", err)
	}
	if n != 0 || blob.puts != 0 {
		t.Fatalf("expected no-op sweep, archived=%d puts=%d", n, blob.puts)
	}
}

func TestArchiveResolvedPreservesEachMarketOnce(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	snaps := &memSnapshots{snaps: map[string]domain.Snapshot{
		"0xm1": {Market: domain.Market{Address: "0xm1", Resolved: true, Outcome: domain.OutcomeYes}},
		"0xm2": {Market: domain.Market{Address: "0xm2"}},
	}}

	blob := newMemBlob()
	arch := newTestArchiver(blob, &memAudit{}, snaps, []string{"0xm1", "0xm2"}, now)

	n, err := arch.ArchiveResolved(context.Background())
	if err != nil {
		t.Fatalf("ArchiveResolved: %v", err)
	}
	if n != 1 {
		t.Fatalf("archived %d markets, want 1", n)
	}
	got := string(blob.objects["archive/markets/2026-03.jsonl"])
	if !strings.Contains(got, "0xm1") {
		t.Fatalf("archive missing resolved market: %q", got)
	}

	// Second sweep: the resolved market is already preserved, the open
	// market is still open.
	n, err = arch.ArchiveResolved(context.Background())
	if err != nil {
		t.Fatalf("ArchiveResolved second sweep: %v", err)
	}
	if n != 0 {
		t.Fatalf("second sweep archived %d markets, want 0", n)
	}
	if blob.puts != 1 {
		t.Fatalf("expected a single upload, got %d", blob.puts)
	}
}
