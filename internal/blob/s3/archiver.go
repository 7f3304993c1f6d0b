package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/shadowtrade/shadowbot/internal/domain"
)

const (
	contentTypeJSONL = "application/x-ndjson"

	// auditBatchSize caps how many audit rows one sweep moves to cold
	// storage. A full batch leaves the remainder for the next sweep.
	auditBatchSize = 1000

	// multipartThreshold is the archive-file size above which uploads
	// switch to the multipart path.
	multipartThreshold = 64 * 1024 * 1024

	defaultSweepInterval = 6 * time.Hour
)

// Snapshots is the market read surface the archiver needs: the latest
// snapshot for one address, served from cache when fresh.
type Snapshots interface {
	Snapshot(ctx context.Context, address string) (domain.Snapshot, error)
}

// Archiver moves aged audit rows out of Postgres and preserves the final
// state of resolved markets, both as month-partitioned JSONL objects in an
// S3-compatible bucket. Audit rows are deleted from the primary store only
// after their archive upload has succeeded.
type Archiver struct {
	writer    domain.BlobWriter
	reader    domain.BlobReader
	audit     domain.AuditStore
	snaps     Snapshots
	addresses []string
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger

	preserved map[string]bool // markets whose resolved state is already uploaded

	now func() time.Time
}

// NewArchiver creates an Archiver. retention is how long audit rows stay in
// the primary store; interval is the sweep period (a non-positive value
// falls back to the default).
func NewArchiver(
	writer domain.BlobWriter,
	reader domain.BlobReader,
	audit domain.AuditStore,
	snaps Snapshots,
	addresses []string,
	retention time.Duration,
	interval time.Duration,
	logger *slog.Logger,
) *Archiver {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &Archiver{
		writer:    writer,
		reader:    reader,
		audit:     audit,
		snaps:     snaps,
		addresses: addresses,
		retention: retention,
		interval:  interval,
		logger:    logger.With("component", "archiver"),
		preserved: make(map[string]bool),
		now:       time.Now,
	}
}

// Run sweeps immediately and then on every interval tick until the context
// is cancelled.
func (a *Archiver) Run(ctx context.Context) error {
	a.logger.Info("archiver started", "retention", a.retention, "interval", a.interval)

	a.sweep(ctx)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.sweep(ctx)
		}
	}
}

func (a *Archiver) sweep(ctx context.Context) {
	if n, err := a.ArchiveActions(ctx); err != nil {
		a.logger.Warn("audit archive sweep failed", "error", err)
	} else if n > 0 {
		a.logger.Info("audit rows archived", "count", n)
	}

	if n, err := a.ArchiveResolved(ctx); err != nil {
		a.logger.Warn("resolved-market archive sweep failed", "error", err)
	} else if n > 0 {
		a.logger.Info("resolved markets archived", "count", n)
	}
}

// ArchiveActions uploads audit rows older than the retention cutoff and then
// deletes them from the primary store. It processes at most one batch per
// call; when the batch comes back full the newest row is held back so the
// delete cutoff stays strictly behind everything uploaded.
func (a *Archiver) ArchiveActions(ctx context.Context) (int64, error) {
	cutoff := a.now().Add(-a.retention)

	recs, err := a.audit.ListBefore(ctx, cutoff, auditBatchSize)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive actions query: %w", err)
	}
	if len(recs) == 0 {
		return 0, nil
	}

	if len(recs) == auditBatchSize {
		// Rows are ordered oldest first. Trim to strictly before the
		// last row's timestamp; the remainder goes next sweep.
		cutoff = recs[len(recs)-1].CreatedAt
		trimmed := recs[:0:0]
		for _, rec := range recs {
			if rec.CreatedAt.Before(cutoff) {
				trimmed = append(trimmed, rec)
			}
		}
		if len(trimmed) > 0 {
			recs = trimmed
		} else {
			// Every row in the batch shares one timestamp; take
			// them all and step the cutoff just past it.
			cutoff = cutoff.Add(time.Millisecond)
		}
	}

	for path, group := range groupByMonth(recs) {
		buf, err := marshalJSONL(group)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive actions marshal: %w", err)
		}
		if err := a.appendObject(ctx, path, buf); err != nil {
			return 0, fmt.Errorf("s3blob: archive actions upload: %w", err)
		}
	}

	deleted, err := a.audit.DeleteBefore(ctx, cutoff)
	if err != nil {
		return int64(len(recs)), fmt.Errorf("s3blob: archive actions delete: %w", err)
	}
	return deleted, nil
}

// ArchiveResolved uploads the final snapshot of every catalogue market that
// has resolved since the process started. Each market is preserved once per
// process lifetime; the upload appends to the current month's file.
func (a *Archiver) ArchiveResolved(ctx context.Context) (int, error) {
	var resolved []domain.Snapshot
	var addrs []string

	for _, addr := range a.addresses {
		if a.preserved[addr] {
			continue
		}
		snap, err := a.snaps.Snapshot(ctx, addr)
		if err != nil {
			a.logger.Warn("snapshot read failed", "market", addr, "error", err)
			continue
		}
		if !snap.Market.Resolved {
			continue
		}
		resolved = append(resolved, snap)
		addrs = append(addrs, addr)
	}
	if len(resolved) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(resolved)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive resolved marshal: %w", err)
	}

	path := archivePath("markets", a.now())
	if err := a.appendObject(ctx, path, buf); err != nil {
		return 0, fmt.Errorf("s3blob: archive resolved upload: %w", err)
	}

	for _, addr := range addrs {
		a.preserved[addr] = true
	}
	return len(resolved), nil
}

// appendObject loads any existing object at path, appends lines, and writes
// the result back. JSONL makes the append a plain byte concatenation.
func (a *Archiver) appendObject(ctx context.Context, path string, lines []byte) error {
	existing, err := a.load(ctx, path)
	if err != nil {
		return err
	}

	buf := append(existing, lines...)
	if int64(len(buf)) >= multipartThreshold {
		return a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	}
	return a.writer.Put(ctx, path, bytes.NewReader(buf), contentTypeJSONL)
}

func (a *Archiver) load(ctx context.Context, path string) ([]byte, error) {
	rc, err := a.reader.Get(ctx, path)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	defer rc.Close()

	buf, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("s3blob: read existing %s: %w", path, err)
	}
	return buf, nil
}

// groupByMonth buckets audit rows by the archive file their creation month
// maps to.
func groupByMonth(recs []domain.ActionRecord) map[string][]domain.ActionRecord {
	groups := make(map[string][]domain.ActionRecord)
	for _, rec := range recs {
		path := archivePath("actions", rec.CreatedAt)
		groups[path] = append(groups[path], rec)
	}
	return groups
}

// archivePath builds the S3 key for an archive file, partitioned by
// year-month:
//
//	archive/actions/2026-02.jsonl
//	archive/markets/2026-02.jsonl
func archivePath(kind string, t time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, t.UTC().Format("2006-01"))
}

// marshalJSONL serialises records as newline-delimited JSON, one compact
// line per record.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
