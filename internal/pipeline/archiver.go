// Package pipeline holds batch jobs that move data between the database and
// cold storage.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/taibet/taibet/internal/domain"
)

// archiveBatchSize bounds how many rows one archive object holds.
const archiveBatchSize = 5000

// Archiver moves aged odds snapshots and terminal purchases from the
// database to blob storage as JSONL objects, then deletes them. Snapshots
// newer than the retention window stay queryable for gap resync.
type Archiver struct {
	odds          domain.OddsStore
	purchases     domain.PurchaseStore
	blob          domain.BlobWriter
	retentionDays int
	logger        *slog.Logger
}

// NewArchiver creates an Archiver.
func NewArchiver(
	odds domain.OddsStore,
	purchases domain.PurchaseStore,
	blob domain.BlobWriter,
	retentionDays int,
	logger *slog.Logger,
) *Archiver {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &Archiver{
		odds:          odds,
		purchases:     purchases,
		blob:          blob,
		retentionDays: retentionDays,
		logger:        logger.With(slog.String("component", "archiver")),
	}
}

// Run executes a single archive run against the retention cutoff.
func (a *Archiver) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-time.Duration(a.retentionDays) * 24 * time.Hour)
	a.logger.InfoContext(ctx, "starting archive run",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", a.retentionDays),
	)

	snapsArchived, err := a.archiveOddsSnapshots(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("pipeline: archive odds snapshots before %v: %w", cutoff, err)
	}

	purchasesArchived, err := a.archivePurchases(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("pipeline: archive purchases before %v: %w", cutoff, err)
	}

	a.logger.InfoContext(ctx, "archive run complete",
		slog.Int64("snapshots_archived", snapsArchived),
		slog.Int64("purchases_archived", purchasesArchived),
	)
	return nil
}

// archiveOddsSnapshots uploads snapshots older than cutoff and deletes them
// batch by batch. The upload lands before the delete, and the delete is
// bounded to the uploaded batch, so a failure at any point leaves duplicate
// archive rows rather than lost ones.
func (a *Archiver) archiveOddsSnapshots(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	for {
		snaps, err := a.odds.ListBefore(ctx, cutoff, archiveBatchSize)
		if err != nil {
			return total, err
		}
		if len(snaps) == 0 {
			return total, nil
		}

		rows := make([]any, len(snaps))
		for i, s := range snaps {
			rows[i] = s
		}
		key := archiveKey("odds_snapshots", cutoff, total)
		if err := a.putJSONL(ctx, key, rows); err != nil {
			return total, err
		}

		deleted, err := a.odds.DeleteBefore(ctx, cutoff, len(snaps))
		if err != nil {
			return total, err
		}
		total += deleted
		a.logger.InfoContext(ctx, "archived odds snapshots",
			slog.String("key", key),
			slog.Int64("count", deleted),
		)
		if deleted == 0 {
			return total, nil
		}
	}
}

// archivePurchases uploads terminal (completed or expired) purchases older
// than cutoff and deletes them. Pending and awaiting_signature rows are
// never touched.
func (a *Archiver) archivePurchases(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	for {
		purchases, err := a.purchases.ListTerminalBefore(ctx, cutoff, archiveBatchSize)
		if err != nil {
			return total, err
		}
		if len(purchases) == 0 {
			return total, nil
		}

		rows := make([]any, len(purchases))
		for i, p := range purchases {
			rows[i] = p
		}
		key := archiveKey("purchases", cutoff, total)
		if err := a.putJSONL(ctx, key, rows); err != nil {
			return total, err
		}

		deleted, err := a.purchases.DeleteTerminalBefore(ctx, cutoff, len(purchases))
		if err != nil {
			return total, err
		}
		total += deleted
		a.logger.InfoContext(ctx, "archived purchases",
			slog.String("key", key),
			slog.Int64("count", deleted),
		)
		if deleted == 0 {
			return total, nil
		}
	}
}

// putJSONL encodes rows as newline-delimited JSON and uploads the object.
func (a *Archiver) putJSONL(ctx context.Context, key string, rows []any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("encode row: %w", err)
		}
	}
	return a.blob.Put(ctx, key, &buf, "application/x-ndjson")
}

// archiveKey builds an object key like
// "archive/odds_snapshots/2026-08/cutoff-2026-05-31T00-00-00Z-0.jsonl".
func archiveKey(kind string, cutoff time.Time, offset int64) string {
	now := time.Now().UTC()
	return fmt.Sprintf("archive/%s/%s/cutoff-%s-%d.jsonl",
		kind,
		now.Format("2006-01"),
		cutoff.Format("2006-01-02T15-04-05Z"),
		offset,
	)
}
