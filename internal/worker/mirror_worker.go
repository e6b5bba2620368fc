package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/nivanenko/shared-expenses-tracker/internal/amqp"
	"github.com/nivanenko/shared-expenses-tracker/internal/log"
	"github.com/nivanenko/shared-expenses-tracker/internal/sheets"
)

// DefaultDedupSize is how many recent message IDs the worker remembers.
const DefaultDedupSize = 1024

// MirrorWorker copies ledger events into a LedgerMirror. Redelivered
// messages that were already mirrored are skipped.
type MirrorWorker struct {
	mirror  sheets.LedgerMirror
	timeout time.Duration
	seen    *lru.Cache
}

// NewMirrorWorker creates a worker; timeout bounds each mirror call and
// zero means no bound.
func NewMirrorWorker(mirror sheets.LedgerMirror, timeout time.Duration, dedupSize int) (*MirrorWorker, error) {
	if dedupSize <= 0 {
		dedupSize = DefaultDedupSize
	}
	seen, err := lru.New(dedupSize)
	if err != nil {
		return nil, fmt.Errorf("create dedup cache: %w", err)
	}
	return &MirrorWorker{mirror: mirror, timeout: timeout, seen: seen}, nil
}

// HandleEvent processes a single ledger event from AMQP
func (w *MirrorWorker) HandleEvent(ctx context.Context, event *amqp.LedgerEvent) error {
	if event.MessageID != "" {
		if dup, _ := w.seen.ContainsOrAdd(event.MessageID, struct{}{}); dup {
			slog.InfoContext(ctx, "Skipping already mirrored event",
				log.NewFields().WithEvent(event.MessageID, string(event.Type)).ToSlice()...)
			return nil
		}
	}

	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	if err := w.apply(ctx, event); err != nil {
		// Forget the ID so a redelivery is retried.
		w.seen.Remove(event.MessageID)
		return err
	}
	return nil
}

func (w *MirrorWorker) apply(ctx context.Context, event *amqp.LedgerEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}

	switch event.Type {
	case amqp.EventTransactionRecorded:
		t, err := event.Transaction.ToTransaction()
		if err != nil {
			return err
		}
		if err := w.mirror.AppendTransaction(ctx, t); err != nil {
			return fmt.Errorf("mirror transaction %d: %w", t.ID, err)
		}
		slog.InfoContext(ctx, "Mirrored transaction",
			log.NewFields().WithOperation(log.OpMirror).WithTransaction(t).ToSlice()...)

	case amqp.EventWriteOff:
		through, err := event.WriteOff.ThroughDate()
		if err != nil {
			return err
		}
		if err := w.mirror.AppendWriteOff(ctx, through, event.WriteOff.Deleted); err != nil {
			return fmt.Errorf("mirror write-off: %w", err)
		}
		slog.InfoContext(ctx, "Mirrored write-off",
			"through", through.String(),
			"deleted", event.WriteOff.Deleted)

	case amqp.EventGiftsAssigned:
		gifts := event.Gifts.ToGifts()
		if err := w.mirror.AppendGifts(ctx, event.Gifts.Group, gifts); err != nil {
			return fmt.Errorf("mirror gifts: %w", err)
		}
		slog.InfoContext(ctx, "Mirrored gifts",
			"group", event.Gifts.Group,
			"count", len(gifts))
	}
	return nil
}
