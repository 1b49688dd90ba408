package tasks

import (
	"context"
	"log/slog"

	"github.com/mverkerk/opsboard/internal/otel"
	"github.com/mverkerk/opsboard/internal/store"
)

// recorder appends history entries best-effort. A failed append must never
// fail the mutation that triggered it, so errors are logged and swallowed.
type recorder struct {
	store store.Store
	log   *slog.Logger
}

func (r *recorder) record(ctx context.Context, h store.NewHistory) {
	if _, err := r.store.InsertHistory(ctx, h); err != nil {
		r.log.Warn("history append failed",
			"task_id", h.TaskID,
			"change_type", h.ChangeType,
			"error", err)
		return
	}
	otel.RecordHistoryEntry(ctx, h.ChangeType)
}

func (r *recorder) recordAll(ctx context.Context, entries []store.NewHistory) {
	for _, h := range entries {
		r.record(ctx, h)
	}
}
