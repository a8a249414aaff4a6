package journal

import (
	"context"
	"log/slog"
	"time"

	"plk/internal/detect"
)

// BoundaryRecorder adapts a Store to the change detector's Recorder seam.
// Persistence failures are logged and swallowed: the journal must never fail
// a mutation.
type BoundaryRecorder struct {
	store     Store
	sessionID string
	logger    *slog.Logger
	timeout   time.Duration
}

// NewBoundaryRecorder builds a recorder writing under the given session id.
func NewBoundaryRecorder(store Store, sessionID string, logger *slog.Logger) *BoundaryRecorder {
	return &BoundaryRecorder{
		store:     store,
		sessionID: sessionID,
		logger:    logger,
		timeout:   2 * time.Second,
	}
}

// RecordBoundary persists one boundary record.
func (r *BoundaryRecorder) RecordBoundary(rec detect.BoundaryRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	err := r.store.Append(ctx, Entry{
		SessionID:       r.sessionID,
		BoundaryID:      rec.BoundaryID,
		Origin:          rec.Origin,
		StartedAt:       rec.StartedAt,
		Duration:        rec.Duration,
		Changed:         rec.Changed,
		Failed:          rec.Failed,
		Err:             rec.Err,
		BeforeParams:    rec.Before.Params.String(),
		BeforeTOAs:      rec.Before.TOAs.String(),
		BeforeResiduals: rec.Before.Residuals.String(),
		AfterParams:     rec.After.Params.String(),
		AfterTOAs:       rec.After.TOAs.String(),
		AfterResiduals:  rec.After.Residuals.String(),
	})
	if err != nil {
		r.logger.Warn("journal append failed", "boundary_id", rec.BoundaryID, "error", err)
	}
}
