// Package detect implements the mutation boundary: the single funnel every
// state change passes through, whatever originated it. It snapshots the facet
// digests before a mutation runs, compares after, fires the notification
// channels for the facets that changed, and records the pass for the journal.
package detect

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"plk/internal/metrics"
	"plk/internal/observability"
	"plk/internal/pulsar"
)

// Baseline is the digest triple captured when a boundary opens.
type Baseline struct {
	Params    pulsar.Digest
	TOAs      pulsar.Digest
	Residuals pulsar.Digest
}

// BoundaryRecord describes one completed boundary pass for the journal.
type BoundaryRecord struct {
	BoundaryID string
	Origin     string
	StartedAt  time.Time
	Duration   time.Duration
	Before     Baseline
	After      Baseline
	Changed    []string // facet names, in notification order
	Failed     bool
	Err        string
}

// Recorder persists boundary records. Implementations must not fail the
// boundary: persistence errors are theirs to log.
type Recorder interface {
	RecordBoundary(rec BoundaryRecord)
}

// Detector runs mutation boundaries against whatever container the provider
// currently returns. It is single-threaded by contract, like everything else
// around the state container.
type Detector struct {
	current  func() *pulsar.Container
	hub      *pulsar.Hub
	logger   *slog.Logger
	metrics  metrics.Recorder
	recorder Recorder

	depth int // re-entrant boundary nesting
}

// Option configures a Detector.
type Option func(*Detector)

// WithMetrics attaches a metrics recorder.
func WithMetrics(m metrics.Recorder) Option {
	return func(d *Detector) { d.metrics = m }
}

// WithRecorder attaches a journal recorder.
func WithRecorder(r Recorder) Option {
	return func(d *Detector) { d.recorder = r }
}

// SetRecorder attaches a journal recorder after construction. Used when the
// recorder needs an identifier the owning session only has once built.
func (d *Detector) SetRecorder(r Recorder) {
	d.recorder = r
}

// New builds a detector over a container provider and a notification hub.
// The provider is consulted at boundary open and close, so a mutation that
// swaps the whole container is detected like any other.
func New(current func() *pulsar.Container, hub *pulsar.Hub, logger *slog.Logger, opts ...Option) *Detector {
	d := &Detector{
		current: current,
		hub:     hub,
		logger:  logger,
		metrics: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// snapshot digests the current container, or the zero baseline when no
// project is open.
func (d *Detector) snapshot() Baseline {
	c := d.current()
	if c == nil {
		return Baseline{}
	}
	return Baseline{
		Params:    c.DigestParameters(),
		TOAs:      c.DigestTOAs(),
		Residuals: c.DigestResiduals(),
	}
}

// Boundary runs fn inside a mutation boundary. When the outermost boundary
// closes, the digests are compared against the pre-mutation baseline and the
// parameters, toas and residuals channels fire, in that order, for the facets
// whose digest changed. Each channel fires at most once per boundary,
// regardless of how many individual mutations fn performed.
//
// Nested calls join the open boundary: fn runs directly and the channel
// firing is left to the outermost caller. This is what lets console code call
// the same controllers the rest of the application uses without doubling
// notifications.
//
// fn's error is returned as-is. Detection still runs on failure, because a
// failed operation may have legitimately changed state before the error
// (a fit rollback restores parameters but leaves an invalidated cache).
func (d *Detector) Boundary(origin string, fn func() error) error {
	if d.depth > 0 {
		return d.runGuarded(fn)
	}

	boundaryID := uuid.NewString()
	started := time.Now()
	before := d.snapshot()

	err := d.runGuarded(fn)

	after := d.snapshot()
	changed := d.fire(before, after)

	outcome := metrics.BoundaryCompleted
	errText := ""
	if err != nil {
		outcome = metrics.BoundaryFailed
		errText = err.Error()
	}
	d.metrics.IncBoundary(origin, outcome)

	ctx := observability.WithBoundaryID(observability.WithOrigin(context.Background(), origin), boundaryID)
	attrs := append(observability.Attrs(ctx),
		slog.Any("changed", changed),
		slog.Duration("duration", time.Since(started)))
	if err != nil {
		d.logger.LogAttrs(ctx, slog.LevelWarn, "mutation failed inside boundary",
			append(attrs, slog.String("error", errText))...)
	} else {
		d.logger.LogAttrs(ctx, slog.LevelDebug, "mutation boundary closed", attrs...)
	}

	if d.recorder != nil {
		d.recorder.RecordBoundary(BoundaryRecord{
			BoundaryID: boundaryID,
			Origin:     origin,
			StartedAt:  started,
			Duration:   time.Since(started),
			Before:     before,
			After:      after,
			Changed:    changed,
			Failed:     err != nil,
			Err:        errText,
		})
	}
	return err
}

// runGuarded runs fn with the nesting depth held open. The decrement is
// deferred so a panic escaping fn cannot leave a phantom open boundary that
// every later pass would silently join.
func (d *Detector) runGuarded(fn func() error) error {
	d.depth++
	defer func() { d.depth-- }()
	return fn()
}

// fire publishes the facet channels whose digests changed, in fixed order,
// and returns the facet names that fired.
func (d *Detector) fire(before, after Baseline) []string {
	c := d.current()
	if c == nil {
		return nil
	}
	var changed []string
	if before.Params != after.Params {
		changed = append(changed, string(pulsar.ChannelParameters))
		d.metrics.IncFacetChange(string(pulsar.ChannelParameters))
		d.metrics.IncNotification(string(pulsar.ChannelParameters))
		d.hub.Publish(pulsar.ChannelParameters, c.ParamsSnapshot())
	}
	if before.TOAs != after.TOAs {
		changed = append(changed, string(pulsar.ChannelTOAs))
		d.metrics.IncFacetChange(string(pulsar.ChannelTOAs))
		d.metrics.IncNotification(string(pulsar.ChannelTOAs))
		d.hub.Publish(pulsar.ChannelTOAs, c.TOAsSnapshot())
	}
	if before.Residuals != after.Residuals {
		changed = append(changed, string(pulsar.ChannelResiduals))
		d.metrics.IncFacetChange(string(pulsar.ChannelResiduals))
		d.metrics.IncNotification(string(pulsar.ChannelResiduals))
		d.hub.Publish(pulsar.ChannelResiduals, c.ResidualsSnapshot())
	}
	return changed
}

// InBoundary reports whether a boundary is currently open.
func (d *Detector) InBoundary() bool {
	return d.depth > 0
}
