package metrics

import "time"

// BoundaryOutcome enumerates mutation-boundary result categories.
type BoundaryOutcome string

const (
	BoundaryCompleted BoundaryOutcome = "completed"
	BoundaryFailed    BoundaryOutcome = "failed"
)

// Recorder defines observability hooks for the mutation pipeline.
// Implementations may forward to Prometheus, OpenTelemetry, etc. All methods
// must be safe on the zero value so injection stays optional.
type Recorder interface {
	IncBoundary(origin string, outcome BoundaryOutcome)
	IncFacetChange(facet string)
	IncNotification(channel string)
	ObserveFitDuration(d time.Duration, success bool)
	IncFitFailure()
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not
// configured).
type NoopRecorder struct{}

func (NoopRecorder) IncBoundary(string, BoundaryOutcome)       {}
func (NoopRecorder) IncFacetChange(string)                     {}
func (NoopRecorder) IncNotification(string)                    {}
func (NoopRecorder) ObserveFitDuration(time.Duration, bool)    {}
func (NoopRecorder) IncFitFailure()                            {}
