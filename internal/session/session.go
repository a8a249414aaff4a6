// Package session owns the application lifecycle around the state container:
// opening a project from parameter and TOA files, swapping it wholesale,
// closing it, and handing out the collaborators (hub, detector, engine) that
// everything else is wired through.
package session

import (
	"log/slog"

	"github.com/google/uuid"

	"plk/internal/detect"
	"plk/internal/errors"
	"plk/internal/metrics"
	"plk/internal/parse"
	"plk/internal/pulsar"
	"plk/internal/timing"
)

// Session is the root object of one application run. The hub and the detector
// live here rather than on the container, so subscriptions and the mutation
// funnel survive project switches. Single-threaded by contract: all access
// happens from one goroutine, with at most one open mutation boundary.
type Session struct {
	id      string
	hub     *pulsar.Hub
	det     *detect.Detector
	engine  timing.Engine
	logger  *slog.Logger
	metrics metrics.Recorder

	ephem string

	container  *pulsar.Container
	generation uint64
	undo       []pulsar.ParamSet // pre-fit snapshots, most recent last
}

// Option configures a Session.
type Option func(*sessionConfig)

type sessionConfig struct {
	metrics  metrics.Recorder
	recorder detect.Recorder
	ephem    string
}

// WithMetrics attaches a metrics recorder to the session and its detector.
func WithMetrics(m metrics.Recorder) Option {
	return func(c *sessionConfig) { c.metrics = m }
}

// WithRecorder attaches a journal recorder to the detector.
func WithRecorder(r detect.Recorder) Option {
	return func(c *sessionConfig) { c.recorder = r }
}

// WithDefaultEphemeris sets the ephemeris recorded on opened sources that do
// not name one themselves.
func WithDefaultEphemeris(name string) Option {
	return func(c *sessionConfig) { c.ephem = name }
}

// New builds an empty session around a timing engine.
func New(engine timing.Engine, logger *slog.Logger, opts ...Option) *Session {
	cfg := sessionConfig{metrics: metrics.NoopRecorder{}}
	for _, opt := range opts {
		opt(&cfg)
	}

	id := uuid.NewString()
	s := &Session{
		id:      id,
		hub:     pulsar.NewHub(),
		engine:  engine,
		logger:  logger.With("session_id", id),
		metrics: cfg.metrics,
		ephem:   cfg.ephem,
	}

	detOpts := []detect.Option{detect.WithMetrics(cfg.metrics)}
	if cfg.recorder != nil {
		detOpts = append(detOpts, detect.WithRecorder(cfg.recorder))
	}
	s.det = detect.New(func() *pulsar.Container { return s.container }, s.hub, s.logger, detOpts...)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Hub returns the notification hub. It outlives any one container.
func (s *Session) Hub() *pulsar.Hub { return s.hub }

// Detector returns the mutation-boundary funnel.
func (s *Session) Detector() *detect.Detector { return s.det }

// Engine returns the numeric engine.
func (s *Session) Engine() timing.Engine { return s.engine }

// Metrics returns the metrics recorder.
func (s *Session) Metrics() metrics.Recorder { return s.metrics }

// Container returns the live state container, or nil when no project is open.
func (s *Session) Container() *pulsar.Container { return s.container }

// Generation returns the state generation. It increments on every open and
// close, so a binding captured against one generation can detect replacement.
func (s *Session) Generation() uint64 { return s.generation }

// Live reports whether a project is open.
func (s *Session) Live() bool { return s.container != nil }

// Open loads a parameter/TOA file pair and replaces the current state with
// it. The load is all-or-nothing: parsing, the compatibility check and the
// initial residual computation all happen on a detached container, and a
// failure at any point leaves the previous state untouched and unnotified.
//
// On success the swap runs inside one mutation boundary. The state_replaced
// channel fires first, inside the boundary, so rebinding subscribers observe
// the new generation before the facet channels fire against it.
func (s *Session) Open(parPath, timPath string) error {
	params, err := parse.ParFile(parPath)
	if err != nil {
		return err
	}
	toas, err := parse.TimFile(timPath)
	if err != nil {
		return err
	}
	if err := parse.CheckCompatibility(&params, &toas); err != nil {
		return err
	}
	if s.ephem != "" && params.Meta("EPHEM") == "" {
		params.SetMeta("EPHEM", s.ephem)
	}

	next := pulsar.NewContainer(params, toas, parPath, timPath)
	if _, err := next.ComputePrefitResiduals(s.engine.Residuals); err != nil {
		return errors.LoadFailed("computing initial residuals", err)
	}

	return s.det.Boundary("open", func() error {
		s.container = next
		s.generation++
		s.undo = nil
		s.logger.Info("project opened",
			"par", parPath, "tim", timPath,
			"pulsar", next.PulsarName(),
			"toas", next.NumTOAs(),
			"generation", s.generation)
		s.hub.Publish(pulsar.ChannelStateReplaced, pulsar.StateReplacedSnapshot{
			Generation: s.generation,
			ParFile:    parPath,
			TimFile:    timPath,
			PulsarName: next.PulsarName(),
			Live:       true,
		})
		return nil
	})
}

// Reload re-opens the currently open file pair. Used when a source file
// changes on disk.
func (s *Session) Reload() error {
	if s.container == nil {
		return errors.LoadFailed("no project open", nil)
	}
	return s.Open(s.container.ParFile(), s.container.TimFile())
}

// Close discards the current state. Subscribers hear a final state_replaced
// with Live=false, then every subscription is dropped; nothing can be
// notified about a state that no longer exists.
func (s *Session) Close() {
	if s.container == nil {
		return
	}
	s.generation++
	s.container = nil
	s.undo = nil
	s.logger.Info("project closed", "generation", s.generation)
	s.hub.Publish(pulsar.ChannelStateReplaced, pulsar.StateReplacedSnapshot{
		Generation: s.generation,
		Live:       false,
	})
	s.hub.Clear()
}

// PushParamSnapshot records a pre-fit parameter snapshot so a successful fit
// can be undone later. The stack belongs to the open project and is dropped
// whenever the state is replaced or closed.
func (s *Session) PushParamSnapshot(ps pulsar.ParamSet) {
	s.undo = append(s.undo, ps)
}

// PopParamSnapshot removes and returns the most recent pre-fit snapshot.
func (s *Session) PopParamSnapshot() (pulsar.ParamSet, bool) {
	if len(s.undo) == 0 {
		return pulsar.ParamSet{}, false
	}
	ps := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
	return ps, true
}

// RecomputeResiduals refreshes the residual cache against the current
// parameters and selection, inside its own boundary.
func (s *Session) RecomputeResiduals() error {
	if s.container == nil {
		return errors.LoadFailed("no project open", nil)
	}
	return s.det.Boundary("recompute", func() error {
		_, err := s.container.ComputePrefitResiduals(s.engine.Residuals)
		return err
	})
}
