// Package console embeds a free-form expression engine over the live state.
// Console input mutates state through the same controllers the rest of the
// application uses, inside the same mutation boundary, so a change typed at
// the console is observationally identical to one clicked in a view.
package console

import (
	"log/slog"

	"github.com/expr-lang/expr"

	"plk/internal/controller"
	"plk/internal/errors"
	"plk/internal/pulsar"
	"plk/internal/session"
)

// Bridge wires the expression environment to the session. It rebinds itself
// whenever the state is replaced, so "psr" always refers to the live state,
// and any handle captured from a previous state answers with a stale error
// instead of old numbers.
type Bridge struct {
	s      *session.Session
	params *controller.ParamController
	toas   *controller.TOAController
	fit    *controller.FitController
	logger *slog.Logger

	boundGen uint64
	env      map[string]any
}

// NewBridge builds a bridge and subscribes it to state replacement. The
// subscription survives project switches because the hub does.
func NewBridge(s *session.Session, logger *slog.Logger) *Bridge {
	b := &Bridge{
		s:      s,
		params: controller.NewParamController(s),
		toas:   controller.NewTOAController(s),
		fit:    controller.NewFitController(s),
		logger: logger,
	}
	s.Hub().Subscribe(pulsar.ChannelStateReplaced, func(p any) {
		snap, ok := p.(pulsar.StateReplacedSnapshot)
		if !ok {
			return
		}
		if snap.Live {
			b.BindCurrent()
		} else {
			b.env = nil
		}
	})
	return b
}

// BindCurrent (re)builds the expression environment against the live state.
// Idempotent: binding twice against the same generation is a no-op, so the
// rebind subscriber and an explicit caller cannot fight each other.
func (b *Bridge) BindCurrent() {
	gen := b.s.Generation()
	if b.env != nil && b.boundGen == gen {
		return
	}
	h := &Handle{bridge: b, gen: gen}
	b.env = map[string]any{
		"psr":       h,
		"fit":       b.fitFunc,
		"revert":    b.revertFunc,
		"residuals": b.residualsFunc,
		"params":    b.paramsFunc,
	}
	b.boundGen = gen
	b.logger.Debug("console environment bound", "generation", gen)
}

// Execute compiles and runs one console expression inside a mutation
// boundary. Whatever the expression touched, changed facets notify exactly
// once when the boundary closes.
func (b *Bridge) Execute(src string) (any, error) {
	if !b.s.Live() {
		return nil, errors.ValidationFailed("session", "no project open")
	}
	b.BindCurrent()

	program, err := expr.Compile(src, expr.Env(b.env), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, errors.ParseFailed("console", 1, err)
	}

	var out any
	boundaryErr := b.s.Detector().Boundary("console", func() error {
		var runErr error
		out, runErr = expr.Run(program, b.env)
		return runErr
	})
	return out, boundaryErr
}

// fitFunc is the console convenience for a default fit run. Returns the
// post-fit weighted RMS in microseconds.
func (b *Bridge) fitFunc() (float64, error) {
	report, err := b.fit.Run(controller.RunRequest{})
	if err != nil {
		return 0, err
	}
	return report.PostfitRMS, nil
}

// revertFunc undoes the most recent successful fit.
func (b *Bridge) revertFunc() (bool, error) {
	if err := b.fit.Revert(); err != nil {
		return false, err
	}
	return true, nil
}

// residualsFunc returns the current residuals in microseconds, recomputing
// them when the cache is stale.
func (b *Bridge) residualsFunc() ([]float64, error) {
	cont := b.s.Container()
	if cont == nil {
		return nil, errors.ValidationFailed("session", "no project open")
	}
	if rs := cont.Residuals(); rs != nil {
		return rs.Residuals, nil
	}
	if err := b.s.RecomputeResiduals(); err != nil {
		return nil, err
	}
	return cont.Residuals().Residuals, nil
}

// paramsFunc returns the current parameter values by name.
func (b *Bridge) paramsFunc() (map[string]float64, error) {
	cont := b.s.Container()
	if cont == nil {
		return nil, errors.ValidationFailed("session", "no project open")
	}
	out := make(map[string]float64)
	for _, p := range cont.Params() {
		out[p.Name] = p.Value
	}
	return out, nil
}
