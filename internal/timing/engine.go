// Package timing holds the numeric collaborators: residual computation and
// least-squares fitting against a timing model. The state core treats these as
// pure functions of parameters and TOAs; nothing in here retains state between
// calls.
package timing

import (
	"fmt"

	"plk/internal/errors"
	"plk/internal/pulsar"
)

// FitReport summarizes one fit run.
type FitReport struct {
	Iterations int
	Chi2       float64
	DOF        int
	PrefitRMS  float64 // microseconds
	PostfitRMS float64 // microseconds
	Fitted     []string
}

// Engine computes residuals and fits model parameters. Implementations must
// not mutate their inputs; Fit returns the adjusted parameter slice as a new
// value.
type Engine interface {
	Residuals(params []pulsar.Param, toas []pulsar.TOA, selected []bool) (pulsar.ResidualData, error)
	Fit(params []pulsar.Param, toas []pulsar.TOA, selected []bool, maxIter int) ([]pulsar.Param, FitReport, error)
}

// Engine kinds selectable from configuration.
const (
	KindAuto = "auto"
	KindWLS  = "wls"
)

// NewEngine returns the engine implementing the named fit strategy. "auto"
// resolves to the weighted-least-squares spin-down engine, the only strategy
// currently built in.
func NewEngine(kind string) (Engine, error) {
	switch kind {
	case "", KindAuto, KindWLS:
		return NewSpindownEngine(), nil
	}
	return nil, errors.ValidationFailed("fitter", fmt.Sprintf("unknown engine kind %q", kind))
}
