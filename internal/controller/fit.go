package controller

import (
	"time"

	"plk/internal/errors"
	"plk/internal/pulsar"
	"plk/internal/session"
	"plk/internal/timing"
)

// DefaultMaxIter bounds fit iterations when the request leaves it zero.
const DefaultMaxIter = 10

// maxIterCeiling rejects runaway requests.
const maxIterCeiling = 1000

// FitController runs least-squares fits through the mutation boundary.
type FitController struct {
	s *session.Session
}

// NewFitController returns a controller bound to the session.
func NewFitController(s *session.Session) *FitController {
	return &FitController{s: s}
}

// RunRequest configures one fit run.
type RunRequest struct {
	MaxIter int // 0 means DefaultMaxIter
}

// Run executes a fit. On success the fitted values, their uncertainties and a
// refreshed residual cache land in the container inside one boundary. On
// failure every parameter is rolled back to its pre-fit value, so the only
// observable effect of a failed fit is the error itself.
func (c *FitController) Run(req RunRequest) (timing.FitReport, error) {
	cont := c.s.Container()
	if cont == nil {
		return timing.FitReport{}, errors.ValidationFailed("session", "no project open")
	}
	if req.MaxIter == 0 {
		req.MaxIter = DefaultMaxIter
	}
	if req.MaxIter < 1 || req.MaxIter > maxIterCeiling {
		return timing.FitReport{}, errors.ValidationFailed("max_iter", "must be between 1 and 1000")
	}

	var report timing.FitReport
	boundaryErr := c.s.Detector().Boundary("fit", func() error {
		snapshot := cont.CloneParams()
		started := time.Now()

		fitted, rep, err := c.s.Engine().Fit(cont.Params(), cont.TOAs(), cont.Selection(), req.MaxIter)
		c.s.Metrics().ObserveFitDuration(time.Since(started), err == nil)
		if err != nil {
			c.s.Metrics().IncFitFailure()
			return err
		}

		if err := applyFitted(cont, fitted, rep.Fitted); err != nil {
			cont.RestoreParams(snapshot)
			c.s.Metrics().IncFitFailure()
			return errors.FitFailed("applying fitted parameters", err)
		}
		if _, err := cont.ComputePrefitResiduals(c.s.Engine().Residuals); err != nil {
			cont.RestoreParams(snapshot)
			c.s.Metrics().IncFitFailure()
			return errors.FitFailed("refreshing residuals after fit", err)
		}
		c.s.PushParamSnapshot(snapshot)
		report = rep
		return nil
	})
	return report, boundaryErr
}

// Revert undoes the most recent successful fit: the parameters recorded just
// before it are reinstated and the residual cache is refreshed, inside one
// boundary. Failed fits leave nothing to revert; they roll back on the spot.
func (c *FitController) Revert() error {
	cont := c.s.Container()
	if cont == nil {
		return errors.ValidationFailed("session", "no project open")
	}
	snapshot, ok := c.s.PopParamSnapshot()
	if !ok {
		return errors.ValidationFailed("revert", "no fit to revert")
	}
	return c.s.Detector().Boundary("revert", func() error {
		cont.RestoreParams(snapshot)
		_, err := cont.ComputePrefitResiduals(c.s.Engine().Residuals)
		return err
	})
}

// applyFitted writes the adjusted values and uncertainties of the fitted
// parameters back into the container.
func applyFitted(cont *pulsar.Container, fitted []pulsar.Param, names []string) error {
	adjusted := make(map[string]bool, len(names))
	for _, n := range names {
		adjusted[n] = true
	}
	for _, p := range fitted {
		if !adjusted[p.Name] {
			continue
		}
		if err := cont.SetParamValue(p.Name, p.Value); err != nil {
			return err
		}
		if err := cont.SetParamUncertainty(p.Name, p.Uncertainty); err != nil {
			return err
		}
	}
	return nil
}
