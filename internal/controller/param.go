// Package controller exposes the typed mutation operations the application
// surfaces are built from. Every operation validates its request fully before
// touching state, runs inside a mutation boundary, and leaves notification to
// the change detector. Console code reaches the same controllers, which is
// why both pathways behave identically.
package controller

import (
	"fmt"
	"math"

	"plk/internal/errors"
	"plk/internal/session"
)

// ParamController mutates timing-model parameters.
type ParamController struct {
	s *session.Session
}

// NewParamController returns a controller bound to the session.
func NewParamController(s *session.Session) *ParamController {
	return &ParamController{s: s}
}

// SetValueRequest updates one parameter value.
type SetValueRequest struct {
	Name  string
	Value float64
}

// SetValue applies a validated value change inside a boundary.
func (c *ParamController) SetValue(req SetValueRequest) error {
	cont := c.s.Container()
	if cont == nil {
		return errors.ValidationFailed("session", "no project open")
	}
	if req.Name == "" {
		return errors.ValidationFailed("name", "parameter name is empty")
	}
	if _, ok := cont.Param(req.Name); !ok {
		return errors.ValidationFailed("name", fmt.Sprintf("unknown parameter %q", req.Name))
	}
	if math.IsNaN(req.Value) || math.IsInf(req.Value, 0) {
		return errors.ValidationFailed("value", "must be finite")
	}
	return c.s.Detector().Boundary("controller", func() error {
		return cont.SetParamValue(req.Name, req.Value)
	})
}

// SetFrozenRequest updates one parameter's frozen flag.
type SetFrozenRequest struct {
	Name   string
	Frozen bool
}

// SetFrozen applies a validated freeze/thaw inside a boundary.
func (c *ParamController) SetFrozen(req SetFrozenRequest) error {
	cont := c.s.Container()
	if cont == nil {
		return errors.ValidationFailed("session", "no project open")
	}
	if _, ok := cont.Param(req.Name); !ok {
		return errors.ValidationFailed("name", fmt.Sprintf("unknown parameter %q", req.Name))
	}
	return c.s.Detector().Boundary("controller", func() error {
		return cont.SetParamFrozen(req.Name, req.Frozen)
	})
}
