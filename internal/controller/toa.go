package controller

import (
	"fmt"

	"plk/internal/errors"
	"plk/internal/session"
)

// TOAController mutates the TOA selection.
type TOAController struct {
	s *session.Session
}

// NewTOAController returns a controller bound to the session.
func NewTOAController(s *session.Session) *TOAController {
	return &TOAController{s: s}
}

// SelectionRequest names TOA records by index.
type SelectionRequest struct {
	Indices []int
}

// validate rejects the whole request before any index is applied, so a bad
// index can never leave a half-updated mask behind.
func (c *TOAController) validate(req SelectionRequest) error {
	cont := c.s.Container()
	if cont == nil {
		return errors.ValidationFailed("session", "no project open")
	}
	if len(req.Indices) == 0 {
		return errors.ValidationFailed("indices", "empty selection request")
	}
	n := cont.NumTOAs()
	for _, i := range req.Indices {
		if i < 0 || i >= n {
			return errors.ValidationFailed("indices", fmt.Sprintf("index %d out of range [0,%d)", i, n))
		}
	}
	return nil
}

// Deselect excludes the named records.
func (c *TOAController) Deselect(req SelectionRequest) error {
	if err := c.validate(req); err != nil {
		return err
	}
	return c.s.Detector().Boundary("controller", func() error {
		return c.s.Container().Deselect(req.Indices...)
	})
}

// Restore re-includes the named records.
func (c *TOAController) Restore(req SelectionRequest) error {
	if err := c.validate(req); err != nil {
		return err
	}
	return c.s.Detector().Boundary("controller", func() error {
		return c.s.Container().Restore(req.Indices...)
	})
}

// DropDeselected discards the deselected records for good, replacing the
// collection with one holding only the survivors.
func (c *TOAController) DropDeselected() error {
	cont := c.s.Container()
	if cont == nil {
		return errors.ValidationFailed("session", "no project open")
	}
	if cont.NumSelected() == 0 {
		return errors.ValidationFailed("selection", "dropping would leave no TOAs")
	}
	return c.s.Detector().Boundary("controller", func() error {
		cont.DropDeselected()
		return nil
	})
}
