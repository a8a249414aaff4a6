package console

import (
	"fmt"

	"plk/internal/controller"
	"plk/internal/errors"
)

// Handle is the "psr" object console expressions see. It is bound to one
// state generation; after the state is replaced, every method on a retained
// handle fails with a stale-reference error rather than answering from a
// state that no longer exists.
type Handle struct {
	bridge *Bridge
	gen    uint64
}

func (h *Handle) check() error {
	live := h.bridge.s.Generation()
	if h.gen != live || !h.bridge.s.Live() {
		return errors.StaleReference(h.gen, live)
	}
	return nil
}

// Name returns the pulsar designation.
func (h *Handle) Name() (string, error) {
	if err := h.check(); err != nil {
		return "", err
	}
	return h.bridge.s.Container().PulsarName(), nil
}

// Param returns one parameter value.
func (h *Handle) Param(name string) (float64, error) {
	if err := h.check(); err != nil {
		return 0, err
	}
	p, ok := h.bridge.s.Container().Param(name)
	if !ok {
		return 0, errors.ValidationFailed("name", fmt.Sprintf("unknown parameter %q", name))
	}
	return p.Value, nil
}

// SetParam updates one parameter value through the parameter controller.
// Accepts int or float literals, since console integers arrive untyped.
func (h *Handle) SetParam(name string, value any) (bool, error) {
	if err := h.check(); err != nil {
		return false, err
	}
	v, err := toFloat(value)
	if err != nil {
		return false, errors.ValidationFailed("value", err.Error())
	}
	if err := h.bridge.params.SetValue(controller.SetValueRequest{Name: name, Value: v}); err != nil {
		return false, err
	}
	return true, nil
}

// Freeze holds a parameter fixed in subsequent fits.
func (h *Handle) Freeze(name string) (bool, error) {
	if err := h.check(); err != nil {
		return false, err
	}
	if err := h.bridge.params.SetFrozen(controller.SetFrozenRequest{Name: name, Frozen: true}); err != nil {
		return false, err
	}
	return true, nil
}

// Thaw releases a parameter for fitting.
func (h *Handle) Thaw(name string) (bool, error) {
	if err := h.check(); err != nil {
		return false, err
	}
	if err := h.bridge.params.SetFrozen(controller.SetFrozenRequest{Name: name, Frozen: false}); err != nil {
		return false, err
	}
	return true, nil
}

// Deselect excludes one TOA record.
func (h *Handle) Deselect(index int) (bool, error) {
	if err := h.check(); err != nil {
		return false, err
	}
	if err := h.bridge.toas.Deselect(controller.SelectionRequest{Indices: []int{index}}); err != nil {
		return false, err
	}
	return true, nil
}

// Restore re-includes one TOA record.
func (h *Handle) Restore(index int) (bool, error) {
	if err := h.check(); err != nil {
		return false, err
	}
	if err := h.bridge.toas.Restore(controller.SelectionRequest{Indices: []int{index}}); err != nil {
		return false, err
	}
	return true, nil
}

// NumTOAs returns the total record count.
func (h *Handle) NumTOAs() (int, error) {
	if err := h.check(); err != nil {
		return 0, err
	}
	return h.bridge.s.Container().NumTOAs(), nil
}

// NumSelected returns the included record count.
func (h *Handle) NumSelected() (int, error) {
	if err := h.check(); err != nil {
		return 0, err
	}
	return h.bridge.s.Container().NumSelected(), nil
}

// Rms returns the RMS of the current residuals in microseconds, recomputing
// when the cache is stale.
func (h *Handle) Rms() (float64, error) {
	if err := h.check(); err != nil {
		return 0, err
	}
	cont := h.bridge.s.Container()
	if rs := cont.Residuals(); rs != nil {
		return rs.RMS, nil
	}
	if err := h.bridge.s.RecomputeResiduals(); err != nil {
		return 0, err
	}
	return cont.Residuals().RMS, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("value %v (%T) is not numeric", v, v)
	}
}
