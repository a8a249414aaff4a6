package controller

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"plk/internal/errors"
	"plk/internal/pulsar"
	"plk/internal/session"
	"plk/internal/timing"
)

const testPar = `PSR     J0437-4715
F0      100.000000001   1   1e-9
F1      0.0             0
PEPOCH  55000.0
`

const testTim = `FORMAT 1
a.ff 1400.0 55000.0 1.0 pks
b.ff 1400.0 55001.0 1.0 pks
c.ff 1400.0 55002.0 1.0 pks
d.ff 1400.0 55003.0 1.0 pks
`

func openSession(t *testing.T) *session.Session {
	t.Helper()
	dir := t.TempDir()
	parPath := filepath.Join(dir, "t.par")
	timPath := filepath.Join(dir, "t.tim")
	require.NoError(t, os.WriteFile(parPath, []byte(testPar), 0o644))
	require.NoError(t, os.WriteFile(timPath, []byte(testTim), 0o644))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := session.New(timing.NewSpindownEngine(), logger)
	require.NoError(t, s.Open(parPath, timPath))
	return s
}

func TestSetValueValidatesBeforeMutating(t *testing.T) {
	s := openSession(t)
	pc := NewParamController(s)
	digest := s.Container().DigestParameters()

	err := pc.SetValue(SetValueRequest{Name: "NOPE", Value: 1})
	require.True(t, errors.IsCategory(err, errors.CategoryValidation))
	require.Equal(t, digest, s.Container().DigestParameters())

	notified := 0
	s.Hub().Subscribe(pulsar.ChannelParameters, func(any) { notified++ })
	require.NoError(t, pc.SetValue(SetValueRequest{Name: "F0", Value: 100.5}))
	require.Equal(t, 1, notified)

	p, _ := s.Container().Param("F0")
	require.Equal(t, 100.5, p.Value)
}

func TestSetFrozenFiresParametersChannel(t *testing.T) {
	s := openSession(t)
	pc := NewParamController(s)

	notified := 0
	s.Hub().Subscribe(pulsar.ChannelParameters, func(any) { notified++ })
	require.NoError(t, pc.SetFrozen(SetFrozenRequest{Name: "F1", Frozen: false}))
	require.Equal(t, 1, notified)
}

func TestDeselectRejectsWholeRequestOnBadIndex(t *testing.T) {
	s := openSession(t)
	tc := NewTOAController(s)

	// Index 99 is invalid; index 0 must not be applied either.
	err := tc.Deselect(SelectionRequest{Indices: []int{0, 99}})
	require.True(t, errors.IsCategory(err, errors.CategoryValidation))
	require.Equal(t, 4, s.Container().NumSelected())

	require.NoError(t, tc.Deselect(SelectionRequest{Indices: []int{2}}))
	require.Equal(t, 3, s.Container().NumSelected())
}

func TestDropDeselectedRefusesToEmptyState(t *testing.T) {
	s := openSession(t)
	tc := NewTOAController(s)

	require.NoError(t, tc.Deselect(SelectionRequest{Indices: []int{0, 1, 2, 3}}))
	err := tc.DropDeselected()
	require.True(t, errors.IsCategory(err, errors.CategoryValidation))
	require.Equal(t, 4, s.Container().NumTOAs())

	require.NoError(t, tc.Restore(SelectionRequest{Indices: []int{0, 1}}))
	require.NoError(t, tc.DropDeselected())
	require.Equal(t, 2, s.Container().NumTOAs())
	require.Equal(t, 2, s.Container().NumSelected())
}

func TestFitAdjustsParametersAndRefreshesResiduals(t *testing.T) {
	s := openSession(t)
	fc := NewFitController(s)

	var fired []string
	s.Hub().Subscribe(pulsar.ChannelParameters, func(any) { fired = append(fired, "parameters") })
	s.Hub().Subscribe(pulsar.ChannelResiduals, func(any) { fired = append(fired, "residuals") })

	report, err := fc.Run(RunRequest{})
	require.NoError(t, err)
	require.LessOrEqual(t, report.PostfitRMS, report.PrefitRMS)
	require.Equal(t, []string{"parameters", "residuals"}, fired)

	f0, _ := s.Container().Param("F0")
	require.InDelta(t, 100.0, f0.Value, 1e-10)
	require.NotNil(t, s.Container().Residuals())
}

func TestFitFailureRollsBackParameters(t *testing.T) {
	s := openSession(t)
	pc := NewParamController(s)
	fc := NewFitController(s)

	// Freeze everything so the fit has no free parameters.
	require.NoError(t, pc.SetFrozen(SetFrozenRequest{Name: "F0", Frozen: true}))
	digest := s.Container().DigestParameters()

	_, err := fc.Run(RunRequest{MaxIter: 5})
	require.True(t, errors.IsCategory(err, errors.CategoryFit))
	require.Equal(t, digest, s.Container().DigestParameters())

	// The failed run rolled back on the spot; nothing was recorded to revert.
	err = fc.Revert()
	require.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestRevertRestoresPrefitParameters(t *testing.T) {
	s := openSession(t)
	fc := NewFitController(s)
	before := s.Container().DigestParameters()

	_, err := fc.Run(RunRequest{})
	require.NoError(t, err)
	require.NotEqual(t, before, s.Container().DigestParameters())

	var fired []string
	s.Hub().Subscribe(pulsar.ChannelParameters, func(any) { fired = append(fired, "parameters") })
	s.Hub().Subscribe(pulsar.ChannelResiduals, func(any) { fired = append(fired, "residuals") })

	require.NoError(t, fc.Revert())
	require.Equal(t, before, s.Container().DigestParameters())
	require.Equal(t, []string{"parameters", "residuals"}, fired)
	require.NotNil(t, s.Container().Residuals())

	// One fit happened, one revert spent it.
	err = fc.Revert()
	require.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestFitValidatesMaxIter(t *testing.T) {
	s := openSession(t)
	fc := NewFitController(s)

	_, err := fc.Run(RunRequest{MaxIter: -1})
	require.True(t, errors.IsCategory(err, errors.CategoryValidation))

	_, err = fc.Run(RunRequest{MaxIter: 100000})
	require.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestControllersRejectClosedSession(t *testing.T) {
	s := openSession(t)
	s.Close()

	err := NewParamController(s).SetValue(SetValueRequest{Name: "F0", Value: 1})
	require.True(t, errors.IsCategory(err, errors.CategoryValidation))
	err = NewTOAController(s).Deselect(SelectionRequest{Indices: []int{0}})
	require.True(t, errors.IsCategory(err, errors.CategoryValidation))
	_, err = NewFitController(s).Run(RunRequest{})
	require.True(t, errors.IsCategory(err, errors.CategoryValidation))
}
