package views

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"plk/internal/controller"
	"plk/internal/session"
	"plk/internal/timing"
)

const viewsPar = `PSR     B1937+21
F0      100.0   1   1e-9
PEPOCH  55000.0
`

const viewsTim = `FORMAT 1
a.ff 1400.0 55000.0 1.0 ao
b.ff 1400.0 55001.0 1.0 ao
c.ff 1400.0 55002.0 1.0 ao
`

func openWithViews(t *testing.T) (*session.Session, *StatusView, *PlotData) {
	t.Helper()
	dir := t.TempDir()
	parPath := filepath.Join(dir, "v.par")
	timPath := filepath.Join(dir, "v.tim")
	require.NoError(t, os.WriteFile(parPath, []byte(viewsPar), 0o644))
	require.NoError(t, os.WriteFile(timPath, []byte(viewsTim), 0o644))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := session.New(timing.NewSpindownEngine(), logger)
	status := NewStatusView(s.Hub())
	plot := NewPlotData(s.Hub())
	require.NoError(t, s.Open(parPath, timPath))
	return s, status, plot
}

func TestStatusViewFollowsNotifications(t *testing.T) {
	s, status, _ := openWithViews(t)

	line := status.Render()
	require.Contains(t, line, "B1937+21")
	require.Contains(t, line, "toas 3/3")
	require.Contains(t, line, "gen 1")

	// Re-rendering without new notifications is stable.
	require.Equal(t, line, status.Render())

	tc := controller.NewTOAController(s)
	require.NoError(t, tc.Deselect(controller.SelectionRequest{Indices: []int{1}}))
	require.Contains(t, status.Render(), "toas 2/3")
}

func TestStatusViewBlanksRMSOnStaleResiduals(t *testing.T) {
	s, status, _ := openWithViews(t)
	require.Contains(t, status.Render(), "rms 0.000")

	// A parameter edit invalidates the cache; the view hears Valid=false.
	pc := controller.NewParamController(s)
	require.NoError(t, pc.SetValue(controller.SetValueRequest{Name: "F0", Value: 100.1}))
	require.Contains(t, status.Render(), "rms --")
}

func TestStatusViewOnClose(t *testing.T) {
	s, status, _ := openWithViews(t)
	s.Close()
	require.Equal(t, "no project open", status.Render())
}

func TestPlotDataTracksResidualValidity(t *testing.T) {
	s, _, plot := openWithViews(t)
	require.True(t, plot.Valid())
	require.Equal(t, 3, plot.Len())

	epochs, residuals, errs := plot.Series()
	require.Len(t, epochs, 3)
	require.Len(t, residuals, 3)
	require.Len(t, errs, 3)

	// Mutating the returned slices does not reach the view.
	residuals[0] = 99
	_, again, _ := plot.Series()
	require.NotEqual(t, 99.0, again[0])

	pc := controller.NewParamController(s)
	require.NoError(t, pc.SetValue(controller.SetValueRequest{Name: "F0", Value: 100.1}))
	require.False(t, plot.Valid())
	require.Zero(t, plot.Len())

	require.NoError(t, s.RecomputeResiduals())
	require.True(t, plot.Valid())
	require.Equal(t, 3, plot.Len())
}
