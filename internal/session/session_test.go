package session

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"plk/internal/errors"
	"plk/internal/pulsar"
	"plk/internal/timing"
)

const sessionPar = `PSR     J1909-3744
F0      100.0       1   1e-9
F1      0.0         0
PEPOCH  55000.0
`

const sessionTim = `FORMAT 1
a.ff 1400.0 55000.0 1.0 gbt
b.ff 1400.0 55001.0 1.0 gbt
c.ff 1400.0 55002.0 1.0 gbt
d.ff 1400.0 55003.0 1.0 gbt
`

func writeProject(t *testing.T, par, tim string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	parPath := filepath.Join(dir, "test.par")
	timPath := filepath.Join(dir, "test.tim")
	require.NoError(t, os.WriteFile(parPath, []byte(par), 0o644))
	require.NoError(t, os.WriteFile(timPath, []byte(tim), 0o644))
	return parPath, timPath
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(timing.NewSpindownEngine(), logger)
}

func TestOpenFiresReplacementThenFacets(t *testing.T) {
	s := newTestSession(t)
	parPath, timPath := writeProject(t, sessionPar, sessionTim)

	var order []string
	s.Hub().Subscribe(pulsar.ChannelStateReplaced, func(p any) {
		snap := p.(pulsar.StateReplacedSnapshot)
		require.True(t, snap.Live)
		require.Equal(t, "J1909-3744", snap.PulsarName)
		order = append(order, "state_replaced")
	})
	s.Hub().Subscribe(pulsar.ChannelParameters, func(any) { order = append(order, "parameters") })
	s.Hub().Subscribe(pulsar.ChannelTOAs, func(any) { order = append(order, "toas") })
	s.Hub().Subscribe(pulsar.ChannelResiduals, func(p any) {
		snap := p.(pulsar.ResidualsSnapshot)
		require.True(t, snap.Valid)
		require.Equal(t, 4, snap.N)
		order = append(order, "residuals")
	})

	require.NoError(t, s.Open(parPath, timPath))
	require.Equal(t, []string{"state_replaced", "parameters", "toas", "residuals"}, order)
	require.True(t, s.Live())
	require.Equal(t, uint64(1), s.Generation())
}

func TestFailedOpenLeavesStateUntouched(t *testing.T) {
	s := newTestSession(t)
	parPath, timPath := writeProject(t, sessionPar, sessionTim)
	require.NoError(t, s.Open(parPath, timPath))
	gen := s.Generation()
	digest := s.Container().DigestParameters()

	notified := 0
	s.Hub().Subscribe(pulsar.ChannelParameters, func(any) { notified++ })

	badPar, _ := writeProject(t, "F0 100.0\nF1 1.0 notanint\n", sessionTim)
	err := s.Open(badPar, timPath)
	require.Error(t, err)
	require.True(t, errors.IsCategory(err, errors.CategoryParse))

	require.Equal(t, gen, s.Generation())
	require.Equal(t, digest, s.Container().DigestParameters())
	require.Zero(t, notified)
}

func TestOpenRejectsIncompatibleWindow(t *testing.T) {
	s := newTestSession(t)
	par := sessionPar + "START 60000\nFINISH 61000\n"
	parPath, timPath := writeProject(t, par, sessionTim)

	err := s.Open(parPath, timPath)
	require.Error(t, err)
	require.True(t, errors.IsCategory(err, errors.CategoryLoad))
	require.False(t, s.Live())
}

func TestCloseNotifiesThenClearsSubscriptions(t *testing.T) {
	s := newTestSession(t)
	parPath, timPath := writeProject(t, sessionPar, sessionTim)
	require.NoError(t, s.Open(parPath, timPath))

	closed := 0
	s.Hub().Subscribe(pulsar.ChannelStateReplaced, func(p any) {
		snap := p.(pulsar.StateReplacedSnapshot)
		if !snap.Live {
			closed++
		}
	})

	s.Close()
	require.Equal(t, 1, closed)
	require.False(t, s.Live())
	require.Zero(t, s.Hub().NumSubscribers(pulsar.ChannelStateReplaced))

	// Closing twice is a no-op.
	gen := s.Generation()
	s.Close()
	require.Equal(t, gen, s.Generation())
}

func TestReopenBumpsGenerationAndKeepsSubscribers(t *testing.T) {
	s := newTestSession(t)
	parPath, timPath := writeProject(t, sessionPar, sessionTim)
	require.NoError(t, s.Open(parPath, timPath))

	replaced := 0
	s.Hub().Subscribe(pulsar.ChannelStateReplaced, func(any) { replaced++ })

	otherPar, otherTim := writeProject(t, sessionPar, sessionTim)
	require.NoError(t, s.Open(otherPar, otherTim))
	require.Equal(t, uint64(2), s.Generation())
	require.Equal(t, 1, replaced)
	require.Equal(t, otherPar, s.Container().ParFile())
}

func TestOpenAppliesDefaultEphemeris(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	parPath, timPath := writeProject(t, sessionPar, sessionTim)

	s := New(timing.NewSpindownEngine(), logger, WithDefaultEphemeris("DE440"))
	require.NoError(t, s.Open(parPath, timPath))
	require.Equal(t, "DE440", s.Container().Meta("EPHEM"))

	// A source that names its own ephemeris keeps it.
	ownPar, ownTim := writeProject(t, sessionPar+"EPHEM DE421\n", sessionTim)
	require.NoError(t, s.Open(ownPar, ownTim))
	require.Equal(t, "DE421", s.Container().Meta("EPHEM"))
}

func TestParamSnapshotsDropOnReplace(t *testing.T) {
	s := newTestSession(t)
	parPath, timPath := writeProject(t, sessionPar, sessionTim)
	require.NoError(t, s.Open(parPath, timPath))

	s.PushParamSnapshot(s.Container().CloneParams())
	require.NoError(t, s.Open(parPath, timPath))
	_, ok := s.PopParamSnapshot()
	require.False(t, ok)

	s.PushParamSnapshot(s.Container().CloneParams())
	s.Close()
	_, ok = s.PopParamSnapshot()
	require.False(t, ok)
}

func TestRecomputeResidualsRequiresOpenProject(t *testing.T) {
	s := newTestSession(t)
	err := s.RecomputeResiduals()
	require.True(t, errors.IsCategory(err, errors.CategoryLoad))
}

func TestReloadReopensSameFiles(t *testing.T) {
	s := newTestSession(t)
	parPath, timPath := writeProject(t, sessionPar, sessionTim)
	require.NoError(t, s.Open(parPath, timPath))

	require.NoError(t, os.WriteFile(parPath, []byte(sessionPar+"DM 10.0\n"), 0o644))
	require.NoError(t, s.Reload())
	_, ok := s.Container().Param("DM")
	require.True(t, ok)
	require.Equal(t, uint64(2), s.Generation())
}
