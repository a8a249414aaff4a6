package detect

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"plk/internal/pulsar"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testContainer(t *testing.T) *pulsar.Container {
	t.Helper()
	ps := pulsar.NewParamSet()
	require.NoError(t, ps.Add(pulsar.Param{Name: "F0", Value: 100}))
	ps.SetMeta("PSR", "J0000+0000")

	tc := pulsar.NewTOACollection()
	for i := int64(0); i < 3; i++ {
		tc.Append(pulsar.TOA{MJD: pulsar.NewMJD(55000+i, 0), Freq: 1400, Error: 1, Observatory: "gbt"})
	}
	return pulsar.NewContainer(ps, tc, "a.par", "a.tim")
}

type captureRecorder struct {
	records []BoundaryRecord
}

func (c *captureRecorder) RecordBoundary(rec BoundaryRecord) {
	c.records = append(c.records, rec)
}

func setup(t *testing.T) (*Detector, *pulsar.Container, *pulsar.Hub, *captureRecorder) {
	t.Helper()
	c := testContainer(t)
	hub := pulsar.NewHub()
	rec := &captureRecorder{}
	d := New(func() *pulsar.Container { return c }, hub, testLogger(), WithRecorder(rec))
	return d, c, hub, rec
}

func TestBoundaryFiresOnlyChangedFacets(t *testing.T) {
	d, c, hub, _ := setup(t)

	var fired []string
	for _, ch := range []pulsar.Channel{pulsar.ChannelParameters, pulsar.ChannelTOAs, pulsar.ChannelResiduals} {
		ch := ch
		hub.Subscribe(ch, func(any) { fired = append(fired, string(ch)) })
	}

	err := d.Boundary("controller", func() error {
		return c.SetParamValue("F0", 100.1)
	})
	require.NoError(t, err)
	require.Equal(t, []string{"parameters"}, fired)

	fired = nil
	err = d.Boundary("controller", func() error {
		return c.Deselect(1)
	})
	require.NoError(t, err)
	require.Equal(t, []string{"toas"}, fired)
}

func TestBoundaryFiresAtMostOncePerChannel(t *testing.T) {
	d, c, hub, _ := setup(t)

	count := 0
	hub.Subscribe(pulsar.ChannelParameters, func(any) { count++ })

	err := d.Boundary("console", func() error {
		if err := c.SetParamValue("F0", 100.1); err != nil {
			return err
		}
		if err := c.SetParamValue("F0", 100.2); err != nil {
			return err
		}
		return c.SetParamFrozen("F0", true)
	})
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestBoundaryFixedNotificationOrder(t *testing.T) {
	d, c, hub, _ := setup(t)

	var fired []string
	hub.Subscribe(pulsar.ChannelResiduals, func(any) { fired = append(fired, "residuals") })
	hub.Subscribe(pulsar.ChannelTOAs, func(any) { fired = append(fired, "toas") })
	hub.Subscribe(pulsar.ChannelParameters, func(any) { fired = append(fired, "parameters") })

	// Mutate in the reverse order; delivery order must not depend on it.
	err := d.Boundary("controller", func() error {
		if err := c.Deselect(0); err != nil {
			return err
		}
		return c.SetParamValue("F0", 101)
	})
	require.NoError(t, err)
	require.Equal(t, []string{"parameters", "toas"}, fired)
}

func TestNestedBoundaryJoinsOuterPass(t *testing.T) {
	d, c, hub, rec := setup(t)

	count := 0
	hub.Subscribe(pulsar.ChannelParameters, func(any) { count++ })

	err := d.Boundary("console", func() error {
		require.True(t, d.InBoundary())
		return d.Boundary("controller", func() error {
			return c.SetParamValue("F0", 102)
		})
	})
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Len(t, rec.records, 1)
	require.Equal(t, "console", rec.records[0].Origin)
}

func TestBoundaryDetectsChangesDespiteFailure(t *testing.T) {
	d, c, hub, rec := setup(t)

	count := 0
	hub.Subscribe(pulsar.ChannelParameters, func(any) { count++ })

	boom := fmt.Errorf("boom")
	err := d.Boundary("controller", func() error {
		if err := c.SetParamValue("F0", 103); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, count)
	require.True(t, rec.records[0].Failed)
	require.Equal(t, "boom", rec.records[0].Err)
}

func TestNoopBoundaryFiresNothing(t *testing.T) {
	d, _, hub, rec := setup(t)

	count := 0
	hub.Subscribe(pulsar.ChannelParameters, func(any) { count++ })

	err := d.Boundary("controller", func() error { return nil })
	require.NoError(t, err)
	require.Zero(t, count)
	require.Empty(t, rec.records[0].Changed)
	require.Equal(t, rec.records[0].Before, rec.records[0].After)
}

func TestBoundaryRecoversDepthAfterPanic(t *testing.T) {
	d, c, hub, _ := setup(t)

	require.Panics(t, func() {
		_ = d.Boundary("console", func() error { panic("expression exploded") })
	})
	require.False(t, d.InBoundary())

	require.Panics(t, func() {
		_ = d.Boundary("console", func() error {
			return d.Boundary("controller", func() error { panic("inner") })
		})
	})
	require.False(t, d.InBoundary())

	// The next boundary must open fresh and fire normally.
	count := 0
	hub.Subscribe(pulsar.ChannelParameters, func(any) { count++ })
	err := d.Boundary("controller", func() error {
		return c.SetParamValue("F0", 105)
	})
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestBoundaryLogsCarryBoundaryContext(t *testing.T) {
	c := testContainer(t)
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	d := New(func() *pulsar.Container { return c }, pulsar.NewHub(), logger)

	err := d.Boundary("fit", func() error {
		return c.SetParamValue("F0", 106)
	})
	require.NoError(t, err)
	require.Contains(t, buf.String(), `"origin":"fit"`)
	require.Contains(t, buf.String(), `"boundary.id"`)

	buf.Reset()
	_ = d.Boundary("console", func() error { return fmt.Errorf("boom") })
	require.Contains(t, buf.String(), `"level":"WARN"`)
	require.Contains(t, buf.String(), `"origin":"console"`)
	require.Contains(t, buf.String(), `"error":"boom"`)
}

func TestBoundaryRecordCarriesDigests(t *testing.T) {
	d, c, _, rec := setup(t)

	err := d.Boundary("controller", func() error {
		return c.SetParamValue("F0", 104)
	})
	require.NoError(t, err)

	r := rec.records[0]
	require.NotEmpty(t, r.BoundaryID)
	require.NotEqual(t, r.Before.Params, r.After.Params)
	require.Equal(t, r.Before.TOAs, r.After.TOAs)
	require.Equal(t, []string{"parameters"}, r.Changed)
}
