package pulsar

import "math"

// MJD is a modified Julian date split into an integer day and a fractional
// day, so that microsecond-level offsets survive arithmetic that a single
// float64 MJD would swallow.
type MJD struct {
	Day  int64
	Frac float64 // [0, 1)
}

// NewMJD builds a normalized MJD from an integer day and fractional day.
func NewMJD(day int64, frac float64) MJD {
	m := MJD{Day: day, Frac: frac}
	return m.normalize()
}

// MJDFromFloat splits a float MJD. Only suitable for values where sub-second
// precision does not matter (reference epochs, range checks).
func MJDFromFloat(v float64) MJD {
	day := math.Floor(v)
	return NewMJD(int64(day), v-day)
}

func (m MJD) normalize() MJD {
	for m.Frac >= 1 {
		m.Frac--
		m.Day++
	}
	for m.Frac < 0 {
		m.Frac++
		m.Day--
	}
	return m
}

// Float collapses the pair into a single float64 MJD.
func (m MJD) Float() float64 {
	return float64(m.Day) + m.Frac
}

// SecondsSince returns the elapsed seconds from ref to m. The integer and
// fractional parts are differenced separately before scaling.
func (m MJD) SecondsSince(ref MJD) float64 {
	return (float64(m.Day-ref.Day) + (m.Frac - ref.Frac)) * 86400.0
}

// Before reports whether m is earlier than other.
func (m MJD) Before(other MJD) bool {
	if m.Day != other.Day {
		return m.Day < other.Day
	}
	return m.Frac < other.Frac
}
