package views

import "plk/internal/pulsar"

// PlotData mirrors the residuals channel into the series a plot widget draws
// from. When the residual cache goes stale, Valid flips false and the series
// empty out, so a plot blanks instead of showing numbers from a superseded
// model.
type PlotData struct {
	epochs    []float64
	residuals []float64
	errors    []float64
	valid     bool
}

// NewPlotData builds the series holder and subscribes it to the hub.
func NewPlotData(hub *pulsar.Hub) *PlotData {
	pd := &PlotData{}
	hub.Subscribe(pulsar.ChannelResiduals, func(p any) {
		if snap, ok := p.(pulsar.ResidualsSnapshot); ok {
			pd.update(snap)
		}
	})
	hub.Subscribe(pulsar.ChannelStateReplaced, func(p any) {
		if snap, ok := p.(pulsar.StateReplacedSnapshot); ok && !snap.Live {
			pd.update(pulsar.ResidualsSnapshot{})
		}
	})
	return pd
}

func (pd *PlotData) update(snap pulsar.ResidualsSnapshot) {
	if !snap.Valid {
		pd.epochs, pd.residuals, pd.errors = nil, nil, nil
		pd.valid = false
		return
	}
	pd.epochs = append(pd.epochs[:0], snap.Epochs...)
	pd.residuals = append(pd.residuals[:0], snap.Residuals...)
	pd.errors = append(pd.errors[:0], snap.Errors...)
	pd.valid = true
}

// Valid reports whether the series reflect a live residual set.
func (pd *PlotData) Valid() bool { return pd.valid }

// Series returns copies of the plotted arrays.
func (pd *PlotData) Series() (epochs, residuals, errors []float64) {
	return append([]float64(nil), pd.epochs...),
		append([]float64(nil), pd.residuals...),
		append([]float64(nil), pd.errors...)
}

// Len returns the number of plotted points.
func (pd *PlotData) Len() int { return len(pd.residuals) }
