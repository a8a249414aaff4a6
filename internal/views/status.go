// Package views holds the passive read models that hang off the notification
// hub. A view never touches the state container: everything it knows arrived
// as a snapshot payload, so re-rendering is a pure function of the last
// notifications received.
package views

import (
	"fmt"
	"strings"

	"plk/internal/pulsar"
)

// StatusView is a one-line summary of the open project, fed entirely by
// channel subscriptions.
type StatusView struct {
	pulsarName  string
	parFile     string
	numTOAs     int
	numSelected int
	rms         float64
	residValid  bool
	generation  uint64
	live        bool
}

// NewStatusView builds the view and subscribes it to the hub.
func NewStatusView(hub *pulsar.Hub) *StatusView {
	v := &StatusView{}
	hub.Subscribe(pulsar.ChannelStateReplaced, func(p any) {
		if snap, ok := p.(pulsar.StateReplacedSnapshot); ok {
			v.onStateReplaced(snap)
		}
	})
	hub.Subscribe(pulsar.ChannelParameters, func(p any) {
		if snap, ok := p.(pulsar.ParamsSnapshot); ok {
			v.pulsarName = snap.PulsarName
		}
	})
	hub.Subscribe(pulsar.ChannelTOAs, func(p any) {
		if snap, ok := p.(pulsar.TOAsSnapshot); ok {
			v.numTOAs = snap.N
			v.numSelected = snap.NumSelected
		}
	})
	hub.Subscribe(pulsar.ChannelResiduals, func(p any) {
		if snap, ok := p.(pulsar.ResidualsSnapshot); ok {
			v.rms = snap.RMS
			v.residValid = snap.Valid
		}
	})
	return v
}

func (v *StatusView) onStateReplaced(snap pulsar.StateReplacedSnapshot) {
	v.generation = snap.Generation
	v.live = snap.Live
	if !snap.Live {
		*v = StatusView{generation: snap.Generation}
		return
	}
	v.pulsarName = snap.PulsarName
	v.parFile = snap.ParFile
}

// Render produces the status line. Calling it twice without an intervening
// notification yields byte-identical output.
func (v *StatusView) Render() string {
	if !v.live {
		return "no project open"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s  toas %d/%d", v.pulsarName, v.numSelected, v.numTOAs)
	if v.residValid {
		fmt.Fprintf(&b, "  rms %.3f us", v.rms)
	} else {
		b.WriteString("  rms --")
	}
	fmt.Fprintf(&b, "  gen %d", v.generation)
	return b.String()
}
