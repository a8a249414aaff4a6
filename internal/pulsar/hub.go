package pulsar

// Channel names one facet-scoped notification channel.
type Channel string

const (
	ChannelParameters    Channel = "parameters"
	ChannelTOAs          Channel = "toas"
	ChannelResiduals     Channel = "residuals"
	ChannelStateReplaced Channel = "state_replaced"
)

// Snapshot payload types. All payloads are copies: subscribers cannot reach
// the canonical state through them.

// ParamsSnapshot is the payload of ChannelParameters.
type ParamsSnapshot struct {
	PulsarName string
	Params     []Param
}

// TOAsSnapshot is the payload of ChannelTOAs.
type TOAsSnapshot struct {
	N           int
	NumSelected int
	Selection   []bool
}

// ResidualsSnapshot is the payload of ChannelResiduals.
type ResidualsSnapshot struct {
	Epochs    []float64
	Residuals []float64
	Errors    []float64
	N         int
	RMS       float64
	Valid     bool // false when no valid cached residual set exists
}

// StateReplacedSnapshot is the payload of ChannelStateReplaced. Live is false
// when the project was closed rather than switched.
type StateReplacedSnapshot struct {
	Generation uint64
	ParFile    string
	TimFile    string
	PulsarName string
	Live       bool
}

// Subscription identifies one subscriber for later removal.
type Subscription int

type hubEntry struct {
	id Subscription
	fn func(payload any)
}

// Hub is a synchronous, multi-subscriber notification dispatcher. Delivery is
// fire-and-forget on the caller's goroutine, in subscription order. The hub is
// single-threaded by contract (see the session's serialization model) and
// outlives any one state container, so views keep their subscriptions across
// project switches.
type Hub struct {
	nextID Subscription
	subs   map[Channel][]hubEntry
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[Channel][]hubEntry)}
}

// Subscribe registers fn on the channel and returns its subscription id.
func (h *Hub) Subscribe(ch Channel, fn func(payload any)) Subscription {
	h.nextID++
	h.subs[ch] = append(h.subs[ch], hubEntry{id: h.nextID, fn: fn})
	return h.nextID
}

// Unsubscribe removes one subscription from every channel it appears on.
// The entry list is copied rather than compacted in place: a subscriber may
// unsubscribe during a publish, and the delivery loop keeps iterating the
// slice it started with.
func (h *Hub) Unsubscribe(id Subscription) {
	for ch, entries := range h.subs {
		kept := make([]hubEntry, 0, len(entries))
		for _, e := range entries {
			if e.id != id {
				kept = append(kept, e)
			}
		}
		h.subs[ch] = kept
	}
}

// Publish delivers the payload to every subscriber of the channel, in
// subscription order, synchronously.
func (h *Hub) Publish(ch Channel, payload any) {
	for _, e := range h.subs[ch] {
		e.fn(payload)
	}
}

// Clear drops all subscriptions. Called on project close so no stale
// subscriber can be notified about a state that no longer exists.
func (h *Hub) Clear() {
	h.subs = make(map[Channel][]hubEntry)
}

// NumSubscribers reports the subscriber count on one channel (for tests and
// status displays).
func (h *Hub) NumSubscribers(ch Channel) int {
	return len(h.subs[ch])
}
