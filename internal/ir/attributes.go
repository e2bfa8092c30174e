package ir

// Well-known attribute names. Attribute values are integers throughout;
// flag-like attributes use 1 for present.
const (
	// AttrGo marks a port that starts a cell or group when asserted.
	AttrGo = "go"
	// AttrDone marks a port that reads high when the matching go's work
	// completed. Go and done ports pair up through equal attribute values.
	AttrDone = "done"
	// AttrStatic records a known latency in cycles, on a go port or a
	// control node.
	AttrStatic = "static"
	// AttrPromotable records an inferred latency that would let a dynamic
	// construct be promoted to static timing.
	AttrPromotable = "promotable"
	// AttrStable marks an output that holds its value between writes.
	AttrStable = "stable"
	// AttrBound records a loop trip count known at compile time.
	AttrBound = "bound"
	// AttrSync marks cross-thread synchronization points.
	AttrSync = "sync"
	// AttrOneState forces the counter encoding for a static group
	// regardless of the planner's cutoff.
	AttrOneState = "one_state"
	// AttrNoInterface marks a component without the standard go/done
	// handshake.
	AttrNoInterface = "nointerface"
	// AttrNodeID is the stamped control-tree node id used by side tables.
	AttrNodeID = "node_id"
)

// Attributes maps attribute names to integer values. A nil map behaves as
// empty for reads.
type Attributes map[string]int64

// Has reports whether the attribute is present.
func (a Attributes) Has(name string) bool {
	_, ok := a[name]
	return ok
}

// Get returns the attribute's value, or 0 when absent.
func (a Attributes) Get(name string) int64 {
	return a[name]
}

// Lookup returns the value and whether it is present.
func (a Attributes) Lookup(name string) (int64, bool) {
	v, ok := a[name]
	return v, ok
}

// Set stores a value. The map must be non-nil.
func (a Attributes) Set(name string, value int64) {
	a[name] = value
}

// Clone returns an independent copy. Cloning nil yields an empty map.
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}
