package pulsar

import (
	"fmt"
	"sort"
)

// TOA is a single time-of-arrival record.
type TOA struct {
	MJD         MJD
	Freq        float64 // observing frequency, MHz
	Error       float64 // TOA uncertainty, microseconds
	Observatory string
	Flags       map[string]string
}

// cloneFlags copies the flag map (nil stays nil).
func cloneFlags(flags map[string]string) map[string]string {
	if flags == nil {
		return nil
	}
	cp := make(map[string]string, len(flags))
	for k, v := range flags {
		cp[k] = v
	}
	return cp
}

// flagKeys returns the flag keys in sorted order for stable digesting.
func flagKeys(flags map[string]string) []string {
	keys := make([]string, 0, len(flags))
	for k := range flags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TOACollection is an ordered sequence of TOAs plus a selection mask of the
// same length. Records are never deleted in place: DropDeselected produces a
// new collection, so "all TOAs" stays auditable against "current TOAs".
type TOACollection struct {
	toas     []TOA
	selected []bool
}

// NewTOACollection returns an empty collection.
func NewTOACollection() TOACollection {
	return TOACollection{}
}

// Append adds a TOA, selected by default.
func (tc *TOACollection) Append(t TOA) {
	tc.toas = append(tc.toas, t)
	tc.selected = append(tc.selected, true)
}

// Len returns the number of records (selected or not).
func (tc *TOACollection) Len() int {
	return len(tc.toas)
}

// NumSelected returns the number of records currently included.
func (tc *TOACollection) NumSelected() int {
	n := 0
	for _, s := range tc.selected {
		if s {
			n++
		}
	}
	return n
}

// TOAs returns a copy of all records in input-file order.
func (tc *TOACollection) TOAs() []TOA {
	out := make([]TOA, len(tc.toas))
	for i, t := range tc.toas {
		out[i] = t
		out[i].Flags = cloneFlags(t.Flags)
	}
	return out
}

// Selection returns a copy of the selection mask.
func (tc *TOACollection) Selection() []bool {
	out := make([]bool, len(tc.selected))
	copy(out, tc.selected)
	return out
}

// SetSelected flips a single mask entry.
func (tc *TOACollection) SetSelected(i int, selected bool) error {
	if i < 0 || i >= len(tc.selected) {
		return fmt.Errorf("TOA index %d out of range [0,%d)", i, len(tc.selected))
	}
	tc.selected[i] = selected
	return nil
}

// Deselect excludes the given record indices from the selection mask.
func (tc *TOACollection) Deselect(indices ...int) error {
	for _, i := range indices {
		if err := tc.SetSelected(i, false); err != nil {
			return err
		}
	}
	return nil
}

// Restore re-includes the given record indices.
func (tc *TOACollection) Restore(indices ...int) error {
	for _, i := range indices {
		if err := tc.SetSelected(i, true); err != nil {
			return err
		}
	}
	return nil
}

// DropDeselected returns a new collection containing only the selected
// records, all selected. The receiver is not modified.
func (tc *TOACollection) DropDeselected() TOACollection {
	out := TOACollection{}
	for i, t := range tc.toas {
		if tc.selected[i] {
			t.Flags = cloneFlags(t.Flags)
			out.Append(t)
		}
	}
	return out
}

// Clone returns a deep copy of the collection.
func (tc *TOACollection) Clone() TOACollection {
	cp := TOACollection{
		toas:     make([]TOA, len(tc.toas)),
		selected: make([]bool, len(tc.selected)),
	}
	for i, t := range tc.toas {
		cp.toas[i] = t
		cp.toas[i].Flags = cloneFlags(t.Flags)
	}
	copy(cp.selected, tc.selected)
	return cp
}
