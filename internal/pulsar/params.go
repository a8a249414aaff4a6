package pulsar

import (
	"fmt"
	"math"
	"sort"
)

// Param is a single timing-model parameter.
type Param struct {
	Name        string
	Value       float64
	Uncertainty float64
	Frozen      bool // frozen parameters are held fixed during fits
	Unit        string
}

// ParamSet is an insertion-ordered collection of uniquely named parameters.
// Order matters: it matches the parameter file and drives display order.
type ParamSet struct {
	params []Param
	index  map[string]int
	meta   map[string]string // non-numeric model metadata (PSR, EPHEM, CLK, ...)
}

// NewParamSet returns an empty parameter set.
func NewParamSet() ParamSet {
	return ParamSet{index: make(map[string]int), meta: make(map[string]string)}
}

// Add appends a parameter. Duplicate names are rejected.
func (ps *ParamSet) Add(p Param) error {
	if p.Name == "" {
		return fmt.Errorf("parameter name is empty")
	}
	if _, exists := ps.index[p.Name]; exists {
		return fmt.Errorf("duplicate parameter %q", p.Name)
	}
	if ps.index == nil {
		ps.index = make(map[string]int)
	}
	ps.index[p.Name] = len(ps.params)
	ps.params = append(ps.params, p)
	return nil
}

// Get returns the named parameter.
func (ps *ParamSet) Get(name string) (Param, bool) {
	i, ok := ps.index[name]
	if !ok {
		return Param{}, false
	}
	return ps.params[i], true
}

// Has reports whether the named parameter exists.
func (ps *ParamSet) Has(name string) bool {
	_, ok := ps.index[name]
	return ok
}

// SetValue updates the value of an existing parameter.
func (ps *ParamSet) SetValue(name string, value float64) error {
	i, ok := ps.index[name]
	if !ok {
		return fmt.Errorf("unknown parameter %q", name)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("parameter %q: value must be finite", name)
	}
	ps.params[i].Value = value
	return nil
}

// SetUncertainty updates the uncertainty of an existing parameter.
func (ps *ParamSet) SetUncertainty(name string, unc float64) error {
	i, ok := ps.index[name]
	if !ok {
		return fmt.Errorf("unknown parameter %q", name)
	}
	ps.params[i].Uncertainty = unc
	return nil
}

// SetFrozen updates the frozen flag of an existing parameter.
func (ps *ParamSet) SetFrozen(name string, frozen bool) error {
	i, ok := ps.index[name]
	if !ok {
		return fmt.Errorf("unknown parameter %q", name)
	}
	ps.params[i].Frozen = frozen
	return nil
}

// SetMeta records a non-numeric metadata entry (pulsar name, ephemeris, clock).
func (ps *ParamSet) SetMeta(key, value string) {
	if ps.meta == nil {
		ps.meta = make(map[string]string)
	}
	ps.meta[key] = value
}

// Meta returns the metadata value for key, or "".
func (ps *ParamSet) Meta(key string) string {
	return ps.meta[key]
}

// PulsarName returns the pulsar designation from the PSR/PSRJ metadata, or "".
func (ps *ParamSet) PulsarName() string {
	if v := ps.meta["PSR"]; v != "" {
		return v
	}
	return ps.meta["PSRJ"]
}

// Len returns the number of parameters.
func (ps *ParamSet) Len() int {
	return len(ps.params)
}

// Params returns a copy of the parameters in insertion order.
func (ps *ParamSet) Params() []Param {
	out := make([]Param, len(ps.params))
	copy(out, ps.params)
	return out
}

// Names returns the parameter names in insertion order.
func (ps *ParamSet) Names() []string {
	out := make([]string, len(ps.params))
	for i, p := range ps.params {
		out[i] = p.Name
	}
	return out
}

// Clone returns a deep copy, used for fit rollback snapshots.
func (ps *ParamSet) Clone() ParamSet {
	cp := ParamSet{
		params: make([]Param, len(ps.params)),
		index:  make(map[string]int, len(ps.index)),
		meta:   make(map[string]string, len(ps.meta)),
	}
	copy(cp.params, ps.params)
	for k, v := range ps.index {
		cp.index[k] = v
	}
	for k, v := range ps.meta {
		cp.meta[k] = v
	}
	return cp
}

// metaKeys returns metadata keys in sorted order for stable digesting.
func (ps *ParamSet) metaKeys() []string {
	keys := make([]string, 0, len(ps.meta))
	for k := range ps.meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
