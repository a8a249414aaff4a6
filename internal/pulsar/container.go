package pulsar

// Container owns the canonical state of one open project: the timing-model
// parameters, the TOA collection, and the derived residual cache. It exposes
// the only sanctioned accessors and mutators; nothing outside this package
// can reach the underlying slices.
//
// The container does not notify anyone. Change detection and channel firing
// happen at the mutation boundary (see the detect package), which is what
// makes controller-driven and console-driven mutation observably identical.
type Container struct {
	params ParamSet
	toas   TOACollection
	resid  *ResidualSet

	parFile string
	timFile string
}

// NewContainer builds a container around fully parsed inputs.
func NewContainer(params ParamSet, toas TOACollection, parFile, timFile string) *Container {
	return &Container{
		params:  params,
		toas:    toas,
		parFile: parFile,
		timFile: timFile,
	}
}

// ParFile returns the parameter source path this state was loaded from.
func (c *Container) ParFile() string { return c.parFile }

// TimFile returns the TOA source path this state was loaded from.
func (c *Container) TimFile() string { return c.timFile }

// PulsarName returns the pulsar designation, or "".
func (c *Container) PulsarName() string { return c.params.PulsarName() }

// Meta returns one model metadata entry (EPHEM, CLK, ...), or "".
func (c *Container) Meta(key string) string { return c.params.Meta(key) }

// Param returns a copy of the named parameter.
func (c *Container) Param(name string) (Param, bool) {
	return c.params.Get(name)
}

// Params returns a copy of all parameters in display order.
func (c *Container) Params() []Param {
	return c.params.Params()
}

// NumTOAs returns the total record count.
func (c *Container) NumTOAs() int { return c.toas.Len() }

// NumSelected returns the included record count.
func (c *Container) NumSelected() int { return c.toas.NumSelected() }

// Selection returns a copy of the selection mask.
func (c *Container) Selection() []bool { return c.toas.Selection() }

// TOAs returns a copy of all TOA records.
func (c *Container) TOAs() []TOA { return c.toas.TOAs() }

// Mutators. Each one is apply-all-or-nothing from the caller's perspective:
// validation failures return before any field is touched.

// SetParamValue updates one parameter value.
func (c *Container) SetParamValue(name string, value float64) error {
	return c.params.SetValue(name, value)
}

// SetParamFrozen updates one parameter's frozen flag.
func (c *Container) SetParamFrozen(name string, frozen bool) error {
	return c.params.SetFrozen(name, frozen)
}

// SetParamUncertainty updates one parameter's uncertainty.
func (c *Container) SetParamUncertainty(name string, unc float64) error {
	return c.params.SetUncertainty(name, unc)
}

// Deselect excludes TOA records from the selection mask.
func (c *Container) Deselect(indices ...int) error {
	return c.toas.Deselect(indices...)
}

// Restore re-includes TOA records.
func (c *Container) Restore(indices ...int) error {
	return c.toas.Restore(indices...)
}

// DropDeselected replaces the TOA collection with one holding only the
// selected records. The old collection is discarded wholesale; records are
// never removed in place.
func (c *Container) DropDeselected() {
	c.toas = c.toas.DropDeselected()
}

// CloneParams snapshots the parameter set for fit rollback.
func (c *Container) CloneParams() ParamSet {
	return c.params.Clone()
}

// RestoreParams reinstates a previously cloned parameter set.
func (c *Container) RestoreParams(ps ParamSet) {
	c.params = ps
}

// ComputePrefitResiduals runs the numeric collaborator over the current
// parameters and selected TOAs and replaces the residual cache, keyed by the
// input digests it was computed from.
func (c *Container) ComputePrefitResiduals(compute ResidualFunc) (*ResidualSet, error) {
	data, err := compute(c.params.Params(), c.toas.TOAs(), c.toas.Selection())
	if err != nil {
		return nil, err
	}
	c.resid = newResidualSet(data, DigestParams(&c.params), DigestTOAs(&c.toas))
	return c.resid.clone(), nil
}

// Residuals returns a copy of the cached residual set, or nil when the cache
// is stale (its input digests no longer match the live facets) or absent.
func (c *Container) Residuals() *ResidualSet {
	if !c.residualsValid() {
		return nil
	}
	return c.resid.clone()
}

func (c *Container) residualsValid() bool {
	return c.resid != nil &&
		c.resid.ParamsDigest == DigestParams(&c.params) &&
		c.resid.TOAsDigest == DigestTOAs(&c.toas)
}

// Digests. Defined over any reachable internal state; they never fail.

// DigestParameters digests the parameter facet.
func (c *Container) DigestParameters() Digest { return DigestParams(&c.params) }

// DigestTOAs digests the TOA facet.
func (c *Container) DigestTOAs() Digest { return DigestTOAs(&c.toas) }

// DigestResiduals digests the effective residual facet: zero when the cache
// is absent or stale. A mutation that merely invalidates the cache therefore
// still changes this digest, so subscribers hear that their numbers died.
func (c *Container) DigestResiduals() Digest {
	if !c.residualsValid() {
		return 0
	}
	return DigestResiduals(c.resid)
}

// Snapshot builders for the notification channels.

// ParamsSnapshot builds the parameters-changed payload.
func (c *Container) ParamsSnapshot() ParamsSnapshot {
	return ParamsSnapshot{PulsarName: c.PulsarName(), Params: c.Params()}
}

// TOAsSnapshot builds the toas-changed payload.
func (c *Container) TOAsSnapshot() TOAsSnapshot {
	return TOAsSnapshot{N: c.NumTOAs(), NumSelected: c.NumSelected(), Selection: c.Selection()}
}

// ResidualsSnapshot builds the residuals-changed payload. Valid is false when
// the cache is stale or absent, so subscribers can blank their display
// instead of showing numbers from a superseded model.
func (c *Container) ResidualsSnapshot() ResidualsSnapshot {
	rs := c.Residuals()
	if rs == nil {
		return ResidualsSnapshot{}
	}
	return ResidualsSnapshot{
		Epochs:    rs.Epochs,
		Residuals: rs.Residuals,
		Errors:    rs.Errors,
		N:         rs.N,
		RMS:       rs.RMS,
		Valid:     true,
	}
}
