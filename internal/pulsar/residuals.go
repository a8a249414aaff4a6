package pulsar

// ResidualData is the raw output of the numeric residual collaborator for the
// currently selected TOAs.
type ResidualData struct {
	Epochs    []float64 // MJD, one per included TOA
	Residuals []float64 // microseconds
	Errors    []float64 // microseconds
	RMS       float64   // microseconds
}

// ResidualFunc is the seam to the numeric collaborator: a pure function of the
// parameters and the selected TOAs.
type ResidualFunc func(params []Param, toas []TOA, selected []bool) (ResidualData, error)

// ResidualSet is the cached, derived residual facet. It is only valid while
// its recorded input digests match the live parameter and TOA digests.
type ResidualSet struct {
	Epochs    []float64
	Residuals []float64
	Errors    []float64
	N         int
	RMS       float64

	// Digests of the inputs this set was computed from.
	ParamsDigest Digest
	TOAsDigest   Digest
}

func newResidualSet(data ResidualData, paramsDigest, toasDigest Digest) *ResidualSet {
	return &ResidualSet{
		Epochs:       data.Epochs,
		Residuals:    data.Residuals,
		Errors:       data.Errors,
		N:            len(data.Epochs),
		RMS:          data.RMS,
		ParamsDigest: paramsDigest,
		TOAsDigest:   toasDigest,
	}
}

// clone returns a deep copy suitable for handing out as a snapshot.
func (rs *ResidualSet) clone() *ResidualSet {
	if rs == nil {
		return nil
	}
	cp := *rs
	cp.Epochs = append([]float64(nil), rs.Epochs...)
	cp.Residuals = append([]float64(nil), rs.Residuals...)
	cp.Errors = append([]float64(nil), rs.Errors...)
	return &cp
}
