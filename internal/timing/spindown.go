package timing

import (
	"fmt"
	"math"

	"plk/internal/errors"
	"plk/internal/pulsar"
)

// SpindownEngine is an isolated-pulsar rotational model: phase is a Taylor
// expansion in F0 and F1 around PEPOCH. Residual is the offset of each arrival
// from the nearest integer turn, converted to time.
type SpindownEngine struct{}

// NewSpindownEngine returns the spin-down engine.
func NewSpindownEngine() *SpindownEngine {
	return &SpindownEngine{}
}

type spindownModel struct {
	f0     float64
	f1     float64
	pepoch pulsar.MJD
}

func buildModel(params []pulsar.Param, toas []pulsar.TOA) (spindownModel, error) {
	m := spindownModel{}
	havePepoch := false
	for _, p := range params {
		switch p.Name {
		case "F0":
			m.f0 = p.Value
		case "F1":
			m.f1 = p.Value
		case "PEPOCH":
			m.pepoch = pulsar.MJDFromFloat(p.Value)
			havePepoch = true
		}
	}
	if m.f0 <= 0 {
		return m, errors.ValidationFailed("F0", "spin frequency must be positive")
	}
	if !havePepoch {
		if len(toas) == 0 {
			return m, errors.ValidationFailed("PEPOCH", "no reference epoch and no TOAs to derive one from")
		}
		m.pepoch = toas[0].MJD
	}
	return m, nil
}

// phase returns rotational phase in turns at the given arrival time.
func (m spindownModel) phase(t pulsar.MJD) float64 {
	dt := t.SecondsSince(m.pepoch)
	return m.f0*dt + 0.5*m.f1*dt*dt
}

// Residuals computes phase residuals in microseconds for the selected TOAs.
func (e *SpindownEngine) Residuals(params []pulsar.Param, toas []pulsar.TOA, selected []bool) (pulsar.ResidualData, error) {
	m, err := buildModel(params, toas)
	if err != nil {
		return pulsar.ResidualData{}, err
	}

	data := pulsar.ResidualData{}
	sumSq := 0.0
	for i, t := range toas {
		if i < len(selected) && !selected[i] {
			continue
		}
		phase := m.phase(t.MJD)
		turns := phase - math.Round(phase)
		resid := turns / m.f0 * 1e6
		data.Epochs = append(data.Epochs, t.MJD.Float())
		data.Residuals = append(data.Residuals, resid)
		data.Errors = append(data.Errors, t.Error)
		sumSq += resid * resid
	}
	if len(data.Residuals) == 0 {
		return pulsar.ResidualData{}, errors.ValidationFailed("selection", "no TOAs selected")
	}
	data.RMS = math.Sqrt(sumSq / float64(len(data.Residuals)))
	return data, nil
}

// fittable names the parameters this engine can adjust.
var fittable = map[string]bool{"F0": true, "F1": true}

// Fit runs iterated weighted least squares on the unfrozen spin parameters.
// Frozen parameters and anything outside the spin-down model are held fixed.
func (e *SpindownEngine) Fit(params []pulsar.Param, toas []pulsar.TOA, selected []bool, maxIter int) ([]pulsar.Param, FitReport, error) {
	free := freeParams(params)
	if len(free) == 0 {
		return nil, FitReport{}, errors.FitFailed("no free parameters", nil)
	}
	if maxIter < 1 {
		maxIter = 1
	}

	work := append([]pulsar.Param(nil), params...)
	report := FitReport{Fitted: free}

	pre, err := e.Residuals(work, toas, selected)
	if err != nil {
		return nil, FitReport{}, err
	}
	report.PrefitRMS = pre.RMS

	for iter := 0; iter < maxIter; iter++ {
		report.Iterations = iter + 1
		adjusted, converged, err := e.fitStep(work, toas, selected, free)
		if err != nil {
			return nil, FitReport{}, err
		}
		work = adjusted
		if converged {
			break
		}
	}

	post, err := e.Residuals(work, toas, selected)
	if err != nil {
		return nil, FitReport{}, errors.FitFailed("post-fit residuals diverged", err)
	}
	report.PostfitRMS = post.RMS
	report.DOF = len(post.Residuals) - len(free)
	report.Chi2 = chi2(post)
	return work, report, nil
}

// fitStep performs one weighted least-squares correction of the free
// parameters and reports whether the corrections have converged.
func (e *SpindownEngine) fitStep(params []pulsar.Param, toas []pulsar.TOA, selected []bool, free []string) ([]pulsar.Param, bool, error) {
	m, err := buildModel(params, toas)
	if err != nil {
		return nil, false, err
	}
	data, err := e.Residuals(params, toas, selected)
	if err != nil {
		return nil, false, err
	}

	// Elapsed seconds from the reference epoch, one per included TOA, in the
	// same order the residuals came out.
	var dts []float64
	for i, t := range toas {
		if i < len(selected) && !selected[i] {
			continue
		}
		dts = append(dts, t.MJD.SecondsSince(m.pepoch))
	}

	p := len(free)
	n := len(dts)
	if n < p {
		return nil, false, errors.FitFailed(
			fmt.Sprintf("%d selected TOAs cannot constrain %d parameters", n, p), nil)
	}

	// Weighted normal equations over the design matrix of residual-seconds
	// derivatives: dt/F0 for F0, dt^2/(2 F0) for F1.
	ata := make([][]float64, p)
	atb := make([]float64, p)
	for j := range ata {
		ata[j] = make([]float64, p)
	}
	row := make([]float64, p)
	for k := 0; k < n; k++ {
		dt := dts[k]
		for j, name := range free {
			switch name {
			case "F0":
				row[j] = dt / m.f0
			case "F1":
				row[j] = dt * dt / (2 * m.f0)
			}
		}
		sigma := data.Errors[k] * 1e-6
		if sigma <= 0 {
			sigma = 1e-6
		}
		w := 1 / (sigma * sigma)
		r := data.Residuals[k] * 1e-6
		for j := 0; j < p; j++ {
			for l := 0; l < p; l++ {
				ata[j][l] += w * row[j] * row[l]
			}
			atb[j] += w * row[j] * r
		}
	}

	cov, err := invertSym(ata)
	if err != nil {
		return nil, false, errors.FitFailed("singular normal matrix", err)
	}
	delta := make([]float64, p)
	for j := 0; j < p; j++ {
		for l := 0; l < p; l++ {
			delta[j] += cov[j][l] * atb[l]
		}
	}

	adjusted := append([]pulsar.Param(nil), params...)
	converged := true
	for j, name := range free {
		for i := range adjusted {
			if adjusted[i].Name != name {
				continue
			}
			adjusted[i].Value -= delta[j]
			adjusted[i].Uncertainty = math.Sqrt(cov[j][j])
			scale := math.Max(math.Abs(adjusted[i].Value), 1)
			if math.Abs(delta[j]) > 1e-12*scale {
				converged = false
			}
		}
	}
	return adjusted, converged, nil
}

// invertSym inverts a small symmetric positive matrix by Gauss-Jordan
// elimination with partial pivoting.
func invertSym(a [][]float64) ([][]float64, error) {
	p := len(a)
	aug := make([][]float64, p)
	for i := range aug {
		aug[i] = make([]float64, 2*p)
		copy(aug[i], a[i])
		aug[i][p+i] = 1
	}
	for col := 0; col < p; col++ {
		pivot := col
		for r := col + 1; r < p; r++ {
			if math.Abs(aug[r][col]) > math.Abs(aug[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(aug[pivot][col]) < 1e-300 {
			return nil, fmt.Errorf("pivot %d is zero", col)
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]
		inv := 1 / aug[col][col]
		for c := 0; c < 2*p; c++ {
			aug[col][c] *= inv
		}
		for r := 0; r < p; r++ {
			if r == col {
				continue
			}
			f := aug[r][col]
			for c := 0; c < 2*p; c++ {
				aug[r][c] -= f * aug[col][c]
			}
		}
	}
	out := make([][]float64, p)
	for i := range out {
		out[i] = aug[i][p:]
	}
	return out, nil
}

func (d *FitReport) String() string {
	return fmt.Sprintf("fit: %d iter, rms %.3f -> %.3f us, chi2 %.2f / %d dof",
		d.Iterations, d.PrefitRMS, d.PostfitRMS, d.Chi2, d.DOF)
}

func freeParams(params []pulsar.Param) []string {
	var free []string
	for _, p := range params {
		if fittable[p.Name] && !p.Frozen {
			free = append(free, p.Name)
		}
	}
	return free
}

func chi2(data pulsar.ResidualData) float64 {
	sum := 0.0
	for i, r := range data.Residuals {
		e := data.Errors[i]
		if e <= 0 {
			e = 1
		}
		sum += (r / e) * (r / e)
	}
	return sum
}
