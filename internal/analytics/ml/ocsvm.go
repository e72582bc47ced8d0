package ml

import "math"

// One-class SVM defaults.
const (
	DefaultNu        = 0.05
	DefaultTolerance = 1e-3

	tau = 1e-12
)

// OneClassSVM fits a boundary around the bulk of the data in an RBF feature
// space. The dual problem
//
//	min ½ αᵀKα  s.t.  0 ≤ αᵢ ≤ 1,  Σαᵢ = ν·l
//
// is solved with SMO using second-order working-set selection. The decision
// value is f(x) = Σ αᵢ K(xᵢ, x) − ρ.
type OneClassSVM struct {
	nu      float64
	gamma   float64
	tol     float64
	maxIter int

	supportVectors [][]float64
	dualCoef       []float64
	rho            float64
	fittedGamma    float64
	iterations     int
}

// OneClassSVMOption configures a OneClassSVM.
type OneClassSVMOption func(*OneClassSVM)

// WithNu sets the upper bound on the fraction of training outliers.
func WithNu(nu float64) OneClassSVMOption {
	return func(s *OneClassSVM) {
		if nu > 0 && nu <= 1 {
			s.nu = nu
		}
	}
}

// WithGamma sets the RBF kernel coefficient. Zero selects 1/n_features.
func WithGamma(gamma float64) OneClassSVMOption {
	return func(s *OneClassSVM) {
		if gamma >= 0 {
			s.gamma = gamma
		}
	}
}

// WithTolerance sets the SMO stopping tolerance, which is also the width of
// the boundary band treated as outside.
func WithTolerance(tol float64) OneClassSVMOption {
	return func(s *OneClassSVM) {
		if tol > 0 {
			s.tol = tol
		}
	}
}

// NewOneClassSVM creates an unfitted one-class SVM.
func NewOneClassSVM(opts ...OneClassSVMOption) *OneClassSVM {
	s := &OneClassSVM{
		nu:  DefaultNu,
		tol: DefaultTolerance,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Detector.
func (s *OneClassSVM) Name() string { return "one_class_svm" }

// Rho returns the fitted offset.
func (s *OneClassSVM) Rho() float64 { return s.rho }

// Iterations returns the number of SMO steps taken by the last fit.
func (s *OneClassSVM) Iterations() int { return s.iterations }

// SupportVectors returns the number of rows with a non-zero dual coefficient.
func (s *OneClassSVM) SupportVectors() int { return len(s.supportVectors) }

// Fit solves the dual problem on rows.
func (s *OneClassSVM) Fit(rows [][]float64) error {
	width, err := validateRows(rows)
	if err != nil {
		return err
	}
	s.fittedGamma = s.gamma
	if s.fittedGamma == 0 {
		s.fittedGamma = 1 / float64(width)
	}

	l := len(rows)
	K := make([][]float64, l)
	for i := range K {
		K[i] = make([]float64, l)
	}
	for i := 0; i < l; i++ {
		K[i][i] = 1
		for j := i + 1; j < l; j++ {
			k := s.kernel(rows[i], rows[j])
			K[i][j] = k
			K[j][i] = k
		}
	}

	// Feasible start: the first ⌊ν·l⌋ coefficients at the upper bound and the
	// remainder on the next one.
	alpha := make([]float64, l)
	total := s.nu * float64(l)
	n := int(total)
	for i := 0; i < n && i < l; i++ {
		alpha[i] = 1
	}
	if n < l {
		alpha[n] = total - float64(n)
	}

	G := make([]float64, l)
	for i := 0; i < l; i++ {
		if alpha[i] == 0 {
			continue
		}
		for j := 0; j < l; j++ {
			G[j] += alpha[i] * K[i][j]
		}
	}

	s.maxIter = 100 * l
	if s.maxIter < 100000 {
		s.maxIter = 100000
	}
	s.iterations = 0
	for s.iterations < s.maxIter {
		i, j, ok := s.selectWorkingSet(alpha, G, K)
		if !ok {
			break
		}
		s.iterations++

		oldI, oldJ := alpha[i], alpha[j]
		quad := K[i][i] + K[j][j] - 2*K[i][j]
		if quad <= 0 {
			quad = tau
		}
		delta := (G[i] - G[j]) / quad
		sum := alpha[i] + alpha[j]
		alpha[i] -= delta
		alpha[j] += delta

		if sum > 1 {
			if alpha[i] > 1 {
				alpha[i] = 1
				alpha[j] = sum - 1
			}
		} else if alpha[j] < 0 {
			alpha[j] = 0
			alpha[i] = sum
		}
		if sum > 1 {
			if alpha[j] > 1 {
				alpha[j] = 1
				alpha[i] = sum - 1
			}
		} else if alpha[i] < 0 {
			alpha[i] = 0
			alpha[j] = sum
		}

		dI, dJ := alpha[i]-oldI, alpha[j]-oldJ
		for k := 0; k < l; k++ {
			G[k] += K[i][k]*dI + K[j][k]*dJ
		}
	}

	s.rho = calculateRho(alpha, G)
	s.supportVectors = s.supportVectors[:0]
	s.dualCoef = s.dualCoef[:0]
	for i, a := range alpha {
		if a > 0 {
			sv := make([]float64, width)
			copy(sv, rows[i])
			s.supportVectors = append(s.supportVectors, sv)
			s.dualCoef = append(s.dualCoef, a)
		}
	}
	return nil
}

// selectWorkingSet picks the maximal violating pair. ok is false once the
// KKT conditions hold within tolerance.
func (s *OneClassSVM) selectWorkingSet(alpha, G []float64, K [][]float64) (int, int, bool) {
	gmax := math.Inf(-1)
	gmax2 := math.Inf(-1)
	gmaxIdx, gminIdx := -1, -1
	objDiffMin := math.Inf(1)

	for t := range alpha {
		if alpha[t] < 1 && -G[t] >= gmax {
			gmax = -G[t]
			gmaxIdx = t
		}
	}
	if gmaxIdx == -1 {
		return 0, 0, false
	}
	i := gmaxIdx

	for j := range alpha {
		if alpha[j] <= 0 {
			continue
		}
		gradDiff := gmax + G[j]
		if G[j] >= gmax2 {
			gmax2 = G[j]
		}
		if gradDiff > 0 {
			quad := K[i][i] + K[j][j] - 2*K[i][j]
			if quad <= 0 {
				quad = tau
			}
			objDiff := -(gradDiff * gradDiff) / quad
			if objDiff <= objDiffMin {
				gminIdx = j
				objDiffMin = objDiff
			}
		}
	}

	if gmax+gmax2 < s.tol || gminIdx == -1 {
		return 0, 0, false
	}
	return i, gminIdx, true
}

// calculateRho averages the gradient over free coefficients, falling back to
// the midpoint of the feasible interval when none is free.
func calculateRho(alpha, G []float64) float64 {
	ub := math.Inf(1)
	lb := math.Inf(-1)
	nrFree := 0
	sumFree := 0.0
	for i, a := range alpha {
		switch {
		case a >= 1:
			lb = math.Max(lb, G[i])
		case a <= 0:
			ub = math.Min(ub, G[i])
		default:
			nrFree++
			sumFree += G[i]
		}
	}
	if nrFree > 0 {
		return sumFree / float64(nrFree)
	}
	return (ub + lb) / 2
}

// Decision returns f(x); negative values lie outside the boundary.
func (s *OneClassSVM) Decision(row []float64) float64 {
	sum := 0.0
	for i, sv := range s.supportVectors {
		sum += s.dualCoef[i] * s.kernel(sv, row)
	}
	return sum - s.rho
}

// Detect implements Detector. Rows on the boundary, within the solver
// tolerance, or outside it are outliers.
func (s *OneClassSVM) Detect(rows [][]float64) ([]bool, error) {
	if err := s.Fit(rows); err != nil {
		return nil, err
	}
	out := make([]bool, len(rows))
	for i, row := range rows {
		out[i] = s.Decision(row) < s.tol
	}
	return out, nil
}

func (s *OneClassSVM) kernel(a, b []float64) float64 {
	d := 0.0
	for k := range a {
		diff := a[k] - b[k]
		d += diff * diff
	}
	return math.Exp(-s.fittedGamma * d)
}
