package services

import (
	"errors"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/mat"
)

// Singular values below rankTolerance times the largest are treated as zero.
const rankTolerance = 1e-10

// LinearModel is an ordinary least squares fit with an intercept.
type LinearModel struct {
	Intercept    float64
	Coefficients []float64
	// Rank of the design matrix. Below len(Coefficients)+1 the fit is the
	// minimum-norm solution.
	Rank int
}

// FitLinearModel fits target against features by least squares. Every
// feature row must have the same width and there must be more rows than
// coefficients. Collinear features, such as a column that never varies,
// fall back to the minimum-norm least squares solution.
func FitLinearModel(features [][]float64, target []float64) (*LinearModel, error) {
	n := len(features)
	if n != len(target) {
		return nil, eris.Errorf("fit: %d feature rows for %d targets", n, len(target))
	}
	if n == 0 {
		return nil, eris.New("fit: no rows")
	}
	width := len(features[0])
	if n <= width {
		return nil, eris.Errorf("fit: need more than %d rows, got %d", width, n)
	}

	x := mat.NewDense(n, width+1, nil)
	for i, row := range features {
		if len(row) != width {
			return nil, eris.Errorf("fit: row %d has %d features, want %d", i, len(row), width)
		}
		x.Set(i, 0, 1)
		for j, v := range row {
			x.Set(i, j+1, v)
		}
	}
	y := mat.NewVecDense(n, append([]float64(nil), target...))

	rank := width + 1
	var beta mat.VecDense
	if err := beta.SolveVec(x, y); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, eris.Wrap(err, "fit: solve least squares")
		}
		rank, err = minimumNormSolve(&beta, x, y)
		if err != nil {
			return nil, err
		}
	}

	m := &LinearModel{
		Intercept:    beta.AtVec(0),
		Coefficients: make([]float64, width),
		Rank:         rank,
	}
	for j := 0; j < width; j++ {
		m.Coefficients[j] = beta.AtVec(j + 1)
	}
	return m, nil
}

// minimumNormSolve solves x*beta = y through a thin SVD, dropping negligible
// singular values, and returns the effective rank.
func minimumNormSolve(beta *mat.VecDense, x *mat.Dense, y *mat.VecDense) (int, error) {
	var svd mat.SVD
	if !svd.Factorize(x, mat.SVDThin) {
		return 0, eris.New("fit: singular value decomposition failed")
	}
	rank := svd.Rank(rankTolerance)
	if rank == 0 {
		return 0, eris.New("fit: design matrix has rank 0")
	}
	beta.Reset()
	svd.SolveVecTo(beta, y, rank)
	return rank, nil
}

// Predict implements Predictor.
func (m *LinearModel) Predict(features [][]float64) ([]float64, error) {
	out := make([]float64, len(features))
	for i, row := range features {
		if len(row) != len(m.Coefficients) {
			return nil, eris.Errorf("predict: row %d has %d features, want %d", i, len(row), len(m.Coefficients))
		}
		v := m.Intercept
		for j, f := range row {
			v += m.Coefficients[j] * f
		}
		out[i] = v
	}
	return out, nil
}
