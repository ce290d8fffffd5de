// Package model fits the regression the panel is built for: a linear model
// of a municipal financial measure on crime and demographic predictors.
// Rows with any missing value among the model columns are dropped before
// fitting, so the upstream stages' missing markers never leak in as zeros.
package model

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/idahopolicy/munipanel/frame"
)

// Fit is an ordinary-least-squares result. Coef[0] is the intercept;
// Coef[i+1] belongs to Predictors[i].
type Fit struct {
	Response   string
	Predictors []string

	Coef []float64
	R2   float64
	N    int // complete-case rows used
}

// OLS regresses response on the predictors with an intercept.
func OLS(fr *frame.Frame, response string, predictors ...string) (*Fit, error) {
	if len(predictors) == 0 {
		return nil, fmt.Errorf("no predictors")
	}

	cols := make([]*frame.Col, 0, len(predictors)+1)
	for _, name := range append([]string{response}, predictors...) {
		var (
			col *frame.Col
			e   error
		)

		if col, e = fr.Column(name); e != nil {
			return nil, e
		}

		if col.DataType() == frame.DTstring {
			return nil, fmt.Errorf("column %s is not numeric", name)
		}

		cols = append(cols, col)
	}

	// complete cases only
	var rows []int
	for row := 0; row < fr.RowCount(); row++ {
		ok := true
		for _, col := range cols {
			if _, v := col.Float(row); !v {
				ok = false
				break
			}
		}

		if ok {
			rows = append(rows, row)
		}
	}

	p := len(predictors)
	n := len(rows)
	if n <= p+1 {
		return nil, fmt.Errorf("%d complete rows, need more than %d", n, p+1)
	}

	y := mat.NewVecDense(n, nil)
	x := mat.NewDense(n, p+1, nil)
	for ind, row := range rows {
		v, _ := cols[0].Float(row)
		y.SetVec(ind, v)

		x.Set(ind, 0, 1)
		for j := 0; j < p; j++ {
			v, _ = cols[j+1].Float(row)
			x.Set(ind, j+1, v)
		}
	}

	var qr mat.QR
	qr.Factorize(x)

	var beta mat.Dense
	if e := qr.SolveTo(&beta, false, y); e != nil {
		return nil, fmt.Errorf("singular design matrix: %w", e)
	}

	coef := make([]float64, p+1)
	for ind := 0; ind < p+1; ind++ {
		coef[ind] = beta.At(ind, 0)
	}

	est := make([]float64, n)
	obs := make([]float64, n)
	for ind := 0; ind < n; ind++ {
		est[ind] = coef[0]
		for j := 0; j < p; j++ {
			est[ind] += coef[j+1] * x.At(ind, j+1)
		}

		obs[ind] = y.AtVec(ind)
	}

	return &Fit{
		Response:   response,
		Predictors: predictors,
		Coef:       coef,
		R2:         stat.RSquaredFrom(est, obs, nil),
		N:          n,
	}, nil
}

// Predict evaluates the fitted line at one predictor vector.
func (f *Fit) Predict(xs ...float64) (float64, error) {
	if len(xs) != len(f.Predictors) {
		return 0, fmt.Errorf("%d values for %d predictors", len(xs), len(f.Predictors))
	}

	v := f.Coef[0]
	for ind := 0; ind < len(xs); ind++ {
		v += f.Coef[ind+1] * xs[ind]
	}

	return v, nil
}

func (f *Fit) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s ~ intercept %.6g", f.Response, f.Coef[0])
	for ind, p := range f.Predictors {
		fmt.Fprintf(&b, " + %.6g*%s", f.Coef[ind+1], p)
	}
	fmt.Fprintf(&b, "  (R2 %.4f, n %d)", f.R2, f.N)

	return b.String()
}
