package clean

import (
	"fmt"
	"math"

	u "github.com/invertedv/utilities"

	"github.com/idahopolicy/munipanel/frame"
)

// Derived-column suffixes.
const (
	SuffixPerExp  = "_PerExp" // percent of total expenditure
	SuffixPerRev  = "_PerRev" // percent of total revenue
	SuffixPer100k = "_100k"   // rate per 100,000 population
	SuffixPerCap  = "_PerCap" // per resident
)

// NormSpec names the columns the normalizer derives from. The lists select
// which raw columns get a _PerExp / _PerRev / _100k / _PerCap companion.
type NormSpec struct {
	ExpCols  []string `koanf:"exp_cols"`
	RevCols  []string `koanf:"rev_cols"`
	RateCols []string `koanf:"rate_cols"`
	CapCols  []string `koanf:"cap_cols"`

	TotalExp   string `koanf:"total_exp"`
	TotalRev   string `koanf:"total_rev"`
	Population string `koanf:"population"`
}

// Normalize returns an augmented copy of fr with the derived columns of
// spec. A derivation with a zero or missing denominator yields a missing
// cell, never an Inf or divide artifact; guarded is the count of such cells.
func Normalize(fr *frame.Frame, spec NormSpec) (out *frame.Frame, guarded int, err error) {
	out = fr.Copy()

	type job struct {
		cols   []string
		denom  string
		scale  float64
		suffix string
	}

	jobs := []job{
		{spec.ExpCols, spec.TotalExp, 100, SuffixPerExp},
		{spec.RevCols, spec.TotalRev, 100, SuffixPerRev},
		{spec.RateCols, spec.Population, 100000, SuffixPer100k},
		{spec.CapCols, spec.Population, 1, SuffixPerCap},
	}

	for _, j := range jobs {
		if len(j.cols) == 0 {
			continue
		}

		var denom *frame.Col
		if denom, err = out.Column(j.denom); err != nil {
			return nil, 0, err
		}

		for _, name := range j.cols {
			var (
				raw *frame.Col
				g   int
			)

			if raw, err = out.Column(name); err != nil {
				return nil, 0, err
			}

			var col *frame.Col
			if col, g, err = ratioCol(name+j.suffix, raw, denom, j.scale); err != nil {
				return nil, 0, err
			}

			guarded += g
			if err = out.AppendColumn(col); err != nil {
				return nil, 0, err
			}
		}
	}

	return out, guarded, nil
}

// ratioCol builds scale * num/denom with a division guard per cell.
func ratioCol(name string, num, denom *frame.Col, scale float64) (*frame.Col, int, error) {
	if num.DataType() == frame.DTstring || denom.DataType() == frame.DTstring {
		return nil, 0, fmt.Errorf("column %s or %s is not numeric", num.Name(""), denom.Name(""))
	}

	guarded := 0
	data := make([]float64, num.Len())
	for row := 0; row < num.Len(); row++ {
		n, nOK := num.Float(row)
		d, dOK := denom.Float(row)

		// only a bad denominator is a guard; a missing numerator just
		// propagates
		if !dOK || d == 0 {
			data[row] = math.NaN()
			guarded++
			continue
		}

		if !nOK {
			data[row] = math.NaN()
			continue
		}

		data[row] = scale * n / d
	}

	col, e := frame.NewCol(name, data)

	return col, guarded, e
}

// SizeThresholds are the population cutoffs for the city-size buckets,
// following the Census community definitions by default.
type SizeThresholds struct {
	Rural float64 `koanf:"rural"` // below: rural
	Urban float64 `koanf:"urban"` // at or above: urban
}

// SizeCol is the bucket column CategorizeSize appends.
const SizeCol = "size"

// bucket labels, ordinal
const (
	SizeRural    = "rural"
	SizeNonUrban = "non-urban"
	SizeUrban    = "urban"
)

// CategorizeSize appends SizeCol, a pure function of the population column
// and the thresholds. Missing population yields a missing bucket.
func CategorizeSize(fr *frame.Frame, popCol string, t SizeThresholds) (*frame.Frame, error) {
	if t.Rural <= 0 || t.Urban <= t.Rural {
		return nil, fmt.Errorf("bad size thresholds: rural %g, urban %g", t.Rural, t.Urban)
	}

	out := fr.Copy()

	var (
		pop *frame.Col
		e   error
	)

	if pop, e = out.Column(popCol); e != nil {
		return nil, e
	}

	data := make([]string, out.RowCount())
	for row := 0; row < out.RowCount(); row++ {
		p, ok := pop.Float(row)
		switch {
		case !ok || p <= 0:
			data[row] = ""
		case p < t.Rural:
			data[row] = SizeRural
		case p < t.Urban:
			data[row] = SizeNonUrban
		default:
			data[row] = SizeUrban
		}
	}

	var col *frame.Col
	if col, e = frame.NewCol(SizeCol, data); e != nil {
		return nil, e
	}

	return out, out.AppendColumn(col)
}

// DropRaw removes the raw columns a NormSpec derived from, keeping only the
// derived companions. Columns listed more than once are dropped once.
func DropRaw(fr *frame.Frame, spec NormSpec) error {
	var dropped []string

	all := append(append(append(append([]string{}, spec.ExpCols...), spec.RevCols...), spec.RateCols...), spec.CapCols...)
	for _, name := range all {
		if u.Has(name, "", dropped...) {
			continue
		}

		if e := fr.DropColumns(name); e != nil {
			return e
		}

		dropped = append(dropped, name)
	}

	return nil
}
