package clean

import (
	"fmt"
	"math"

	"github.com/idahopolicy/munipanel/frame"
	"github.com/idahopolicy/munipanel/load"
)

// Period identifies a CPI observation. Month 0 is the annual average.
type Period struct {
	Year  int
	Month int
}

func (p Period) String() string {
	if p.Month == 0 {
		return fmt.Sprintf("%d (annual)", p.Year)
	}

	return fmt.Sprintf("%d-%02d", p.Year, p.Month)
}

// CPITable maps periods to the price index. Read-only once built.
type CPITable map[Period]float64

// NewCPITable builds the table from a loaded CPI frame (Year plus
// Annual/month columns).
func NewCPITable(fr *frame.Frame) (CPITable, error) {
	var (
		year *frame.Col
		e    error
	)

	if year, e = fr.Column("Year"); e != nil {
		return nil, e
	}

	type idxCol struct {
		month int
		col   *frame.Col
	}

	var idx []idxCol
	for c := fr.Next(true); c != nil; c = fr.Next(false) {
		name := c.Name("")
		if name == "Annual" {
			idx = append(idx, idxCol{0, c})
			continue
		}

		if m, ok := load.MonthNames[name]; ok {
			idx = append(idx, idxCol{m, c})
		}
	}

	if len(idx) == 0 {
		return nil, fmt.Errorf("no index columns in cpi frame")
	}

	t := make(CPITable)
	for row := 0; row < fr.RowCount(); row++ {
		var yr float64
		var ok bool
		if yr, ok = year.Float(row); !ok {
			continue
		}

		for _, ic := range idx {
			if v, vok := ic.col.Float(row); vok {
				t[Period{Year: int(yr), Month: ic.month}] = v
			}
		}
	}

	return t, nil
}

// Multiplier returns the factor that converts dollars of year into
// reference-period dollars: CPI[ref] / CPI[year annual]. ok is false when
// the table has no entry for year.
func (t CPITable) Multiplier(ref Period, year int) (m float64, ok bool) {
	refCPI, refOK := t[ref]
	yrCPI, yrOK := t[Period{Year: year}]
	if !refOK || !yrOK || yrCPI == 0 {
		return 0, false
	}

	return refCPI / yrCPI, true
}

// RealDollars rescales the currency columns of fr to reference-period
// dollars and returns the result as a new frame; fr is untouched. Rows whose
// year has no CPI entry get missing cells in every currency column, and the
// count of such rows is returned. A reference period absent from the table
// is structural and fails the call.
func RealDollars(fr *frame.Frame, yearCol string, currencyCols []string, cpi CPITable, ref Period) (out *frame.Frame, gaps int, err error) {
	if _, ok := cpi[ref]; !ok {
		return nil, 0, fmt.Errorf("cpi table has no entry for reference period %s", ref)
	}

	out = fr.Copy()

	var year *frame.Col
	if year, err = out.Column(yearCol); err != nil {
		return nil, 0, err
	}

	cols := make([]*frame.Col, len(currencyCols))
	for ind, name := range currencyCols {
		var c *frame.Col
		if c, err = out.Column(name); err != nil {
			return nil, 0, err
		}

		if c.DataType() == frame.DTint {
			// ints cannot hold the missing marker; rebuild as float
			src := c.Data().([]int)
			data := make([]float64, len(src))
			for r := range src {
				data[r] = float64(src[r])
			}

			var nc *frame.Col
			if nc, err = frame.NewCol(name, data); err != nil {
				return nil, 0, err
			}

			if err = out.ReplaceColumn(nc); err != nil {
				return nil, 0, err
			}
			c = nc
		}

		if c.DataType() != frame.DTfloat {
			return nil, 0, fmt.Errorf("currency column %s is %s, want numeric", name, c.DataType())
		}

		cols[ind] = c
	}

	for row := 0; row < out.RowCount(); row++ {
		yr, ok := year.Float(row)
		if !ok {
			gaps++
			blankRow(cols, row)
			continue
		}

		m, ok := cpi.Multiplier(ref, int(yr))
		if !ok {
			gaps++
			blankRow(cols, row)
			continue
		}

		for _, c := range cols {
			data := c.Data().([]float64)
			data[row] *= m
		}
	}

	return out, gaps, nil
}

func blankRow(cols []*frame.Col, row int) {
	for _, c := range cols {
		c.Data().([]float64)[row] = math.NaN()
	}
}
