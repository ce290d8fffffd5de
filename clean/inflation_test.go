package clean

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/idahopolicy/munipanel/frame"
)

func cpiFixture() CPITable {
	return CPITable{
		{Year: 2005}:            195.3,
		{Year: 2007}:            207.342,
		{Year: 2019}:            255.657,
		{Year: 2019, Month: 10}: 257.346,
	}
}

func TestNewCPITable(t *testing.T) {
	year, _ := frame.NewCol("Year", []int{2005, 2019})
	oct, _ := frame.NewCol("Oct", []float64{199.2, 257.346})
	annual, _ := frame.NewCol("Annual", []float64{195.3, math.NaN()})
	fr, _ := frame.New(year, oct, annual)

	cpi, e := NewCPITable(fr)
	assert.Nil(t, e)

	assert.Equal(t, 195.3, cpi[Period{Year: 2005}])
	assert.Equal(t, 257.346, cpi[Period{Year: 2019, Month: 10}])

	// a missing annual cell produces no entry rather than a zero
	_, ok := cpi[Period{Year: 2019}]
	assert.False(t, ok)

	noYear, _ := frame.NewCol("Yr", []int{2005})
	bad, _ := frame.New(noYear)
	_, e = NewCPITable(bad)
	assert.NotNil(t, e)
}

func TestCPITable_Multiplier(t *testing.T) {
	cpi := cpiFixture()
	ref := Period{Year: 2019, Month: 10}

	m, ok := cpi.Multiplier(ref, 2005)
	assert.True(t, ok)
	assert.InDelta(t, 257.346/195.3, m, 1e-12)

	_, ok = cpi.Multiplier(ref, 1890)
	assert.False(t, ok)

	_, ok = cpi.Multiplier(Period{Year: 1890}, 2005)
	assert.False(t, ok)
}

func TestRealDollars(t *testing.T) {
	city, _ := frame.NewCol("Name", []string{"Boise", "Nampa", "Moscow"})
	year, _ := frame.NewCol("Year4", []int{2005, 2007, 1890})
	debt, _ := frame.NewCol("Total_Debt", []float64{1e6, 5e5, 1e5})
	rev, _ := frame.NewCol("Total_Revenue", []int{350, 80, 10})
	fr, _ := frame.New(city, year, debt, rev)

	cpi := cpiFixture()
	ref := Period{Year: 2019, Month: 10}

	out, gaps, e := RealDollars(fr, "Year4", []string{"Total_Debt", "Total_Revenue"}, cpi, ref)
	assert.Nil(t, e)
	assert.Equal(t, 1, gaps)

	// real = nominal * CPI[ref]/CPI[year]
	d, _ := out.Column("Total_Debt")
	assert.InDelta(t, 1e6*257.346/195.3, d.Data().([]float64)[0], 1e-6)
	assert.InDelta(t, 5e5*257.346/207.342, d.Data().([]float64)[1], 1e-6)

	// CPI gap propagates as missing, not zero
	assert.True(t, d.Missing(2))

	// int currency columns promote to float, in place
	r, _ := out.Column("Total_Revenue")
	assert.Equal(t, frame.DTfloat, r.DataType())
	assert.True(t, r.Missing(2))
	assert.Equal(t, []string{"Name", "Year4", "Total_Debt", "Total_Revenue"}, out.ColumnNames())

	// the input frame is untouched
	orig, _ := fr.Column("Total_Debt")
	assert.Equal(t, 1e6, orig.Data().([]float64)[0])
}

func TestRealDollars_BadReference(t *testing.T) {
	year, _ := frame.NewCol("Year4", []int{2005})
	debt, _ := frame.NewCol("Total_Debt", []float64{1})
	fr, _ := frame.New(year, debt)

	_, _, e := RealDollars(fr, "Year4", []string{"Total_Debt"}, cpiFixture(), Period{Year: 1800, Month: 1})
	assert.NotNil(t, e)
}

func TestRealDollars_Deterministic(t *testing.T) {
	year, _ := frame.NewCol("Year4", []int{2005, 2007})
	debt, _ := frame.NewCol("Total_Debt", []float64{1e6, math.NaN()})
	fr, _ := frame.New(year, debt)

	ref := Period{Year: 2019, Month: 10}
	a, _, e1 := RealDollars(fr, "Year4", []string{"Total_Debt"}, cpiFixture(), ref)
	b, _, e2 := RealDollars(fr, "Year4", []string{"Total_Debt"}, cpiFixture(), ref)
	assert.Nil(t, e1)
	assert.Nil(t, e2)

	da, _ := a.Column("Total_Debt")
	db, _ := b.Column("Total_Debt")
	assert.Equal(t, da.Data().([]float64)[0], db.Data().([]float64)[0])

	// missing nominal stays missing
	assert.True(t, da.Missing(1))
}
