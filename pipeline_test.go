package munipanel

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xuri/excelize/v2"

	"github.com/idahopolicy/munipanel/clean"
	"github.com/idahopolicy/munipanel/frame"
	"github.com/idahopolicy/munipanel/model"
)

func writeSheet(t *testing.T, path string, rows [][]any) {
	t.Helper()

	wb := excelize.NewFile()
	defer func() { _ = wb.Close() }()

	for ind := 0; ind < len(rows); ind++ {
		cell, e := excelize.CoordinatesToCellName(1, ind+1)
		assert.Nil(t, e)
		assert.Nil(t, wb.SetSheetRow("Sheet1", cell, &rows[ind]))
	}

	assert.Nil(t, wb.SaveAs(path))
}

// fixtureConfig lays a small but complete set of sources into dir: four
// cities across two years, two employment workbooks, a GeoNames slice with a
// duplicate Boise entry, and a CPI table covering 2005/2007 plus the
// October 2019 reference.
func fixtureConfig(t *testing.T, dir string, finRows [][]any) *Config {
	t.Helper()

	writeSheet(t, filepath.Join(dir, "municipal.xlsx"), finRows)

	for _, yr := range []int{2005, 2007} {
		writeSheet(t, filepath.Join(dir, "laucnty"+strconv.Itoa(yr)+".xlsx"), [][]any{
			{"LAUS", "State", "County", "County", "", "Labor", "", "", "Unemployment"},
			{"Code", "FIPS", "FIPS", "Name/", "Year", "Force", "Employed", "Unemployed", "Rate"},
			{"", "Code", "Code", "State", "", "", "", "", ""},
			{"CN16001", 16, 1, "Ada County, ID", yr, 180000, 172000, 8000, 4.4},
			{"CN16027", 16, 27, "Canyon County, ID", yr, 70000, 66000, 4000, 5.7},
			{"CN53033", 53, 33, "King County, WA", yr, 1000000, 950000, 50000, 5.0},
		})
	}

	geo := "" +
		"US\t83702\tBoise\tIdaho\tID\tAda\t001\t\t\t43.6135\t-116.2035\t4\n" +
		"US\t83703\tBoise\tIdaho\tID\tAda\t001\t\t\t43.6629\t-116.2417\t4\n" +
		"US\t83651\tNampa\tIdaho\tID\tCanyon\t027\t\t\t43.5407\t-116.5635\t4\n" +
		"US\t83634\tKuna\tIdaho\tID\tAda\t001\t\t\t43.4918\t-116.4201\t4\n" +
		"US\t98101\tSeattle\tWashington\tWA\tKing\t033\t\t\t47.6114\t-122.3305\t4\n"
	assert.Nil(t, os.WriteFile(filepath.Join(dir, "zips.txt"), []byte(geo), 0o644))

	writeSheet(t, filepath.Join(dir, "cpi.xlsx"), [][]any{
		{"CPI for All Urban Consumers (CPI-U)"},
		{"Original Data Value"},
		{"Year", "Oct", "Annual"},
		{2005, 199.2, 195.3},
		{2007, 208.936, 207.342},
		{2019, 257.346, 255.657},
	})

	cfg := DefaultConfig()
	cfg.Financial.Path = filepath.Join(dir, "municipal.xlsx")
	cfg.Employment.Glob = filepath.Join(dir, "laucnty*.xlsx")
	cfg.Employment.HeaderRows = []int{0, 1, 2}
	cfg.GeoNames.Path = filepath.Join(dir, "zips.txt")
	cfg.CPI.Path = filepath.Join(dir, "cpi.xlsx")
	cfg.CPI.HeaderRow = 2
	cfg.Columns = ""
	cfg.NormSpec.ExpCols = []string{"Police_Exp"}
	cfg.NormSpec.RateCols = []string{"Total_Crime"}

	return cfg
}

func finFixture() [][]any {
	return [][]any{
		{"Idaho Municipal Database"},
		{"Name", "Year4", "FIPS_County", "Population", "Total_Revenue", "Total_Expenditure", "Total_Debt", "Total_Crime", "Police_Exp"},
		{"Boise", 2005, 1, 198638, 350e6, 340e6, 1e6, 5200, 34e6},
		{"Nampa", 2005, 27, 64269, 80e6, 78e6, 2e5, 2100, 7.8e6},
		{"Boise", 2007, 1, 203529, 380e6, 360e6, 1.2e6, 5100, 36e6},
		{"Kuna", 2005, 1, 0, 6e4, 5e4, 0, 12, 1e4},
		{"Atomic City", 2005, 33, 25, 1e4, 9e3, 0, 0, 500},
	}
}

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	cfg := fixtureConfig(t, dir, finFixture())
	cfg.Out = filepath.Join(dir, "panel.csv")

	out, rpt, e := Build(cfg, nil)
	assert.Nil(t, e)

	// cardinality: one row per authoritative (city, year)
	assert.Equal(t, 5, out.RowCount())

	// quality report
	assert.Equal(t, 0, rpt.UnresolvedKeys)
	assert.Equal(t, 0, rpt.GeoAmbiguous)
	assert.Equal(t, 1, rpt.GeoDupsDropped) // two Boise postal rows
	assert.Equal(t, 1, rpt.GeoUnmatched)   // Atomic City has no postal row
	assert.Equal(t, 1, rpt.EmpUnmatched)   // county 33 isn't an Idaho county
	assert.Equal(t, 0, rpt.CPIGaps)
	assert.Equal(t, 1, rpt.DivisionGuards) // Kuna's zero population

	assert.Nil(t, out.Sort(clean.KeyCol, "Year4"))

	debt, _ := out.Column("Total_Debt")
	year, _ := out.Column("Year4")
	key, _ := out.Column(clean.KeyCol)

	// row 1 is Boise 2005 after the sort (ATOMIC CITY sorts first)
	assert.Equal(t, "BOISE", key.Element(1))
	assert.Equal(t, 2005, year.Element(1))

	// nominal 1,000,000 at CPI 195.3 in Oct 2019 (CPI 257.346) dollars
	v, ok := debt.Float(1)
	assert.True(t, ok)
	assert.InDelta(t, 1e6*257.346/195.3, v, 1e-3)

	// normalized features survive inflation adjustment unchanged: both
	// numerator and denominator were rescaled
	perExp, _ := out.Column("Police_Exp_PerExp")
	pv, _ := perExp.Float(1)
	assert.InDelta(t, 10.0, pv, 1e-9)

	per100k, _ := out.Column("Total_Crime_100k")
	cv, _ := per100k.Float(1)
	assert.InDelta(t, 5200.0/198638*100000, cv, 1e-6)

	// Kuna: population 0, expenditure present -- missing, not an artifact
	assert.Equal(t, "KUNA", key.Element(3))
	assert.True(t, per100k.Missing(3))

	// city-size buckets
	size, _ := out.Column(clean.SizeCol)
	assert.Equal(t, "urban", size.Element(1)) // Boise
	assert.Equal(t, "urban", size.Element(4)) // Nampa
	assert.Equal(t, "", size.Element(3))      // Kuna, population 0
	assert.Equal(t, "rural", size.Element(0)) // Atomic City

	// employment joined on (county, year)
	labor, _ := out.Column("Labor_Force")
	lv, ok := labor.Float(1)
	assert.True(t, ok)
	assert.InDelta(t, 180000, lv, 1e-9)
	assert.True(t, labor.Missing(0)) // Atomic City

	// geography joined on city key
	lat, _ := out.Column("latitude")
	assert.True(t, lat.Missing(0))
	_, ok = lat.Float(1)
	assert.True(t, ok)
}

func TestBuild_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := fixtureConfig(t, dir, finFixture())
	cfg.Out = filepath.Join(dir, "panel.csv")

	out, _, e := Build(cfg, nil)
	assert.Nil(t, e)

	back, e := frame.NewFiles().Load(cfg.Out)
	assert.Nil(t, e)
	assert.Equal(t, out.RowCount(), back.RowCount())
	assert.Equal(t, out.ColumnNames(), back.ColumnNames())

	for _, name := range []string{"Population", "Total_Debt", "latitude"} {
		a, _ := out.Column(name)
		b, _ := back.Column(name)
		for row := 0; row < out.RowCount(); row++ {
			if a.Missing(row) {
				assert.True(t, b.Missing(row), name)
				continue
			}

			va, _ := a.Float(row)
			vb, _ := b.Float(row)
			assert.InDelta(t, va, vb, 1e-4, name)
		}
	}
}

func TestBuild_DuplicateAuthoritativeRows(t *testing.T) {
	rows := finFixture()
	rows = append(rows, []any{"Boise", 2005, 1, 198638, 1.0, 1.0, 1.0, 1, 1.0})

	cfg := fixtureConfig(t, t.TempDir(), rows)

	_, _, e := Build(cfg, nil)
	var dk *frame.DupKeyError
	assert.ErrorAs(t, e, &dk)
	assert.Equal(t, "financial", dk.Side)
}

func TestBuild_MissingSource(t *testing.T) {
	cfg := fixtureConfig(t, t.TempDir(), finFixture())
	cfg.Financial.Path = filepath.Join(t.TempDir(), "gone.xlsx")

	_, _, e := Build(cfg, nil)
	assert.NotNil(t, e)
}

func TestBuild_Aliases(t *testing.T) {
	rows := finFixture()
	rows[2][0] = "Boise City" // variant spelling in the source

	cfg := fixtureConfig(t, t.TempDir(), rows)

	out, rpt, e := Build(cfg, nil)
	assert.Nil(t, e)
	assert.Equal(t, 0, rpt.UnresolvedKeys)

	// "Boise City" canonicalizes to BOISE and still finds its coordinates
	assert.Nil(t, out.Sort(clean.KeyCol, "Year4"))
	lat, _ := out.Column("latitude")
	_, ok := lat.Float(1)
	assert.True(t, ok)
}

func TestBuild_UnresolvedNames(t *testing.T) {
	rows := finFixture()
	rows = append(rows,
		[]any{"", 2005, 1, 10, 1e4, 1e4, 0, 1, 100},
		[]any{"", 2005, 27, 20, 2e4, 2e4, 0, 2, 200})

	cfg := fixtureConfig(t, t.TempDir(), rows)

	// two same-year rows with no resolvable name are unjoinable, not
	// duplicate authoritative keys; the run carries them through
	out, rpt, e := Build(cfg, nil)
	assert.Nil(t, e)
	assert.Equal(t, 7, out.RowCount())
	assert.Equal(t, 2, rpt.UnresolvedKeys)
	assert.Equal(t, 3, rpt.GeoUnmatched)

	assert.Nil(t, out.Sort(clean.KeyCol, "Year4"))

	key, _ := out.Column(clean.KeyCol)
	lat, _ := out.Column("latitude")
	emp, _ := out.Column("Labor_Force")

	// the blank keys sort first; no geo row attaches to them, while the
	// county join still works
	for row := 0; row < 2; row++ {
		assert.Equal(t, "", key.Element(row))
		assert.True(t, lat.Missing(row))
		_, ok := emp.Float(row)
		assert.True(t, ok)
	}
}

func TestBuild_AmbiguousGeo(t *testing.T) {
	rows := finFixture()
	rows = append(rows, []any{"Riverside", 2005, 99, 500, 1e4, 1e4, 0, 1, 100})

	dir := t.TempDir()
	cfg := fixtureConfig(t, dir, rows)

	// a second Riverside in another county; the financial hint (99)
	// matches neither
	more := "" +
		"US\t83275\tRiverside\tIdaho\tID\tBingham\t011\t\t\t43.1000\t-112.0100\t4\n" +
		"US\t83660\tRiverside\tIdaho\tID\tCanyon\t027\t\t\t43.9000\t-116.8000\t4\n"
	f, e := os.OpenFile(filepath.Join(dir, "zips.txt"), os.O_APPEND|os.O_WRONLY, 0o644)
	assert.Nil(t, e)
	_, e = f.WriteString(more)
	assert.Nil(t, e)
	assert.Nil(t, f.Close())

	out, rpt, e := Build(cfg, nil)
	assert.Nil(t, e)
	assert.Equal(t, 6, out.RowCount())
	assert.Equal(t, 1, rpt.GeoAmbiguous)
	assert.Equal(t, 2, rpt.GeoUnmatched)

	assert.Nil(t, out.Sort(clean.KeyCol, "Year4"))

	key, _ := out.Column(clean.KeyCol)
	lat, _ := out.Column("latitude")

	// Riverside keeps its row but gets no coordinate guess
	assert.Equal(t, "RIVERSIDE", key.Element(5))
	assert.True(t, lat.Missing(5))
}

func TestAbbreviated(t *testing.T) {
	cfg := fixtureConfig(t, t.TempDir(), finFixture())

	out, _, e := Build(cfg, nil)
	assert.Nil(t, e)

	sub, e := Abbreviated(out, []int{2005}, []string{"Boise", "Nampa"})
	assert.Nil(t, e)
	assert.Equal(t, 2, sub.RowCount())

	sub, e = Abbreviated(out, []int{2007}, nil)
	assert.Nil(t, e)
	assert.Equal(t, 1, sub.RowCount())
}

func TestBuild_FeedsRegression(t *testing.T) {
	cfg := fixtureConfig(t, t.TempDir(), finFixture())

	out, _, e := Build(cfg, nil)
	assert.Nil(t, e)

	// the panel is directly consumable by the modeling layer
	fit, e := model.OLS(out, "Total_Debt", "Total_Crime", "Population")
	assert.Nil(t, e)
	assert.Equal(t, 5, fit.N)
	assert.Equal(t, 3, len(fit.Coef))
}
