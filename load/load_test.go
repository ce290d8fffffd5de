package load

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xuri/excelize/v2"

	"github.com/idahopolicy/munipanel/frame"
)

func writeSheet(t *testing.T, path, sheet string, rows [][]any) {
	t.Helper()

	wb := excelize.NewFile()
	defer func() { _ = wb.Close() }()

	if sheet != "Sheet1" {
		_, e := wb.NewSheet(sheet)
		assert.Nil(t, e)
	}

	for ind := 0; ind < len(rows); ind++ {
		cell, e := excelize.CoordinatesToCellName(1, ind+1)
		assert.Nil(t, e)
		assert.Nil(t, wb.SetSheetRow(sheet, cell, &rows[ind]))
	}

	assert.Nil(t, wb.SaveAs(path))
}

func financialRows() [][]any {
	return [][]any{
		{"Idaho Municipal Database"},
		{"Name", "Year4", "FIPS_County", "Population", "Total_Revenue", "Total_Expenditure", "Total_Debt", "Total_Crime"},
		{"Boise", 2005, 1, 198638, 350e6, 340e6, 1e6, 5200},
		{"Nampa", 2005, 27, 64269, 80e6, 78e6, 2e5, 2100},
		{"Boise", 2007, 1, 203529, 380e6, 360e6, 1.2e6, 5100},
	}
}

func TestFinancial(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "municipal.xlsx")
	writeSheet(t, path, "Sheet1", financialRows())

	fr, e := Financial(FinancialConfig{Path: path, Sheet: "Sheet1", HeaderRow: 1})
	assert.Nil(t, e)
	assert.Equal(t, 3, fr.RowCount())

	name, _ := fr.Column("Name")
	assert.Equal(t, frame.DTstring, name.DataType())

	year, _ := fr.Column("Year4")
	assert.Equal(t, frame.DTint, year.DataType())

	rev, _ := fr.Column("Total_Revenue")
	v, ok := rev.Float(0)
	assert.True(t, ok)
	assert.InDelta(t, 350e6, v, 1)
}

func TestFinancial_Errors(t *testing.T) {
	dir := t.TempDir()

	// missing file
	_, e := Financial(FinancialConfig{Path: filepath.Join(dir, "nope.xlsx"), Sheet: "Sheet1", HeaderRow: 1})
	var le *LoadError
	assert.ErrorAs(t, e, &le)

	// missing required column
	rows := financialRows()
	rows[1][3] = "Pop" // Population renamed away
	path := filepath.Join(dir, "bad.xlsx")
	writeSheet(t, path, "Sheet1", rows)

	_, e = Financial(FinancialConfig{Path: path, Sheet: "Sheet1", HeaderRow: 1})
	assert.ErrorAs(t, e, &le)
	assert.Contains(t, e.Error(), "Population")

	// missing sheet
	_, e = Financial(FinancialConfig{Path: path, Sheet: "Other", HeaderRow: 1})
	assert.ErrorAs(t, e, &le)
}

func TestGeoNames(t *testing.T) {
	lines := "" +
		"US\t83702\tBoise\tIdaho\tID\tAda\t001\t\t\t43.6135\t-116.2035\t4\n" +
		"US\t83703\tBoise\tIdaho\tID\tAda\t001\t\t\t43.6629\t-116.2417\t4\n" +
		"US\t83651\tNampa\tIdaho\tID\tCanyon\t027\t\t\t43.5407\t-116.5635\t4\n" +
		"US\t98101\tSeattle\tWashington\tWA\tKing\t033\t\t\t47.6114\t-122.3305\t4\n"

	path := filepath.Join(t.TempDir(), "zips.txt")
	assert.Nil(t, os.WriteFile(path, []byte(lines), 0o644))

	fr, e := GeoNames(path, "ID")
	assert.Nil(t, e)
	assert.Equal(t, 3, fr.RowCount())
	assert.True(t, fr.HasColumns("Name", "Zip", "County", "County_FIPS", "latitude", "longitude", "accuracy"))
	assert.False(t, fr.HasColumns("admin1_code"))

	lat, _ := fr.Column("latitude")
	v, ok := lat.Float(2)
	assert.True(t, ok)
	assert.InDelta(t, 43.5407, v, 1e-6)
}

func employmentRows(year int) [][]any {
	head := [][]any{
		{"LAUS", "State", "County", "County", "", "Labor", "", "", "Unemployment"},
		{"Code", "FIPS", "FIPS", "Name/", "Year", "Force", "Employed", "Unemployed", "Rate"},
		{"", "Code", "Code", "State", "", "", "", "", ""},
	}

	data := [][]any{
		{"CN1600100000000", 16, 1, "Ada County, ID", year, 180000, 172000, 8000, 4.4},
		{"CN1602700000000", 16, 27, "Canyon County, ID", year, 70000, 66000, 4000, 5.7},
		{"CN5303300000000", 53, 33, "King County, WA", year, 1000000, 950000, 50000, 5.0},
	}

	return append(head, data...)
}

func TestEmployment(t *testing.T) {
	dir := t.TempDir()
	for _, yr := range []int{2005, 2007} {
		writeSheet(t, filepath.Join(dir, fmt.Sprintf("laucnty%d.xlsx", yr)), "Sheet1", employmentRows(yr))
	}

	cfg := EmploymentConfig{
		Glob:       filepath.Join(dir, "laucnty*.xlsx"),
		Sheet:      "Sheet1",
		HeaderRows: []int{0, 1, 2},
		StateFIPS:  16,
	}

	fr, e := Employment(cfg)
	assert.Nil(t, e)

	// 2 Idaho counties x 2 years; the Washington rows are filtered out
	assert.Equal(t, 4, fr.RowCount())
	assert.True(t, fr.HasColumns("County_FIPS_Code", "Year", "Labor_Force", "Unemployment_Rate"))
}

func TestEmployment_NoFiles(t *testing.T) {
	_, e := Employment(EmploymentConfig{Glob: filepath.Join(t.TempDir(), "l*.xlsx")})
	var le *LoadError
	assert.ErrorAs(t, e, &le)
}

func TestCPI(t *testing.T) {
	rows := [][]any{
		{"CPI for All Urban Consumers (CPI-U)"},
		{"Original Data Value"},
		{"Year", "Oct", "Annual"},
		{2005, 199.2, 195.3},
		{2019, 257.346, 255.657},
	}

	path := filepath.Join(t.TempDir(), "cpi.xlsx")
	writeSheet(t, path, "Sheet1", rows)

	fr, e := CPI(CPIConfig{Path: path, Sheet: "Sheet1", HeaderRow: 2})
	assert.Nil(t, e)
	assert.Equal(t, 2, fr.RowCount())
	assert.True(t, fr.HasColumns("Year", "Oct", "Annual"))
}

func TestCPI_NoIndexColumns(t *testing.T) {
	rows := [][]any{
		{"Year", "Note"},
		{2005, "x"},
	}

	path := filepath.Join(t.TempDir(), "cpi.xlsx")
	writeSheet(t, path, "Sheet1", rows)

	_, e := CPI(CPIConfig{Path: path, Sheet: "Sheet1", HeaderRow: 0})
	var le *LoadError
	assert.ErrorAs(t, e, &le)
}

func TestLoadColumns_Search(t *testing.T) {
	csv := "ShortName,LongName\n" +
		"Total_Crime,Total crime incidents reported\n" +
		"Police_Exp,Police protection expenditure\n" +
		"Population,Resident population estimate\n"

	path := filepath.Join(t.TempDir(), "col_only.csv")
	assert.Nil(t, os.WriteFile(path, []byte(csv), 0o644))

	cs, e := LoadColumns(path)
	assert.Nil(t, e)
	assert.Equal(t, 3, len(cs))
	assert.Equal(t, "col_only.csv", cs[0].Source)

	// matches name or description, case-insensitively
	got := cs.Search("CRIME")
	assert.Equal(t, []string{"Total_Crime"}, got.Names())

	got = cs.Search("police")
	assert.Equal(t, []string{"Police_Exp"}, got.Names())

	got = cs.Search("xyzzy")
	assert.NotNil(t, got)
	assert.Equal(t, 0, len(got))
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "Unemployment_Rate", normalizeName("Unemployment Rate (%)"))
	assert.Equal(t, "Labor_Force", normalizeName(" Labor   Force "))
	assert.Equal(t, "State_FIPS_Code", normalizeName("State|FIPS Code"))
}
