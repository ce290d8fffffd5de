package munipanel

import (
	"fmt"
	"log/slog"

	u "github.com/invertedv/utilities"

	"github.com/idahopolicy/munipanel/clean"
	"github.com/idahopolicy/munipanel/export"
	"github.com/idahopolicy/munipanel/frame"
	"github.com/idahopolicy/munipanel/load"
)

// Report aggregates the per-row quality defects the pipeline degraded to
// missing values, so the caller can judge how much the panel can carry.
type Report struct {
	UnresolvedKeys  int // financial rows with no canonical city key
	GeoAmbiguous    int // geo keys spanning two counties with no resolving hint
	GeoDupsDropped  int // geographic rows dropped resolving duplicate keys
	EmpDupsDropped  int // employment rows dropped resolving duplicate keys
	GeoUnmatched    int // financial rows with no geographic match
	EmpUnmatched    int // financial rows with no employment match
	CPIGaps         int // rows whose year has no CPI entry
	DivisionGuards  int // derived cells guarded against zero/missing denominators
}

func (r *Report) String() string {
	return fmt.Sprintf(
		"unresolved keys %d; ambiguous geo keys %d; duplicates dropped: geo %d, employment %d; unmatched: geo %d, employment %d; cpi gaps %d; division guards %d",
		r.UnresolvedKeys, r.GeoAmbiguous, r.GeoDupsDropped, r.EmpDupsDropped, r.GeoUnmatched, r.EmpUnmatched, r.CPIGaps, r.DivisionGuards)
}

// Build runs the whole pipeline and returns the finished panel. The
// financial table is authoritative: the result has exactly one row per
// (city, year) in it. A structural load failure aborts immediately; per-row
// defects degrade to missing cells and are tallied in the Report.
func Build(cfg *Config, lg *slog.Logger) (*frame.Frame, *Report, error) {
	if lg == nil {
		lg = slog.Default()
	}

	rpt := &Report{}

	lg.Info("loading financial table", "path", cfg.Financial.Path)
	fin, e := load.Financial(cfg.Financial)
	if e != nil {
		return nil, nil, e
	}

	lg.Info("loading employment tables", "glob", cfg.Employment.Glob)
	emp, e := load.Employment(cfg.Employment)
	if e != nil {
		return nil, nil, e
	}

	lg.Info("loading geographic reference", "path", cfg.GeoNames.Path)
	geo, e := load.GeoNames(cfg.GeoNames.Path, cfg.GeoNames.Admin1)
	if e != nil {
		return nil, nil, e
	}

	lg.Info("loading cpi table", "path", cfg.CPI.Path)
	cpiFr, e := load.CPI(cfg.CPI)
	if e != nil {
		return nil, nil, e
	}

	cpi, e := clean.NewCPITable(cpiFr)
	if e != nil {
		return nil, nil, e
	}

	lg.Info("harmonizing join keys")
	fin, geo, emp, e = harmonize(cfg, rpt, fin, geo, emp)
	if e != nil {
		return nil, nil, e
	}

	lg.Info("merging", "financialRows", fin.RowCount())
	out, e := merge(rpt, fin, geo, emp)
	if e != nil {
		return nil, nil, e
	}

	ref := clean.Period{Year: cfg.Reference.Year, Month: cfg.Reference.Month}
	lg.Info("adjusting for inflation", "reference", ref.String())
	out, rpt.CPIGaps, e = clean.RealDollars(out, "Year4", cfg.currencyCols(), cpi, ref)
	if e != nil {
		return nil, nil, e
	}

	if cfg.Norm {
		lg.Info("deriving normalized features")
		if out, rpt.DivisionGuards, e = clean.Normalize(out, cfg.NormSpec); e != nil {
			return nil, nil, e
		}
	}

	lg.Info("categorizing city sizes")
	if out, e = clean.CategorizeSize(out, cfg.NormSpec.Population, cfg.Thresholds); e != nil {
		return nil, nil, e
	}

	if cfg.Out != "" {
		lg.Info("writing panel", "path", cfg.Out)
		if e = export.CSV(out, cfg.Out); e != nil {
			return nil, nil, e
		}
	}

	lg.Info("panel ready", "rows", out.RowCount(), "columns", out.ColumnCount(), "quality", rpt.String())

	return out, rpt, nil
}

// harmonize gives every table a canonical join key and resolves duplicate
// keys inside the non-authoritative sources.
func harmonize(cfg *Config, rpt *Report, fin, geo, emp *frame.Frame) (_, _, _ *frame.Frame, err error) {
	if rpt.UnresolvedKeys, err = clean.AddCityKey(fin, "Name", cfg.Aliases); err != nil {
		return nil, nil, nil, err
	}

	if _, err = clean.AddCityKey(geo, "Name", cfg.Aliases); err != nil {
		return nil, nil, nil, err
	}

	if err = clean.Zip5(geo, "Zip"); err != nil {
		return nil, nil, nil, err
	}

	// ambiguous geo keys resolve toward the county the financial table
	// gives that city; a key still spanning two counties is blanked,
	// never a coordinate guess
	hints := countyByKey(fin)
	if rpt.GeoAmbiguous, err = clean.Disambiguate(geo, "County_FIPS", hints); err != nil {
		return nil, nil, nil, err
	}

	// rows with no resolvable key cannot join anything; keep them out of
	// the duplicate resolution and its counts
	geoKey, err := geo.Column(clean.KeyCol)
	if err != nil {
		return nil, nil, nil, err
	}
	geo = geo.Filter(func(row int) bool { return !geoKey.Missing(row) })

	prefer, err := clean.PreferCounty(geo, "County_FIPS", hints)
	if err != nil {
		return nil, nil, nil, err
	}

	if geo, rpt.GeoDupsDropped, err = clean.Dedupe(geo, []string{clean.KeyCol}, prefer); err != nil {
		return nil, nil, nil, err
	}

	// employment joins on (county, year); align its key names with the
	// financial table's
	for raw, to := range map[string]string{"County_FIPS_Code": "FIPS_County", "Year": "Year4"} {
		var col *frame.Col
		if col, err = emp.Column(raw); err != nil {
			return nil, nil, nil, err
		}

		col.Name(to)
	}

	if emp, rpt.EmpDupsDropped, err = clean.Dedupe(emp, []string{"FIPS_County", "Year4"}, clean.MostComplete(emp)); err != nil {
		return nil, nil, nil, err
	}

	return fin, geo, emp, nil
}

// countyByKey maps each financial city key to its county code, for the
// geographic tie-break.
func countyByKey(fin *frame.Frame) map[string]string {
	key, e1 := fin.Column(clean.KeyCol)
	fips, e2 := fin.Column("FIPS_County")
	if e1 != nil || e2 != nil {
		return nil
	}

	want := make(map[string]string)
	for row := 0; row < fin.RowCount(); row++ {
		k := key.Element(row).(string)
		if k == "" || fips.Missing(row) {
			continue
		}

		if _, ok := want[k]; !ok {
			want[k] = frame.CellString(fips.Element(row), "%g")
		}
	}

	return want
}

// merge joins employment and geography onto the financial table. The
// financial table must be unique on (city, year) -- a duplicate there is a
// data-integrity error, never silently deduplicated.
func merge(rpt *Report, fin, geo, emp *frame.Frame) (*frame.Frame, error) {
	if e := frame.CheckUnique(fin, "financial", clean.KeyCol, "Year4"); e != nil {
		return nil, e
	}

	out, empUnmatched, e := frame.LeftJoin(fin, emp, "_emp", "FIPS_County", "Year4")
	if e != nil {
		return nil, e
	}
	rpt.EmpUnmatched = empUnmatched

	out, geoUnmatched, e := frame.LeftJoin(out, geo, "_geo", clean.KeyCol)
	if e != nil {
		return nil, e
	}
	rpt.GeoUnmatched = geoUnmatched

	return out, nil
}

// Abbreviated cuts the panel to its best-quality slice: the census-pattern
// years and, when cities is non-empty, the named cities (matched on
// canonical key).
func Abbreviated(fr *frame.Frame, years []int, cities []string) (*frame.Frame, error) {
	year, e := fr.Column("Year4")
	if e != nil {
		return nil, e
	}

	key, e := fr.Column(clean.KeyCol)
	if e != nil {
		return nil, e
	}

	var wantCities []string
	for _, c := range cities {
		wantCities = append(wantCities, clean.CityKey(c))
	}

	return fr.Filter(func(row int) bool {
		if len(years) > 0 {
			yr, ok := year.Float(row)
			if !ok {
				return false
			}

			if !hasInt(int(yr), years) {
				return false
			}
		}

		if len(wantCities) > 0 && !u.Has(key.Element(row).(string), "", wantCities...) {
			return false
		}

		return true
	}), nil
}

func hasInt(v int, vals []int) bool {
	for _, x := range vals {
		if x == v {
			return true
		}
	}

	return false
}
