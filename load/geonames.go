package load

import (
	"fmt"

	"github.com/idahopolicy/munipanel/frame"
)

// geoFields is the GeoNames postal-code dump layout: tab-delimited, no
// header, one row per postal code.
var geoFields = []string{
	"country_code", "zip", "name",
	"admin1_name", "admin1_code",
	"admin2_name", "admin2_code",
	"admin3_name", "admin3_code",
	"latitude", "longitude", "accuracy",
}

var geoSchema = Schema{
	Source: "geographic reference",
	Fields: []Field{
		{Name: "Name", DType: frame.DTstring},
		{Name: "County", DType: frame.DTunknown},
		{Name: "County_FIPS", DType: frame.DTunknown},
		{Name: "latitude", DType: frame.DTfloat},
		{Name: "longitude", DType: frame.DTfloat},
		{Name: "accuracy", DType: frame.DTfloat},
	},
}

// GeoNames loads the postal dump, keeps the rows for one state (admin1 code,
// e.g. "ID") and renames to the pipeline's convention. The result still has
// one row per postal code; collapsing to one row per place is the
// harmonizer's job, since it needs county context to break ties.
func GeoNames(path, admin1Code string) (*frame.Frame, error) {
	f := frame.NewFiles()
	f.Sep = '\t'
	f.Header = false
	f.FieldNames = geoFields

	var (
		fr *frame.Frame
		e  error
	)

	if fr, e = f.Load(path); e != nil {
		return nil, &LoadError{Source: geoSchema.Source, Err: e}
	}

	state, e := fr.Column("admin1_code")
	if e != nil {
		return nil, &LoadError{Source: geoSchema.Source, Err: e}
	}

	if state.DataType() != frame.DTstring {
		return nil, &LoadError{Source: geoSchema.Source,
			Err: fmt.Errorf("admin1_code is %s, want string", state.DataType())}
	}

	fr = fr.Filter(func(row int) bool { return state.Element(row).(string) == admin1Code })

	for raw, to := range map[string]string{
		"name": "Name", "zip": "Zip",
		"admin2_name": "County", "admin2_code": "County_FIPS",
	} {
		var col *frame.Col
		if col, e = fr.Column(raw); e != nil {
			return nil, &LoadError{Source: geoSchema.Source, Err: e}
		}

		col.Name(to)
	}

	if e = fr.DropColumns("country_code", "admin1_name", "admin1_code",
		"admin3_name", "admin3_code"); e != nil {
		return nil, &LoadError{Source: geoSchema.Source, Err: e}
	}

	if e = geoSchema.Validate(fr); e != nil {
		return nil, e
	}

	return fr, nil
}
