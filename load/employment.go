package load

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/idahopolicy/munipanel/frame"
)

// EmploymentConfig locates the per-year BLS county employment workbooks.
// The header in those files is stacked across three rows.
type EmploymentConfig struct {
	Glob       string `koanf:"glob"`
	Sheet      string `koanf:"sheet"`
	HeaderRows []int  `koanf:"header_rows"`
	StateFIPS  int    `koanf:"state_fips"`
}

var EmploymentSchema = Schema{
	Source: "employment workbooks",
	Fields: []Field{
		{Name: "State_FIPS_Code", DType: frame.DTfloat},
		{Name: "County_FIPS_Code", DType: frame.DTfloat},
		{Name: "Year", DType: frame.DTfloat},
		{Name: "Labor_Force", DType: frame.DTfloat},
		{Name: "Employed", DType: frame.DTfloat},
		{Name: "Unemployed", DType: frame.DTfloat},
		{Name: "Unemployment_Rate", DType: frame.DTfloat},
	},
}

// Employment compiles the yearly workbooks into one frame keyed by
// (County_FIPS_Code, Year), filtered to the configured state.
func Employment(cfg EmploymentConfig) (*frame.Frame, error) {
	var (
		files []string
		e     error
	)

	if files, e = filepath.Glob(cfg.Glob); e != nil {
		return nil, &LoadError{Source: EmploymentSchema.Source, Err: e}
	}

	if len(files) == 0 {
		return nil, &LoadError{Source: EmploymentSchema.Source,
			Err: fmt.Errorf("no files match %s", cfg.Glob)}
	}

	sort.Strings(files)

	var (
		fieldNames []string
		data       [][]string
	)

	for _, file := range files {
		var rows [][]string
		if rows, e = sheetRows(file, cfg.Sheet); e != nil {
			return nil, &LoadError{Source: EmploymentSchema.Source,
				Err: fmt.Errorf("%s: %w", file, e)}
		}

		var head [][]string
		last := 0
		for _, hr := range cfg.HeaderRows {
			if hr >= len(rows) {
				return nil, &LoadError{Source: EmploymentSchema.Source,
					Err: fmt.Errorf("%s: header row %d past end of sheet", file, hr)}
			}

			head = append(head, rows[hr])
			if hr > last {
				last = hr
			}
		}

		names := headerNames(head)
		if fieldNames == nil {
			fieldNames = names
		}

		if len(names) != len(fieldNames) {
			return nil, &LoadError{Source: EmploymentSchema.Source,
				Err: fmt.Errorf("%s: %d columns, want %d", file, len(names), len(fieldNames))}
		}

		data = append(data, rows[last+1:]...)
	}

	var fr *frame.Frame
	if fr, e = frame.FromRows(fieldNames, data); e != nil {
		return nil, &LoadError{Source: EmploymentSchema.Source, Err: e}
	}

	if e = EmploymentSchema.Validate(fr); e != nil {
		return nil, e
	}

	state, _ := fr.Column("State_FIPS_Code")
	fr = fr.Filter(func(row int) bool {
		v, ok := state.Float(row)
		return ok && int(v) == cfg.StateFIPS
	})

	return fr, nil
}
