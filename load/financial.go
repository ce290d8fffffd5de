package load

import (
	"github.com/idahopolicy/munipanel/frame"
)

// FinancialConfig locates the municipal financial workbook. The workbook
// carries a title banner above the header, so HeaderRow is usually 1.
type FinancialConfig struct {
	Path      string `koanf:"path"`
	Sheet     string `koanf:"sheet"`
	HeaderRow int    `koanf:"header_row"`
}

// FinancialSchema is the minimum the rest of the pipeline relies on. The
// workbook carries several hundred further revenue/expenditure/debt and
// crime-count columns which pass through untyped.
var FinancialSchema = Schema{
	Source: "financial workbook",
	Fields: []Field{
		{Name: "Name", DType: frame.DTstring},
		{Name: "Year4", DType: frame.DTint},
		{Name: "FIPS_County", DType: frame.DTfloat},
		{Name: "Population", DType: frame.DTfloat},
		{Name: "Total_Revenue", DType: frame.DTfloat},
		{Name: "Total_Expenditure", DType: frame.DTfloat},
		{Name: "Total_Debt", DType: frame.DTfloat},
	},
}

// Financial loads the authoritative financial table, one row per (city, year).
func Financial(cfg FinancialConfig) (*frame.Frame, error) {
	var (
		fr *frame.Frame
		e  error
	)

	if fr, e = Workbook(cfg.Path, cfg.Sheet, cfg.HeaderRow); e != nil {
		return nil, &LoadError{Source: FinancialSchema.Source, Err: e}
	}

	if e = FinancialSchema.Validate(fr); e != nil {
		return nil, e
	}

	return fr, nil
}
