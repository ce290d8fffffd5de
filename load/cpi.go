package load

import (
	"fmt"

	"github.com/idahopolicy/munipanel/frame"
)

// CPIConfig locates the BLS CPI workbook. The published table carries a
// banner above the header, so HeaderRow is usually 11. Columns are Year,
// the months Jan..Dec where published, and Annual.
type CPIConfig struct {
	Path      string `koanf:"path"`
	Sheet     string `koanf:"sheet"`
	HeaderRow int    `koanf:"header_row"`
}

// MonthNames maps the CPI workbook's month columns to month numbers.
var MonthNames = map[string]int{
	"Jan": 1, "Feb": 2, "Mar": 3, "Apr": 4, "May": 5, "Jun": 6,
	"Jul": 7, "Aug": 8, "Sep": 9, "Oct": 10, "Nov": 11, "Dec": 12,
}

// CPI loads the price-index workbook. The frame has a Year column plus
// whatever of Annual/Jan..Dec the table publishes; at least one index
// column must be present.
func CPI(cfg CPIConfig) (*frame.Frame, error) {
	var (
		fr *frame.Frame
		e  error
	)

	if fr, e = Workbook(cfg.Path, cfg.Sheet, cfg.HeaderRow); e != nil {
		return nil, &LoadError{Source: "cpi table", Err: e}
	}

	s := Schema{Source: "cpi table", Fields: []Field{{Name: "Year", DType: frame.DTint}}}
	if e = s.Validate(fr); e != nil {
		return nil, e
	}

	for name := range MonthNames {
		if fr.HasColumns(name) {
			return fr, nil
		}
	}

	if fr.HasColumns("Annual") {
		return fr, nil
	}

	return nil, &LoadError{Source: "cpi table",
		Err: fmt.Errorf("no index columns (Annual or month names) present")}
}
