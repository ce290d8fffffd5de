// Package load reads the raw sources into frames: the municipal financial
// workbook, the GeoNames postal dump, the per-year BLS employment workbooks,
// the CPI workbook and the column-description table. Each loader validates a
// typed Schema at load time and returns a *LoadError on a structural problem;
// loaders never degrade to missing values -- per-row data quality is the
// cleaning stages' business.
package load

import (
	"fmt"
	"strings"

	"github.com/idahopolicy/munipanel/frame"
)

// LoadError is fatal: the source cannot be read or does not look like the
// source the schema describes.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Field names an expected column. DType frame.DTfloat accepts any numeric
// column; frame.DTunknown accepts any type.
type Field struct {
	Name  string
	DType frame.DataTypes
}

type Schema struct {
	Source string
	Fields []Field
}

func (s Schema) Validate(fr *frame.Frame) error {
	for _, fld := range s.Fields {
		var (
			col *frame.Col
			e   error
		)

		if col, e = fr.Column(fld.Name); e != nil {
			return &LoadError{Source: s.Source, Err: fmt.Errorf("required column %s absent", fld.Name)}
		}

		if !compatible(col.DataType(), fld.DType) {
			return &LoadError{
				Source: s.Source,
				Err:    fmt.Errorf("column %s: have %s, want %s", fld.Name, col.DataType(), fld.DType),
			}
		}
	}

	return nil
}

func compatible(got, want frame.DataTypes) bool {
	switch want {
	case frame.DTunknown:
		return true
	case frame.DTfloat:
		return got == frame.DTfloat || got == frame.DTint
	default:
		return got == want
	}
}

// normalizeName converts a raw header cell to the column-naming convention:
// no pipes, no unit suffixes, single underscores for whitespace.
func normalizeName(raw string) string {
	s := strings.NewReplacer("|", " ", "(%)", " ", "%", " ", "(", " ", ")", " ").Replace(raw)
	return strings.Join(strings.Fields(s), "_")
}
