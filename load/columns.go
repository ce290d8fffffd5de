package load

import (
	"path/filepath"

	"github.com/idahopolicy/munipanel/frame"
)

// Descriptor maps a column name to its human-readable description and the
// file it came from. Read-only after load.
type Descriptor struct {
	ShortName string
	LongName  string
	Source    string
}

type Columns []Descriptor

// LoadColumns reads the two-column description table (ShortName, LongName).
func LoadColumns(path string) (Columns, error) {
	var (
		fr *frame.Frame
		e  error
	)

	if fr, e = frame.NewFiles().Load(path); e != nil {
		return nil, &LoadError{Source: "column descriptions", Err: e}
	}

	s := Schema{
		Source: "column descriptions",
		Fields: []Field{
			{Name: "ShortName", DType: frame.DTstring},
			{Name: "LongName", DType: frame.DTunknown},
		},
	}
	if e = s.Validate(fr); e != nil {
		return nil, e
	}

	short, _ := fr.Column("ShortName")
	long, _ := fr.Column("LongName")

	cs := make(Columns, 0, fr.RowCount())
	base := filepath.Base(path)
	for row := 0; row < fr.RowCount(); row++ {
		cs = append(cs, Descriptor{
			ShortName: short.Element(row).(string),
			LongName:  frame.CellString(long.Element(row), "%g"),
			Source:    base,
		})
	}

	return cs, nil
}

// Search returns the descriptors whose name or description matches pattern,
// case-insensitively. No match is an empty, non-nil slice, never an error.
func (cs Columns) Search(pattern string) Columns {
	match := frame.Matcher(pattern)

	out := Columns{}
	for _, d := range cs {
		if match(d.ShortName) || match(d.LongName) {
			out = append(out, d)
		}
	}

	return out
}

// Names returns the ShortName of every descriptor, in order.
func (cs Columns) Names() []string {
	var names []string
	for _, d := range cs {
		names = append(names, d.ShortName)
	}

	return names
}
