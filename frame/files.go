package frame

import (
	"encoding/csv"
	"fmt"
	"os"
)

// All code interacting with delimited files is here

const (
	Sep         = ','
	FloatFormat = "%.4f"
	Header      = true
)

// Files reads and writes a Frame as a delimited text file. The zero settings
// from NewFiles are standard CSV with a header row; set Sep='\t' and
// Header=false for headerless tab dumps such as the GeoNames postal file.
type Files struct {
	FieldNames  []string // used when Header is false, and on write
	Sep         rune
	FloatFormat string
	Header      bool
}

func NewFiles() *Files {
	return &Files{
		Sep:         Sep,
		FloatFormat: FloatFormat,
		Header:      Header,
	}
}

// Load reads fileName into a Frame. With Header true the first row names the
// columns; otherwise FieldNames must be set and rows with more fields than
// FieldNames are truncated.
func (f *Files) Load(fileName string) (*Frame, error) {
	var (
		file *os.File
		e    error
	)

	if file, e = os.Open(fileName); e != nil {
		return nil, e
	}
	defer func() { _ = file.Close() }()

	r := csv.NewReader(file)
	r.Comma = f.Sep
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	if rows, e = r.ReadAll(); e != nil {
		return nil, fmt.Errorf("%s: %w", fileName, e)
	}

	fieldNames := f.FieldNames
	if f.Header {
		if len(rows) == 0 {
			return nil, fmt.Errorf("%s: empty file", fileName)
		}

		fieldNames, rows = rows[0], rows[1:]
	}

	if len(fieldNames) == 0 {
		return nil, fmt.Errorf("%s: no field names", fileName)
	}

	for ind := 0; ind < len(rows); ind++ {
		if len(rows[ind]) > len(fieldNames) {
			rows[ind] = rows[ind][:len(fieldNames)]
		}
	}

	return FromRows(fieldNames, rows)
}

// Save writes fr to fileName. Missing cells are written blank, so a saved
// file reloads with the same missing pattern.
func (f *Files) Save(fileName string, fr *Frame) error {
	var (
		file *os.File
		e    error
	)

	if file, e = os.Create(fileName); e != nil {
		return e
	}
	defer func() { _ = file.Close() }()

	w := csv.NewWriter(file)
	w.Comma = f.Sep

	if f.Header {
		if e = w.Write(fr.ColumnNames()); e != nil {
			return e
		}
	}

	record := make([]string, fr.ColumnCount())
	for row := 0; row < fr.RowCount(); row++ {
		cells := fr.Row(row)
		for ind := 0; ind < len(cells); ind++ {
			record[ind] = CellString(cells[ind], f.FloatFormat)
		}

		if e = w.Write(record); e != nil {
			return e
		}
	}

	w.Flush()

	return w.Error()
}
