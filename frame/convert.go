package frame

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// *********** Conversions ***********

// Cells arriving from CSV and workbook sources are strings; the helpers here
// impute a column type from them. The rules:
//   - every cell parses as an integer and none are blank -> []int
//   - every cell parses as a float or is blank -> []float64, blanks as NaN
//   - otherwise -> []string, blanks as ""

func toInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if i, e := strconv.ParseInt(s, 10, 64); e == nil {
		return int(i), true
	}

	return 0, false
}

func toFloat(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if f, e := strconv.ParseFloat(s, 64); e == nil {
		return f, true
	}

	return 0, false
}

// ImputeCol builds a Col from raw string cells, choosing the narrowest type
// that fits per the rules above.
func ImputeCol(name string, raw []string) *Col {
	isInt, isFloat := true, true

	for ind := 0; ind < len(raw); ind++ {
		s := strings.TrimSpace(raw[ind])

		if s == "" {
			isInt = false
			continue
		}

		if _, ok := toInt(s); !ok {
			isInt = false
		}

		if _, ok := toFloat(s); !ok {
			isFloat = false
		}
	}

	switch {
	case isInt && len(raw) > 0:
		data := make([]int, len(raw))
		for ind := 0; ind < len(raw); ind++ {
			data[ind], _ = toInt(raw[ind])
		}
		return &Col{name: name, dt: DTint, data: data}
	case isFloat:
		data := make([]float64, len(raw))
		for ind := 0; ind < len(raw); ind++ {
			var ok bool
			if data[ind], ok = toFloat(raw[ind]); !ok {
				data[ind] = math.NaN()
			}
		}
		return &Col{name: name, dt: DTfloat, data: data}
	default:
		data := make([]string, len(raw))
		for ind := 0; ind < len(raw); ind++ {
			data[ind] = strings.TrimSpace(raw[ind])
		}
		return &Col{name: name, dt: DTstring, data: data}
	}
}

// FromRows builds a Frame from row-major string cells, one output column per
// field name. Short rows are padded with blanks.
func FromRows(fieldNames []string, rows [][]string) (*Frame, error) {
	if len(fieldNames) == 0 {
		return nil, fmt.Errorf("no field names in FromRows")
	}

	var cols []*Col
	for ind := 0; ind < len(fieldNames); ind++ {
		raw := make([]string, len(rows))
		for r := 0; r < len(rows); r++ {
			if ind < len(rows[r]) {
				raw[r] = rows[r][ind]
			}
		}

		cols = append(cols, ImputeCol(fieldNames[ind], raw))
	}

	return New(cols...)
}

// CellString renders a cell for writing: floats per floatFmt with missing as
// blank, ints as-is, strings as-is.
func CellString(v any, floatFmt string) string {
	switch d := v.(type) {
	case float64:
		if math.IsNaN(d) {
			return ""
		}
		return fmt.Sprintf(floatFmt, d)
	case int:
		return strconv.Itoa(d)
	case string:
		return d
	default:
		return fmt.Sprintf("%v", d)
	}
}
