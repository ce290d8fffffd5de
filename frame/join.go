package frame

import (
	"fmt"
	"math"
	"strings"

	u "github.com/invertedv/utilities"
)

// DupKeyError reports a duplicate join key where uniqueness is required.
// A duplicate in the authoritative table is a data-integrity defect; a
// duplicate on a join's right side means the table was not deduplicated
// upstream.
type DupKeyError struct {
	Side string
	Key  string
}

func (e *DupKeyError) Error() string {
	return fmt.Sprintf("duplicate join key %s in %s table", e.Key, e.Side)
}

// JoinKey renders the on-column cells of a row as a single string key.
func JoinKey(f *Frame, row int, on ...string) (string, error) {
	var parts []string

	for ind := 0; ind < len(on); ind++ {
		var (
			col *Col
			e   error
		)

		if col, e = f.Column(on[ind]); e != nil {
			return "", e
		}

		parts = append(parts, CellString(col.Element(row), "%g"))
	}

	return strings.Join(parts, "\x1f"), nil
}

// CheckUnique returns a *DupKeyError if fr has two rows with the same key
// over the on columns. side names the table in the error. Rows with a
// missing cell in any on column are not checked: an unjoinable row cannot
// duplicate a key.
func CheckUnique(fr *Frame, side string, on ...string) error {
	seen := make(map[string]bool)
	for row := 0; row < fr.RowCount(); row++ {
		var (
			miss bool
			e    error
		)

		if miss, e = keyMissing(fr, row, on...); e != nil {
			return e
		}

		if miss {
			continue
		}

		var key string
		if key, e = JoinKey(fr, row, on...); e != nil {
			return e
		}

		if seen[key] {
			return &DupKeyError{Side: side, Key: key}
		}

		seen[key] = true
	}

	return nil
}

// keyMissing reports whether any on-column cell of row is missing.
func keyMissing(f *Frame, row int, on ...string) (bool, error) {
	for ind := 0; ind < len(on); ind++ {
		var (
			col *Col
			e   error
		)

		if col, e = f.Column(on[ind]); e != nil {
			return false, e
		}

		if col.Missing(row) {
			return true, nil
		}
	}

	return false, nil
}

// LeftJoin joins right onto left over the on columns. left is authoritative:
// the result has exactly one row per left row, in left's order. Right columns
// have missing cells where no right row matches; unmatched is the count of
// such left rows. Keys must be unique on the right -- a duplicate returns a
// *DupKeyError -- while repeated left keys are fine (a city table joining a
// per-city lookup repeats the city across years). Rows with a missing cell
// in an on column never match: they are skipped on the right and count as
// unmatched on the left, so two unjoinable rows cannot find each other.
// Right columns whose names collide with left's are suffixed with suffix
// (default "_r").
func LeftJoin(left, right *Frame, suffix string, on ...string) (out *Frame, unmatched int, err error) {
	if suffix == "" {
		suffix = "_r"
	}

	if !left.HasColumns(on...) || !right.HasColumns(on...) {
		return nil, 0, fmt.Errorf("join columns %s not present in both tables", strings.Join(on, ","))
	}

	// index the right side
	rIndex := make(map[string]int)
	for row := 0; row < right.RowCount(); row++ {
		var (
			miss bool
			e    error
		)

		if miss, e = keyMissing(right, row, on...); e != nil {
			return nil, 0, e
		}

		if miss {
			continue
		}

		var key string
		if key, e = JoinKey(right, row, on...); e != nil {
			return nil, 0, e
		}

		if _, dup := rIndex[key]; dup {
			return nil, 0, &DupKeyError{Side: "right", Key: key}
		}

		rIndex[key] = row
	}

	// map each left row to its right row (-1: no match)
	match := make([]int, left.RowCount())
	for row := 0; row < left.RowCount(); row++ {
		var (
			miss bool
			e    error
		)

		if miss, e = keyMissing(left, row, on...); e != nil {
			return nil, 0, e
		}

		match[row] = -1
		if !miss {
			var key string
			if key, e = JoinKey(left, row, on...); e != nil {
				return nil, 0, e
			}

			if r, ok := rIndex[key]; ok {
				match[row] = r
				continue
			}
		}

		unmatched++
	}

	var cols []*Col
	for h := left.head; h != nil; h = h.next {
		cols = append(cols, h.col.Copy())
	}

	leftNames := left.ColumnNames()
	for h := right.head; h != nil; h = h.next {
		name := h.col.Name("")
		if u.Has(name, "", on...) {
			continue
		}

		if u.Has(name, "", leftNames...) {
			name += suffix
		}

		cols = append(cols, gatherCol(name, h.col, match))
	}

	if out, err = New(cols...); err != nil {
		return nil, 0, err
	}

	return out, unmatched, nil
}

// gatherCol builds a left-length column from src using the match map. Int
// columns are promoted to float when any left row is unmatched, since int
// has no missing marker.
func gatherCol(name string, src *Col, match []int) *Col {
	anyMiss := false
	for _, m := range match {
		if m < 0 {
			anyMiss = true
			break
		}
	}

	switch {
	case src.DataType() == DTstring:
		data := make([]string, len(match))
		for ind, m := range match {
			if m >= 0 {
				data[ind] = src.Data().([]string)[m]
			}
		}
		return &Col{name: name, dt: DTstring, data: data}
	case src.DataType() == DTint && !anyMiss:
		data := make([]int, len(match))
		for ind, m := range match {
			data[ind] = src.Data().([]int)[m]
		}
		return &Col{name: name, dt: DTint, data: data}
	default:
		data := make([]float64, len(match))
		for ind, m := range match {
			if m < 0 {
				data[ind] = math.NaN()
				continue
			}

			v, ok := src.Float(m)
			if !ok {
				v = math.NaN()
			}
			data[ind] = v
		}
		return &Col{name: name, dt: DTfloat, data: data}
	}
}
