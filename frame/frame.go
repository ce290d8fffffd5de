// Package frame provides the in-memory columnar table shared by the pipeline
// stages. A Frame is a linked list of Cols. Three data types are supported:
// float64, int and string. Missing values are math.NaN() for floats and the
// empty string for strings; int columns cannot hold missing values, so any
// numeric source column with gaps is loaded as float.
package frame

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	u "github.com/invertedv/utilities"
)

type DataTypes uint8

const (
	DTunknown DataTypes = 0 + iota
	DTfloat
	DTint
	DTstring
)

func (dt DataTypes) String() string {
	switch dt {
	case DTfloat:
		return "float"
	case DTint:
		return "int"
	case DTstring:
		return "string"
	default:
		return "unknown"
	}
}

// Col is a single named column. The data slice is held as any and accessed
// by type switch, per DataType.
type Col struct {
	name string
	dt   DataTypes
	data any
}

func NewCol(name string, data any) (*Col, error) {
	var dt DataTypes
	switch data.(type) {
	case []float64:
		dt = DTfloat
	case []int:
		dt = DTint
	case []string:
		dt = DTstring
	default:
		return nil, fmt.Errorf("unsupported data type for column %s", name)
	}

	return &Col{name: name, dt: dt, data: data}, nil
}

// Name returns the column name, renaming it first if renameTo is non-empty.
func (c *Col) Name(renameTo string) string {
	if renameTo != "" {
		c.name = renameTo
	}

	return c.name
}

func (c *Col) DataType() DataTypes {
	return c.dt
}

func (c *Col) Len() int {
	switch c.dt {
	case DTfloat:
		return len(c.data.([]float64))
	case DTint:
		return len(c.data.([]int))
	case DTstring:
		return len(c.data.([]string))
	default:
		return -1
	}
}

func (c *Col) Data() any {
	return c.data
}

func (c *Col) Element(row int) any {
	switch c.dt {
	case DTfloat:
		return c.data.([]float64)[row]
	case DTint:
		return c.data.([]int)[row]
	case DTstring:
		return c.data.([]string)[row]
	default:
		panic(fmt.Errorf("unsupported data type in Element"))
	}
}

// Missing reports whether the cell at row holds the missing marker.
// Int columns never hold missing values.
func (c *Col) Missing(row int) bool {
	switch c.dt {
	case DTfloat:
		return math.IsNaN(c.data.([]float64)[row])
	case DTstring:
		return c.data.([]string)[row] == ""
	default:
		return false
	}
}

// Float returns the cell as float64. ok is false for missing cells and for
// string columns.
func (c *Col) Float(row int) (val float64, ok bool) {
	switch c.dt {
	case DTfloat:
		v := c.data.([]float64)[row]
		return v, !math.IsNaN(v)
	case DTint:
		return float64(c.data.([]int)[row]), true
	default:
		return 0, false
	}
}

func (c *Col) Copy() *Col {
	var copiedData any
	n := c.Len()
	switch c.dt {
	case DTfloat:
		copiedData = make([]float64, n)
		copy(copiedData.([]float64), c.data.([]float64))
	case DTint:
		copiedData = make([]int, n)
		copy(copiedData.([]int), c.data.([]int))
	case DTstring:
		copiedData = make([]string, n)
		copy(copiedData.([]string), c.data.([]string))
	default:
		panic(fmt.Errorf("unsupported data type in Copy"))
	}

	return &Col{name: c.name, dt: c.dt, data: copiedData}
}

func (c *Col) Less(i, j int) bool {
	switch c.dt {
	case DTfloat:
		return c.data.([]float64)[i] < c.data.([]float64)[j]
	case DTint:
		return c.data.([]int)[i] < c.data.([]int)[j]
	case DTstring:
		return c.data.([]string)[i] < c.data.([]string)[j]
	default:
		panic(fmt.Errorf("unsupported data type in Less"))
	}
}

// Frame is the table: a doubly-linked list of columns, all the same length.
type Frame struct {
	head    *colNode
	current *colNode

	by []*Col // sort keys, set by Sort
}

type colNode struct {
	col *Col

	prior *colNode
	next  *colNode
}

func New(cols ...*Col) (*Frame, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("no columns in New")
	}

	rowCount := cols[0].Len()

	seen := make(map[string]bool)

	var head, priorNode *colNode
	for ind := 0; ind < len(cols); ind++ {
		if cols[ind].Len() != rowCount {
			return nil, fmt.Errorf("length mismatch: column %s has %d rows, want %d",
				cols[ind].Name(""), cols[ind].Len(), rowCount)
		}

		if seen[cols[ind].Name("")] {
			return nil, fmt.Errorf("duplicate column name: %s", cols[ind].Name(""))
		}
		seen[cols[ind].Name("")] = true

		node := &colNode{col: cols[ind], prior: priorNode}

		if priorNode != nil {
			priorNode.next = node
		}

		priorNode = node

		if ind == 0 {
			head = node
		}
	}

	return &Frame{head: head}, nil
}

// Next iterates the columns. Pass reset=true to start from the first column;
// returns nil after the last.
func (f *Frame) Next(reset bool) *Col {
	if reset || f.current == nil {
		f.current = f.head
		return f.current.col
	}

	if f.current.next == nil {
		f.current = nil
		return nil
	}

	f.current = f.current.next
	return f.current.col
}

func (f *Frame) RowCount() int {
	return f.head.col.Len()
}

func (f *Frame) ColumnCount() int {
	cols := 0
	for c := f.head; c != nil; c = c.next {
		cols++
	}

	return cols
}

func (f *Frame) ColumnNames() []string {
	var names []string

	for h := f.head; h != nil; h = h.next {
		names = append(names, h.col.Name(""))
	}

	return names
}

func (f *Frame) Column(colName string) (*Col, error) {
	for h := f.head; h != nil; h = h.next {
		if h.col.Name("") == colName {
			return h.col, nil
		}
	}

	return nil, fmt.Errorf("column %s not found", colName)
}

func (f *Frame) HasColumns(colNames ...string) bool {
	for _, cName := range colNames {
		if !u.Has(cName, "", f.ColumnNames()...) {
			return false
		}
	}

	return true
}

func (f *Frame) AppendColumn(col *Col) error {
	if u.Has(col.Name(""), "", f.ColumnNames()...) {
		return fmt.Errorf("duplicate column name: %s", col.Name(""))
	}

	if col.Len() != f.RowCount() {
		return fmt.Errorf("length mismatch: frame - %d, append col - %d", f.RowCount(), col.Len())
	}

	var tail *colNode
	for tail = f.head; tail.next != nil; tail = tail.next {
	}

	tail.next = &colNode{col: col, prior: tail}

	return nil
}

// ReplaceColumn swaps in col for the existing column of the same name,
// keeping its position.
func (f *Frame) ReplaceColumn(col *Col) error {
	var (
		node *colNode
		e    error
	)

	if node, e = f.node(col.Name("")); e != nil {
		return e
	}

	if col.Len() != f.RowCount() {
		return fmt.Errorf("length mismatch: frame - %d, replace col - %d", f.RowCount(), col.Len())
	}

	node.col = col

	return nil
}

func (f *Frame) node(colName string) (*colNode, error) {
	for h := f.head; h != nil; h = h.next {
		if h.col.Name("") == colName {
			return h, nil
		}
	}

	return nil, fmt.Errorf("column %s not found", colName)
}

func (f *Frame) DropColumns(colNames ...string) error {
	for _, cName := range colNames {
		var (
			node *colNode
			e    error
		)

		if node, e = f.node(cName); e != nil {
			return e
		}

		if node == f.head {
			if f.head.next == nil {
				return fmt.Errorf("cannot drop %s: no columns left", cName)
			}

			f.head = f.head.next
			f.head.prior = nil
			continue
		}

		node.prior.next = node.next
		if node.next != nil {
			node.next.prior = node.prior
		}
	}

	return nil
}

// KeepColumns returns a new Frame holding copies of just the named columns.
func (f *Frame) KeepColumns(colNames ...string) (*Frame, error) {
	var cols []*Col

	for ind := 0; ind < len(colNames); ind++ {
		var (
			col *Col
			e   error
		)

		if col, e = f.Column(colNames[ind]); e != nil {
			return nil, e
		}

		cols = append(cols, col.Copy())
	}

	return New(cols...)
}

func (f *Frame) Copy() *Frame {
	var cols []*Col
	for h := f.head; h != nil; h = h.next {
		cols = append(cols, h.col.Copy())
	}

	out, e := New(cols...)
	if e != nil {
		panic(e)
	}

	return out
}

// Row returns the cells of row i in column order.
func (f *Frame) Row(i int) []any {
	var row []any
	for h := f.head; h != nil; h = h.next {
		row = append(row, h.col.Element(i))
	}

	return row
}

// Filter returns a new Frame holding the rows for which keep returns true.
func (f *Frame) Filter(keep func(row int) bool) *Frame {
	var rows []int
	for ind := 0; ind < f.RowCount(); ind++ {
		if keep(ind) {
			rows = append(rows, ind)
		}
	}

	var cols []*Col
	for h := f.head; h != nil; h = h.next {
		cols = append(cols, subsetCol(h.col, rows))
	}

	out, e := New(cols...)
	if e != nil {
		panic(e)
	}

	return out
}

func subsetCol(c *Col, rows []int) *Col {
	switch c.DataType() {
	case DTfloat:
		data := make([]float64, len(rows))
		src := c.Data().([]float64)
		for ind, r := range rows {
			data[ind] = src[r]
		}
		return &Col{name: c.name, dt: c.dt, data: data}
	case DTint:
		data := make([]int, len(rows))
		src := c.Data().([]int)
		for ind, r := range rows {
			data[ind] = src[r]
		}
		return &Col{name: c.name, dt: c.dt, data: data}
	case DTstring:
		data := make([]string, len(rows))
		src := c.Data().([]string)
		for ind, r := range rows {
			data[ind] = src[r]
		}
		return &Col{name: c.name, dt: c.dt, data: data}
	default:
		panic(fmt.Errorf("unsupported data type in subsetCol"))
	}
}

// Search returns the names of columns matching pattern, case-insensitively.
// An invalid regex falls back to plain substring matching. Never errors:
// no match returns an empty slice.
func (f *Frame) Search(pattern string) []string {
	return matchStrings(pattern, f.ColumnNames())
}

func matchStrings(pattern string, candidates []string) []string {
	matched := []string{}
	match := Matcher(pattern)

	for _, c := range candidates {
		if match(c) {
			matched = append(matched, c)
		}
	}

	return matched
}

// Matcher compiles pattern into a case-insensitive match function. An invalid
// regex falls back to plain substring matching.
func Matcher(pattern string) func(string) bool {
	if re, e := regexp.Compile("(?i)" + pattern); e == nil {
		return re.MatchString
	}

	lp := strings.ToLower(pattern)
	return func(s string) bool {
		return strings.Contains(strings.ToLower(s), lp)
	}
}

// //////// sorting

func (f *Frame) Sort(keys ...string) error {
	var by []*Col

	for ind := 0; ind < len(keys); ind++ {
		var (
			col *Col
			e   error
		)

		if col, e = f.Column(keys[ind]); e != nil {
			return e
		}

		by = append(by, col)
	}

	f.by = by
	sort.Stable(f)
	f.by = nil

	return nil
}

// Len is required by sort.Interface.
func (f *Frame) Len() int {
	return f.RowCount()
}

func (f *Frame) Less(i, j int) bool {
	for ind := 0; ind < len(f.by); ind++ {
		if f.by[ind].Less(i, j) {
			return true
		}

		if f.by[ind].Less(j, i) {
			return false
		}

		// equal -- keep checking
	}

	return false
}

func (f *Frame) Swap(i, j int) {
	for h := f.head; h != nil; h = h.next {
		data := h.col.data
		switch h.col.DataType() {
		case DTfloat:
			data.([]float64)[i], data.([]float64)[j] = data.([]float64)[j], data.([]float64)[i]
		case DTint:
			data.([]int)[i], data.([]int)[j] = data.([]int)[j], data.([]int)[i]
		case DTstring:
			data.([]string)[i], data.([]string)[j] = data.([]string)[j], data.([]string)[i]
		default:
			panic(fmt.Errorf("unsupported data type in Swap"))
		}
	}
}
