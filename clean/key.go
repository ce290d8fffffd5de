// Package clean holds the stages between loading and modeling: key
// harmonization, duplicate resolution, inflation adjustment and feature
// normalization. Every function here returns an augmented copy or reports a
// count of per-row defects; the only hard failures are structural (a column
// that should exist does not, a reference period with no CPI entry).
package clean

import (
	"fmt"
	"strings"

	"github.com/idahopolicy/munipanel/frame"
)

// KeyCol is the canonical join-key column the harmonizer appends.
const KeyCol = "city_key"

// Aliases maps a canonical city key to its preferred spelling, for known
// name variants across sources ("BSU CITY" -> "Boise" and the like). Keys
// are matched after canonicalization.
type Aliases map[string]string

// CityKey canonicalizes a city name: upper case, single spaces, no periods,
// leading "CITY OF" and trailing "CITY" dropped.
func CityKey(name string) string {
	up := strings.Join(strings.Fields(strings.ToUpper(strings.ReplaceAll(name, ".", ""))), " ")

	up = strings.TrimPrefix(up, "CITY OF ")
	up = strings.TrimSuffix(up, " CITY")

	return strings.TrimSpace(up)
}

// AddCityKey appends KeyCol built from nameCol, running names through the
// alias table. Rows whose name is blank get an empty key -- they are
// retained, flagged unjoinable by that empty key, and counted.
func AddCityKey(fr *frame.Frame, nameCol string, aliases Aliases) (unresolved int, err error) {
	var col *frame.Col
	if col, err = fr.Column(nameCol); err != nil {
		return 0, err
	}

	if col.DataType() != frame.DTstring {
		return 0, fmt.Errorf("column %s is %s, want string", nameCol, col.DataType())
	}

	keys := make([]string, fr.RowCount())
	for row := 0; row < fr.RowCount(); row++ {
		key := CityKey(col.Element(row).(string))
		if alias, ok := aliases[key]; ok {
			key = CityKey(alias)
		}

		keys[row] = key
		if key == "" {
			unresolved++
		}
	}

	keyCol, e := frame.NewCol(KeyCol, keys)
	if e != nil {
		return 0, e
	}

	return unresolved, fr.AppendColumn(keyCol)
}

// Zip5 rewrites zipCol to a plain 5-digit string, truncating ZIP+4 forms.
func Zip5(fr *frame.Frame, zipCol string) error {
	var (
		col *frame.Col
		e   error
	)

	if col, e = fr.Column(zipCol); e != nil {
		return e
	}

	zips := make([]string, fr.RowCount())
	for row := 0; row < fr.RowCount(); row++ {
		var z string
		switch v := col.Element(row).(type) {
		case string:
			z = strings.SplitN(strings.TrimSpace(v), "-", 2)[0]
		case int:
			z = fmt.Sprintf("%05d", v)
		case float64:
			z = fmt.Sprintf("%05.0f", v)
		}

		if len(z) > 5 {
			z = z[:5]
		}

		zips[row] = z
	}

	newCol, e := frame.NewCol(zipCol, zips)
	if e != nil {
		return e
	}

	return fr.ReplaceColumn(newCol)
}

// MostComplete returns a prefer function for Dedupe that keeps the row with
// the most non-missing cells; first wins ties.
func MostComplete(fr *frame.Frame) func(rows []int) int {
	return func(rows []int) int {
		best, bestFilled := 0, -1
		for ind, row := range rows {
			filled := 0
			for c := fr.Next(true); c != nil; c = fr.Next(false) {
				if !c.Missing(row) {
					filled++
				}
			}

			if filled > bestFilled {
				best, bestFilled = ind, filled
			}
		}

		return best
	}
}

// PreferCounty returns a prefer function that resolves an ambiguous city key
// (two places sharing a key) toward the row whose county column matches
// want[key]; groups with no county match fall back to MostComplete.
func PreferCounty(fr *frame.Frame, countyCol string, want map[string]string) (func(rows []int) int, error) {
	var (
		key, county *frame.Col
		e           error
	)

	if key, e = fr.Column(KeyCol); e != nil {
		return nil, e
	}

	if county, e = fr.Column(countyCol); e != nil {
		return nil, e
	}

	fallback := MostComplete(fr)

	return func(rows []int) int {
		target, ok := want[frame.CellString(key.Element(rows[0]), "%g")]
		if ok {
			for ind, row := range rows {
				if countyCode(county.Element(row)) == countyCode(target) {
					return ind
				}
			}
		}

		return fallback(rows)
	}, nil
}

// Disambiguate finds keys whose rows span more than one county -- two
// distinct places sharing a canonical name -- and blanks the key of every
// row in such a group unless the county hint in want resolves it. Blanked
// rows are unjoinable rather than a coordinate guess; ambiguous is the
// count of keys blanked.
func Disambiguate(fr *frame.Frame, countyCol string, want map[string]string) (ambiguous int, err error) {
	var key, county *frame.Col

	if key, err = fr.Column(KeyCol); err != nil {
		return 0, err
	}

	if key.DataType() != frame.DTstring {
		return 0, fmt.Errorf("column %s is %s, want string", KeyCol, key.DataType())
	}

	if county, err = fr.Column(countyCol); err != nil {
		return 0, err
	}

	keys := key.Data().([]string)

	groups := make(map[string][]int)
	for row := 0; row < fr.RowCount(); row++ {
		if keys[row] == "" {
			continue
		}

		groups[keys[row]] = append(groups[keys[row]], row)
	}
	for k, rows := range groups {
		counties := make(map[string]bool)
		for _, row := range rows {
			counties[countyCode(county.Element(row))] = true
		}

		if len(counties) < 2 {
			continue
		}

		if hint, ok := want[k]; ok && counties[countyCode(hint)] {
			continue
		}

		for _, row := range rows {
			keys[row] = ""
		}

		ambiguous++
	}

	return ambiguous, nil
}

// countyCode canonicalizes a county identifier for comparison. FIPS codes
// arrive as ints in one source and zero-padded strings in another, so "001"
// and 1 must agree.
func countyCode(v any) string {
	s := frame.CellString(v, "%g")
	for _, r := range s {
		if r < '0' || r > '9' {
			return s
		}
	}

	if trimmed := strings.TrimLeft(s, "0"); trimmed != "" || s == "" {
		return trimmed
	}

	return "0"
}

// Dedupe drops all but one row per distinct key, choosing the keeper with
// prefer (nil means MostComplete). Row order of the keepers is preserved.
// The drop count is reported so the caller can judge data quality.
func Dedupe(fr *frame.Frame, keys []string, prefer func(rows []int) int) (out *frame.Frame, dropped int, err error) {
	if !fr.HasColumns(keys...) {
		return nil, 0, fmt.Errorf("dedupe keys %s not all present", strings.Join(keys, ","))
	}

	if prefer == nil {
		prefer = MostComplete(fr)
	}

	var order []string
	groups := make(map[string][]int)
	for row := 0; row < fr.RowCount(); row++ {
		var (
			key string
			e   error
		)

		if key, e = frame.JoinKey(fr, row, keys...); e != nil {
			return nil, 0, e
		}

		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}

		groups[key] = append(groups[key], row)
	}

	keep := make(map[int]bool)
	for _, key := range order {
		rows := groups[key]
		keep[rows[prefer(rows)]] = true
		dropped += len(rows) - 1
	}

	out = fr.Filter(func(row int) bool { return keep[row] })

	return out, dropped, nil
}

// Unjoinable counts the rows whose key column is empty, i.e. rows the
// harmonizer retained but could not resolve.
func Unjoinable(fr *frame.Frame) (int, error) {
	var (
		col *frame.Col
		e   error
	)

	if col, e = fr.Column(KeyCol); e != nil {
		return 0, e
	}

	n := 0
	for row := 0; row < fr.RowCount(); row++ {
		if col.Missing(row) {
			n++
		}
	}

	return n, nil
}
