// Package export writes a finished panel out: to a flat CSV via frame.Files,
// or to a ClickHouse/Postgres table for downstream query access. Only the
// write side of a database lives here; the pipeline never reads from one.
package export

import (
	"database/sql"
	"fmt"
	"math"
	"strings"

	u "github.com/invertedv/utilities"

	"github.com/idahopolicy/munipanel/frame"
)

const (
	ch = "clickhouse"
	pg = "postgres"
)

// insertBatch is the number of rows per INSERT statement.
const insertBatch = 500

type Dialect struct {
	db      *sql.DB
	dialect string
}

func NewDialect(dialect string, db *sql.DB) (*Dialect, error) {
	dialect = strings.ToLower(dialect)
	if dialect != ch && dialect != pg {
		return nil, fmt.Errorf("unsupported dialect %s", dialect)
	}

	return &Dialect{db: db, dialect: dialect}, nil
}

func (d *Dialect) DB() *sql.DB {
	return d.db
}

func (d *Dialect) DialectName() string {
	return d.dialect
}

func (d *Dialect) Exists(tableName string) (bool, error) {
	var (
		res *sql.Rows
		e   error
	)

	switch d.dialect {
	case ch:
		if res, e = d.db.Query(fmt.Sprintf("EXISTS TABLE %s", tableName)); e != nil {
			return false, e
		}
		defer func() { _ = res.Close() }()

		var exist uint8
		res.Next()
		if ex := res.Scan(&exist); ex != nil {
			return false, ex
		}

		return exist == 1, nil
	default:
		if res, e = d.db.Query(fmt.Sprintf("SELECT to_regclass('%s')", tableName)); e != nil {
			return false, e
		}
		defer func() { _ = res.Close() }()

		var exist any
		res.Next()
		if ex := res.Scan(&exist); ex != nil {
			return false, ex
		}

		return exist != nil, nil
	}
}

func (d *Dialect) DropTable(tableName string) error {
	_, e := d.db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", tableName))

	return e
}

// CreateSQL renders the CREATE TABLE statement for fr. orderBy names the
// ClickHouse sorting key; its columns stay non-Nullable (a MergeTree key
// cannot be Nullable) while every other ClickHouse column is Nullable so
// missing cells survive the trip.
func (d *Dialect) CreateSQL(tableName, orderBy string, fr *frame.Frame) (string, error) {
	keyCols := strings.Split(strings.ReplaceAll(orderBy, " ", ""), ",")
	if orderBy != "" && !fr.HasColumns(keyCols...) {
		return "", fmt.Errorf("not all columns present in orderBy %s", orderBy)
	}

	var fields []string
	for c := fr.Next(true); c != nil; c = fr.Next(false) {
		name := c.Name("")

		dbt, e := d.dbType(c.DataType(), d.dialect == ch && !u.Has(name, "", keyCols...))
		if e != nil {
			return "", fmt.Errorf("column %s: %w", name, e)
		}

		fields = append(fields, fmt.Sprintf("%s %s", name, dbt))
	}

	if d.dialect == ch {
		if orderBy == "" {
			return "", fmt.Errorf("clickhouse needs an orderBy")
		}

		return fmt.Sprintf("CREATE TABLE %s (%s) ENGINE = MergeTree ORDER BY (%s)",
			tableName, strings.Join(fields, ", "), strings.Join(keyCols, ", ")), nil
	}

	return fmt.Sprintf("CREATE TABLE %s (%s)", tableName, strings.Join(fields, ", ")), nil
}

func (d *Dialect) dbType(dt frame.DataTypes, nullable bool) (string, error) {
	var t string

	switch d.dialect {
	case ch:
		switch dt {
		case frame.DTfloat:
			t = "Float64"
		case frame.DTint:
			t = "Int64"
		case frame.DTstring:
			t = "String"
		}

		if t != "" && nullable {
			t = fmt.Sprintf("Nullable(%s)", t)
		}
	default:
		switch dt {
		case frame.DTfloat:
			t = "double precision"
		case frame.DTint:
			t = "bigint"
		case frame.DTstring:
			t = "text"
		}
	}

	if t == "" {
		return "", fmt.Errorf("no database type for %s", dt)
	}

	return t, nil
}

// Insert appends fr's rows to tableName in batches.
func (d *Dialect) Insert(tableName string, fr *frame.Frame) error {
	head := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", tableName, strings.Join(fr.ColumnNames(), ", "))

	var values []string
	for row := 0; row < fr.RowCount(); row++ {
		var cells []string
		for _, v := range fr.Row(row) {
			cells = append(cells, sqlValue(v))
		}

		values = append(values, "("+strings.Join(cells, ", ")+")")

		if len(values) == insertBatch || row == fr.RowCount()-1 {
			if _, e := d.db.Exec(head + strings.Join(values, ", ")); e != nil {
				return e
			}

			values = values[:0]
		}
	}

	return nil
}

// sqlValue renders one cell as a SQL literal; missing cells become NULL.
func sqlValue(v any) string {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) {
			return "NULL"
		}
		return fmt.Sprintf("%v", x)
	case int:
		return fmt.Sprintf("%d", x)
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	default:
		return "NULL"
	}
}

// Save creates (or replaces, with overwrite) tableName and fills it with fr.
func (d *Dialect) Save(tableName, orderBy string, overwrite bool, fr *frame.Frame) error {
	exists, e := d.Exists(tableName)
	if e != nil {
		return e
	}

	if exists && !overwrite {
		return fmt.Errorf("table %s exists", tableName)
	}

	if exists {
		if e = d.DropTable(tableName); e != nil {
			return e
		}
	}

	var create string
	if create, e = d.CreateSQL(tableName, orderBy, fr); e != nil {
		return e
	}

	if _, e = d.db.Exec(create); e != nil {
		return e
	}

	return d.Insert(tableName, fr)
}

// CSV writes fr to path as a flat file with the package defaults.
func CSV(fr *frame.Frame, path string) error {
	return frame.NewFiles().Save(path, fr)
}
