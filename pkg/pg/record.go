package pg

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
)

// Record is one result row: column names in select order with their decoded
// values. NULL is stored as nil. Accessors return zero values for missing
// columns and NULLs; use Value or the Null* variants to tell them apart.
type Record struct {
	columns []string
	values  []any
	index   map[string]int
}

// NewRecord builds a Record from parallel column and value slices.
func NewRecord(columns []string, values []any) Record {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := index[c]; !dup {
			index[c] = i
		}
	}
	return Record{columns: columns, values: values, index: index}
}

// CollectRecords drains rows into Records and closes them.
func CollectRecords(rows pgx.Rows) ([]Record, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	var records []Record
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		records = append(records, NewRecord(columns, values))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (r Record) Columns() []string {
	return r.columns
}

func (r Record) Len() int {
	return len(r.columns)
}

// Value returns the raw value of col and whether the column exists.
func (r Record) Value(col string) (any, bool) {
	i, ok := r.index[col]
	if !ok || i >= len(r.values) {
		return nil, false
	}
	return r.values[i], true
}

// IsNull reports whether col is missing or NULL.
func (r Record) IsNull(col string) bool {
	v, _ := r.Value(col)
	return v == nil
}

func (r Record) String(col string) string {
	v, _ := r.Value(col)
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func (r Record) NullString(col string) *string {
	if r.IsNull(col) {
		return nil
	}
	s := r.String(col)
	return &s
}

func (r Record) Int64(col string) int64 {
	v, _ := r.Value(col)
	n, _ := toInt64(v)
	return n
}

func (r Record) NullInt64(col string) *int64 {
	v, _ := r.Value(col)
	n, ok := toInt64(v)
	if !ok {
		return nil
	}
	return &n
}

func (r Record) Bool(col string) bool {
	v, _ := r.Value(col)
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, _ := strconv.ParseBool(x)
		return b
	default:
		n, ok := toInt64(v)
		return ok && n != 0
	}
}

func (r Record) Time(col string) time.Time {
	if t := r.NullTime(col); t != nil {
		return *t
	}
	return time.Time{}
}

func (r Record) NullTime(col string) *time.Time {
	v, _ := r.Value(col)
	t, ok := v.(time.Time)
	if !ok {
		return nil
	}
	return &t
}

// Map copies the record into a column-keyed map.
func (r Record) Map() map[string]any {
	m := make(map[string]any, len(r.columns))
	for i, c := range r.columns {
		if i < len(r.values) {
			m[c] = r.values[i]
		}
	}
	return m
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		return int64(x), true
	case float32:
		return int64(x), true
	case float64:
		return int64(x), true
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}
