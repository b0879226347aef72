package condition

import (
	"errors"
	"fmt"
	"maps"
	"reflect"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// Fields maps field specifiers (an optional operator prefix followed by a
// column name) to comparison values.
type Fields map[string]any

// Condition is a rendered predicate together with its bound parameters.
type Condition struct {
	SQL    string
	Params pgx.NamedArgs
}

// Empty reports whether the condition has no predicates.
func (c Condition) Empty() bool {
	return c.SQL == ""
}

// Where renders the condition as a WHERE clause with a leading space,
// or an empty string when there is nothing to filter on.
func (c Condition) Where() string {
	if c.Empty() {
		return ""
	}
	return " WHERE " + c.SQL
}

var keyPattern = regexp.MustCompile(`^([<>!@$=~*]*)([A-Za-z_][A-Za-z0-9_.]*(?:\|[A-Za-z_][A-Za-z0-9_.]*)*)$`)

// Operator is a decoded comparison prefix.
type Operator int

const (
	OpEq Operator = iota
	OpNe
	OpGt
	OpGte
	OpLt
	OpLte
	OpLike
	OpNotLike
	OpContains
	OpNotContains
	OpRawIn
	OpRawNotIn
)

var comparisons = map[Operator]string{
	OpEq:  "=",
	OpNe:  "!=",
	OpGt:  ">",
	OpGte: ">=",
	OpLt:  "<",
	OpLte: "<=",
}

// Field is a parsed field specifier.
type Field struct {
	Columns []string // more than one column means an OR group
	Op      Operator
	Raw     bool // value is SQL text
}

// ParseField decodes a key such as "<=scheduled_time" or "module|func".
func ParseField(key string) (Field, error) {
	m := keyPattern.FindStringSubmatch(key)
	if m == nil {
		return Field{}, ErrInvalidField
	}
	op, raw, err := parseOperator(m[1])
	if err != nil {
		return Field{}, err
	}
	return Field{Columns: strings.Split(m[2], "|"), Op: op, Raw: raw}, nil
}

func parseOperator(prefix string) (Operator, bool, error) {
	raw := strings.Contains(prefix, "$")
	switch strings.ReplaceAll(prefix, "$", "") {
	case "", "=":
		return OpEq, raw, nil
	case "!", "!=":
		return OpNe, raw, nil
	case ">":
		return OpGt, raw, nil
	case ">=":
		return OpGte, raw, nil
	case "<":
		return OpLt, raw, nil
	case "<=":
		return OpLte, raw, nil
	case "~":
		return OpLike, raw, nil
	case "!~":
		return OpNotLike, raw, nil
	case "*":
		return OpContains, raw, nil
	case "!*":
		return OpNotContains, raw, nil
	case "@":
		return OpRawIn, raw, nil
	case "!@":
		return OpRawNotIn, raw, nil
	}
	return 0, false, ErrInvalidOperator
}

// Build renders fields into a single AND-joined predicate. Keys are processed
// in sorted order so identical input always yields identical SQL.
func Build(fields Fields) (Condition, error) {
	b := &builder{params: pgx.NamedArgs{}}

	parts := make([]string, 0, len(fields))
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		part, err := b.predicate(key, fields[key])
		if err != nil {
			return Condition{}, fmt.Errorf("condition %q: %w", key, err)
		}
		parts = append(parts, part)
	}

	return Condition{
		SQL:    strings.Join(parts, " AND "),
		Params: b.params,
	}, nil
}

// MustBuild is like Build but panics on error. Intended for static field maps.
func MustBuild(fields Fields) Condition {
	c, err := Build(fields)
	if err != nil {
		panic(err)
	}
	return c
}

type builder struct {
	params pgx.NamedArgs
}

func (b *builder) predicate(key string, value any) (string, error) {
	f, err := ParseField(key)
	if err != nil {
		return "", err
	}

	if len(f.Columns) == 1 {
		return b.render(f.Columns[0], f, value)
	}

	group := make([]string, 0, len(f.Columns))
	for _, col := range f.Columns {
		part, err := b.render(col, f, value)
		if err != nil {
			return "", err
		}
		group = append(group, part)
	}
	return "(" + strings.Join(group, " OR ") + ")", nil
}

func (b *builder) render(col string, f Field, value any) (string, error) {
	switch f.Op {
	case OpRawIn, OpRawNotIn:
		raw, ok := value.(string)
		if !ok {
			return "", ErrRawValue
		}
		if f.Op == OpRawNotIn {
			return col + " NOT IN (" + raw + ")", nil
		}
		return col + " IN (" + raw + ")", nil
	}

	if isNil(value) {
		switch f.Op {
		case OpEq:
			return col + " IS NULL", nil
		case OpNe:
			return col + " IS NOT NULL", nil
		default:
			return "", ErrNullComparison
		}
	}

	if f.Raw {
		raw, ok := value.(string)
		if !ok {
			return "", ErrRawValue
		}
		return renderComparison(col, f.Op, raw), nil
	}

	if isSequence(value) {
		if f.Op != OpEq && f.Op != OpNe {
			return "", errors.Join(ErrInvalidOperator, fmt.Errorf("sequence value used with a non-equality operator"))
		}
		list, err := literalList(value)
		if err != nil {
			return "", err
		}
		if list == "" {
			if f.Op == OpNe {
				return "TRUE", nil
			}
			return "FALSE", nil
		}
		if f.Op == OpNe {
			return col + " NOT IN (" + list + ")", nil
		}
		return col + " IN (" + list + ")", nil
	}

	return renderComparison(col, f.Op, "@"+b.bind(col, value)), nil
}

func renderComparison(col string, kind Operator, rhs string) string {
	switch kind {
	case OpLike:
		return col + " LIKE " + rhs
	case OpNotLike:
		return col + " NOT LIKE " + rhs
	case OpContains:
		return "position(" + rhs + " in " + col + ") > 0"
	case OpNotContains:
		return "position(" + rhs + " in " + col + ") = 0"
	default:
		return col + " " + comparisons[kind] + " " + rhs
	}
}

// bind registers value under a parameter name derived from col.
func (b *builder) bind(col string, value any) string {
	base := strings.ReplaceAll(col, ".", "_")
	name := base
	for i := 2; ; i++ {
		if _, taken := b.params[name]; !taken {
			break
		}
		name = base + "_" + strconv.Itoa(i)
	}
	b.params[name] = value
	return name
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

func isSequence(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv.Type().Elem().Kind() != reflect.Uint8
	default:
		return false
	}
}

func literalList(v any) (string, error) {
	rv := reflect.ValueOf(v)
	items := make([]string, 0, rv.Len())
	for i := range rv.Len() {
		lit, err := Literal(rv.Index(i).Interface())
		if err != nil {
			return "", err
		}
		items = append(items, lit)
	}
	return strings.Join(items, ","), nil
}

// Literal renders v as an SQL literal. Strings are single-quoted with embedded
// quotes doubled; no other escaping is performed.
func Literal(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "NULL", nil
	case time.Time:
		return quote(x.Format(time.RFC3339Nano)), nil
	case []byte:
		return quote(string(x)), nil
	case fmt.Stringer:
		if k := reflect.ValueOf(v).Kind(); k == reflect.Struct || k == reflect.Array {
			return quote(x.String()), nil
		}
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return quote(rv.String()), nil
	case reflect.Bool:
		if rv.Bool() {
			return "TRUE", nil
		}
		return "FALSE", nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64), nil
	case reflect.Pointer:
		if rv.IsNil() {
			return "NULL", nil
		}
		return Literal(rv.Elem().Interface())
	}
	return "", fmt.Errorf("unsupported literal of type %T", v)
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
