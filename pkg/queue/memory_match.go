package queue

import (
	"cmp"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/dmitrymomot/taskq/pkg/condition"
)

// matchTask evaluates filter against task with SQL semantics: NULL never
// matches a comparison, and multi-column keys are OR groups.
func matchTask(task *Task, filter condition.Fields) (bool, error) {
	for key, want := range filter {
		f, err := condition.ParseField(key)
		if err != nil {
			return false, fmt.Errorf("filter %q: %w", key, err)
		}
		if f.Raw || f.Op == condition.OpRawIn || f.Op == condition.OpRawNotIn {
			return false, errors.Join(ErrUnsupportedFilter, fmt.Errorf("filter %q", key))
		}

		matched := false
		for _, col := range f.Columns {
			ok, err := matchValue(task.value(col), f.Op, want)
			if err != nil {
				return false, fmt.Errorf("filter %q: %w", key, err)
			}
			if ok {
				matched = true
				break
			}
		}
		if !matched {
			return false, nil
		}
	}
	return true, nil
}

func matchValue(got any, op condition.Operator, want any) (bool, error) {
	want = normalize(want)

	if want == nil {
		switch op {
		case condition.OpEq:
			return got == nil, nil
		case condition.OpNe:
			return got != nil, nil
		}
		return false, condition.ErrNullComparison
	}
	if got == nil {
		return false, nil
	}

	if rv := reflect.ValueOf(want); (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) &&
		rv.Type().Elem().Kind() != reflect.Uint8 {
		if op != condition.OpEq && op != condition.OpNe {
			return false, condition.ErrInvalidOperator
		}
		found := false
		for i := range rv.Len() {
			c, ok := compareValues(got, normalize(rv.Index(i).Interface()))
			if ok && c == 0 {
				found = true
				break
			}
		}
		return found == (op == condition.OpEq), nil
	}

	switch op {
	case condition.OpLike, condition.OpNotLike:
		re, err := likePattern(fmt.Sprint(want))
		if err != nil {
			return false, err
		}
		return re.MatchString(fmt.Sprint(got)) == (op == condition.OpLike), nil
	case condition.OpContains:
		return strings.Contains(fmt.Sprint(got), fmt.Sprint(want)), nil
	case condition.OpNotContains:
		return !strings.Contains(fmt.Sprint(got), fmt.Sprint(want)), nil
	}

	c, ok := compareValues(got, want)
	if !ok {
		return false, fmt.Errorf("cannot compare %T with %T", got, want)
	}
	switch op {
	case condition.OpEq:
		return c == 0, nil
	case condition.OpNe:
		return c != 0, nil
	case condition.OpGt:
		return c > 0, nil
	case condition.OpGte:
		return c >= 0, nil
	case condition.OpLt:
		return c < 0, nil
	case condition.OpLte:
		return c <= 0, nil
	}
	return false, condition.ErrInvalidOperator
}

// normalize reduces a filter value to nil, int64, float64, string, bool or time.Time.
func normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case Status:
		if x == StatusUnset {
			return nil
		}
		return string(x)
	case Priority:
		return int64(x)
	case time.Time:
		return x
	case []byte:
		return string(x)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return normalize(rv.Elem().Interface())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.String:
		return rv.String()
	}
	return v
}

func compareValues(a, b any) (int, bool) {
	switch x := a.(type) {
	case int64:
		switch y := b.(type) {
		case int64:
			return cmp.Compare(x, y), true
		case float64:
			return cmp.Compare(float64(x), y), true
		}
	case string:
		if y, ok := b.(string); ok {
			return cmp.Compare(x, y), true
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y), true
		}
	}
	return 0, false
}

// likePattern translates an SQL LIKE pattern into an anchored regexp.
func likePattern(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString(`(?s)^`)
	escaped := false
	for _, r := range pattern {
		switch {
		case escaped:
			sb.WriteString(regexp.QuoteMeta(string(r)))
			escaped = false
		case r == '\\':
			escaped = true
		case r == '%':
			sb.WriteString(`.*`)
		case r == '_':
			sb.WriteString(`.`)
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString(`$`)
	return regexp.Compile(sb.String())
}

func asString(v any) (string, error) {
	s, err := asNullString(v)
	if err != nil {
		return "", err
	}
	if s == nil {
		return "", errors.New("value must not be null")
	}
	return *s, nil
}

func asNullString(v any) (*string, error) {
	switch x := normalize(v).(type) {
	case nil:
		return nil, nil
	case string:
		return &x, nil
	}
	return nil, fmt.Errorf("expected a string, got %T", v)
}

func asInt(v any) (int, error) {
	n, err := asNullInt64(v)
	if err != nil {
		return 0, err
	}
	if n == nil {
		return 0, errors.New("value must not be null")
	}
	return int(*n), nil
}

func asNullInt64(v any) (*int64, error) {
	switch x := normalize(v).(type) {
	case nil:
		return nil, nil
	case int64:
		return &x, nil
	}
	return nil, fmt.Errorf("expected an integer, got %T", v)
}

func asNullTime(v any) (*time.Time, error) {
	switch x := normalize(v).(type) {
	case nil:
		return nil, nil
	case time.Time:
		return &x, nil
	}
	return nil, fmt.Errorf("expected a time, got %T", v)
}
