package condition

import "errors"

var (
	ErrInvalidField    = errors.New("invalid field name")
	ErrInvalidOperator = errors.New("invalid comparison operator")
	ErrNullComparison  = errors.New("nil value is only allowed with equality operators")
	ErrRawValue        = errors.New("raw operators require a string value")
)
