package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// encodeValue serializes params and results for the text columns. Strings
// and raw JSON are stored as-is, nil stays NULL, anything else is JSON-encoded.
func encodeValue(v any) (*string, error) {
	var s string
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		s = x
	case *string:
		return x, nil
	case []byte:
		s = string(x)
	case json.RawMessage:
		s = string(x)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, errors.Join(ErrPayloadMarshal, fmt.Errorf("%T: %w", v, err))
		}
		s = string(b)
	}
	return &s, nil
}

// qualifiedStructName returns the package-qualified type name of v, without
// pointer markers, e.g. "billing.ChargeCard".
func qualifiedStructName(v any) string {
	return strings.TrimLeft(fmt.Sprintf("%T", v), "*")
}
