package encoding

import (
	"encoding/json"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

var JSONiter = jsoniter.Config{
	EscapeHTML:              false,
	MarshalFloatWith6Digits: false,
	DisallowUnknownFields:   false,
	OnlyTaggedField:         false,
	ValidateJsonRawMessage:  false,
	CaseSensitive:           true,
	UseNumber:               true,
	SortMapKeys:             false,
}.Froze()

// MaybeGetInt64 coerces a decoded JSON value (json.Number, string, or
// int64) into an int64, reporting whether the coercion worked.
func MaybeGetInt64(numberish interface{}) (int64, bool) {
	switch v := numberish.(type) {
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	case int64:
		return v, true
	default:
		return 0, false
	}
}
