package ezyvet

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Params holds query parameters for a list request. Values may be
// scalars, structured filter expressions like {"gt": 123}, or lists for
// membership filters; non-scalars are JSON-encoded on the wire.
type Params map[string]interface{}

// pageLimit is the page size forced onto every list request.
const pageLimit = 200

// In builds an "in" membership filter expression.
func In(ids []int64) map[string]interface{} {
	return map[string]interface{}{"in": ids}
}

// Gt builds a "greater than" filter expression.
func Gt(v int64) map[string]interface{} {
	return map[string]interface{}{"gt": v}
}

// Lt builds a "less than" filter expression.
func Lt(v int64) map[string]interface{} {
	return map[string]interface{}{"lt": v}
}

// Lte builds a "less than or equal" filter expression.
func Lte(v int64) map[string]interface{} {
	return map[string]interface{}{"lte": v}
}

// GtLte builds a half-open range filter expression.
func GtLte(gt, lte int64) map[string]interface{} {
	return map[string]interface{}{"gt": gt, "lte": lte}
}

func (p Params) clone() Params {
	out := make(Params, len(p)+1)
	for k, v := range p {
		out[k] = v
	}
	return out
}

// buildParams renders params into wire form: limit is forced to the
// page size, structured and list values are JSON-string-encoded, and
// scalars pass through.
func buildParams(params Params) (map[string]string, error) {
	merged := params.clone()
	merged["limit"] = pageLimit

	out := make(map[string]string, len(merged))
	for key, value := range merged {
		switch reflect.ValueOf(value).Kind() {
		case reflect.Map, reflect.Slice, reflect.Array:
			encoded, err := json.Marshal(value)
			if err != nil {
				return nil, fmt.Errorf("failed to encode parameter %q: %w", key, err)
			}
			out[key] = string(encoded)
		default:
			out[key] = fmt.Sprintf("%v", value)
		}
	}
	return out, nil
}
