package endure

import "encoding/json"

// toJSONValue converts v to its canonical JSON form: structs become maps of
// fields, slices and arrays become ordered sequences, maps stay maps and
// primitives pass through. The same conversion is applied to action inputs
// and outputs before they are logged, and to workflow results before they
// are returned.
func toJSONValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, NewValueError("value is not serializable: %v", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, NewValueError("value is not serializable: %v", err)
	}
	return out, nil
}
