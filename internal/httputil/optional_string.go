package httputil

import (
	"bytes"
	"encoding/json"
)

// OptionalString distinguishes an absent JSON field from an explicit null,
// which a plain *string cannot:
//   - Present=false: field absent
//   - Present=true, Value=nil: field is JSON null
//   - Present=true, Value=&s: field has a string value
type OptionalString struct {
	Present bool
	Value   *string
}

// UnmarshalJSON is only called when the field is present in the JSON
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Present = true

	if string(bytes.TrimSpace(data)) == "null" {
		o.Value = nil
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

// IsSet reports whether the field carried a non-null value
func (o OptionalString) IsSet() bool {
	return o.Present && o.Value != nil
}
