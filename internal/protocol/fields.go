package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrInvalidFieldValue = errors.New("protocol: field value must be number or string")

// Field is one named metric in a telemetry snapshot.
type Field struct {
	Name  string
	Value any
}

// Fields is an ordered metric mapping. Order is preserved through
// encode and decode so the device renders rows in the order the host
// sampled them.
type Fields []Field

// Get returns the value for name, or false when absent.
func (f Fields) Get(name string) (any, bool) {
	for _, field := range f {
		if field.Name == name {
			return field.Value, true
		}
	}
	return nil, false
}

func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range f {
		switch field.Value.(type) {
		case float64, int, int64, string:
		default:
			return nil, fmt.Errorf("%w: %q is %T", ErrInvalidFieldValue, field.Name, field.Value)
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(field.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(field.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (f *Fields) UnmarshalJSON(data []byte) error {
	fields, err := decodeFields(data, nil)
	if err != nil {
		return err
	}
	*f = fields
	return nil
}

// decodeFields walks one JSON object in document order, keeping only
// number and string values. Keys in skip are dropped, which lets the
// legacy flattened telemetry form reuse this on a whole frame object.
func decodeFields(data []byte, skip map[string]bool) (Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("protocol: telemetry fields must be an object, got %v", tok)
	}

	var fields Fields
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key := keyTok.(string)

		valTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if skip[key] {
			continue
		}
		switch v := valTok.(type) {
		case json.Number:
			n, err := v.Float64()
			if err != nil {
				return nil, err
			}
			fields = append(fields, Field{Name: key, Value: n})
		case string:
			fields = append(fields, Field{Name: key, Value: v})
		default:
			return nil, fmt.Errorf("%w: %q", ErrInvalidFieldValue, key)
		}
	}
	return fields, nil
}
