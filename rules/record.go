package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Record is one converted row: target -> value, in rule order
type Record struct {
	keys   []string
	values map[string]any
}

// NewRecord returns an empty record with room for n fields
func NewRecord(n int) Record {
	return Record{
		keys:   make([]string, 0, n),
		values: make(map[string]any, n),
	}
}

// Set stores v under key. Overwriting a key keeps its original position.
func (r *Record) Set(key string, v any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, exists := r.values[key]; !exists {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
}

// Get returns the value stored under key
func (r Record) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys returns the field names in insertion order
func (r Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of fields
func (r Record) Len() int {
	return len(r.keys)
}

// Map returns the fields as a plain map
func (r Record) Map() map[string]any {
	out := make(map[string]any, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// MarshalJSON writes the fields in order. Dates are written as YYYY-MM-DD and
// integral Decimal values keep their decimal point.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		val, err := MarshalValue(r.values[k])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalValue encodes one record value the way MarshalJSON does
func MarshalValue(v any) ([]byte, error) {
	switch val := v.(type) {
	case time.Time:
		return json.Marshal(val.Format(DateLayout))
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return json.Marshal(FormatValue(val))
		}
		return []byte(formatFloat(val)), nil
	default:
		return json.Marshal(val)
	}
}

// UnmarshalJSON reads an object, keeping field order. Numbers with a fraction
// or exponent decode as float64, others as int64.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("record must be a JSON object")
	}

	*r = NewRecord(0)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected record key %v", tok)
		}

		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		if n, ok := v.(json.Number); ok {
			v, err = numberValue(n)
			if err != nil {
				return fmt.Errorf("field %q: %w", key, err)
			}
		}
		r.Set(key, v)
	}

	_, err = dec.Token()
	return err
}

func numberValue(n json.Number) (any, error) {
	s := n.String()
	if strings.ContainsAny(s, ".eE") {
		return strconv.ParseFloat(s, 64)
	}
	return strconv.ParseInt(s, 10, 64)
}
