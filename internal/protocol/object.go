package protocol

import (
	"bytes"
	"encoding/json"
)

// Field is one key/value pair of an ordered JSON object
type Field struct {
	Key   string
	Value any
}

// Object is a JSON object that keeps its keys in insertion order.
// The receiver's SET_SETDAT parser and packet size limits both depend on
// the exact serialized bytes, so map ordering is not usable here.
type Object []Field

// Set replaces the value of an existing key or appends a new one
func (o *Object) Set(key string, value any) {
	for i := range *o {
		if (*o)[i].Key == key {
			(*o)[i].Value = value
			return
		}
	}
	*o = append(*o, Field{Key: key, Value: value})
}

// Get returns the value stored under key
func (o Object) Get(key string) (any, bool) {
	for _, f := range o {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Merge returns a new object with the fields of others appended (later keys win)
func (o Object) Merge(others ...Object) Object {
	out := make(Object, 0, len(o))
	out = append(out, o...)
	for _, other := range others {
		for _, f := range other {
			out.Set(f.Key, f.Value)
		}
	}
	return out
}

// MarshalJSON writes the fields in order without HTML escaping
func (o Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalCompact(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := marshalCompact(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Encode serializes v compactly without HTML escaping
func Encode(v any) ([]byte, error) {
	return marshalCompact(v)
}

func marshalCompact(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
