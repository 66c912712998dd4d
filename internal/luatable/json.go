package luatable

import (
	"bytes"
	"encoding/json"
)

// MarshalJSON encodes lists as arrays, maps as objects (keys in entry
// order) and scalars as plain JSON values
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	switch v.kind {
	case KindList:
		buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := item.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte(']')

	case KindMap:
		buf.WriteByte('{')
		for i, e := range v.entries {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, err := json.Marshal(e.Key.String())
			if err != nil {
				return nil, err
			}
			buf.Write(k)
			buf.WriteByte(':')
			b, err := e.Value.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte('}')

	default:
		return json.Marshal(v.scalar)
	}

	return buf.Bytes(), nil
}
