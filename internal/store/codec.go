package store

import (
	"bytes"
	"encoding/json"
)

// JSONEncode encodes a value for storage.
func JSONEncode(value any) ([]byte, error) {
	var buff bytes.Buffer
	if err := json.NewEncoder(&buff).Encode(value); err != nil {
		return nil, err
	}
	return buff.Bytes(), nil
}

// JSONDecode decodes a stored value.
func JSONDecode(data []byte, value any) error {
	return json.NewDecoder(bytes.NewReader(data)).Decode(value)
}
