package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// The wire format is externally tagged: a unit variant is a bare JSON string,
// a variant with one field is {"Tag": value} and a variant with several
// fields is {"Tag": [v1, v2, ...]}.

func encodeUnit(tag string) ([]byte, error) {
	return json.Marshal(tag)
}

func encodeTagged(tag string, payload any) ([]byte, error) {
	return json.Marshal(map[string]any{tag: payload})
}

func encodeTuple(tag string, fields ...any) ([]byte, error) {
	return json.Marshal(map[string][]any{tag: fields})
}

// decodeTagged splits a tagged value into its tag and raw payload. The
// payload is nil for unit variants.
func decodeTagged(data []byte) (string, json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return "", nil, errors.New("empty value")
	}

	switch data[0] {
	case '"':
		var tag string
		if err := json.Unmarshal(data, &tag); err != nil {
			return "", nil, err
		}
		return tag, nil, nil
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return "", nil, err
		}
		if len(obj) != 1 {
			return "", nil, fmt.Errorf("expected exactly one variant, got %d", len(obj))
		}
		for tag, payload := range obj {
			if bytes.Equal(bytes.TrimSpace(payload), []byte("null")) {
				payload = nil
			}
			return tag, payload, nil
		}
	}
	return "", nil, fmt.Errorf("expected string or object, got %q", data[0])
}

func decodePayload(tag string, payload json.RawMessage, v any) error {
	if payload == nil {
		return fmt.Errorf("variant %s requires a value", tag)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("variant %s: %w", tag, err)
	}
	return nil
}

func decodeTuple(tag string, payload json.RawMessage, fields ...any) error {
	var raw []json.RawMessage
	if err := decodePayload(tag, payload, &raw); err != nil {
		return err
	}
	if len(raw) != len(fields) {
		return fmt.Errorf("variant %s expects %d fields, got %d", tag, len(fields), len(raw))
	}
	for i, f := range fields {
		if err := json.Unmarshal(raw[i], f); err != nil {
			return fmt.Errorf("variant %s field %d: %w", tag, i, err)
		}
	}
	return nil
}

func requireUnit(tag string, payload json.RawMessage) error {
	if payload != nil {
		return fmt.Errorf("variant %s takes no value", tag)
	}
	return nil
}
