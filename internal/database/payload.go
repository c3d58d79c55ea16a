package database

import (
	"bytes"
	"encoding/json"
	"errors"
	"unicode/utf8"
)

var errInvalidUTF8 = errors.New("payload is not valid UTF-8")

// isMissingJSON reports whether a raw payload is absent or an explicit JSON null.
func isMissingJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// marshalToString compacts a raw JSON payload into the text stored in a
// NOT NULL column. Invalid JSON is rejected, and so are strings carrying
// invalid UTF-8, which json.Compact would otherwise copy through unchanged.
func marshalToString(raw json.RawMessage) (string, error) {
	if !utf8.Valid(raw) {
		return "", errInvalidUTF8
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// unmarshalFromString turns stored column text back into a JSON value.
// Text that is not valid JSON yields ok == false.
func unmarshalFromString(data string) (json.RawMessage, bool) {
	if !json.Valid([]byte(data)) {
		return nil, false
	}
	return json.RawMessage(data), true
}
