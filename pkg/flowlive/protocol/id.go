package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ID is a server-assigned identifier. Servers send ids as JSON strings or
// numbers; both decode to the same textual form.
type ID string

// String returns the id text.
func (id ID) String() string { return string(id) }

// IsZero reports whether the id is empty.
func (id ID) IsZero() bool { return id == "" }

// UnmarshalJSON accepts a string, a number or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*id = ""
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("id must be a string or number: %w", err)
		}
		*id = ID(n.String())
		return nil
	}
}

// MarshalJSON always writes a string.
func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(id))
}
