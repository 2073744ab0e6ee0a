// Package codec provides the connect codec for the payroll service's plain Go messages.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"connectrpc.com/connect"
)

// Name is registered for both the connect and gRPC JSON content types.
const Name = "json"

var _ connect.Codec = JSON{}

// JSON marshals messages with encoding/json. Unknown fields are rejected so typos
// in instruction requests fail loudly instead of defaulting to zero.
type JSON struct{}

func (JSON) Name() string { return Name }

func (JSON) Marshal(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %T: %w", msg, err)
	}
	return data, nil
}

func (JSON) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(msg); err != nil {
		return fmt.Errorf("failed to unmarshal into %T: %w", msg, err)
	}
	return nil
}
