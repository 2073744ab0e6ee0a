package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type message struct {
	Name   string `json:"name"`
	Amount uint64 `json:"amount"`
}

func TestJSON(t *testing.T) {
	c := JSON{}
	require.Equal(t, "json", c.Name())

	data, err := c.Marshal(&message{Name: "Acme", Amount: 18446744073709551615})
	require.NoError(t, err)
	require.JSONEq(t, `{"name":"Acme","amount":18446744073709551615}`, string(data))

	var decoded message
	require.NoError(t, c.Unmarshal(data, &decoded))
	require.Equal(t, uint64(18446744073709551615), decoded.Amount)

	t.Run("empty body", func(t *testing.T) {
		var m message
		require.NoError(t, c.Unmarshal(nil, &m))
		require.Zero(t, m)
	})

	t.Run("unknown field", func(t *testing.T) {
		var m message
		require.ErrorContains(t, c.Unmarshal([]byte(`{"name":"Acme","amuont":5}`), &m), "unknown field")
	})

	t.Run("wrong type", func(t *testing.T) {
		var m message
		require.Error(t, c.Unmarshal([]byte(`{"amount":-1}`), &m))
	})
}
