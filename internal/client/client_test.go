package client

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/payroll/internal/api"
	"github.com/wolfeidau/payroll/internal/ledger"
)

func TestError(t *testing.T) {
	connectErr := connect.NewError(connect.CodeFailedPrecondition, errors.New("InsufficientFunds (6004): Insufficient funds in treasury"))
	connectErr.Meta().Set(api.ErrorHeader, "InsufficientFunds")

	err := Error(connectErr)
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	require.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))
	require.Equal(t, "InsufficientFunds (6004): Insufficient funds in treasury", err.Error())

	plain := connect.NewError(connect.CodeUnavailable, errors.New("connection refused"))
	require.Same(t, plain, Error(plain))

	other := errors.New("boom")
	require.Same(t, other, Error(other))
}

func TestTokenInterceptor(t *testing.T) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	interceptor := NewTokenInterceptor(key, "http://localhost:8993", 0)

	var header string
	next := interceptor(func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		header = req.Header().Get("Authorization")
		return nil, nil
	})

	call := func(procedure string) {
		header = ""
		req := &clientRequest{Request: connect.NewRequest(&struct{}{}), spec: connect.Spec{Procedure: procedure, IsClient: true}}
		_, err := next(context.Background(), req)
		require.NoError(t, err)
	}

	call(api.WithdrawProcedure)
	require.Contains(t, header, "Bearer ")

	call(api.GetBalanceProcedure)
	require.Empty(t, header)
}

// clientRequest overrides Spec, which connect only fills in on real calls.
type clientRequest struct {
	*connect.Request[struct{}]
	spec connect.Spec
}

func (r *clientRequest) Spec() connect.Spec { return r.spec }
