package ws

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"campus-relay/domain"
	"campus-relay/errors"
)

func TestClient_Push_Fills_The_Buffer_Then_Fails(t *testing.T) {
	req := require.New(t)
	client := NewClient(slog.Default(), nil, 1, domain.RoleStudent, 2)

	// The buffer absorbs frames without a write pump running
	req.NoError(client.Push([]byte(`{"type":"a"}`)))
	req.NoError(client.Push([]byte(`{"type":"b"}`)))

	// A full buffer is a failed delivery, never a blocked router
	req.ErrorIs(client.Push([]byte(`{"type":"c"}`)), errors.ErrDeliveryFailed)
}

func TestClient_Push_After_Close_Fails(t *testing.T) {
	req := require.New(t)
	client := NewClient(slog.Default(), nil, 1, domain.RoleStudent, 8)

	client.Close()

	req.ErrorIs(client.Push([]byte(`{"type":"a"}`)), errors.ErrDeliveryFailed)
}

func TestClient_Close_Is_Idempotent(t *testing.T) {
	client := NewClient(slog.Default(), nil, 1, domain.RoleStudent, 8)

	client.Close()
	client.Close()
}

func TestClient_Identity_Accessors(t *testing.T) {
	req := require.New(t)
	first := NewClient(slog.Default(), nil, 42, domain.RoleStaff, 8)
	second := NewClient(slog.Default(), nil, 42, domain.RoleStaff, 8)

	req.Equal(domain.IdentityID(42), first.IdentityID())
	req.Equal(domain.RoleStaff, first.Role())
	req.NotEqual(first.ID(), second.ID())
}
