package runtime

import (
	"encoding/json"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"campus-relay/domain"
	"campus-relay/errors"
	"campus-relay/observability"
)

// fakeConn records every pushed frame; used across the runtime tests.
type fakeConn struct {
	id         string
	identityID domain.IdentityID

	mu       sync.Mutex
	frames   [][]byte
	failPush bool
	closed   bool
}

func newFakeConn(identityID domain.IdentityID) *fakeConn {
	return &fakeConn{id: uuid.NewString(), identityID: identityID}
}

func (c *fakeConn) ID() string                    { return c.id }
func (c *fakeConn) IdentityID() domain.IdentityID { return c.identityID }

func (c *fakeConn) Push(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failPush {
		return errors.ErrDeliveryFailed
	}
	c.frames = append(c.frames, frame)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) Frames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.frames...)
}

// decodedFrames unmarshals every pushed frame for shape assertions.
func (c *fakeConn) decodedFrames(t *testing.T) []map[string]any {
	t.Helper()
	var decoded []map[string]any
	for _, frame := range c.Frames() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(frame, &m))
		decoded = append(decoded, m)
	}
	return decoded
}

func newTestRegistry(transitions chan domain.PresenceTransition) *Registry {
	return NewRegistry(slog.Default(), observability.NewRelayStats(), transitions)
}

func TestRegistry_Register_First_Connection_Goes_Online(t *testing.T) {
	req := require.New(t)
	transitions := make(chan domain.PresenceTransition, 4)
	registry := newTestRegistry(transitions)
	identityID := domain.IdentityID(42)
	conn := newFakeConn(identityID)

	// Given no connection is registered
	req.Empty(registry.ConnectionsFor(identityID))
	req.False(registry.Online(identityID))

	// When the identity's first connection registers
	registry.Register(conn)

	// Then the identity is online and a transition was emitted
	req.True(registry.Online(identityID))
	req.Len(registry.ConnectionsFor(identityID), 1)

	transition := <-transitions
	req.Equal(identityID, transition.IdentityID)
	req.True(transition.Online)
}

func TestRegistry_Register_Second_Device_No_Transition(t *testing.T) {
	req := require.New(t)
	transitions := make(chan domain.PresenceTransition, 4)
	registry := newTestRegistry(transitions)
	identityID := domain.IdentityID(42)

	// Given an identity with one registered connection
	registry.Register(newFakeConn(identityID))
	<-transitions

	// When a second device connects
	registry.Register(newFakeConn(identityID))

	// Then both connections are live but no second transition fired
	req.Len(registry.ConnectionsFor(identityID), 2)
	req.Empty(transitions)
}

func TestRegistry_Unregister_Last_Connection_Goes_Offline(t *testing.T) {
	req := require.New(t)
	transitions := make(chan domain.PresenceTransition, 4)
	registry := newTestRegistry(transitions)
	identityID := domain.IdentityID(7)
	first := newFakeConn(identityID)
	second := newFakeConn(identityID)
	registry.Register(first)
	registry.Register(second)
	<-transitions

	// When one of two devices disconnects
	registry.Unregister(first)

	// Then the identity stays online
	req.True(registry.Online(identityID))
	req.Empty(transitions)

	// When the last device disconnects
	registry.Unregister(second)

	// Then the identity goes offline with a last-seen transition
	req.False(registry.Online(identityID))
	transition := <-transitions
	req.False(transition.Online)
	req.False(transition.At.IsZero())
	req.Empty(registry.ConnectionsFor(identityID))
}

func TestRegistry_Unregister_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	transitions := make(chan domain.PresenceTransition, 4)
	registry := newTestRegistry(transitions)
	conn := newFakeConn(3)
	registry.Register(conn)
	<-transitions

	registry.Unregister(conn)
	<-transitions

	// A second unregister of the same connection changes nothing
	registry.Unregister(conn)
	req.Empty(transitions)
}

func TestRegistry_Offline_Hook_Fires_On_Last_Disconnect_Only(t *testing.T) {
	req := require.New(t)
	transitions := make(chan domain.PresenceTransition, 4)
	registry := newTestRegistry(transitions)
	identityID := domain.IdentityID(12)

	var gone []domain.IdentityID
	registry.OnOffline(func(id domain.IdentityID) { gone = append(gone, id) })

	first := newFakeConn(identityID)
	second := newFakeConn(identityID)
	registry.Register(first)
	registry.Register(second)

	registry.Unregister(first)
	req.Empty(gone)

	registry.Unregister(second)
	req.Equal([]domain.IdentityID{identityID}, gone)
}

func TestRegistry_ConnectionsFor_Unknown_Identity_Is_Empty(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry(make(chan domain.PresenceTransition, 1))

	req.Empty(registry.ConnectionsFor(999))
	req.False(registry.Online(999))
}
