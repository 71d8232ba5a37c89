package storage

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"campus-relay/domain"
)

func newTestDirectory(t *testing.T) *Directory {
	t.Helper()
	options := badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(options)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewDirectory(db, slog.Default())
}

func TestDirectory_Identity_Round_Trip(t *testing.T) {
	req := require.New(t)
	directory := newTestDirectory(t)
	ctx := context.Background()

	identity := domain.Identity{
		ID:          42,
		DisplayName: "Alice Martin",
		Role:        domain.RoleStudent,
	}
	req.NoError(directory.UpsertIdentity(ctx, identity))

	stored, err := directory.Identity(ctx, 42)
	req.NoError(err)
	req.Equal(identity, stored)
}

func TestDirectory_Unknown_Identity_Fails(t *testing.T) {
	req := require.New(t)
	directory := newTestDirectory(t)

	_, err := directory.Identity(context.Background(), 999)
	req.Error(err)
}

func TestDirectory_Participant_Membership(t *testing.T) {
	req := require.New(t)
	directory := newTestDirectory(t)
	ctx := context.Background()

	// Given three members of one conversation and one of another
	req.NoError(directory.AddParticipant(ctx, 10, 1))
	req.NoError(directory.AddParticipant(ctx, 10, 2))
	req.NoError(directory.AddParticipant(ctx, 10, 3))
	req.NoError(directory.AddParticipant(ctx, 11, 9))

	// Adding twice is harmless
	req.NoError(directory.AddParticipant(ctx, 10, 2))

	participants, err := directory.ConversationParticipants(ctx, 10)
	req.NoError(err)
	req.ElementsMatch([]domain.IdentityID{1, 2, 3}, participants)

	// When a member leaves
	req.NoError(directory.RemoveParticipant(ctx, 10, 2))

	participants, err = directory.ConversationParticipants(ctx, 10)
	req.NoError(err)
	req.ElementsMatch([]domain.IdentityID{1, 3}, participants)

	// An empty conversation has no participants, not an error
	participants, err = directory.ConversationParticipants(ctx, 999)
	req.NoError(err)
	req.Empty(participants)
}

func TestDirectory_Presence_Flags(t *testing.T) {
	req := require.New(t)
	directory := newTestDirectory(t)
	ctx := context.Background()

	req.NoError(directory.UpsertIdentity(ctx, domain.Identity{ID: 42, DisplayName: "Alice Martin"}))

	req.NoError(directory.SetIdentityOnline(ctx, 42, true))
	stored, err := directory.Identity(ctx, 42)
	req.NoError(err)
	req.True(stored.IsOnline)
	req.Equal("Alice Martin", stored.DisplayName)

	lastSeen := time.Now().UTC().Truncate(time.Second)
	req.NoError(directory.SetIdentityOnline(ctx, 42, false))
	req.NoError(directory.SetIdentityLastSeen(ctx, 42, lastSeen))

	stored, err = directory.Identity(ctx, 42)
	req.NoError(err)
	req.False(stored.IsOnline)
	req.Equal(lastSeen, stored.LastSeen)
}

func TestDirectory_Presence_Write_For_Unknown_Identity_Fails(t *testing.T) {
	req := require.New(t)
	directory := newTestDirectory(t)

	req.Error(directory.SetIdentityOnline(context.Background(), 999, true))
}

func TestDirectory_Honors_Canceled_Context(t *testing.T) {
	req := require.New(t)
	directory := newTestDirectory(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := directory.ConversationParticipants(ctx, 10)
	req.ErrorIs(err, context.Canceled)
	req.ErrorIs(directory.UpsertIdentity(ctx, domain.Identity{ID: 1}), context.Canceled)
}
