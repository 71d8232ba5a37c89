//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"time"

	"campus-relay/domain"
)

// Connection is one live transport session for an identity. The relay
// side only ever pushes pre-serialized frames; Push must never block.
type Connection interface {
	ID() string
	IdentityID() domain.IdentityID
	// Push enqueues a frame for delivery in FIFO order. It returns an
	// error when the connection is closed or its outbound buffer is
	// full, which the caller treats as an implicit disconnect.
	Push(frame []byte) error
	Close()
}

// IRegistry maps identities to their live connections and owns the
// online/offline transitions.
type IRegistry interface {
	Register(conn Connection)
	Unregister(conn Connection)
	ConnectionsFor(id domain.IdentityID) []Connection
	Online(id domain.IdentityID) bool
}

// IDirectory is the consumed slice of the persistence layer. All calls
// may fail; a failure never mutates relay state.
type IDirectory interface {
	ConversationParticipants(ctx context.Context, id domain.ConversationID) ([]domain.IdentityID, error)
	SetIdentityOnline(ctx context.Context, id domain.IdentityID, online bool) error
	SetIdentityLastSeen(ctx context.Context, id domain.IdentityID, at time.Time) error
}

// IBroker is the call-signaling state machine.
type IBroker interface {
	Initiate(callerID, calleeID domain.IdentityID, kind domain.MediaKind) error
	Accept(calleeID, callerID domain.IdentityID) error
	RelaySignal(fromID, toID domain.IdentityID, signal []byte) error
	End(requesterID domain.IdentityID)
	// EndFor runs End on behalf of an identity that went fully offline.
	EndFor(id domain.IdentityID)
}

type WorkerName string

// Worker doesn't protect itself; the supervisor does.
type Worker interface {
	Run(ctx context.Context) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Stop()
}

// GetWorkerName uses reflection to retrieve the type name of the worker,
// avoiding manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
