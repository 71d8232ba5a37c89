package errors

import "fmt"

var (
	// ErrBusy means the call target (or the caller) already holds a live
	// call session.
	ErrBusy = fmt.Errorf("identity is busy")
	// ErrUnreachable means the call target has no live connection.
	ErrUnreachable = fmt.Errorf("identity is unreachable")
	// ErrNoSuchSession means an accept/signal/end referenced a session
	// that does not exist anymore.
	ErrNoSuchSession = fmt.Errorf("no such call session")
	// ErrDeliveryFailed means a push to one connection failed. It is
	// absorbed by the router (the connection is unregistered) and never
	// reaches the event originator.
	ErrDeliveryFailed = fmt.Errorf("delivery failed")
	// ErrStoreLookupFailed means the participant set could not be
	// fetched; the event is dropped for fan-out purposes.
	ErrStoreLookupFailed = fmt.Errorf("store lookup failed")

	ErrInvalidToken  = fmt.Errorf("invalid token")
	ErrInvalidKey    = fmt.Errorf("invalid internal key")
	ErrWorkerPanic   = fmt.Errorf("worker panic")
	ErrEmptyWordList = fmt.Errorf("no censored words have been found")
)
