package runtime

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"campus-relay/domain"
	"campus-relay/domain/event"
	"campus-relay/errors"
	"campus-relay/observability"
)

// CallBroker relays a two-party signaling handshake without interpreting
// it. Sessions move INVITED → ACCEPTED → ACTIVE and are removed the
// moment they end, so the table only ever holds live handshakes.
//
// Both parties key the same entry: at most one non-ended session can
// exist per identity, and Initiate enforces it with Busy.
type CallBroker struct {
	mu       sync.Mutex
	sessions map[domain.IdentityID]*callEntry

	log         *slog.Logger
	router      *Router
	stats       *observability.RelayStats
	ringTimeout time.Duration
}

type callEntry struct {
	session   *domain.CallSession
	ringTimer *time.Timer
	// ringing flips true once the ring push has delivered. Until then
	// the entry only reserves both ids: End discards it silently and
	// Initiate reports the outcome itself.
	ringing bool
}

// NewCallBroker builds the broker. ringTimeout bounds how long an
// INVITED session may ring before it is auto-ended; zero disables the
// timeout entirely.
func NewCallBroker(log *slog.Logger, router *Router, stats *observability.RelayStats,
	ringTimeout time.Duration) *CallBroker {
	return &CallBroker{
		sessions:    make(map[domain.IdentityID]*callEntry),
		log:         log,
		router:      router,
		stats:       stats,
		ringTimeout: ringTimeout,
	}
}

// Initiate creates an INVITED session and rings every live connection of
// the callee. It fails with Busy when either party is already in a
// session, and with Unreachable when the callee has no live connection —
// in which case no session is created at all.
func (b *CallBroker) Initiate(callerID, calleeID domain.IdentityID, kind domain.MediaKind) error {
	b.mu.Lock()
	if _, busy := b.sessions[callerID]; busy {
		b.mu.Unlock()
		b.stats.CallRejected()
		return errors.ErrBusy
	}
	if _, busy := b.sessions[calleeID]; busy {
		b.mu.Unlock()
		b.stats.CallRejected()
		return errors.ErrBusy
	}

	session := &domain.CallSession{
		CallerID:  callerID,
		CalleeID:  calleeID,
		Kind:      kind,
		State:     domain.CallInvited,
		StartedAt: time.Now().UTC(),
	}
	entry := &callEntry{session: session}
	b.sessions[callerID] = entry
	b.sessions[calleeID] = entry
	b.mu.Unlock()

	if delivered := b.router.PushTo(calleeID, event.CallIncomingEvent(callerID, kind)); delivered == 0 {
		// Every push failed or the callee was never connected: roll the
		// session back so the caller is immediately free again.
		b.remove(entry)
		b.stats.CallRejected()
		return errors.ErrUnreachable
	}

	b.mu.Lock()
	if b.sessions[callerID] != entry {
		// Either party went fully offline while we were pushing and the
		// offline hook discarded the reservation.
		b.mu.Unlock()
		b.stats.CallRejected()
		return errors.ErrUnreachable
	}
	entry.ringing = true
	if b.ringTimeout > 0 && entry.session.State == domain.CallInvited {
		entry.ringTimer = time.AfterFunc(b.ringTimeout, func() { b.expire(entry) })
	}
	b.mu.Unlock()

	b.stats.CallStarted()
	b.log.Info("call invited",
		"caller_id", callerID,
		"callee_id", calleeID,
		"kind", kind,
	)
	return nil
}

// Accept moves an INVITED session to ACCEPTED and notifies the caller.
func (b *CallBroker) Accept(calleeID, callerID domain.IdentityID) error {
	b.mu.Lock()
	entry, ok := b.sessions[calleeID]
	if !ok || entry.session.CalleeID != calleeID || entry.session.CallerID != callerID ||
		entry.session.State != domain.CallInvited {
		b.mu.Unlock()
		return errors.ErrNoSuchSession
	}
	entry.session.State = domain.CallAccepted
	stopTimer(entry)
	b.mu.Unlock()

	b.router.PushTo(callerID, event.CallAcceptedEvent())
	b.log.Info("call accepted", "caller_id", callerID, "callee_id", calleeID)
	return nil
}

// RelaySignal forwards an opaque signaling payload verbatim to the peer.
// The first relay after ACCEPTED marks the session ACTIVE; relaying on
// an ACTIVE session leaves it untouched.
func (b *CallBroker) RelaySignal(fromID, toID domain.IdentityID, signal []byte) error {
	b.mu.Lock()
	entry, ok := b.sessions[fromID]
	if !ok || !entry.session.Involves(toID) ||
		(entry.session.State != domain.CallAccepted && entry.session.State != domain.CallActive) {
		b.mu.Unlock()
		return errors.ErrNoSuchSession
	}
	if entry.session.State == domain.CallAccepted {
		entry.session.State = domain.CallActive
	}
	b.mu.Unlock()

	b.router.PushTo(toID, event.CallSignalEvent(fromID, json.RawMessage(signal)))
	return nil
}

// End terminates any session involving the requester, in any state, and
// notifies the other party. Ending with no session is a no-op, so a
// client mashing the hang-up button is harmless.
func (b *CallBroker) End(requesterID domain.IdentityID) {
	b.mu.Lock()
	entry, ok := b.sessions[requesterID]
	if !ok {
		b.mu.Unlock()
		return
	}
	ringing := entry.ringing
	peer := entry.session.Peer(requesterID)
	b.removeLocked(entry)
	b.mu.Unlock()

	if !ringing {
		// The ring push never delivered; nobody heard about this session
		// and Initiate reports Unreachable to the caller.
		return
	}

	b.stats.CallEnded()
	b.router.PushTo(peer, event.CallEndedEvent())
	b.log.Info("call ended",
		"requester_id", requesterID,
		"peer_id", peer,
		"state", entry.session.State.String(),
	)
}

// EndFor is the registry's offline hook: an identity with no connections
// left cannot ring forever, so its session ends on its behalf.
func (b *CallBroker) EndFor(id domain.IdentityID) {
	b.End(id)
}

// SessionFor reports the live session involving id, if any.
func (b *CallBroker) SessionFor(id domain.IdentityID) (domain.CallSession, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.sessions[id]
	if !ok {
		return domain.CallSession{}, false
	}
	return *entry.session, true
}

// expire ends a session that rang past the timeout without an accept.
// Both parties hear about it: the callee stops ringing, the caller's
// "calling…" UI resolves.
func (b *CallBroker) expire(entry *callEntry) {
	b.mu.Lock()
	current, ok := b.sessions[entry.session.CallerID]
	if !ok || current != entry || entry.session.State != domain.CallInvited {
		b.mu.Unlock()
		return
	}
	b.removeLocked(entry)
	b.mu.Unlock()

	b.stats.CallEnded()
	b.router.PushTo(entry.session.CallerID, event.CallEndedEvent())
	b.router.PushTo(entry.session.CalleeID, event.CallEndedEvent())
	b.log.Info("call invite expired",
		"caller_id", entry.session.CallerID,
		"callee_id", entry.session.CalleeID,
		"ring_timeout", b.ringTimeout,
	)
}

func (b *CallBroker) remove(entry *callEntry) {
	b.mu.Lock()
	b.removeLocked(entry)
	b.mu.Unlock()
}

func (b *CallBroker) removeLocked(entry *callEntry) {
	stopTimer(entry)
	if b.sessions[entry.session.CallerID] == entry {
		delete(b.sessions, entry.session.CallerID)
	}
	if b.sessions[entry.session.CalleeID] == entry {
		delete(b.sessions, entry.session.CalleeID)
	}
}

func stopTimer(entry *callEntry) {
	if entry.ringTimer != nil {
		entry.ringTimer.Stop()
		entry.ringTimer = nil
	}
}
