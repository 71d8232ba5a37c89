package domain

import "time"

// MediaKind is the media requested for a call, as sent by the client.
type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

type CallState int

const (
	CallInvited CallState = iota
	CallAccepted
	CallActive
)

func (s CallState) String() string {
	switch s {
	case CallInvited:
		return "INVITED"
	case CallAccepted:
		return "ACCEPTED"
	case CallActive:
		return "ACTIVE"
	}
	return "UNKNOWN"
}

// CallSession tracks one two-party signaling handshake. A session that
// reaches its terminal state is removed from the broker table entirely,
// so a stored session is always in one of the three live states.
type CallSession struct {
	CallerID  IdentityID
	CalleeID  IdentityID
	Kind      MediaKind
	State     CallState
	StartedAt time.Time
}

// Involves reports whether id is one of the two parties.
func (s *CallSession) Involves(id IdentityID) bool {
	return s.CallerID == id || s.CalleeID == id
}

// Peer returns the other party of the session.
func (s *CallSession) Peer(id IdentityID) IdentityID {
	if s.CallerID == id {
		return s.CalleeID
	}
	return s.CallerID
}
