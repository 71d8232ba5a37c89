package domain

import "time"

// IdentityID matches the numeric primary key of the chat identities table
// owned by the persistence layer. The relay never allocates these.
type IdentityID int64

type Role string

const (
	RoleStudent Role = "student"
	RoleStaff   Role = "staff"
	RoleAdmin   Role = "admin"
)

// Identity is an authenticated user profile within the messaging system.
// The relay only mutates IsOnline and LastSeen; everything else is
// provisioned by the account layer.
type Identity struct {
	ID          IdentityID `json:"id"`
	DisplayName string     `json:"displayName"`
	Role        Role       `json:"role"`
	IsOnline    bool       `json:"isOnline"`
	LastSeen    time.Time  `json:"lastSeen"`
}

// PresenceTransition records an identity crossing the online/offline
// boundary. Emitted by the registry, consumed by the presence worker.
type PresenceTransition struct {
	IdentityID IdentityID
	Online     bool
	At         time.Time
}
