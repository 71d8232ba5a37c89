// Package storage provides the Badger-backed directory used when the
// relay runs against its own store copy. It implements the same
// contract the production deployment fulfils with the campus database,
// so the rest of the relay never knows the difference.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"

	"campus-relay/domain"
)

// Key layout:
//
//	identity:{id}                       → Identity JSON
//	participant:{conversation}:{id}     → membership marker
//
// Membership lives in one key per participant so the participant set is
// a single prefix scan and joins/leaves are single-key writes.
type Directory struct {
	db  *badger.DB
	log *slog.Logger
}

func NewDirectory(db *badger.DB, log *slog.Logger) *Directory {
	return &Directory{db: db, log: log}
}

func identityKey(id domain.IdentityID) []byte {
	return []byte(fmt.Sprintf("identity:%d", id))
}

func participantKey(conversationID domain.ConversationID, id domain.IdentityID) []byte {
	return []byte(fmt.Sprintf("participant:%d:%019d", conversationID, id))
}

func participantPrefix(conversationID domain.ConversationID) []byte {
	return []byte(fmt.Sprintf("participant:%d:", conversationID))
}

func (d *Directory) UpsertIdentity(ctx context.Context, identity domain.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	value, err := json.Marshal(identity)
	if err != nil {
		return err
	}
	return d.db.Update(func(txn *badger.Txn) error {
		return txn.Set(identityKey(identity.ID), value)
	})
}

func (d *Directory) Identity(ctx context.Context, id domain.IdentityID) (domain.Identity, error) {
	if err := ctx.Err(); err != nil {
		return domain.Identity{}, err
	}
	var identity domain.Identity
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(identityKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &identity)
		})
	})
	if err != nil {
		return domain.Identity{}, fmt.Errorf("identity %d: %w", id, err)
	}
	return identity, nil
}

func (d *Directory) AddParticipant(ctx context.Context, conversationID domain.ConversationID, id domain.IdentityID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.Update(func(txn *badger.Txn) error {
		return txn.Set(participantKey(conversationID, id), nil)
	})
}

func (d *Directory) RemoveParticipant(ctx context.Context, conversationID domain.ConversationID, id domain.IdentityID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(participantKey(conversationID, id))
	})
}

// ConversationParticipants scans the membership prefix. The result is
// authoritative at read time; the router refetches it for every event
// rather than caching it.
func (d *Directory) ConversationParticipants(ctx context.Context, conversationID domain.ConversationID) ([]domain.IdentityID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := participantPrefix(conversationID)
	var participants []domain.IdentityID
	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			var id domain.IdentityID
			suffix := it.Item().Key()[len(prefix):]
			if _, err := fmt.Sscanf(string(suffix), "%d", &id); err != nil {
				d.log.Warn("skipping malformed participant key", "key", string(it.Item().Key()))
				continue
			}
			participants = append(participants, id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("participants of conversation %d: %w", conversationID, err)
	}
	return lo.Uniq(participants), nil
}

func (d *Directory) SetIdentityOnline(ctx context.Context, id domain.IdentityID, online bool) error {
	return d.mutateIdentity(ctx, id, func(identity *domain.Identity) {
		identity.IsOnline = online
	})
}

func (d *Directory) SetIdentityLastSeen(ctx context.Context, id domain.IdentityID, at time.Time) error {
	return d.mutateIdentity(ctx, id, func(identity *domain.Identity) {
		identity.LastSeen = at
	})
}

// mutateIdentity applies a read-modify-write inside one transaction so
// concurrent flag updates cannot clobber each other's fields.
func (d *Directory) mutateIdentity(ctx context.Context, id domain.IdentityID, mutate func(*domain.Identity)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(identityKey(id))
		if err != nil {
			return fmt.Errorf("identity %d: %w", id, err)
		}
		var identity domain.Identity
		if err := item.Value(func(value []byte) error {
			return json.Unmarshal(value, &identity)
		}); err != nil {
			return err
		}
		mutate(&identity)
		value, err := json.Marshal(identity)
		if err != nil {
			return err
		}
		return txn.Set(identityKey(id), value)
	})
}
