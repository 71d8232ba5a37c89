package workers

import (
	"context"
	"log/slog"

	"campus-relay/contract"
	"campus-relay/domain"
)

// PresenceWorker drains the registry's transition channel and writes the
// online flag and last-seen timestamp to the store. The write is
// deliberately off the connect/disconnect path: a failed or slow store
// call costs nothing but a stale flag, which the next transition heals.
type PresenceWorker struct {
	log         *slog.Logger
	directory   contract.IDirectory
	transitions <-chan domain.PresenceTransition
}

func NewPresenceWorker(log *slog.Logger, directory contract.IDirectory,
	transitions <-chan domain.PresenceTransition) *PresenceWorker {
	return &PresenceWorker{log: log, directory: directory, transitions: transitions}
}

func (w *PresenceWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping presence writes")
			return nil
		case t, ok := <-w.transitions:
			if !ok {
				return nil
			}
			w.apply(ctx, t)
		}
	}
}

func (w *PresenceWorker) apply(ctx context.Context, t domain.PresenceTransition) {
	if err := w.directory.SetIdentityOnline(ctx, t.IdentityID, t.Online); err != nil {
		w.log.Error("persisting online flag failed",
			"identity_id", t.IdentityID,
			"online", t.Online,
			"error", err,
		)
	}
	if t.Online {
		return
	}
	if err := w.directory.SetIdentityLastSeen(ctx, t.IdentityID, t.At); err != nil {
		w.log.Error("persisting last-seen failed",
			"identity_id", t.IdentityID,
			"error", err,
		)
	}
}
