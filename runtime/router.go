package runtime

import (
	"context"
	"log/slog"
	"time"

	"campus-relay/contract"
	"campus-relay/domain"
	"campus-relay/domain/event"
	"campus-relay/moderation"
	"campus-relay/observability"
)

// Router resolves the recipient set of each event and fans the encoded
// frame out to their live connections.
//
// Delivery is best effort: one push attempt per connection, no retry, no
// batching. A failed push is an implicit disconnect and unregisters the
// connection without aborting delivery to the remaining recipients.
// Durability of the underlying event lives in the store, not here.
type Router struct {
	log           *slog.Logger
	registry      contract.IRegistry
	directory     contract.IDirectory
	stats         *observability.RelayStats
	moderator     *moderation.Moderator
	lookupTimeout time.Duration
}

func NewRouter(log *slog.Logger, registry contract.IRegistry, directory contract.IDirectory,
	stats *observability.RelayStats, moderator *moderation.Moderator,
	lookupTimeout time.Duration) *Router {
	return &Router{
		log:           log,
		registry:      registry,
		directory:     directory,
		stats:         stats,
		moderator:     moderator,
		lookupTimeout: lookupTimeout,
	}
}

// RouteNewMessage delivers a committed message to every participant,
// sender included: the sender's other devices need it too, and clients
// dedupe by message id.
func (r *Router) RouteNewMessage(ctx context.Context, msg domain.Message) {
	msg.Content = r.censor(msg.Content)
	r.fanout(ctx, msg.ConversationID, nil, event.NewMessageEvent(msg))
}

func (r *Router) RouteMessageEdited(ctx context.Context, msg domain.Message) {
	msg.Content = r.censor(msg.Content)
	r.fanout(ctx, msg.ConversationID, nil, event.MessageEditedEvent(msg))
}

func (r *Router) RouteMessageDeleted(ctx context.Context, conversationID domain.ConversationID, messageID domain.MessageID) {
	r.fanout(ctx, conversationID, nil, event.MessageDeletedEvent(conversationID, messageID))
}

// RouteReadReceipt goes to all participants, the reader included, so the
// reader's other devices clear their unread markers.
func (r *Router) RouteReadReceipt(ctx context.Context, conversationID domain.ConversationID, readerID domain.IdentityID) {
	r.fanout(ctx, conversationID, nil, event.ReadReceiptEvent(conversationID, readerID))
}

// RouteTyping excludes the typist: their own devices have nothing to
// show for it.
func (r *Router) RouteTyping(ctx context.Context, conversationID domain.ConversationID, identityID domain.IdentityID, isTyping bool) {
	exclude := identityID
	r.fanout(ctx, conversationID, &exclude, event.TypingEvent(conversationID, identityID, isTyping))
}

// PushTo delivers one frame to every live connection of a single
// identity and returns how many pushes succeeded. The broker uses it for
// call events, with the same failed-push-means-disconnect policy as
// conversation fan-out.
func (r *Router) PushTo(id domain.IdentityID, evt any) int {
	frame, err := event.Encode(evt)
	if err != nil {
		r.log.Error("encoding outbound frame", "error", err)
		return 0
	}
	return r.deliver(r.registry.ConnectionsFor(id), frame)
}

// fanout recomputes the participant set from the store for every event,
// so membership changes are reflected immediately. A failed lookup drops
// the event: the recipient set is treated as empty, never guessed.
func (r *Router) fanout(ctx context.Context, conversationID domain.ConversationID,
	exclude *domain.IdentityID, evt any) {
	r.stats.IncrEventsRouted()

	lookupCtx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	defer cancel()

	participants, err := r.directory.ConversationParticipants(lookupCtx, conversationID)
	if err != nil {
		r.stats.IncrStoreLookupErrors()
		r.log.Error("participant lookup failed, dropping event",
			"conversation_id", conversationID,
			"error", err,
		)
		return
	}

	frame, err := event.Encode(evt)
	if err != nil {
		r.log.Error("encoding outbound frame", "error", err)
		return
	}

	for _, participantID := range participants {
		if exclude != nil && participantID == *exclude {
			continue
		}
		r.deliver(r.registry.ConnectionsFor(participantID), frame)
	}
}

// deliver attempts one non-blocking push per connection. Failures
// unregister the connection and are otherwise absorbed.
func (r *Router) deliver(conns []contract.Connection, frame []byte) int {
	delivered := 0
	for _, conn := range conns {
		if err := conn.Push(frame); err != nil {
			r.stats.IncrDeliveryFailures()
			r.log.Warn("push failed, unregistering connection",
				"identity_id", conn.IdentityID(),
				"connection_id", conn.ID(),
				"error", err,
			)
			r.registry.Unregister(conn)
			conn.Close()
			continue
		}
		r.stats.IncrDeliveries()
		delivered++
	}
	return delivered
}

func (r *Router) censor(content string) string {
	if r.moderator == nil {
		return content
	}
	return r.moderator.Censor(content)
}
