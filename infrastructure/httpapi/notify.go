// Package httpapi exposes the relay's internal notify endpoints to the
// REST layer. The REST service calls these after committing the
// corresponding store write, so live clients hear about persisted state
// without the relay ever originating it.
package httpapi

import (
	"log/slog"
	"net/http"

	"campus-relay/auth"
	"campus-relay/domain"
	"campus-relay/services"
)

const internalKeyHeader = "X-Internal-Key"

// RegisterNotify adds the notify endpoints. Every request must present
// the shared internal key; the relay only holds its Argon2id hash.
func RegisterNotify(mux *http.ServeMux, log *slog.Logger,
	service services.IRelayService, internalKeyHash string) {

	authorized := func(w http.ResponseWriter, r *http.Request) bool {
		ok, err := auth.CompareKey(r.Header.Get(internalKeyHeader), internalKeyHash)
		if err != nil || !ok {
			log.Warn("rejected internal call", "path", r.URL.Path, "remote", r.RemoteAddr)
			http.Error(w, "forbidden", http.StatusForbidden)
			return false
		}
		return true
	}

	handlePost(mux, "/internal/notify/message", func(w http.ResponseWriter, r *http.Request, req struct {
		Message domain.Message `json:"message"`
	}) {
		if !authorized(w, r) {
			return
		}
		service.NotifyNewMessage(r.Context(), req.Message)
		writeJSON(w, map[string]string{"status": "routed"})
	})

	handlePost(mux, "/internal/notify/message-edited", func(w http.ResponseWriter, r *http.Request, req struct {
		Message domain.Message `json:"message"`
	}) {
		if !authorized(w, r) {
			return
		}
		service.NotifyMessageEdited(r.Context(), req.Message)
		writeJSON(w, map[string]string{"status": "routed"})
	})

	handlePost(mux, "/internal/notify/message-deleted", func(w http.ResponseWriter, r *http.Request, req struct {
		ConversationID domain.ConversationID `json:"conversationId"`
		MessageID      domain.MessageID      `json:"messageId"`
	}) {
		if !authorized(w, r) {
			return
		}
		service.NotifyMessageDeleted(r.Context(), req.ConversationID, req.MessageID)
		writeJSON(w, map[string]string{"status": "routed"})
	})

	handlePost(mux, "/internal/notify/read-receipt", func(w http.ResponseWriter, r *http.Request, req struct {
		ConversationID   domain.ConversationID `json:"conversationId"`
		ReaderIdentityID domain.IdentityID     `json:"readerIdentityId"`
	}) {
		if !authorized(w, r) {
			return
		}
		service.NotifyReadReceipt(r.Context(), req.ConversationID, req.ReaderIdentityID)
		writeJSON(w, map[string]string{"status": "routed"})
	})
}
