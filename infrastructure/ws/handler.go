package ws

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"campus-relay/auth"
	"campus-relay/contract"
	"campus-relay/domain/event"
	"campus-relay/errors"
	"campus-relay/observability"
	"campus-relay/services"
)

// Options bounds the per-connection transport behaviour.
type Options struct {
	SendBuffer    int
	WriteTimeout  time.Duration
	PingInterval  time.Duration
	PongTimeout   time.Duration
	MaxFrameBytes int64
}

// Handler upgrades /ws requests, authenticates them and bridges frames
// between the connection and the relay service.
type Handler struct {
	log      *slog.Logger
	tokens   *auth.TokenManager
	registry contract.IRegistry
	service  services.IRelayService
	stats    *observability.RelayStats
	validate *validator.Validate
	upgrader websocket.Upgrader
	opts     Options
}

func NewHandler(log *slog.Logger, tokens *auth.TokenManager, registry contract.IRegistry,
	service services.IRelayService, stats *observability.RelayStats, opts Options) *Handler {
	return &Handler{
		log:      log,
		tokens:   tokens,
		registry: registry,
		service:  service,
		stats:    stats,
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browsers send the campus origin; cross-origin policy is
			// enforced upstream by the reverse proxy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		opts: opts,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.serve)
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request) {
	claims, err := h.tokens.Validate(bearerToken(r))
	if err != nil {
		http.Error(w, "invalid or missing token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", "identity_id", claims.IdentityID, "error", err)
		return
	}

	client := NewClient(h.log, conn, claims.IdentityID, claims.Role, h.opts.SendBuffer)
	h.registry.Register(client)
	defer func() {
		h.registry.Unregister(client)
		client.Close()
	}()

	go client.writePump(h.opts.WriteTimeout, h.opts.PingInterval)

	ctx := r.Context()
	client.readPump(h.opts.MaxFrameBytes, h.opts.PongTimeout, func(raw []byte) {
		h.dispatch(ctx, client, raw)
	})
}

// dispatch decodes one client frame and hands it to the relay. A
// malformed frame is logged and ignored; it never takes the connection
// down. Operation failures go back to the sending connection only, as a
// call_error frame.
func (h *Handler) dispatch(ctx context.Context, client *Client, raw []byte) {
	in, err := event.DecodeInbound(raw)
	if err != nil {
		h.stats.IncrDroppedFrames()
		h.log.Warn("dropping malformed frame",
			"identity_id", client.identityID,
			"connection_id", client.id,
			"error", err,
		)
		return
	}

	switch in.Type {
	case event.TypeTyping:
		if !h.valid(client, in.Typing) {
			return
		}
		h.service.SetTyping(ctx, in.Typing.ConversationID, client.identityID, in.Typing.IsTyping)

	case event.TypeCallRequest:
		if !h.valid(client, in.CallReq) {
			return
		}
		err := h.service.InitiateCall(client.identityID, in.CallReq.TargetIdentityID, in.CallReq.CallType)
		h.reportCallError(client, err)

	case event.TypeCallAccepted:
		if !h.valid(client, in.CallAccept) {
			return
		}
		err := h.service.AcceptCall(client.identityID, in.CallAccept.TargetIdentityID)
		h.reportCallError(client, err)

	case event.TypeCallSignal:
		if !h.valid(client, in.CallSignal) {
			return
		}
		err := h.service.RelayCallSignal(client.identityID, in.CallSignal.TargetIdentityID, in.CallSignal.Signal)
		h.reportCallError(client, err)

	case event.TypeCallEnded:
		if !h.valid(client, in.CallEnd) {
			return
		}
		h.service.EndCall(client.identityID)
	}
}

func (h *Handler) valid(client *Client, payload any) bool {
	if err := h.validate.Struct(payload); err != nil {
		h.stats.IncrDroppedFrames()
		h.log.Warn("dropping invalid frame",
			"identity_id", client.identityID,
			"error", err,
		)
		return false
	}
	return true
}

// reportCallError turns a synchronous call failure into a frame for the
// requesting connection, so the UI can show "user is busy" and friends.
func (h *Handler) reportCallError(client *Client, err error) {
	if err == nil {
		return
	}

	reason := "call_failed"
	switch {
	case stderrors.Is(err, errors.ErrBusy):
		reason = "busy"
	case stderrors.Is(err, errors.ErrUnreachable):
		reason = "unreachable"
	case stderrors.Is(err, errors.ErrNoSuchSession):
		reason = "no_such_session"
	}

	frame, encodeErr := event.Encode(event.CallErrorEvent(reason))
	if encodeErr != nil {
		return
	}
	if pushErr := client.Push(frame); pushErr != nil {
		h.log.Debug("call error push failed", "connection_id", client.id, "error", pushErr)
	}
}

// bearerToken accepts the token either as a query parameter (browser
// WebSocket API cannot set headers) or as a standard bearer header.
func bearerToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if after, found := strings.CutPrefix(header, "Bearer "); found {
		return after
	}
	return ""
}
