package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"campus-relay/auth"
	"campus-relay/domain"
	"campus-relay/mocks"
	"campus-relay/observability"
	"campus-relay/runtime"
	"campus-relay/services"
)

// testRelay wires a real registry, router and broker behind the handler,
// with the store mocked out.
type testRelay struct {
	server *httptest.Server
	tokens *auth.TokenManager
}

func newTestRelay(t *testing.T) *testRelay {
	t.Helper()

	ctrl := gomock.NewController(t)
	directory := mocks.NewMockIDirectory(ctrl)
	// Every conversation in these tests is the pair {1, 2}.
	directory.EXPECT().
		ConversationParticipants(gomock.Any(), gomock.Any()).
		Return([]domain.IdentityID{1, 2}, nil).
		AnyTimes()

	log := slog.Default()
	stats := observability.NewRelayStats()
	registry := runtime.NewRegistry(log, stats, make(chan domain.PresenceTransition, 64))
	router := runtime.NewRouter(log, registry, directory, stats, nil, time.Second)
	broker := runtime.NewCallBroker(log, router, stats, 0)
	registry.OnOffline(broker.EndFor)
	service := services.NewRelayService(router, broker)

	tokens := auth.NewTokenManager([]byte("handler-test-secret"), "campus-relay", time.Hour)
	handler := NewHandler(log, tokens, registry, service, stats, Options{
		SendBuffer:    16,
		WriteTimeout:  time.Second,
		PingInterval:  30 * time.Second,
		PongTimeout:   time.Minute,
		MaxFrameBytes: 8192,
	})

	mux := http.NewServeMux()
	handler.Register(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &testRelay{server: server, tokens: tokens}
}

func (r *testRelay) wsURL(token string) string {
	url := "ws" + strings.TrimPrefix(r.server.URL, "http") + "/ws"
	if token != "" {
		url += "?token=" + token
	}
	return url
}

// connect authenticates identityID and opens a WebSocket for it.
func (r *testRelay) connect(t *testing.T, identityID domain.IdentityID) *websocket.Conn {
	t.Helper()
	token, err := r.tokens.Generate(identityID, domain.RoleStudent)
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(r.wsURL(token), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame map[string]any
	require.NoError(t, json.Unmarshal(raw, &frame))
	return frame
}

func send(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func TestHandler_Rejects_Missing_Or_Invalid_Token(t *testing.T) {
	req := require.New(t)
	relay := newTestRelay(t)

	_, resp, err := websocket.DefaultDialer.Dial(relay.wsURL(""), nil)
	req.Error(err)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(relay.wsURL("forged-token"), nil)
	req.Error(err)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func TestHandler_Typing_Reaches_The_Other_Participant(t *testing.T) {
	req := require.New(t)
	relay := newTestRelay(t)

	typist := relay.connect(t, 1)
	peer := relay.connect(t, 2)

	send(t, typist, `{"type":"typing","conversationId":10,"isTyping":true}`)

	frame := readFrame(t, peer)
	req.Equal("typing", frame["type"])
	req.Equal(float64(1), frame["identityId"])
	req.Equal(true, frame["isTyping"])
}

func TestHandler_Full_Call_Handshake_Over_The_Wire(t *testing.T) {
	req := require.New(t)
	relay := newTestRelay(t)

	caller := relay.connect(t, 1)
	callee := relay.connect(t, 2)

	// Ring
	send(t, caller, `{"type":"call_request","targetIdentityId":2,"callType":"video"}`)
	frame := readFrame(t, callee)
	req.Equal("call_incoming", frame["type"])
	req.Equal(float64(1), frame["callerIdentityId"])
	req.Equal("video", frame["callType"])

	// Accept
	send(t, callee, `{"type":"call_accepted","targetIdentityId":1}`)
	frame = readFrame(t, caller)
	req.Equal("call_accepted", frame["type"])

	// Opaque signaling both ways
	send(t, caller, `{"type":"call_signal","targetIdentityId":2,"signal":{"sdp":"offer"}}`)
	frame = readFrame(t, callee)
	req.Equal("call_signal", frame["type"])
	req.Equal("offer", frame["signal"].(map[string]any)["sdp"])

	send(t, callee, `{"type":"call_signal","targetIdentityId":1,"signal":{"sdp":"answer"}}`)
	frame = readFrame(t, caller)
	req.Equal("call_signal", frame["type"])

	// Hang up
	send(t, caller, `{"type":"call_ended","targetIdentityId":2}`)
	frame = readFrame(t, callee)
	req.Equal("call_ended", frame["type"])
}

func TestHandler_Call_Failures_Come_Back_As_Call_Error(t *testing.T) {
	req := require.New(t)
	relay := newTestRelay(t)

	caller := relay.connect(t, 1)
	relay.connect(t, 2)

	// The callee of identity 3 has no connection at all
	send(t, caller, `{"type":"call_request","targetIdentityId":3,"callType":"audio"}`)
	frame := readFrame(t, caller)
	req.Equal("call_error", frame["type"])
	req.Equal("unreachable", frame["reason"])

	// A second invite while one is ringing reports busy
	send(t, caller, `{"type":"call_request","targetIdentityId":2,"callType":"audio"}`)
	send(t, caller, `{"type":"call_request","targetIdentityId":2,"callType":"audio"}`)
	frame = readFrame(t, caller)
	req.Equal("call_error", frame["type"])
	req.Equal("busy", frame["reason"])
}

func TestHandler_Malformed_Frames_Do_Not_Drop_The_Connection(t *testing.T) {
	req := require.New(t)
	relay := newTestRelay(t)

	typist := relay.connect(t, 1)
	peer := relay.connect(t, 2)

	// Garbage, an unknown type and an invalid payload are all ignored
	send(t, typist, `this is not json`)
	send(t, typist, `{"type":"selfdestruct"}`)
	send(t, typist, `{"type":"typing","isTyping":true}`)

	// The connection is still alive and routing
	send(t, typist, `{"type":"typing","conversationId":10,"isTyping":false}`)
	frame := readFrame(t, peer)
	req.Equal("typing", frame["type"])
	req.Equal(false, frame["isTyping"])
}

func TestHandler_Disconnect_Ends_The_Call_For_The_Peer(t *testing.T) {
	req := require.New(t)
	relay := newTestRelay(t)

	caller := relay.connect(t, 1)
	callee := relay.connect(t, 2)

	send(t, caller, `{"type":"call_request","targetIdentityId":2,"callType":"audio"}`)
	frame := readFrame(t, callee)
	req.Equal("call_incoming", frame["type"])

	// The caller's only connection drops mid-ring
	req.NoError(caller.Close())

	frame = readFrame(t, callee)
	req.Equal("call_ended", frame["type"])
}
