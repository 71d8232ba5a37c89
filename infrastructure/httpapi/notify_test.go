package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"campus-relay/auth"
	"campus-relay/domain"
)

// recordingService captures notify calls; the call half is never reached
// from this package.
type recordingService struct {
	messages       []domain.Message
	edited         []domain.Message
	deleted        []domain.MessageID
	readReceipts   []domain.IdentityID
	typingRequests int
}

func (s *recordingService) NotifyNewMessage(_ context.Context, msg domain.Message) {
	s.messages = append(s.messages, msg)
}

func (s *recordingService) NotifyMessageEdited(_ context.Context, msg domain.Message) {
	s.edited = append(s.edited, msg)
}

func (s *recordingService) NotifyMessageDeleted(_ context.Context, _ domain.ConversationID, messageID domain.MessageID) {
	s.deleted = append(s.deleted, messageID)
}

func (s *recordingService) NotifyReadReceipt(_ context.Context, _ domain.ConversationID, readerID domain.IdentityID) {
	s.readReceipts = append(s.readReceipts, readerID)
}

func (s *recordingService) SetTyping(_ context.Context, _ domain.ConversationID, _ domain.IdentityID, _ bool) {
	s.typingRequests++
}

func (s *recordingService) InitiateCall(_, _ domain.IdentityID, _ domain.MediaKind) error { return nil }
func (s *recordingService) AcceptCall(_, _ domain.IdentityID) error                      { return nil }
func (s *recordingService) RelayCallSignal(_, _ domain.IdentityID, _ []byte) error       { return nil }
func (s *recordingService) EndCall(_ domain.IdentityID)                                  {}

func newNotifyServer(t *testing.T) (*httptest.Server, *recordingService, string) {
	t.Helper()

	const internalKey = "shared-internal-key"
	hash, err := auth.HashKey(internalKey)
	require.NoError(t, err)

	service := &recordingService{}
	mux := http.NewServeMux()
	RegisterNotify(mux, slog.Default(), service, hash)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, service, internalKey
}

func post(t *testing.T, url, key, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	if key != "" {
		req.Header.Set("X-Internal-Key", key)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestNotify_Requires_The_Internal_Key(t *testing.T) {
	req := require.New(t)
	server, service, _ := newNotifyServer(t)
	body := `{"message":{"id":1,"conversationId":10,"senderIdentityId":1,"content":"hi"}}`

	resp := post(t, server.URL+"/internal/notify/message", "", body)
	req.Equal(http.StatusForbidden, resp.StatusCode)

	resp = post(t, server.URL+"/internal/notify/message", "wrong-key", body)
	req.Equal(http.StatusForbidden, resp.StatusCode)

	req.Empty(service.messages)
}

func TestNotify_Message_Routes_With_Valid_Key(t *testing.T) {
	req := require.New(t)
	server, service, key := newNotifyServer(t)

	resp := post(t, server.URL+"/internal/notify/message", key,
		`{"message":{"id":100,"conversationId":10,"senderIdentityId":1,"content":"hello"}}`)

	req.Equal(http.StatusOK, resp.StatusCode)
	req.Len(service.messages, 1)
	req.Equal(domain.MessageID(100), service.messages[0].ID)
	req.Equal("hello", service.messages[0].Content)
}

func TestNotify_Deleted_And_Read_Receipt_Endpoints(t *testing.T) {
	req := require.New(t)
	server, service, key := newNotifyServer(t)

	resp := post(t, server.URL+"/internal/notify/message-deleted", key,
		`{"conversationId":10,"messageId":100}`)
	req.Equal(http.StatusOK, resp.StatusCode)
	req.Equal([]domain.MessageID{100}, service.deleted)

	resp = post(t, server.URL+"/internal/notify/read-receipt", key,
		`{"conversationId":10,"readerIdentityId":7}`)
	req.Equal(http.StatusOK, resp.StatusCode)
	req.Equal([]domain.IdentityID{7}, service.readReceipts)
}

func TestNotify_Rejects_Bad_Requests(t *testing.T) {
	req := require.New(t)
	server, service, key := newNotifyServer(t)

	// Wrong method
	resp, err := http.Get(server.URL + "/internal/notify/message")
	req.NoError(err)
	_ = resp.Body.Close()
	req.Equal(http.StatusMethodNotAllowed, resp.StatusCode)

	// Unparseable body
	resp = post(t, server.URL+"/internal/notify/message", key, `{not json`)
	req.Equal(http.StatusBadRequest, resp.StatusCode)

	req.Empty(service.messages)
}
