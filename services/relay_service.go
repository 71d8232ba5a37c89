package services

import (
	"context"

	"campus-relay/contract"
	"campus-relay/domain"
	"campus-relay/runtime"
)

// IRelayService is the surface the transport layers see: the notify
// half is called by the REST layer after it commits a store write, the
// call half by WebSocket clients. The relay never originates persisted
// state, it only reacts to it.
type IRelayService interface {
	NotifyNewMessage(ctx context.Context, msg domain.Message)
	NotifyMessageEdited(ctx context.Context, msg domain.Message)
	NotifyMessageDeleted(ctx context.Context, conversationID domain.ConversationID, messageID domain.MessageID)
	NotifyReadReceipt(ctx context.Context, conversationID domain.ConversationID, readerID domain.IdentityID)

	SetTyping(ctx context.Context, conversationID domain.ConversationID, identityID domain.IdentityID, isTyping bool)

	InitiateCall(callerID, calleeID domain.IdentityID, kind domain.MediaKind) error
	AcceptCall(calleeID, callerID domain.IdentityID) error
	RelayCallSignal(fromID, toID domain.IdentityID, signal []byte) error
	EndCall(requesterID domain.IdentityID)
}

type RelayService struct {
	router *runtime.Router
	broker contract.IBroker
}

func NewRelayService(router *runtime.Router, broker contract.IBroker) *RelayService {
	return &RelayService{router: router, broker: broker}
}

func (s *RelayService) NotifyNewMessage(ctx context.Context, msg domain.Message) {
	s.router.RouteNewMessage(ctx, msg)
}

func (s *RelayService) NotifyMessageEdited(ctx context.Context, msg domain.Message) {
	s.router.RouteMessageEdited(ctx, msg)
}

func (s *RelayService) NotifyMessageDeleted(ctx context.Context, conversationID domain.ConversationID, messageID domain.MessageID) {
	s.router.RouteMessageDeleted(ctx, conversationID, messageID)
}

func (s *RelayService) NotifyReadReceipt(ctx context.Context, conversationID domain.ConversationID, readerID domain.IdentityID) {
	s.router.RouteReadReceipt(ctx, conversationID, readerID)
}

// SetTyping broadcasts immediately, one broadcast per call. Throttling
// is the client's job.
func (s *RelayService) SetTyping(ctx context.Context, conversationID domain.ConversationID, identityID domain.IdentityID, isTyping bool) {
	s.router.RouteTyping(ctx, conversationID, identityID, isTyping)
}

func (s *RelayService) InitiateCall(callerID, calleeID domain.IdentityID, kind domain.MediaKind) error {
	return s.broker.Initiate(callerID, calleeID, kind)
}

func (s *RelayService) AcceptCall(calleeID, callerID domain.IdentityID) error {
	return s.broker.Accept(calleeID, callerID)
}

func (s *RelayService) RelayCallSignal(fromID, toID domain.IdentityID, signal []byte) error {
	return s.broker.RelaySignal(fromID, toID, signal)
}

func (s *RelayService) EndCall(requesterID domain.IdentityID) {
	s.broker.End(requesterID)
}
