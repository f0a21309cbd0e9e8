package handlers

import (
	"context"

	"github.com/trackimpact/support-api/internal/domain/conversation"
	"github.com/trackimpact/support-api/internal/domain/escalation"
	"github.com/trackimpact/support-api/internal/domain/role"
	"github.com/trackimpact/support-api/internal/domain/router"
	"github.com/trackimpact/support-api/internal/infrastructure/metrics"
	"github.com/trackimpact/support-api/internal/utils/platformerrors"
)

// ConversationHandler bridges the HTTP routes and the support domain.
type ConversationHandler struct {
	conversations conversation.Service
	router        router.Service
	gate          escalation.Gate
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(conversations conversation.Service, chat router.Service, gate escalation.Gate) *ConversationHandler {
	return &ConversationHandler{conversations: conversations, router: chat, gate: gate}
}

// SendMessage routes one user message; an empty conversationID starts a new conversation.
func (h *ConversationHandler) SendMessage(ctx context.Context, owner conversation.Owner, conversationID, message string) (*router.Reply, error) {
	return h.router.Send(ctx, owner, conversationID, message)
}

// List returns one page of the caller's conversations.
func (h *ConversationHandler) List(ctx context.Context, owner conversation.Owner, query conversation.ListQuery) (*conversation.Page, error) {
	return h.conversations.ListByUser(ctx, owner, query)
}

// Get returns a conversation together with whether the caller may still escalate it.
func (h *ConversationHandler) Get(ctx context.Context, owner conversation.Owner, id string) (*conversation.Conversation, bool, error) {
	conv, err := h.conversations.Get(ctx, owner, id)
	if err != nil {
		return nil, false, err
	}
	strategy, err := role.For(ctx, owner.Role)
	if err != nil {
		return conv, false, nil
	}
	return conv, conv.CanEscalate(strategy), nil
}

// Delete soft deletes a conversation.
func (h *ConversationHandler) Delete(ctx context.Context, owner conversation.Owner, id string) error {
	return h.conversations.Delete(ctx, owner, id)
}

// Escalate opens a support ticket and records the outcome.
func (h *ConversationHandler) Escalate(ctx context.Context, owner conversation.Owner, id, details string) (*escalation.Result, error) {
	result, err := h.gate.Escalate(ctx, owner, id, details)
	metrics.EscalationsTotal.WithLabelValues(escalationOutcome(err)).Inc()
	return result, err
}

// SetResolved changes the resolution status; administrators only.
func (h *ConversationHandler) SetResolved(ctx context.Context, owner conversation.Owner, id string, resolved bool) (*conversation.Conversation, error) {
	return h.conversations.SetResolved(ctx, owner, id, resolved)
}

func escalationOutcome(err error) string {
	switch {
	case err == nil:
		return "submitted"
	case platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation):
		return "invalid"
	case platformerrors.IsErrorType(err, platformerrors.ErrorTypeForbidden):
		return "forbidden"
	case platformerrors.IsErrorType(err, platformerrors.ErrorTypeConflict):
		return "duplicate"
	case platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound):
		return "not_found"
	default:
		return "failed"
	}
}
