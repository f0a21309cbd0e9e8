package escalation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/trackimpact/support-api/internal/domain/conversation"
	"github.com/trackimpact/support-api/internal/domain/role"
	"github.com/trackimpact/support-api/internal/utils/platformerrors"
)

const (
	MinDetailsLength = 10
	MaxDetailsLength = 1000

	// TranscriptExcerpt is how many trailing messages travel with a ticket.
	TranscriptExcerpt = 10

	StatusSubmitted = "submitted"
)

// Result is the outcome of a successful escalation.
type Result struct {
	TicketID     string
	Status       string
	Conversation *conversation.Conversation
}

// Gate turns a conversation into a support ticket at most once.
type Gate interface {
	Escalate(ctx context.Context, owner conversation.Owner, conversationID, details string) (*Result, error)
}

type gate struct {
	conversations conversation.Service
	tickets       TicketSystem
	notifier      Notifier
	locker        Locker
	log           zerolog.Logger
	now           func() time.Time
}

// NewGate wires the escalation gate. A nil notifier disables notifications.
func NewGate(conversations conversation.Service, tickets TicketSystem, notifier Notifier, locker Locker, log zerolog.Logger) Gate {
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &gate{
		conversations: conversations,
		tickets:       tickets,
		notifier:      notifier,
		locker:        locker,
		log:           log.With().Str("component", "escalation-gate").Logger(),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (g *gate) Escalate(ctx context.Context, owner conversation.Owner, conversationID, details string) (*Result, error) {
	details = strings.TrimSpace(details)
	if n := utf8.RuneCountInString(details); n < MinDetailsLength || n > MaxDetailsLength {
		return nil, platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			fmt.Sprintf("details must be between %d and %d characters", MinDetailsLength, MaxDetailsLength), nil,
			"8e3b1d6f-2a94-4c70-b5e8-0d7f3a9c1e52", map[string]any{"field": "details", "length": n})
	}

	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil, platformerrors.NewValidationError(ctx, platformerrors.LayerDomain, "conversationId",
			"conversation id is required", "f2a6c8e0-4b13-4d59-9e7a-6c1b0d3f8a24")
	}

	strategy, err := role.For(ctx, owner.Role)
	if err != nil {
		return nil, err
	}
	if !strategy.CanEscalate {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden,
			"this role cannot escalate conversations", nil, "0b7e4f2c-9d61-4a38-8c05-e3a7d1f6b924")
	}

	unlock, err := g.locker.Acquire(ctx, "escalation:"+conversationID)
	if err != nil {
		if errors.Is(err, ErrLockHeld) {
			return nil, platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict,
				"an escalation is already in progress for this conversation", err,
				"5d9c2a7e-1f48-4b36-a0e9-7b2d4c8f6e13", map[string]any{"conversation_id": conversationID})
		}
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeServiceUnavailable,
			"escalation is temporarily unavailable, please retry", err, "a4f1e7c3-6b20-4d85-9f3a-2e8c0b5d7a61")
	}
	defer func() {
		if unlockErr := unlock(context.WithoutCancel(ctx)); unlockErr != nil {
			g.log.Warn().Err(unlockErr).Str("conversation_id", conversationID).Msg("failed to release escalation lock")
		}
	}()

	conv, err := g.conversations.Get(ctx, owner, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.Metadata.Escalated {
		return nil, conversation.AlreadyEscalatedError(ctx, conversationID)
	}

	requestedAt := g.now()
	req := TicketRequest{
		ConversationID: conv.ID,
		Requester:      owner,
		Subject:        "Escalade : " + conv.Title,
		Details:        details,
		Transcript:     excerpt(conv.Messages, TranscriptExcerpt),
		RequestedAt:    requestedAt,
	}

	ticketID, err := g.tickets.CreateTicket(ctx, req)
	if err != nil && platformerrors.IsErrorType(err, platformerrors.ErrorTypeConflict) {
		// a previous attempt stored the ticket but never flagged the conversation
		ticketID, err = g.tickets.TicketFor(ctx, conv.ID)
		if err == nil {
			g.log.Warn().
				Str("conversation_id", conv.ID).
				Str("ticket_id", ticketID).
				Msg("resuming escalation with existing ticket")
		}
	}
	if err != nil {
		return nil, platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeServiceUnavailable,
			"the ticket system is temporarily unavailable, please retry", err,
			"c6e2b9f4-3d17-4a58-b1c0-9f4e7a2d6b38", map[string]any{"conversation_id": conversationID})
	}

	escalated, err := g.conversations.MarkEscalated(ctx, owner, conv.ID, ticketID, ConfirmationMessage(ticketID))
	if err != nil {
		g.log.Error().Err(err).
			Str("conversation_id", conv.ID).
			Str("ticket_id", ticketID).
			Msg("ticket created but conversation not flagged")
		return nil, err
	}

	g.log.Info().
		Str("conversation_id", conv.ID).
		Str("ticket_id", ticketID).
		Int("details_length", utf8.RuneCountInString(details)).
		Msg("conversation escalated")

	g.notify(ctx, Notification{
		TicketID:       ticketID,
		ConversationID: conv.ID,
		Subject:        req.Subject,
		Details:        details,
		Requester:      owner,
		RequestedAt:    requestedAt,
	})

	return &Result{TicketID: ticketID, Status: StatusSubmitted, Conversation: escalated}, nil
}

func (g *gate) notify(ctx context.Context, n Notification) {
	if g.notifier == nil {
		return
	}
	if err := g.notifier.NotifyEscalation(context.WithoutCancel(ctx), n); err != nil {
		g.log.Warn().Err(err).Str("ticket_id", n.TicketID).Msg("admin notification failed")
	}
}

// ConfirmationMessage is the assistant message appended once a ticket exists.
func ConfirmationMessage(ticketID string) conversation.Message {
	content := fmt.Sprintf("Votre demande a bien été transmise à l'équipe support (ticket %s). "+
		"Un administrateur TrackImpact reviendra vers vous par e-mail sous 24 à 48 heures ouvrées.", ticketID)
	return conversation.Message{
		Role:     conversation.MessageRoleAssistant,
		Content:  content,
		Metadata: conversation.EscalationConfirmation{TicketID: ticketID},
	}
}

func excerpt(messages []conversation.Message, n int) []conversation.Message {
	if len(messages) <= n {
		return append([]conversation.Message(nil), messages...)
	}
	return append([]conversation.Message(nil), messages[len(messages)-n:]...)
}
