package escalation

import (
	"context"
	"errors"
	"time"

	"github.com/trackimpact/support-api/internal/domain/conversation"
)

// TicketRequest is what the ticket system receives for one escalation.
type TicketRequest struct {
	ConversationID string
	Requester      conversation.Owner
	Subject        string
	Details        string
	Transcript     []conversation.Message
	RequestedAt    time.Time
}

// TicketSystem records a support ticket and returns its id. CreateTicket fails with a
// CONFLICT error when the conversation already has a ticket; TicketFor returns that ticket's id.
type TicketSystem interface {
	CreateTicket(ctx context.Context, req TicketRequest) (string, error)
	TicketFor(ctx context.Context, conversationID string) (string, error)
}

// Notification tells administrators a ticket is waiting.
type Notification struct {
	TicketID       string
	ConversationID string
	Subject        string
	Details        string
	Requester      conversation.Owner
	RequestedAt    time.Time
}

// Notifier delivers escalation notifications to the support team.
type Notifier interface {
	NotifyEscalation(ctx context.Context, n Notification) error
}

// Unlock releases a lock taken with Locker.Acquire.
type Unlock func(ctx context.Context) error

// Locker serializes escalations of the same conversation, possibly across instances.
type Locker interface {
	Acquire(ctx context.Context, key string) (Unlock, error)
}

// ErrLockHeld is returned by lockers when another holder owns the key.
var ErrLockHeld = errors.New("escalation lock held")
