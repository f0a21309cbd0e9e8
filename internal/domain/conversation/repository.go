package conversation

import (
	"context"
	"time"
)

// Repository exposes persistence for conversations. Every write is atomic: either all of
// its effects are visible afterwards or none are.
type Repository interface {
	// Create stores a new conversation together with its initial messages.
	Create(ctx context.Context, conv *Conversation) error
	// FindByID returns an active conversation with its full transcript, or a NOT_FOUND error.
	FindByID(ctx context.Context, id string) (*Conversation, error)
	// AppendMessages adds messages after the existing ones and bumps last activity.
	AppendMessages(ctx context.Context, id string, messages []Message, at time.Time) error
	// ListByOwner returns digests ordered by last activity, newest first, and the total count.
	ListByOwner(ctx context.Context, filter ListFilter) ([]Digest, int64, error)
	// SoftDelete deactivates the conversation; NOT_FOUND when it is already inactive.
	SoftDelete(ctx context.Context, id string, at time.Time) error
	// MarkEscalated flips the escalated flag and appends the confirmation message;
	// CONFLICT when the conversation is already escalated.
	MarkEscalated(ctx context.Context, id, ticketID string, confirmation Message, at time.Time) error
	// SetResolved updates the resolved flag.
	SetResolved(ctx context.Context, id string, resolved bool, at time.Time) error
}
