package router

import (
	"context"

	"github.com/trackimpact/support-api/internal/domain/conversation"
)

// Answer is a canned knowledge base reply.
type Answer struct {
	EntryID string
	Intent  Intent
	Text    string
}

// KnowledgeBase resolves a message against static question/answer pairs.
type KnowledgeBase interface {
	Lookup(ctx context.Context, message string) (Answer, bool)
}

// Turn is one prior exchange line sent to the completion service.
type Turn struct {
	Role    conversation.MessageRole
	Content string
}

// Prompt is everything the completion service receives for one reply.
type Prompt struct {
	System  string
	History []Turn
	Message string
}

// CompletionService generates a reply for a prompt.
type CompletionService interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// EnterpriseContext is the read-only database context a reply may be grounded on.
type EnterpriseContext struct {
	HasDatabaseAccess bool
	Attributes        map[string]any
	Summary           string
}

// ContextProvider loads database context scoped to the caller's role and enterprise.
type ContextProvider interface {
	EnterpriseContext(ctx context.Context, owner conversation.Owner) (EnterpriseContext, error)
}
