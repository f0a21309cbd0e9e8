package conversation

import (
	"time"

	"github.com/trackimpact/support-api/internal/domain/role"
)

// MessageRole is the author of a transcript entry.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

const (
	PreviewLength = 80
	TitleLength   = 60

	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Owner is the identity every store operation is scoped by.
type Owner struct {
	UserID       string
	Email        string
	Role         role.Role
	EnterpriseID string
}

// Metadata is the conversation level state touched by the workflow.
type Metadata struct {
	Escalated    bool           `json:"escalated"`
	EscalationID string         `json:"escalationId,omitempty"`
	Resolved     bool           `json:"resolved"`
	Context      map[string]any `json:"context,omitempty"`
}

// Message is one immutable transcript entry.
type Message struct {
	ID        string
	Role      MessageRole
	Content   string
	Timestamp time.Time
	Metadata  MessageMetadata
}

// Conversation is an ordered transcript between one user and the assistant.
type Conversation struct {
	ID           string
	OwnerID      string
	OwnerRole    role.Role
	EnterpriseID string
	Title        string
	Messages     []Message
	Metadata     Metadata
	IsActive     bool
	LastActivity time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MessageCount is derived from the transcript, never stored.
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}

// LastMessage returns the most recent message, if any.
func (c *Conversation) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// CanEscalate holds when the role may escalate and no ticket exists yet.
func (c *Conversation) CanEscalate(strategy role.Strategy) bool {
	return strategy.CanEscalate && !c.Metadata.Escalated
}

// OwnedBy reports whether owner is the user the conversation belongs to.
func (c *Conversation) OwnedBy(owner Owner) bool {
	return c.OwnerID != "" && c.OwnerID == owner.UserID
}

// Summary is the list view of a conversation.
type Summary struct {
	ID           string
	Title        string
	MessageCount int
	Preview      string
	LastActivity time.Time
	Escalated    bool
	Resolved     bool
	CanEscalate  bool
}

// Digest is what repositories return for list queries: the conversation header plus
// the facts needed to build a Summary without loading the whole transcript.
type Digest struct {
	Conversation Conversation
	MessageCount int
	LastMessage  *Message
}

// ListFilter scopes a repository list query.
type ListFilter struct {
	OwnerID string
	Role    *role.Role
	Offset  int
	Limit   int
}

// ListQuery is the caller facing pagination input.
type ListQuery struct {
	Role     string
	Page     int
	PageSize int
}

// Page is one page of summaries ordered by last activity, newest first.
type Page struct {
	Data     []Summary
	Page     int
	PageSize int
	Total    int64
}
