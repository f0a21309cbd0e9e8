package ticket

import (
	"context"
	"sync"
	"time"

	"github.com/trackimpact/support-api/internal/utils/platformerrors"
)

const (
	StatusSubmitted = "submitted"

	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// Record is a stored support ticket.
type Record struct {
	ID             string
	ConversationID string
	RequesterID    string
	RequesterEmail string
	EnterpriseID   string
	Subject        string
	Details        string
	Transcript     string
	Status         string
	Priority       string
	ExternalRef    string
	CreatedAt      time.Time
}

// Store persists ticket records. Save fails with a conflict when the
// conversation already has a ticket.
type Store interface {
	Save(ctx context.Context, record *Record) error
	FindByConversation(ctx context.Context, conversationID string) (*Record, error)
	SetExternalRef(ctx context.Context, id, ref string) error
}

// InMemoryStore keeps tickets in process memory.
type InMemoryStore struct {
	mu             sync.RWMutex
	byConversation map[string]*Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byConversation: make(map[string]*Record)}
}

func (s *InMemoryStore) Save(ctx context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byConversation[record.ConversationID]; exists {
		return duplicateError(ctx, record.ConversationID, nil)
	}
	stored := *record
	s.byConversation[record.ConversationID] = &stored
	return nil
}

func (s *InMemoryStore) FindByConversation(ctx context.Context, conversationID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.byConversation[conversationID]
	if !ok {
		return nil, notFoundError(ctx, conversationID)
	}
	found := *record
	return &found, nil
}

func (s *InMemoryStore) SetExternalRef(ctx context.Context, id, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range s.byConversation {
		if record.ID == id {
			record.ExternalRef = ref
			return nil
		}
	}
	return notFoundError(ctx, id)
}

func duplicateError(ctx context.Context, conversationID string, err error) error {
	return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeConflict,
		"conversation already has a ticket", err, "5b0e8d21-7c4a-4f93-a6e1-2d9f3b7c0a58",
		map[string]any{"conversation_id": conversationID})
}

func notFoundError(ctx context.Context, conversationID string) error {
	return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
		"ticket not found", nil, "e3a7c190-4b5d-4e28-8f6a-9c1d0b2e7f34",
		map[string]any{"conversation_id": conversationID})
}

var _ Store = (*InMemoryStore)(nil)
