package conversation

import (
	"context"
	"sort"
	"sync"
	"time"

	domain "github.com/trackimpact/support-api/internal/domain/conversation"
)

// InMemoryRepository is a thread-safe repository used by tests and STORAGE_DRIVER=memory.
type InMemoryRepository struct {
	mu      sync.RWMutex
	entries map[string]*domain.Conversation
}

// NewInMemoryRepository creates an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{entries: make(map[string]*domain.Conversation)}
}

func (r *InMemoryRepository) Create(_ context.Context, conv *domain.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[conv.ID] = clone(conv)
	return nil
}

func (r *InMemoryRepository) FindByID(ctx context.Context, id string) (*domain.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conv, ok := r.entries[id]
	if !ok || !conv.IsActive {
		return nil, domain.NotFoundError(ctx, id)
	}
	return clone(conv), nil
}

func (r *InMemoryRepository) AppendMessages(ctx context.Context, id string, messages []domain.Message, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, ok := r.entries[id]
	if !ok || !conv.IsActive {
		return domain.NotFoundError(ctx, id)
	}
	conv.Messages = append(conv.Messages, messages...)
	conv.LastActivity = at
	conv.UpdatedAt = at
	return nil
}

func (r *InMemoryRepository) ListByOwner(_ context.Context, filter domain.ListFilter) ([]domain.Digest, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*domain.Conversation, 0)
	for _, conv := range r.entries {
		if !conv.IsActive || conv.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Role != nil && conv.OwnerRole != *filter.Role {
			continue
		}
		matched = append(matched, conv)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].LastActivity.Equal(matched[j].LastActivity) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].LastActivity.After(matched[j].LastActivity)
	})

	total := int64(len(matched))
	if filter.Offset < 0 || filter.Offset >= len(matched) {
		return []domain.Digest{}, total, nil
	}
	end := len(matched)
	if filter.Limit > 0 && filter.Limit < end-filter.Offset {
		end = filter.Offset + filter.Limit
	}

	digests := make([]domain.Digest, 0, end-filter.Offset)
	for _, conv := range matched[filter.Offset:end] {
		header := *conv
		header.Messages = nil
		digest := domain.Digest{Conversation: header, MessageCount: len(conv.Messages)}
		if last, ok := conv.LastMessage(); ok {
			digest.LastMessage = &last
		}
		digests = append(digests, digest)
	}
	return digests, total, nil
}

func (r *InMemoryRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, ok := r.entries[id]
	if !ok || !conv.IsActive {
		return domain.NotFoundError(ctx, id)
	}
	conv.IsActive = false
	conv.UpdatedAt = at
	return nil
}

func (r *InMemoryRepository) MarkEscalated(ctx context.Context, id, ticketID string, confirmation domain.Message, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, ok := r.entries[id]
	if !ok || !conv.IsActive {
		return domain.NotFoundError(ctx, id)
	}
	if conv.Metadata.Escalated {
		return domain.AlreadyEscalatedError(ctx, id)
	}
	conv.Metadata.Escalated = true
	conv.Metadata.EscalationID = ticketID
	conv.Messages = append(conv.Messages, confirmation)
	conv.LastActivity = at
	conv.UpdatedAt = at
	return nil
}

func (r *InMemoryRepository) SetResolved(ctx context.Context, id string, resolved bool, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, ok := r.entries[id]
	if !ok || !conv.IsActive {
		return domain.NotFoundError(ctx, id)
	}
	conv.Metadata.Resolved = resolved
	conv.UpdatedAt = at
	return nil
}

func clone(conv *domain.Conversation) *domain.Conversation {
	out := *conv
	out.Messages = append([]domain.Message(nil), conv.Messages...)
	if conv.Metadata.Context != nil {
		out.Metadata.Context = make(map[string]any, len(conv.Metadata.Context))
		for k, v := range conv.Metadata.Context {
			out.Metadata.Context[k] = v
		}
	}
	return &out
}

var _ domain.Repository = (*InMemoryRepository)(nil)
