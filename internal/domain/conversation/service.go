package conversation

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/trackimpact/support-api/internal/domain/role"
	"github.com/trackimpact/support-api/internal/utils/idgen"
	"github.com/trackimpact/support-api/internal/utils/platformerrors"
)

// Service describes the conversation store operations, all scoped by the caller.
type Service interface {
	Create(ctx context.Context, owner Owner) (*Conversation, error)
	Start(ctx context.Context, owner Owner, attributes map[string]any, messages ...Message) (*Conversation, error)
	Get(ctx context.Context, owner Owner, id string) (*Conversation, error)
	Append(ctx context.Context, owner Owner, id string, messages ...Message) (*Conversation, error)
	ListByUser(ctx context.Context, owner Owner, query ListQuery) (*Page, error)
	Delete(ctx context.Context, owner Owner, id string) error
	MarkEscalated(ctx context.Context, owner Owner, id, ticketID string, confirmation Message) (*Conversation, error)
	SetResolved(ctx context.Context, owner Owner, id string, resolved bool) (*Conversation, error)
}

type service struct {
	repo Repository
	log  zerolog.Logger
	now  func() time.Time
}

// NewService wires the conversation store with its repository.
func NewService(repo Repository, log zerolog.Logger) Service {
	return &service{
		repo: repo,
		log:  log.With().Str("component", "conversation-service").Logger(),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *service) Create(ctx context.Context, owner Owner) (*Conversation, error) {
	return s.Start(ctx, owner, nil)
}

// Start creates a conversation already holding its first messages, in one write.
func (s *service) Start(ctx context.Context, owner Owner, attributes map[string]any, messages ...Message) (*Conversation, error) {
	if strings.TrimSpace(owner.UserID) == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeUnauthorized,
			"conversation owner is required", nil, "0d6f3c1b-2e8a-4f57-b0c9-8a1e4d7f6c25")
	}

	id, err := idgen.ConversationID()
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to generate conversation id")
	}

	now := s.now()
	prepared, err := s.prepare(ctx, messages, now)
	if err != nil {
		return nil, err
	}

	conv := &Conversation{
		ID:           id,
		OwnerID:      owner.UserID,
		OwnerRole:    owner.Role,
		EnterpriseID: owner.EnterpriseID,
		Title:        titleFrom(prepared),
		Messages:     prepared,
		Metadata:     Metadata{Context: attributes},
		IsActive:     true,
		LastActivity: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, conv); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to create conversation")
	}

	s.log.Debug().Str("conversation_id", conv.ID).Int("messages", len(prepared)).Msg("conversation created")
	return conv, nil
}

func (s *service) Get(ctx context.Context, owner Owner, id string) (*Conversation, error) {
	if strings.TrimSpace(id) == "" {
		return nil, platformerrors.NewValidationError(ctx, platformerrors.LayerDomain, "conversationId",
			"conversation id is required", "b8e21f47-93c5-4d0a-a6f2-51c7e9d03b84")
	}

	conv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !conv.IsActive {
		return nil, NotFoundError(ctx, id)
	}
	if !conv.OwnedBy(owner) {
		return nil, platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden,
			"conversation belongs to another user", nil, "5e9a0c72-1b3d-4f86-8e4a-c27d6b915f03",
			map[string]any{"conversation_id": id})
	}
	return conv, nil
}

func (s *service) Append(ctx context.Context, owner Owner, id string, messages ...Message) (*Conversation, error) {
	conv, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	prepared, err := s.prepare(ctx, messages, now)
	if err != nil {
		return nil, err
	}
	if len(prepared) == 0 {
		return conv, nil
	}

	if err := s.repo.AppendMessages(ctx, conv.ID, prepared, now); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to append messages")
	}

	conv.Messages = append(conv.Messages, prepared...)
	conv.LastActivity = now
	conv.UpdatedAt = now
	return conv, nil
}

func (s *service) ListByUser(ctx context.Context, owner Owner, query ListQuery) (*Page, error) {
	filter := ListFilter{OwnerID: owner.UserID}

	if raw := strings.TrimSpace(query.Role); raw != "" {
		r, ok := role.Parse(raw)
		if !ok {
			return nil, platformerrors.NewValidationError(ctx, platformerrors.LayerDomain, "role",
				"role must be admin or entreprise", "c41d7e2a-0f6b-4a93-b5e8-9d2c3f71a064")
		}
		filter.Role = &r
	}

	page := query.Page
	if page <= 0 {
		page = 1
	}
	size := query.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	// pages past the addressable range read as empty
	filter.Offset = math.MaxInt
	if page-1 <= math.MaxInt/size {
		filter.Offset = (page - 1) * size
	}
	filter.Limit = size

	digests, total, err := s.repo.ListByOwner(ctx, filter)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list conversations")
	}

	strategy, strategyErr := role.For(ctx, owner.Role)
	summaries := make([]Summary, 0, len(digests))
	for _, d := range digests {
		summary := Summary{
			ID:           d.Conversation.ID,
			Title:        d.Conversation.Title,
			MessageCount: d.MessageCount,
			LastActivity: d.Conversation.LastActivity,
			Escalated:    d.Conversation.Metadata.Escalated,
			Resolved:     d.Conversation.Metadata.Resolved,
		}
		if d.LastMessage != nil {
			summary.Preview = Truncate(d.LastMessage.Content, PreviewLength)
		}
		if strategyErr == nil {
			summary.CanEscalate = d.Conversation.CanEscalate(strategy)
		}
		summaries = append(summaries, summary)
	}

	return &Page{Data: summaries, Page: page, PageSize: size, Total: total}, nil
}

func (s *service) Delete(ctx context.Context, owner Owner, id string) error {
	if _, err := s.Get(ctx, owner, id); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, id, s.now()); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to delete conversation")
	}
	s.log.Info().Str("conversation_id", id).Msg("conversation deleted")
	return nil
}

func (s *service) MarkEscalated(ctx context.Context, owner Owner, id, ticketID string, confirmation Message) (*Conversation, error) {
	conv, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if conv.Metadata.Escalated {
		return nil, AlreadyEscalatedError(ctx, id)
	}

	now := s.now()
	prepared, err := s.prepare(ctx, []Message{confirmation}, now)
	if err != nil {
		return nil, err
	}

	if err := s.repo.MarkEscalated(ctx, id, ticketID, prepared[0], now); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to mark conversation escalated")
	}

	conv.Metadata.Escalated = true
	conv.Metadata.EscalationID = ticketID
	conv.Messages = append(conv.Messages, prepared[0])
	conv.LastActivity = now
	conv.UpdatedAt = now
	return conv, nil
}

// SetResolved lets support staff close or reopen any active conversation, escalated ones included.
func (s *service) SetResolved(ctx context.Context, owner Owner, id string, resolved bool) (*Conversation, error) {
	strategy, err := role.For(ctx, owner.Role)
	if err != nil {
		return nil, err
	}
	if !strategy.CanResolve {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden,
			"only administrators can change the resolution status", nil, "3a8d6f12-c04e-4b97-a2d5-7e1f9b3c6a80")
	}
	if strings.TrimSpace(id) == "" {
		return nil, platformerrors.NewValidationError(ctx, platformerrors.LayerDomain, "conversationId",
			"conversation id is required", "d71c0b5e-2f84-4a3d-96e1-8b4c7a2f0d59")
	}

	conv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !conv.IsActive {
		return nil, NotFoundError(ctx, id)
	}

	now := s.now()
	if err := s.repo.SetResolved(ctx, id, resolved, now); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to update conversation")
	}
	conv.Metadata.Resolved = resolved
	conv.UpdatedAt = now
	s.log.Info().Str("conversation_id", id).Bool("resolved", resolved).Msg("conversation resolution changed")
	return conv, nil
}

// prepare assigns ids and timestamps and checks the role of every message.
func (s *service) prepare(ctx context.Context, messages []Message, now time.Time) ([]Message, error) {
	prepared := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role != MessageRoleUser && m.Role != MessageRoleAssistant {
			return nil, platformerrors.NewValidationError(ctx, platformerrors.LayerDomain, "role",
				"message role must be user or assistant", "93b0e6d1-4c2f-4a78-8d15-e7f4a2c90b36")
		}
		if m.ID == "" {
			id, err := idgen.MessageID()
			if err != nil {
				return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to generate message id")
			}
			m.ID = id
		}
		if m.Timestamp.IsZero() {
			m.Timestamp = now
		}
		prepared = append(prepared, m)
	}
	return prepared, nil
}

func titleFrom(messages []Message) string {
	for _, m := range messages {
		if m.Role == MessageRoleUser {
			return Truncate(m.Content, TitleLength)
		}
	}
	return "Nouvelle conversation"
}

// NotFoundError is returned for unknown or inactive conversations.
func NotFoundError(ctx context.Context, id string) error {
	return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound,
		"conversation not found", nil, "7a2c5e18-6d9b-4f03-a1e7-3b8f0c4d2e96",
		map[string]any{"conversation_id": id})
}

// AlreadyEscalatedError is returned when a ticket already exists for the conversation.
func AlreadyEscalatedError(ctx context.Context, id string) error {
	return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict,
		"conversation has already been escalated", nil, "e0f4b3a9-8c61-4d27-9b5e-1a6d7c2f8e40",
		map[string]any{"conversation_id": id})
}
