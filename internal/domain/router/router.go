package router

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/trackimpact/support-api/internal/domain/conversation"
	"github.com/trackimpact/support-api/internal/domain/role"
	"github.com/trackimpact/support-api/internal/utils/platformerrors"
)

// Config tunes the router.
type Config struct {
	MaxMessageLength  int
	CompletionTimeout time.Duration
	HistoryWindow     int
}

// Reply is the outcome of one chat turn.
type Reply struct {
	ConversationID string
	Message        conversation.Message
	CanEscalate    bool
	Created        bool
}

// Service routes a user message to the knowledge base or the completion service and
// records the exchange.
type Service interface {
	Send(ctx context.Context, owner conversation.Owner, conversationID, message string) (*Reply, error)
}

type service struct {
	conversations conversation.Service
	kb            KnowledgeBase
	completion    CompletionService
	contexts      ContextProvider
	cfg           Config
	log           zerolog.Logger
}

// NewService wires the router with its collaborators.
func NewService(
	conversations conversation.Service,
	kb KnowledgeBase,
	completion CompletionService,
	contexts ContextProvider,
	cfg Config,
	log zerolog.Logger,
) Service {
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = 2000
	}
	if cfg.CompletionTimeout <= 0 {
		cfg.CompletionTimeout = 30 * time.Second
	}
	if cfg.HistoryWindow < 0 {
		cfg.HistoryWindow = 0
	}
	return &service{
		conversations: conversations,
		kb:            kb,
		completion:    completion,
		contexts:      contexts,
		cfg:           cfg,
		log:           log.With().Str("component", "message-router").Logger(),
	}
}

func (s *service) Send(ctx context.Context, owner conversation.Owner, conversationID, message string) (*Reply, error) {
	text := strings.TrimSpace(message)
	if text == "" {
		return nil, platformerrors.NewValidationError(ctx, platformerrors.LayerDomain, "message",
			"message must not be empty", "1f7a3c5e-8b20-4d96-a4e1-6c0d9b2f7e35")
	}
	if n := utf8.RuneCountInString(text); n > s.cfg.MaxMessageLength {
		return nil, platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"message is too long", nil, "9c4e2b7a-0d61-4f38-b5a3-2e8f1c6d0a74",
			map[string]any{"field": "message", "length": n, "max_length": s.cfg.MaxMessageLength})
	}

	strategy, err := role.For(ctx, owner.Role)
	if err != nil {
		return nil, err
	}

	var conv *conversation.Conversation
	if strings.TrimSpace(conversationID) != "" {
		conv, err = s.conversations.Get(ctx, owner, conversationID)
		if err != nil {
			return nil, err
		}
	}

	intent := Classify(text)
	assistant, enterprise, err := s.answer(ctx, owner, strategy, conv, text, intent)
	if err != nil {
		return nil, err
	}

	userMessage := conversation.Message{Role: conversation.MessageRoleUser, Content: text}

	created := conv == nil
	if created {
		conv, err = s.conversations.Start(ctx, owner, enterprise.Attributes, userMessage, assistant)
	} else {
		conv, err = s.conversations.Append(ctx, owner, conv.ID, userMessage, assistant)
	}
	if err != nil {
		return nil, err
	}

	last, _ := conv.LastMessage()
	s.log.Debug().
		Str("conversation_id", conv.ID).
		Str("intent", string(intent)).
		Str("source", conversation.MetadataKind(last.Metadata)).
		Msg("message routed")

	return &Reply{
		ConversationID: conv.ID,
		Message:        last,
		CanEscalate:    conv.CanEscalate(strategy),
		Created:        created,
	}, nil
}

// answer produces the assistant message without touching the store.
func (s *service) answer(
	ctx context.Context,
	owner conversation.Owner,
	strategy role.Strategy,
	conv *conversation.Conversation,
	text string,
	intent Intent,
) (conversation.Message, EnterpriseContext, error) {
	if s.kb != nil {
		if hit, ok := s.kb.Lookup(ctx, text); ok {
			if hit.Intent == "" {
				hit.Intent = intent
			}
			return conversation.Message{
				Role:     conversation.MessageRoleAssistant,
				Content:  hit.Text,
				Metadata: conversation.KnowledgeBaseHit{Intent: string(hit.Intent), EntryID: hit.EntryID},
			}, EnterpriseContext{}, nil
		}
	}

	enterprise := s.enterpriseContext(ctx, owner)
	prompt := Prompt{
		System:  systemPrompt(strategy, enterprise),
		History: s.history(conv),
		Message: text,
	}

	completionCtx, cancel := context.WithTimeout(ctx, s.cfg.CompletionTimeout)
	defer cancel()

	content, err := s.completion.Complete(completionCtx, prompt)
	if err != nil {
		return conversation.Message{}, enterprise, platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain,
			platformerrors.ErrorTypeServiceUnavailable, "the assistant is temporarily unavailable, please retry", err,
			"3a8d6f0c-5e17-4b42-9c7e-0f2b4d8a6e13", map[string]any{"intent": string(intent)})
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return conversation.Message{}, enterprise, platformerrors.NewError(ctx, platformerrors.LayerDomain,
			platformerrors.ErrorTypeServiceUnavailable, "the assistant returned an empty reply, please retry", nil,
			"c7e0a2d4-6f93-4b15-8d2a-5b1e9c3f7a60")
	}

	return conversation.Message{
		Role:    conversation.MessageRoleAssistant,
		Content: content,
		Metadata: conversation.DatabaseContextUsed{
			HasDatabaseAccess: enterprise.HasDatabaseAccess,
			Intent:            string(intent),
		},
	}, enterprise, nil
}

func (s *service) enterpriseContext(ctx context.Context, owner conversation.Owner) EnterpriseContext {
	if s.contexts == nil {
		return EnterpriseContext{}
	}
	enterprise, err := s.contexts.EnterpriseContext(ctx, owner)
	if err != nil {
		// replies degrade to no database context rather than failing
		s.log.Warn().Err(err).Str("enterprise_id", owner.EnterpriseID).Msg("enterprise context unavailable")
		return EnterpriseContext{}
	}
	return enterprise
}

func (s *service) history(conv *conversation.Conversation) []Turn {
	if conv == nil || s.cfg.HistoryWindow == 0 {
		return nil
	}
	messages := conv.Messages
	if len(messages) > s.cfg.HistoryWindow {
		messages = messages[len(messages)-s.cfg.HistoryWindow:]
	}
	turns := make([]Turn, 0, len(messages))
	for _, m := range messages {
		turns = append(turns, Turn{Role: m.Role, Content: m.Content})
	}
	return turns
}

func systemPrompt(strategy role.Strategy, enterprise EnterpriseContext) string {
	var b strings.Builder
	b.WriteString("Tu es l'assistant de support de la plateforme TrackImpact. ")
	b.WriteString("Réponds en français, en quelques phrases, sans inventer de données.\n")
	b.WriteString(strategy.PromptContext)
	if enterprise.HasDatabaseAccess && enterprise.Summary != "" {
		b.WriteString("\n\nContexte (lecture seule) :\n")
		b.WriteString(enterprise.Summary)
	}
	return b.String()
}
