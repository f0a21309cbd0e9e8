package router_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackimpact/support-api/internal/domain/conversation"
	"github.com/trackimpact/support-api/internal/domain/role"
	"github.com/trackimpact/support-api/internal/domain/router"
	repo "github.com/trackimpact/support-api/internal/infrastructure/repository/conversation"
	"github.com/trackimpact/support-api/internal/utils/platformerrors"
)

var (
	entrepriseUser = conversation.Owner{UserID: "user-1", Role: role.Entreprise, EnterpriseID: "ent_demo"}
	adminUser      = conversation.Owner{UserID: "admin-1", Role: role.Admin}
)

type kbFunc func(ctx context.Context, message string) (router.Answer, bool)

func (f kbFunc) Lookup(ctx context.Context, message string) (router.Answer, bool) {
	return f(ctx, message)
}

type completionFunc func(ctx context.Context, prompt router.Prompt) (string, error)

func (f completionFunc) Complete(ctx context.Context, prompt router.Prompt) (string, error) {
	return f(ctx, prompt)
}

type contextFunc func(ctx context.Context, owner conversation.Owner) (router.EnterpriseContext, error)

func (f contextFunc) EnterpriseContext(ctx context.Context, owner conversation.Owner) (router.EnterpriseContext, error) {
	return f(ctx, owner)
}

func documentsKB() router.KnowledgeBase {
	return kbFunc(func(_ context.Context, message string) (router.Answer, bool) {
		if strings.Contains(router.Normalize(message), "mettre a jour mes documents") {
			return router.Answer{EntryID: "documents-update", Intent: router.IntentDocuments, Text: "Rendez-vous dans l'onglet Documents."}, true
		}
		return router.Answer{}, false
	})
}

type fixture struct {
	conversations conversation.Service
	router        router.Service
	prompts       []router.Prompt
}

func newFixture(t *testing.T, completion router.CompletionService, contexts router.ContextProvider) *fixture {
	t.Helper()
	f := &fixture{conversations: conversation.NewService(repo.NewInMemoryRepository(), zerolog.Nop())}
	if completion == nil {
		completion = completionFunc(func(_ context.Context, prompt router.Prompt) (string, error) {
			f.prompts = append(f.prompts, prompt)
			return "Voici la réponse de l'assistant.", nil
		})
	}
	f.router = router.NewService(f.conversations, documentsKB(), completion, contexts,
		router.Config{MaxMessageLength: 50, HistoryWindow: 2}, zerolog.Nop())
	return f
}

func TestSendKnowledgeBaseHit(t *testing.T) {
	f := newFixture(t, nil, nil)

	reply, err := f.router.Send(context.Background(), entrepriseUser, "", "Comment mettre à jour mes documents?")
	require.NoError(t, err)

	assert.True(t, reply.Created)
	assert.True(t, reply.CanEscalate)
	assert.Equal(t, conversation.MessageRoleAssistant, reply.Message.Role)
	assert.Equal(t, conversation.KnowledgeBaseHit{Intent: "documents", EntryID: "documents-update"}, reply.Message.Metadata)
	assert.Empty(t, f.prompts, "knowledge base hits never reach the completion service")

	conv, err := f.conversations.Get(context.Background(), entrepriseUser, reply.ConversationID)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, conversation.MessageRoleUser, conv.Messages[0].Role)
	assert.Nil(t, conv.Messages[0].Metadata)
	assert.Equal(t, conversation.MessageRoleAssistant, conv.Messages[1].Role)
}

func TestSendFallsBackToCompletion(t *testing.T) {
	contexts := contextFunc(func(_ context.Context, owner conversation.Owner) (router.EnterpriseContext, error) {
		return router.EnterpriseContext{
			HasDatabaseAccess: true,
			Attributes:        map[string]any{"enterprise_name": "Demo SAS"},
			Summary:           "Entreprise: Demo SAS",
		}, nil
	})
	f := newFixture(t, nil, contexts)
	ctx := context.Background()

	reply, err := f.router.Send(ctx, entrepriseUser, "", "Où trouver mon rapport annuel ?")
	require.NoError(t, err)

	assert.Equal(t, conversation.DatabaseContextUsed{HasDatabaseAccess: true, Intent: "report"}, reply.Message.Metadata)
	require.Len(t, f.prompts, 1)
	assert.Contains(t, f.prompts[0].System, "Demo SAS")
	assert.Empty(t, f.prompts[0].History)

	conv, err := f.conversations.Get(ctx, entrepriseUser, reply.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "Demo SAS", conv.Metadata.Context["enterprise_name"])
}

func TestSendAppendsToExistingConversationWithHistory(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	first, err := f.router.Send(ctx, entrepriseUser, "", "Bonjour")
	require.NoError(t, err)

	second, err := f.router.Send(ctx, entrepriseUser, first.ConversationID, "Et mes KPI ?")
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.ConversationID, second.ConversationID)

	require.Len(t, f.prompts, 2)
	require.Len(t, f.prompts[1].History, 2)
	assert.Equal(t, "Bonjour", f.prompts[1].History[0].Content)

	conv, err := f.conversations.Get(ctx, entrepriseUser, first.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, 4, conv.MessageCount())
}

func TestSendRejectsInvalidMessages(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	for name, message := range map[string]string{
		"empty":    "   ",
		"too long":  strings.Repeat("é", 51),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.router.Send(ctx, entrepriseUser, "", message)
			require.Error(t, err)
			assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
		})
	}

	page, err := f.conversations.ListByUser(ctx, entrepriseUser, conversation.ListQuery{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.Empty(t, f.prompts)
}

func TestSendCompletionFailurePersistsNothing(t *testing.T) {
	failing := completionFunc(func(context.Context, router.Prompt) (string, error) {
		return "", errors.New("upstream down")
	})
	f := newFixture(t, failing, nil)
	ctx := context.Background()

	_, err := f.router.Send(ctx, entrepriseUser, "", "Question sans réponse")
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeServiceUnavailable))

	page, err := f.conversations.ListByUser(ctx, entrepriseUser, conversation.ListQuery{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestSendEmptyCompletionIsUnavailable(t *testing.T) {
	blank := completionFunc(func(context.Context, router.Prompt) (string, error) { return "  ", nil })
	f := newFixture(t, blank, nil)

	existing, err := f.conversations.Create(context.Background(), entrepriseUser)
	require.NoError(t, err)

	_, err = f.router.Send(context.Background(), entrepriseUser, existing.ID, "Une question")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeServiceUnavailable))

	conv, err := f.conversations.Get(context.Background(), entrepriseUser, existing.ID)
	require.NoError(t, err)
	assert.Empty(t, conv.Messages)
}

func TestSendContextFailureDegrades(t *testing.T) {
	broken := contextFunc(func(context.Context, conversation.Owner) (router.EnterpriseContext, error) {
		return router.EnterpriseContext{}, errors.New("db unavailable")
	})
	f := newFixture(t, nil, broken)

	reply, err := f.router.Send(context.Background(), entrepriseUser, "", "Une question")
	require.NoError(t, err)
	assert.Equal(t, conversation.DatabaseContextUsed{HasDatabaseAccess: false, Intent: "general"}, reply.Message.Metadata)
}

func TestSendAdminCannotEscalate(t *testing.T) {
	f := newFixture(t, nil, nil)

	reply, err := f.router.Send(context.Background(), adminUser, "", "Comment mettre à jour mes documents?")
	require.NoError(t, err)
	assert.False(t, reply.CanEscalate)
}

func TestSendUnknownConversation(t *testing.T) {
	f := newFixture(t, nil, nil)

	_, err := f.router.Send(context.Background(), entrepriseUser, "conv_missing", "Bonjour")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
	assert.Empty(t, f.prompts)
}
