package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackimpact/support-api/internal/config"
	"github.com/trackimpact/support-api/internal/domain/conversation"
	"github.com/trackimpact/support-api/internal/domain/escalation"
	"github.com/trackimpact/support-api/internal/domain/ratelimit"
	"github.com/trackimpact/support-api/internal/domain/router"
	"github.com/trackimpact/support-api/internal/infrastructure/auth"
	"github.com/trackimpact/support-api/internal/infrastructure/enterprisecontext"
	"github.com/trackimpact/support-api/internal/infrastructure/knowledgebase"
	"github.com/trackimpact/support-api/internal/infrastructure/notifier"
	convrepo "github.com/trackimpact/support-api/internal/infrastructure/repository/conversation"
	"github.com/trackimpact/support-api/internal/infrastructure/ticket"
	"github.com/trackimpact/support-api/internal/interfaces/httpserver"
	"github.com/trackimpact/support-api/internal/interfaces/httpserver/handlers"
	"github.com/trackimpact/support-api/internal/interfaces/httpserver/middlewares"
	v1 "github.com/trackimpact/support-api/internal/interfaces/httpserver/routes/v1"
	"github.com/trackimpact/support-api/pkg/telemetry"
)

type completionFunc func(ctx context.Context, prompt router.Prompt) (string, error)

func (f completionFunc) Complete(ctx context.Context, prompt router.Prompt) (string, error) {
	return f(ctx, prompt)
}

type identity struct {
	id, email, role, enterprise string
}

var (
	marie = identity{id: "usr_marie", email: "marie@greenco.fr", role: "entreprise", enterprise: "ent_greenco"}
	paul  = identity{id: "usr_paul", email: "paul@greenco.fr", role: "entreprise", enterprise: "ent_greenco"}
	admin = identity{id: "usr_admin", email: "admin@trackimpact.fr", role: "admin"}
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zerolog.Nop()

	conversations := conversation.NewService(convrepo.NewInMemoryRepository(), log)

	kb, err := knowledgebase.Load("", log)
	require.NoError(t, err)

	contexts, err := enterprisecontext.NewProvider(enterprisecontext.NewStaticSource(enterprisecontext.Profile{
		ID:              "ent_greenco",
		Name:            "GreenCo",
		Sector:          "Industrie",
		ComplianceScore: 72.5,
	}), 16, time.Minute, log)
	require.NoError(t, err)

	completion := completionFunc(func(context.Context, router.Prompt) (string, error) {
		return "Voici ce que je peux vous dire sur votre tableau de bord.", nil
	})
	chat := router.NewService(conversations, kb, completion, contexts, router.Config{
		MaxMessageLength:  2000,
		CompletionTimeout: 5 * time.Second,
		HistoryWindow:     10,
	}, log)

	sanitizer := telemetry.NewSanitizer(telemetry.ParsePIILevel("hashed"), "test-salt")
	tickets := ticket.NewSystem(ticket.NewInMemoryStore(), nil, log)
	gate := escalation.NewGate(conversations, tickets, notifier.NewLogNotifier(log, sanitizer), escalation.NewLocalLocker(), log)

	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), log)
	routes := v1.NewRoutes(handlers.NewProvider(handlers.NewConversationHandler(conversations, chat, gate)), v1.Limits{
		Chat:       middlewares.RateLimitMiddleware(limiter, middlewares.ChatWindow, log),
		Escalation: middlewares.RateLimitMiddleware(limiter, middlewares.FixedWindow("escalation", 3, time.Hour), log),
	})

	cfg := &config.Config{ServiceName: "support-api-test", Environment: "test", ShutdownTimeout: time.Second}
	return httpserver.NewHTTPServer(cfg, log, routes, nil).Handler()
}

func do(t *testing.T, h http.Handler, who *identity, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if who != nil {
		req.Header.Set(auth.HeaderUserID, who.id)
		req.Header.Set(auth.HeaderUserEmail, who.email)
		req.Header.Set(auth.HeaderUserRole, who.role)
		req.Header.Set(auth.HeaderEnterpriseID, who.enterprise)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	out := map[string]any{}
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func startConversation(t *testing.T, h http.Handler, who *identity, message string) string {
	t.Helper()
	w, body := do(t, h, who, http.MethodPost, "/v1/conversations/messages", map[string]string{"message": message})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	id, _ := body["conversationId"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestKnowledgeBaseAnswerOverHTTP(t *testing.T) {
	h := newTestServer(t)

	w, body := do(t, h, &marie, http.MethodPost, "/v1/conversations/messages", map[string]string{
		"message": "Comment mettre à jour mes documents?",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.NotEmpty(t, body["conversationId"])
	assert.Equal(t, true, body["canEscalate"])

	message, ok := body["message"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "assistant", message["role"])
	assert.NotEmpty(t, message["content"])
	metadata, ok := message["metadata"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, metadata["fromKnowledgeBase"])
}

func TestCompletionAnswerCarriesDatabaseContext(t *testing.T) {
	h := newTestServer(t)

	id := startConversation(t, h, &marie, "Comment mettre à jour mes documents?")
	w, body := do(t, h, &marie, http.MethodPost, "/v1/conversations/"+id+"/messages", map[string]string{
		"message": "Quel est mon score de conformité actuel ?",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, id, body["conversationId"])

	message := body["message"].(map[string]any)
	metadata, ok := message["metadata"].(map[string]any)
	require.True(t, ok)
	dbContext, ok := metadata["dbContext"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, dbContext["hasDatabaseAccess"])

	w, body = do(t, h, &marie, http.MethodGet, "/v1/conversations/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["messages"], 4)
	assert.EqualValues(t, 4, body["messageCount"])
}

func TestEscalationFlowOverHTTP(t *testing.T) {
	h := newTestServer(t)
	id := startConversation(t, h, &marie, "Comment mettre à jour mes documents?")

	w, body := do(t, h, &marie, http.MethodPost, "/v1/conversations/"+id+"/escalate", map[string]string{
		"details": "Mon document ne s'upload pas depuis 3 jours, erreur 500.",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotEmpty(t, body["ticketId"])
	assert.Equal(t, "submitted", body["status"])

	w, conv := do(t, h, &marie, http.MethodGet, "/v1/conversations/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, conv["canEscalate"])

	metadata := conv["metadata"].(map[string]any)
	assert.Equal(t, true, metadata["escalated"])
	assert.Equal(t, body["ticketId"], metadata["escalationId"])

	messages := conv["messages"].([]any)
	last := messages[len(messages)-1].(map[string]any)
	assert.Equal(t, "assistant", last["role"])
	lastMeta := last["metadata"].(map[string]any)
	assert.Equal(t, "escalation_confirmation", lastMeta["type"])
	assert.Equal(t, body["ticketId"], lastMeta["ticketId"])

	w, again := do(t, h, &marie, http.MethodPost, "/v1/conversations/"+id+"/escalate", map[string]string{
		"details": "Toujours bloqué, merci de regarder rapidement.",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "conflict_error", again["error"])
}

func TestEscalationRejectsShortDetails(t *testing.T) {
	h := newTestServer(t)
	id := startConversation(t, h, &marie, "Comment mettre à jour mes documents?")

	w, body := do(t, h, &marie, http.MethodPost, "/v1/conversations/"+id+"/escalate", map[string]string{
		"details": "court",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", body["error"])
	assert.Equal(t, "details", body["field"])

	_, conv := do(t, h, &marie, http.MethodGet, "/v1/conversations/"+id, nil)
	assert.Equal(t, true, conv["canEscalate"])
}

func TestEscalationRateLimit(t *testing.T) {
	h := newTestServer(t)

	for i := 0; i < 3; i++ {
		id := startConversation(t, h, &marie, fmt.Sprintf("Question numéro %d sur mon tableau de bord", i))
		w, _ := do(t, h, &marie, http.MethodPost, "/v1/conversations/"+id+"/escalate", map[string]string{
			"details": "Le tableau de bord ne charge plus depuis ce matin.",
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	id := startConversation(t, h, &marie, "Encore une question")
	w, body := do(t, h, &marie, http.MethodPost, "/v1/conversations/"+id+"/escalate", map[string]string{
		"details": "Le tableau de bord ne charge plus depuis ce matin.",
	})
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	retryAfter, ok := body["retryAfter"].(float64)
	require.True(t, ok)
	assert.Greater(t, retryAfter, float64(0))
	assert.LessOrEqual(t, retryAfter, float64(3600))

	// the rejected attempt left the conversation untouched
	_, conv := do(t, h, &marie, http.MethodGet, "/v1/conversations/"+id, nil)
	assert.Equal(t, true, conv["canEscalate"])

	// quotas are per caller
	other := startConversation(t, h, &paul, "Comment mettre à jour mes documents?")
	w, _ = do(t, h, &paul, http.MethodPost, "/v1/conversations/"+other+"/escalate", map[string]string{
		"details": "Le tableau de bord ne charge plus depuis ce matin.",
	})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestDeleteTwice(t *testing.T) {
	h := newTestServer(t)
	id := startConversation(t, h, &marie, "Comment mettre à jour mes documents?")

	w, body := do(t, h, &marie, http.MethodDelete, "/v1/conversations/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, body["id"])
	assert.Equal(t, true, body["deleted"])

	w, body = do(t, h, &marie, http.MethodDelete, "/v1/conversations/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found_error", body["error"])

	w, _ = do(t, h, &marie, http.MethodGet, "/v1/conversations/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConversationsAreScopedToOwner(t *testing.T) {
	h := newTestServer(t)
	id := startConversation(t, h, &marie, "Comment mettre à jour mes documents?")

	w, body := do(t, h, &paul, http.MethodGet, "/v1/conversations/"+id, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden_error", body["error"])

	w, _ = do(t, h, &paul, http.MethodPost, "/v1/conversations/"+id+"/escalate", map[string]string{
		"details": "Je veux escalader la conversation de Marie.",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = do(t, h, &paul, http.MethodDelete, "/v1/conversations/"+id, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = do(t, h, &marie, http.MethodGet, "/v1/conversations/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListConversationsPaginates(t *testing.T) {
	h := newTestServer(t)
	first := startConversation(t, h, &marie, "Comment mettre à jour mes documents?")
	second := startConversation(t, h, &marie, "Où trouver mes indicateurs ?")

	w, body := do(t, h, &marie, http.MethodGet, "/v1/conversations?page=1&limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 2, body["total"])
	assert.EqualValues(t, 1, body["page"])
	assert.EqualValues(t, 1, body["limit"])

	data := body["data"].([]any)
	require.Len(t, data, 1)
	newest := data[0].(map[string]any)
	assert.Equal(t, second, newest["id"])
	assert.EqualValues(t, 2, newest["messageCount"])

	_, body = do(t, h, &marie, http.MethodGet, "/v1/conversations?page=2&limit=1", nil)
	data = body["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, first, data[0].(map[string]any)["id"])

	w, body = do(t, h, &marie, http.MethodGet, "/v1/conversations?limit=500", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", body["error"])

	w, body = do(t, h, &marie, http.MethodGet, "/v1/conversations?page=100000&limit=100", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, body["data"])
	assert.EqualValues(t, 2, body["total"])

	w, body = do(t, h, &marie, http.MethodGet, "/v1/conversations?page=9223372036854775807", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", body["error"])
}

func TestResolveIsAdminOnly(t *testing.T) {
	h := newTestServer(t)
	id := startConversation(t, h, &marie, "Comment mettre à jour mes documents?")

	w, _ := do(t, h, &marie, http.MethodPatch, "/v1/conversations/"+id, map[string]bool{"resolved": true})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body := do(t, h, &admin, http.MethodPatch, "/v1/conversations/"+id, map[string]bool{"resolved": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, body["metadata"].(map[string]any)["resolved"])

	w, _ = do(t, h, &admin, http.MethodPatch, "/v1/conversations/"+id, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMissingIdentity(t *testing.T) {
	h := newTestServer(t)

	w, body := do(t, h, nil, http.MethodGet, "/v1/conversations", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized_error", body["error"])

	unknown := identity{id: "usr_x", email: "x@greenco.fr", role: "superuser"}
	w, _ = do(t, h, &unknown, http.MethodGet, "/v1/conversations", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestInvalidMessage(t *testing.T) {
	h := newTestServer(t)

	w, body := do(t, h, &marie, http.MethodPost, "/v1/conversations/messages", map[string]string{"message": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", body["error"])
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
	assert.Equal(t, w.Header().Get("X-Request-Id"), body["request_id"])
}

func TestHealthEndpoints(t *testing.T) {
	h := newTestServer(t)

	w, _ := do(t, h, nil, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, h, nil, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
