package supportclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var marie = Identity{UserID: "usr_marie", Email: "marie@greenco.fr", Role: "entreprise", EnterpriseID: "ent_greenco"}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestSendCommitsReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/conversations/messages", r.URL.Path)
		assert.Equal(t, "usr_marie", r.Header.Get("X-User-ID"))
		assert.Equal(t, "entreprise", r.Header.Get("X-User-Role"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Comment mettre à jour mes documents?", body["message"])

		writeJSON(w, http.StatusOK, map[string]any{
			"conversationId": "conv_1",
			"canEscalate":    true,
			"message": map[string]any{
				"id":       "msg_2",
				"role":     "assistant",
				"content":  "Ouvrez l'onglet Documents.",
				"metadata": map[string]any{"fromKnowledgeBase": true},
			},
		})
	}))
	defer srv.Close()

	client := New(srv.URL, WithIdentity(marie))
	transcript := NewTranscript("")

	reply, err := client.Send(context.Background(), transcript, "Comment mettre à jour mes documents?")
	require.NoError(t, err)
	assert.True(t, reply.CanEscalate)
	assert.True(t, reply.Message.FromKnowledgeBase())

	assert.Equal(t, "conv_1", transcript.ConversationID())
	messages := transcript.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "user", messages[0].Role)
	assert.Empty(t, messages[0].ID)
	assert.Equal(t, "assistant", messages[1].Role)
}

func TestSendRollsBackOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/conversations/conv_1/messages", r.URL.Path)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"code":    "6b1e9d3a",
			"error":   "service_unavailable_error",
			"message": "Le service est momentanément indisponible.",
		})
	}))
	defer srv.Close()

	client := New(srv.URL, WithIdentity(marie))
	transcript := TranscriptFrom(&Conversation{ID: "conv_1", Messages: []Message{
		{ID: "msg_1", Role: "user", Content: "Bonjour"},
		{ID: "msg_2", Role: "assistant", Content: "Bonjour, comment puis-je vous aider ?"},
	}})

	_, err := client.Send(context.Background(), transcript, "Mon rapport ne se génère pas")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.Equal(t, "service_unavailable_error", apiErr.Type)

	assert.Len(t, transcript.Messages(), 2)

	// the transcript accepts a new turn after the rollback
	pending, err := transcript.TentativeAppend("Nouvel essai")
	require.NoError(t, err)
	pending.Rollback()
}

func TestRateLimitedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "1800")
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":      "rate_limited",
			"message":    "Trop de requêtes.",
			"retryAfter": 1800,
		})
	}))
	defer srv.Close()

	_, err := New(srv.URL, WithIdentity(marie)).Escalate(context.Background(), "conv_1", "Le tableau de bord ne charge plus.")
	retryAfter, limited := IsRateLimited(err)
	assert.True(t, limited)
	assert.Equal(t, 1800, retryAfter)
}

func TestEscalateValidatesDetailsLocally(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusCreated, map[string]any{"ticketId": "tkt_1", "status": "submitted"})
	}))
	defer srv.Close()

	client := New(srv.URL, WithIdentity(marie))

	_, err := client.Escalate(context.Background(), "conv_1", "court")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "details", apiErr.Field)
	assert.Zero(t, apiErr.Status)
	assert.Zero(t, atomic.LoadInt32(&calls))

	out, err := client.Escalate(context.Background(), "conv_1", "Mon document ne s'upload pas depuis 3 jours, erreur 500.")
	require.NoError(t, err)
	assert.Equal(t, "tkt_1", out.TicketID)
	assert.Equal(t, "submitted", out.Status)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestListGetDelete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v1/conversations":
			assert.Equal(t, "2", r.URL.Query().Get("page"))
			assert.Equal(t, "5", r.URL.Query().Get("limit"))
			writeJSON(w, http.StatusOK, map[string]any{
				"data":  []map[string]any{{"id": "conv_1", "title": "Documents", "messageCount": 2}},
				"page":  2,
				"limit": 5,
				"total": 6,
			})
		case r.Method == http.MethodGet && r.URL.Path == "/v1/conversations/conv_1":
			writeJSON(w, http.StatusOK, map[string]any{
				"id":          "conv_1",
				"canEscalate": false,
				"metadata":    map[string]any{"escalated": true, "escalationId": "tkt_1", "resolved": false},
			})
		case r.Method == http.MethodDelete:
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "not_found_error", "message": "Conversation introuvable"})
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	client := New(srv.URL, WithToken("token-1"))

	list, err := client.List(context.Background(), 2, 5)
	require.NoError(t, err)
	assert.EqualValues(t, 6, list.Total)
	require.Len(t, list.Data, 1)
	assert.Equal(t, 2, list.Data[0].MessageCount)

	conv, err := client.Get(context.Background(), "conv_1")
	require.NoError(t, err)
	assert.True(t, conv.Metadata.Escalated)
	assert.Equal(t, "tkt_1", conv.Metadata.EscalationID)

	err = client.Delete(context.Background(), "conv_1")
	assert.True(t, IsNotFound(err))
}

func TestTranscriptTwoPhase(t *testing.T) {
	transcript := NewTranscript("conv_1")

	_, err := transcript.TentativeAppend("")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	pending, err := transcript.TentativeAppend("Bonjour")
	require.NoError(t, err)
	assert.Len(t, transcript.Messages(), 1)

	_, err = transcript.TentativeAppend("Encore")
	assert.ErrorIs(t, err, ErrTurnInFlight)

	require.NoError(t, pending.Commit(&Reply{ConversationID: "conv_1", Message: Message{Role: "assistant", Content: "Bonjour !"}}))
	assert.ErrorIs(t, pending.Commit(&Reply{}), ErrSettled)
	pending.Rollback()
	assert.Len(t, transcript.Messages(), 2)

	second, err := transcript.TentativeAppend("Merci")
	require.NoError(t, err)
	second.Rollback()
	assert.Len(t, transcript.Messages(), 2)
}
