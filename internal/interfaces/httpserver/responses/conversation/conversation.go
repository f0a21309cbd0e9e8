package conversation

import (
	"time"

	domain "github.com/trackimpact/support-api/internal/domain/conversation"
	"github.com/trackimpact/support-api/internal/domain/escalation"
	"github.com/trackimpact/support-api/internal/domain/router"
)

// ReplyResponse is returned by the message endpoints.
type ReplyResponse struct {
	ConversationID string         `json:"conversationId"`
	Message        domain.Message `json:"message"`
	CanEscalate    bool           `json:"canEscalate"`
}

// SummaryResponse is one entry of the conversation list.
type SummaryResponse struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"messageCount"`
	Preview      string    `json:"preview"`
	LastActivity time.Time `json:"lastActivity"`
	Escalated    bool      `json:"escalated"`
	Resolved     bool      `json:"resolved"`
	CanEscalate  bool      `json:"canEscalate"`
}

// ListResponse is one page of conversations, newest activity first.
type ListResponse struct {
	Data  []SummaryResponse `json:"data"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
	Total int64             `json:"total"`
}

// ConversationResponse is the full conversation.
type ConversationResponse struct {
	ID           string           `json:"id"`
	Title        string           `json:"title"`
	Role         string           `json:"role"`
	EnterpriseID string           `json:"enterpriseId,omitempty"`
	Messages     []domain.Message `json:"messages"`
	MessageCount int              `json:"messageCount"`
	Metadata     domain.Metadata  `json:"metadata"`
	CanEscalate  bool             `json:"canEscalate"`
	LastActivity time.Time        `json:"lastActivity"`
	CreatedAt    time.Time        `json:"createdAt"`
}

// DeleteResponse confirms a deletion.
type DeleteResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// EscalationResponse is returned once a ticket exists.
type EscalationResponse struct {
	TicketID string `json:"ticketId"`
	Status   string `json:"status"`
}

func NewReplyResponse(reply *router.Reply) ReplyResponse {
	return ReplyResponse{
		ConversationID: reply.ConversationID,
		Message:        reply.Message,
		CanEscalate:    reply.CanEscalate,
	}
}

func NewListResponse(page *domain.Page) ListResponse {
	data := make([]SummaryResponse, 0, len(page.Data))
	for _, s := range page.Data {
		data = append(data, SummaryResponse{
			ID:           s.ID,
			Title:        s.Title,
			MessageCount: s.MessageCount,
			Preview:      s.Preview,
			LastActivity: s.LastActivity,
			Escalated:    s.Escalated,
			Resolved:     s.Resolved,
			CanEscalate:  s.CanEscalate,
		})
	}
	return ListResponse{Data: data, Page: page.Page, Limit: page.PageSize, Total: page.Total}
}

func NewConversationResponse(conv *domain.Conversation, canEscalate bool) ConversationResponse {
	messages := conv.Messages
	if messages == nil {
		messages = []domain.Message{}
	}
	return ConversationResponse{
		ID:           conv.ID,
		Title:        conv.Title,
		Role:         conv.OwnerRole.String(),
		EnterpriseID: conv.EnterpriseID,
		Messages:     messages,
		MessageCount: conv.MessageCount(),
		Metadata:     conv.Metadata,
		CanEscalate:  canEscalate,
		LastActivity: conv.LastActivity,
		CreatedAt:    conv.CreatedAt,
	}
}

func NewEscalationResponse(result *escalation.Result) EscalationResponse {
	return EscalationResponse{TicketID: result.TicketID, Status: result.Status}
}
