package ticket

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/trackimpact/support-api/internal/utils/httpclients"
)

const (
	webhookMaxRetries = 3
	webhookRetryDelay = 2 * time.Second
)

// WebhookPayload is what the external helpdesk receives for a new ticket.
type WebhookPayload struct {
	Event          string `json:"event"`
	TicketID       string `json:"ticketId"`
	ConversationID string `json:"conversationId"`
	Subject        string `json:"subject"`
	Details        string `json:"details"`
	Priority       string `json:"priority"`
	RequesterEmail string `json:"requesterEmail,omitempty"`
	EnterpriseID   string `json:"enterpriseId,omitempty"`
	Transcript     string `json:"transcript"`
	CreatedAt      string `json:"createdAt"`
}

type webhookResponse struct {
	ID        string `json:"id"`
	Reference string `json:"reference"`
}

// Forwarder pushes a ticket to a system outside this service and returns its reference there.
type Forwarder interface {
	Forward(ctx context.Context, record *Record) (string, error)
}

// WebhookForwarder posts tickets to a helpdesk webhook, retrying transport errors and 5xx answers.
type WebhookForwarder struct {
	url    string
	client *resty.Client
	log    zerolog.Logger
}

func NewWebhookForwarder(url string, timeout time.Duration, log zerolog.Logger) *WebhookForwarder {
	logger := log.With().Str("component", "ticket-webhook").Logger()
	client := httpclients.NewClient("TicketWebhook", logger).
		SetTimeout(timeout).
		SetRetryCount(webhookMaxRetries - 1).
		SetRetryWaitTime(webhookRetryDelay).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})
	return &WebhookForwarder{url: url, client: client, log: logger}
}

func (f *WebhookForwarder) Forward(ctx context.Context, record *Record) (string, error) {
	payload := WebhookPayload{
		Event:          "ticket.created",
		TicketID:       record.ID,
		ConversationID: record.ConversationID,
		Subject:        record.Subject,
		Details:        record.Details,
		Priority:       record.Priority,
		RequesterEmail: record.RequesterEmail,
		EnterpriseID:   record.EnterpriseID,
		Transcript:     record.Transcript,
		CreatedAt:      record.CreatedAt.UTC().Format(time.RFC3339),
	}

	var out webhookResponse
	resp, err := f.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Support-Event", payload.Event).
		SetBody(payload).
		SetResult(&out).
		Post(f.url)
	if err != nil {
		return "", fmt.Errorf("send ticket webhook (%d attempts): %w", webhookMaxRetries, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("ticket webhook returned status %d", resp.StatusCode())
	}

	f.log.Info().Str("ticket_id", record.ID).Int("status", resp.StatusCode()).Msg("ticket forwarded")
	if out.Reference != "" {
		return out.Reference, nil
	}
	return out.ID, nil
}

var _ Forwarder = (*WebhookForwarder)(nil)
