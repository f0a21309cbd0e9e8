package ticket

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/trackimpact/support-api/internal/domain/conversation"
	"github.com/trackimpact/support-api/internal/domain/escalation"
	"github.com/trackimpact/support-api/internal/infrastructure/observability"
	"github.com/trackimpact/support-api/internal/utils/idgen"
	"github.com/trackimpact/support-api/internal/utils/platformerrors"
)

var urgentMarkers = []string{"urgent", "bloque", "bloqué", "impossible", "asap"}

// System is the built-in ticket system. It stores tickets and optionally forwards them to a helpdesk.
type System struct {
	store     Store
	forwarder Forwarder
	log       zerolog.Logger
}

// NewSystem wires the ticket system. forwarder may be nil.
func NewSystem(store Store, forwarder Forwarder, log zerolog.Logger) *System {
	return &System{
		store:     store,
		forwarder: forwarder,
		log:       log.With().Str("component", "ticket-system").Logger(),
	}
}

func (s *System) CreateTicket(ctx context.Context, req escalation.TicketRequest) (string, error) {
	id, err := idgen.TicketID()
	if err != nil {
		return "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeInternal,
			"failed to generate ticket id", err, "4c9d1e07-b28a-4f65-93e0-6a7f2b8d5c13")
	}

	record := &Record{
		ID:             id,
		ConversationID: req.ConversationID,
		RequesterID:    req.Requester.UserID,
		RequesterEmail: req.Requester.Email,
		EnterpriseID:   req.Requester.EnterpriseID,
		Subject:        req.Subject,
		Details:        req.Details,
		Transcript:     FormatTranscript(req.Transcript),
		Status:         StatusSubmitted,
		Priority:       PriorityFor(req.Details),
		CreatedAt:      req.RequestedAt,
	}

	if err := s.store.Save(ctx, record); err != nil {
		return "", err
	}

	if s.forwarder != nil {
		s.forward(ctx, record)
	}
	return id, nil
}

// TicketFor returns the id of the ticket already stored for the conversation.
func (s *System) TicketFor(ctx context.Context, conversationID string) (string, error) {
	record, err := s.store.FindByConversation(ctx, conversationID)
	if err != nil {
		return "", err
	}
	return record.ID, nil
}

// forward failures leave the local ticket in place; admins are notified either way.
func (s *System) forward(ctx context.Context, record *Record) {
	ctx, span := observability.StartSpan(ctx, "ticket.forward", attribute.String("ticket.id", record.ID))
	defer span.End()

	ref, err := s.forwarder.Forward(ctx, record)
	if err != nil {
		observability.RecordError(ctx, err)
		s.log.Warn().Err(err).Str("ticket_id", record.ID).Msg("ticket webhook delivery failed")
		return
	}
	if ref == "" {
		return
	}
	if err := s.store.SetExternalRef(ctx, record.ID, ref); err != nil {
		s.log.Warn().Err(err).Str("ticket_id", record.ID).Msg("failed to store external ticket reference")
	}
}

// PriorityFor flags tickets whose details read as blocking.
func PriorityFor(details string) string {
	lower := strings.ToLower(details)
	for _, marker := range urgentMarkers {
		if strings.Contains(lower, marker) {
			return PriorityHigh
		}
	}
	return PriorityNormal
}

// FormatTranscript renders messages as plain text, one "[time] role: content" line each.
func FormatTranscript(messages []conversation.Message) string {
	var b strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&b, "[%s] %s: %s\n", m.Timestamp.UTC().Format(time.RFC3339), m.Role, m.Content)
	}
	return b.String()
}

var _ escalation.TicketSystem = (*System)(nil)
