package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/trackimpact/support-api/internal/domain/escalation"
	"github.com/trackimpact/support-api/internal/infrastructure/metrics"
	"github.com/trackimpact/support-api/pkg/telemetry"
)

const timeLayout = "02/01/2006 15:04 MST"

// Multi fans a notification out to every channel and joins their errors.
type Multi struct {
	channels []escalation.Notifier
}

func NewMulti(channels ...escalation.Notifier) *Multi {
	return &Multi{channels: channels}
}

func (m *Multi) NotifyEscalation(ctx context.Context, n escalation.Notification) error {
	var errs []error
	for _, ch := range m.channels {
		if err := ch.NotifyEscalation(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes escalations to the service log. It is always wired so an
// escalation leaves a trace even without Telegram or e-mail.
type LogNotifier struct {
	log       zerolog.Logger
	sanitizer *telemetry.Sanitizer
}

func NewLogNotifier(log zerolog.Logger, sanitizer *telemetry.Sanitizer) *LogNotifier {
	return &LogNotifier{
		log:       log.With().Str("component", "escalation-notifier").Logger(),
		sanitizer: sanitizer,
	}
}

func (l *LogNotifier) NotifyEscalation(_ context.Context, n escalation.Notification) error {
	l.log.Info().
		Str("ticket_id", n.TicketID).
		Str("conversation_id", n.ConversationID).
		Str("requester", l.sanitizer.Identifier(n.Requester.UserID)).
		Str("enterprise_id", n.Requester.EnterpriseID).
		Str("details", l.sanitizer.Text(n.Details)).
		Msg("escalation awaiting support")
	metrics.NotificationsTotal.WithLabelValues("log", "sent").Inc()
	return nil
}

// render builds the plain text body shared by the Telegram and e-mail channels.
func render(n escalation.Notification, sanitizer *telemetry.Sanitizer) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Nouvelle demande de support %s\n", n.TicketID)
	fmt.Fprintf(&b, "Sujet : %s\n", n.Subject)
	fmt.Fprintf(&b, "Conversation : %s\n", n.ConversationID)
	if n.Requester.EnterpriseID != "" {
		fmt.Fprintf(&b, "Entreprise : %s\n", n.Requester.EnterpriseID)
	}
	requester := n.Requester.Email
	if requester == "" {
		requester = n.Requester.UserID
	}
	fmt.Fprintf(&b, "Demandeur : %s\n", sanitizer.Identifier(requester))
	fmt.Fprintf(&b, "Date : %s\n\n", n.RequestedAt.Format(timeLayout))
	b.WriteString(sanitizer.Text(n.Details))
	return b.String()
}

func record(channel string, err error) {
	status := "sent"
	if err != nil {
		status = "failed"
	}
	metrics.NotificationsTotal.WithLabelValues(channel, status).Inc()
}

var (
	_ escalation.Notifier = (*Multi)(nil)
	_ escalation.Notifier = (*LogNotifier)(nil)
)
