package notifier

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"

	"github.com/trackimpact/support-api/internal/domain/escalation"
	"github.com/trackimpact/support-api/pkg/telemetry"
)

// SMTPConfig identifies the relay used for support e-mails.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// MailSender delivers composed messages. *gomail.Dialer satisfies it.
type MailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailNotifier mails escalations to the support team.
type EmailNotifier struct {
	sender     MailSender
	from       string
	recipients []string
	sanitizer  *telemetry.Sanitizer
	log        zerolog.Logger
}

func NewEmailNotifier(cfg SMTPConfig, recipients []string, sanitizer *telemetry.Sanitizer, log zerolog.Logger) *EmailNotifier {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return newEmailNotifier(dialer, cfg.From, recipients, sanitizer, log)
}

func newEmailNotifier(sender MailSender, from string, recipients []string, sanitizer *telemetry.Sanitizer, log zerolog.Logger) *EmailNotifier {
	return &EmailNotifier{
		sender:     sender,
		from:       from,
		recipients: recipients,
		sanitizer:  sanitizer,
		log:        log.With().Str("component", "email-notifier").Logger(),
	}
}

func (e *EmailNotifier) NotifyEscalation(_ context.Context, n escalation.Notification) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", fmt.Sprintf("TrackImpact Support <%s>", e.from))
	msg.SetHeader("To", e.recipients...)
	msg.SetHeader("Subject", fmt.Sprintf("[%s] %s", n.TicketID, n.Subject))
	msg.SetBody("text/plain", render(n, e.sanitizer))

	err := e.sender.DialAndSend(msg)
	record("email", err)
	if err != nil {
		e.log.Warn().Err(err).Str("ticket_id", n.TicketID).Msg("support e-mail failed")
		return fmt.Errorf("send support e-mail: %w", err)
	}
	return nil
}

var _ escalation.Notifier = (*EmailNotifier)(nil)
