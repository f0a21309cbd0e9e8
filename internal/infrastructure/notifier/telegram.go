package notifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"

	"github.com/trackimpact/support-api/internal/domain/escalation"
	"github.com/trackimpact/support-api/pkg/telemetry"
)

// MessageSender is the part of *bot.Bot the notifier needs.
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// NewTelegramBot creates a send-only bot client; it never polls for updates.
func NewTelegramBot(token string) (*bot.Bot, error) {
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return b, nil
}

// TelegramNotifier posts escalations to the admin chats.
type TelegramNotifier struct {
	sender    MessageSender
	chatIDs   []int64
	sanitizer *telemetry.Sanitizer
	log       zerolog.Logger
}

func NewTelegramNotifier(sender MessageSender, chatIDs []int64, sanitizer *telemetry.Sanitizer, log zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		sender:    sender,
		chatIDs:   chatIDs,
		sanitizer: sanitizer,
		log:       log.With().Str("component", "telegram-notifier").Logger(),
	}
}

func (t *TelegramNotifier) NotifyEscalation(ctx context.Context, n escalation.Notification) error {
	text := render(n, t.sanitizer)

	var errs []error
	for _, chatID := range t.chatIDs {
		_, err := t.sender.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   text,
		})
		record("telegram", err)
		if err != nil {
			t.log.Warn().Err(err).Int64("chat_id", chatID).Str("ticket_id", n.TicketID).Msg("telegram notification failed")
			errs = append(errs, fmt.Errorf("telegram chat %d: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}

var _ escalation.Notifier = (*TelegramNotifier)(nil)
