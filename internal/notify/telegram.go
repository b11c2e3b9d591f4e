// Package notify tells staff about new reservations over Telegram.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"leihlokal/internal/events"
	"leihlokal/internal/reservation"
)

// TelegramSender is the part of the bot API used here.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends staff notifications to a fixed set of chats.
type Telegram struct {
	sender  TelegramSender
	chatIDs []int64
	limiter *rate.Limiter
	logger  *zerolog.Logger
}

// NewTelegram connects to the bot API with token.
func NewTelegram(token string, chatIDs []int64, logger *zerolog.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return NewTelegramWithSender(api, chatIDs, logger), nil
}

// NewTelegramWithSender allows injecting a mocked sender for tests.
func NewTelegramWithSender(sender TelegramSender, chatIDs []int64, logger *zerolog.Logger) *Telegram {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "notify").Logger()
	return &Telegram{
		sender:  sender,
		chatIDs: chatIDs,
		// Telegram allows about 30 messages per second per bot.
		limiter: rate.NewLimiter(rate.Limit(20), 5),
		logger:  &l,
	}
}

// FormatReservation renders the staff message for conf.
func FormatReservation(conf reservation.Confirmation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📦 Neue Reservierung %s\n\n", conf.ID)
	fmt.Fprintf(&b, "📅 Abholung: %s\n", conf.Pickup)
	fmt.Fprintf(&b, "✉️ %s\n", conf.Email)
	b.WriteString("\nGegenstände:\n")
	for _, it := range conf.Items {
		fmt.Fprintf(&b, "- #%d %s\n", it.IID, it.Name)
	}
	if conf.Comments != "" {
		fmt.Fprintf(&b, "\n💬 %s\n", conf.Comments)
	}
	return b.String()
}

// NotifyReservation sends conf to every chat.
func (t *Telegram) NotifyReservation(ctx context.Context, conf reservation.Confirmation) error {
	return t.SendText(ctx, FormatReservation(conf))
}

// SendText sends text to every chat.
func (t *Telegram) SendText(ctx context.Context, text string) error {
	var errs []error
	for _, chatID := range t.chatIDs {
		if err := t.limiter.Wait(ctx); err != nil {
			return err
		}
		if _, err := t.sender.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
			t.logger.Error().Err(err).Int64("chat_id", chatID).Msg("send message")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SendDocument sends a file to every chat.
func (t *Telegram) SendDocument(ctx context.Context, filename string, data io.Reader, caption string) error {
	content, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	var errs []error
	for _, chatID := range t.chatIDs {
		if err := t.limiter.Wait(ctx); err != nil {
			return err
		}
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: filename, Bytes: content})
		doc.Caption = caption
		if _, err := t.sender.Send(doc); err != nil {
			t.logger.Error().Err(err).Int64("chat_id", chatID).Str("file", filename).Msg("send document")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// HandleEvent is an events.EventHandler for confirmed reservations.
func (t *Telegram) HandleEvent(ev events.Event) error {
	var conf reservation.Confirmation
	if err := ev.Decode(&conf); err != nil {
		return err
	}
	return t.NotifyReservation(context.Background(), conf)
}
