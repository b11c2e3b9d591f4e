package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"leihlokal/internal/events"
	"leihlokal/internal/reservation"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return tgbotapi.Message{}, args.Error(0)
}

func testConf() reservation.Confirmation {
	return reservation.Confirmation{
		ID:       "res1",
		Email:    "a@example.org",
		Pickup:   "2026-01-12 15:00:00",
		Comments: "Komme etwas später",
		Items:    []reservation.ConfirmedItem{{ID: "a", IID: 12, Name: "Bohrmaschine"}},
	}
}

func TestFormatReservation(t *testing.T) {
	text := FormatReservation(testConf())
	assert.Contains(t, text, "res1")
	assert.Contains(t, text, "Abholung: 2026-01-12 15:00:00")
	assert.Contains(t, text, "- #12 Bohrmaschine")
	assert.Contains(t, text, "Komme etwas später")
}

func TestNotifyReservation(t *testing.T) {
	sender := new(MockSender)
	sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ChatID == 1 && strings.Contains(msg.Text, "res1")
	})).Return(nil)
	sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ChatID == 2
	})).Return(errors.New("chat not found"))

	tg := NewTelegramWithSender(sender, []int64{1, 2}, nil)
	err := tg.NotifyReservation(context.Background(), testConf())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
	sender.AssertNumberOfCalls(t, "Send", 2)
}

func TestSendDocument(t *testing.T) {
	sender := new(MockSender)
	sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		doc, ok := c.(tgbotapi.DocumentConfig)
		if !ok {
			return false
		}
		file, ok := doc.File.(tgbotapi.FileBytes)
		return ok && file.Name == "Januar_2026.xlsx" && string(file.Bytes) == "xlsx" && doc.Caption == "Bericht"
	})).Return(nil)

	tg := NewTelegramWithSender(sender, []int64{7}, nil)
	require.NoError(t, tg.SendDocument(context.Background(), "Januar_2026.xlsx", strings.NewReader("xlsx"), "Bericht"))
	sender.AssertExpectations(t)
}

func TestHandleEvent(t *testing.T) {
	sender := new(MockSender)
	sender.On("Send", mock.Anything).Return(nil)

	tg := NewTelegramWithSender(sender, []int64{1}, nil)
	ev, err := events.New(events.ReservationConfirmed, testConf())
	require.NoError(t, err)

	require.NoError(t, tg.HandleEvent(ev))
	sender.AssertNumberOfCalls(t, "Send", 1)

	assert.Error(t, tg.HandleEvent(events.Event{Payload: []byte("{")}))
}
