package outbound

import (
	"context"
	"strconv"

	tele "gopkg.in/telebot.v4"
)

// TelebotSender implements Sender on top of a telebot API client.
type TelebotSender struct {
	bot *tele.Bot
}

// NewTelebotSender wraps bot into a Sender.
func NewTelebotSender(bot *tele.Bot) *TelebotSender {
	return &TelebotSender{bot: bot}
}

// SendText implements Sender.
func (s *TelebotSender) SendText(_ context.Context, chatID int64, text string) error {
	_, err := s.bot.Send(&tele.Chat{ID: chatID}, text)
	return err
}

// SendButtons implements Sender.
func (s *TelebotSender) SendButtons(_ context.Context, chatID int64, text string, rows [][]Button) error {
	keyboard := make([][]tele.InlineButton, len(rows))
	for i, row := range rows {
		r := make([]tele.InlineButton, len(row))
		for j, btn := range row {
			r[j] = tele.InlineButton{Text: btn.Label, Data: btn.Data}
		}
		keyboard[i] = r
	}
	_, err := s.bot.Send(&tele.Chat{ID: chatID}, text, &tele.ReplyMarkup{InlineKeyboard: keyboard})
	return err
}

// SendPhoto implements Sender.
func (s *TelebotSender) SendPhoto(_ context.Context, chatID int64, photoURL, caption string) error {
	photo := &tele.Photo{File: tele.FromURL(photoURL), Caption: caption}
	_, err := s.bot.Send(&tele.Chat{ID: chatID}, photo)
	return err
}

// CopyMessage implements Sender. The copy carries no forward header, so
// recipients see the broadcast as a fresh message.
func (s *TelebotSender) CopyMessage(_ context.Context, dstChatID, srcChatID int64, messageID int) error {
	src := tele.StoredMessage{
		MessageID: strconv.Itoa(messageID),
		ChatID:    srcChatID,
	}
	_, err := s.bot.Copy(&tele.Chat{ID: dstChatID}, src)
	return err
}
