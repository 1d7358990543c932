package sender

import (
	"fmt"
	"strconv"

	tele "gopkg.in/telebot.v4"
)

type telebotSender struct {
	bot *tele.Bot
}

// NewTelebot wraps a telebot instance as a Transport.
func NewTelebot(bot *tele.Bot) Transport {
	return &telebotSender{bot: bot}
}

func (t *telebotSender) Send(chatID int64, text string, rows ...[]Button) (int, error) {
	msg, err := t.bot.Send(tele.ChatID(chatID), text, sendOptions(rows))
	if err != nil {
		return 0, fmt.Errorf("send to chat %d: %w", chatID, err)
	}
	return msg.ID, nil
}

func (t *telebotSender) Edit(chatID int64, messageID int, text string, rows ...[]Button) error {
	ref := tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID}
	if _, err := t.bot.Edit(ref, text, sendOptions(rows)); err != nil {
		return fmt.Errorf("edit message %d in chat %d: %w", messageID, chatID, err)
	}
	return nil
}

func (t *telebotSender) Delete(chatID int64, messageID int) error {
	ref := tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID}
	if err := t.bot.Delete(ref); err != nil {
		return fmt.Errorf("delete message %d in chat %d: %w", messageID, chatID, err)
	}
	return nil
}

// sendOptions renders button rows into an inline keyboard. Buttons carry the
// raw action code in callback data; an empty Unique keeps telebot from
// prefixing its own routing marker.
func sendOptions(rows [][]Button) *tele.SendOptions {
	opts := &tele.SendOptions{}
	if len(rows) == 0 {
		return opts
	}
	keyboard := make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		line := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			line = append(line, tele.InlineButton{Text: b.Label, Data: b.Action})
		}
		keyboard = append(keyboard, line)
	}
	opts.ReplyMarkup = &tele.ReplyMarkup{InlineKeyboard: keyboard}
	return opts
}
