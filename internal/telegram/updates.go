package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tbourn/go-feedback-bot/internal/bot"
)

// FromUpdate converts a Telegram update into a bot.Event. It reports false
// for updates the bot does not act on: edits, channel posts, group chats,
// and messages without text.
func FromUpdate(u tgbotapi.Update) (bot.Event, bool) {
	if cq := u.CallbackQuery; cq != nil {
		if cq.From == nil {
			return bot.Event{}, false
		}
		ev := bot.Event{
			UpdateID:   int64(u.UpdateID),
			Kind:       bot.EventButton,
			Sender:     sender(cq.From),
			ChatID:     cq.From.ID,
			CallbackID: cq.ID,
			Token:      cq.Data,
		}
		if cq.Message != nil {
			ev.MessageID = cq.Message.MessageID
			if cq.Message.Chat != nil {
				ev.ChatID = cq.Message.Chat.ID
			}
		}
		return ev, true
	}

	m := u.Message
	if m == nil || m.From == nil || m.Chat == nil || !m.Chat.IsPrivate() {
		return bot.Event{}, false
	}
	ev := bot.Event{
		UpdateID:  int64(u.UpdateID),
		Sender:    sender(m.From),
		ChatID:    m.Chat.ID,
		MessageID: m.MessageID,
	}
	switch {
	case m.IsCommand():
		ev.Kind = bot.EventCommand
		ev.Command = strings.ToLower(m.Command())
		ev.Args = m.CommandArguments()
	case m.Text != "":
		ev.Kind = bot.EventText
		ev.Text = m.Text
	default:
		return bot.Event{}, false
	}
	return ev, true
}

func sender(u *tgbotapi.User) bot.Sender {
	return bot.Sender{
		ID:           u.ID,
		Username:     u.UserName,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		LanguageCode: u.LanguageCode,
	}
}
