// Package telegram adapts the Telegram Bot API to the bot package: it
// converts updates into bot.Events and implements bot.Gateway on top of
// github.com/go-telegram-bot-api/telegram-bot-api/v5.
package telegram

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tbourn/go-feedback-bot/internal/bot"
)

// MaxTextRunes is the longest message text Telegram accepts.
const MaxTextRunes = 4096

// API is the subset of *tgbotapi.BotAPI the gateway needs.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Gateway implements bot.Gateway over the Bot API.
type Gateway struct {
	API API
}

var _ bot.Gateway = (*Gateway)(nil)

// NewGateway wraps api.
func NewGateway(api API) *Gateway { return &Gateway{API: api} }

// SendText sends a message. A nil keyboard leaves the chat's keyboard as it
// is.
func (g *Gateway) SendText(ctx context.Context, chatID int64, text string, kb *bot.Keyboard) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, clip(text))
	if markup := replyMarkup(kb); markup != nil {
		msg.ReplyMarkup = markup
	}
	_, err := g.API.Send(msg)
	return err
}

// EditMessage replaces the text of a bot message. Only inline keyboards can
// be attached to an edited message; a nil keyboard removes it.
func (g *Gateway) EditMessage(ctx context.Context, chatID int64, messageID int, text string, kb *bot.Keyboard) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	edit := tgbotapi.NewEditMessageText(chatID, messageID, clip(text))
	if kb != nil && kb.Kind == bot.KeyboardInline {
		m := inlineMarkup(kb)
		edit.ReplyMarkup = &m
	}
	_, err := g.API.Request(edit)
	if isNotModified(err) {
		return nil
	}
	return err
}

// DeleteMessage removes a message from the chat.
func (g *Gateway) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := g.API.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	return err
}

// AnswerCallback stops the client's loading indicator for a button press.
func (g *Gateway) AnswerCallback(ctx context.Context, callbackID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := g.API.Request(tgbotapi.NewCallback(callbackID, ""))
	return err
}

func replyMarkup(kb *bot.Keyboard) any {
	if kb == nil {
		return nil
	}
	switch kb.Kind {
	case bot.KeyboardInline:
		return inlineMarkup(kb)
	case bot.KeyboardReply:
		rows := make([][]tgbotapi.KeyboardButton, 0, len(kb.Rows))
		for _, r := range kb.Rows {
			row := make([]tgbotapi.KeyboardButton, 0, len(r))
			for _, b := range r {
				row = append(row, tgbotapi.NewKeyboardButton(b.Label))
			}
			rows = append(rows, tgbotapi.NewKeyboardButtonRow(row...))
		}
		m := tgbotapi.NewReplyKeyboard(rows...)
		m.ResizeKeyboard = true
		return m
	case bot.KeyboardRemove:
		return tgbotapi.NewRemoveKeyboard(true)
	}
	return nil
}

func inlineMarkup(kb *bot.Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb.Rows))
	for _, r := range kb.Rows {
		row := make([]tgbotapi.InlineKeyboardButton, 0, len(r))
		for _, b := range r {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Token))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(row...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// clip truncates s to MaxTextRunes runes.
func clip(s string) string {
	if utf8.RuneCountInString(s) <= MaxTextRunes {
		return s
	}
	r := []rune(s)
	return string(r[:MaxTextRunes])
}

// isNotModified reports the API error returned when an edit would not change
// anything, e.g. a double press on the same pager button.
func isNotModified(err error) bool {
	var apiErr *tgbotapi.Error
	return errors.As(err, &apiErr) && strings.Contains(apiErr.Message, "message is not modified")
}
