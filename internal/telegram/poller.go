package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-feedback-bot/internal/bot"
)

// DefaultPollTimeout is the long-poll timeout in seconds.
const DefaultPollTimeout = 60

// Sink receives converted events, typically (*bot.Dispatcher).Enqueue.
type Sink interface {
	Enqueue(ctx context.Context, ev bot.Event) error
}

// Poll long-polls getUpdates and forwards every actionable update to sink
// until ctx is cancelled. Any webhook registered for the bot is removed first
// since Telegram refuses getUpdates while one is set.
func Poll(ctx context.Context, api *tgbotapi.BotAPI, sink Sink, timeout int) error {
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("telegram: delete webhook: %w", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = timeout
	updates := api.GetUpdatesChan(u)
	defer api.StopReceivingUpdates()

	log.Info().Str("bot", api.Self.UserName).Int("timeout_s", timeout).Msg("long polling started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			if err := Forward(ctx, sink, upd); err != nil {
				return err
			}
		}
	}
}

// Forward converts upd and hands it to sink. Updates the bot ignores are
// dropped silently.
func Forward(ctx context.Context, sink Sink, upd tgbotapi.Update) error {
	ev, ok := FromUpdate(upd)
	if !ok {
		log.Debug().Int("update_id", upd.UpdateID).Msg("update ignored")
		return nil
	}
	return sink.Enqueue(ctx, ev)
}

// SetWebhook registers url with Telegram so updates are pushed instead of
// polled.
func SetWebhook(api *tgbotapi.BotAPI, url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("telegram: webhook url: %w", err)
	}
	if _, err := api.Request(wh); err != nil {
		return fmt.Errorf("telegram: set webhook: %w", err)
	}
	return nil
}
