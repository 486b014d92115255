// Webhook HTTP handler.
//
// Telegram pushes updates to POST /telegram/{secret}. The secret path segment
// is compared in constant time; the update is converted and queued for the
// dispatch worker, and the request returns as soon as it is queued.
package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tbourn/go-feedback-bot/internal/http/middleware"
	"github.com/tbourn/go-feedback-bot/internal/telegram"
)

// UpdateSink receives converted updates; the dispatcher implements it.
type UpdateSink = telegram.Sink

// DefaultEnqueueWait is how long a webhook request waits for room in a full
// dispatch queue before answering 503.
const DefaultEnqueueWait = 2 * time.Second

// Webhook returns the handler for POST /telegram/:secret.
//
// Responses:
//   - 200 when the update was queued or deliberately ignored
//   - 400 for a body that is not an Update
//   - 404 for a wrong secret (indistinguishable from an unknown route)
//   - 503 when the queue stayed full for enqueueWait or the request ended;
//     Telegram retries it later
func (h *Handlers) Webhook(secret string) gin.HandlerFunc {
	want := []byte(secret)
	return func(c *gin.Context) {
		got := []byte(c.Param("secret"))
		if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "route not found")
			return
		}

		var upd tgbotapi.Update
		if err := c.ShouldBindJSON(&upd); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid update body")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), h.enqueueWait)
		defer cancel()
		if err := telegram.Forward(ctx, h.sink, upd); err != nil {
			lg := middleware.LoggerFrom(c)
			lg.Warn().Err(err).Int("update_id", upd.UpdateID).Msg("update not queued")
			fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "update queue busy")
			return
		}
		c.Status(http.StatusOK)
	}
}
