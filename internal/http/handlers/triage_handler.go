// Triage HTTP handlers.
//
// This file exposes the read-only admin API over the same data the bot's
// triage navigator shows:
//   - GET /unanswered             (queue, oldest first)
//   - GET /users                  (directory of users who ever wrote)
//   - GET /users/{id}/history     (one user's messages with replies)
//
// Pages are zero-based to match the chat navigator. Every list sets a weak
// ETag over (page window, count, latest created_at) and may return 304.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-feedback-bot/internal/domain"
	"github.com/tbourn/go-feedback-bot/internal/services"
	"github.com/tbourn/go-feedback-bot/internal/utils"
)

// TriageService is the read side consumed by the admin API.
type TriageService interface {
	ListUnanswered(ctx context.Context) ([]domain.MessageSummary, error)
	UserHistory(ctx context.Context, userID int64) ([]domain.HistoryEntry, error)
	Directory(ctx context.Context) ([]domain.User, error)
	User(ctx context.Context, id int64) (*domain.User, error)
	UnansweredStats(ctx context.Context) (int64, *time.Time, error)
	HistoryStats(ctx context.Context, userID int64) (int64, *time.Time, error)
	DirectoryStats(ctx context.Context) (int64, *time.Time, error)
}

// Handlers groups the admin API endpoints and the webhook.
type Handlers struct {
	triage TriageService
	sink   UpdateSink

	// enqueueWait bounds how long a webhook request waits for queue space.
	enqueueWait time.Duration
}

// New constructs Handlers. sink may be nil when the webhook is disabled.
func New(triage TriageService, sink UpdateSink) *Handlers {
	return &Handlers{triage: triage, sink: sink, enqueueWait: DefaultEnqueueWait}
}

//
// DTOs
//

// Pagination carries zero-based pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasPrev    bool  `json:"has_prev"`
	HasNext    bool  `json:"has_next"`
}

// UnansweredResponse is a page of the triage queue.
type UnansweredResponse struct {
	Messages   []domain.MessageSummary `json:"messages"`
	Pagination Pagination              `json:"pagination"`
}

// UsersResponse is a page of the user directory.
type UsersResponse struct {
	Users      []domain.User `json:"users"`
	Pagination Pagination    `json:"pagination"`
}

// HistoryResponse is a page of one user's history.
type HistoryResponse struct {
	User       *domain.User          `json:"user"`
	Entries    []domain.HistoryEntry `json:"entries"`
	Pagination Pagination            `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses page (zero-based) and page_size with defaults and
// caps.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), 0)
	if page < 0 {
		page = 0
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// pageOf slices items and fills the pagination block.
func pageOf[T any](items []T, page, pageSize int) ([]T, Pagination) {
	shown, prev, next := utils.Paginate(items, page, pageSize)
	total := int64(len(items))
	return shown, Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: int((total + int64(pageSize) - 1) / int64(pageSize)),
		HasPrev:    prev,
		HasNext:    next,
	}
}

//
// Handlers
//

// ListUnanswered godoc
// @ID          listUnanswered
// @Summary     List unanswered messages
// @Description Returns one page of the triage queue, oldest first. Supports weak ETag via If-None-Match.
// @Tags        Triage
// @Produce     json
// @Security    BearerAuth
//
// @Param       page       query  int  false  "Zero-based page"  minimum(0) default(0)
// @Param       page_size  query  int  false  "Items per page"   minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.UnansweredResponse
// @Success     304  "Not Modified"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /unanswered [get]
func (h *Handlers) ListUnanswered(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	if count, latest, err := h.triage.UnansweredStats(ctx); err == nil {
		if notModified(c, weakETag(pageScope("unanswered", page, pageSize), count, latest)) {
			return
		}
	}

	items, err := h.triage.ListUnanswered(ctx)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	shown, p := pageOf(items, page, pageSize)
	ok(c, http.StatusOK, UnansweredResponse{Messages: shown, Pagination: p})
}

// ListUsers godoc
// @ID          listUsers
// @Summary     List users with messages
// @Description Returns one page of the directory, ordered by display name. Supports weak ETag.
// @Tags        Triage
// @Produce     json
// @Security    BearerAuth
//
// @Param       page       query  int  false  "Zero-based page"  minimum(0) default(0)
// @Param       page_size  query  int  false  "Items per page"   minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.UsersResponse
// @Success     304  "Not Modified"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /users [get]
func (h *Handlers) ListUsers(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	if count, latest, err := h.triage.DirectoryStats(ctx); err == nil {
		if notModified(c, weakETag(pageScope("users", page, pageSize), count, latest)) {
			return
		}
	}

	users, err := h.triage.Directory(ctx)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	shown, p := pageOf(users, page, pageSize)
	ok(c, http.StatusOK, UsersResponse{Users: shown, Pagination: p})
}

// UserHistory godoc
// @ID          userHistory
// @Summary     One user's history
// @Description Returns one page of a user's messages with the administrator's replies. Supports weak ETag.
// @Tags        Triage
// @Produce     json
// @Security    BearerAuth
//
// @Param       id         path   int  true   "User ID"
// @Param       page       query  int  false  "Zero-based page"  minimum(0) default(0)
// @Param       page_size  query  int  false  "Items per page"   minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.HistoryResponse
// @Success     304  "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "User not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /users/{id}/history [get]
func (h *Handlers) UserHistory(c *gin.Context) {
	ctx := c.Request.Context()

	uid, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || uid <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user id must be a positive integer")
		return
	}

	u, err := h.triage.User(ctx, uid)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "user not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	page, pageSize := clampPagination(c)
	scope := pageScope("history:"+strconv.FormatInt(uid, 10), page, pageSize)
	if count, latest, err := h.triage.HistoryStats(ctx, uid); err == nil {
		if notModified(c, weakETag(scope, count, latest)) {
			return
		}
	}

	entries, err := h.triage.UserHistory(ctx, uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	shown, p := pageOf(entries, page, pageSize)
	ok(c, http.StatusOK, HistoryResponse{User: u, Entries: shown, Pagination: p})
}
