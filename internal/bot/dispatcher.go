// Dispatcher.
//
// A single worker drains the event queue in arrival order. For each event it:
//   - drops floods through the per-sender rate limiter,
//   - drops update ids it has already handled (Deduper),
//   - registers the sender (insert-if-absent),
//   - routes commands, text, and button presses to the user or admin flow.
//
// Session intents bind the next text: AwaitingMessage submits it,
// AwaitingReply answers the target. Outbound failures after a successful
// store write are logged and never undo the write.
package bot

import (
	"context"
	"errors"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-feedback-bot/internal/domain"
	"github.com/tbourn/go-feedback-bot/internal/i18n"
	"github.com/tbourn/go-feedback-bot/internal/services"
	"github.com/tbourn/go-feedback-bot/internal/session"
	"github.com/tbourn/go-feedback-bot/internal/utils"
)

// Lifecycle is the write side used by the dispatcher.
type Lifecycle interface {
	Submit(ctx context.Context, userID int64, category domain.Category, body string) (int64, error)
	Reply(ctx context.Context, target domain.ReplyTarget, text string) (int64, error)
	Reconcile(ctx context.Context, userID int64) error
	HasActive(ctx context.Context, userID int64) (bool, error)
}

// Triage is the read side used by the administrator's views.
type Triage interface {
	ListUnanswered(ctx context.Context) ([]domain.MessageSummary, error)
	UserHistory(ctx context.Context, userID int64) ([]domain.HistoryEntry, error)
	Directory(ctx context.Context) ([]domain.User, error)
	Message(ctx context.Context, id int64) (*domain.MessageSummary, error)
}

// Accounts manages registration and language preference.
type Accounts interface {
	Register(ctx context.Context, u domain.User) error
	Locale(ctx context.Context, userID int64) (domain.Locale, error)
	SetLocale(ctx context.Context, userID int64, l domain.Locale) error
}

// Limiter drops floods before they reach the services. Keys are sender ids.
type Limiter interface {
	Allow(key string) bool
}

// Config holds the dispatcher's tunables.
type Config struct {
	// AdminID is the single administrator's user id.
	AdminID int64
	// MaxTextRunes is reported in the "too long" message.
	MaxTextRunes int
	// UnansweredPageSize and HistoryPageSize size the admin views.
	UnansweredPageSize int
	HistoryPageSize    int
	// QueueSize bounds the inbound event buffer.
	QueueSize int
	// TimeLocation renders timestamps; nil means UTC.
	TimeLocation *time.Location
}

// Deps are the collaborators of a Dispatcher. Limiter and Deduper are
// optional.
type Deps struct {
	Gateway   Gateway
	Texts     *i18n.Catalog
	Accounts  Accounts
	Lifecycle Lifecycle
	Triage    Triage
	Sessions  *session.Tracker
	Limiter   Limiter
	Deduper   Deduper
	Logger    *zerolog.Logger
}

// Dispatcher classifies inbound events by sender and shape and drives the
// conversation. Events are handled one at a time, in arrival order, by the
// goroutine running Run.
type Dispatcher struct {
	cfg  Config
	deps Deps
	kb   keyboards
	log  zerolog.Logger

	queue chan Event
}

const timeLayout = "2006-01-02 15:04:05"

// New builds a Dispatcher. Zero config values get the defaults 4000 runes,
// 10 unanswered and 5 history items per page, and a 256-event queue.
func New(cfg Config, deps Deps) *Dispatcher {
	if cfg.MaxTextRunes <= 0 {
		cfg.MaxTextRunes = services.DefaultMaxTextRunes
	}
	if cfg.UnansweredPageSize <= 0 {
		cfg.UnansweredPageSize = 10
	}
	if cfg.HistoryPageSize <= 0 {
		cfg.HistoryPageSize = 5
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.TimeLocation == nil {
		cfg.TimeLocation = time.UTC
	}
	lg := log.Logger
	if deps.Logger != nil {
		lg = *deps.Logger
	}
	return &Dispatcher{
		cfg:   cfg,
		deps:  deps,
		kb:    keyboards{texts: deps.Texts},
		log:   lg.With().Str("component", "dispatcher").Logger(),
		queue: make(chan Event, cfg.QueueSize),
	}
}

// Enqueue hands ev to the worker. It blocks while the queue is full and
// returns ctx.Err() if ctx ends first.
func (d *Dispatcher) Enqueue(ctx context.Context, ev Event) error {
	select {
	case d.queue <- ev:
		queueDepth.Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes queued events until ctx is cancelled. An event already being
// handled is finished with a context that ignores the cancellation so a
// lifecycle transition is never cut in half.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-d.queue:
			queueDepth.Dec()
			d.Handle(context.WithoutCancel(ctx), ev)
		}
	}
}

// Handle processes one event synchronously.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) {
	start := time.Now()
	role := d.role(ev.Sender.ID)
	kind := ev.Kind.String()
	lg := d.log.With().
		Int64("user_id", ev.Sender.ID).
		Str("event", kind).
		Int64("update_id", ev.UpdateID).
		Logger()

	ctx, span := otel.Tracer("bot/Dispatcher").Start(ctx, "Handle",
		trace.WithAttributes(
			attribute.String("event.kind", kind),
			attribute.String("sender.role", role),
			attribute.Int64("user.id", ev.Sender.ID),
		),
	)
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			lg.Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("panic while handling event")
			botEvents.WithLabelValues(kind, role, "panic").Inc()
		}
	}()

	if d.deps.Limiter != nil && !d.deps.Limiter.Allow(strconv.FormatInt(ev.Sender.ID, 10)) {
		lg.Warn().Msg("rate limited")
		botEvents.WithLabelValues(kind, role, "rate_limited").Inc()
		if ev.Kind == EventButton {
			d.answer(ctx, lg, ev)
		}
		return
	}
	if ev.UpdateID != 0 && d.deps.Deduper != nil {
		seen, err := d.deps.Deduper.Seen(ctx, ev.UpdateID)
		if err != nil {
			lg.Warn().Err(err).Msg("update dedupe failed; dispatching anyway")
		} else if seen {
			lg.Debug().Msg("duplicate update dropped")
			botEvents.WithLabelValues(kind, role, "duplicate").Inc()
			return
		}
	}

	if err := d.deps.Accounts.Register(ctx, ev.Sender.User()); err != nil {
		lg.Error().Err(err).Msg("register sender")
	}

	switch ev.Kind {
	case EventCommand:
		d.onCommand(ctx, lg, ev)
	case EventText:
		if role == "admin" {
			d.onAdminText(ctx, lg, ev)
		} else {
			d.onUserText(ctx, lg, ev)
		}
	case EventButton:
		d.onButton(ctx, lg, ev)
	default:
		lg.Warn().Msg("unknown event kind")
		botEvents.WithLabelValues(kind, role, "dropped").Inc()
		return
	}

	botEvents.WithLabelValues(kind, role, "handled").Inc()
	botEventLat.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

func (d *Dispatcher) role(id int64) string {
	if id == d.cfg.AdminID {
		return "admin"
	}
	return "user"
}

func (d *Dispatcher) isAdmin(id int64) bool { return id == d.cfg.AdminID }

// ---------- commands ----------

func (d *Dispatcher) onCommand(ctx context.Context, lg zerolog.Logger, ev Event) {
	switch ev.Command {
	case "start":
		d.start(ctx, lg, ev)
	case "language":
		d.deleteIncoming(ctx, lg, ev)
		if code := strings.TrimSpace(ev.Args); code != "" {
			if l, ok := i18n.ParseLocale(code); ok {
				d.setLocale(ctx, lg, ev.Sender.ID, l)
				return
			}
		}
		d.chooseLanguage(ctx, lg, ev.Sender.ID)
	default:
		lg.Debug().Str("command", ev.Command).Msg("unknown command ignored")
	}
}

func (d *Dispatcher) start(ctx context.Context, lg zerolog.Logger, ev Event) {
	uid := ev.Sender.ID
	l := d.locale(ctx, lg, uid)

	if d.isAdmin(uid) {
		d.send(ctx, lg, uid, d.text("start_admin", l, nil), d.kb.adminMain(l))
		return
	}

	active, err := d.deps.Lifecycle.HasActive(ctx, uid)
	if err != nil {
		lg.Error().Err(err).Msg("read active flag")
		d.send(ctx, lg, uid, d.text("error", l, nil), nil)
		return
	}
	if active {
		d.send(ctx, lg, uid, d.text("active_message", l, nil), RemoveKeyboard)
		return
	}
	name := ev.Sender.FirstName
	if name == "" {
		name = d.text("no_name", l, nil)
	}
	d.send(ctx, lg, uid, d.text("start_user", l, i18n.Params{"name": name}), d.kb.categories(l))
}

// ---------- user text ----------

func (d *Dispatcher) onUserText(ctx context.Context, lg zerolog.Logger, ev Event) {
	uid := ev.Sender.ID
	l := d.locale(ctx, lg, uid)
	text := strings.TrimSpace(ev.Text)

	if text == d.text("change_language", l, nil) {
		d.deleteIncoming(ctx, lg, ev)
		d.chooseLanguage(ctx, lg, uid)
		return
	}

	if cat, ok := d.deps.Texts.CategoryForButton(text, l); ok {
		d.pickCategory(ctx, lg, uid, cat, l)
		return
	}

	in, ok := d.deps.Sessions.Get(uid)
	if !ok || in.Kind != session.AwaitingMessage {
		if active, err := d.deps.Lifecycle.HasActive(ctx, uid); err == nil && active {
			d.send(ctx, lg, uid, d.text("active_message", l, nil), RemoveKeyboard)
			return
		}
		d.send(ctx, lg, uid, d.text("choose_type", l, nil), d.kb.categories(l))
		return
	}

	_, err := d.deps.Lifecycle.Submit(ctx, uid, in.Category, ev.Text)
	lifecycleOps.WithLabelValues("submit", services.KindOf(err)).Inc()
	if err != nil {
		d.submitFailed(ctx, lg, uid, err, l)
		return
	}
	d.deps.Sessions.Clear(uid)
	lg.Info().Str("category", string(in.Category)).Msg("message submitted")

	d.notifyAdmin(ctx, lg, ev.Sender, in.Category, text)
	d.send(ctx, lg, uid, d.text("message_sent", l, nil), RemoveKeyboard)
}

func (d *Dispatcher) pickCategory(ctx context.Context, lg zerolog.Logger, uid int64, cat domain.Category, l domain.Locale) {
	active, err := d.deps.Lifecycle.HasActive(ctx, uid)
	if err != nil {
		lg.Error().Err(err).Msg("read active flag")
		d.send(ctx, lg, uid, d.text("error", l, nil), nil)
		return
	}
	if active {
		d.send(ctx, lg, uid, d.text("active_message", l, nil), RemoveKeyboard)
		return
	}
	d.deps.Sessions.Set(uid, session.WantMessage(cat))
	d.send(ctx, lg, uid,
		d.text("enter_message", l, i18n.Params{"type": d.deps.Texts.CategoryName(cat, l)}),
		RemoveKeyboard,
	)
}

// submitFailed renders a Submit error. Validation errors keep the intent so
// the user can resend; every other error clears it.
func (d *Dispatcher) submitFailed(ctx context.Context, lg zerolog.Logger, uid int64, err error, l domain.Locale) {
	switch {
	case errors.Is(err, services.ErrEmptyText):
		d.send(ctx, lg, uid, d.text("empty_message", l, nil), nil)
		return
	case errors.Is(err, services.ErrTooLong):
		d.send(ctx, lg, uid, d.text("message_too_long", l, d.maxLenParams()), nil)
		return
	}

	d.deps.Sessions.Clear(uid)
	switch {
	case errors.Is(err, services.ErrValidation):
		d.send(ctx, lg, uid, d.text("choose_type", l, nil), d.kb.categories(l))
	case errors.Is(err, services.ErrConflict):
		d.send(ctx, lg, uid, d.text("active_message", l, nil), RemoveKeyboard)
	default:
		lg.Error().Err(err).Msg("submit failed")
		if rerr := d.deps.Lifecycle.Reconcile(ctx, uid); rerr != nil {
			lg.Error().Err(rerr).Msg("reconcile after failed submit")
		}
		d.send(ctx, lg, uid, d.text("error", l, nil), nil)
	}
}

// notifyAdmin tells the administrator about a new message in the admin's
// current locale. Failures are logged; the message stays submitted.
func (d *Dispatcher) notifyAdmin(ctx context.Context, lg zerolog.Logger, from Sender, cat domain.Category, body string) {
	al := d.locale(ctx, lg, d.cfg.AdminID)
	text := d.text("new_message", al, i18n.Params{
		"username": from.User().Handle(),
		"type":     d.deps.Texts.CategoryName(cat, al),
		"text":     body,
	})
	d.send(ctx, lg, d.cfg.AdminID, text, d.kb.adminMain(al))
}

// ---------- admin text ----------

func (d *Dispatcher) onAdminText(ctx context.Context, lg zerolog.Logger, ev Event) {
	aid := ev.Sender.ID
	in, ok := d.deps.Sessions.Get(aid)
	if !ok || in.Kind != session.AwaitingReply {
		lg.Debug().Msg("admin text without pending reply ignored")
		return
	}
	l := d.locale(ctx, lg, aid)

	owner, err := d.deps.Lifecycle.Reply(ctx, in.Target, ev.Text)
	lifecycleOps.WithLabelValues("reply", services.KindOf(err)).Inc()
	if err != nil {
		d.replyFailed(ctx, lg, aid, err, l)
		return
	}
	d.deps.Sessions.Clear(aid)
	lg.Info().Int64("owner_id", owner).Msg("reply sent")

	ol := d.locale(ctx, lg, owner)
	d.send(ctx, lg, owner, d.text("admin_reply", ol, i18n.Params{"text": strings.TrimSpace(ev.Text)}), nil)
	d.send(ctx, lg, aid, d.text("admin_reply_sent", l, nil), d.kb.adminMain(l))
}

func (d *Dispatcher) replyFailed(ctx context.Context, lg zerolog.Logger, aid int64, err error, l domain.Locale) {
	menu := d.kb.adminMain(l)
	switch {
	case errors.Is(err, services.ErrEmptyText):
		d.send(ctx, lg, aid, d.text("empty_message", l, nil), menu)
		return
	case errors.Is(err, services.ErrTooLong):
		d.send(ctx, lg, aid, d.text("message_too_long", l, d.maxLenParams()), menu)
		return
	}

	d.deps.Sessions.Clear(aid)
	switch {
	case errors.Is(err, services.ErrMessageNotFound):
		d.send(ctx, lg, aid, d.text("message_not_found", l, nil), menu)
	case errors.Is(err, services.ErrNotFound):
		d.send(ctx, lg, aid, d.text("no_unanswered", l, nil), menu)
	default:
		lg.Error().Err(err).Msg("reply failed")
		d.send(ctx, lg, aid, d.text("error", l, nil), menu)
	}
}

// ---------- buttons ----------

func (d *Dispatcher) onButton(ctx context.Context, lg zerolog.Logger, ev Event) {
	d.answer(ctx, lg, ev)
	lg = lg.With().Str("token", ev.Token).Logger()

	act, err := ParseToken(ev.Token)
	if err != nil {
		lg.Warn().Err(err).Msg("bad callback token")
		return
	}

	if act.Kind == ActSetLanguage {
		l, ok := i18n.ParseLocale(act.Locale)
		if !ok {
			lg.Warn().Msg("unsupported locale requested")
			return
		}
		d.deleteMessage(ctx, lg, ev.ChatID, ev.MessageID)
		d.setLocale(ctx, lg, ev.Sender.ID, l)
		return
	}

	if !d.isAdmin(ev.Sender.ID) {
		lg.Warn().Msg("non-admin pressed an admin button")
		return
	}
	d.onAdminAction(ctx, lg, ev, act)
}

func (d *Dispatcher) onAdminAction(ctx context.Context, lg zerolog.Logger, ev Event, act Action) {
	aid := ev.Sender.ID
	l := d.locale(ctx, lg, aid)
	edit := func(text string, kb *Keyboard) {
		d.edit(ctx, lg, ev.ChatID, ev.MessageID, text, kb)
	}
	fail := func(err error) {
		lg.Error().Err(err).Msg("admin view failed")
		edit(d.text("error", l, nil), d.kb.adminMain(l))
	}

	switch act.Kind {
	case ActChangeLanguage:
		edit(d.text("choose_language", l, nil), d.kb.languages(l))

	case ActBackToMain:
		// Leaving through the menu abandons a pending reply.
		d.deps.Sessions.Clear(aid)
		edit(d.text("start_admin", l, nil), d.kb.adminMain(l))

	case ActUnanswered:
		items, err := d.deps.Triage.ListUnanswered(ctx)
		if err != nil {
			fail(err)
			return
		}
		if len(items) == 0 {
			edit(d.text("no_unanswered", l, nil), d.kb.adminMain(l))
			return
		}
		shown, prev, next := utils.Paginate(items, act.Page, d.cfg.UnansweredPageSize)
		edit(d.text("unanswered_messages", l, nil), d.kb.unanswered(shown, act.Page, prev, next, l))

	case ActViewMessage:
		m, err := d.deps.Triage.Message(ctx, act.MessageID)
		if errors.Is(err, services.ErrNotFound) {
			edit(d.text("message_not_found", l, nil), d.kb.adminMain(l))
			return
		}
		if err != nil {
			fail(err)
			return
		}
		edit(d.text("message_from", l, i18n.Params{
			"name": d.kb.authorName(*m, l),
			"type": d.deps.Texts.CategoryName(m.Category, l),
			"text": m.Body,
			"time": d.formatTime(m.CreatedAt),
		}), d.kb.messageDetail(m.MessageID, l))

	case ActReplyMessage:
		d.deps.Sessions.Set(aid, session.WantReply(domain.ToMessage(act.MessageID)))
		edit(d.text("enter_reply", l, nil), nil)

	case ActHistory:
		users, err := d.deps.Triage.Directory(ctx)
		if err != nil {
			fail(err)
			return
		}
		if len(users) == 0 {
			edit(d.text("no_history", l, nil), d.kb.adminMain(l))
			return
		}
		shown, prev, next := utils.Paginate(users, act.Page, d.cfg.HistoryPageSize)
		edit(d.text("message_history", l, nil), d.kb.directory(shown, act.Page, prev, next, l))

	case ActUserHistory:
		entries, err := d.deps.Triage.UserHistory(ctx, act.UserID)
		if err != nil {
			fail(err)
			return
		}
		active, err := d.deps.Lifecycle.HasActive(ctx, act.UserID)
		if err != nil {
			fail(err)
			return
		}
		shown, prev, next := utils.Paginate(entries, act.Page, d.cfg.HistoryPageSize)
		edit(d.renderHistory(shown, l), d.kb.userHistory(act.UserID, act.Page, prev, next, active, l))

	case ActReplyUser:
		d.deps.Sessions.Set(aid, session.WantReply(domain.ToUser(act.UserID)))
		edit(d.text("enter_reply", l, nil), nil)
	}
}

func (d *Dispatcher) renderHistory(entries []domain.HistoryEntry, l domain.Locale) string {
	var b strings.Builder
	b.WriteString(d.text("message_history", l, nil))
	b.WriteString("\n\n")
	if len(entries) == 0 {
		b.WriteString(d.text("no_messages", l, nil))
		return b.String()
	}
	for _, e := range entries {
		b.WriteString(d.text("history_entry", l, i18n.Params{
			"type": d.deps.Texts.CategoryName(e.Category, l),
			"text": e.Body,
			"time": d.formatTime(e.CreatedAt),
		}))
		if e.ReplyBody != nil {
			at := ""
			if e.RepliedAt != nil {
				at = d.formatTime(*e.RepliedAt)
			}
			b.WriteString(d.text("history_reply", l, i18n.Params{
				"label": d.text("reply", l, nil),
				"text":  *e.ReplyBody,
				"time":  at,
			}))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// ---------- language ----------

func (d *Dispatcher) chooseLanguage(ctx context.Context, lg zerolog.Logger, uid int64) {
	l := d.locale(ctx, lg, uid)
	d.send(ctx, lg, uid, d.text("choose_language", l, nil), d.kb.languages(l))
}

func (d *Dispatcher) setLocale(ctx context.Context, lg zerolog.Logger, uid int64, l domain.Locale) {
	if err := d.deps.Accounts.SetLocale(ctx, uid, l); err != nil {
		lg.Error().Err(err).Msg("set locale")
	}
	nl := d.locale(ctx, lg, uid)
	kb := d.kb.categories(nl)
	if d.isAdmin(uid) {
		kb = d.kb.adminMain(nl)
	}
	d.send(ctx, lg, uid, d.text("language_set", nl, nil), kb)
}

// ---------- helpers ----------

func (d *Dispatcher) text(key string, l domain.Locale, p i18n.Params) string {
	return d.deps.Texts.Text(key, l, p)
}

func (d *Dispatcher) maxLenParams() i18n.Params {
	return i18n.Params{"max_length": strconv.Itoa(d.cfg.MaxTextRunes)}
}

func (d *Dispatcher) locale(ctx context.Context, lg zerolog.Logger, uid int64) domain.Locale {
	l, err := d.deps.Accounts.Locale(ctx, uid)
	if err != nil {
		lg.Warn().Err(err).Int64("locale_of", uid).Msg("locale lookup failed; using default")
	}
	return l
}

func (d *Dispatcher) formatTime(t time.Time) string {
	return t.In(d.cfg.TimeLocation).Format(timeLayout)
}

func (d *Dispatcher) send(ctx context.Context, lg zerolog.Logger, chatID int64, text string, kb *Keyboard) {
	if err := d.deps.Gateway.SendText(ctx, chatID, text, kb); err != nil {
		outboundErrs.WithLabelValues("send").Inc()
		lg.Error().Err(err).Int64("chat_id", chatID).Msg("send failed")
	}
}

func (d *Dispatcher) edit(ctx context.Context, lg zerolog.Logger, chatID int64, messageID int, text string, kb *Keyboard) {
	if err := d.deps.Gateway.EditMessage(ctx, chatID, messageID, text, kb); err != nil {
		outboundErrs.WithLabelValues("edit").Inc()
		lg.Error().Err(err).Int64("chat_id", chatID).Msg("edit failed")
	}
}

func (d *Dispatcher) deleteMessage(ctx context.Context, lg zerolog.Logger, chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	if err := d.deps.Gateway.DeleteMessage(ctx, chatID, messageID); err != nil {
		outboundErrs.WithLabelValues("delete").Inc()
		lg.Warn().Err(err).Msg("delete failed")
	}
}

func (d *Dispatcher) deleteIncoming(ctx context.Context, lg zerolog.Logger, ev Event) {
	d.deleteMessage(ctx, lg, ev.ChatID, ev.MessageID)
}

func (d *Dispatcher) answer(ctx context.Context, lg zerolog.Logger, ev Event) {
	if ev.CallbackID == "" {
		return
	}
	if err := d.deps.Gateway.AnswerCallback(ctx, ev.CallbackID); err != nil {
		outboundErrs.WithLabelValues("answer").Inc()
		lg.Warn().Err(err).Msg("answer callback failed")
	}
}
