// Package session keeps the short-lived, per-user conversational intent of
// the bot: which category a user picked before typing their message, and
// which message or user the administrator is about to answer.
//
// Intents are process-local and intentionally not persisted; a restart drops
// them and users simply pick again. Each intent expires after a TTL so an
// abandoned interaction does not capture an unrelated later message.
package session

import (
	"sync"
	"time"

	"github.com/tbourn/go-feedback-bot/internal/domain"
)

// Kind identifies what the next free-text message from a user means.
type Kind int

const (
	// None means free text is not expected.
	None Kind = iota
	// AwaitingMessage means the next text is the body of a new message.
	AwaitingMessage
	// AwaitingReply means the next text (from the administrator) is a reply.
	AwaitingReply
)

// String returns a short label for logs.
func (k Kind) String() string {
	switch k {
	case AwaitingMessage:
		return "awaiting_message"
	case AwaitingReply:
		return "awaiting_reply"
	default:
		return "none"
	}
}

// Intent is one pending interaction. Exactly one of Category (for
// AwaitingMessage) or Target (for AwaitingReply) is meaningful.
type Intent struct {
	Kind     Kind
	Category domain.Category
	Target   domain.ReplyTarget
	SetAt    time.Time
}

// WantMessage builds an AwaitingMessage intent.
func WantMessage(c domain.Category) Intent {
	return Intent{Kind: AwaitingMessage, Category: c}
}

// WantReply builds an AwaitingReply intent.
func WantReply(t domain.ReplyTarget) Intent {
	return Intent{Kind: AwaitingReply, Target: t}
}

// DefaultTTL is used when NewTracker is given a non-positive ttl.
const DefaultTTL = 30 * time.Minute

// Tracker stores at most one intent per user. Setting a new intent replaces
// the previous one. It is safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	intents map[int64]Intent
	ttl     time.Duration

	// now is swapped in tests.
	now func() time.Time
}

// NewTracker returns an empty tracker whose intents live for ttl.
func NewTracker(ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tracker{
		intents: make(map[int64]Intent),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Set records in as userID's intent, replacing any previous one. Setting a
// None intent is the same as Clear.
func (t *Tracker) Set(userID int64, in Intent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if in.Kind == None {
		delete(t.intents, userID)
		return
	}
	in.SetAt = t.now()
	t.intents[userID] = in
}

// Get returns userID's live intent. Expired intents are dropped and reported
// as absent.
func (t *Tracker) Get(userID int64) (Intent, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	in, ok := t.intents[userID]
	if !ok {
		return Intent{}, false
	}
	if t.now().Sub(in.SetAt) > t.ttl {
		delete(t.intents, userID)
		return Intent{}, false
	}
	return in, true
}

// Clear forgets userID's intent.
func (t *Tracker) Clear(userID int64) {
	t.mu.Lock()
	delete(t.intents, userID)
	t.mu.Unlock()
}

// Sweep removes every expired intent and returns how many were removed.
func (t *Tracker) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	n := 0
	for id, in := range t.intents {
		if now.Sub(in.SetAt) > t.ttl {
			delete(t.intents, id)
			n++
		}
	}
	return n
}

// Len returns the number of stored intents, including expired ones not yet
// swept.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.intents)
}
