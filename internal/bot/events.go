// Package bot routes inbound chat events to the lifecycle, triage, and
// account services and renders the results back through a Gateway.
//
// The package is transport-agnostic: Telegram specifics live in
// internal/telegram, which converts updates into Events and implements
// Gateway.
package bot

import "github.com/tbourn/go-feedback-bot/internal/domain"

// EventKind distinguishes the three inbound event shapes.
type EventKind int

const (
	// EventText is a free-text message.
	EventText EventKind = iota + 1
	// EventCommand is a slash command such as /start.
	EventCommand
	// EventButton is a press on an inline keyboard button.
	EventButton
)

// String returns a short label for logs and metrics.
func (k EventKind) String() string {
	switch k {
	case EventText:
		return "text"
	case EventCommand:
		return "command"
	case EventButton:
		return "button"
	default:
		return "unknown"
	}
}

// Sender identifies who produced an event.
type Sender struct {
	ID           int64
	Username     string
	FirstName    string
	LastName     string
	LanguageCode string
}

// User converts the sender into the row registered on first contact.
func (s Sender) User() domain.User {
	return domain.User{
		ID:        s.ID,
		Username:  s.Username,
		FirstName: s.FirstName,
		LastName:  s.LastName,
	}
}

// Event is one inbound interaction.
//
// Field use by kind:
//   - EventText: Text is the message body; MessageID the incoming message.
//   - EventCommand: Command is the name without the slash, Args the rest of
//     the line; MessageID the incoming message.
//   - EventButton: Token is the callback data, CallbackID must be
//     acknowledged, MessageID is the message carrying the keyboard.
type Event struct {
	// UpdateID is the transport's delivery id, used to drop re-deliveries.
	// Zero disables de-duplication for the event.
	UpdateID int64

	Kind       EventKind
	Sender     Sender
	ChatID     int64
	MessageID  int
	Text       string
	Command    string
	Args       string
	CallbackID string
	Token      string
}
