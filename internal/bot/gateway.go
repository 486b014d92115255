// Outbound port: the effects the dispatcher asks of the chat transport.
package bot

import "context"

// KeyboardKind selects how a keyboard is attached to an outbound message.
type KeyboardKind int

const (
	// KeyboardInline is attached to the message; buttons carry tokens.
	KeyboardInline KeyboardKind = iota + 1
	// KeyboardReply replaces the user's input keyboard; pressing a button
	// sends its label as text.
	KeyboardReply
	// KeyboardRemove hides a previously shown reply keyboard.
	KeyboardRemove
)

// Button is one keyboard button. Token is ignored for reply keyboards.
type Button struct {
	Label string
	Token string
}

// Keyboard is an opaque keyboard description rendered by the Gateway.
type Keyboard struct {
	Kind KeyboardKind
	Rows [][]Button
}

// RemoveKeyboard hides the reply keyboard.
var RemoveKeyboard = &Keyboard{Kind: KeyboardRemove}

// Gateway is the outbound side of the chat transport. A nil keyboard means
// "leave the keyboard as it is" for SendText and "no keyboard" for
// EditMessage.
type Gateway interface {
	SendText(ctx context.Context, chatID int64, text string, kb *Keyboard) error
	EditMessage(ctx context.Context, chatID int64, messageID int, text string, kb *Keyboard) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	AnswerCallback(ctx context.Context, callbackID string) error
}
