// Callback tokens.
//
// Inline buttons carry one of these strings as callback data:
//
//	unanswered | unanswered_page_<n>
//	view_msg_<mid>_<uid> | reply_msg_<mid>
//	history | history_page_<n> | user_<uid>_<page> | reply_<uid>
//	back_to_main | change_language | set_lang_<code>
//
// Pages are zero-based; page 0 uses the short form.
package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ActionKind enumerates what a callback token asks for.
type ActionKind int

const (
	ActUnanswered ActionKind = iota + 1
	ActViewMessage
	ActReplyMessage
	ActHistory
	ActUserHistory
	ActReplyUser
	ActBackToMain
	ActChangeLanguage
	ActSetLanguage
)

// Action is a decoded callback token.
type Action struct {
	Kind      ActionKind
	MessageID int64
	UserID    int64
	Page      int
	Locale    string
}

// ErrBadToken is returned by ParseToken for data that matches no grammar
// rule.
var ErrBadToken = errors.New("bot: malformed callback token")

// Callback token grammar. Tokens must stay within the transport's 64-byte
// callback limit, which every form below does for 64-bit ids.
const (
	tokUnanswered     = "unanswered"
	tokUnansweredPage = "unanswered_page_"
	tokViewMessage    = "view_msg_"
	tokReplyMessage   = "reply_msg_"
	tokHistory        = "history"
	tokHistoryPage    = "history_page_"
	tokUser           = "user_"
	tokReplyUser      = "reply_"
	tokBackToMain     = "back_to_main"
	tokChangeLanguage = "change_language"
	tokSetLanguage    = "set_lang_"
)

// UnansweredToken opens page of the unanswered queue.
func UnansweredToken(page int) string {
	if page <= 0 {
		return tokUnanswered
	}
	return tokUnansweredPage + strconv.Itoa(page)
}

// ViewMessageToken opens the detail view of messageID, written by userID.
func ViewMessageToken(messageID, userID int64) string {
	return fmt.Sprintf("%s%d_%d", tokViewMessage, messageID, userID)
}

// ReplyMessageToken starts a reply bound to messageID.
func ReplyMessageToken(messageID int64) string {
	return tokReplyMessage + strconv.FormatInt(messageID, 10)
}

// HistoryToken opens page of the user directory.
func HistoryToken(page int) string {
	if page <= 0 {
		return tokHistory
	}
	return tokHistoryPage + strconv.Itoa(page)
}

// UserHistoryToken opens page of userID's history.
func UserHistoryToken(userID int64, page int) string {
	return fmt.Sprintf("%s%d_%d", tokUser, userID, page)
}

// ReplyUserToken starts a reply bound to userID's latest unanswered message.
func ReplyUserToken(userID int64) string {
	return tokReplyUser + strconv.FormatInt(userID, 10)
}

// SetLanguageToken switches the presser's locale to code.
func SetLanguageToken(code string) string { return tokSetLanguage + code }

// ParseToken decodes callback data. Prefixes are matched longest-first so
// "reply_msg_7" is never read as a reply to user "msg_7".
func ParseToken(tok string) (Action, error) {
	switch tok {
	case tokUnanswered:
		return Action{Kind: ActUnanswered}, nil
	case tokHistory:
		return Action{Kind: ActHistory}, nil
	case tokBackToMain:
		return Action{Kind: ActBackToMain}, nil
	case tokChangeLanguage:
		return Action{Kind: ActChangeLanguage}, nil
	}

	if rest, ok := strings.CutPrefix(tok, tokUnansweredPage); ok {
		page, err := parsePage(rest)
		return Action{Kind: ActUnanswered, Page: page}, err
	}
	if rest, ok := strings.CutPrefix(tok, tokHistoryPage); ok {
		page, err := parsePage(rest)
		return Action{Kind: ActHistory, Page: page}, err
	}
	if rest, ok := strings.CutPrefix(tok, tokViewMessage); ok {
		mid, uid, err := parsePair(rest)
		return Action{Kind: ActViewMessage, MessageID: mid, UserID: uid}, err
	}
	if rest, ok := strings.CutPrefix(tok, tokReplyMessage); ok {
		mid, err := parseID(rest)
		return Action{Kind: ActReplyMessage, MessageID: mid}, err
	}
	if rest, ok := strings.CutPrefix(tok, tokReplyUser); ok {
		uid, err := parseID(rest)
		return Action{Kind: ActReplyUser, UserID: uid}, err
	}
	if rest, ok := strings.CutPrefix(tok, tokUser); ok {
		// user_<uid> without a page is accepted as page 0.
		idPart, pagePart, hasPage := strings.Cut(rest, "_")
		uid, err := parseID(idPart)
		if err != nil {
			return Action{}, err
		}
		page := 0
		if hasPage {
			if page, err = parsePage(pagePart); err != nil {
				return Action{}, err
			}
		}
		return Action{Kind: ActUserHistory, UserID: uid, Page: page}, nil
	}
	if rest, ok := strings.CutPrefix(tok, tokSetLanguage); ok && rest != "" {
		return Action{Kind: ActSetLanguage, Locale: rest}, nil
	}
	return Action{}, fmt.Errorf("%w: %q", ErrBadToken, tok)
}

func parseID(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: bad id %q", ErrBadToken, s)
	}
	return n, nil
}

func parsePage(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: bad page %q", ErrBadToken, s)
	}
	return n, nil
}

func parsePair(s string) (int64, int64, error) {
	a, b, ok := strings.Cut(s, "_")
	if !ok {
		return 0, 0, fmt.Errorf("%w: want <id>_<id>, got %q", ErrBadToken, s)
	}
	x, err := parseID(a)
	if err != nil {
		return 0, 0, err
	}
	y, err := parseID(b)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}
