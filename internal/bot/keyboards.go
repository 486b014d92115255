// Keyboard rendering for the user and admin views. Labels come from the
// i18n catalog; tokens from tokens.go.
package bot

import (
	"strconv"

	"github.com/tbourn/go-feedback-bot/internal/domain"
	"github.com/tbourn/go-feedback-bot/internal/i18n"
)

// keyboards renders every keyboard the bot shows, localized.
type keyboards struct {
	texts *i18n.Catalog
}

func (k keyboards) t(key string, l domain.Locale) string { return k.texts.Text(key, l, nil) }

// categories is the user's reply keyboard: one row per category plus the
// language switch.
func (k keyboards) categories(l domain.Locale) *Keyboard {
	rows := make([][]Button, 0, len(domain.Categories)+1)
	for _, c := range domain.Categories {
		rows = append(rows, []Button{{Label: k.t("message_types."+string(c)+".button", l)}})
	}
	rows = append(rows, []Button{{Label: k.t("change_language", l)}})
	return &Keyboard{Kind: KeyboardReply, Rows: rows}
}

// adminMain is the administrator's panel.
func (k keyboards) adminMain(l domain.Locale) *Keyboard {
	return &Keyboard{Kind: KeyboardInline, Rows: [][]Button{
		{{Label: k.t("buttons.unanswered", l), Token: UnansweredToken(0)}},
		{{Label: k.t("buttons.history", l), Token: HistoryToken(0)}},
		{{Label: k.t("change_language", l), Token: tokChangeLanguage}},
	}}
}

// languages lists every supported locale, labelled in l.
func (k keyboards) languages(l domain.Locale) *Keyboard {
	rows := make([][]Button, 0, len(domain.Locales))
	for _, code := range domain.Locales {
		rows = append(rows, []Button{{
			Label: k.t("languages."+string(code), l),
			Token: SetLanguageToken(string(code)),
		}})
	}
	return &Keyboard{Kind: KeyboardInline, Rows: rows}
}

// messageDetail offers to answer one message.
func (k keyboards) messageDetail(messageID int64, l domain.Locale) *Keyboard {
	return &Keyboard{Kind: KeyboardInline, Rows: [][]Button{
		{{Label: k.t("buttons.reply", l), Token: ReplyMessageToken(messageID)}},
		k.backRow(l),
	}}
}

// unanswered lists one page of the queue.
func (k keyboards) unanswered(items []domain.MessageSummary, page int, hasPrev, hasNext bool, l domain.Locale) *Keyboard {
	rows := make([][]Button, 0, len(items)+2)
	for _, m := range items {
		label := k.texts.Text("unanswered_item", l, i18n.Params{
			"name": k.authorName(m, l),
			"type": k.texts.CategoryName(m.Category, l),
		})
		rows = append(rows, []Button{{Label: label, Token: ViewMessageToken(m.MessageID, m.UserID)}})
	}
	if nav := k.pager(page, hasPrev, hasNext, UnansweredToken, l); nav != nil {
		rows = append(rows, nav)
	}
	rows = append(rows, k.backRow(l))
	return &Keyboard{Kind: KeyboardInline, Rows: rows}
}

// directory lists one page of users who ever wrote.
func (k keyboards) directory(users []domain.User, page int, hasPrev, hasNext bool, l domain.Locale) *Keyboard {
	rows := make([][]Button, 0, len(users)+2)
	for _, u := range users {
		rows = append(rows, []Button{{Label: k.directoryName(u, l), Token: UserHistoryToken(u.ID, 0)}})
	}
	if nav := k.pager(page, hasPrev, hasNext, HistoryToken, l); nav != nil {
		rows = append(rows, nav)
	}
	rows = append(rows, k.backRow(l))
	return &Keyboard{Kind: KeyboardInline, Rows: rows}
}

// userHistory pages through one user's history; the reply button is only
// offered while the user has an unanswered message.
func (k keyboards) userHistory(userID int64, page int, hasPrev, hasNext, canReply bool, l domain.Locale) *Keyboard {
	rows := make([][]Button, 0, 3)
	tok := func(p int) string { return UserHistoryToken(userID, p) }
	if nav := k.pager(page, hasPrev, hasNext, tok, l); nav != nil {
		rows = append(rows, nav)
	}
	if canReply {
		rows = append(rows, []Button{{Label: k.t("buttons.reply", l), Token: ReplyUserToken(userID)}})
	}
	rows = append(rows, k.backRow(l))
	return &Keyboard{Kind: KeyboardInline, Rows: rows}
}

func (k keyboards) pager(page int, hasPrev, hasNext bool, tok func(int) string, l domain.Locale) []Button {
	var row []Button
	if hasPrev {
		row = append(row, Button{Label: k.t("prev_page", l), Token: tok(page - 1)})
	}
	if hasNext {
		row = append(row, Button{Label: k.t("next_page", l), Token: tok(page + 1)})
	}
	return row
}

func (k keyboards) backRow(l domain.Locale) []Button {
	return []Button{{Label: k.t("back", l), Token: tokBackToMain}}
}

// authorName is the name shown for a message author: first name, else
// username, else the localized placeholder.
func (k keyboards) authorName(m domain.MessageSummary, l domain.Locale) string {
	u := domain.User{ID: m.UserID, Username: m.Username, FirstName: m.FirstName}
	if n := u.DisplayName(); n != "" {
		return n
	}
	return k.t("no_name", l)
}

// directoryName is like authorName but appends the raw id for nameless users
// so they stay distinguishable.
func (k keyboards) directoryName(u domain.User, l domain.Locale) string {
	if n := u.DisplayName(); n != "" {
		return n
	}
	return k.t("no_name", l) + " " + strconv.FormatInt(u.ID, 10)
}
