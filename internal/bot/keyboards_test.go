package bot

import (
	"testing"

	"github.com/tbourn/go-feedback-bot/internal/domain"
	"github.com/tbourn/go-feedback-bot/internal/i18n"
)

func TestKeyboards_CategoriesAreReplyRows(t *testing.T) {
	k := keyboards{texts: i18n.MustLoad()}
	kb := k.categories(domain.LocaleEN)
	if kb.Kind != KeyboardReply {
		t.Fatalf("kind = %v", kb.Kind)
	}
	want := []string{"💡 Suggestion", "🚫 Complaint", "💬 Message", "🌐 Change language"}
	if len(kb.Rows) != len(want) {
		t.Fatalf("rows = %d", len(kb.Rows))
	}
	for i, w := range want {
		if got := kb.Rows[i][0].Label; got != w {
			t.Fatalf("row %d = %q; want %q", i, got, w)
		}
		if kb.Rows[i][0].Token != "" {
			t.Fatalf("reply buttons carry no token")
		}
	}
}

func TestKeyboards_PagerOnlyShowsAvailableDirections(t *testing.T) {
	k := keyboards{texts: i18n.MustLoad()}

	if nav := k.pager(0, false, false, HistoryToken, domain.LocaleRU); nav != nil {
		t.Fatalf("single page should have no pager, got %+v", nav)
	}
	nav := k.pager(1, true, true, HistoryToken, domain.LocaleRU)
	if len(nav) != 2 || nav[0].Token != "history" || nav[1].Token != "history_page_2" {
		t.Fatalf("pager = %+v", nav)
	}
}

func TestKeyboards_NamesForNamelessAuthors(t *testing.T) {
	texts := i18n.MustLoad()
	k := keyboards{texts: texts}
	noName := texts.Text("no_name", domain.LocaleRU, nil)

	if got := k.authorName(domain.MessageSummary{UserID: 5, Username: "neo"}, domain.LocaleRU); got != "neo" {
		t.Fatalf("authorName = %q", got)
	}
	if got := k.authorName(domain.MessageSummary{UserID: 5}, domain.LocaleRU); got != noName {
		t.Fatalf("authorName nameless = %q", got)
	}
	if got := k.directoryName(domain.User{ID: 5}, domain.LocaleRU); got != noName+" 5" {
		t.Fatalf("directoryName nameless = %q", got)
	}
}

func TestKeyboards_UserHistoryReplyButton(t *testing.T) {
	k := keyboards{texts: i18n.MustLoad()}

	kb := k.userHistory(7, 0, false, true, true, domain.LocaleEN)
	if got := tokens(kb); len(got) != 3 || got[0] != "user_7_1" || got[1] != "reply_7" || got[2] != "back_to_main" {
		t.Fatalf("tokens = %v", got)
	}
	kb = k.userHistory(7, 0, false, false, false, domain.LocaleEN)
	if got := tokens(kb); len(got) != 1 || got[0] != "back_to_main" {
		t.Fatalf("tokens idle = %v", got)
	}
}
