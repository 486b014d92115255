package bot

import (
	"errors"
	"testing"
)

func TestParseToken_Grammar(t *testing.T) {
	cases := []struct {
		tok  string
		want Action
	}{
		{"unanswered", Action{Kind: ActUnanswered}},
		{"unanswered_page_3", Action{Kind: ActUnanswered, Page: 3}},
		{"view_msg_12_34", Action{Kind: ActViewMessage, MessageID: 12, UserID: 34}},
		{"reply_msg_12", Action{Kind: ActReplyMessage, MessageID: 12}},
		{"history", Action{Kind: ActHistory}},
		{"history_page_2", Action{Kind: ActHistory, Page: 2}},
		{"user_777_1", Action{Kind: ActUserHistory, UserID: 777, Page: 1}},
		{"user_777", Action{Kind: ActUserHistory, UserID: 777}},
		{"reply_777", Action{Kind: ActReplyUser, UserID: 777}},
		{"back_to_main", Action{Kind: ActBackToMain}},
		{"change_language", Action{Kind: ActChangeLanguage}},
		{"set_lang_en", Action{Kind: ActSetLanguage, Locale: "en"}},
	}
	for _, tc := range cases {
		got, err := ParseToken(tc.tok)
		if err != nil {
			t.Fatalf("ParseToken(%q): %v", tc.tok, err)
		}
		if got != tc.want {
			t.Fatalf("ParseToken(%q) = %+v; want %+v", tc.tok, got, tc.want)
		}
	}
}

func TestParseToken_Rejects(t *testing.T) {
	for _, tok := range []string{
		"", "nope", "reply_", "reply_abc", "reply_msg_", "reply_msg_-1",
		"view_msg_12", "view_msg_a_b", "user_x_1", "user_1_-2",
		"history_page_x", "unanswered_page_", "set_lang_",
	} {
		if _, err := ParseToken(tok); !errors.Is(err, ErrBadToken) {
			t.Fatalf("ParseToken(%q): want ErrBadToken, got %v", tok, err)
		}
	}
}

func TestTokenEncoders_RoundTrip(t *testing.T) {
	toks := []string{
		UnansweredToken(0), UnansweredToken(4),
		ViewMessageToken(9, 8), ReplyMessageToken(9),
		HistoryToken(0), HistoryToken(2),
		UserHistoryToken(5, 3), ReplyUserToken(5),
		SetLanguageToken("ru"),
	}
	for _, tok := range toks {
		if len(tok) > 64 {
			t.Fatalf("token %q exceeds 64 bytes", tok)
		}
		if _, err := ParseToken(tok); err != nil {
			t.Fatalf("ParseToken(%q): %v", tok, err)
		}
	}
	if UnansweredToken(0) != "unanswered" || HistoryToken(0) != "history" {
		t.Fatalf("page 0 should use the bare token")
	}
	long := ViewMessageToken(1<<62, 1<<62)
	if len(long) > 64 {
		t.Fatalf("max-size token is %d bytes", len(long))
	}
}
