package telegram

import (
	"context"
	"io"
	"log"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"devecho/bot"
)

type fakeSender struct {
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func TestToEventMessage(t *testing.T) {
	upd := tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 9,
		From:      &tgbotapi.User{ID: 42, FirstName: "Sam"},
		Chat:      &tgbotapi.Chat{ID: 1001},
		Text:      "/new",
	}}
	ev, ok := toEvent(upd)
	if !ok {
		t.Fatal("expected event")
	}
	want := bot.Address{Transport: "tg", UserID: "42", ChatID: 1001}
	if ev.Address != want || ev.Text != "/new" || ev.FirstName != "Sam" || ev.Callback != "" {
		t.Fatalf("event = %+v", ev)
	}
}

func TestToEventCallback(t *testing.T) {
	upd := tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		From:    &tgbotapi.User{ID: 42},
		Message: &tgbotapi.Message{MessageID: 77, Chat: &tgbotapi.Chat{ID: 1001}},
		Data:    "tone:casual",
	}}
	ev, ok := toEvent(upd)
	if !ok || ev.Callback != "tone:casual" || ev.CallbackID != "cb-1" || ev.MessageID != 77 {
		t.Fatalf("event = %+v, ok = %v", ev, ok)
	}
	if _, ok := toEvent(tgbotapi.Update{Message: &tgbotapi.Message{From: &tgbotapi.User{ID: 1}, Chat: &tgbotapi.Chat{ID: 1}}}); ok {
		t.Fatal("empty text should be dropped")
	}
	if _, ok := toEvent(tgbotapi.Update{}); ok {
		t.Fatal("empty update should be dropped")
	}
}

func TestNotifyWithButtons(t *testing.T) {
	fs := &fakeSender{}
	b := NewWithSender(fs, log.New(io.Discard, "", 0))
	err := b.Notify(context.Background(), bot.Address{ChatID: 5}, bot.Reply{
		Text:    "Select a post",
		Buttons: [][]bot.Button{{{Label: "Post 1", Data: "post:0"}}},
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	msg, ok := fs.sent[0].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("sent %T", fs.sent[0])
	}
	if msg.ChatID != 5 || msg.Text != "Select a post" {
		t.Fatalf("msg = %+v", msg)
	}
	kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok || kb.InlineKeyboard[0][0].Text != "Post 1" || *kb.InlineKeyboard[0][0].CallbackData != "post:0" {
		t.Fatalf("markup = %+v", msg.ReplyMarkup)
	}
}

func TestURLButton(t *testing.T) {
	kb := keyboard([][]bot.Button{{{Label: "Connect LinkedIn Account", URL: "https://www.linkedin.com/oauth/v2/authorization?state=s"}}})
	btn := kb.InlineKeyboard[0][0]
	if btn.URL == nil || *btn.URL != "https://www.linkedin.com/oauth/v2/authorization?state=s" {
		t.Fatalf("button = %+v", btn)
	}
	if btn.CallbackData != nil {
		t.Fatalf("url button carries callback data %q", *btn.CallbackData)
	}
}

func TestReplyToCallbackEditsMessage(t *testing.T) {
	fs := &fakeSender{}
	b := NewWithSender(fs, log.New(io.Discard, "", 0))
	b.Reply(bot.Event{Address: bot.Address{ChatID: 5}, CallbackID: "cb", MessageID: 3}, bot.Reply{Text: "Tone set"})

	if len(fs.requests) != 1 {
		t.Fatalf("callback not answered")
	}
	edit, ok := fs.sent[0].(tgbotapi.EditMessageTextConfig)
	if !ok || edit.MessageID != 3 || edit.Text != "Tone set" {
		t.Fatalf("sent %#v", fs.sent[0])
	}
}

func TestSplitText(t *testing.T) {
	long := strings.Repeat("line of text\n", 50)
	parts := splitText(long, 100)
	if len(parts) < 2 {
		t.Fatalf("parts = %d", len(parts))
	}
	for _, p := range parts {
		if len([]rune(p)) > 100 {
			t.Fatalf("part too long: %d", len([]rune(p)))
		}
	}
	if got := splitText("short", 100); len(got) != 1 || got[0] != "short" {
		t.Fatalf("short = %q", got)
	}
}
