// Package telegram connects the conversation machine to a Telegram bot.
package telegram

import (
	"context"
	"log"
	"strconv"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"devecho/bot"
)

// Transport is the address transport name used for Telegram users.
const Transport = "tg"

// maxMessageLen is Telegram's limit for one text message.
const maxMessageLen = 4096

// Sender is the subset of *tgbotapi.BotAPI used for outbound messages.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot 负责长轮询收取更新并把回复发回 Telegram。
type Bot struct {
	api     *tgbotapi.BotAPI
	sender  Sender
	timeout int
	logger  *log.Logger
}

// New logs in with token.
func New(token string, debug bool, logger *log.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	api.Debug = debug
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf("[telegram] authorized as @%s", api.Self.UserName)
	return &Bot{api: api, sender: api, timeout: 60, logger: logger}, nil
}

// NewWithSender builds a send-only Bot, e.g. for tests.
func NewWithSender(s Sender, logger *log.Logger) *Bot {
	if logger == nil {
		logger = log.Default()
	}
	return &Bot{sender: s, logger: logger}
}

// Run polls for updates until ctx is cancelled, submitting each to d.
func (b *Bot) Run(ctx context.Context, d *bot.Dispatcher) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.timeout
	updates := b.api.GetUpdatesChan(u)
	b.logger.Printf("[telegram] polling for updates")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			ev, ok := toEvent(upd)
			if !ok {
				continue
			}
			d.Submit(ctx, ev)
		}
	}
}

// toEvent maps an update to an event. Non text updates are dropped.
func toEvent(upd tgbotapi.Update) (bot.Event, bool) {
	switch {
	case upd.CallbackQuery != nil:
		q := upd.CallbackQuery
		if q.From == nil || q.Message == nil || q.Message.Chat == nil {
			return bot.Event{}, false
		}
		return bot.Event{
			Address:    address(q.From.ID, q.Message.Chat.ID),
			FirstName:  q.From.FirstName,
			Callback:   q.Data,
			CallbackID: q.ID,
			MessageID:  q.Message.MessageID,
		}, true
	case upd.Message != nil:
		m := upd.Message
		if m.From == nil || m.Chat == nil || strings.TrimSpace(m.Text) == "" {
			return bot.Event{}, false
		}
		return bot.Event{
			Address:   address(m.From.ID, m.Chat.ID),
			FirstName: m.From.FirstName,
			Text:      m.Text,
			MessageID: m.MessageID,
		}, true
	}
	return bot.Event{}, false
}

func address(userID, chatID int64) bot.Address {
	return bot.Address{Transport: Transport, UserID: strconv.FormatInt(userID, 10), ChatID: chatID}
}

// Reply answers ev. Button presses edit the message that carried the buttons.
func (b *Bot) Reply(ev bot.Event, r bot.Reply) {
	if ev.CallbackID != "" {
		if _, err := b.sender.Request(tgbotapi.NewCallback(ev.CallbackID, "")); err != nil {
			b.logger.Printf("[telegram] answer callback: %v", err)
		}
		if ev.MessageID != 0 && utf8.RuneCountInString(r.Text) <= maxMessageLen {
			if _, err := b.sender.Send(editMessage(ev.Address.ChatID, ev.MessageID, r)); err != nil {
				b.logger.Printf("[telegram] edit message: %v", err)
			}
			return
		}
	}
	if err := b.send(ev.Address.ChatID, r); err != nil {
		b.logger.Printf("[telegram] reply to %d: %v", ev.Address.ChatID, err)
	}
}

// Notify sends an unsolicited message, such as run progress.
func (b *Bot) Notify(_ context.Context, addr bot.Address, r bot.Reply) error {
	return b.send(addr.ChatID, r)
}

func (b *Bot) send(chatID int64, r bot.Reply) error {
	parts := splitText(r.Text, maxMessageLen)
	for i, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		if i == len(parts)-1 && len(r.Buttons) > 0 {
			msg.ReplyMarkup = keyboard(r.Buttons)
		}
		if _, err := b.sender.Send(msg); err != nil {
			return err
		}
	}
	return nil
}

func editMessage(chatID int64, messageID int, r bot.Reply) tgbotapi.Chattable {
	if len(r.Buttons) > 0 {
		return tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, r.Text, keyboard(r.Buttons))
	}
	return tgbotapi.NewEditMessageText(chatID, messageID, r.Text)
}

func keyboard(rows [][]bot.Button) tgbotapi.InlineKeyboardMarkup {
	out := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		var btns []tgbotapi.InlineKeyboardButton
		for _, btn := range row {
			if btn.URL != "" {
				btns = append(btns, tgbotapi.NewInlineKeyboardButtonURL(btn.Label, btn.URL))
				continue
			}
			btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(btn.Label, btn.Data))
		}
		out = append(out, tgbotapi.NewInlineKeyboardRow(btns...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(out...)
}

// splitText cuts s into pieces of at most limit runes, preferring line breaks.
func splitText(s string, limit int) []string {
	if utf8.RuneCountInString(s) <= limit {
		return []string{s}
	}
	var parts []string
	runes := []rune(s)
	for len(runes) > limit {
		cut := limit
		for i := limit - 1; i > limit/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		parts = append(parts, strings.TrimRight(string(runes[:cut]), "\n"))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}
