package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/mkovtun/go-exchange-backend/internal/config"
)

type fakeBot struct {
	sendErrs []error // consumed per Send call; nil means success
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	nextID   int
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	if len(f.sendErrs) > 0 {
		err := f.sendErrs[0]
		f.sendErrs = f.sendErrs[1:]
		if err != nil {
			return tgbotapi.Message{}, err
		}
	}
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func testChannel(t *testing.T, bot *fakeBot) (*Channel, *int) {
	t.Helper()
	builds := 0
	ch := NewChannel(config.TelegramConfig{
		BotToken:     "token",
		ChatID:       42,
		SendAttempts: 3,
		RetryDelay:   time.Second,
	}, zerolog.Nop())
	ch.newAPI = func(string) (botAPI, error) {
		builds++
		return bot, nil
	}
	ch.sleep = func(time.Duration) {}
	return ch, &builds
}

func TestParseConfirmation(t *testing.T) {
	if got := ConfirmationData("ORD-1"); got != "confirm_payment:ORD-1" {
		t.Fatalf("ConfirmationData = %q", got)
	}
	if id, ok := ParseConfirmation("confirm_payment:ORD-1"); !ok || id != "ORD-1" {
		t.Errorf("ParseConfirmation = (%q, %v)", id, ok)
	}
	for _, data := range []string{"confirm_payment:", "other:ORD-1", "", "ORD-1"} {
		if _, ok := ParseConfirmation(data); ok {
			t.Errorf("ParseConfirmation(%q) accepted", data)
		}
	}
}

func TestSend_NotConfigured(t *testing.T) {
	ch := NewChannel(config.TelegramConfig{SendAttempts: 3}, zerolog.Nop())
	if _, err := ch.Send(context.Background(), "hi", "ORD-1"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v; want ErrNotConfigured", err)
	}
}

func TestSend_Success(t *testing.T) {
	bot := &fakeBot{}
	ch, builds := testChannel(t, bot)

	id, err := ch.Send(context.Background(), "<b>new</b>", "ORD-1")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if id != 1 {
		t.Errorf("message id = %d; want 1", id)
	}
	if *builds != 1 {
		t.Errorf("client built %d times; want 1", *builds)
	}

	msg, ok := bot.sent[0].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("sent %T; want MessageConfig", bot.sent[0])
	}
	if msg.ParseMode != tgbotapi.ModeHTML {
		t.Errorf("ParseMode = %q", msg.ParseMode)
	}
	kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok || len(kb.InlineKeyboard) != 1 || len(kb.InlineKeyboard[0]) != 1 {
		t.Fatalf("ReplyMarkup = %#v", msg.ReplyMarkup)
	}
	btn := kb.InlineKeyboard[0][0]
	if btn.CallbackData == nil || *btn.CallbackData != "confirm_payment:ORD-1" {
		t.Errorf("callback data = %v", btn.CallbackData)
	}
}

func TestSend_RetriesTransientFailure(t *testing.T) {
	bot := &fakeBot{sendErrs: []error{errors.New("timeout"), errors.New("timeout"), nil}}
	ch, _ := testChannel(t, bot)

	if _, err := ch.Send(context.Background(), "hi", "ORD-1"); err != nil {
		t.Fatalf("send after retries: %v", err)
	}
	if len(bot.sent) != 3 {
		t.Errorf("attempts = %d; want 3", len(bot.sent))
	}
}

func TestSend_ExhaustsAttempts(t *testing.T) {
	bot := &fakeBot{sendErrs: []error{errors.New("down"), errors.New("down"), errors.New("down")}}
	ch, _ := testChannel(t, bot)

	_, err := ch.Send(context.Background(), "hi", "ORD-1")
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("err = %v; want ErrDeliveryFailed", err)
	}
	if len(bot.sent) != 3 {
		t.Errorf("attempts = %d; want 3", len(bot.sent))
	}
}

func TestSend_AuthErrorRebuildsClient(t *testing.T) {
	bot := &fakeBot{sendErrs: []error{&tgbotapi.Error{Code: 401, Message: "Unauthorized"}, nil}}
	ch, builds := testChannel(t, bot)

	if _, err := ch.Send(context.Background(), "hi", "ORD-1"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if *builds != 2 {
		t.Errorf("client built %d times; want 2 (rebuild after auth error)", *builds)
	}
}

func TestSend_ContextCanceled(t *testing.T) {
	bot := &fakeBot{}
	ch, _ := testChannel(t, bot)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ch.Send(ctx, "hi", "ORD-1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v; want context.Canceled", err)
	}
	if len(bot.sent) != 0 {
		t.Errorf("sent %d messages on canceled context", len(bot.sent))
	}
}

func TestEditMessage(t *testing.T) {
	bot := &fakeBot{}
	ch, _ := testChannel(t, bot)

	if err := ch.EditMessage(context.Background(), 7, "confirmed"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	edit, ok := bot.sent[0].(tgbotapi.EditMessageTextConfig)
	if !ok {
		t.Fatalf("sent %T; want EditMessageTextConfig", bot.sent[0])
	}
	if edit.MessageID != 7 || edit.Text != "confirmed" {
		t.Errorf("edit = %+v", edit)
	}
}

func TestAnswerCallback(t *testing.T) {
	bot := &fakeBot{}
	ch, _ := testChannel(t, bot)

	if err := ch.AnswerCallback(context.Background(), "cb-1", "done"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if len(bot.requests) != 1 {
		t.Fatalf("requests = %d; want 1", len(bot.requests))
	}
}
