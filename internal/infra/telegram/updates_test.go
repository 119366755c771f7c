package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func commandMessage(text string, cmdLen int) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 5,
		From:      &tgbotapi.User{ID: 42, UserName: "admin"},
		Chat:      &tgbotapi.Chat{ID: 42},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}},
	}
}

func TestRouteCommand(t *testing.T) {
	var got CommandUpdate
	handlers := Handlers{OnCommand: func(_ context.Context, u CommandUpdate) error {
		got = u
		return nil
	}}

	update := tgbotapi.Update{Message: commandMessage("/start_upload@drop_bot  3 ", len("/start_upload@drop_bot"))}
	if err := handlers.Route(context.Background(), update); err != nil {
		t.Fatalf("route: %v", err)
	}
	if got.Command != "start_upload" || got.Args != "3" || got.UserID != 42 || got.MessageID != 5 {
		t.Fatalf("unexpected command update: %+v", got)
	}
}

func TestRoutePhotoKeepsLargestSize(t *testing.T) {
	var got PhotoUpdate
	handlers := Handlers{OnPhoto: func(_ context.Context, u PhotoUpdate) error {
		got = u
		return nil
	}}

	update := tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 9,
		From:      &tgbotapi.User{ID: 1},
		Chat:      &tgbotapi.Chat{ID: 1},
		Photo: []tgbotapi.PhotoSize{
			{FileID: "small", Width: 90},
			{FileID: "large", Width: 1280},
		},
	}}
	if err := handlers.Route(context.Background(), update); err != nil {
		t.Fatalf("route: %v", err)
	}
	if got.FileID != "large" || got.MessageID != 9 {
		t.Fatalf("unexpected photo update: %+v", got)
	}
}

func TestRouteVideoAndText(t *testing.T) {
	var video VideoUpdate
	var text TextUpdate
	handlers := Handlers{
		OnVideo: func(_ context.Context, u VideoUpdate) error { video = u; return nil },
		OnText:  func(_ context.Context, u TextUpdate) error { text = u; return nil },
	}

	from := &tgbotapi.User{ID: 3}
	chat := &tgbotapi.Chat{ID: 3}
	if err := handlers.Route(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1, From: from, Chat: chat, Video: &tgbotapi.Video{FileID: "vid"},
	}}); err != nil {
		t.Fatalf("route video: %v", err)
	}
	if err := handlers.Route(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 2, From: from, Chat: chat, Text: "  hello ",
	}}); err != nil {
		t.Fatalf("route text: %v", err)
	}

	if video.FileID != "vid" {
		t.Fatalf("unexpected video update: %+v", video)
	}
	if text.Text != "hello" {
		t.Fatalf("unexpected text update: %+v", text)
	}
}

func TestRouteIgnoresUpdatesWithoutSender(t *testing.T) {
	called := false
	handlers := Handlers{OnText: func(context.Context, TextUpdate) error { called = true; return nil }}

	for _, update := range []tgbotapi.Update{
		{},
		{Message: &tgbotapi.Message{Text: "channel post", Chat: &tgbotapi.Chat{ID: -100}}},
	} {
		if err := handlers.Route(context.Background(), update); err != nil {
			t.Fatalf("route: %v", err)
		}
	}
	if called {
		t.Fatalf("handler must not run without a sender")
	}
}

func textUpdate(userID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID}, Chat: &tgbotapi.Chat{ID: userID}, Text: text,
	}}
}

func TestDispatcherBoundsConcurrencyAcrossUsers(t *testing.T) {
	var inFlight, peak int32
	release := make(chan struct{})
	handlers := Handlers{OnText: func(context.Context, TextUpdate) error {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		<-release
		atomic.AddInt32(&inFlight, -1)
		return errors.New("logged, not returned")
	}}

	dispatcher := NewDispatcher(handlers, 2, nil)
	for userID := int64(1); userID <= 5; userID++ {
		dispatcher.Dispatch(context.Background(), textUpdate(userID, "hi"))
	}

	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&inFlight) < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	dispatcher.Wait()

	if got := atomic.LoadInt32(&peak); got != 2 {
		t.Fatalf("expected 2 concurrent handlers for distinct users, saw %d", got)
	}
}

func TestDispatcherKeepsPerUserOrder(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[int64][]string)
	handlers := Handlers{OnText: func(_ context.Context, u TextUpdate) error {
		time.Sleep(time.Millisecond)
		mu.Lock()
		seen[u.UserID] = append(seen[u.UserID], u.Text)
		mu.Unlock()
		return nil
	}}

	dispatcher := NewDispatcher(handlers, 8, nil)
	var want []string
	for i := 0; i < 20; i++ {
		text := strconv.Itoa(i)
		want = append(want, text)
		dispatcher.Dispatch(context.Background(), textUpdate(1, text))
		dispatcher.Dispatch(context.Background(), textUpdate(2, text))
	}
	dispatcher.Wait()

	for _, userID := range []int64{1, 2} {
		if got := strings.Join(seen[userID], ","); got != strings.Join(want, ",") {
			t.Fatalf("user %d handled out of order: %s", userID, got)
		}
	}
}

func TestDispatchDropsUpdatesAfterContextDone(t *testing.T) {
	block := make(chan struct{})
	var handled int32
	handlers := Handlers{OnText: func(context.Context, TextUpdate) error {
		atomic.AddInt32(&handled, 1)
		<-block
		return nil
	}}
	dispatcher := NewDispatcher(handlers, 1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	dispatcher.Dispatch(ctx, textUpdate(1, "first"))
	dispatcher.Dispatch(ctx, textUpdate(2, "queued"))

	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&handled) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	dispatcher.Dispatch(ctx, textUpdate(3, "late"))
	close(block)

	done := make(chan struct{})
	go func() {
		dispatcher.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("dispatcher should drain once ctx is done")
	}
	if got := atomic.LoadInt32(&handled); got != 1 {
		t.Fatalf("only the update already running should be handled, got %d", got)
	}
}

func TestBuildURLKeyboardSkipsEmpty(t *testing.T) {
	markup := BuildURLKeyboard([][]URLButton{
		{{Text: "Watch ad", URL: "https://ads.example.com"}},
		{{Text: "no url"}},
		{{Text: "Unlock", URL: "https://t.me/bot?start=x"}},
	})

	if len(markup.InlineKeyboard) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(markup.InlineKeyboard))
	}
	btn := markup.InlineKeyboard[1][0]
	if btn.Text != "Unlock" || btn.URL == nil || *btn.URL != "https://t.me/bot?start=x" {
		t.Fatalf("unexpected button: %+v", btn)
	}
}

func TestNilBotReturnsNotInitialized(t *testing.T) {
	var bot *Bot
	if _, err := bot.SendText(context.Background(), 1, "x"); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if err := bot.DeleteMessage(context.Background(), 1, 1); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}
