package telegram

import (
	"context"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type CommandUpdate struct {
	ChatID    int64
	UserID    int64
	Username  string
	MessageID int
	Command   string
	Args      string
}

type PhotoUpdate struct {
	ChatID    int64
	UserID    int64
	MessageID int
	FileID    string
}

type VideoUpdate struct {
	ChatID    int64
	UserID    int64
	MessageID int
	FileID    string
}

type TextUpdate struct {
	ChatID    int64
	UserID    int64
	MessageID int
	Text      string
}

type Handlers struct {
	OnCommand func(context.Context, CommandUpdate) error
	OnPhoto   func(context.Context, PhotoUpdate) error
	OnVideo   func(context.Context, VideoUpdate) error
	OnText    func(context.Context, TextUpdate) error
}

// Route calls the handler matching the update kind. Updates without a sender
// or without a matching handler are ignored.
func (h Handlers) Route(ctx context.Context, update tgbotapi.Update) error {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return nil
	}

	switch {
	case msg.IsCommand():
		if h.OnCommand == nil {
			return nil
		}
		return h.OnCommand(ctx, CommandUpdate{
			ChatID:    msg.Chat.ID,
			UserID:    msg.From.ID,
			Username:  msg.From.UserName,
			MessageID: msg.MessageID,
			Command:   msg.Command(),
			Args:      strings.TrimSpace(msg.CommandArguments()),
		})
	case len(msg.Photo) > 0:
		if h.OnPhoto == nil {
			return nil
		}
		// Telegram lists sizes ascending; keep the largest.
		largest := msg.Photo[len(msg.Photo)-1]
		return h.OnPhoto(ctx, PhotoUpdate{
			ChatID:    msg.Chat.ID,
			UserID:    msg.From.ID,
			MessageID: msg.MessageID,
			FileID:    largest.FileID,
		})
	case msg.Video != nil:
		if h.OnVideo == nil {
			return nil
		}
		return h.OnVideo(ctx, VideoUpdate{
			ChatID:    msg.Chat.ID,
			UserID:    msg.From.ID,
			MessageID: msg.MessageID,
			FileID:    msg.Video.FileID,
		})
	default:
		text := strings.TrimSpace(msg.Text)
		if text == "" || h.OnText == nil {
			return nil
		}
		return h.OnText(ctx, TextUpdate{
			ChatID:    msg.Chat.ID,
			UserID:    msg.From.ID,
			MessageID: msg.MessageID,
			Text:      text,
		})
	}
}

// Dispatcher handles updates from different senders concurrently, with at
// most limit handlers in flight. Updates from one sender are handled one at a
// time in arrival order.
type Dispatcher struct {
	handlers Handlers
	sem      chan struct{}
	logger   *zap.Logger

	mu    sync.Mutex
	lanes map[int64][]queuedUpdate
	wg    sync.WaitGroup
}

type queuedUpdate struct {
	ctx    context.Context
	update tgbotapi.Update
}

func NewDispatcher(handlers Handlers, limit int, logger *zap.Logger) *Dispatcher {
	if limit <= 0 {
		limit = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		handlers: handlers,
		sem:      make(chan struct{}, limit),
		logger:   logger,
		lanes:    make(map[int64][]queuedUpdate),
	}
}

// Dispatch queues update on its sender's lane and returns without waiting
// for it to be handled. Updates not yet started when ctx is done are dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, update tgbotapi.Update) {
	if ctx.Err() != nil {
		return
	}

	key := laneKey(update)

	d.mu.Lock()
	defer d.mu.Unlock()
	queue, running := d.lanes[key]
	d.lanes[key] = append(queue, queuedUpdate{ctx: ctx, update: update})
	if running {
		return
	}
	d.wg.Add(1)
	go d.drain(key)
}

// Wait blocks until every dispatched update has been handled.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// drain handles a lane until it is empty. A lane exists in the map exactly
// while its worker runs.
func (d *Dispatcher) drain(key int64) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		queue := d.lanes[key]
		if len(queue) == 0 {
			delete(d.lanes, key)
			d.mu.Unlock()
			return
		}
		next := queue[0]
		queue[0] = queuedUpdate{}
		d.lanes[key] = queue[1:]
		d.mu.Unlock()

		d.handle(next)
	}
}

func (d *Dispatcher) handle(item queuedUpdate) {
	select {
	case d.sem <- struct{}{}:
	case <-item.ctx.Done():
		d.logger.Debug("drop telegram update after shutdown", zap.Int("update_id", item.update.UpdateID))
		return
	}
	defer func() { <-d.sem }()
	if item.ctx.Err() != nil {
		d.logger.Debug("drop telegram update after shutdown", zap.Int("update_id", item.update.UpdateID))
		return
	}

	if err := d.handlers.Route(item.ctx, item.update); err != nil {
		d.logger.Error("handle telegram update",
			zap.Int("update_id", item.update.UpdateID),
			zap.Error(err))
	}
}

// laneKey groups updates by sender, falling back to the chat.
func laneKey(update tgbotapi.Update) int64 {
	msg := update.Message
	switch {
	case msg == nil:
		return 0
	case msg.From != nil:
		return msg.From.ID
	case msg.Chat != nil:
		return msg.Chat.ID
	default:
		return 0
	}
}
