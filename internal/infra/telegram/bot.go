package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

var ErrNotInitialized = errors.New("telegram bot is not initialized")

type Bot struct {
	api         *tgbotapi.BotAPI
	pollTimeout int
	logger      *zap.Logger
}

func NewBot(token string, pollTimeout int, logger *zap.Logger) (*Bot, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("telegram bot token is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	api, err := tgbotapi.NewBotAPI(strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("create telegram bot api: %w", err)
	}

	return &Bot{
		api:         api,
		pollTimeout: pollTimeout,
		logger:      logger,
	}, nil
}

// Username is the bot account name reported by Telegram.
func (b *Bot) Username() string {
	if b == nil || b.api == nil {
		return ""
	}
	return b.api.Self.UserName
}

// Listen long-polls for updates and hands each one to the dispatcher until ctx is done.
func (b *Bot) Listen(ctx context.Context, dispatcher *Dispatcher) error {
	if b == nil || b.api == nil {
		return ErrNotInitialized
	}

	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		b.logger.Warn("delete webhook before polling", zap.Error(err))
	}

	timeout := b.pollTimeout
	if timeout <= 0 {
		timeout = 30
	}
	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = timeout
	updates := b.api.GetUpdatesChan(updateCfg)
	defer b.api.StopReceivingUpdates()

	b.logger.Info("telegram polling started", zap.String("bot", b.api.Self.UserName))
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			dispatcher.Dispatch(ctx, update)
		}
	}
}

// SetWebhook registers url with Telegram. A non-empty secret is echoed by
// Telegram in the X-Telegram-Bot-Api-Secret-Token header.
func (b *Bot) SetWebhook(url, secret string) error {
	if b == nil || b.api == nil {
		return ErrNotInitialized
	}

	params := tgbotapi.Params{"url": url}
	params.AddNonEmpty("secret_token", secret)
	if _, err := b.api.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("set telegram webhook: %w", err)
	}
	return nil
}

// ParseWebhook decodes one update posted by Telegram.
func (b *Bot) ParseWebhook(r *http.Request) (tgbotapi.Update, error) {
	if b == nil || b.api == nil {
		return tgbotapi.Update{}, ErrNotInitialized
	}
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		return tgbotapi.Update{}, fmt.Errorf("decode telegram update: %w", err)
	}
	return *update, nil
}

func (b *Bot) SendText(_ context.Context, chatID int64, text string) (int, error) {
	if b == nil || b.api == nil {
		return 0, ErrNotInitialized
	}
	if chatID == 0 {
		return 0, fmt.Errorf("chat id is required")
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	sent, err := b.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("send telegram message: %w", err)
	}
	return sent.MessageID, nil
}

// SendPhoto posts a photo by file_id with an optional caption and URL buttons.
func (b *Bot) SendPhoto(_ context.Context, chatID int64, fileID, caption string, buttons [][]URLButton) (int, error) {
	if b == nil || b.api == nil {
		return 0, ErrNotInitialized
	}
	if chatID == 0 || strings.TrimSpace(fileID) == "" {
		return 0, fmt.Errorf("chat id and photo are required")
	}

	msg := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(fileID))
	msg.Caption = caption
	if len(buttons) > 0 {
		msg.ReplyMarkup = BuildURLKeyboard(buttons)
	}
	sent, err := b.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("send telegram photo: %w", err)
	}
	return sent.MessageID, nil
}

// SendVideos delivers the videos in order with the caption on the first one.
// Two or more go out as a single media group.
func (b *Bot) SendVideos(_ context.Context, chatID int64, fileIDs []string, caption string) ([]int, error) {
	if b == nil || b.api == nil {
		return nil, ErrNotInitialized
	}
	if chatID == 0 || len(fileIDs) == 0 {
		return nil, fmt.Errorf("chat id and videos are required")
	}

	if len(fileIDs) == 1 {
		msg := tgbotapi.NewVideo(chatID, tgbotapi.FileID(fileIDs[0]))
		msg.Caption = caption
		sent, err := b.api.Send(msg)
		if err != nil {
			return nil, fmt.Errorf("send telegram video: %w", err)
		}
		return []int{sent.MessageID}, nil
	}

	media := make([]interface{}, 0, len(fileIDs))
	for i, fileID := range fileIDs {
		item := tgbotapi.NewInputMediaVideo(tgbotapi.FileID(fileID))
		if i == 0 {
			item.Caption = caption
		}
		media = append(media, item)
	}

	sent, err := b.api.SendMediaGroup(tgbotapi.NewMediaGroup(chatID, media))
	if err != nil {
		return nil, fmt.Errorf("send telegram media group: %w", err)
	}
	ids := make([]int, 0, len(sent))
	for _, msg := range sent {
		ids = append(ids, msg.MessageID)
	}
	return ids, nil
}

func (b *Bot) DeleteMessage(_ context.Context, chatID int64, messageID int) error {
	if b == nil || b.api == nil {
		return ErrNotInitialized
	}
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("delete telegram message %d: %w", messageID, err)
	}
	return nil
}
