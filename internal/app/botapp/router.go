package botapp

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ivankudzin/tgdrop/internal/domain/model"
	"github.com/ivankudzin/tgdrop/internal/infra/telegram"
	"github.com/ivankudzin/tgdrop/internal/pkg/deeplink"
	"github.com/ivankudzin/tgdrop/internal/services/access"
	"github.com/ivankudzin/tgdrop/internal/services/expiry"
	"github.com/ivankudzin/tgdrop/internal/services/uploads"
	"github.com/ivankudzin/tgdrop/internal/ui"
)

// Messenger is the outbound side of the Telegram transport.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) (int, error)
	SendPhoto(ctx context.Context, chatID int64, fileID, caption string, buttons [][]telegram.URLButton) (int, error)
	SendVideos(ctx context.Context, chatID int64, fileIDs []string, caption string) ([]int, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}

type RouterConfig struct {
	ChannelID     int64
	BotUsername   string
	DeletionDelay time.Duration
}

type Router struct {
	cfg       RouterConfig
	uploads   *uploads.Service
	gate      *access.Gate
	bundles   uploads.BundleRepo
	scheduler expiry.Scheduler
	messenger Messenger
	logger    *zap.Logger
}

func NewRouter(cfg RouterConfig, uploadService *uploads.Service, gate *access.Gate, bundles uploads.BundleRepo, scheduler expiry.Scheduler, messenger Messenger, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		cfg:       cfg,
		uploads:   uploadService,
		gate:      gate,
		bundles:   bundles,
		scheduler: scheduler,
		messenger: messenger,
		logger:    logger,
	}
}

func (r *Router) Handlers() telegram.Handlers {
	return telegram.Handlers{
		OnCommand: r.OnCommand,
		OnPhoto:   r.OnPhoto,
		OnVideo:   r.OnVideo,
		OnText:    r.OnText,
	}
}

func (r *Router) OnCommand(ctx context.Context, u telegram.CommandUpdate) error {
	switch u.Command {
	case "start":
		if u.Args == "" {
			r.reply(ctx, u.ChatID, ui.WelcomeMessage)
			return nil
		}
		r.handleDeepLink(ctx, u.ChatID, u.UserID, u.Args)
		return nil
	}

	if !r.uploads.IsAdmin(u.UserID) {
		r.reply(ctx, u.ChatID, ui.NotAdmin)
		return nil
	}

	switch u.Command {
	case "start_upload":
		r.handleStartUpload(ctx, u)
	case "repost":
		r.handleRepost(ctx, u)
	case "link":
		r.handleLink(ctx, u)
	case "cancel_upload":
		r.handleCancel(ctx, u)
	case "status":
		r.handleStatus(ctx, u)
	default:
		r.reply(ctx, u.ChatID, ui.UnknownCommand)
	}
	return nil
}

func (r *Router) OnPhoto(ctx context.Context, u telegram.PhotoUpdate) error {
	if !r.uploads.IsAdmin(u.UserID) {
		return nil
	}

	session, err := r.uploads.SubmitCover(ctx, u.UserID, model.MediaRef(u.FileID), u.MessageID)
	switch {
	case err == nil:
		r.reply(ctx, u.ChatID, ui.CoverSaved(session.RequiredVideos))
	case errors.Is(err, uploads.ErrNoSession):
		r.reply(ctx, u.ChatID, ui.NoUploadSession)
	case errors.Is(err, uploads.ErrWrongStage):
		r.reply(ctx, u.ChatID, stageGuidance(session.Stage))
	default:
		r.logger.Error("submit cover", zap.Int64("user_id", u.UserID), zap.Error(err))
		r.reply(ctx, u.ChatID, ui.TemporaryFailure)
	}
	return nil
}

func (r *Router) OnVideo(ctx context.Context, u telegram.VideoUpdate) error {
	if !r.uploads.IsAdmin(u.UserID) {
		return nil
	}

	progress, err := r.uploads.SubmitVideo(ctx, u.UserID, model.MediaRef(u.FileID), u.MessageID)
	switch {
	case err == nil:
	case errors.Is(err, uploads.ErrNoSession):
		r.reply(ctx, u.ChatID, ui.NoUploadSession)
		return nil
	case errors.Is(err, uploads.ErrWrongStage):
		r.reply(ctx, u.ChatID, stageGuidance(progress.Session.Stage))
		return nil
	default:
		r.logger.Error("commit bundle failed, session kept",
			zap.Int64("user_id", u.UserID),
			zap.Int("videos", progress.Current),
			zap.Error(err))
		r.reply(ctx, u.ChatID, ui.CommitFailed())
		return nil
	}

	if !progress.Committed {
		r.reply(ctx, u.ChatID, ui.VideoProgress(progress.Current, progress.Required))
		return nil
	}

	r.reply(ctx, u.ChatID, ui.VideoProgress(progress.Current, progress.Required))
	r.publish(ctx, u.ChatID, progress.Session, progress.Bundle)
	return nil
}

// OnText reminds the admin what an open upload session is waiting for.
func (r *Router) OnText(ctx context.Context, u telegram.TextUpdate) error {
	session, ok := r.uploads.Current(u.UserID)
	if !ok {
		return nil
	}
	r.reply(ctx, u.ChatID, stageGuidance(session.Stage))
	return nil
}

func (r *Router) handleStartUpload(ctx context.Context, u telegram.CommandUpdate) {
	session, err := r.uploads.Start(ctx, u.UserID, u.Args)
	if errors.Is(err, uploads.ErrInvalidVideoCount) {
		r.reply(ctx, u.ChatID, ui.VideoCountInvalid)
		return
	}
	if err != nil {
		r.logger.Error("start upload", zap.Int64("user_id", u.UserID), zap.Error(err))
		r.reply(ctx, u.ChatID, ui.TemporaryFailure)
		return
	}
	r.reply(ctx, u.ChatID, ui.UploadStarted(session.RequiredVideos))
}

func (r *Router) handleRepost(ctx context.Context, u telegram.CommandUpdate) {
	session, bundle, err := r.uploads.PendingPublication(ctx, u.UserID)
	if errors.Is(err, uploads.ErrNothingToPublish) {
		r.reply(ctx, u.ChatID, ui.NothingToRepost)
		return
	}
	if err != nil {
		r.logger.Error("load bundle for repost", zap.Int64("user_id", u.UserID), zap.Error(err))
		r.reply(ctx, u.ChatID, ui.TemporaryFailure)
		return
	}
	r.publish(ctx, u.ChatID, session, bundle)
}

func (r *Router) handleLink(ctx context.Context, u telegram.CommandUpdate) {
	id, err := strconv.ParseInt(u.Args, 10, 64)
	if err != nil || id <= 0 {
		r.reply(ctx, u.ChatID, ui.LinkUsage)
		return
	}

	bundle, err := r.bundles.GetByID(ctx, id)
	if errors.Is(err, model.ErrBundleNotFound) {
		r.reply(ctx, u.ChatID, ui.ContentNotFound)
		return
	}
	if err != nil {
		r.logger.Error("load bundle for link", zap.Int64("bundle_id", id), zap.Error(err))
		r.reply(ctx, u.ChatID, ui.TemporaryFailure)
		return
	}

	r.reply(ctx, u.ChatID, ui.BundleLinks(bundle.ID,
		deeplink.Link(r.cfg.BotUsername, deeplink.LockedToken(bundle.ID)),
		deeplink.Link(r.cfg.BotUsername, deeplink.UnlockedToken(bundle.ID))))
}

func (r *Router) handleCancel(ctx context.Context, u telegram.CommandUpdate) {
	cancelled, err := r.uploads.Cancel(ctx, u.UserID)
	if err != nil {
		r.logger.Error("cancel upload", zap.Int64("user_id", u.UserID), zap.Error(err))
		return
	}
	if cancelled {
		r.reply(ctx, u.ChatID, ui.UploadCancelled)
		return
	}
	r.reply(ctx, u.ChatID, ui.NoUploadToCancel)
}

func (r *Router) handleStatus(ctx context.Context, u telegram.CommandUpdate) {
	session, ok := r.uploads.Current(u.UserID)
	pending, err := r.scheduler.Pending(ctx)
	if err != nil {
		r.logger.Warn("count pending deletions", zap.Error(err))
		pending = -1
	}
	r.reply(ctx, u.ChatID, ui.Status(session, ok, pending))
}

func (r *Router) reply(ctx context.Context, chatID int64, text string) {
	if _, err := r.messenger.SendText(ctx, chatID, text); err != nil {
		r.logger.Warn("send reply", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func stageGuidance(stage model.UploadStage) string {
	switch stage {
	case model.StageAwaitingCover:
		return ui.CoverExpected
	case model.StageAwaitingVideos:
		return ui.CoverAlreadySet
	case model.StageAwaitingPublish:
		return ui.PublishPending
	default:
		return ui.NoUploadSession
	}
}
