package botapp

import (
	"context"

	"go.uber.org/zap"

	"github.com/ivankudzin/tgdrop/internal/domain/model"
	"github.com/ivankudzin/tgdrop/internal/pkg/deeplink"
	"github.com/ivankudzin/tgdrop/internal/services/access"
	"github.com/ivankudzin/tgdrop/internal/ui"
)

// publish announces a committed bundle in the channel. On failure the session
// stays in AwaitingPublish so /repost can retry without a new commit.
func (r *Router) publish(ctx context.Context, adminChatID int64, session model.UploadSession, bundle model.Bundle) {
	link := deeplink.Link(r.cfg.BotUsername, deeplink.LockedToken(bundle.ID))

	_, err := r.messenger.SendPhoto(ctx, r.cfg.ChannelID, string(bundle.CoverRef), ui.ChannelCaption, ui.ChannelKeyboard(link))
	if err != nil {
		r.logger.Error("post bundle to channel",
			zap.Int64("bundle_id", bundle.ID),
			zap.Int64("chat_id", r.cfg.ChannelID),
			zap.Error(err))
		r.reply(ctx, adminChatID, ui.PublishFailed(bundle.ID))
		return
	}

	if err := r.uploads.MarkPublished(ctx, session.AdminID, bundle.ID); err != nil {
		r.logger.Warn("close published session", zap.Int64("bundle_id", bundle.ID), zap.Error(err))
	}

	for _, messageID := range session.WorkingMessageIDs() {
		if err := r.messenger.DeleteMessage(ctx, adminChatID, messageID); err != nil {
			r.logger.Warn("delete admin working message",
				zap.Int64("chat_id", adminChatID),
				zap.Int("message_id", messageID),
				zap.Error(err))
		}
	}

	r.logger.Info("bundle published", zap.Int64("bundle_id", bundle.ID), zap.String("link", link))
	r.reply(ctx, adminChatID, ui.Published(bundle.ID))
}

func (r *Router) handleDeepLink(ctx context.Context, chatID, userID int64, payload string) {
	decision, err := r.gate.Decide(ctx, payload, userID)
	if err != nil {
		r.logger.Error("decide deep link access", zap.Int64("user_id", userID), zap.Error(err))
		r.reply(ctx, chatID, ui.TemporaryFailure)
		return
	}

	switch decision.Outcome {
	case access.OutcomeMalformed:
		r.reply(ctx, chatID, ui.MalformedLink)
	case access.OutcomeNotFound:
		r.reply(ctx, chatID, ui.ContentNotFound)
	case access.OutcomeChallenge:
		r.sendChallenge(ctx, chatID, decision)
	case access.OutcomeDeliver:
		r.deliver(ctx, chatID, decision)
	}
}

func (r *Router) sendChallenge(ctx context.Context, chatID int64, decision access.Decision) {
	messageID, err := r.messenger.SendPhoto(ctx, chatID, string(decision.Bundle.CoverRef), ui.ChallengeCaption,
		ui.ChallengeKeyboard(decision.AdURL, decision.UnlockLink))
	if err != nil {
		r.logger.Error("send challenge",
			zap.Int64("chat_id", chatID),
			zap.Int64("bundle_id", decision.Bundle.ID),
			zap.Error(err))
		r.reply(ctx, chatID, ui.DeliveryFailed)
		return
	}
	if decision.Expire {
		r.scheduleDeletion(ctx, chatID, messageID)
	}
}

func (r *Router) deliver(ctx context.Context, chatID int64, decision access.Decision) {
	if decision.Acknowledge {
		messageID, err := r.messenger.SendText(ctx, chatID, ui.UnlockSucceeded)
		if err != nil {
			r.logger.Warn("send unlock acknowledgement", zap.Int64("chat_id", chatID), zap.Error(err))
		} else if decision.Expire {
			r.scheduleDeletion(ctx, chatID, messageID)
		}
	}

	fileIDs := make([]string, 0, len(decision.Bundle.VideoRefs))
	for _, ref := range decision.Bundle.VideoRefs {
		fileIDs = append(fileIDs, string(ref))
	}

	messageIDs, err := r.messenger.SendVideos(ctx, chatID, fileIDs, ui.DeliveryCaption)
	if err != nil {
		r.logger.Error("deliver bundle",
			zap.Int64("chat_id", chatID),
			zap.Int64("bundle_id", decision.Bundle.ID),
			zap.Error(err))
		r.reply(ctx, chatID, ui.DeliveryFailed)
		return
	}

	if !decision.Expire {
		r.logger.Info("bundle delivered to admin, no expiry", zap.Int64("bundle_id", decision.Bundle.ID))
		return
	}
	for _, messageID := range messageIDs {
		r.scheduleDeletion(ctx, chatID, messageID)
	}
	r.logger.Info("bundle delivered",
		zap.Int64("chat_id", chatID),
		zap.Int64("bundle_id", decision.Bundle.ID),
		zap.Duration("expires_in", r.cfg.DeletionDelay))
}

func (r *Router) scheduleDeletion(ctx context.Context, chatID int64, messageID int) {
	if err := r.scheduler.Schedule(ctx, chatID, messageID, r.cfg.DeletionDelay); err != nil {
		r.logger.Error("schedule message deletion",
			zap.Int64("chat_id", chatID),
			zap.Int("message_id", messageID),
			zap.Error(err))
	}
}
