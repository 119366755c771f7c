package ui

import (
	"fmt"
	"strings"

	"github.com/ivankudzin/tgdrop/internal/domain/model"
)

const (
	ChannelCaption  = "╭═══════════════════\n╠ ‣ New drop ‣\n╰═══════════════════"
	DeliveryCaption = "🔥 Enjoy 🥵"

	WelcomeMessage    = "Welcome! Tap the “🔥 Watch video 🥵” button under a channel post to open it."
	MalformedLink     = "Sorry, this link has a problem."
	ContentNotFound   = "Sorry, this content could not be found."
	DeliveryFailed    = "Sorry, the content could not be sent right now. Please open the link again later."
	ChallengeCaption  = "🔒 This content is locked.\n\n1. Tap “Watch ad”.\n2. Come back and tap “Unlock”."
	UnlockSucceeded   = "✅ Unlocked! Sending your content…"
	TemporaryFailure  = "Something went wrong, please try again."
	NotAdmin          = "This command is only available to the administrator."
	VideoCountInvalid = "The video count must be a number from 1 to 10, for example /start_upload 3."
	NoUploadSession   = "There is no upload in progress. Start one with /start_upload [1-10]."
	CoverAlreadySet   = "The cover is already saved. Send the videos now."
	CoverExpected     = "Send the cover photo first."
	PublishPending    = "The bundle is saved but not announced yet. Use /repost to post it, or /start_upload to begin a new one."
	NothingToRepost   = "There is no saved bundle waiting to be posted."
	UploadCancelled   = "The upload was cancelled."
	NoUploadToCancel  = "There is no upload to cancel."
	LinkUsage         = "Usage: /link <id>"
	UnknownCommand    = "Unknown command."
)

func UploadStarted(required int) string {
	if required == 1 {
		return "Upload started. Send the cover photo first, then 1 video."
	}
	return fmt.Sprintf("Upload started. Send the cover photo first, then %d videos.", required)
}

func CoverSaved(required int) string {
	if required == 1 {
		return "Cover saved. Now send the video."
	}
	return fmt.Sprintf("Cover saved. Now send %d videos, one by one.", required)
}

func VideoProgress(current, required int) string {
	return fmt.Sprintf("Video %d/%d saved.", current, required)
}

func CommitFailed() string {
	return "❌ The bundle could not be saved. Send the last video again."
}

func Published(bundleID int64) string {
	return fmt.Sprintf("✅ Posted to the channel. Permanent ID: %d", bundleID)
}

func PublishFailed(bundleID int64) string {
	return fmt.Sprintf("❌ Bundle %d is saved, but posting to the channel failed. Use /repost to try again.", bundleID)
}

func BundleLinks(bundleID int64, locked, unlocked string) string {
	return fmt.Sprintf("Bundle %d\nPublic link: %s\nDirect link: %s", bundleID, locked, unlocked)
}

// Status summarises the admin's upload session and the expiry backlog.
func Status(session model.UploadSession, hasSession bool, pendingDeletions int) string {
	var b strings.Builder
	if !hasSession {
		b.WriteString("No upload in progress.")
	} else {
		switch session.Stage {
		case model.StageAwaitingCover:
			fmt.Fprintf(&b, "Waiting for the cover (%d videos requested).", session.RequiredVideos)
		case model.StageAwaitingVideos:
			fmt.Fprintf(&b, "Waiting for videos: %d/%d received.", len(session.VideoRefs), session.RequiredVideos)
		case model.StageAwaitingPublish:
			fmt.Fprintf(&b, "Bundle %d saved, waiting for /repost.", session.BundleID)
		}
	}
	fmt.Fprintf(&b, "\nPending deletions: %d", pendingDeletions)
	return b.String()
}
