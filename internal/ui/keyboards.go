package ui

import "github.com/ivankudzin/tgdrop/internal/infra/telegram"

const (
	WatchButton  = "🔥 Watch video 🥵"
	AdButton     = "📺 Watch ad"
	UnlockButton = "🔓 Unlock"
)

func ChannelKeyboard(lockedLink string) [][]telegram.URLButton {
	return [][]telegram.URLButton{
		{{Text: WatchButton, URL: lockedLink}},
	}
}

func ChallengeKeyboard(adURL, unlockLink string) [][]telegram.URLButton {
	return [][]telegram.URLButton{
		{{Text: AdButton, URL: adURL}},
		{{Text: UnlockButton, URL: unlockLink}},
	}
}
