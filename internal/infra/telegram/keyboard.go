package telegram

import tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

type URLButton struct {
	Text string
	URL  string
}

func BuildURLKeyboard(rows [][]URLButton) tgbotapi.InlineKeyboardMarkup {
	keyboardRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, button := range row {
			if button.URL == "" {
				continue
			}
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(button.Text, button.URL))
		}
		if len(buttons) > 0 {
			keyboardRows = append(keyboardRows, buttons)
		}
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboardRows...)
}
