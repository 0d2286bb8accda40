// File: internal/domain/ports/adapter/telegram.go
package adapter

import "context"

// InlineButton is a callback button; Data defaults to Text when empty.
type InlineButton struct {
	Text string
	Data string
}

// TelegramBotAdapter is the outbound side of the chat transport.
type TelegramBotAdapter interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	// SendButtons sends a message with an inline keyboard (the menu verb).
	SendButtons(ctx context.Context, chatID int64, text string, rows [][]InlineButton) error
	// EditMessage replaces text and keyboard of an earlier message; nil rows drop the keyboard.
	EditMessage(ctx context.Context, chatID int64, messageID int, text string, rows [][]InlineButton) error
}
