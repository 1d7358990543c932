// Package sender abstracts the outbound side of the chat transport so the
// flow core and background jobs can be exercised without a live bot.
package sender

// Button is one inline keyboard button. Action is the raw callback data
// delivered back when the button is pressed.
type Button struct {
	Label  string
	Action string
}

// Row builds a single keyboard row.
func Row(buttons ...Button) []Button {
	return buttons
}

// Transport sends, edits, and deletes chat messages addressed by
// (chat id, message id). Implementations must be safe for concurrent use.
type Transport interface {
	// Send posts a new message and returns its message id.
	Send(chatID int64, text string, rows ...[]Button) (int, error)
	// Edit replaces the text and keyboard of an existing message.
	Edit(chatID int64, messageID int, text string, rows ...[]Button) error
	// Delete removes a message.
	Delete(chatID int64, messageID int) error
}
