// Package lifecycle owns the cleanup of transient chat messages: timed
// deletion of prompts and results, and the "in progress" spinner shown while
// a background job runs. Every failure here is logged and swallowed;
// cleanup is best-effort by contract.
package lifecycle

import (
	"context"
	"log/slog"
	"time"

	"github.com/Hamster-Prime/Network-Test-Bot/core/logger"
	"github.com/Hamster-Prime/Network-Test-Bot/core/telegram/sender"
)

var spinnerFrames = []string{".", "..", "...", "...."}

// Manager schedules deferred deletions and drives progress indicators.
type Manager struct {
	tr sender.Transport

	// SpinnerInterval is the cadence of spinner edits; zero means one second.
	SpinnerInterval time.Duration
	// sleep is swappable for tests; nil means time.Sleep.
	sleep func(time.Duration)
}

// NewManager returns a Manager using the given transport.
func NewManager(tr sender.Transport) *Manager {
	return &Manager{tr: tr}
}

// ScheduleDelete removes the message after delay. It returns immediately;
// the deletion itself never reports an error to the caller, since the
// message may already be gone or permissions may have changed.
func (m *Manager) ScheduleDelete(chatID int64, messageID int, delay time.Duration) {
	go func() {
		m.wait(delay)
		if err := m.tr.Delete(chatID, messageID); err != nil {
			logger.Warn(context.Background(), "lifecycle", "delete.failed",
				slog.Int64("chat_id", chatID),
				slog.Int("message_id", messageID),
				slog.String("err", err.Error()),
			)
		}
	}()
}

// Spinner repeatedly edits the message, appending a rotating ellipsis to
// base until done is closed. Edit failures are logged and the loop keeps
// going; a transient edit error must not kill the indicator.
func (m *Manager) Spinner(chatID int64, messageID int, base string, done <-chan struct{}) {
	interval := m.SpinnerInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		select {
		case <-done:
			return
		case <-ticker.C:
		}
		// A tick and the done signal can arrive in the same instant; a
		// frame written after the result edit would overwrite it.
		select {
		case <-done:
			return
		default:
		}
		frame := spinnerFrames[i%len(spinnerFrames)]
		if err := m.tr.Edit(chatID, messageID, base+frame); err != nil {
			logger.Warn(context.Background(), "lifecycle", "spinner.edit.failed",
				slog.Int64("chat_id", chatID),
				slog.Int("message_id", messageID),
				slog.String("err", err.Error()),
			)
		}
	}
}

func (m *Manager) wait(d time.Duration) {
	if m.sleep != nil {
		m.sleep(d)
		return
	}
	time.Sleep(d)
}
