// Package jobs launches the fire-and-forget remote operations (ping, route
// trace, install). A job carries copies of everything it needs; by the time
// it finishes, the session that launched it is usually gone already.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/Hamster-Prime/Network-Test-Bot/core/logger"
	"github.com/Hamster-Prime/Network-Test-Bot/core/registry"
	"github.com/Hamster-Prime/Network-Test-Bot/core/telegram/netutil"
	"github.com/Hamster-Prime/Network-Test-Bot/core/telegram/sender"
)

const (
	// resultTTL is how long routine results stay visible.
	resultTTL = 5 * time.Second
	// installTTL is longer because installer output is worth reading.
	installTTL = 15 * time.Second

	// maxResultLen keeps edits under Telegram's 4096-character cap.
	maxResultLen = 3900
)

// Executor runs remote operations synchronously.
type Executor interface {
	Ping(srv registry.Server, target string, count int) (string, error)
	Trace(srv registry.Server, target, addressing, mode string) (string, error)
	InstallNextTrace(srv registry.Server) (string, error)
}

// Cleaner is the slice of the lifecycle manager jobs need.
type Cleaner interface {
	ScheduleDelete(chatID int64, messageID int, delay time.Duration)
	Spinner(chatID int64, messageID int, base string, done <-chan struct{})
}

// Runner launches background jobs. Each job edits its result into the
// message it was given and schedules that message's deletion.
type Runner struct {
	tr      sender.Transport
	cleanup Cleaner
	exec    Executor
	retry   netutil.Retrier

	wg sync.WaitGroup
}

// NewRunner wires a Runner with default retry smoothing.
func NewRunner(tr sender.Transport, cleanup Cleaner, exec Executor) *Runner {
	return &Runner{
		tr:      tr,
		cleanup: cleanup,
		exec:    exec,
		retry:   netutil.Retrier{Attempts: 3, Delay: 2 * time.Second},
	}
}

// Ping runs a remote ping and reports into (chatID, messageID).
func (r *Runner) Ping(chatID int64, messageID int, srv registry.Server, target string, count int, userID int64) {
	header := fmt.Sprintf("Ping from %s to %s:", srv.Name, target)
	r.launch("ping", chatID, messageID, userID, resultTTL, header, func() (string, error) {
		return r.exec.Ping(srv, target, count)
	})
}

// Trace runs a remote route trace and reports into (chatID, messageID).
func (r *Runner) Trace(chatID int64, messageID int, srv registry.Server, target, addressing, mode string, userID int64) {
	header := fmt.Sprintf("Route trace (%s) from %s to %s:", mode, srv.Name, target)
	r.launch("trace", chatID, messageID, userID, resultTTL, header, func() (string, error) {
		return r.exec.Trace(srv, target, addressing, mode)
	})
}

// Install installs nexttrace on srv and reports into (chatID, messageID).
func (r *Runner) Install(chatID int64, messageID int, srv registry.Server, userID int64) {
	header := fmt.Sprintf("Installing NextTrace on %s:", srv.Name)
	r.launch("install", chatID, messageID, userID, installTTL, header, func() (string, error) {
		return r.exec.InstallNextTrace(srv)
	})
}

// Wait blocks until all launched jobs have finished. Used on shutdown.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) launch(kind string, chatID int64, messageID int, userID int64, ttl time.Duration, header string, op func() (string, error)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		start := time.Now()

		done := make(chan struct{})
		go r.cleanup.Spinner(chatID, messageID, header+"\n\nworking", done)

		out, ok := r.retry.Do(op)
		close(done)

		text := header + "\n\n" + out
		if !ok {
			text = header + "\n\n" + "Failed: " + out
		}
		if err := r.tr.Edit(chatID, messageID, truncate(text, maxResultLen)); err != nil {
			logger.Error(context.Background(), "jobs", "result.edit.failed",
				slog.String("operation", kind),
				slog.Int64("chat_id", chatID),
				slog.Int("message_id", messageID),
				slog.String("err", err.Error()),
			)
		}
		r.cleanup.ScheduleDelete(chatID, messageID, ttl)

		logger.Info(context.Background(), "jobs", "job.done",
			slog.String("operation", kind),
			slog.Int64("user_id", userID),
			slog.String("outcome", outcome(ok)),
			slog.Duration("duration_ms", logger.RoundMS(time.Since(start))),
		)
	}()
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "fail"
}

// truncate cuts s to at most max bytes without splitting a rune; a cut mid
// rune would make the edit invalid UTF-8 and Telegram rejects those.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n… output truncated"
}
