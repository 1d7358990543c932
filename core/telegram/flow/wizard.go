package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Hamster-Prime/Network-Test-Bot/core/logger"
	"github.com/Hamster-Prime/Network-Test-Bot/core/telegram/session"
)

// cancelToken aborts the wizard at any step.
const cancelToken = "/cancel"

// runWizard advances the add-server wizard by one free-text input. The
// wizard collects name, host, port, username and password across steps 1-5,
// then asks for a literal "yes" on the masked summary at step 6. Each
// transition deletes the previous prompt and tidies the user's own message
// so only the current prompt stays visible.
func (r *Router) runWizard(ctx context.Context, s *session.Session, chatID int64, messageID int, text string) {
	text = strings.TrimSpace(text)

	if strings.EqualFold(text, cancelToken) {
		r.deletePrompt(ctx, s, chatID)
		r.sessions.Delete(s.UserID)
		r.send(ctx, chatID, msgWizardCancelled)
		return
	}

	r.cleanup.ScheduleDelete(chatID, messageID, wizardTypeTTL)
	r.deletePrompt(ctx, s, chatID)

	step := s.Step
	if step == 0 {
		step = 1
	}

	switch step {
	case 1:
		s.Draft.Name = text
		r.prompt(ctx, s, chatID, fmt.Sprintf("Step 2/5: server name set to %q.\n\nEnter the server address:%s", text, wizardFooter))
		s.Step = 2

	case 2:
		s.Draft.Host = text
		r.prompt(ctx, s, chatID, fmt.Sprintf("Step 3/5: server address set to %q.\n\nEnter the SSH port (usually 22):%s", text, wizardFooter))
		s.Step = 3

	case 3:
		port, err := strconv.Atoi(text)
		if err != nil {
			// Stay on the same step; nothing captured yet is lost.
			r.prompt(ctx, s, chatID, msgPortNotNumeric+wizardFooter)
			return
		}
		s.Draft.Port = port
		r.prompt(ctx, s, chatID, fmt.Sprintf("Step 4/5: port set to %d.\n\nEnter the SSH username:%s", port, wizardFooter))
		s.Step = 4

	case 4:
		s.Draft.Username = text
		r.prompt(ctx, s, chatID, fmt.Sprintf("Step 5/5: username set to %q.\n\nEnter the SSH password:%s", text, wizardFooter))
		s.Step = 5

	case 5:
		s.Draft.Password = text
		r.prompt(ctx, s, chatID, msgWizardSummary(s.Draft))
		s.Step = 6

	case 6:
		if strings.EqualFold(text, "yes") {
			r.commitDraft(ctx, s, chatID)
		} else {
			r.send(ctx, chatID, msgWizardCancelled)
		}
		r.sessions.Delete(s.UserID)
	}
}

func (r *Router) commitDraft(ctx context.Context, s *session.Session, chatID int64) {
	if err := s.Draft.Validate(); err != nil {
		r.send(ctx, chatID, fmt.Sprintf("The server record is incomplete: %v. Start over with /addserver.", err))
		return
	}
	r.servers.Append(s.Draft)
	if err := r.servers.Save(); err != nil {
		logger.Error(ctx, component, "registry.save.failed",
			slog.Int64("user_id", s.UserID),
			slog.String("server", s.Draft.Name),
			slog.String("err", err.Error()),
		)
		r.send(ctx, chatID, fmt.Sprintf("Failed to persist the server list: %v", err))
		return
	}
	logger.Info(ctx, component, "server.added",
		slog.Int64("user_id", s.UserID),
		slog.String("server", s.Draft.Name),
		slog.String("host", s.Draft.Host),
	)
	r.send(ctx, chatID, fmt.Sprintf("Server %q added.", s.Draft.Name))
}

// prompt sends the next wizard prompt and remembers its id so the next
// transition can delete it.
func (r *Router) prompt(ctx context.Context, s *session.Session, chatID int64, text string) {
	if id := r.send(ctx, chatID, text); id != 0 {
		s.PromptMessageID = id
	}
}

func (r *Router) deletePrompt(ctx context.Context, s *session.Session, chatID int64) {
	if s.PromptMessageID == 0 {
		return
	}
	if err := r.tr.Delete(chatID, s.PromptMessageID); err != nil {
		logger.Debug(ctx, component, "prompt.delete.failed",
			slog.Int64("chat_id", chatID),
			slog.Int("message_id", s.PromptMessageID),
			slog.String("err", err.Error()),
		)
	}
	s.PromptMessageID = 0
}
