package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Hamster-Prime/Network-Test-Bot/core/logger"
	"github.com/Hamster-Prime/Network-Test-Bot/core/telegram/sender"
	"github.com/Hamster-Prime/Network-Test-Bot/core/telegram/session"
)

const defaultPingCount = 5

const helpText = `Network diagnostics bot.

/ping [target [count]] - ping a target from one of the servers
/nexttrace [target] - trace the route to a target
/servers - list registered servers
/addserver - register a new server
/rmserver - remove a server
/install_nexttrace - install NextTrace on a server
/cancel - abort the current flow`

// StartPing opens a ping flow. With arguments the target (and optionally
// the count) come from the command; without them the target is collected
// interactively after the server is picked.
func (r *Router) StartPing(ctx context.Context, userID, chatID int64, args []string) {
	lk := r.userLock(userID)
	lk.Lock()
	defer lk.Unlock()

	if r.servers.Len() == 0 {
		r.send(ctx, chatID, msgNoServers)
		return
	}

	s := &session.Session{
		UserID:    userID,
		ChatID:    chatID,
		Operation: session.OpPing,
		Mode:      session.ModeInteractive,
		Count:     defaultPingCount,
	}
	if len(args) > 0 {
		s.Mode = session.ModeCommand
		s.Target = strings.TrimSpace(args[0])
		if len(args) > 1 {
			if n, err := strconv.Atoi(args[1]); err == nil && n > 0 {
				s.Count = n
			}
		}
	}

	r.anchor(ctx, s, msgChooseServer, serverRows(r.servers.List()))
}

// StartNextTrace opens a route-trace flow. The trace mode is always chosen
// first; the target comes from the command or is collected later.
func (r *Router) StartNextTrace(ctx context.Context, userID, chatID int64, args []string) {
	lk := r.userLock(userID)
	lk.Lock()
	defer lk.Unlock()

	if r.servers.Len() == 0 {
		r.send(ctx, chatID, msgNoServers)
		return
	}

	s := &session.Session{
		UserID:    userID,
		ChatID:    chatID,
		Operation: session.OpNextTrace,
		Mode:      session.ModeInteractive,
	}
	if len(args) > 0 {
		s.Mode = session.ModeCommand
		s.Target = strings.TrimSpace(args[0])
	}

	r.anchor(ctx, s, msgChooseTraceMode, traceModeRows())
}

// StartAddServer opens the add-server wizard at step 1.
func (r *Router) StartAddServer(ctx context.Context, userID, chatID int64) {
	lk := r.userLock(userID)
	lk.Lock()
	defer lk.Unlock()

	s := &session.Session{
		UserID:    userID,
		ChatID:    chatID,
		Operation: session.OpAddServer,
		Mode:      session.ModeInteractive,
		Step:      1,
	}
	id := r.send(ctx, chatID, msgWizardStepOne+wizardFooter)
	if id == 0 {
		return
	}
	s.PromptMessageID = id
	r.sessions.Put(userID, s)
	logger.Info(ctx, component, "flow.started",
		slog.Int64("user_id", userID),
		slog.String("operation", string(s.Operation)),
	)
}

// StartRmServer opens the remove-server picker.
func (r *Router) StartRmServer(ctx context.Context, userID, chatID int64) {
	lk := r.userLock(userID)
	lk.Lock()
	defer lk.Unlock()

	if r.servers.Len() == 0 {
		r.send(ctx, chatID, msgNoServers)
		return
	}

	s := &session.Session{
		UserID:    userID,
		ChatID:    chatID,
		Operation: session.OpRmServer,
	}
	r.anchor(ctx, s, msgChooseRmServer, indexedRows(r.servers.List(), FamilyRmServer))
}

// StartInstall opens the NextTrace install picker.
func (r *Router) StartInstall(ctx context.Context, userID, chatID int64) {
	lk := r.userLock(userID)
	lk.Lock()
	defer lk.Unlock()

	if r.servers.Len() == 0 {
		r.send(ctx, chatID, msgNoServers)
		return
	}

	s := &session.Session{
		UserID:    userID,
		ChatID:    chatID,
		Operation: session.OpInstallNextTrace,
	}
	r.anchor(ctx, s, msgChooseInstall, indexedRows(r.servers.List(), FamilyInstall))
}

// Servers sends a read-only listing of the registered servers.
func (r *Router) Servers(ctx context.Context, chatID int64) {
	servers := r.servers.List()
	if len(servers) == 0 {
		r.send(ctx, chatID, msgNoServers)
		return
	}
	var b strings.Builder
	b.WriteString("Registered servers:\n")
	for idx, srv := range servers {
		fmt.Fprintf(&b, "%d. %s (%s)\n", idx+1, srv.Name, srv.Addr())
	}
	r.send(ctx, chatID, strings.TrimRight(b.String(), "\n"))
}

// Cancel destroys any pending flow for userID and tidies its prompt.
func (r *Router) Cancel(ctx context.Context, userID, chatID int64) {
	lk := r.userLock(userID)
	lk.Lock()
	defer lk.Unlock()

	s, ok := r.sessions.Get(userID)
	if !ok {
		r.send(ctx, chatID, msgNothingToCancel)
		return
	}
	r.deletePrompt(ctx, s, chatID)
	r.sessions.Delete(userID)
	r.send(ctx, chatID, msgCancelled)
	logger.Info(ctx, component, "flow.cancelled",
		slog.Int64("user_id", userID),
		slog.String("operation", string(s.Operation)),
	)
}

// Help sends the command overview. Also used for /start.
func (r *Router) Help(ctx context.Context, chatID int64) {
	r.send(ctx, chatID, helpText)
}

// anchor sends the flow's anchor message, records its id in the session and
// stores the session. A send failure leaves no session behind.
func (r *Router) anchor(ctx context.Context, s *session.Session, text string, rows [][]sender.Button) {
	id := r.send(ctx, s.ChatID, text, rows...)
	if id == 0 {
		return
	}
	s.MessageID = id
	r.sessions.Put(s.UserID, s)
	logger.Info(ctx, component, "flow.started",
		slog.Int64("user_id", s.UserID),
		slog.String("operation", string(s.Operation)),
		slog.String("mode", string(s.Mode)),
	)
}
