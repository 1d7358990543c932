package flow

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/Hamster-Prime/Network-Test-Bot/core/logger"
	"github.com/Hamster-Prime/Network-Test-Bot/core/registry"
	"github.com/Hamster-Prime/Network-Test-Bot/core/remote"
	"github.com/Hamster-Prime/Network-Test-Bot/core/telegram/sender"
	"github.com/Hamster-Prime/Network-Test-Bot/core/telegram/session"
)

const component = "flow"

// Deletion delays for transient messages.
const (
	resultTTL     = 5 * time.Second
	userInputTTL  = 5 * time.Second
	wizardTypeTTL = 2 * time.Second
)

// JobRunner launches the fire-and-forget remote operations.
type JobRunner interface {
	Ping(chatID int64, messageID int, srv registry.Server, target string, count int, userID int64)
	Trace(chatID int64, messageID int, srv registry.Server, target, addressing, mode string, userID int64)
	Install(chatID int64, messageID int, srv registry.Server, userID int64)
}

// Cleaner schedules best-effort deletion of transient messages.
type Cleaner interface {
	ScheduleDelete(chatID int64, messageID int, delay time.Duration)
}

// Router is the state machine core. It owns session mutation: every button
// press and text message for a user runs under that user's lock, so the
// per-user flow is strictly sequential even though the transport delivers
// updates on independent goroutines.
type Router struct {
	sessions session.Store
	servers  registry.Store
	jobs     JobRunner
	cleanup  Cleaner
	tr       sender.Transport

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewRouter wires the router against its collaborators.
func NewRouter(sessions session.Store, servers registry.Store, jobs JobRunner, cleanup Cleaner, tr sender.Transport) *Router {
	return &Router{
		sessions: sessions,
		servers:  servers,
		jobs:     jobs,
		cleanup:  cleanup,
		tr:       tr,
		locks:    map[int64]*sync.Mutex{},
	}
}

func (r *Router) userLock(userID int64) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lk, ok := r.locks[userID]
	if !ok {
		lk = &sync.Mutex{}
		r.locks[userID] = lk
	}
	return lk
}

// HandleButton processes one button press. data is the raw action code from
// the transport; chatID/messageID identify the message the button was on.
func (r *Router) HandleButton(ctx context.Context, userID int64, data string, chatID int64, messageID int) {
	lk := r.userLock(userID)
	lk.Lock()
	defer lk.Unlock()

	s, ok := r.sessions.Get(userID)
	if !ok {
		r.edit(ctx, chatID, messageID, msgNoPendingButton)
		return
	}

	act, ok := DecodeAction(data)
	if !ok {
		logger.Warn(ctx, component, "action.unknown",
			slog.Int64("user_id", userID),
			slog.String("cb_key", logger.Sanitize(data)),
		)
		return
	}

	logger.Debug(ctx, component, "action.received",
		slog.Int64("user_id", userID),
		slog.String("cb_key", act.Code()),
		slog.String("operation", string(s.Operation)),
	)

	switch act.Family {
	case FamilyInstall:
		r.handleInstall(ctx, s, act)
	case FamilyRmServer:
		r.handleRmServer(ctx, s, act)
	case FamilyTraceMode:
		r.handleTraceMode(ctx, s, act)
	case FamilyServer:
		r.handleServerSelect(ctx, s, act)
	case FamilyCount:
		r.handleCount(ctx, s, act)
	case FamilyIPType:
		r.handleIPType(ctx, s, act)
	}
}

func (r *Router) handleInstall(ctx context.Context, s *session.Session, act Action) {
	if s.Operation != session.OpInstallNextTrace {
		r.edit(ctx, s.ChatID, s.MessageID, msgInstallMismatch)
		return
	}
	if act.Arg == argCancel {
		r.finish(ctx, s, msgInstallCancelled)
		return
	}

	idx, ok := act.Index()
	srv, found := r.servers.Get(idx)
	if !ok || !found {
		r.finish(ctx, s, msgStaleServer("/install_nexttrace"))
		return
	}

	r.edit(ctx, s.ChatID, s.MessageID, msgInstalling(srv.Name))
	r.jobs.Install(s.ChatID, s.MessageID, srv, s.UserID)
	r.sessions.Delete(s.UserID)
}

func (r *Router) handleRmServer(ctx context.Context, s *session.Session, act Action) {
	if s.Operation != session.OpRmServer {
		r.edit(ctx, s.ChatID, s.MessageID, msgRmServerMismatch)
		return
	}

	switch act.Arg {
	case argCancel, argAbort:
		r.finish(ctx, s, msgRmCancelled)

	case argConfirm:
		// Re-validate: the registry may have shrunk since selection.
		if !s.ConfirmDelete {
			r.finish(ctx, s, msgStaleServer("/rmserver"))
			return
		}
		removed, ok := r.servers.Remove(s.ServerIdx)
		if !ok {
			r.finish(ctx, s, msgStaleServer("/rmserver"))
			return
		}
		if err := r.servers.Save(); err != nil {
			logger.Error(ctx, component, "registry.save.failed",
				slog.Int64("user_id", s.UserID),
				slog.String("err", err.Error()),
			)
			r.finish(ctx, s, fmt.Sprintf("Failed to persist the server list: %v", err))
			return
		}
		logger.Info(ctx, component, "server.removed",
			slog.Int64("user_id", s.UserID),
			slog.String("server", removed.Name),
		)
		r.finish(ctx, s, msgRmDone(removed))

	default:
		idx, ok := act.Index()
		srv, found := r.servers.Get(idx)
		if !ok || !found {
			r.finish(ctx, s, msgStaleServer("/rmserver"))
			return
		}
		s.ServerIdx = idx
		s.ConfirmDelete = true
		r.edit(ctx, s.ChatID, s.MessageID, msgRmConfirm(srv), rmConfirmRows()...)
	}
}

func (r *Router) handleTraceMode(ctx context.Context, s *session.Session, act Action) {
	if s.Operation != session.OpNextTrace {
		r.edit(ctx, s.ChatID, s.MessageID, msgTraceModeMismatch)
		return
	}

	mode := remote.TraceModeTCP
	if act.Arg == "icmp" {
		mode = remote.TraceModeICMP
	}
	s.TraceMode = mode

	text := fmt.Sprintf("%s trace selected. Choose a server:", strings.ToUpper(mode))
	r.edit(ctx, s.ChatID, s.MessageID, text, serverRows(r.servers.List())...)
}

func (r *Router) handleServerSelect(ctx context.Context, s *session.Session, act Action) {
	if s.Operation != session.OpPing && s.Operation != session.OpNextTrace {
		r.edit(ctx, s.ChatID, s.MessageID, msgServerMismatch)
		return
	}

	idx, ok := act.Index()
	srv, found := r.servers.Get(idx)
	if !ok || !found {
		// Recoverable: the keyboard is stale but the flow can continue.
		r.edit(ctx, s.ChatID, s.MessageID, msgBadServerIndex)
		return
	}

	snapshot := srv
	s.ServerIdx = idx
	s.Server = &snapshot

	switch s.Operation {
	case session.OpPing:
		if s.Mode == session.ModeCommand {
			r.edit(ctx, s.ChatID, s.MessageID, msgPingLaunched)
			r.jobs.Ping(s.ChatID, s.MessageID, srv, s.Target, s.Count, s.UserID)
			r.sessions.Delete(s.UserID)
			return
		}
		r.edit(ctx, s.ChatID, s.MessageID, msgPickedServer(srv.Name))

	case session.OpNextTrace:
		if _, err := netip.ParseAddr(s.Target); err == nil {
			mode := s.TraceMode
			if mode == "" {
				mode = remote.TraceModeICMP
			}
			text := fmt.Sprintf("You picked %s.\n%s", srv.Name, msgTraceDirect(s.Target, mode))
			r.edit(ctx, s.ChatID, s.MessageID, text)
			r.jobs.Trace(s.ChatID, s.MessageID, srv, s.Target, remote.AddressingDirect, mode, s.UserID)
			r.sessions.Delete(s.UserID)
			return
		}
		if s.Mode == session.ModeCommand {
			text := fmt.Sprintf("You picked %s.\nTarget: %s\n%s", srv.Name, s.Target, msgChooseIPType)
			r.edit(ctx, s.ChatID, s.MessageID, text, ipTypeRows()...)
			return
		}
		r.edit(ctx, s.ChatID, s.MessageID, msgPickedServer(srv.Name))
	}
}

func (r *Router) handleCount(ctx context.Context, s *session.Session, act Action) {
	if s.Operation != session.OpPing {
		r.edit(ctx, s.ChatID, s.MessageID, msgCountMismatch)
		return
	}

	count, ok := act.Index()
	if !ok {
		return
	}
	s.Count = count

	if s.Server == nil || s.Target == "" {
		r.edit(ctx, s.ChatID, s.MessageID, msgPingIncomplete)
		return
	}

	r.edit(ctx, s.ChatID, s.MessageID, msgPingLaunched)
	r.jobs.Ping(s.ChatID, s.MessageID, *s.Server, s.Target, count, s.UserID)
	r.sessions.Delete(s.UserID)
}

func (r *Router) handleIPType(ctx context.Context, s *session.Session, act Action) {
	if s.Operation != session.OpNextTrace {
		r.edit(ctx, s.ChatID, s.MessageID, msgIPTypeMismatch)
		return
	}

	addressing := remote.AddressingIPv6
	if act.Arg == "ipv4" {
		addressing = remote.AddressingIPv4
	}
	s.IPType = addressing

	if s.Server == nil || s.Target == "" {
		r.edit(ctx, s.ChatID, s.MessageID, msgTraceIncomplete)
		return
	}

	mode := s.TraceMode
	if mode == "" {
		mode = remote.TraceModeICMP
	}
	r.edit(ctx, s.ChatID, s.MessageID, msgTraceLaunched(mode))
	r.jobs.Trace(s.ChatID, s.MessageID, *s.Server, s.Target, addressing, mode, s.UserID)
	r.sessions.Delete(s.UserID)
}

// HandleText processes one free-text message from userID. chatID/messageID
// identify the user's own message so it can be tidied away.
func (r *Router) HandleText(ctx context.Context, userID, chatID int64, messageID int, text string) {
	lk := r.userLock(userID)
	lk.Lock()
	defer lk.Unlock()

	s, ok := r.sessions.Get(userID)
	if !ok {
		r.send(ctx, chatID, msgNoPendingText)
		return
	}

	if s.Operation == session.OpAddServer {
		r.runWizard(ctx, s, chatID, messageID, text)
		return
	}

	if s.Mode != session.ModeInteractive {
		command := "/ping"
		if s.Operation == session.OpNextTrace {
			command = "/nexttrace"
		}
		r.send(ctx, chatID, fmt.Sprintf(msgCommandModeNoText, command))
		return
	}

	if s.Target != "" {
		r.send(ctx, chatID, msgTargetAlreadySet)
		return
	}

	target := strings.TrimSpace(text)
	s.Target = target
	r.cleanup.ScheduleDelete(chatID, messageID, userInputTTL)

	switch s.Operation {
	case session.OpPing:
		r.edit(ctx, s.ChatID, s.MessageID, msgChooseCount, countRows()...)

	case session.OpNextTrace:
		if s.Server == nil {
			r.finish(ctx, s, msgTraceIncomplete)
			return
		}
		if _, err := netip.ParseAddr(target); err == nil {
			mode := s.TraceMode
			if mode == "" {
				mode = remote.TraceModeICMP
			}
			r.edit(ctx, s.ChatID, s.MessageID, msgTraceDirect(target, mode))
			r.jobs.Trace(s.ChatID, s.MessageID, *s.Server, target, remote.AddressingDirect, mode, s.UserID)
			r.sessions.Delete(s.UserID)
			return
		}
		r.edit(ctx, s.ChatID, s.MessageID, msgChooseIPType, ipTypeRows()...)
	}
}

// finish edits the anchor with a terminal message, schedules its deletion
// and destroys the session.
func (r *Router) finish(ctx context.Context, s *session.Session, text string) {
	r.edit(ctx, s.ChatID, s.MessageID, text)
	r.cleanup.ScheduleDelete(s.ChatID, s.MessageID, resultTTL)
	r.sessions.Delete(s.UserID)
}

func (r *Router) edit(ctx context.Context, chatID int64, messageID int, text string, rows ...[]sender.Button) {
	if err := r.tr.Edit(chatID, messageID, text, rows...); err != nil {
		logger.Warn(ctx, component, "anchor.edit.failed",
			slog.Int64("chat_id", chatID),
			slog.Int("message_id", messageID),
			slog.String("err", err.Error()),
		)
	}
}

func (r *Router) send(ctx context.Context, chatID int64, text string, rows ...[]sender.Button) int {
	id, err := r.tr.Send(chatID, text, rows...)
	if err != nil {
		logger.Warn(ctx, component, "message.send.failed",
			slog.Int64("chat_id", chatID),
			slog.String("err", err.Error()),
		)
		return 0
	}
	return id
}
