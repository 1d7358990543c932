// Package session tracks one in-progress interactive flow per user.
// A session exists iff the user has an operation pending; handlers must
// treat an absent session as "nothing to do" rather than an error.
package session

import "github.com/Hamster-Prime/Network-Test-Bot/core/registry"

// Operation identifies which flow a session is driving. It is fixed for the
// session's lifetime once set.
type Operation string

const (
	OpPing             Operation = "ping"
	OpNextTrace        Operation = "nexttrace"
	OpAddServer        Operation = "addserver"
	OpRmServer         Operation = "rmserver"
	OpInstallNextTrace Operation = "installnexttrace"
)

// Mode distinguishes flows whose target came with the command from flows
// that collect it via free text.
type Mode string

const (
	ModeCommand     Mode = "command"
	ModeInteractive Mode = "interactive"
)

// Session is the mutable per-user flow record. ChatID/MessageID identify the
// anchor message that is edited in place as the flow advances.
type Session struct {
	UserID    int64
	ChatID    int64
	MessageID int

	Operation Operation
	Mode      Mode

	// Step is the cursor through the add-server wizard (1..6).
	Step int

	// Scratch state for the individual operations.
	Target        string
	Count         int
	TraceMode     string
	IPType        string
	ServerIdx     int
	Server        *registry.Server
	ConfirmDelete bool
	Draft         registry.Server

	// PromptMessageID is the last free-text prompt sent, deleted before the
	// next prompt so at most one is visible.
	PromptMessageID int
}

// Store holds the live sessions. Implementations must keep per-user
// operations atomic; the router serializes interactions per user on top.
type Store interface {
	Get(userID int64) (*Session, bool)
	Put(userID int64, s *Session)
	Delete(userID int64)
}
