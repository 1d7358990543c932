// Package remote runs diagnostic commands on registered servers over SSH.
// Calls are synchronous; the caller decides how to schedule them.
package remote

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/Hamster-Prime/Network-Test-Bot/core/registry"
)

// Executor dials registered servers with password auth and runs one command
// per session.
type Executor struct {
	// DialTimeout bounds the TCP/SSH handshake.
	DialTimeout time.Duration
}

// NewExecutor returns an Executor with the given dial timeout.
func NewExecutor(dialTimeout time.Duration) *Executor {
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}
	return &Executor{DialTimeout: dialTimeout}
}

func (e *Executor) run(srv registry.Server, command string) (string, error) {
	cfg := &ssh.ClientConfig{
		User:            srv.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(srv.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         e.DialTimeout,
	}

	client, err := ssh.Dial("tcp", srv.Addr(), cfg)
	if err != nil {
		return "", fmt.Errorf("dial %s: %w", srv.Addr(), err)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("open session on %s: %w", srv.Name, err)
	}
	defer session.Close()

	out, err := session.CombinedOutput(command)
	if err != nil {
		// Command output usually explains the failure better than the
		// exit status, so keep both.
		return "", fmt.Errorf("run on %s: %w: %s", srv.Name, err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

func shellEscape(value string) string {
	if value == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(value, "'", `'"'"'`) + "'"
}
