package remote

import (
	"fmt"
	"strings"

	"github.com/Hamster-Prime/Network-Test-Bot/core/registry"
)

// Trace modes supported by nexttrace.
const (
	TraceModeICMP = "icmp"
	TraceModeTCP  = "tcp"
)

// Trace addressing: direct means the target is already a literal IP;
// IPv4/IPv6 force resolution of a hostname to that family.
const (
	AddressingDirect = "direct"
	AddressingIPv4   = "IPv4"
	AddressingIPv6   = "IPv6"
)

// installScript fetches and runs the official nexttrace installer.
const installScript = `curl -Ls https://nxtrace.org/nt | bash`

// Ping runs count echo requests against target from srv.
func (e *Executor) Ping(srv registry.Server, target string, count int) (string, error) {
	return e.run(srv, pingCommand(target, count))
}

// Trace runs a nexttrace route trace against target from srv.
func (e *Executor) Trace(srv registry.Server, target, addressing, mode string) (string, error) {
	return e.run(srv, traceCommand(target, addressing, mode))
}

// InstallNextTrace installs the nexttrace binary on srv.
func (e *Executor) InstallNextTrace(srv registry.Server) (string, error) {
	return e.run(srv, installScript)
}

func pingCommand(target string, count int) string {
	if count <= 0 {
		count = 5
	}
	return fmt.Sprintf("ping -c %d %s", count, shellEscape(target))
}

func traceCommand(target, addressing, mode string) string {
	args := []string{"nexttrace"}
	if mode == TraceModeTCP {
		args = append(args, "-T")
	}
	switch addressing {
	case AddressingIPv4:
		args = append(args, "-4")
	case AddressingIPv6:
		args = append(args, "-6")
	}
	args = append(args, shellEscape(target))
	return strings.Join(args, " ")
}
