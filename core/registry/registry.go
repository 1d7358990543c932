// Package registry manages the ordered list of remote servers the bot can
// run diagnostics against. Stores are index-addressed because the chat UI
// renders one button per entry; callers must treat captured indices as
// snapshots and re-validate them before use.
package registry

import (
	"fmt"
	"strings"
)

// Server describes one SSH-reachable host.
type Server struct {
	Name     string `yaml:"name" db:"name"`
	Host     string `yaml:"host" db:"host"`
	Port     int    `yaml:"port" db:"port"`
	Username string `yaml:"username" db:"username"`
	Password string `yaml:"password" db:"password"`
}

// Addr returns the host:port dial address.
func (s Server) Addr() string {
	port := s.Port
	if port == 0 {
		port = 22
	}
	return fmt.Sprintf("%s:%d", s.Host, port)
}

// Validate reports whether the record is complete enough to be stored.
func (s Server) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("server name is required")
	}
	if strings.TrimSpace(s.Host) == "" {
		return fmt.Errorf("server host is required")
	}
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("server port %d out of range", s.Port)
	}
	if strings.TrimSpace(s.Username) == "" {
		return fmt.Errorf("server username is required")
	}
	return nil
}

// Store is the persisted server registry. Implementations must be safe for
// concurrent use; the bot reads indices far more often than it writes.
type Store interface {
	// List returns a copy of the current entries in order.
	List() []Server
	// Len returns the number of entries.
	Len() int
	// Get returns the entry at idx, or false when idx is out of range.
	Get(idx int) (Server, bool)
	// Append adds a new entry at the end of the list.
	Append(srv Server)
	// Remove pops the entry at idx, or returns false when idx is out of range.
	Remove(idx int) (Server, bool)
	// Save persists the current list.
	Save() error
}
