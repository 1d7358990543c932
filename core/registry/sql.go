package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
)

// SQL is a Store backed by a Postgres table. The ordered list is cached in
// memory and rewritten inside a transaction on Save, so index-based reads
// stay cheap and Save keeps the table consistent with what the user saw.
type SQL struct {
	mu      sync.RWMutex
	db      *sqlx.DB
	servers []Server
}

type serverRow struct {
	Position int    `db:"position"`
	Name     string `db:"name"`
	Host     string `db:"host"`
	Port     int    `db:"port"`
	Username string `db:"username"`
	Password string `db:"password"`
}

// OpenSQL loads the registry from the servers table.
func OpenSQL(db *sqlx.DB) (*SQL, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var rows []serverRow
	if err := db.SelectContext(ctx, &rows,
		`SELECT position, name, host, port, username, password FROM servers ORDER BY position`,
	); err != nil {
		return nil, fmt.Errorf("load servers: %w", err)
	}

	s := &SQL{db: db, servers: make([]Server, 0, len(rows))}
	for _, r := range rows {
		s.servers = append(s.servers, Server{
			Name:     r.Name,
			Host:     r.Host,
			Port:     r.Port,
			Username: r.Username,
			Password: r.Password,
		})
	}
	return s, nil
}

func (s *SQL) List() []Server {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Server(nil), s.servers...)
}

func (s *SQL) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.servers)
}

func (s *SQL) Get(idx int) (Server, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx < 0 || idx >= len(s.servers) {
		return Server{}, false
	}
	return s.servers[idx], true
}

func (s *SQL) Append(srv Server) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.servers = append(s.servers, srv)
}

func (s *SQL) Remove(idx int) (Server, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx < 0 || idx >= len(s.servers) {
		return Server{}, false
	}
	removed := s.servers[idx]
	s.servers = append(s.servers[:idx], s.servers[idx+1:]...)
	return removed, true
}

// Save rewrites the servers table to match the in-memory list.
func (s *SQL) Save() error {
	s.mu.RLock()
	snapshot := append([]Server(nil), s.servers...)
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM servers`); err != nil {
		return fmt.Errorf("clear servers: %w", err)
	}
	for i, srv := range snapshot {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO servers (position, name, host, port, username, password) VALUES ($1, $2, $3, $4, $5, $6)`,
			i, srv.Name, srv.Host, srv.Port, srv.Username, srv.Password,
		); err != nil {
			return fmt.Errorf("insert server %q: %w", srv.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}
