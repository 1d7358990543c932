package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// File is a Store backed by a YAML file. The whole list is rewritten on Save,
// matching the small fleets this bot manages.
type File struct {
	mu      sync.RWMutex
	path    string
	servers []Server
}

type fileDoc struct {
	Servers []Server `yaml:"servers"`
}

// OpenFile loads the registry from path. A missing file yields an empty
// registry; the file is created on first Save.
func OpenFile(path string) (*File, error) {
	f := &File{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return f, nil
		}
		return nil, fmt.Errorf("read registry file: %w", err)
	}

	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse registry file: %w", err)
	}
	f.servers = doc.Servers
	return f, nil
}

func (f *File) List() []Server {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]Server(nil), f.servers...)
}

func (f *File) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.servers)
}

func (f *File) Get(idx int) (Server, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if idx < 0 || idx >= len(f.servers) {
		return Server{}, false
	}
	return f.servers[idx], true
}

func (f *File) Append(srv Server) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.servers = append(f.servers, srv)
}

func (f *File) Remove(idx int) (Server, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if idx < 0 || idx >= len(f.servers) {
		return Server{}, false
	}
	removed := f.servers[idx]
	f.servers = append(f.servers[:idx], f.servers[idx+1:]...)
	return removed, true
}

// Save writes the current list back to the YAML file. Credentials live in
// this file, so it is written with owner-only permissions.
func (f *File) Save() error {
	f.mu.RLock()
	doc := fileDoc{Servers: append([]Server(nil), f.servers...)}
	f.mu.RUnlock()

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("write registry file: %w", err)
	}
	return nil
}
