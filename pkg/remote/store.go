package remote

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Store persists server records in a single JSON document, same scheme as
// the task store: missing file means empty, malformed file is logged and
// dropped.
type Store struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	servers []Server
}

func NewStore(path string, logger *slog.Logger) *Store {
	s := &Store{
		path:   path,
		logger: logger,
	}
	s.load()

	return s
}

func (s *Store) load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read server store", slog.String("path", s.path), slog.String("error", err.Error()))
		}
		s.servers = nil

		return
	}

	var servers []Server
	if err := json.Unmarshal(data, &servers); err != nil {
		s.logger.Warn("malformed server store, starting empty", slog.String("path", s.path), slog.String("error", err.Error()))
		s.servers = nil

		return
	}

	s.servers = servers
}

func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("error creating store directory: %w", err)
	}

	data, err := json.MarshalIndent(s.servers, "", "  ")
	if err != nil {
		return fmt.Errorf("error serializing servers: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("error writing server store: %w", err)
	}

	return os.Rename(tmp, s.path)
}

func (s *Store) Add(srv Server) (Server, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	maxID := 0
	for i := range s.servers {
		if s.servers[i].ID > maxID {
			maxID = s.servers[i].ID
		}
	}
	srv.ID = maxID + 1
	if srv.Port == 0 {
		srv.Port = 22
	}

	s.servers = append(s.servers, srv)
	if err := s.save(); err != nil {
		return Server{}, err
	}

	return srv, nil
}

func (s *Store) Update(srv Server) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.servers {
		if s.servers[i].ID == srv.ID {
			s.servers[i] = srv

			return s.save()
		}
	}

	return ErrServerNotFound
}

func (s *Store) Delete(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.servers[:0]
	for i := range s.servers {
		if s.servers[i].ID != id {
			kept = append(kept, s.servers[i])
		}
	}
	s.servers = kept

	return s.save()
}

func (s *Store) GetAll() []Server {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Server, len(s.servers))
	copy(out, s.servers)

	return out
}

func (s *Store) GetByID(id int) (Server, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.servers {
		if s.servers[i].ID == id {
			return s.servers[i], nil
		}
	}

	return Server{}, ErrServerNotFound
}
