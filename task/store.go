package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

var ErrNotFound = errors.New("task not found")

// Store is the durable owner of task records, backed by a single JSON
// document. All mutations are serialized through the store's lock and
// persisted immediately; callers hold transient copies only.
type Store struct {
	path   string
	logger *slog.Logger

	mu    sync.Mutex
	tasks []Task
}

func NewStore(path string, logger *slog.Logger) *Store {
	s := &Store{
		path:   path,
		logger: logger,
	}
	s.load()

	return s
}

// load reads the backing document. A missing document initializes the
// empty collection; a malformed one is logged and discarded rather than
// propagated, so a crash mid-save never wedges the store.
func (s *Store) load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read task store", slog.String("path", s.path), slog.String("error", err.Error()))
		}
		s.tasks = nil

		return
	}

	var tasks []Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		s.logger.Warn("malformed task store, starting empty", slog.String("path", s.path), slog.String("error", err.Error()))
		s.tasks = nil

		return
	}

	s.tasks = tasks
	s.logger.Info("loaded tasks", slog.Int("count", len(tasks)))
}

// save must be called with the lock held.
func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("error creating store directory: %w", err)
	}

	data, err := json.MarshalIndent(s.tasks, "", "  ")
	if err != nil {
		return fmt.Errorf("error serializing tasks: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("error writing task store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("error replacing task store: %w", err)
	}

	return nil
}

// Add assigns the next integer id and persists the record.
func (s *Store) Add(t Task) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	maxID := 0
	for i := range s.tasks {
		if s.tasks[i].ID > maxID {
			maxID = s.tasks[i].ID
		}
	}
	t.ID = maxID + 1

	s.tasks = append(s.tasks, t)
	if err := s.save(); err != nil {
		return Task{}, err
	}
	s.logger.Info("added training task", slog.Int("id", t.ID), slog.String("name", t.Name))

	return t, nil
}

// Update replaces the record matching t.ID, or returns ErrNotFound.
func (s *Store) Update(t Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.tasks {
		if s.tasks[i].ID == t.ID {
			s.tasks[i] = t

			return s.save()
		}
	}

	return ErrNotFound
}

// Delete removes the record if present. Deleting an absent id is not an
// error; the store persists either way.
func (s *Store) Delete(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.tasks[:0]
	for i := range s.tasks {
		if s.tasks[i].ID != id {
			kept = append(kept, s.tasks[i])
		}
	}
	s.tasks = kept

	return s.save()
}

func (s *Store) GetAll() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Task, len(s.tasks))
	copy(out, s.tasks)

	return out
}

func (s *Store) GetByID(id int) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return s.tasks[i], nil
		}
	}

	return Task{}, ErrNotFound
}
