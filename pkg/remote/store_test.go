package remote

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestServerStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers.json")
	store := NewStore(path, testLogger())

	added, err := store.Add(Server{
		Name:     "gpu-box",
		Host:     "10.0.0.5",
		Username: "trainer",
		Password: "hunter2",
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if added.ID != 1 {
		t.Errorf("expected id 1, got %d", added.ID)
	}
	if added.Port != 22 {
		t.Errorf("expected default port 22, got %d", added.Port)
	}

	second, err := store.Add(Server{Name: "lab", Host: "lab.internal", Port: 2222, Username: "trainer"})
	if err != nil {
		t.Fatalf("Add second: %v", err)
	}
	if second.ID != 2 || second.Port != 2222 {
		t.Errorf("unexpected second record: %+v", second)
	}

	reloaded := NewStore(path, testLogger())
	got, err := reloaded.GetByID(added.ID)
	if err != nil {
		t.Fatalf("GetByID after reload: %v", err)
	}
	if got.Host != "10.0.0.5" || got.Username != "trainer" {
		t.Errorf("record lost across reload: %+v", got)
	}
}

func TestServerStoreLookupUnknown(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "servers.json"), testLogger())

	if _, err := store.GetByID(404); !errors.Is(err, ErrServerNotFound) {
		t.Errorf("expected ErrServerNotFound, got %v", err)
	}
	if err := store.Update(Server{ID: 404}); !errors.Is(err, ErrServerNotFound) {
		t.Errorf("expected ErrServerNotFound on update, got %v", err)
	}
	if err := store.Delete(404); err != nil {
		t.Errorf("delete of unknown id must be a no-op, got %v", err)
	}
}
