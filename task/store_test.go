package task

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStoreAddAssignsMaxIDPlusOne(t *testing.T) {
	tests := []struct {
		name       string
		existing   []Task
		expectedID int
	}{
		{
			name:       "empty store",
			existing:   nil,
			expectedID: 1,
		},
		{
			name:       "sequential ids",
			existing:   []Task{{ID: 1}, {ID: 2}},
			expectedID: 3,
		},
		{
			name:       "gap after delete does not reuse low ids",
			existing:   []Task{{ID: 1}, {ID: 5}},
			expectedID: 6,
		},
		{
			name:       "unordered ids",
			existing:   []Task{{ID: 7}, {ID: 3}},
			expectedID: 8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "tasks.json")
			if len(tt.existing) > 0 {
				data, err := json.MarshalIndent(tt.existing, "", "  ")
				if err != nil {
					t.Fatal(err)
				}
				if err := os.WriteFile(path, data, 0o644); err != nil {
					t.Fatal(err)
				}
			}
			store := NewStore(path, testLogger())

			added, err := store.Add(Task{Name: "probe", DatasetPath: "/data"})
			if err != nil {
				t.Fatalf("Add: %v", err)
			}
			if added.ID != tt.expectedID {
				t.Errorf("expected id %d, got %d", tt.expectedID, added.ID)
			}
		})
	}
}

func TestStorePersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	store := NewStore(path, testLogger())

	serverID := 2
	added, err := store.Add(Task{
		Name:          "yolo-run",
		ExecutionMode: Remote,
		DatasetPath:   "/data/set1",
		ServerID:      &serverID,
		RemotePath:    "/srv/train",
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	added.Status = Running
	pid := 4242
	added.ProcessID = &pid
	added.AppendLog("[INFO] training task started")
	if err := store.Update(added); err != nil {
		t.Fatalf("Update: %v", err)
	}

	reloaded := NewStore(path, testLogger())
	got, err := reloaded.GetByID(added.ID)
	if err != nil {
		t.Fatalf("GetByID after reload: %v", err)
	}
	if got.Name != "yolo-run" || got.ExecutionMode != Remote {
		t.Errorf("identity fields lost: %+v", got)
	}
	if got.Status != Running {
		t.Errorf("expected status RUNNING, got %s", got.Status)
	}
	if got.ProcessID == nil || *got.ProcessID != pid {
		t.Errorf("expected pid %d, got %v", pid, got.ProcessID)
	}
	if got.ServerID == nil || *got.ServerID != serverID {
		t.Errorf("expected server id %d, got %v", serverID, got.ServerID)
	}
	if got.ExecutionLog != "[INFO] training task started\n" {
		t.Errorf("unexpected log: %q", got.ExecutionLog)
	}
}

func TestStoreLoadTolerance(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(t *testing.T, path string)
	}{
		{
			name:    "missing file",
			prepare: func(_ *testing.T, _ string) {},
		},
		{
			name: "malformed document",
			prepare: func(t *testing.T, path string) {
				if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
					t.Fatal(err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "tasks.json")
			tt.prepare(t, path)

			store := NewStore(path, testLogger())
			if got := store.GetAll(); len(got) != 0 {
				t.Errorf("expected empty collection, got %d tasks", len(got))
			}

			// The store must still accept writes afterwards.
			if _, err := store.Add(Task{Name: "after", DatasetPath: "/d"}); err != nil {
				t.Errorf("Add after tolerant load: %v", err)
			}
		})
	}
}

func TestStoreUpdateUnknownID(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "tasks.json"), testLogger())

	err := store.Update(Task{ID: 99, Name: "ghost"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreDeleteIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	store := NewStore(path, testLogger())

	added, err := store.Add(Task{Name: "short-lived", DatasetPath: "/d"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := store.Delete(added.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(added.ID); err != nil {
		t.Errorf("second Delete: %v", err)
	}
	if err := store.Delete(12345); err != nil {
		t.Errorf("Delete of unknown id: %v", err)
	}

	if _, err := store.GetByID(added.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestStatusSerialization(t *testing.T) {
	data, err := json.Marshal(Task{ID: 1, Status: Uploading, ExecutionMode: Remote, DatasetPath: "/d"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded["status"] != "UPLOADING" {
		t.Errorf("expected status UPLOADING, got %v", decoded["status"])
	}
	if decoded["execution_mode"] != "REMOTE" {
		t.Errorf("expected execution_mode REMOTE, got %v", decoded["execution_mode"])
	}

	var s Status
	if err := s.UnmarshalText([]byte("BOOTING")); err == nil {
		t.Error("expected error for unknown status")
	}
}
