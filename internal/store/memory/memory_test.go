package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/MrSnakeDoc/aimarket/internal/domain"
	"github.com/MrSnakeDoc/aimarket/internal/events"
	"github.com/MrSnakeDoc/aimarket/internal/store"
	"github.com/MrSnakeDoc/aimarket/internal/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T, pub events.Publisher) store.Store {
		s, err := New(Options{Publisher: pub})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		return s
	})
}

func TestConformanceWithFile(t *testing.T) {
	storetest.Run(t, func(t *testing.T, pub events.Publisher) store.Store {
		s, err := New(Options{Path: filepath.Join(t.TempDir(), "aiapps.json"), Publisher: pub})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		return s
	})
}

func TestNewStartsEmpty(t *testing.T) {
	s, err := New(Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if s.Count() != 0 {
		t.Errorf("Count() = %d, want 0", s.Count())
	}
}

func TestPersistAndReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "aiapps.json")

	s, err := New(Options{Path: path})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	created, err := s.Create(ctx, &domain.Listing{Name: "Acme", URL: "https://acme.fi", Region: domain.RegionFinland})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	active := true
	if _, err := s.Update(ctx, created.ID, domain.Patch{Active: &active}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("data file not written: %v", err)
	}

	reloaded, err := New(Options{Path: path})
	if err != nil {
		t.Fatalf("reload error = %v", err)
	}
	got, err := reloaded.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get() after reload error = %v", err)
	}
	if got.Name != "Acme" || !got.Active {
		t.Errorf("reloaded listing = %+v", got)
	}
}

func TestLoadSetsCorruptFileAside(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aiapps.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := New(Options{Path: path})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if s.Count() != 0 {
		t.Errorf("Count() = %d, want 0", s.Count())
	}

	backups, _ := filepath.Glob(filepath.Join(dir, "aiapps.json.corrupt-*"))
	if len(backups) != 1 {
		t.Fatalf("expected one backup of the corrupt file, got %v", backups)
	}
	data, _ := os.ReadFile(backups[0])
	if string(data) != "{broken" {
		t.Errorf("backup content = %q", data)
	}
}

func TestLoadToleratesEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aiapps.json")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := New(Options{Path: path})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if s.Count() != 0 {
		t.Errorf("Count() = %d, want 0", s.Count())
	}
}

func TestWriteFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	// the data path is a directory, so rename always fails
	path := filepath.Join(dir, "aiapps.json")
	if err := os.MkdirAll(filepath.Join(path, "occupied"), 0o755); err != nil {
		t.Fatal(err)
	}

	rec := &storetest.Recorder{}
	s, err := New(Options{Publisher: rec})
	if err != nil {
		t.Fatal(err)
	}
	s.path = path

	_, err = s.Create(ctx, &domain.Listing{Name: "Acme"})
	if err == nil {
		t.Fatal("Create() should fail when the data file cannot be written")
	}
	if domain.Code(err) != "STORAGE_UNAVAILABLE" {
		t.Errorf("Code() = %q, want STORAGE_UNAVAILABLE", domain.Code(err))
	}
	if s.Count() != 0 {
		t.Errorf("failed create left %d listings behind", s.Count())
	}
	if len(rec.Events()) != 0 {
		t.Errorf("failed create published %d events", len(rec.Events()))
	}
}
