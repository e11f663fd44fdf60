package seed

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrSnakeDoc/aimarket/internal/domain"
	"github.com/MrSnakeDoc/aimarket/internal/logger"
	"github.com/MrSnakeDoc/aimarket/internal/store"
	"github.com/MrSnakeDoc/aimarket/internal/store/memory"
)

const sample = `---
- Finland:
    - Suomi AI:
        href: suomi.example
        icon: suomi.example/logo.png
        description: Finnish language assistant
        useCase: Chatbot, Translation
        addedBy: Maija
        addedByEmail: maija@suomi.example
- Europe:
    - Euro Vision:
        href: https://vision.example
        description: Image recognition
        useCase: Vision
        addedByEmail: {{CONTACT_EMAIL}}
    - Draft:
        href: draft.example
        description: Not reviewed yet
        useCase: Analytics
        active: false
`

var t0 = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write seed file: %v", err)
	}
	return path
}

func TestLoaderLoad(t *testing.T) {
	file, err := NewLoader(writeSeed(t, sample)).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(file) != 2 {
		t.Fatalf("len(groups) = %d, want 2", len(file))
	}
	europe := file[1]["Europe"]
	if len(europe) != 2 {
		t.Fatalf("len(Europe) = %d, want 2", len(europe))
	}
	if got := europe[0]["Euro Vision"].AddedByEmail; got != "" {
		t.Errorf("template variable not stripped: %q", got)
	}
}

func TestLoaderErrors(t *testing.T) {
	if _, err := NewLoader(filepath.Join(t.TempDir(), "missing.yaml")).Load(); err == nil {
		t.Error("Load() on a missing file should fail")
	}
	if _, err := NewLoader(writeSeed(t, "- Finland: [")).Load(); err == nil {
		t.Error("Load() on invalid yaml should fail")
	}
}

func TestMap(t *testing.T) {
	file, err := NewLoader(writeSeed(t, sample)).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	listings, err := Map(file, t0)
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	if len(listings) != 3 {
		t.Fatalf("len(listings) = %d, want 3", len(listings))
	}

	byName := make(map[string]*domain.Listing)
	for _, l := range listings {
		byName[l.Name] = l
	}

	suomi := byName["Suomi AI"]
	if suomi == nil {
		t.Fatal("Suomi AI missing")
	}
	if suomi.URL != "https://suomi.example" || suomi.ImageKey != "https://suomi.example/logo.png" {
		t.Errorf("urls = %q / %q", suomi.URL, suomi.ImageKey)
	}
	if suomi.Region != domain.RegionFinland || !suomi.Active || suomi.ApprovedBy != Approver {
		t.Errorf("suomi = %+v", suomi)
	}

	vision := byName["Euro Vision"]
	if vision.AddedBy != DefaultAddedBy || vision.AddedByEmail != DefaultAddedByEmail {
		t.Errorf("defaults not applied: %q %q", vision.AddedBy, vision.AddedByEmail)
	}

	if draft := byName["Draft"]; draft.Active || draft.ApprovedAt != nil {
		t.Errorf("draft should stay pending: %+v", draft)
	}
}

func TestMapSkipsInvalidEntries(t *testing.T) {
	file := File{
		{"Finland": {{"Good": {Href: "good.example", Description: "d", UseCase: "CRM"}}}},
		{"Mars": {{"Alien": {Href: "alien.example", Description: "d", UseCase: "CRM"}}}},
		{"Europe": {{"No URL": {Description: "d", UseCase: "CRM"}}}},
	}

	listings, err := Map(file, t0)
	if len(listings) != 1 || listings[0].Name != "Good" {
		t.Fatalf("Map() kept %d listings", len(listings))
	}
	if err == nil || !strings.Contains(err.Error(), "Mars/Alien") || !strings.Contains(err.Error(), "Europe/No URL") {
		t.Errorf("Map() error = %v", err)
	}

	if _, err := Map(File{}, t0); err == nil {
		t.Error("Map() of an empty file should fail")
	}
}

func TestApplySeedsEmptyStoreOnce(t *testing.T) {
	ctx := context.Background()
	st, err := memory.New(memory.Options{})
	if err != nil {
		t.Fatalf("memory.New() error = %v", err)
	}
	path := writeSeed(t, sample)

	n, err := Apply(ctx, st, path, t0, logger.NewNop())
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Apply() wrote %d, want 3", n)
	}

	active, _ := st.List(ctx, store.Filter{ActiveOnly: true})
	if len(active) != 2 {
		t.Errorf("active listings = %d, want 2", len(active))
	}

	n, err = Apply(ctx, st, path, t0, logger.NewNop())
	if err != nil || n != 0 {
		t.Errorf("second Apply() = %d, %v; want 0, nil", n, err)
	}
	all, _ := st.List(ctx, store.Filter{})
	if len(all) != 3 {
		t.Errorf("listings after second Apply() = %d, want 3", len(all))
	}
}
