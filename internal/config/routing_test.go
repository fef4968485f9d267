package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ShayCichocki/krishi/pkg/models"
)

const sampleRouting = `
keywords:
  agriculture: [sow, seed, mandi]
  policy: [scheme]
lexicon:
  crop: [paddy, cotton]
units:
  - from: [bigha]
    to: acres
    factor: 0.62
glossary:
  mr:
    water: पाणी
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadRouting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routing.yaml")
	writeFile(t, path, sampleRouting)

	r, err := LoadRouting(path)
	if err != nil {
		t.Fatalf("LoadRouting failed: %v", err)
	}

	kw := r.IntentKeywords()
	if got := kw[models.WorkerAgriculture]; len(got) != 3 || got[2] != "mandi" {
		t.Errorf("agriculture keywords = %v", got)
	}
	if _, ok := kw[models.WorkerSustainability]; ok {
		t.Error("workers absent from the file should have no keywords")
	}
	if lex := r.IntentLexicon(); len(lex[models.EntityCrop]) != 2 {
		t.Errorf("lexicon = %v", lex)
	}
	if got := r.UnitMap().Apply("2 bigha"); got != "1.2 acres" {
		t.Errorf("UnitMap().Apply = %q, want 1.2 acres", got)
	}
	if g := r.TranslationGlossary(); g["mr"]["water"] != "पाणी" {
		t.Errorf("glossary = %v", g)
	}
}

func TestRouting_EmptySectionsUseDefaults(t *testing.T) {
	r := &Routing{}
	if r.IntentKeywords() != nil || r.IntentLexicon() != nil {
		t.Error("empty sections should return nil tables")
	}
	if len(r.UnitMap()) == 0 {
		t.Error("empty units should fall back to the default unit map")
	}
	if len(r.TranslationGlossary()) == 0 {
		t.Error("empty glossary should fall back to the default glossary")
	}
}

func TestLoadRouting_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown worker", "keywords:\n  weather: [rain]\n"},
		{"empty keyword list", "keywords:\n  policy: []\n"},
		{"unknown entity kind", "lexicon:\n  animal: [cow]\n"},
		{"bad unit", "units:\n  - from: [bigha]\n    to: acres\n    factor: 0\n"},
		{"ambiguous glossary", "glossary:\n  hi:\n    water: पानी\n    aqua: पानी\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "routing.yaml")
			writeFile(t, path, tt.content)
			if _, err := LoadRouting(path); !errors.Is(err, ErrInvalid) {
				t.Errorf("LoadRouting error = %v, want ErrInvalid", err)
			}
		})
	}

	path := filepath.Join(t.TempDir(), "routing.yaml")
	writeFile(t, path, "keywords: [not, a, map]\n")
	if _, err := LoadRouting(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestWriteDefaultRouting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routing.yaml")
	if err := WriteDefaultRouting(path); err != nil {
		t.Fatalf("WriteDefaultRouting failed: %v", err)
	}
	r, err := LoadRouting(path)
	if err != nil {
		t.Fatalf("default routing should load: %v", err)
	}
	if len(r.IntentKeywords()[models.WorkerPolicy]) == 0 {
		t.Error("default routing should carry policy keywords")
	}
}

func TestWatchRouting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routing.yaml")
	writeFile(t, path, "keywords:\n  policy: [scheme]\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Routing, 4)
	done := make(chan error, 1)
	go func() {
		done <- WatchRouting(ctx, path, func(r *Routing) { changes <- r })
	}()

	// Give the watcher time to register before writing.
	time.Sleep(200 * time.Millisecond)
	writeFile(t, path, "keywords: [broken\n")
	time.Sleep(300 * time.Millisecond)
	writeFile(t, path, "keywords:\n  policy: [scheme, yojana]\n")

	select {
	case r := <-changes:
		if got := r.IntentKeywords()[models.WorkerPolicy]; len(got) != 2 {
			t.Errorf("reloaded keywords = %v, want the valid version", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("WatchRouting returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WatchRouting did not stop on cancel")
	}
}
