package reindex

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/kitabite/scribe/internal/engine"
	"github.com/kitabite/scribe/internal/memory"
)

// fakeEngine embeds everything as a fixed 2-d vector, failing texts that
// contain failOn.
type fakeEngine struct {
	failOn string
}

func (fakeEngine) ChatJSON(context.Context, string, []engine.Message) (string, error) {
	panic("chat not used by reindex")
}

func (fakeEngine) Chat(context.Context, string, []engine.Message) (string, error) {
	panic("chat not used by reindex")
}

func (f fakeEngine) Embed(_ context.Context, _ string, text string) ([]float32, error) {
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return nil, fmt.Errorf("embed rejected")
	}
	return []float32{1, 0}, nil
}

func writeLesson(t *testing.T, dir, module, name, title string) string {
	t.Helper()
	path := filepath.Join(dir, module, name+".json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	body := fmt.Sprintf(`{"id":%q,"title":%q,"blocks":[{"type":"text","data":"body"}],"quiz":{"questions":[]}}`, name, title)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newStore(t *testing.T) *memory.Store {
	t.Helper()
	store, err := memory.Load(filepath.Join(t.TempDir(), "index.json"))
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func TestRebuild_IndexesAllLessons(t *testing.T) {
	src := t.TempDir()
	writeLesson(t, src, "nouns", "cases", "Cases")
	writeLesson(t, src, "nouns", "gender", "Gender")
	writeLesson(t, src, "verbs", "past", "Past Tense")

	store := newStore(t)
	res, err := Rebuild(context.Background(), store, fakeEngine{}, Options{Source: src, EmbedModel: "m"})
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if res.Indexed != 3 || res.Skipped != 0 {
		t.Errorf("result = %+v", res)
	}
	if store.Len() != 3 {
		t.Fatalf("store has %d records", store.Len())
	}

	var modules []string
	for _, rec := range store.Records() {
		if rec.ID == "" || len(rec.Vector) != 2 || rec.CreatedAt() == 0 {
			t.Errorf("incomplete record %+v", rec)
		}
		modules = append(modules, rec.Module)
	}
	sort.Strings(modules)
	if modules[0] != "nouns" || modules[2] != "verbs" {
		t.Errorf("modules = %v", modules)
	}

	// Index must be persisted.
	if _, err := os.Stat(store.Path()); err != nil {
		t.Errorf("index not saved: %v", err)
	}
}

func TestRebuild_SkipsCorruptAndUnembeddable(t *testing.T) {
	src := t.TempDir()
	writeLesson(t, src, "nouns", "good", "Good")
	writeLesson(t, src, "nouns", "poison", "Poison Title")
	if err := os.WriteFile(filepath.Join(src, "broken.json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := newStore(t)
	res, err := Rebuild(context.Background(), store, fakeEngine{failOn: "Poison"}, Options{Source: src, EmbedModel: "m"})
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if res.Indexed != 1 || res.Skipped != 2 {
		t.Errorf("result = %+v", res)
	}
	if store.Len() != 1 || store.Records()[0].Slug != "good" {
		t.Errorf("records = %+v", store.Records())
	}
}

func TestRebuild_ClearVersusKeep(t *testing.T) {
	src := t.TempDir()
	writeLesson(t, src, "nouns", "cases", "Cases")

	store := newStore(t)
	store.Add(memory.Record{ID: "old", Title: "Old", Path: "/old.json", Vector: []float32{0, 1}})

	res, err := Rebuild(context.Background(), store, fakeEngine{}, Options{Source: src, Keep: true, EmbedModel: "m"})
	if err != nil {
		t.Fatalf("Rebuild keep: %v", err)
	}
	if res.Indexed != 1 || store.Len() != 2 {
		t.Errorf("keep: result %+v, len %d", res, store.Len())
	}

	if _, err := Rebuild(context.Background(), store, fakeEngine{}, Options{Source: src, EmbedModel: "m"}); err != nil {
		t.Fatalf("Rebuild clear: %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("clear: len = %d, want 1", store.Len())
	}
}

func TestRebuild_MissingSource(t *testing.T) {
	store := newStore(t)
	if _, err := Rebuild(context.Background(), store, fakeEngine{}, Options{Source: filepath.Join(t.TempDir(), "absent")}); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestRebuild_EmptySource(t *testing.T) {
	store := newStore(t)
	res, err := Rebuild(context.Background(), store, fakeEngine{}, Options{Source: t.TempDir()})
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if res.Indexed != 0 || res.Skipped != 0 {
		t.Errorf("result = %+v", res)
	}
}
