package memory

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testRecord(id, title string, createdAt int64, vector []float32) Record {
	return Record{
		ID:     id,
		Title:  title,
		Slug:   strings.ToLower(strings.ReplaceAll(title, " ", "-")),
		Module: "grammar",
		Path:   "/tmp/" + id + ".json",
		Vector: vector,
		Meta:   map[string]any{"created_at": createdAt},
	}
}

func TestLoad_MissingFile(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "index.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory", "index.json")
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := s.Add(testRecord("r1", "Noun Cases", 10, []float32{1, 0})); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.Len() != 1 {
		t.Fatalf("Len = %d, want 1", again.Len())
	}
	got := again.Records()[0]
	if got.ID != "r1" || got.Title != "Noun Cases" {
		t.Errorf("record = %+v", got)
	}
	if got.CreatedAt() != 10 {
		t.Errorf("CreatedAt = %d, want 10", got.CreatedAt())
	}
}

func TestLoad_CorruptJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted corrupt JSON")
	}
}

func TestLoad_MissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	body := `{"items":[{"title":"no id or path"}]}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted item without id")
	}
}

func TestLoad_VectorLengthMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	body := `{"items":[
		{"id":"a","path":"/a.json","vector":[1,2]},
		{"id":"b","path":"/b.json","vector":[1,2,3]}
	]}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted mismatched vector lengths")
	}
}

func TestAdd_RejectsMismatchedVector(t *testing.T) {
	s := &Store{}
	if err := s.Add(testRecord("a", "A", 1, []float32{1, 2, 3})); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add(testRecord("b", "B", 2, nil)); err != nil {
		t.Fatalf("Add unembedded: %v", err)
	}
	if err := s.Add(testRecord("c", "C", 3, []float32{1, 2})); err == nil {
		t.Fatal("Add accepted a vector of different length")
	}
}

func TestSearch_EmptyIndex(t *testing.T) {
	s := &Store{}
	if got := s.Search([]string{"x"}, 3); len(got) != 0 {
		t.Errorf("got %d results, want 0", len(got))
	}
}

func TestSearch_NoVectorsReturnsMostRecent(t *testing.T) {
	s := &Store{}
	for i, ts := range []int64{5, 30, 10, 20, 1} {
		rec := testRecord(strings.Repeat("r", i+1), "Lesson", ts, nil)
		if err := s.Add(rec); err != nil {
			t.Fatal(err)
		}
	}
	got := s.Search([]string{"anything"}, 2)
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
	if got[0].CreatedAt() != 30 || got[1].CreatedAt() != 20 {
		t.Errorf("timestamps = %d, %d; want 30, 20", got[0].CreatedAt(), got[1].CreatedAt())
	}
}

func TestSearch_KeywordPartitionFirst(t *testing.T) {
	s := &Store{}
	must := func(r Record) {
		t.Helper()
		if err := s.Add(r); err != nil {
			t.Fatal(err)
		}
	}
	must(testRecord("old-match", "Verb Forms", 1, []float32{1, 0}))
	must(testRecord("new-other", "Pronouns", 100, []float32{0, 1}))
	must(testRecord("new-match", "Verb Tenses", 50, []float32{1, 1}))

	got := s.Search([]string{"verb"}, 3)
	if len(got) != 3 {
		t.Fatalf("got %d results, want 3", len(got))
	}
	// Keyword matches lead, each partition most-recent-first.
	wantIDs := []string{"new-match", "old-match", "new-other"}
	for i, want := range wantIDs {
		if got[i].ID != want {
			t.Errorf("result[%d] = %s, want %s", i, got[i].ID, want)
		}
	}
}

func TestSearch_TruncatesToK(t *testing.T) {
	s := &Store{}
	for i := 0; i < 5; i++ {
		rec := testRecord(strings.Repeat("x", i+1), "Topic", int64(i), []float32{1})
		if err := s.Add(rec); err != nil {
			t.Fatal(err)
		}
	}
	if got := s.Search([]string{"topic"}, 2); len(got) != 2 {
		t.Errorf("got %d results, want 2", len(got))
	}
}
