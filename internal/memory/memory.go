// Package memory is the retrieval index over previously authored lessons.
//
// The index is a single JSON document {"items":[...]} holding one record per
// authored lesson: organizational metadata, a pointer to the lesson file, and
// an optional embedding vector. Bodies are never stored; neighbor previews
// re-read the lesson file through Record.Path.
package memory

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Record is one index entry. Slug is not required to be globally unique; ID
// uniqueness is the caller's job (mint with uuid at insertion).
type Record struct {
	ID     string         `json:"id"`
	Title  string         `json:"title"`
	Slug   string         `json:"slug"`
	Module string         `json:"module"`
	Path   string         `json:"path"`
	Vector []float32      `json:"vector"`
	Meta   map[string]any `json:"meta"`
}

// CreatedAt returns meta.created_at as unix seconds, 0 when absent.
// JSON decoding yields float64; records built in-process may carry int64.
func (r Record) CreatedAt() int64 {
	switch v := r.Meta["created_at"].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	}
	return 0
}

// Store is an append-only collection of records backed by one JSON file.
// Not safe for concurrent Add; callers parallelizing embedding must funnel
// records through a single writer.
type Store struct {
	path  string
	items []Record
}

type indexFile struct {
	Items []Record `json:"items"`
}

// Load reads the index at path. A missing file yields an empty index; a
// corrupt or structurally invalid file is an error — the store never drops
// records to self-heal.
func Load(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading index %s: %w", path, err)
	}

	var f indexFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid index JSON %s: %w", path, err)
	}

	dim := 0
	for i, it := range f.Items {
		if it.ID == "" {
			return nil, fmt.Errorf("index %s: item %d missing id", path, i)
		}
		if it.Path == "" {
			return nil, fmt.Errorf("index %s: item %d (%s) missing path", path, i, it.ID)
		}
		if len(it.Vector) == 0 {
			continue
		}
		if dim == 0 {
			dim = len(it.Vector)
		} else if len(it.Vector) != dim {
			return nil, fmt.Errorf("index %s: item %s vector length %d, want %d", path, it.ID, len(it.Vector), dim)
		}
	}

	s.items = f.Items
	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Len returns the number of records.
func (s *Store) Len() int { return len(s.items) }

// Records returns the records in insertion order. The slice is shared; treat
// it as read-only.
func (s *Store) Records() []Record { return s.items }

// Clear drops all records. Used by full-index rebuilds.
func (s *Store) Clear() { s.items = nil }

// Add appends a record. No ID uniqueness check is performed, but a non-empty
// vector must match the length of every other non-empty vector in the store.
func (s *Store) Add(rec Record) error {
	if len(rec.Vector) > 0 {
		for _, it := range s.items {
			if len(it.Vector) == 0 {
				continue
			}
			if len(it.Vector) != len(rec.Vector) {
				return fmt.Errorf("record %s: vector length %d, index holds %d-dimensional vectors", rec.ID, len(rec.Vector), len(it.Vector))
			}
			break
		}
	}
	s.items = append(s.items, rec)
	return nil
}

// Save writes the whole collection back to the backing file, creating parent
// directories as needed.
func (s *Store) Save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(indexFile{Items: s.items}); err != nil {
		return fmt.Errorf("encoding index: %w", err)
	}

	if err := os.WriteFile(s.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing index %s: %w", s.path, err)
	}
	return nil
}

// Search returns up to k records for the given query strings.
//
// While no record carries a vector the ranking is purely most-recent-first.
// Once at least one vector exists, records whose title/slug/module contain
// any whitespace-split token of the lower-cased queries are ranked ahead of
// the rest, each partition most-recent-first. The ranking never consults the
// embedding itself; Cosine is the exported primitive for vector-aware callers.
func (s *Store) Search(queries []string, k int) []Record {
	if k <= 0 || len(s.items) == 0 {
		return nil
	}

	hasVec := false
	for _, it := range s.items {
		if len(it.Vector) > 0 {
			hasVec = true
			break
		}
	}

	if !hasVec {
		out := make([]Record, len(s.items))
		copy(out, s.items)
		sortByRecency(out)
		return truncate(out, k)
	}

	tokens := strings.Fields(strings.ToLower(strings.Join(queries, " ")))

	var matched, rest []Record
	for _, it := range s.items {
		hay := strings.ToLower(it.Title + " " + it.Slug + " " + it.Module)
		if containsAny(hay, tokens) {
			matched = append(matched, it)
		} else {
			rest = append(rest, it)
		}
	}

	sortByRecency(matched)
	sortByRecency(rest)
	return truncate(append(matched, rest...), k)
}

func containsAny(hay string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(hay, tok) {
			return true
		}
	}
	return false
}

func sortByRecency(items []Record) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt() > items[j].CreatedAt()
	})
}

func truncate(items []Record, k int) []Record {
	if len(items) > k {
		return items[:k]
	}
	return items
}
