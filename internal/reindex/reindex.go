// Package reindex rebuilds the retrieval index from lesson files on disk.
// Embedding is the slow part, so lessons are embedded concurrently; the
// index itself is only ever touched by one goroutine.
package reindex

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kitabite/scribe/internal/author"
	"github.com/kitabite/scribe/internal/engine"
	"github.com/kitabite/scribe/internal/memory"
	"github.com/kitabite/scribe/internal/slug"
)

const embedConcurrency = 4

// Options configures a rebuild.
type Options struct {
	// Source is the root folder holding lesson JSON files.
	Source string
	// Keep appends to the existing index instead of clearing it first.
	Keep bool
	// EmbedModel is passed through to the engine.
	EmbedModel string
}

// Result reports what a rebuild did.
type Result struct {
	Indexed int
	Skipped int
}

// Rebuild embeds every lesson under opts.Source and writes the records into
// store. Unreadable or unembeddable lessons are logged and skipped; only a
// missing source directory or a failed index save aborts the run.
func Rebuild(ctx context.Context, store *memory.Store, eng engine.Engine, opts Options) (Result, error) {
	var res Result

	if _, err := os.Stat(opts.Source); err != nil {
		return res, fmt.Errorf("lesson source %s: %w", opts.Source, err)
	}

	files, err := lessonFiles(opts.Source)
	if err != nil {
		return res, err
	}
	if len(files) == 0 {
		return res, nil
	}

	if !opts.Keep {
		store.Clear()
	}

	// Each goroutine writes only its own slot; nil marks a skipped lesson.
	records := make([]*memory.Record, len(files))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)

	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			rec, err := buildRecord(gCtx, eng, opts.EmbedModel, path)
			if err != nil {
				slog.Warn("skipping lesson", "path", path, "error", err)
				return nil
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	for _, rec := range records {
		if rec == nil {
			res.Skipped++
			continue
		}
		if err := store.Add(*rec); err != nil {
			slog.Warn("skipping lesson", "path", rec.Path, "error", err)
			res.Skipped++
			continue
		}
		res.Indexed++
	}

	if err := store.Save(); err != nil {
		return res, fmt.Errorf("saving index: %w", err)
	}
	return res, nil
}

func buildRecord(ctx context.Context, eng engine.Engine, model, path string) (*memory.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading lesson: %w", err)
	}
	var lesson map[string]any
	if err := json.Unmarshal(data, &lesson); err != nil {
		return nil, fmt.Errorf("invalid lesson JSON: %w", err)
	}

	stem := strings.TrimSuffix(filepath.Base(path), ".json")
	module, _ := lesson["module"].(string)
	if module == "" {
		module = filepath.Base(filepath.Dir(path))
	}
	recSlug, _ := lesson["slug"].(string)
	if recSlug == "" {
		recSlug, _ = lesson["id"].(string)
	}
	if recSlug == "" {
		recSlug = stem
	}
	title, _ := lesson["title"].(string)
	if title == "" {
		title = stem
	}

	vec, err := eng.Embed(ctx, model, author.EmbeddingText(lesson))
	if err != nil {
		return nil, fmt.Errorf("embedding lesson: %w", err)
	}

	return &memory.Record{
		ID:     uuid.New().String(),
		Title:  title,
		Slug:   slug.Normalize(recSlug),
		Module: module,
		Path:   path,
		Vector: vec,
		Meta:   map[string]any{"created_at": time.Now().Unix()},
	}, nil
}

// lessonFiles walks root and returns every .json file, in walk order so the
// rebuilt index is deterministic for a given tree.
func lessonFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".json") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return files, nil
}
