// Package author drives the model to produce lesson documents, keeps the
// retrieval index current, and answers questions over previously authored
// content.
package author

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kitabite/scribe/internal/engine"
	"github.com/kitabite/scribe/internal/memory"
	"github.com/kitabite/scribe/internal/slug"
)

const neighborK = 5

// Author authors lessons against one curriculum. The zero value is not
// usable; fill every field.
type Author struct {
	Engine     engine.Engine
	ChatModel  string
	EmbedModel string

	Mem   *memory.Store
	Style string

	GeneratedRoot string
	CurriculumID  string
	SourceLang    string
	TargetLang    string
}

// LessonSpec identifies one lesson to author.
type LessonSpec struct {
	Module string
	Title  string
	Slug   string
	Brief  string
}

// One authors a single lesson, writes it under the generated root, and
// appends an index record. It returns the lesson file path. The index is NOT
// saved; callers decide when to flush (after one lesson or a whole batch).
func (a *Author) One(ctx context.Context, spec LessonSpec) (string, error) {
	lessonSlug := spec.Slug
	if lessonSlug == "" {
		lessonSlug = spec.Title
	}
	lessonSlug = slug.Normalize(lessonSlug)

	neighbors := a.neighborSummaries(spec.Title)
	neighborJSON, err := json.Marshal(neighbors)
	if err != nil {
		return "", fmt.Errorf("encoding neighbor summaries: %w", err)
	}

	raw, err := a.Engine.ChatJSON(ctx, a.ChatModel, []engine.Message{
		{Role: "system", Content: systemPrompt(a.Style, a.SourceLang, a.TargetLang)},
		{Role: "user", Content: lessonPrompt(spec.Module, spec.Title, lessonSlug, a.SourceLang, a.TargetLang, spec.Brief, string(neighborJSON))},
	})
	if err != nil {
		return "", fmt.Errorf("authoring %s: %w", lessonSlug, err)
	}

	var lesson map[string]any
	if err := json.Unmarshal([]byte(raw), &lesson); err != nil {
		return "", fmt.Errorf("lesson %s: model returned invalid JSON: %w", lessonSlug, err)
	}
	if err := validateLesson(lesson); err != nil {
		return "", fmt.Errorf("lesson %s: %w", lessonSlug, err)
	}

	outPath := filepath.Join(a.GeneratedRoot, a.CurriculumID, slug.Normalize(spec.Module), lessonSlug+".json")
	if err := saveJSON(outPath, lesson); err != nil {
		return "", err
	}

	vec, err := a.Engine.Embed(ctx, a.EmbedModel, EmbeddingText(lesson))
	if err != nil {
		return "", fmt.Errorf("embedding %s: %w", lessonSlug, err)
	}

	title, _ := lesson["title"].(string)
	rec := memory.Record{
		ID:     uuid.New().String(),
		Title:  title,
		Slug:   lessonSlug,
		Module: spec.Module,
		Path:   outPath,
		Vector: vec,
		Meta:   map[string]any{"created_at": time.Now().Unix()},
	}
	if err := a.Mem.Add(rec); err != nil {
		return "", fmt.Errorf("indexing %s: %w", lessonSlug, err)
	}

	return outPath, nil
}

// BatchOptions narrows and resumes a batch run.
type BatchOptions struct {
	FilterModule string // module title or slug; empty means all
	StartAt      string // lesson slug to resume from; empty means the beginning
}

// BatchResult is the outcome of a batch run.
type BatchResult struct {
	Authored int
	Failed   int
}

// Batch authors every lesson in a curriculum plan, in document order. A
// failed lesson is logged and skipped; the run continues. The index is saved
// once at the end.
func (a *Author) Batch(ctx context.Context, plan map[string]any, opts BatchOptions) (BatchResult, error) {
	var res BatchResult
	started := opts.StartAt == ""

	levels, _ := plan["levels"].([]any)
	for _, lv := range levels {
		level, ok := lv.(map[string]any)
		if !ok {
			continue
		}
		modules, _ := level["modules"].([]any)
		for _, md := range modules {
			module, ok := md.(map[string]any)
			if !ok {
				continue
			}
			modTitle, _ := module["title"].(string)
			modSlug := slug.Normalize(modTitle)
			if opts.FilterModule != "" && opts.FilterModule != modTitle && opts.FilterModule != modSlug {
				continue
			}

			lessons, _ := module["lessons"].([]any)
			for _, ls := range lessons {
				lesson, ok := ls.(map[string]any)
				if !ok {
					continue
				}
				title, _ := lesson["title"].(string)
				lessonSlug, _ := lesson["slug"].(string)
				if lessonSlug == "" {
					lessonSlug = slug.Normalize(title)
				}
				if !started {
					if lessonSlug == opts.StartAt {
						started = true
					} else {
						continue
					}
				}

				brief, _ := lesson["brief"].(string)
				path, err := a.One(ctx, LessonSpec{Module: modTitle, Title: title, Slug: lessonSlug, Brief: brief})
				if err != nil {
					slog.Warn("lesson failed", "slug", lessonSlug, "error", err)
					res.Failed++
					continue
				}
				slog.Info("lesson authored", "path", path)
				res.Authored++
			}
		}
	}

	if err := a.Mem.Save(); err != nil {
		return res, fmt.Errorf("saving index: %w", err)
	}
	return res, nil
}

// Ask answers a question over previously authored lessons. Retrieval pulls
// k=6 records; bodies are re-read from disk, unreadable ones skipped.
func (a *Author) Ask(ctx context.Context, question string) (string, error) {
	var docs []map[string]any
	for _, rec := range a.Mem.Search([]string{question}, 6) {
		lesson, err := readLesson(rec.Path)
		if err != nil {
			slog.Warn("skipping unreadable lesson", "path", rec.Path, "error", err)
			continue
		}
		docs = append(docs, map[string]any{
			"title":       lesson["title"],
			"id":          lesson["id"],
			"blocks":      headSlice(lesson["blocks"], 6),
			"quiz_sample": headSlice(quizQuestions(lesson), 6),
		})
	}

	retrieved, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding retrieved lessons: %w", err)
	}

	system := strings.TrimSpace("You are the curriculum librarian. Keep answers concise but accurate. Maintain the same voice and definitions. Style guide:\n\n" + a.Style)
	answer, err := a.Engine.Chat(ctx, a.ChatModel, []engine.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: ragPrompt(question, string(retrieved))},
	})
	if err != nil {
		return "", fmt.Errorf("answering question: %w", err)
	}
	return answer, nil
}

// Plan asks the model for a curriculum skeleton ready for batch authoring.
func Plan(ctx context.Context, e engine.Engine, model string, req PlanRequest) (map[string]any, error) {
	raw, err := e.ChatJSON(ctx, model, []engine.Message{
		{Role: "system", Content: "You design structured curricula with clear sequencing."},
		{Role: "user", Content: planPrompt(req)},
	})
	if err != nil {
		return nil, fmt.Errorf("generating plan: %w", err)
	}

	var plan map[string]any
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return nil, fmt.Errorf("plan: model returned invalid JSON: %w", err)
	}
	if _, ok := plan["levels"].([]any); !ok {
		return nil, fmt.Errorf("plan: missing levels array")
	}
	return plan, nil
}

// neighborSummaries retrieves the closest authored lessons and reduces each
// to its structural fingerprint. Records whose file is gone or corrupt are
// skipped silently; retrieval quality degrades, authoring does not stop.
func (a *Author) neighborSummaries(query string) []map[string]any {
	summaries := []map[string]any{}
	for _, rec := range a.Mem.Search([]string{query}, neighborK) {
		lesson, err := readLesson(rec.Path)
		if err != nil {
			continue
		}
		summaries = append(summaries, map[string]any{
			"id":                 lesson["id"],
			"title":              lesson["title"],
			"sample_block_types": typeNames(headSlice(lesson["blocks"], 5)),
			"sample_quiz_kinds":  typeNames(headSlice(quizQuestions(lesson), 5)),
		})
	}
	return summaries
}

// EmbeddingText is the canonical text embedded for a lesson: its title
// followed by one JSON line per block. Reindexing must produce the same text
// so rebuilt vectors match freshly authored ones.
func EmbeddingText(lesson map[string]any) string {
	var sb strings.Builder
	if title, ok := lesson["title"].(string); ok {
		sb.WriteString(title)
	}
	blocks, _ := lesson["blocks"].([]any)
	for _, b := range blocks {
		line, err := json.Marshal(b)
		if err != nil {
			continue
		}
		sb.WriteString("\n")
		sb.Write(line)
	}
	return sb.String()
}

func validateLesson(lesson map[string]any) error {
	for _, key := range []string{"id", "title", "blocks", "quiz"} {
		if _, ok := lesson[key]; !ok {
			return fmt.Errorf("missing required key %q", key)
		}
	}
	quiz, ok := lesson["quiz"].(map[string]any)
	if !ok {
		return fmt.Errorf("quiz is not an object")
	}
	if _, ok := quiz["questions"].([]any); !ok {
		return fmt.Errorf("missing quiz.questions array")
	}
	return nil
}

func readLesson(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lesson map[string]any
	if err := json.Unmarshal(data, &lesson); err != nil {
		return nil, err
	}
	return lesson, nil
}

func quizQuestions(lesson map[string]any) any {
	quiz, _ := lesson["quiz"].(map[string]any)
	return quiz["questions"]
}

func headSlice(v any, n int) []any {
	items, _ := v.([]any)
	if len(items) > n {
		return items[:n]
	}
	return items
}

func typeNames(items []any) []any {
	names := make([]any, 0, len(items))
	for _, it := range items {
		m, _ := it.(map[string]any)
		names = append(names, m["type"])
	}
	return names
}

func saveJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return f.Close()
}

// SavePlan persists a generated plan the same way lessons are persisted.
func SavePlan(path string, plan map[string]any) error {
	return saveJSON(path, plan)
}
