// Package bundle merges per-lesson documents back into one curriculum tree.
//
// A plan is the levels → modules → lessons skeleton used for authoring; the
// assembler resolves each lesson stub to its authored body and emits a tree
// with the same nesting. Assembly is all-or-nothing: any missing lesson
// fails the whole operation with every missing locator listed.
package bundle

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kitabite/scribe/internal/slug"
)

// ErrNotFound is returned by resolvers when a lesson document does not exist.
var ErrNotFound = errors.New("lesson not found")

// Resolver locates authored lesson bodies for the assembler.
type Resolver interface {
	// Resolve returns the lesson document, or an error wrapping ErrNotFound
	// when the lesson was never authored. Any other error aborts assembly.
	Resolve(moduleSlug, lessonSlug string) (map[string]any, error)
	// Locator renders the reference reported for a missing lesson.
	Locator(moduleSlug, lessonSlug string) string
}

// MissingLessonsError reports every lesson the resolver could not find.
type MissingLessonsError struct {
	Locators []string
}

func (e *MissingLessonsError) Error() string {
	return fmt.Sprintf("cannot bundle curriculum, missing lesson files: %s", strings.Join(e.Locators, ", "))
}

// Assemble walks plan.levels, deduplicates level and module ids in
// independent namespaces, resolves every lesson stub, and returns the merged
// tree. No partial bundle is ever returned.
func Assemble(plan map[string]any, r Resolver) (map[string]any, error) {
	var missing []string
	seenLevels := make(map[string]bool)
	seenModules := make(map[string]bool)

	levels, _ := plan["levels"].([]any)
	levelsOut := make([]any, 0, len(levels))

	for i, lv := range levels {
		level, ok := lv.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("plan level %d is not an object", i)
		}

		levelID := dedupeID(pickID(level, ""), seenLevels, "level")
		levelCopy := copyExcept(level, "modules")
		levelCopy["id"] = levelID

		modules, _ := level["modules"].([]any)
		modulesOut := make([]any, 0, len(modules))

		for j, mv := range modules {
			module, ok := mv.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("plan level %d module %d is not an object", i, j)
			}

			moduleID := dedupeID(pickID(module, stringField(module, "slug")), seenModules, "module")
			moduleCopy := copyExcept(module, "lessons")
			moduleCopy["id"] = moduleID

			modSlug := stringField(module, "slug")
			if modSlug == "" {
				title := stringField(module, "title")
				if title == "" {
					title = "module"
				}
				modSlug = slug.Normalize(title)
			}

			lessons, _ := module["lessons"].([]any)
			lessonsOut := make([]any, 0, len(lessons))
			for _, sv := range lessons {
				stub, ok := sv.(map[string]any)
				if !ok {
					continue
				}
				lessonSlug := stringField(stub, "slug")
				if lessonSlug == "" {
					lessonSlug = stringField(stub, "title")
					if lessonSlug == "" {
						lessonSlug = "lesson"
					}
				}
				lessonSlug = slug.Normalize(lessonSlug)

				doc, err := r.Resolve(modSlug, lessonSlug)
				if errors.Is(err, ErrNotFound) {
					missing = append(missing, r.Locator(modSlug, lessonSlug))
					continue
				}
				if err != nil {
					return nil, fmt.Errorf("resolving lesson %s/%s: %w", modSlug, lessonSlug, err)
				}
				lessonsOut = append(lessonsOut, doc)
			}

			moduleCopy["lessons"] = lessonsOut
			modulesOut = append(modulesOut, moduleCopy)
		}

		levelCopy["modules"] = modulesOut
		levelsOut = append(levelsOut, levelCopy)
	}

	if len(missing) > 0 {
		return nil, &MissingLessonsError{Locators: missing}
	}
	return map[string]any{"levels": levelsOut}, nil
}

// pickID prefers an explicit id, then the given secondary field value, then
// the normalized title. Empty means the caller falls back to a positional id.
func pickID(node map[string]any, secondary string) string {
	if id := stringField(node, "id"); id != "" {
		return id
	}
	if secondary != "" {
		return secondary
	}
	return slug.Normalize(stringField(node, "title"))
}

// dedupeID fills in a positional fallback for an empty id and suffixes
// colliding ids with the count of ids seen so far in this namespace.
func dedupeID(id string, seen map[string]bool, category string) string {
	if id == "" {
		id = fmt.Sprintf("%s-%d", category, len(seen)+1)
	}
	if seen[id] {
		id = fmt.Sprintf("%s-%d", id, len(seen)+1)
	}
	seen[id] = true
	return id
}

func copyExcept(node map[string]any, skip string) map[string]any {
	out := make(map[string]any, len(node))
	for k, v := range node {
		if k != skip {
			out[k] = v
		}
	}
	return out
}

func stringField(node map[string]any, key string) string {
	s, _ := node[key].(string)
	return s
}

// DirResolver resolves lessons by the on-disk convention
// <generated-root>/<curriculum-id>/<module-slug>/<lesson-slug>.json.
type DirResolver struct {
	baseDir string
}

// NewDirResolver validates that lessons were generated for the curriculum
// and returns a resolver rooted at its directory.
func NewDirResolver(generatedRoot, curriculumID string) (*DirResolver, error) {
	baseDir := filepath.Join(generatedRoot, curriculumID)
	info, err := os.Stat(baseDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("no generated lessons found for curriculum %s under %s", curriculumID, baseDir)
	}
	return &DirResolver{baseDir: baseDir}, nil
}

func (d *DirResolver) Locator(moduleSlug, lessonSlug string) string {
	return filepath.Join(d.baseDir, moduleSlug, lessonSlug+".json")
}

func (d *DirResolver) Resolve(moduleSlug, lessonSlug string) (map[string]any, error) {
	path := d.Locator(moduleSlug, lessonSlug)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return doc, nil
}
