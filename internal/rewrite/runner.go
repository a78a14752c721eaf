package rewrite

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Options controls a batch run over files.
type Options struct {
	// DryRun reports which files would change without writing anything.
	DryRun bool
	// OutputDir, when set, receives modified files instead of rewriting
	// them in place; originals are left untouched.
	OutputDir string
}

// Result summarizes a batch run. Failed counts files that were unreadable or
// not valid JSON; those are skipped, never partially written.
type Result struct {
	Scanned int
	Changed int
	Failed  int
	// ChangedPaths lists the source files that changed (or would change,
	// under DryRun), in walk order.
	ChangedPaths []string
	Tally        Tally
}

// Run applies instructions to target — a JSON file or a directory walked
// recursively for *.json — honoring opts. A file that cannot be read or
// parsed is logged and skipped; the run continues so the final tally still
// covers every readable file.
func Run(target string, instructions []Instruction, opts Options) (Result, error) {
	res := Result{Tally: make(Tally)}

	info, err := os.Stat(target)
	if err != nil {
		return res, fmt.Errorf("stat target: %w", err)
	}

	files, err := collectJSONFiles(target, info.IsDir())
	if err != nil {
		return res, err
	}
	if len(files) == 0 {
		return res, fmt.Errorf("no JSON files found under %s", target)
	}

	baseDir := target
	if !info.IsDir() {
		baseDir = filepath.Dir(target)
	}

	for _, file := range files {
		res.Scanned++
		changed, tally, err := processFile(file, baseDir, instructions, opts, info.IsDir())
		if err != nil {
			slog.Warn("skipping file", "path", file, "error", err)
			res.Failed++
			continue
		}
		res.Tally.Merge(tally)
		if changed {
			res.Changed++
			res.ChangedPaths = append(res.ChangedPaths, file)
		}
	}
	return res, nil
}

func collectJSONFiles(target string, isDir bool) ([]string, error) {
	if !isDir {
		if strings.EqualFold(filepath.Ext(target), ".json") {
			return []string{target}, nil
		}
		return nil, nil
	}

	var files []string
	err := filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".json") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", target, err)
	}
	return files, nil
}

func processFile(file, baseDir string, instructions []Instruction, opts Options, targetIsDir bool) (bool, Tally, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return false, nil, fmt.Errorf("reading: %w", err)
	}

	var tree any
	if err := json.Unmarshal(data, &tree); err != nil {
		return false, nil, fmt.Errorf("parsing JSON: %w", err)
	}

	tree, changed, tally := Apply(tree, instructions)
	if !changed || opts.DryRun {
		return changed, tally, nil
	}

	destination := file
	if opts.OutputDir != "" {
		rel := filepath.Base(file)
		if targetIsDir {
			rel, err = filepath.Rel(baseDir, file)
			if err != nil {
				return false, nil, fmt.Errorf("relativizing %s: %w", file, err)
			}
		}
		destination = filepath.Join(opts.OutputDir, rel)
		if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
			return false, nil, fmt.Errorf("creating output directory: %w", err)
		}
	}

	if err := writeJSON(destination, tree); err != nil {
		return false, nil, err
	}
	return true, tally, nil
}

func writeJSON(path string, tree any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(tree); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
