// Package migrate normalizes lessons authored before the current schema:
// text blocks whose data is an object or a list are flattened to the plain
// string form the platform expects. This is a tree edit, so it lives apart
// from the string-leaf rewrite engine.
package migrate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Header keys surface first; body keys join into one passage; anything else
// trails as "key: value" lines.
var (
	textHeaderKeys = []string{"heading", "title", "subtitle"}
	textBodyKeys   = []string{"content", "text", "body", "value", "description"}
)

// FlattenTextData reduces any legacy text-block payload to a single string.
// Strings pass through unchanged.
func FlattenTextData(data any) string {
	switch v := data.(type) {
	case string:
		return v

	case []any:
		var parts []string
		for _, item := range v {
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")

	case map[string]any:
		var parts []string
		for _, key := range textHeaderKeys {
			if s, ok := v[key].(string); ok && strings.TrimSpace(s) != "" {
				parts = append(parts, strings.TrimSpace(s))
			}
		}
		var body []string
		for _, key := range textBodyKeys {
			if s, ok := v[key].(string); ok && strings.TrimSpace(s) != "" {
				body = append(body, strings.TrimSpace(s))
			}
		}
		if len(body) > 0 {
			parts = append(parts, strings.Join(body, "\n\n"))
		}
		var extra []string
		for key, val := range v {
			if isTextKey(key) || val == nil {
				continue
			}
			extra = append(extra, fmt.Sprintf("%s: %v", key, val))
		}
		// Decoded maps carry no order; sort so reruns produce identical files.
		sort.Strings(extra)
		if len(extra) > 0 {
			parts = append(parts, strings.Join(extra, "\n"))
		}
		return strings.TrimSpace(strings.Join(parts, "\n\n"))

	default:
		return fmt.Sprint(data)
	}
}

func isTextKey(key string) bool {
	for _, k := range textHeaderKeys {
		if key == k {
			return true
		}
	}
	for _, k := range textBodyKeys {
		if key == k {
			return true
		}
	}
	return false
}

// NormalizeLesson flattens every text block's data in place and reports
// whether anything changed. Blocks already carrying a string are untouched.
func NormalizeLesson(lesson map[string]any) bool {
	changed := false
	blocks, _ := lesson["blocks"].([]any)
	for _, b := range blocks {
		block, ok := b.(map[string]any)
		if !ok || block["type"] != "text" {
			continue
		}
		if _, isString := block["data"].(string); isString {
			continue
		}
		if flattened := FlattenTextData(block["data"]); flattened != "" {
			block["data"] = flattened
			changed = true
		}
	}
	return changed
}

// Result summarizes a migration run. Failed counts files that were
// unreadable or not valid JSON; those are skipped, never partially written.
type Result struct {
	Scanned int
	Changed int
	Failed  int
	// ChangedPaths lists the files that changed (or would change, under
	// dryRun), in walk order.
	ChangedPaths []string
}

// Run normalizes every *.json lesson under root in place. With dryRun the
// files are only inspected.
func Run(root string, dryRun bool) (Result, error) {
	var res Result

	if _, err := os.Stat(root); err != nil {
		return res, fmt.Errorf("lesson root %s: %w", root, err)
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}

		res.Scanned++
		changed, err := normalizeFile(path, dryRun)
		if err != nil {
			slog.Warn("skipping file", "path", path, "error", err)
			res.Failed++
			return nil
		}
		if changed {
			res.Changed++
			res.ChangedPaths = append(res.ChangedPaths, path)
		}
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("walking %s: %w", root, err)
	}
	return res, nil
}

func normalizeFile(path string, dryRun bool) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("reading: %w", err)
	}
	var lesson map[string]any
	if err := json.Unmarshal(data, &lesson); err != nil {
		return false, fmt.Errorf("parsing JSON: %w", err)
	}

	if !NormalizeLesson(lesson) {
		return false, nil
	}
	if dryRun {
		return true, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(lesson); err != nil {
		return false, fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return false, fmt.Errorf("writing %s: %w", path, err)
	}
	return true, nil
}
