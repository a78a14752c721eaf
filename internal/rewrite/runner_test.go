package rewrite

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readTree(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		t.Fatalf("parsing %s: %v", path, err)
	}
	return tree
}

func TestRun_InPlace(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.json"), `{"t":"Hello"}`)
	writeFile(t, filepath.Join(dir, "sub", "b.json"), `{"t":"Hello Hello"}`)
	writeFile(t, filepath.Join(dir, "c.json"), `{"t":"untouched"}`)

	instructions := mustParse(t, `[{"type":"replace","find":"Hello","replacement":"Hi","description":"greet"}]`)
	res, err := Run(dir, instructions, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Scanned != 3 || res.Changed != 2 || res.Failed != 0 {
		t.Errorf("result = %+v", res)
	}
	if res.Tally["greet"] != 3 {
		t.Errorf("tally = %v, want greet:3", res.Tally)
	}
	if got := readTree(t, filepath.Join(dir, "sub", "b.json"))["t"]; got != "Hi Hi" {
		t.Errorf("b.json t = %q", got)
	}
	if got := readTree(t, filepath.Join(dir, "c.json"))["t"]; got != "untouched" {
		t.Errorf("c.json t = %q", got)
	}
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.json")
	writeFile(t, path, `{"t":"Hello"}`)

	instructions := mustParse(t, `[{"type":"replace","find":"Hello","replacement":"Hi"}]`)
	res, err := Run(dir, instructions, Options{DryRun: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Changed != 1 {
		t.Errorf("Changed = %d, want 1", res.Changed)
	}
	if got := readTree(t, path)["t"]; got != "Hello" {
		t.Errorf("dry run wrote file: t = %q", got)
	}
}

func TestRun_OutputDirKeepsOriginals(t *testing.T) {
	dir := t.TempDir()
	out := t.TempDir()
	writeFile(t, filepath.Join(dir, "mod", "a.json"), `{"t":"Hello"}`)

	instructions := mustParse(t, `[{"type":"replace","find":"Hello","replacement":"Hi"}]`)
	if _, err := Run(dir, instructions, Options{OutputDir: out}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := readTree(t, filepath.Join(dir, "mod", "a.json"))["t"]; got != "Hello" {
		t.Errorf("original rewritten: t = %q", got)
	}
	if got := readTree(t, filepath.Join(out, "mod", "a.json"))["t"]; got != "Hi" {
		t.Errorf("output copy t = %q", got)
	}
}

func TestRun_SkipsUnreadableFileAndContinues(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bad.json"), `{broken`)
	writeFile(t, filepath.Join(dir, "good.json"), `{"t":"Hello"}`)

	instructions := mustParse(t, `[{"type":"replace","find":"Hello","replacement":"Hi"}]`)
	res, err := Run(dir, instructions, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Failed != 1 || res.Changed != 1 {
		t.Errorf("result = %+v", res)
	}
	if got := readTree(t, filepath.Join(dir, "good.json"))["t"]; got != "Hi" {
		t.Errorf("good.json t = %q", got)
	}
}

func TestRun_SingleFileTarget(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lesson.json")
	writeFile(t, path, `{"t":"Hello"}`)

	instructions := mustParse(t, `[{"type":"replace","find":"Hello","replacement":"Hi"}]`)
	res, err := Run(path, instructions, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Scanned != 1 || res.Changed != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestRun_NoJSONFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "readme.md"), "hi")

	instructions := mustParse(t, `[{"type":"append","text":"!"}]`)
	if _, err := Run(dir, instructions, Options{}); err == nil {
		t.Fatal("expected error for directory without JSON files")
	}
}
