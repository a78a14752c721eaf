package bundle

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// mapResolver serves lesson bodies from an in-memory map keyed by
// "module/lesson".
type mapResolver struct {
	docs map[string]map[string]any
}

func (m *mapResolver) Locator(moduleSlug, lessonSlug string) string {
	return moduleSlug + "/" + lessonSlug + ".json"
}

func (m *mapResolver) Resolve(moduleSlug, lessonSlug string) (map[string]any, error) {
	doc, ok := m.docs[moduleSlug+"/"+lessonSlug]
	if !ok {
		return nil, ErrNotFound
	}
	return doc, nil
}

func planFromJSON(t *testing.T, doc string) map[string]any {
	t.Helper()
	var plan map[string]any
	if err := json.Unmarshal([]byte(doc), &plan); err != nil {
		t.Fatalf("parsing plan: %v", err)
	}
	return plan
}

func TestAssemble_MergesLessonBodies(t *testing.T) {
	plan := planFromJSON(t, `{"levels":[
		{"title":"Level 1","description":"basics","modules":[
			{"title":"Nouns","lessons":[{"title":"Cases","slug":"cases"}]}
		]}
	]}`)
	r := &mapResolver{docs: map[string]map[string]any{
		"nouns/cases": {"id": "cases", "title": "Cases", "blocks": []any{}},
	}}

	out, err := Assemble(plan, r)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	levels := out["levels"].([]any)
	if len(levels) != 1 {
		t.Fatalf("got %d levels", len(levels))
	}
	level := levels[0].(map[string]any)
	if level["id"] != "level-1" {
		t.Errorf("level id = %v", level["id"])
	}
	if level["description"] != "basics" {
		t.Errorf("extra field dropped: %v", level)
	}
	if _, hasOld := level["modules"].([]any)[0].(map[string]any)["lessons"]; !hasOld {
		t.Fatal("module missing lessons")
	}
	module := level["modules"].([]any)[0].(map[string]any)
	lessons := module["lessons"].([]any)
	if len(lessons) != 1 {
		t.Fatalf("got %d lessons", len(lessons))
	}
	if lessons[0].(map[string]any)["title"] != "Cases" {
		t.Errorf("lesson body = %v", lessons[0])
	}
}

func TestAssemble_DedupesModuleIDs(t *testing.T) {
	plan := planFromJSON(t, `{"levels":[{"title":"L","modules":[
		{"title":"Review","lessons":[]},
		{"title":"Review","lessons":[]}
	]}]}`)

	out, err := Assemble(plan, &mapResolver{})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	modules := out["levels"].([]any)[0].(map[string]any)["modules"].([]any)
	id0 := modules[0].(map[string]any)["id"].(string)
	id1 := modules[1].(map[string]any)["id"].(string)
	if id0 == id1 {
		t.Errorf("module ids not deduplicated: %q vs %q", id0, id1)
	}
	if id0 != "review" {
		t.Errorf("first id = %q, want review", id0)
	}
}

func TestAssemble_LevelAndModuleNamespacesAreIndependent(t *testing.T) {
	plan := planFromJSON(t, `{"levels":[
		{"id":"intro","modules":[{"id":"intro","lessons":[]}]}
	]}`)
	out, err := Assemble(plan, &mapResolver{})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	level := out["levels"].([]any)[0].(map[string]any)
	module := level["modules"].([]any)[0].(map[string]any)
	if level["id"] != "intro" || module["id"] != "intro" {
		t.Errorf("ids = %v / %v, want intro / intro", level["id"], module["id"])
	}
}

func TestAssemble_IDPreferenceChain(t *testing.T) {
	plan := planFromJSON(t, `{"levels":[{"modules":[
		{"id":"explicit","title":"T1","slug":"s1","lessons":[]},
		{"slug":"from-slug","title":"T2","lessons":[]},
		{"title":"From Title","lessons":[]},
		{"lessons":[]}
	]}]}`)
	out, err := Assemble(plan, &mapResolver{})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	modules := out["levels"].([]any)[0].(map[string]any)["modules"].([]any)
	want := []string{"explicit", "from-slug", "from-title", "module-4"}
	for i, w := range want {
		if got := modules[i].(map[string]any)["id"]; got != w {
			t.Errorf("module %d id = %v, want %s", i, got, w)
		}
	}
}

func TestAssemble_MissingLessonFailsWithoutPartialOutput(t *testing.T) {
	plan := planFromJSON(t, `{"levels":[{"title":"L","modules":[
		{"title":"Nouns","lessons":[
			{"title":"Found","slug":"found"},
			{"title":"Gone","slug":"gone"},
			{"title":"Also Gone","slug":"also-gone"}
		]}
	]}]}`)
	r := &mapResolver{docs: map[string]map[string]any{
		"nouns/found": {"id": "found"},
	}}

	out, err := Assemble(plan, r)
	if out != nil {
		t.Fatal("partial bundle returned alongside error")
	}
	var missing *MissingLessonsError
	if !errors.As(err, &missing) {
		t.Fatalf("error = %v, want MissingLessonsError", err)
	}
	if len(missing.Locators) != 2 {
		t.Errorf("missing = %v, want both gone lessons", missing.Locators)
	}
	if !strings.Contains(err.Error(), "nouns/gone.json") {
		t.Errorf("error does not list locator: %v", err)
	}
}

func TestDirResolver(t *testing.T) {
	root := t.TempDir()
	lessonDir := filepath.Join(root, "english-to-arabic", "nouns")
	if err := os.MkdirAll(lessonDir, 0o755); err != nil {
		t.Fatal(err)
	}
	body := `{"id":"cases","title":"Cases"}`
	if err := os.WriteFile(filepath.Join(lessonDir, "cases.json"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := NewDirResolver(root, "english-to-arabic")
	if err != nil {
		t.Fatalf("NewDirResolver: %v", err)
	}

	doc, err := r.Resolve("nouns", "cases")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if doc["title"] != "Cases" {
		t.Errorf("doc = %v", doc)
	}

	if _, err := r.Resolve("nouns", "absent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve(absent) = %v, want ErrNotFound", err)
	}
}

func TestNewDirResolver_MissingCurriculumDir(t *testing.T) {
	if _, err := NewDirResolver(t.TempDir(), "never-authored"); err == nil {
		t.Fatal("expected error for missing curriculum directory")
	}
}

func TestDirResolver_CorruptLessonAborts(t *testing.T) {
	root := t.TempDir()
	lessonDir := filepath.Join(root, "cid", "mod")
	if err := os.MkdirAll(lessonDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(lessonDir, "bad.json"), []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := NewDirResolver(root, "cid")
	if err != nil {
		t.Fatal(err)
	}
	_, err = r.Resolve("mod", "bad")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("corrupt lesson: err = %v, want parse failure", err)
	}
}
