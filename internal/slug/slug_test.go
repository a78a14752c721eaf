package slug

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Nouns", "nouns"},
		{"  Lesson One  ", "lesson-one"},
		{"Hello, World!", "hello-world"},
		{"a --- b", "a-b"},
		{"already-a-slug", "already-a-slug"},
		{"الاسم المرفوع", "الاسم-المرفوع"},
		{"Mixed عربي and Latin", "mixed-عربي-and-latin"},
		{"", ""},
		{"!!!", ""},
		{"UPPER case 123", "upper-case-123"},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{"Hello, World!", "  Lesson One  ", "الاسم المرفوع", "a --- b", ""}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q -> %q", in, once, twice)
		}
	}
}

func TestCurriculumID(t *testing.T) {
	if got := CurriculumID("My Course", "env-id", "English", "Arabic"); got != "my-course" {
		t.Errorf("explicit: got %q", got)
	}
	if got := CurriculumID("", "Env ID", "English", "Arabic"); got != "env-id" {
		t.Errorf("env: got %q", got)
	}
	if got := CurriculumID("", "", "English", "Arabic"); got != "english-to-arabic" {
		t.Errorf("fallback: got %q", got)
	}
}
