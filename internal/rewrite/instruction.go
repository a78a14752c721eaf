// Package rewrite applies declarative text-editing instructions to every
// string leaf of a JSON document tree.
//
// Instructions are parsed once, up front; a malformed instruction file fails
// before any document is touched so a batch can never be partially rewritten
// by a bad rule. Application returns an explicit Tally of hits per
// instruction, merged by callers across files.
package rewrite

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Instruction is one parsed text-edit rule. Apply returns the (possibly
// unchanged) text and the number of hits; a leaf whose path fails the
// instruction's filters is always returned untouched with zero hits.
type Instruction interface {
	Description() string
	Apply(text, path string) (string, int)
}

// filter carries the fields shared by every instruction kind.
type filter struct {
	description  string
	paths        []string
	excludePaths []string
}

func (f filter) Description() string { return f.description }

// appliesTo reports whether a rendered tree path passes the include/exclude
// substring filters. An empty include set matches everything.
func (f filter) appliesTo(path string) bool {
	if len(f.paths) > 0 {
		ok := false
		for _, tok := range f.paths {
			if strings.Contains(path, tok) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	for _, tok := range f.excludePaths {
		if strings.Contains(path, tok) {
			return false
		}
	}
	return true
}

// replaceLiteral substitutes every occurrence of a literal. Case-insensitive
// matching goes through a quoted pattern compiled at parse time.
type replaceLiteral struct {
	filter
	find        string
	replacement string
	folded      *regexp.Regexp // nil when case-sensitive
}

func (r *replaceLiteral) Apply(text, path string) (string, int) {
	if !r.appliesTo(path) || r.find == "" {
		return text, 0
	}
	if r.folded != nil {
		matches := r.folded.FindAllStringIndex(text, -1)
		if len(matches) == 0 {
			return text, 0
		}
		return r.folded.ReplaceAllLiteralString(text, r.replacement), len(matches)
	}
	n := strings.Count(text, r.find)
	if n == 0 {
		return text, 0
	}
	return strings.ReplaceAll(text, r.find, r.replacement), n
}

// regexSub substitutes a compiled pattern; the replacement may reference
// capture groups with $1-style expansions.
type regexSub struct {
	filter
	pattern     *regexp.Regexp
	replacement string
}

func (r *regexSub) Apply(text, path string) (string, int) {
	if !r.appliesTo(path) {
		return text, 0
	}
	matches := r.pattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return text, 0
	}
	return r.pattern.ReplaceAllString(text, r.replacement), len(matches)
}

// edgeText appends or prepends fixed text, once: a string already carrying
// the text at that edge is left alone, so the rule is idempotent.
type edgeText struct {
	filter
	text    string
	prepend bool
}

func (e *edgeText) Apply(text, path string) (string, int) {
	if !e.appliesTo(path) || e.text == "" {
		return text, 0
	}
	if e.prepend {
		if strings.HasPrefix(text, e.text) {
			return text, 0
		}
		return e.text + text, 1
	}
	if strings.HasSuffix(text, e.text) {
		return text, 0
	}
	return text + e.text, 1
}

// instructionSpec is the on-disk shape of one instruction.
type instructionSpec struct {
	Type          string   `json:"type"`
	Description   string   `json:"description"`
	Paths         []string `json:"paths"`
	ExcludePaths  []string `json:"exclude_paths"`
	CaseSensitive *bool    `json:"case_sensitive"`
	Find          *string  `json:"find"`
	Replacement   string   `json:"replacement"`
	Pattern       string   `json:"pattern"`
	Flags         []string `json:"flags"`
	Text          string   `json:"text"`
}

// ParseInstructions decodes an instruction file: either a bare array of
// instruction specs or an object wrapping one under "instructions" or
// "rules". Any structural problem is an error here, before any tree is
// walked.
func ParseInstructions(data []byte) ([]Instruction, error) {
	var specs []instructionSpec

	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(data, &specs); err != nil {
			return nil, fmt.Errorf("parsing instruction list: %w", err)
		}
	} else {
		var wrapper struct {
			Instructions []instructionSpec `json:"instructions"`
			Rules        []instructionSpec `json:"rules"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, fmt.Errorf("parsing instruction file: %w", err)
		}
		specs = wrapper.Instructions
		if len(specs) == 0 {
			specs = wrapper.Rules
		}
	}

	if len(specs) == 0 {
		return nil, fmt.Errorf("no instructions defined")
	}

	out := make([]Instruction, 0, len(specs))
	for i, sp := range specs {
		inst, err := buildInstruction(sp)
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		out = append(out, inst)
	}
	return out, nil
}

func buildInstruction(sp instructionSpec) (Instruction, error) {
	if sp.Type == "" {
		return nil, fmt.Errorf("missing 'type'")
	}
	desc := sp.Description
	if desc == "" {
		desc = sp.Type
	}
	f := filter{description: desc, paths: sp.Paths, excludePaths: sp.ExcludePaths}

	switch sp.Type {
	case "replace":
		if sp.Find == nil {
			return nil, fmt.Errorf("replace instruction requires 'find'")
		}
		inst := &replaceLiteral{filter: f, find: *sp.Find, replacement: sp.Replacement}
		if sp.CaseSensitive != nil && !*sp.CaseSensitive {
			inst.folded = regexp.MustCompile("(?i)" + regexp.QuoteMeta(*sp.Find))
		}
		return inst, nil

	case "regex_sub":
		if sp.Pattern == "" {
			return nil, fmt.Errorf("regex_sub instruction requires 'pattern'")
		}
		prefix, err := flagPrefix(sp.Flags)
		if err != nil {
			return nil, err
		}
		re, err := regexp.Compile(prefix + sp.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compiling pattern: %w", err)
		}
		return &regexSub{filter: f, pattern: re, replacement: sp.Replacement}, nil

	case "append":
		return &edgeText{filter: f, text: sp.Text}, nil

	case "prepend":
		return &edgeText{filter: f, text: sp.Text, prepend: true}, nil

	default:
		return nil, fmt.Errorf("unsupported instruction type %q", sp.Type)
	}
}

// flagPrefix maps the documented flag names onto an RE2 flag group.
func flagPrefix(flags []string) (string, error) {
	if len(flags) == 0 {
		return "", nil
	}
	var letters strings.Builder
	for _, flag := range flags {
		switch strings.ToUpper(flag) {
		case "IGNORECASE":
			letters.WriteByte('i')
		case "MULTILINE":
			letters.WriteByte('m')
		case "DOTALL":
			letters.WriteByte('s')
		default:
			return "", fmt.Errorf("unsupported regex flag %q", flag)
		}
	}
	return "(?" + letters.String() + ")", nil
}
