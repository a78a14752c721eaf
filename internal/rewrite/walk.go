package rewrite

import "strconv"

// Tally counts instruction hits keyed by instruction description. Returned
// from Apply per call; batch callers merge tallies across files instead of
// sharing mutable counters.
type Tally map[string]int

// Merge adds every count from other into t.
func (t Tally) Merge(other Tally) {
	for desc, n := range other {
		t[desc] += n
	}
}

// Total returns the sum of all counts.
func (t Tally) Total() int {
	sum := 0
	for _, n := range t {
		sum += n
	}
	return sum
}

// rootPath is the sentinel path of the tree root. Mapping keys extend it
// with ".key", sequence indexes with "[i]".
const rootPath = "$"

func childKey(parent, key string) string {
	return parent + "." + key
}

func childIndex(parent string, i int) string {
	return parent + "[" + strconv.Itoa(i) + "]"
}

// Apply runs every instruction, in declared order, over every string leaf of
// a decoded JSON tree. Mapping and sequence nodes are updated in place; the
// returned tree, changed flag, and per-instruction tally let callers act
// without re-diffing.
func Apply(tree any, instructions []Instruction) (any, bool, Tally) {
	tally := make(Tally, len(instructions))
	out, changed := walk(tree, rootPath, instructions, tally)
	return out, changed, tally
}

func walk(value any, path string, instructions []Instruction, tally Tally) (any, bool) {
	switch v := value.(type) {
	case map[string]any:
		changed := false
		for key, child := range v {
			newChild, childChanged := walk(child, childKey(path, key), instructions, tally)
			if childChanged {
				v[key] = newChild
				changed = true
			}
		}
		return v, changed

	case []any:
		changed := false
		for i, child := range v {
			newChild, childChanged := walk(child, childIndex(path, i), instructions, tally)
			if childChanged {
				v[i] = newChild
				changed = true
			}
		}
		return v, changed

	case string:
		changed := false
		for _, inst := range instructions {
			next, hits := inst.Apply(v, path)
			if hits > 0 {
				tally[inst.Description()] += hits
				v = next
				changed = true
			}
		}
		return v, changed

	default:
		// Non-string scalars (numbers, bools, null) pass through.
		return value, false
	}
}
