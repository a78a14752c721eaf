package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Run kinds. Every batch-shaped command records one row so "nothing matched"
// and "some items failed" stay distinguishable after the terminal scrolls away.
const (
	RunAuthorBatch = "author-batch"
	RunRewrite     = "rewrite"
	RunMigrate     = "migrate"
	RunReindex     = "reindex"
	RunBundle      = "bundle"
)

// Run is one recorded batch operation.
type Run struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	// DetailJSON holds kind-specific extras (per-instruction tallies, paths).
	DetailJSON string `json:"detail_json"`
}
