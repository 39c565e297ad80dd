// Package report renders run summaries and ledger history as text, JSON or
// YAML.
package report

import (
	"time"
)

// Summary is the printable view of one relocation run.
type Summary struct {
	RunID              string         `json:"run_id" yaml:"run_id"`
	Scenario           string         `json:"scenario" yaml:"scenario"`
	PipelineVersion    string         `json:"pipeline_version" yaml:"pipeline_version"`
	Marker             string         `json:"marker" yaml:"marker"`
	RootA              string         `json:"root_a" yaml:"root_a"`
	RootB              string         `json:"root_b" yaml:"root_b"`
	CacheDir           string         `json:"cache_dir" yaml:"cache_dir"`
	Kept               bool           `json:"kept" yaml:"kept"`
	Fingerprint        string         `json:"fingerprint" yaml:"fingerprint"`
	Passed             bool           `json:"passed" yaml:"passed"`
	TransformTask      string         `json:"transform_task" yaml:"transform_task"`
	TransformOutcome   string         `json:"transform_outcome" yaml:"transform_outcome"`
	Expected           []string       `json:"expected_from_cache" yaml:"expected_from_cache"`
	FromCache          []string       `json:"from_cache" yaml:"from_cache"`
	Missing            []string       `json:"missing,omitempty" yaml:"missing,omitempty"`
	Unexpected         []string       `json:"unexpected,omitempty" yaml:"unexpected,omitempty"`
	FirstCounts        map[string]int `json:"first_counts" yaml:"first_counts"`
	SecondCounts       map[string]int `json:"second_counts" yaml:"second_counts"`
	CacheEntriesFirst  int            `json:"cache_entries_first" yaml:"cache_entries_first"`
	CacheEntriesSecond int            `json:"cache_entries_second" yaml:"cache_entries_second"`
	ErrorCode          string         `json:"error_code,omitempty" yaml:"error_code,omitempty"`
	Error              string         `json:"error,omitempty" yaml:"error,omitempty"`
	Evidence           string         `json:"evidence,omitempty" yaml:"evidence,omitempty"`
	Duration           time.Duration  `json:"duration" yaml:"duration"`
}
