package harness

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/remcomokveld/dagger/internal/errors"
	"github.com/remcomokveld/dagger/internal/evidence"
	"github.com/remcomokveld/dagger/internal/ledger"
	"github.com/remcomokveld/dagger/internal/report"
	"github.com/remcomokveld/dagger/internal/result"
)

// Summary returns the printable view of the report.
func (r *Report) Summary() report.Summary {
	s := report.Summary{
		RunID:              r.RunID,
		Scenario:           r.Scenario.Name,
		PipelineVersion:    r.Scenario.PipelineVersion,
		Marker:             r.Marker.String(),
		RootA:              r.RootA,
		RootB:              r.RootB,
		CacheDir:           r.CacheDir,
		Kept:               r.Kept,
		Fingerprint:        r.Fingerprint.Short(),
		Passed:             r.Passed(),
		TransformTask:      r.Scenario.TransformTask,
		Expected:           sorted(r.Scenario.ExpectedFromCache),
		FirstCounts:        counts(r.First),
		SecondCounts:       counts(r.Second),
		CacheEntriesFirst:  len(r.CacheEntriesFirst),
		CacheEntriesSecond: len(r.CacheEntriesSecond),
		Evidence:           r.Evidence,
		Duration:           r.Duration,
	}
	if r.Verdict != nil {
		s.TransformOutcome = string(r.Verdict.TransformOutcome)
		s.FromCache = r.Verdict.FromCache
		s.Missing = r.Verdict.Missing
		s.Unexpected = r.Verdict.Unexpected
	} else if r.First != nil {
		if t, ok := r.First.Task(r.Scenario.TransformTask); ok {
			s.TransformOutcome = string(t.Outcome)
		}
	}
	if s.TransformOutcome == "" {
		s.TransformOutcome = "not run"
	}
	if r.Err != nil {
		s.Error = firstLine(r.Err)
		if herr, ok := errors.As(r.Err); ok {
			s.ErrorCode = string(herr.Code)
		}
	}
	return s
}

func (r *Report) ledgerRun() ledger.Run {
	s := r.Summary()
	return ledger.Run{
		ID:              r.RunID,
		Scenario:        s.Scenario,
		PipelineVersion: s.PipelineVersion,
		Marker:          s.Marker,
		Passed:          s.Passed,
		ErrorCode:       s.ErrorCode,
		ExpectedCount:   len(s.Expected),
		FromCacheCount:  len(s.FromCache),
		Missing:         s.Missing,
		Unexpected:      s.Unexpected,
		EvidenceRef:     r.Evidence,
		StartedAt:       r.StartedAt,
		FinishedAt:      r.StartedAt.Add(r.Duration),
	}
}

func collectEvidence(r *Report) evidence.Contents {
	files := map[string][]byte{}

	if data, err := json.MarshalIndent(r.Summary(), "", "  "); err == nil {
		files["report.json"] = data
	}
	if data, err := r.Scenario.Marshal(); err == nil {
		files["scenario.yaml"] = data
	}
	for name, res := range map[string]*result.BuildResult{"first": r.First, "second": r.Second} {
		if res == nil {
			continue
		}
		files["logs/"+name+".log"] = []byte(res.Output())
		if data, err := json.MarshalIndent(res, "", "  "); err == nil {
			files["results/"+name+".json"] = data
		}
	}
	files["cache/first-build.txt"] = []byte(lines(r.CacheEntriesFirst))
	files["cache/second-build.txt"] = []byte(lines(r.CacheEntriesSecond))

	return evidence.Contents{
		RunID:    r.RunID,
		Scenario: r.Scenario.Name,
		Marker:   r.Marker.String(),
		Files:    files,
	}
}

func counts(r *result.BuildResult) map[string]int {
	if r == nil {
		return nil
	}
	out := map[string]int{}
	for outcome, n := range r.Counts() {
		out[string(outcome)] = n
	}
	return out
}

func sorted(items []string) []string {
	out := append([]string(nil), items...)
	sort.Strings(out)
	return out
}

func lines(items []string) string {
	if len(items) == 0 {
		return ""
	}
	return strings.Join(items, "\n") + "\n"
}

// firstLine drops the suggestion block a HarnessError appends.
func firstLine(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, "\n"); i >= 0 {
		return msg[:i]
	}
	return msg
}
