package gradle

import (
	"bufio"
	"regexp"
	"strings"

	"github.com/remcomokveld/dagger/internal/result"
)

var taskHeader = regexp.MustCompile(`^> Task (:\S+)(?:\s+(\S.*))?$`)

// suffixOutcomes maps plain-console task suffixes to outcomes.
var suffixOutcomes = map[string]result.Outcome{
	"":           result.OutcomeExecuted,
	"FROM-CACHE": result.OutcomeFromCache,
	"UP-TO-DATE": result.OutcomeUpToDate,
	"SKIPPED":    result.OutcomeSkipped,
	"NO-SOURCE":  result.OutcomeSkipped,
	"FAILED":     result.OutcomeFailed,
}

// Console is the parsed form of a plain console log.
type Console struct {
	Tasks []result.TaskResult
	// BuildFailed is set when a "BUILD FAILED" line was printed.
	BuildFailed bool
	// Unknown lists task headers whose suffix was not recognized.
	Unknown []string
}

// ParseConsole extracts task outcomes from output produced with
// --console=plain. A task reported more than once keeps its first position
// and its last outcome. Unrecognized suffixes count as executed.
func ParseConsole(output string) Console {
	var c Console
	index := make(map[string]int)

	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r ")

		if strings.HasPrefix(line, "BUILD FAILED") {
			c.BuildFailed = true
			continue
		}

		m := taskHeader.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		id, suffix := m[1], strings.TrimSpace(m[2])
		outcome, ok := suffixOutcomes[suffix]
		if !ok {
			c.Unknown = append(c.Unknown, line)
			outcome = result.OutcomeExecuted
		}

		if i, seen := index[id]; seen {
			c.Tasks[i].Outcome = outcome
			continue
		}
		index[id] = len(c.Tasks)
		c.Tasks = append(c.Tasks, result.TaskResult{ID: id, Outcome: outcome})
	}
	return c
}

// FailedTasks returns the identifiers of failed tasks in reported order.
func (c Console) FailedTasks() []string {
	var ids []string
	for _, t := range c.Tasks {
		if t.Outcome == result.OutcomeFailed {
			ids = append(ids, t.ID)
		}
	}
	return ids
}
