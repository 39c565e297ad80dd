package harness

import "time"

// Phase names a step of a run.
type Phase string

const (
	PhaseAllocate    Phase = "allocate"
	PhaseScaffold    Phase = "scaffold"
	PhaseFingerprint Phase = "fingerprint"
	PhaseBuildFirst  Phase = "build-first"
	PhaseBuildSecond Phase = "build-second"
	PhaseVerify      Phase = "verify"
	PhaseEvidence    Phase = "evidence"
	PhaseDone        Phase = "done"
)

var phaseLabels = map[Phase]string{
	PhaseAllocate:    "Allocate workspace",
	PhaseScaffold:    "Scaffold projects A and B",
	PhaseFingerprint: "Compare project fingerprints",
	PhaseBuildFirst:  "Build A (cold cache)",
	PhaseBuildSecond: "Build B (relocated)",
	PhaseVerify:      "Verify cache outcomes",
	PhaseEvidence:    "Export evidence",
	PhaseDone:        "Done",
}

// Label returns a human-readable name for the phase.
func (p Phase) Label() string {
	if l, ok := phaseLabels[p]; ok {
		return l
	}
	return string(p)
}

// Event reports that a run entered a phase. Root is set for build phases.
// Err is set only on the final PhaseDone event of a failed run.
type Event struct {
	Phase Phase
	Root  string
	Err   error
	Time  time.Time
}

// ProgressFunc receives events in order from the goroutine calling Run.
type ProgressFunc func(Event)

func (f ProgressFunc) orNop() ProgressFunc {
	if f == nil {
		return func(Event) {}
	}
	return f
}

func (f ProgressFunc) emit(phase Phase, root string) {
	f(Event{Phase: phase, Root: root, Time: time.Now()})
}

func (f ProgressFunc) emitErr(phase Phase, err error) {
	f(Event{Phase: phase, Err: err, Time: time.Now()})
}
