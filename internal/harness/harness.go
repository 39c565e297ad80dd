// Package harness runs one relocation check end to end: it scaffolds two
// identical projects in different directories, builds them in order against
// one cache store and verifies which tasks the second build took from the
// cache.
package harness

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/remcomokveld/dagger/internal/cachestore"
	"github.com/remcomokveld/dagger/internal/errors"
	"github.com/remcomokveld/dagger/internal/evidence"
	"github.com/remcomokveld/dagger/internal/fingerprint"
	"github.com/remcomokveld/dagger/internal/gradle"
	"github.com/remcomokveld/dagger/internal/ledger"
	"github.com/remcomokveld/dagger/internal/log"
	"github.com/remcomokveld/dagger/internal/marker"
	"github.com/remcomokveld/dagger/internal/result"
	"github.com/remcomokveld/dagger/internal/scaffold"
	"github.com/remcomokveld/dagger/internal/scenario"
	"github.com/remcomokveld/dagger/internal/verify"
	"github.com/remcomokveld/dagger/internal/workspace"
)

// Ledger is the part of *ledger.Ledger the harness uses.
type Ledger interface {
	MarkerSeen(ctx context.Context, marker string) (bool, error)
	Record(ctx context.Context, run ledger.Run) error
}

// Exporter ships evidence for a failed run and returns where it went.
type Exporter interface {
	Export(ctx context.Context, c evidence.Contents) (string, error)
}

// Options configure a run. Only Driver is required in practice; everything
// else has a usable default.
type Options struct {
	// Scenario defaults to scenario.Default().
	Scenario *scenario.Scenario
	// Driver runs the builds. Defaults to a GradleDriver for the scenario's
	// assemble task.
	Driver gradle.Driver
	// Marker is the value written into the generated sources. The zero value
	// means a fresh marker for this run.
	Marker    marker.Marker
	Workspace workspace.Options

	// ResultsDir, if set, receives first.json and second.json.
	ResultsDir string

	// Ledger, if set, records the run. A marker it has already seen is
	// refused unless AllowMarkerReuse is set.
	Ledger           Ledger
	AllowMarkerReuse bool

	Evidence Exporter
	Progress ProgressFunc
	Logger   *log.Logger
}

// Report is everything known about a finished run.
type Report struct {
	RunID    string
	Scenario *scenario.Scenario
	Marker   marker.Marker

	RootA    string
	RootB    string
	CacheDir string
	Kept     bool

	Fingerprint fingerprint.Fingerprint
	First       *result.BuildResult
	Second      *result.BuildResult
	Verdict     *verify.Verdict

	// CacheEntriesFirst and CacheEntriesSecond are the cache entries written
	// during each build.
	CacheEntriesFirst  []string
	CacheEntriesSecond []string

	Evidence  string
	StartedAt time.Time
	Duration  time.Duration
	Err       error
}

// Passed reports whether the run completed and its verdict passed.
func (r *Report) Passed() bool {
	return r.Err == nil && r.Verdict != nil && r.Verdict.Passed()
}

// Run executes the relocation check. The returned report is never nil; the
// error is nil exactly when the check passed.
func Run(ctx context.Context, opts Options) (*Report, error) {
	scn := opts.Scenario
	if scn == nil {
		scn = scenario.Default()
	}
	rep := &Report{
		RunID:     uuid.NewString(),
		Scenario:  scn,
		StartedAt: time.Now(),
	}
	logger := log.OrDefault(opts.Logger).With("run_id", rep.RunID, "scenario", scn.Name)
	progress := opts.Progress.orNop()

	if err := scn.Validate(); err != nil {
		return rep.finish(err), err
	}
	project, err := scn.Project()
	if err != nil {
		err = errors.NewScenarioInvalidError(err.Error())
		return rep.finish(err), err
	}

	m, err := chooseMarker(ctx, opts)
	if err != nil {
		return rep.finish(err), err
	}
	rep.Marker = m
	logger = logger.With("marker", m.String())

	driver := opts.Driver
	if driver == nil {
		driver = gradle.NewDriver(gradle.Options{Task: scn.AssembleTask(), Logger: logger})
	}

	progress.emit(PhaseAllocate, "")
	wsOpts := opts.Workspace
	wsOpts.Logger = logger
	env, err := workspace.Allocate(wsOpts)
	if err != nil {
		return rep.finish(err), err
	}
	defer func() {
		if cerr := env.Close(); cerr != nil {
			logger.Warn("failed to remove workspace", "error", cerr)
		}
	}()
	rep.RootA, rep.RootB, rep.CacheDir = env.RootA, env.RootB, env.CacheStore
	rep.Kept = env.Kept()

	err = execute(ctx, rep, project, driver, opts, env, logger, progress)
	rep.finish(err)

	// Hooks run before the deferred cleanup so evidence can still read the
	// workspace.
	bg := context.WithoutCancel(ctx)
	if err != nil && opts.Evidence != nil && !stderrors.Is(err, context.Canceled) {
		progress.emit(PhaseEvidence, "")
		where, exportErr := opts.Evidence.Export(bg, collectEvidence(rep))
		if exportErr != nil {
			logger.WithError(exportErr).Warn("failed to export evidence")
		} else {
			rep.Evidence = where
		}
	}
	if opts.Ledger != nil {
		if recErr := opts.Ledger.Record(bg, rep.ledgerRun()); recErr != nil {
			logger.WithError(recErr).Warn("failed to record run")
		}
	}

	if err != nil {
		logger.WithError(err).Info("relocation check failed")
		progress.emitErr(PhaseDone, err)
	} else {
		logger.Info("relocation check passed", "from_cache", len(rep.Verdict.FromCache), "duration", rep.Duration)
		progress.emit(PhaseDone, "")
	}
	return rep, err
}

func chooseMarker(ctx context.Context, opts Options) (marker.Marker, error) {
	m := opts.Marker
	if m.IsZero() {
		m = marker.New()
	}
	if opts.Ledger == nil || opts.AllowMarkerReuse {
		return m, nil
	}
	seen, err := opts.Ledger.MarkerSeen(ctx, m.String())
	if err != nil {
		return marker.Marker{}, err
	}
	if seen {
		return marker.Marker{}, errors.NewMarkerReusedError(m.String())
	}
	return m, nil
}

func execute(ctx context.Context, rep *Report, project *scaffold.Project, driver gradle.Driver,
	opts Options, env *workspace.Environment, logger *log.Logger, progress ProgressFunc) error {

	progress.emit(PhaseScaffold, "")
	var g errgroup.Group
	for _, root := range []string{env.RootA, env.RootB} {
		g.Go(func() error {
			return project.Materialize(root, rep.Marker)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	progress.emit(PhaseFingerprint, "")
	fpA, err := fingerprint.Tree(env.RootA, fingerprint.DefaultIgnore)
	if err != nil {
		return errors.NewScaffoldWriteError(env.RootA, err)
	}
	fpB, err := fingerprint.Tree(env.RootB, fingerprint.DefaultIgnore)
	if err != nil {
		return errors.NewScaffoldWriteError(env.RootB, err)
	}
	if fpA.Digest != fpB.Digest {
		logger.Error("project roots diverge", "differences", fingerprint.Diff(fpA, fpB))
		return errors.NewScaffoldDivergenceError(fpA.Short(), fpB.Short())
	}
	rep.Fingerprint = fpA
	logger.Debug("projects scaffolded", "fingerprint", fpA.Short(), "files", len(fpA.Entries))

	store, err := cachestore.Open(env.CacheStore)
	if err != nil {
		return err
	}

	progress.emit(PhaseBuildFirst, env.RootA)
	first, written, err := build(ctx, driver, project, env.RootA, store, logger)
	rep.First, rep.CacheEntriesFirst = first, written
	if err != nil {
		if first != nil && ctx.Err() == nil {
			return errors.NewFirstBuildFailedError(err)
		}
		return err
	}

	progress.emit(PhaseBuildSecond, env.RootB)
	second, written, err := build(ctx, driver, project, env.RootB, store, logger)
	rep.Second, rep.CacheEntriesSecond = second, written
	if err != nil && (second == nil || ctx.Err() != nil) {
		return err
	}

	if opts.ResultsDir != "" {
		if err := saveResults(opts.ResultsDir, first, second); err != nil {
			return err
		}
	}

	progress.emit(PhaseVerify, "")
	verdict := verify.Verify(first, second, rep.Scenario.Expected(), rep.Scenario.TransformTask)
	rep.Verdict = &verdict
	return verdict.Err()
}

// build runs one build while observing the cache store. A failed build
// returns its result together with the error.
func build(ctx context.Context, driver gradle.Driver, project *scaffold.Project, root string,
	store *cachestore.Store, logger *log.Logger) (*result.BuildResult, []string, error) {

	obs, err := cachestore.Observe(store, logger)
	if err != nil {
		return nil, nil, err
	}
	res, buildErr := driver.Build(ctx, project, root, store.Dir())
	written, stopErr := obs.Stop()
	if stopErr != nil {
		logger.Warn("failed to list cache entries", "error", stopErr)
	}
	if buildErr == nil && res != nil && !res.Succeeded() {
		buildErr = errors.NewBuildFailedError(root, -1, res.WithOutcome(result.OutcomeFailed))
	}
	return res, written, buildErr
}

func saveResults(dir string, first, second *result.BuildResult) error {
	store := result.NewStore(dir)
	if _, err := store.Save("first", first); err != nil {
		return err
	}
	_, err := store.Save("second", second)
	return err
}

func (r *Report) finish(err error) *Report {
	r.Err = err
	r.Duration = time.Since(r.StartedAt)
	return r
}
