package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"loom/internal/config"
	"loom/internal/fileutil"
	"loom/internal/jobstore"
	"loom/internal/logging"
	"loom/internal/media/extract"
	"loom/internal/services"
	"loom/internal/stage"
	"loom/internal/timeline"
)

// Options configures an Orchestrator.
type Options struct {
	Config    *config.Config
	Logger    *slog.Logger
	Store     *jobstore.Store
	Stages    []stage.Stage
	Extractor *extract.Extractor
	Verifier  *stage.Verifier

	// Force reprocesses every clip even when the job cache already
	// holds a verified artifact for it.
	Force bool
}

// Orchestrator runs selected clips through the stage chain with a fixed
// worker pool and splices verified artifacts back into the timeline.
type Orchestrator struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *jobstore.Store
	stages    []stage.Stage
	chain     []string
	extractor *extract.Extractor
	verifier  *stage.Verifier
	force     bool
}

// New constructs an orchestrator, filling in default collaborators.
func New(opts Options) (*Orchestrator, error) {
	if opts.Config == nil || opts.Store == nil || len(opts.Stages) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "orchestrator", "new",
			"config, store, and at least one stage are required", nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	extractor := opts.Extractor
	if extractor == nil {
		extractor = extract.New(opts.Config.FFmpegBinary(), logger)
	}
	verifier := opts.Verifier
	if verifier == nil {
		verifier = stage.NewVerifier(opts.Config.FFprobeBinary())
	}
	chain := make([]string, 0, len(opts.Stages))
	for _, s := range opts.Stages {
		chain = append(chain, s.Name())
	}
	return &Orchestrator{
		cfg:       opts.Config,
		logger:    logging.NewComponentLogger(logger, "orchestrator"),
		store:     opts.Store,
		stages:    opts.Stages,
		chain:     chain,
		extractor: extractor,
		verifier:  verifier,
		force:     opts.Force,
	}, nil
}

// HealthCheck reports stage readiness without side effects.
func (o *Orchestrator) HealthCheck(ctx context.Context) []stage.Health {
	checks := make([]stage.Health, 0, len(o.stages))
	for _, s := range o.stages {
		checks = append(checks, s.HealthCheck(ctx))
	}
	return checks
}

// clipWork is the unit handed to pool workers.
type clipWork struct {
	index  int
	ref    timeline.ClipRef
	clip   *timeline.Clip
	job    *stage.Job
	record *jobstore.Job
	hash   string
}

// Run processes the referenced clips and mutates tl in place. The
// returned report always describes every selected clip; the error return
// covers run-level failures only.
func (o *Orchestrator) Run(ctx context.Context, tl *timeline.Timeline, refs []timeline.ClipRef) (*RunReport, error) {
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, o.logger)

	report := &RunReport{RunID: runID, Started: time.Now().UTC()}
	defer func() { report.Finished = time.Now().UTC() }()

	if err := o.requireHealthy(ctx); err != nil {
		return report, err
	}
	if reset, err := o.store.ResetStalled(ctx); err != nil {
		return report, err
	} else if reset > 0 {
		logger.Info("rewound stalled jobs from an interrupted run", slog.Int64("jobs", reset))
	}

	logger.Info("starting run",
		slog.Int("clips", len(refs)),
		slog.Int("workers", o.cfg.Pipeline.Workers),
		slog.String("stages", strings.Join(o.chain, ",")))

	results := make([]ClipResult, len(refs))
	var replacements []Replacement
	var mu sync.Mutex

	work := make(chan *clipWork)
	var wg sync.WaitGroup
	for i := 0; i < o.cfg.Pipeline.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for w := range work {
				result, replacement := o.processClip(ctx, w)
				mu.Lock()
				results[w.index] = result
				if replacement != nil {
					replacements = append(replacements, *replacement)
				}
				mu.Unlock()
			}
		}()
	}

	for i, ref := range refs {
		w, result, replacement := o.admitClip(ctx, runID, tl, i, ref)
		if w == nil {
			mu.Lock()
			results[i] = result
			if replacement != nil {
				replacements = append(replacements, *replacement)
			}
			mu.Unlock()
			continue
		}
		work <- w
	}
	close(work)
	wg.Wait()

	if err := o.reinsert(ctx, tl, replacements, results); err != nil {
		report.Results = results
		return report, err
	}

	report.Results = results
	replaced, cached, failed, skipped := report.Counts()
	logger.Info("run finished",
		slog.Int("replaced", replaced),
		slog.Int("cached", cached),
		slog.Int("failed", failed),
		slog.Int("skipped", skipped))
	return report, nil
}

func (o *Orchestrator) requireHealthy(ctx context.Context) error {
	var unhealthy []string
	for _, h := range o.HealthCheck(ctx) {
		if !h.Ready {
			unhealthy = append(unhealthy, fmt.Sprintf("%s (%s)", h.Name, h.Detail))
		}
	}
	if len(unhealthy) > 0 {
		return services.Wrap(services.ErrConfiguration, "orchestrator", "health check",
			"stages not ready: "+strings.Join(unhealthy, "; "), nil)
	}
	return nil
}

// admitClip resolves a reference into pool work, or settles it
// immediately when the job cache already holds a finished artifact.
func (o *Orchestrator) admitClip(ctx context.Context, runID string, tl *timeline.Timeline, index int, ref timeline.ClipRef) (*clipWork, ClipResult, *Replacement) {
	clip, err := ref.Resolve(tl)
	if err != nil {
		return nil, ClipResult{Ref: ref, Outcome: OutcomeSkipped, Error: err.Error()}, nil
	}

	job := &stage.Job{
		ClipID:    clip.ID,
		ClipName:  clip.Name,
		Index:     index,
		WorkDir:   o.cfg.Paths.WorkDir,
		Width:     o.cfg.Project.Width,
		Height:    o.cfg.Project.Height,
		FrameRate: o.cfg.FrameRate(),
		Duration:  clip.Duration,
		Artifacts: map[string]string{},
	}
	hash := jobstore.ContentHash(clip.Source.Path, clip.Source.In, clip.Duration, o.chain, o.fingerprint(job))

	record, cached, err := o.store.Acquire(ctx, runID, &jobstore.Job{
		ClipID:      clip.ID,
		ClipName:    clip.Name,
		ContentHash: hash,
		SourcePath:  clip.Source.Path,
		StageChain:  strings.Join(o.chain, ","),
	})
	if err != nil {
		return nil, ClipResult{Ref: ref, ClipID: clip.ID, ClipName: clip.Name,
			Outcome: OutcomeFailed, Error: err.Error()}, nil
	}

	if cached {
		if _, statErr := os.Stat(record.OutputPath); statErr == nil && !o.force {
			o.logger.Info("reusing cached artifact",
				slog.String(logging.FieldClipID, clip.ID),
				slog.String("output", record.OutputPath))
			result := ClipResult{
				Ref: ref, ClipID: clip.ID, ClipName: clip.Name,
				Outcome: OutcomeCached, OutputPath: record.OutputPath,
				recordID: record.ID,
			}
			return nil, result, &Replacement{
				Ref:      ref,
				Path:     record.OutputPath,
				Duration: clip.Duration,
				Effects:  o.cachedEffects(job, hash),
			}
		}
		// Forced rerun or artifact vanished from disk: reprocess.
		record.Status = jobstore.StatusPending
		record.RunID = runID
		if err := o.store.Update(ctx, record); err != nil {
			return nil, ClipResult{Ref: ref, ClipID: clip.ID, ClipName: clip.Name,
				Outcome: OutcomeFailed, Error: err.Error()}, nil
		}
	}

	return &clipWork{index: index, ref: ref, clip: clip, job: job, record: record, hash: hash}, ClipResult{}, nil
}

// cachedEffects reconstructs the effect annotations for a reused
// artifact from the current stage configuration.
func (o *Orchestrator) cachedEffects(job *stage.Job, hash string) []timeline.EffectRecord {
	effects := make([]timeline.EffectRecord, 0, len(o.stages))
	for _, s := range o.stages {
		effects = append(effects, timeline.EffectRecord{
			Stage:      s.Name(),
			Params:     s.Fingerprint(job),
			OutputHash: hash,
		})
	}
	return effects
}

// fingerprint merges all stage fingerprints under stage-name prefixes.
func (o *Orchestrator) fingerprint(job *stage.Job) map[string]string {
	params := map[string]string{}
	for _, s := range o.stages {
		for key, value := range s.Fingerprint(job) {
			params[s.Name()+"."+key] = value
		}
	}
	return params
}

// processClip runs one clip through extraction, the stage chain, and
// verification. Failures are per-clip: they mark the job failed and
// leave the rest of the run alone.
func (o *Orchestrator) processClip(ctx context.Context, w *clipWork) (ClipResult, *Replacement) {
	started := time.Now()
	ctx = services.WithClipID(ctx, w.clip.ID)
	logger := logging.WithContext(ctx, o.logger)

	result := ClipResult{Ref: w.ref, ClipID: w.clip.ID, ClipName: w.clip.Name, recordID: w.record.ID}
	fail := func(err error) (ClipResult, *Replacement) {
		logger.Error("clip failed", logging.Error(err))
		if storeErr := o.store.MarkFailed(context.WithoutCancel(ctx), w.record.ID, err.Error()); storeErr != nil {
			logger.Error("cannot persist failure", logging.Error(storeErr))
		}
		result.Outcome = OutcomeFailed
		result.Error = err.Error()
		result.Elapsed = time.Since(started)
		return result, nil
	}

	if err := ctx.Err(); err != nil {
		// The record must still land in a terminal state, so the store
		// write runs outside the cancelled context.
		if storeErr := o.store.MarkFailed(context.WithoutCancel(ctx), w.record.ID, "run cancelled"); storeErr != nil {
			logger.Error("cannot persist cancellation", logging.Error(storeErr))
		}
		result.Outcome = OutcomeFailed
		result.Error = "run cancelled"
		return result, nil
	}

	spanPath, err := o.extractSpan(ctx, w)
	if err != nil {
		return fail(err)
	}
	w.job.InputPath = spanPath
	w.record.SpanPath = spanPath
	w.record.Status = jobstore.StatusExtracted
	if err := o.store.Update(ctx, w.record); err != nil {
		return fail(err)
	}

	if err := o.store.Transition(ctx, w.record.ID, jobstore.StatusProcessing); err != nil {
		return fail(err)
	}
	effects, outputPath, err := o.runStages(ctx, w, logger)
	if err != nil {
		return fail(err)
	}

	if err := o.verifier.Verify(ctx, outputPath, stage.Expect{
		Duration:  w.clip.Duration,
		FrameRate: o.cfg.FrameRate(),
		Width:     o.cfg.Project.Width,
		Height:    o.cfg.Project.Height,
	}); err != nil {
		return fail(err)
	}

	// The work directory is transient; verified artifacts move to the
	// cache so later runs can reuse them.
	cachePath := filepath.Join(o.cfg.Paths.CacheDir, w.hash[:12]+"_final"+filepath.Ext(outputPath))
	if err := fileutil.CopyFileVerified(outputPath, cachePath); err != nil {
		return fail(services.Wrap(services.ErrStage, "orchestrator", "cache artifact",
			fmt.Sprintf("cannot cache %s", outputPath), err))
	}
	outputPath = cachePath

	w.record.OutputPath = outputPath
	w.record.Status = jobstore.StatusVerified
	if err := o.store.Update(ctx, w.record); err != nil {
		return fail(err)
	}

	logger.Info("clip done",
		slog.String("output", outputPath),
		slog.Duration("elapsed", time.Since(started)))
	result.Outcome = OutcomeReplaced
	result.OutputPath = outputPath
	result.Elapsed = time.Since(started)
	return result, &Replacement{
		Ref:      w.ref,
		Path:     outputPath,
		Duration: w.clip.Duration,
		Effects:  effects,
	}
}

func (o *Orchestrator) extractSpan(ctx context.Context, w *clipWork) (string, error) {
	spanPath := filepath.Join(o.cfg.Paths.WorkDir, w.hash[:12]+"_span.mp4")
	timeout := time.Duration(o.cfg.Pipeline.ExtractionTimeout) * time.Second
	extractCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := o.extractor.Extract(extractCtx, extract.Request{
		Source:    w.clip.Source.Path,
		In:        w.clip.Source.In,
		Duration:  w.clip.Duration,
		FrameRate: o.cfg.FrameRate(),
		Output:    spanPath,
	})
	if err != nil {
		return "", err
	}
	return spanPath, nil
}

func (o *Orchestrator) runStages(ctx context.Context, w *clipWork, logger *slog.Logger) ([]timeline.EffectRecord, string, error) {
	var effects []timeline.EffectRecord
	current := w.job.InputPath
	timeout := time.Duration(o.cfg.Pipeline.StageTimeout) * time.Second

	for _, s := range o.stages {
		stageCtx, cancel := context.WithTimeout(services.WithStage(ctx, s.Name()), timeout)
		if err := s.Prepare(stageCtx, w.job); err != nil {
			cancel()
			return nil, "", err
		}
		artifact, err := s.Execute(stageCtx, w.job)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
				return nil, "", services.Wrap(services.ErrStage, s.Name(), "execute",
					fmt.Sprintf("stage timed out after %s", timeout), err)
			}
			return nil, "", err
		}

		w.job.Artifacts[s.Name()] = artifact.Path
		w.job.InputPath = artifact.Path
		current = artifact.Path
		effects = append(effects, timeline.EffectRecord{
			Stage:      s.Name(),
			Params:     artifact.Params,
			OutputHash: w.hash,
		})
		logger.Debug("stage complete",
			slog.String(logging.FieldStage, s.Name()),
			slog.String("artifact", artifact.Path))
	}
	return effects, current, nil
}

// reinsert splices successful artifacts into the timeline in start-time
// order and records the terminal status. A replacement that cannot be
// spliced fails only its own clip; the rest of the run keeps its results.
func (o *Orchestrator) reinsert(ctx context.Context, tl *timeline.Timeline, replacements []Replacement, results []ClipResult) error {
	if len(replacements) == 0 {
		return nil
	}
	failed, err := SpliceAll(tl, replacements)
	if err != nil {
		return err
	}
	for i, spliceErr := range failed {
		r := replacements[i]
		o.logger.Error("cannot splice artifact",
			slog.String("ref", r.Ref.String()),
			logging.Error(spliceErr))
		for ri := range results {
			if results[ri].Ref != r.Ref {
				continue
			}
			results[ri].Outcome = OutcomeFailed
			results[ri].Error = spliceErr.Error()
			if results[ri].recordID != 0 {
				if storeErr := o.store.MarkFailed(context.WithoutCancel(ctx), results[ri].recordID, spliceErr.Error()); storeErr != nil {
					o.logger.Warn("cannot persist splice failure", logging.Error(storeErr))
				}
			}
		}
	}
	for i := range results {
		if results[i].Outcome != OutcomeReplaced || results[i].recordID == 0 {
			continue
		}
		if err := o.store.Transition(context.WithoutCancel(ctx), results[i].recordID, jobstore.StatusReinserted); err != nil {
			o.logger.Warn("cannot record reinsertion", logging.Error(err))
		}
	}
	return nil
}
