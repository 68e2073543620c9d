package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"loom/internal/config"
	"loom/internal/jobstore"
	"loom/internal/logging"
	"loom/internal/media/extract"
	"loom/internal/media/ffprobe"
	"loom/internal/selector"
	"loom/internal/stage"
	"loom/internal/timecode"
	"loom/internal/timeline"
)

// fakeStage writes a marker artifact without external tools.
type fakeStage struct {
	name     string
	failFor  string
	executed atomic.Int32
}

func (f *fakeStage) Name() string { return f.name }

func (f *fakeStage) Prepare(_ context.Context, _ *stage.Job) error { return nil }

func (f *fakeStage) Execute(_ context.Context, job *stage.Job) (stage.Artifact, error) {
	f.executed.Add(1)
	if f.failFor != "" && job.ClipID == f.failFor {
		return stage.Artifact{}, errors.New("synthetic stage failure")
	}
	output := filepath.Join(job.WorkDir, job.ClipID+"_"+f.name+".mp4")
	if err := os.WriteFile(output, []byte(f.name), 0o644); err != nil {
		return stage.Artifact{}, err
	}
	return stage.Artifact{Path: output, Params: map[string]string{"stage": f.name}}, nil
}

func (f *fakeStage) Fingerprint(_ *stage.Job) map[string]string {
	return map[string]string{"stage": f.name}
}

func (f *fakeStage) HealthCheck(_ context.Context) stage.Health {
	return stage.Healthy(f.name)
}

func orchestratorFixture(t *testing.T, stages []stage.Stage) (*Orchestrator, *config.Config) {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.WorkDir = t.TempDir()
	cfg.Paths.CacheDir = t.TempDir()
	cfg.Pipeline.Workers = 2

	store, err := jobstore.OpenPath(filepath.Join(cfg.Paths.CacheDir, "jobs.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	extractor := extract.New("ffmpeg", logging.NewNop())
	extractor.WithCommandRunner(func(_ context.Context, _ string, args ...string) error {
		return os.WriteFile(args[len(args)-1], []byte("span"), 0o644)
	})

	verifier := stage.NewVerifier("ffprobe").WithProber(
		func(_ context.Context, _, _ string) (ffprobe.Result, error) {
			return ffprobe.Result{
				Streams: []ffprobe.Stream{{CodecType: "video", Width: 1920, Height: 1080}},
				Format:  ffprobe.Format{Duration: "3.000000"},
			}, nil
		})

	o, err := New(Options{
		Config:    &cfg,
		Logger:    logging.NewNop(),
		Store:     store,
		Stages:    stages,
		Extractor: extractor,
		Verifier:  verifier,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o, &cfg
}

func runTimeline(t *testing.T, sourceDir string) *timeline.Timeline {
	t.Helper()
	source := filepath.Join(sourceDir, "hoodie.m4v")
	if err := os.WriteFile(source, []byte("media"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return &timeline.Timeline{
		Name:      "demo",
		FrameRate: timecode.MustNew(24000, 1001),
		Width:     1920,
		Height:    1080,
		Tracks: []*timeline.Track{
			{
				Kind: timeline.TrackVideo,
				Name: "V1",
				Elements: []timeline.Element{
					&timeline.Clip{
						ID:   "clip1",
						Name: "hoodie shot",
						Source: timeline.MediaRef{
							Path: source,
							In:   timecode.FromInt(4),
							Out:  timecode.FromInt(7),
						},
						Duration: timecode.FromInt(3),
					},
					&timeline.Clip{
						ID:   "clip2",
						Name: "second shot",
						Source: timeline.MediaRef{
							Path: source,
							In:   timecode.FromInt(10),
							Out:  timecode.FromInt(13),
						},
						Duration: timecode.FromInt(3),
					},
				},
			},
		},
	}
}

func TestRunProcessesAndSplices(t *testing.T) {
	fx := &fakeStage{name: "keying"}
	o, cfg := orchestratorFixture(t, []stage.Stage{fx})
	tl := runTimeline(t, cfg.Paths.WorkDir)
	refs := []timeline.ClipRef{{Track: 0, Element: 0}, {Track: 0, Element: 1}}

	report, err := o.Run(context.Background(), tl, refs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.ExitCode() != 0 {
		t.Fatalf("exit code %d, report %+v", report.ExitCode(), report.Results)
	}
	if got := fx.executed.Load(); got != 2 {
		t.Fatalf("stage executed %d times, want 2", got)
	}

	for _, ref := range refs {
		clip, resolveErr := ref.Resolve(tl)
		if resolveErr != nil {
			t.Fatalf("Resolve: %v", resolveErr)
		}
		if filepath.Ext(clip.Source.Path) != ".mp4" {
			t.Fatalf("clip %s not spliced: %+v", clip.ID, clip.Source)
		}
		if !clip.Source.In.IsZero() || clip.Source.Out.Cmp(timecode.FromInt(3)) != 0 {
			t.Fatalf("clip %s span not rebased: %+v", clip.ID, clip.Source)
		}
		if len(clip.Effects) != 1 || clip.Effects[0].Stage != "keying" || clip.Effects[0].OutputHash == "" {
			t.Fatalf("clip %s effects not recorded: %+v", clip.ID, clip.Effects)
		}
	}
}

func TestRunReplacesMiddleClipOnly(t *testing.T) {
	fx := &fakeStage{name: "keying"}
	o, cfg := orchestratorFixture(t, []stage.Stage{fx})

	source := filepath.Join(cfg.Paths.WorkDir, "scene.m4v")
	if err := os.WriteFile(source, []byte("media"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	newClip := func(id, name string, in, dur int64) *timeline.Clip {
		return &timeline.Clip{
			ID:   id,
			Name: name,
			Source: timeline.MediaRef{
				Path: source,
				In:   timecode.FromInt(in),
				Out:  timecode.FromInt(in + dur),
			},
			Duration: timecode.FromInt(dur),
		}
	}
	tl := &timeline.Timeline{
		Name:      "scene",
		FrameRate: timecode.FromInt(30),
		Width:     1920,
		Height:    1080,
		Tracks: []*timeline.Track{{
			Kind: timeline.TrackVideo,
			Name: "V1",
			Elements: []timeline.Element{
				newClip("c1", "opening", 0, 2),
				newClip("c2", "middle", 2, 3),
				newClip("c3", "closing", 5, 2),
			},
		}},
	}

	criteria, err := selector.ParseExpr("name=middle")
	if err != nil {
		t.Fatalf("ParseExpr: %v", err)
	}
	refs, err := selector.Match(tl, criteria)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("matched %d clips, want 1", len(refs))
	}

	report, err := o.Run(context.Background(), tl, refs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.ExitCode() != 0 {
		t.Fatalf("exit code %d, report %+v", report.ExitCode(), report.Results)
	}
	if total := tl.Duration(); total.Cmp(timecode.FromInt(7)) != 0 {
		t.Fatalf("total duration changed: %s", total)
	}

	middle, _ := refs[0].Resolve(tl)
	if middle.Source.Path == source {
		t.Fatalf("middle clip not replaced: %+v", middle.Source)
	}
	for _, ref := range []timeline.ClipRef{{Track: 0, Element: 0}, {Track: 0, Element: 2}} {
		clip, _ := ref.Resolve(tl)
		if clip.Source.Path != source || len(clip.Effects) != 0 {
			t.Fatalf("neighbor %s touched: %+v", clip.ID, clip.Source)
		}
	}
}

func TestRunReusesCachedArtifacts(t *testing.T) {
	fx := &fakeStage{name: "keying"}
	o, cfg := orchestratorFixture(t, []stage.Stage{fx})
	refs := []timeline.ClipRef{{Track: 0, Element: 0}, {Track: 0, Element: 1}}

	first := runTimeline(t, cfg.Paths.WorkDir)
	if _, err := o.Run(context.Background(), first, refs); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if got := fx.executed.Load(); got != 2 {
		t.Fatalf("stage executed %d times, want 2", got)
	}

	// Same source, same spans, same stage configuration: all cache hits.
	second := runTimeline(t, cfg.Paths.WorkDir)
	report, err := o.Run(context.Background(), second, refs)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if got := fx.executed.Load(); got != 2 {
		t.Fatalf("cached run executed stages: %d total", got)
	}
	_, cachedCount, _, _ := report.Counts()
	if cachedCount != 2 {
		t.Fatalf("cached %d clips, want 2: %+v", cachedCount, report.Results)
	}

	clip, _ := (timeline.ClipRef{Track: 0, Element: 0}).Resolve(second)
	if filepath.Ext(clip.Source.Path) != ".mp4" {
		t.Fatalf("cached artifact not spliced: %+v", clip.Source)
	}
}

func TestCancelledClipIsMarkedFailedWithoutSplice(t *testing.T) {
	fx := &fakeStage{name: "keying"}
	o, cfg := orchestratorFixture(t, []stage.Stage{fx})
	tl := runTimeline(t, cfg.Paths.WorkDir)
	ref := timeline.ClipRef{Track: 0, Element: 0}

	w, _, _ := o.admitClip(context.Background(), "run-cancel", tl, 0, ref)
	if w == nil {
		t.Fatal("clip not admitted")
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	result, replacement := o.processClip(cancelled, w)
	if result.Outcome != OutcomeFailed || result.Error != "run cancelled" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if replacement != nil {
		t.Fatalf("cancelled clip produced a splice: %+v", replacement)
	}
	if got := fx.executed.Load(); got != 0 {
		t.Fatalf("stage executed %d times after cancellation", got)
	}

	// The record still lands in a terminal state even though the run
	// context is gone.
	record, err := o.store.GetByID(context.Background(), w.record.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if record.Status != jobstore.StatusFailed || record.ErrorMessage != "run cancelled" {
		t.Fatalf("cancelled job not marked failed: %+v", record)
	}
}

func TestRunForceIgnoresCachedArtifacts(t *testing.T) {
	fx := &fakeStage{name: "keying"}
	o, cfg := orchestratorFixture(t, []stage.Stage{fx})
	o.force = true
	refs := []timeline.ClipRef{{Track: 0, Element: 0}, {Track: 0, Element: 1}}

	first := runTimeline(t, cfg.Paths.WorkDir)
	if _, err := o.Run(context.Background(), first, refs); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second := runTimeline(t, cfg.Paths.WorkDir)
	report, err := o.Run(context.Background(), second, refs)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if got := fx.executed.Load(); got != 4 {
		t.Fatalf("stage executed %d times, want 4", got)
	}
	replaced, cachedCount, _, _ := report.Counts()
	if replaced != 2 || cachedCount != 0 {
		t.Fatalf("forced run reused cache: %+v", report.Results)
	}
}

func TestRunIsolatesClipFailures(t *testing.T) {
	fx := &fakeStage{name: "keying", failFor: "clip1"}
	o, cfg := orchestratorFixture(t, []stage.Stage{fx})
	tl := runTimeline(t, cfg.Paths.WorkDir)
	refs := []timeline.ClipRef{{Track: 0, Element: 0}, {Track: 0, Element: 1}}

	report, err := o.Run(context.Background(), tl, refs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.ExitCode() != 1 {
		t.Fatalf("exit code %d, want 1: %+v", report.ExitCode(), report.Results)
	}

	failed, _ := (timeline.ClipRef{Track: 0, Element: 0}).Resolve(tl)
	if filepath.Ext(failed.Source.Path) != ".m4v" {
		t.Fatalf("failed clip was spliced: %+v", failed.Source)
	}
	replaced, _ := (timeline.ClipRef{Track: 0, Element: 1}).Resolve(tl)
	if filepath.Ext(replaced.Source.Path) != ".mp4" {
		t.Fatalf("healthy clip not spliced: %+v", replaced.Source)
	}
}

func TestReinsertFailsOnlyTheUnspliceableClip(t *testing.T) {
	fx := &fakeStage{name: "keying"}
	o, cfg := orchestratorFixture(t, []stage.Stage{fx})
	tl := runTimeline(t, cfg.Paths.WorkDir)
	bad := timeline.ClipRef{Track: 0, Element: 0}
	good := timeline.ClipRef{Track: 0, Element: 1}

	results := []ClipResult{
		{Ref: bad, ClipID: "clip1", Outcome: OutcomeReplaced, OutputPath: "/work/bad.mp4"},
		{Ref: good, ClipID: "clip2", Outcome: OutcomeReplaced, OutputPath: "/work/good.mp4"},
	}
	replacements := []Replacement{
		{Ref: bad, Path: "/work/bad.mp4", Duration: timecode.FromInt(4)},
		{Ref: good, Path: "/work/good.mp4", Duration: timecode.FromInt(3)},
	}
	if err := o.reinsert(context.Background(), tl, replacements, results); err != nil {
		t.Fatalf("reinsert: %v", err)
	}

	if results[0].Outcome != OutcomeFailed || results[0].Error == "" {
		t.Fatalf("unspliceable clip not failed: %+v", results[0])
	}
	if results[1].Outcome != OutcomeReplaced {
		t.Fatalf("healthy clip dragged down: %+v", results[1])
	}
	untouched, _ := bad.Resolve(tl)
	if filepath.Ext(untouched.Source.Path) != ".m4v" {
		t.Fatalf("failed replacement mutated clip: %+v", untouched.Source)
	}
	spliced, _ := good.Resolve(tl)
	if spliced.Source.Path != "/work/good.mp4" {
		t.Fatalf("good replacement not applied: %+v", spliced.Source)
	}
	report := &RunReport{Results: results}
	if report.ExitCode() != 1 {
		t.Fatalf("exit code %d, want 1", report.ExitCode())
	}
}

func TestExitCodeMapping(t *testing.T) {
	all := &RunReport{Results: []ClipResult{{Outcome: OutcomeReplaced}, {Outcome: OutcomeCached}}}
	if all.ExitCode() != 0 {
		t.Fatalf("all succeeded: exit %d", all.ExitCode())
	}
	some := &RunReport{Results: []ClipResult{{Outcome: OutcomeReplaced}, {Outcome: OutcomeFailed}}}
	if some.ExitCode() != 1 {
		t.Fatalf("partial: exit %d", some.ExitCode())
	}
	none := &RunReport{Results: []ClipResult{{Outcome: OutcomeFailed}, {Outcome: OutcomeSkipped}}}
	if none.ExitCode() != 1 {
		t.Fatalf("none: exit %d", none.ExitCode())
	}
}
