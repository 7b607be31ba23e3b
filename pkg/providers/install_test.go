package providers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type staticConfigs map[string]map[string]any

func (s staticConfigs) Get(providerID string) map[string]any {
	if cfg, ok := s[providerID]; ok {
		return cfg
	}
	return map[string]any{}
}

func TestMergeProgress(t *testing.T) {
	cases := []struct {
		name      string
		current   ProgressInfo
		incoming  ProgressInfo
		synthetic bool
		want      ProgressInfo
	}{
		{
			name:     "done entry is frozen",
			current:  ProgressInfo{Progress: 1, Done: true},
			incoming: ProgressInfo{Progress: 0.5},
			want:     ProgressInfo{Progress: 1, Done: true},
		},
		{
			name:      "synthetic is capped and never done",
			current:   ProgressInfo{Progress: 0.85},
			incoming:  ProgressInfo{Progress: 0.95, Done: true},
			synthetic: true,
			want:      ProgressInfo{Progress: syntheticCap - 0.001},
		},
		{
			name:     "progress never regresses",
			current:  ProgressInfo{Progress: 0.6, Loaded: 600, Total: 1000},
			incoming: ProgressInfo{Progress: 0.4, Loaded: 400},
			want:     ProgressInfo{Progress: 0.6, Loaded: 600, Total: 1000},
		},
		{
			name:     "authoritative done wins",
			current:  ProgressInfo{Progress: 0.7},
			incoming: ProgressInfo{Progress: 1, Done: true},
			want:     ProgressInfo{Progress: 1, Done: true},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := mergeProgress(tc.current, tc.incoming, tc.synthetic); got != tc.want {
				t.Errorf("mergeProgress = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestInstallRejectsUnknownAndUnsupported(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(testDescriptor("openai", CategoryChat)) // no LoadModel

	tracker := NewInstallTracker(r, staticConfigs{})

	err := tracker.Install(context.Background(), "ghost", "m")
	if KindOf(err) != KindInstall {
		t.Errorf("unknown provider error kind = %s, want install", KindOf(err))
	}

	err = tracker.Install(context.Background(), "openai", "m")
	if !errors.Is(err, ErrCapabilityUnsupported) {
		t.Errorf("err = %v, want ErrCapabilityUnsupported", err)
	}
}

func TestSecondInstallForSameModelIsNoOp(t *testing.T) {
	release := make(chan struct{})
	var loads atomic.Int32

	r := NewRegistry()
	d := testDescriptor("app-local-whisper", CategoryTranscription)
	d.LoadModel = func(ctx context.Context, _ Config, _ string) error {
		loads.Add(1)
		<-release
		return nil
	}
	r.MustRegister(d)

	tracker := NewInstallTracker(r, staticConfigs{})

	first := make(chan error, 1)
	go func() { first <- tracker.Install(context.Background(), "app-local-whisper", "tiny.en") }()
	waitFor(t, func() bool { return tracker.Installing("app-local-whisper", "tiny.en") }, "first install never started")

	if err := tracker.Install(context.Background(), "app-local-whisper", "tiny.en"); err != nil {
		t.Errorf("second Install = %v, want silent no-op", err)
	}

	close(release)
	if err := <-first; err != nil {
		t.Fatalf("first Install = %v", err)
	}
	if got := loads.Load(); got != 1 {
		t.Errorf("LoadModel ran %d times, want 1", got)
	}
	if tracker.Installing("app-local-whisper", "tiny.en") {
		t.Error("model still marked installing after completion")
	}
}

func TestSameModelIDAcrossProvidersDoesNotCollide(t *testing.T) {
	release := make(chan struct{})
	var whisperLoads, kokoroLoads atomic.Int32

	r := NewRegistry()
	dw := testDescriptor("app-local-whisper", CategoryTranscription)
	dw.LoadModel = func(context.Context, Config, string) error {
		whisperLoads.Add(1)
		<-release
		return nil
	}
	dk := testDescriptor("app-local-kokoro", CategorySpeech)
	dk.LoadModel = func(context.Context, Config, string) error {
		kokoroLoads.Add(1)
		return nil
	}
	r.MustRegister(dw)
	r.MustRegister(dk)

	tracker := NewInstallTracker(r, staticConfigs{})
	first := make(chan error, 1)
	go func() { first <- tracker.Install(context.Background(), "app-local-whisper", "shared-v1") }()
	waitFor(t, func() bool { return tracker.Installing("app-local-whisper", "shared-v1") }, "whisper install never started")

	// Same model id on a different provider is an independent install, not
	// a no-op against the in-flight one.
	if err := tracker.Install(context.Background(), "app-local-kokoro", "shared-v1"); err != nil {
		t.Fatalf("kokoro Install = %v", err)
	}
	if got := kokoroLoads.Load(); got != 1 {
		t.Errorf("kokoro LoadModel ran %d times, want 1", got)
	}
	if !tracker.Installing("app-local-whisper", "shared-v1") {
		t.Error("whisper install no longer in flight after kokoro finished")
	}
	if p, ok := tracker.Progress("app-local-kokoro", "shared-v1"); !ok || !p.Done {
		t.Errorf("kokoro entry = (%+v, %v), want done", p, ok)
	}
	if p, ok := tracker.Progress("app-local-whisper", "shared-v1"); !ok || p.Done {
		t.Errorf("whisper entry = (%+v, %v), want pending", p, ok)
	}

	close(release)
	if err := <-first; err != nil {
		t.Fatalf("whisper Install = %v", err)
	}
	if got := whisperLoads.Load(); got != 1 {
		t.Errorf("whisper LoadModel ran %d times, want 1", got)
	}
}

func TestAuthoritativeEventsDriveProgress(t *testing.T) {
	var handler atomic.Value // func(ProgressEvent)
	release := make(chan struct{})
	unsubscribed := make(chan struct{})

	r := NewRegistry()
	d := testDescriptor("app-local-kokoro", CategorySpeech)
	d.LoadModel = func(ctx context.Context, _ Config, _ string) error {
		<-release
		return nil
	}
	d.SubscribeProgress = func(h func(ProgressEvent)) (func(), error) {
		handler.Store(h)
		return func() { close(unsubscribed) }, nil
	}
	r.MustRegister(d)

	tracker := NewInstallTracker(r, staticConfigs{}, WithProgressGrace(50*time.Millisecond))
	done := make(chan error, 1)
	go func() { done <- tracker.Install(context.Background(), "app-local-kokoro", "kokoro-v1.0") }()
	waitFor(t, func() bool { return handler.Load() != nil }, "progress stream never subscribed")
	emit := handler.Load().(func(ProgressEvent))

	// An event for a different model's file must not move this entry.
	emit(ProgressEvent{Filename: "whisper-tiny.bin", Progress: 80})
	if p, _ := tracker.Progress("app-local-kokoro", "kokoro-v1.0"); p.Progress != 0 {
		t.Errorf("foreign event moved progress to %v", p.Progress)
	}

	emit(ProgressEvent{Filename: "kokoro-v1.0.onnx", Progress: 20, TotalSize: 1000, CurrentSize: 200})
	emit(ProgressEvent{Filename: "kokoro-v1.0.onnx", Progress: 55, TotalSize: 1000, CurrentSize: 550})
	p, ok := tracker.Progress("app-local-kokoro", "kokoro-v1.0")
	if !ok || p.Progress != 0.55 || p.Loaded != 550 || p.Total != 1000 {
		t.Errorf("after events, progress = %+v", p)
	}

	emit(ProgressEvent{Done: true, Filename: "kokoro-v1.0.onnx", Progress: 100})
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Install = %v", err)
	}

	p, ok = tracker.Progress("app-local-kokoro", "kokoro-v1.0")
	if !ok || !p.Done || p.Progress != 1 {
		t.Errorf("finished entry = %+v, want done at 1", p)
	}
	select {
	case <-unsubscribed:
	case <-time.After(time.Second):
		t.Error("progress subscription not released after success")
	}

	waitFor(t, func() bool {
		_, ok := tracker.Progress("app-local-kokoro", "kokoro-v1.0")
		return !ok
	}, "finished entry not removed after grace period")
}

func TestFailedInstallClearsProgressImmediately(t *testing.T) {
	unsubscribed := make(chan struct{})

	r := NewRegistry()
	d := testDescriptor("app-local-whisper", CategoryTranscription)
	d.LoadModel = func(context.Context, Config, string) error {
		return errors.New("download interrupted")
	}
	d.SubscribeProgress = func(func(ProgressEvent)) (func(), error) {
		return func() { close(unsubscribed) }, nil
	}
	r.MustRegister(d)

	tracker := NewInstallTracker(r, staticConfigs{})
	err := tracker.Install(context.Background(), "app-local-whisper", "base.en")
	if KindOf(err) != KindInstall {
		t.Errorf("error kind = %s, want install", KindOf(err))
	}
	if _, ok := tracker.Progress("app-local-whisper", "base.en"); ok {
		t.Error("failed install left a progress entry behind")
	}
	if tracker.Installing("app-local-whisper", "base.en") {
		t.Error("failed install left the model in the loading set")
	}
	select {
	case <-unsubscribed:
	case <-time.After(time.Second):
		t.Error("progress subscription not released after failure")
	}
}

func TestInstallTimeoutBoundsLoad(t *testing.T) {
	r := NewRegistry()
	d := testDescriptor("app-local-whisper", CategoryTranscription)
	d.LoadModel = func(ctx context.Context, _ Config, _ string) error {
		<-ctx.Done()
		return ctx.Err()
	}
	r.MustRegister(d)

	tracker := NewInstallTracker(r, staticConfigs{}, WithInstallTimeout(20*time.Millisecond))
	err := tracker.Install(context.Background(), "app-local-whisper", "small.en")
	if KindOf(err) != KindInstall {
		t.Errorf("timed-out install kind = %s, want install", KindOf(err))
	}
}
