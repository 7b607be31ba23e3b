package providers

import (
	"context"
	"errors"
	"testing"
)

func TestNilPredicateIsAlwaysAvailable(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(testDescriptor("anthropic", CategoryChat))

	res := NewResolver(r)
	if !res.IsAvailable(context.Background(), "anthropic") {
		t.Error("descriptor without a predicate must be available")
	}
}

func TestFailingPredicateIsIsolated(t *testing.T) {
	r := NewRegistry()

	healthy := testDescriptor("openai", CategoryChat)
	r.MustRegister(healthy)

	erroring := testDescriptor("app-local-whisper", CategoryTranscription)
	erroring.IsAvailable = func(context.Context) (bool, error) {
		return false, errors.New("bridge not connected")
	}
	r.MustRegister(erroring)

	panicking := testDescriptor("app-local-kokoro", CategorySpeech)
	panicking.IsAvailable = func(context.Context) (bool, error) {
		panic("runtime probe exploded")
	}
	r.MustRegister(panicking)

	res := NewResolver(r)
	res.Refresh(context.Background())

	available := res.Available(context.Background())
	if len(available) != 1 || available[0].ID != "openai" {
		t.Errorf("Available = %v, want only openai", ids(available))
	}
	if res.IsAvailable(context.Background(), "app-local-kokoro") {
		t.Error("a panicking predicate must resolve to unavailable")
	}
}

func TestRefreshPicksUpRuntimeAttach(t *testing.T) {
	r := NewRegistry()
	attached := false
	d := testDescriptor("app-local-kokoro", CategorySpeech)
	d.IsAvailable = func(context.Context) (bool, error) { return attached, nil }
	r.MustRegister(d)

	res := NewResolver(r)
	res.Refresh(context.Background())
	if res.IsAvailable(context.Background(), "app-local-kokoro") {
		t.Fatal("available before the runtime attached")
	}

	attached = true
	if res.IsAvailable(context.Background(), "app-local-kokoro") {
		t.Error("cached result must hold until Refresh")
	}
	res.Refresh(context.Background())
	if !res.IsAvailable(context.Background(), "app-local-kokoro") {
		t.Error("Refresh did not pick up the attached runtime")
	}
}

func TestUnknownProviderIsUnavailable(t *testing.T) {
	res := NewResolver(NewRegistry())
	if res.IsAvailable(context.Background(), "nope") {
		t.Error("unknown provider reported available")
	}
}
