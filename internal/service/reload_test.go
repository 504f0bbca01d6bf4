package service

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/smazurov/camwatch/internal/config"
	"github.com/smazurov/camwatch/internal/events"
)

func TestReloadAppliedAtCycleBoundary(t *testing.T) {
	h := newHarness(t, []config.SourceConfig{webcam("a", 0), webcam("b", 1)}, nil)

	h.svc.Reload([]config.SourceConfig{webcam("c", 0)})

	// Nothing changes until the loop reaches a cycle boundary.
	if got := h.svc.RunCycle(context.Background()); len(got.Snapshots) != 2 {
		t.Fatalf("snapshots before apply = %d", len(got.Snapshots))
	}

	h.svc.applyPending(context.Background())

	for _, s := range h.factory.generation(0) {
		if !s.isReleased() {
			t.Errorf("old source %s not released", s.id)
		}
	}
	res := h.svc.RunCycle(context.Background())
	if len(res.Snapshots) != 1 || res.Snapshots[0].CameraID != "c" {
		t.Fatalf("snapshots after apply = %+v", res.Snapshots)
	}
	if got := h.svc.Sources(); len(got) != 1 || got[0].ID != "c" {
		t.Errorf("Sources = %+v", got)
	}

	var reloaded *events.SourcesReloadedEvent
	for _, ev := range h.bus.all() {
		if e, ok := ev.(events.SourcesReloadedEvent); ok {
			reloaded = &e
		}
	}
	if reloaded == nil || !slices.Equal(reloaded.Sources, []string{"c"}) {
		t.Errorf("reload event = %+v", reloaded)
	}
}

func TestReloadInvalidListIgnored(t *testing.T) {
	h := newHarness(t, []config.SourceConfig{webcam("a", 0)}, nil)

	h.svc.Reload([]config.SourceConfig{webcam("x", 0), webcam("x", 1)})
	h.svc.applyPending(context.Background())

	if h.factory.generations() != 1 {
		t.Errorf("generations = %d, want 1", h.factory.generations())
	}
	if h.factory.generation(0)[0].isReleased() {
		t.Error("current source released for an invalid list")
	}
}

func TestReloadLatestWins(t *testing.T) {
	h := newHarness(t, []config.SourceConfig{webcam("a", 0)}, nil)

	h.svc.Reload([]config.SourceConfig{webcam("b", 0)})
	h.svc.Reload([]config.SourceConfig{webcam("c", 0)})
	h.svc.applyPending(context.Background())
	h.svc.applyPending(context.Background())

	if h.factory.generations() != 2 {
		t.Fatalf("generations = %d, want 2", h.factory.generations())
	}
	if id := h.factory.generation(1)[0].id; id != "c" {
		t.Errorf("applied source = %q, want c", id)
	}
}

func TestReloadFactoryFailureRestoresPrevious(t *testing.T) {
	h := newHarness(t, []config.SourceConfig{webcam("a", 0)}, nil)
	h.factory.fail["broken"] = true

	h.svc.Reload([]config.SourceConfig{webcam("broken", 0)})
	h.svc.applyPending(context.Background())

	if got := h.svc.Sources(); len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("Sources = %+v", got)
	}
	res := h.svc.RunCycle(context.Background())
	if len(res.Snapshots) != 1 || res.Snapshots[0].CameraID != "a" || !res.Snapshots[0].OK {
		t.Errorf("snapshots = %+v", res.Snapshots)
	}
}

func TestReloadWithNoBuildableListIdles(t *testing.T) {
	h := newHarness(t, []config.SourceConfig{webcam("a", 0)}, func(o *Options, _ *fakeFactory) {
		o.IdleCycle = 50 * time.Millisecond
	})
	h.factory.fail["a"] = true
	h.factory.fail["broken"] = true

	h.svc.Reload([]config.SourceConfig{webcam("broken", 0)})
	h.svc.applyPending(context.Background())

	if got := h.svc.Sources(); len(got) != 0 {
		t.Fatalf("Sources = %+v, want none", got)
	}
	res := h.svc.RunCycle(context.Background())
	if len(res.Snapshots) != 0 || res.Composite != nil {
		t.Errorf("result = %+v, want no snapshots and no composite", res)
	}
	if h.sink.shows != 0 {
		t.Errorf("shows = %d, want 0", h.sink.shows)
	}

	before := h.svc.Cycles()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := h.svc.Run(ctx); err != nil {
		t.Fatal(err)
	}
	// Four idle waits fit in the timeout; a spinning loop would run thousands.
	if n := h.svc.Cycles() - before; n == 0 || n > 6 {
		t.Errorf("cycles during Run = %d, want 1..6", n)
	}
}

func TestWatchSourcesQueuesReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.toml")
	write := func(body string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("[[sources]]\nid = \"a\"\ntype = \"webcam\"\nindex = 0\n")

	h := newHarness(t, []config.SourceConfig{webcam("a", 0)}, nil)
	w, err := h.svc.WatchSources(context.Background(), path)
	if err != nil {
		t.Fatalf("WatchSources: %v", err)
	}
	defer w.Stop()

	write("[[sources]]\nid = \"door\"\ntype = \"rtsp\"\nurl = \"rtsp://10.0.0.5/stream\"\n")

	deadline := time.Now().Add(5 * time.Second)
	for len(h.svc.pending) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("reload was not queued")
		}
		time.Sleep(20 * time.Millisecond)
	}

	h.svc.applyPending(context.Background())
	if got := h.svc.Sources(); len(got) != 1 || got[0].ID != "door" {
		t.Errorf("Sources = %+v", got)
	}
}
