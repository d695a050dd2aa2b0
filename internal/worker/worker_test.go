package worker

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/yangwenmai/readtrack/internal/content"
	"github.com/yangwenmai/readtrack/internal/logger"
)

type fakeWarmer struct {
	mu       sync.Mutex
	rootErr  error
	failOn   string
	roots    atomic.Int32
	warmed   []string
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeWarmer) WarmRootManifest(context.Context) (*content.RootManifest, error) {
	f.roots.Add(1)
	if f.rootErr != nil {
		return nil, f.rootErr
	}
	var items []content.Item
	for _, d := range []string{"html", "css", "javascript", "typescript", "react", "web", "glossary", "html"} {
		items = append(items, content.Item{Domain: d, Slug: "x"})
	}
	return &content.RootManifest{Items: items}, nil
}

func (f *fakeWarmer) WarmDomainManifest(_ context.Context, domain string) error {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	if domain == f.failOn {
		return errors.New("upstream 502")
	}
	f.mu.Lock()
	f.warmed = append(f.warmed, domain)
	f.mu.Unlock()
	return nil
}

func TestPrefetcher_RunOnce(t *testing.T) {
	w := &fakeWarmer{}
	p := NewPrefetcher(w, time.Hour, logger.NewNop())

	n, err := p.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n != 7 {
		t.Errorf("domains = %d, want 7 distinct", n)
	}
	if len(w.warmed) != 7 {
		t.Errorf("warmed = %v", w.warmed)
	}
	if peak := w.peak.Load(); peak > maxConcurrentWarm {
		t.Errorf("peak concurrency = %d, limit %d", peak, maxConcurrentWarm)
	}
}

func TestPrefetcher_DomainFailureDoesNotStopOthers(t *testing.T) {
	w := &fakeWarmer{failOn: "css"}
	p := NewPrefetcher(w, time.Hour, logger.NewNop())

	_, err := p.RunOnce(context.Background())
	if err == nil {
		t.Fatal("expected the css failure to be reported")
	}
	sort.Strings(w.warmed)
	if len(w.warmed) != 6 {
		t.Errorf("warmed = %v, want every domain but css", w.warmed)
	}
}

func TestPrefetcher_RootFailure(t *testing.T) {
	w := &fakeWarmer{rootErr: errors.New("timeout")}
	p := NewPrefetcher(w, time.Hour, logger.NewNop())

	if _, err := p.RunOnce(context.Background()); err == nil {
		t.Fatal("expected an error")
	}
	if len(w.warmed) != 0 {
		t.Errorf("no domain should be warmed without a root manifest, got %v", w.warmed)
	}
}

func TestPrefetcher_StartStops(t *testing.T) {
	w := &fakeWarmer{}
	p := NewPrefetcher(w, time.Hour, logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for w.roots.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first prefetch never ran")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestPrefetcher_WarmsRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := content.NewRedisClient(mr.Addr(), "", 0)
	defer client.Close()

	cached := content.NewCachedService(content.NewStubService(), content.NewRedisCache(client, "rt:"), time.Minute, logger.NewNop())
	p := NewPrefetcher(cached, time.Hour, logger.NewNop())

	n, err := p.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n != 3 {
		t.Errorf("domains = %d, want 3", n)
	}
	for _, key := range []string{"rt:manifest", "rt:domain:html", "rt:domain:css", "rt:domain:javascript"} {
		if !mr.Exists(key) {
			t.Errorf("%s not cached", key)
		}
	}
}

type countingSweeper struct {
	calls atomic.Int32
}

func (c *countingSweeper) Sweep(time.Duration) int {
	c.calls.Add(1)
	return 1
}

func TestSweeper(t *testing.T) {
	s := NewSweeper(&countingSweeper{}, time.Minute, logger.NewNop())
	if s.interval != 15*time.Second {
		t.Errorf("interval = %v, want 15s", s.interval)
	}
	if NewSweeper(&countingSweeper{}, time.Second, logger.NewNop()).interval != time.Second {
		t.Error("interval should be at least one second")
	}

	cs := &countingSweeper{}
	sw := NewSweeper(cs, time.Minute, logger.NewNop())
	sw.interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sw.Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for cs.calls.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("sweeper did not run")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done
}
