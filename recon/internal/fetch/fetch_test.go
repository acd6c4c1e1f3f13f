package fetch

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/recon/tracker"
)

type fakeFetcher struct {
	fail     map[string]bool
	delay    time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32
	calls    atomic.Int32
}

func (f *fakeFetcher) FetchDocument(ctx context.Context, id string) (*tracker.Document, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.fail[id] {
		return nil, &tracker.StatusError{Code: 404, Path: "/issue/" + id}
	}
	return &tracker.Document{ID: id, PrimaryText: "body of " + id}, nil
}

func makeIDs(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("DOC-%d", i)
	}
	return out
}

func TestFetchAll_PartialFailure(t *testing.T) {
	ids := makeIDs(20)
	src := &fakeFetcher{fail: map[string]bool{"DOC-3": true, "DOC-7": true, "DOC-19": true}}

	var events int
	docs := FetchAll(context.Background(), src, ids, Options{
		Concurrency: 4,
		Progress:    func(done, total int) { events++ },
	})

	if len(docs) != 17 {
		t.Fatalf("docs: got %d, want 17", len(docs))
	}
	if _, ok := docs["DOC-3"]; ok {
		t.Error("failed document present in result")
	}
	if docs["DOC-0"].PrimaryText != "body of DOC-0" {
		t.Errorf("DOC-0 = %+v", docs["DOC-0"])
	}
	if events != 20 {
		t.Errorf("progress events: got %d, want 20", events)
	}
}

func TestFetchAll_ConcurrencyBound(t *testing.T) {
	// WHAT: Any worker count yields the same document map as a single
	// worker and never exceeds its in-flight ceiling.
	// WHY: The collector owns the map; a race would lose, duplicate or
	// mix up entries.
	ids := makeIDs(200)
	fail := map[string]bool{"DOC-13": true, "DOC-77": true, "DOC-150": true}
	want := FetchAll(context.Background(), &fakeFetcher{fail: fail, delay: time.Millisecond}, ids, Options{Concurrency: 1})
	if len(want) != 197 {
		t.Fatalf("baseline docs: got %d, want 197", len(want))
	}

	for _, n := range []int{1, 5, 50} {
		t.Run(fmt.Sprintf("workers=%d", n), func(t *testing.T) {
			src := &fakeFetcher{fail: fail, delay: time.Millisecond}
			docs := FetchAll(context.Background(), src, ids, Options{Concurrency: n})
			if !reflect.DeepEqual(docs, want) {
				t.Fatalf("documents differ from the single-worker run: got %d, want %d", len(docs), len(want))
			}
			if p := int(src.peak.Load()); p > n {
				t.Errorf("peak in flight: got %d, want <= %d", p, n)
			}
			if c := int(src.calls.Load()); c != 200 {
				t.Errorf("calls: got %d, want 200", c)
			}
		})
	}
}

func TestFetchAll_ClampsConcurrency(t *testing.T) {
	for _, n := range []int{0, -3} {
		src := &fakeFetcher{}
		docs := FetchAll(context.Background(), src, makeIDs(5), Options{Concurrency: n})
		if len(docs) != 5 {
			t.Errorf("concurrency %d: got %d docs, want 5", n, len(docs))
		}
		if p := src.peak.Load(); p != 1 {
			t.Errorf("concurrency %d: peak %d, want 1", n, p)
		}
	}
}

func TestFetchAll_Empty(t *testing.T) {
	docs := FetchAll(context.Background(), &fakeFetcher{}, nil, Options{Concurrency: 3})
	if len(docs) != 0 {
		t.Errorf("docs: got %d, want 0", len(docs))
	}
}

func TestFetchAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &fakeFetcher{delay: 20 * time.Millisecond}

	var once sync.Once
	docs := FetchAll(ctx, src, makeIDs(100), Options{
		Concurrency: 2,
		Progress: func(done, total int) {
			once.Do(cancel)
		},
	})
	cancel()

	if len(docs) >= 100 {
		t.Errorf("docs: got %d, want fewer than 100 after cancel", len(docs))
	}
	for id, d := range docs {
		if d == nil || d.ID != id {
			t.Errorf("incomplete document for %s: %+v", id, d)
		}
	}
	if c := src.calls.Load(); c > 10 {
		t.Errorf("calls after cancel: got %d, want a handful", c)
	}
}

func TestFetchAll_CancelledProgressReachesTotal(t *testing.T) {
	// WHAT: IDs skipped after cancellation still get one progress event.
	// WHY: A progress bar waiting on the total would otherwise hang short.
	ctx, cancel := context.WithCancel(context.Background())
	src := &fakeFetcher{delay: 20 * time.Millisecond}

	var events []int
	var mu sync.Mutex
	FetchAll(ctx, src, makeIDs(50), Options{
		Concurrency: 2,
		Progress: func(done, total int) {
			mu.Lock()
			defer mu.Unlock()
			if total != 50 {
				t.Errorf("total: got %d, want 50", total)
			}
			events = append(events, done)
			cancel()
		},
	})
	cancel()

	if len(events) != 50 {
		t.Fatalf("events: got %d, want 50", len(events))
	}
	for i, d := range events {
		if d != i+1 {
			t.Fatalf("event %d: done %d, want %d", i, d, i+1)
		}
	}
}
