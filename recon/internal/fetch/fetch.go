// Package fetch loads candidate documents with a fixed pool of workers.
//
// Workers pull IDs from a channel and send each outcome to one collector
// that owns the result map, so no lock guards it. A failed fetch is
// logged and dropped; the rest of the run carries on.
package fetch

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/hazyhaar/recon/tracker"
)

// Fetcher loads one document by ID.
type Fetcher interface {
	FetchDocument(ctx context.Context, id string) (*tracker.Document, error)
}

// Options configures FetchAll.
type Options struct {
	Concurrency int // worker count; values below 1 mean 1
	Logger      *slog.Logger
	// Progress is called once per ID, success or not, from the collector
	// goroutine. After cancellation the IDs never fetched are reported
	// together at the end, so done always reaches total.
	Progress func(done, total int)
}

var errNoDocument = errors.New("fetch: no document returned")

type outcome struct {
	id  string
	doc *tracker.Document
	err error
}

// FetchAll fetches every id and returns the documents that arrived
// complete, keyed by ID. Once ctx is done no new fetch starts.
func FetchAll(ctx context.Context, src Fetcher, ids []string, opts Options) map[string]*tracker.Document {
	workers := max(opts.Concurrency, 1)
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	jobs := make(chan string)
	results := make(chan outcome, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				if ctx.Err() != nil {
					continue
				}
				doc, err := src.FetchDocument(ctx, id)
				if err == nil && doc == nil {
					err = errNoDocument
				}
				results <- outcome{id: id, doc: doc, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, id := range ids {
			select {
			case <-ctx.Done():
				return
			case jobs <- id:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	docs := make(map[string]*tracker.Document, len(ids))
	done := 0
	for r := range results {
		done++
		if r.err != nil {
			if ctx.Err() == nil {
				logger.Warn("fetch: document failed", "id", r.id, "error", r.err)
			}
		} else {
			docs[r.id] = r.doc
		}
		if opts.Progress != nil {
			opts.Progress(done, len(ids))
		}
	}

	if ctx.Err() != nil {
		logger.Info("fetch: cancelled", "fetched", len(docs), "requested", len(ids))
	}
	if opts.Progress != nil {
		for done < len(ids) {
			done++
			opts.Progress(done, len(ids))
		}
	}
	return docs
}
