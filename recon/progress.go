package recon

import "sync"

// Stage names a pipeline phase in progress events.
type Stage string

const (
	StageEnumerate Stage = "enumerate"
	StageFetch     Stage = "fetch"
	StageDownload  Stage = "download"
	StageScan      Stage = "scan"
)

// Progress receives one event per finished unit of work: a search page
// during enumeration, a document during fetch, download and scan. done
// only grows within a stage. Calls are serialized by the Service.
type Progress interface {
	Advance(stage Stage, done, total int)
}

// ProgressFunc adapts a function to Progress.
type ProgressFunc func(stage Stage, done, total int)

// Advance calls f.
func (f ProgressFunc) Advance(stage Stage, done, total int) { f(stage, done, total) }

type nopProgress struct{}

func (nopProgress) Advance(Stage, int, int) {}

// NopProgress discards every event.
var NopProgress Progress = nopProgress{}

type lockedProgress struct {
	mu sync.Mutex
	p  Progress
}

func (l *lockedProgress) Advance(stage Stage, done, total int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.p.Advance(stage, done, total)
}

func (l *lockedProgress) stage(stage Stage) func(done, total int) {
	return func(done, total int) { l.Advance(stage, done, total) }
}
