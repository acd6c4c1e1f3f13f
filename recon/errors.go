package recon

import "errors"

// ErrInvalidConcurrency is returned when scan.concurrency is negative.
var ErrInvalidConcurrency = errors.New("recon: concurrency must be at least 1")

// ErrInvalidPageSize is returned when scan.page_size or scan.max_results is negative.
var ErrInvalidPageSize = errors.New("recon: page size and max results must not be negative")

// ErrInvalidService is returned for a tracker service other than jira or confluence.
var ErrInvalidService = errors.New("recon: service must be jira or confluence")

// ErrInvalidMode is returned for a run mode other than secrets or extract.
var ErrInvalidMode = errors.New("recon: mode must be secrets or extract")

// ErrNoQueries is returned when a plan has nothing to enumerate.
var ErrNoQueries = errors.New("recon: no queries to run")

// ErrNoScopes is returned when the source cannot list projects or spaces.
var ErrNoScopes = errors.New("recon: source cannot list scopes")

// ErrRunNotFound is returned when a stored run ID does not exist.
var ErrRunNotFound = errors.New("recon: run not found")
