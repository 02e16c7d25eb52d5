package main

import (
	"errors"
	"sync"
	"time"
)

const (
	resultSuccess = "success"
	resultFailure = "failure"
)

// runSummary accumulates outcomes from concurrent uploads. It never fails.
type runSummary struct {
	mu sync.Mutex

	Total         int
	Uploaded      int
	Skipped       int
	Excluded      int
	Failed        int
	BytesUploaded int64

	// BatchDurations is indexed by batch index.
	BatchDurations []time.Duration

	// URLs maps destination keys to their access URL. Nil unless URL output is on.
	URLs map[string]string

	failures syncedList[*OpError]
}

func newRunSummary(total int, withURLs bool) *runSummary {
	s := &runSummary{Total: total}
	if withURLs {
		s.URLs = make(map[string]string)
	}
	return s
}

func (s *runSummary) record(o outcome) {
	if o.Status == outcomeFailed {
		s.failures.add(o.Err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch o.Status {
	case outcomeUploaded:
		s.Uploaded++
		s.BytesUploaded += o.Size
	case outcomeSkipped:
		s.Skipped++
	case outcomeExcluded:
		s.Excluded++
	case outcomeFailed:
		s.Failed++
	}

	if s.URLs != nil && o.present() && o.URL != "" {
		s.URLs[o.Key] = o.URL
	}
}

func (s *runSummary) recordBatch(index int, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.BatchDurations) <= index {
		s.BatchDurations = append(s.BatchDurations, 0)
	}
	s.BatchDurations[index] = d
}

// Attempted is the number of files that produced an outcome.
func (s *runSummary) Attempted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Uploaded + s.Skipped + s.Excluded + s.Failed
}

// NotAttempted counts files never reached because the run stopped early.
func (s *runSummary) NotAttempted() int {
	return s.Total - s.Attempted()
}

func (s *runSummary) Failures() []*OpError {
	return s.failures.items()
}

// Result is "failure" iff any file failed.
func (s *runSummary) Result() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Failed > 0 {
		return resultFailure
	}
	return resultSuccess
}

// Err joins every recorded failure, or returns nil.
func (s *runSummary) Err() error {
	failures := s.Failures()
	if len(failures) == 0 {
		return nil
	}
	errs := make([]error, len(failures))
	for i, f := range failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}
