package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// failureMode decides what a failed file does to the rest of the run.
type failureMode int

const (
	// failFast stops issuing uploads at the first failure and skips later batches.
	failFast failureMode = iota
	// collectAll attempts every file and reports failures at the end.
	collectAll
)

func (m failureMode) String() string {
	if m == collectAll {
		return "collect-all"
	}
	return "fail-fast"
}

// coordinator drives batches through the client pool.
type coordinator struct {
	pool     *clientPool
	uploader *conditionalUploader
	mode     failureMode
	log      logrus.FieldLogger
	actions  *actionsOutput
}

// run uploads batches strictly in order. The summary is always returned,
// also alongside an error.
func (c *coordinator) run(ctx context.Context, batches []batch) (*runSummary, error) {
	total := 0
	for _, b := range batches {
		total += b.Len()
	}
	summary := newRunSummary(total, c.uploader.urls != nil)

	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("upload interrupted before batch %d: %w", b.Index+1, err)
		}

		err := c.runBatch(ctx, b, len(batches), summary)
		if err != nil && c.mode == failFast {
			return summary, err
		}
	}

	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("upload interrupted: %w", err)
	}
	return summary, summary.Err()
}

// runBatch starts one goroutine per lane and waits for all of them. In
// fail-fast mode the first failure stops lanes from starting further files;
// uploads already in flight run on ctx and are allowed to finish.
func (c *coordinator) runBatch(ctx context.Context, b batch, count int, summary *runSummary) error {
	endGroup := c.actions.group(fmt.Sprintf("Batch %d of %d", b.Index+1, count))
	defer endGroup()

	log := c.log.WithField("batch", b.Index+1)
	log.Debugf("starting batch with %d files on %d lanes", b.Len(), len(b.Lanes))

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for _, l := range b.Lanes {
		client := c.pool.Get(l.Slot)
		g.Go(func() error {
			for _, rec := range l.Files {
				if gctx.Err() != nil {
					return nil
				}
				out := c.uploader.upload(ctx, client, rec)
				summary.record(out)
				c.report(log, l.Slot, out)
				if out.Status == outcomeFailed && c.mode == failFast {
					return out.Err
				}
			}
			return nil
		})
	}
	err := g.Wait()

	elapsed := time.Since(start)
	summary.recordBatch(b.Index, elapsed)
	log.WithField("duration", elapsed.Round(time.Millisecond)).Infof("done in %.3f seconds", elapsed.Seconds())

	return err
}

func (c *coordinator) report(log logrus.FieldLogger, slot int, out outcome) {
	entry := log.WithFields(logrus.Fields{"key": out.Key, "client": slot})
	switch out.Status {
	case outcomeUploaded:
		entry.WithField("size", humanize.Bytes(uint64(out.Size))).Infof("Uploaded %s", out.Record.Path)
	case outcomeSkipped:
		entry.Infof("Not modified %s", out.Record.Path)
	case outcomeExcluded:
		entry.Debugf("Excluded placeholder %s", out.Record.Path)
	case outcomeFailed:
		entry.WithField("kind", out.Err.Kind).WithError(out.Err.Err).Errorf("Failed %s", out.Record.Path)
		c.actions.errorf("failed to upload %s: %v", out.Key, out.Err.Err)
	}
}
