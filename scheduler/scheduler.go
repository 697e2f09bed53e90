/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package scheduler fans a batch of repositories out over a bounded
// worker pool. Failed repositories are requeued with backoff up to a
// per-repository retry budget; authentication failures abort the whole
// run since every remaining repository would fail the same way.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/chainguard-dev/clog"
	"golang.org/x/sync/errgroup"

	"chainguard.dev/cookstyle-runner/gitops"
	"chainguard.dev/cookstyle-runner/processor"
	"chainguard.dev/cookstyle-runner/retry"
)

// Worker processes a single repository.
type Worker interface {
	Process(ctx context.Context, cloneURL string) (processor.Outcome, error)
}

// Invalidator drops a repository's cache entry so a retry starts from
// scratch.
type Invalidator interface {
	ClearRepo(repoName string) error
}

// Scheduler runs a scan batch.
type Scheduler struct {
	worker  Worker
	cache   Invalidator
	workers int
	retries int
	backoff retry.Config
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithBackoff overrides the requeue backoff curve.
func WithBackoff(cfg retry.Config) Option {
	return func(s *Scheduler) {
		s.backoff = cfg
	}
}

// New builds a Scheduler with the given parallelism and per-repository
// retry budget. workers below 1 is treated as 1; retries below 0 as 0.
func New(worker Worker, cache Invalidator, workers, retries int, opts ...Option) *Scheduler {
	s := &Scheduler{
		worker:  worker,
		cache:   cache,
		workers: max(workers, 1),
		retries: max(retries, 0),
		backoff: retry.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type unit struct {
	url     string
	attempt int
}

// Run processes every repository and returns the aggregate tally. A
// non-nil error means the run was aborted by an authentication failure;
// the tally still covers whatever completed before the abort. When ctx
// is canceled, repositories already being processed run to completion
// and the rest are abandoned.
func (s *Scheduler) Run(ctx context.Context, cloneURLs []string) (AggregateResult, error) {
	log := clog.FromContext(ctx)
	start := time.Now()

	agg := AggregateResult{}
	if len(cloneURLs) == 0 {
		return agg, nil
	}

	// Sized so a requeue can never block: every repository occupies at
	// most one slot per allowed attempt.
	queue := make(chan unit, len(cloneURLs)*(s.retries+1))
	var pending sync.WaitGroup
	for _, url := range cloneURLs {
		pending.Add(1)
		queue <- unit{url: url}
	}
	go func() {
		pending.Wait()
		close(queue)
	}()

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.workers; i++ {
		g.Go(func() error {
			return s.work(gctx, queue, &pending, &mu, &agg)
		})
	}
	err := g.Wait()

	// Release whatever is still queued so the closer goroutine exits.
	for drained := true; drained; {
		select {
		case _, ok := <-queue:
			if !ok {
				drained = false
				break
			}
			pending.Done()
		default:
			drained = false
		}
	}

	agg.Elapsed = time.Since(start)
	log.Infof("Batch finished: %s", agg.Summary())
	return agg, err
}

func (s *Scheduler) work(ctx context.Context, queue chan unit, pending *sync.WaitGroup, mu *sync.Mutex, agg *AggregateResult) error {
	log := clog.FromContext(ctx)

	for {
		// Checked separately so a canceled run never picks up new work
		// even while the queue still has entries ready.
		if ctx.Err() != nil {
			return nil
		}

		var u unit
		var ok bool
		select {
		case <-ctx.Done():
			return nil
		case u, ok = <-queue:
			if !ok {
				return nil
			}
		}

		// Once a repository starts, let it finish even if the run is
		// being shut down. The linter carries its own timeout.
		outcome, err := s.worker.Process(context.WithoutCancel(ctx), u.url)
		if err != nil {
			pending.Done()
			return err
		}

		if outcome.Kind == processor.KindError && u.attempt < s.retries {
			if !s.requeue(ctx, queue, u, outcome) {
				pending.Done()
				return nil
			}
			continue
		}

		if outcome.Kind == processor.KindError {
			log.With("repo", outcome.Repo).
				Errorf("Giving up after %d attempts: %s", u.attempt+1, outcome.Reason)
		}

		mu.Lock()
		agg.add(outcome)
		mu.Unlock()
		pending.Done()
	}
}

// requeue invalidates the repository's cache entry and puts it back on
// the queue after a backoff delay. Returns false if the run was
// canceled while waiting.
func (s *Scheduler) requeue(ctx context.Context, queue chan unit, u unit, outcome processor.Outcome) bool {
	log := clog.FromContext(ctx)

	if rc, err := gitops.NewRepoContext(u.url, ""); err == nil {
		if err := s.cache.ClearRepo(rc.FullName()); err != nil {
			log.Warnf("Clearing cache for retry: %v", err)
		}
	}

	delay := s.backoff.Backoff(u.attempt)
	log.With("repo", outcome.Repo).With("attempt", u.attempt+1).
		Warnf("Repository failed (%s), requeueing in %v", outcome.Reason, delay)

	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay):
	}

	queue <- unit{url: u.url, attempt: u.attempt + 1}
	return true
}
