/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package metrics exposes Prometheus collectors for the runner. The
// collectors are registered on the default registry; the entrypoint
// serves them via promhttp for the duration of the batch.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts repositories skipped because their commit SHA
	// matched a fresh cache entry.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cookstyle_runner_cache_hits_total",
		Help: "Repositories skipped due to a fresh cache entry.",
	})

	// CacheMisses counts repositories that had to be processed.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cookstyle_runner_cache_misses_total",
		Help: "Repositories processed due to a stale or missing cache entry.",
	})

	// ReposProcessed counts terminal outcomes per repository, labeled by
	// outcome kind (skipped, no_issues, issues_found, error).
	ReposProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cookstyle_runner_repos_processed_total",
		Help: "Repository processing outcomes.",
	}, []string{"outcome"})

	// PullRequestsCreated counts pull requests created (not updates).
	PullRequestsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cookstyle_runner_pull_requests_created_total",
		Help: "Pull requests created for auto-corrected offenses.",
	})

	// IssuesCreated counts manual-fix issues created (not updates).
	IssuesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cookstyle_runner_issues_created_total",
		Help: "Issues created for offenses requiring manual fixes.",
	})

	// ArtifactErrors counts PR/issue API failures that occurred after a
	// successful lint pass.
	ArtifactErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cookstyle_runner_artifact_errors_total",
		Help: "Failures creating or updating pull requests and issues.",
	})

	// ProcessingSeconds observes end-to-end per-repository processing time.
	ProcessingSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cookstyle_runner_repo_processing_seconds",
		Help:    "Per-repository processing duration in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})
)
