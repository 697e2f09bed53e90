/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package main implements the Cookstyle batch runner: it discovers an
// organization's cookbook repositories by topic, lints each one, and
// keeps automated fix PRs and tracking issues in sync with the results.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/oauth2"

	"chainguard.dev/cookstyle-runner/cache"
	"chainguard.dev/cookstyle-runner/config"
	"chainguard.dev/cookstyle-runner/cookstyle"
	"chainguard.dev/cookstyle-runner/githubops"
	"chainguard.dev/cookstyle-runner/gitops"
	"chainguard.dev/cookstyle-runner/processor"
	"chainguard.dev/cookstyle-runner/retry"
	"chainguard.dev/cookstyle-runner/scheduler"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(ctx)
	if err != nil {
		clog.FatalContextf(ctx, "loading configuration: %v", err)
	}

	if cfg.MetricsPort > 0 {
		go serveMetrics(ctx, cfg.MetricsPort)
	}

	ts, err := tokenSource(cfg)
	if err != nil {
		clog.FatalContextf(ctx, "building token source: %v", err)
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxRetries = cfg.RetryCount

	gh := githubops.New(ctx, ts, githubops.WithRetry(retryCfg))

	urls, err := gh.FindRepositories(ctx, cfg.Owner, cfg.Topics)
	if err != nil {
		clog.FatalContextf(ctx, "discovering repositories: %v", err)
	}

	overrides, err := config.LoadOverrides(cfg.OverridesFile)
	if err != nil {
		clog.FatalContextf(ctx, "loading overrides: %v", err)
	}
	urls = overrides.Filter(urls)
	if len(urls) == 0 {
		clog.InfoContextf(ctx, "No repositories to scan")
		return
	}
	clog.InfoContextf(ctx, "Scanning %d repositories with %d workers", len(urls), cfg.ThreadCount)

	git, err := gitops.New(ts, cfg.GitIdentity)
	if err != nil {
		clog.FatalContextf(ctx, "building git client: %v", err)
	}

	repoCache := cache.New(cfg.CacheFile)
	if cfg.ForceRefresh {
		if err := repoCache.ClearAll(); err != nil {
			clog.FatalContextf(ctx, "clearing cache: %v", err)
		}
	}

	proc := processor.New(git, cookstyle.NewRunner(cfg.LintTimeout), gh, repoCache, processor.Options{
		DefaultBranch: cfg.DefaultBranch,
		BranchName:    cfg.BranchName,
		WorkDir:       cfg.WorkDir,
		PRTitle:       cfg.PRTitle,
		PRLabels:      cfg.PRLabels,
		IssueTitle:    cfg.IssueTitle,
		IssueLabels:   cfg.IssueLabels,
		ManageIssues:  cfg.ManageManualFixIssues,
		UseCache:      cfg.UseCache,
		ForceRefresh:  cfg.ForceRefresh,
		CacheMaxAge:   cfg.CacheMaxAge,

		CleanupWorkDir: cfg.CleanupWorkDir,
	})

	sched := scheduler.New(proc, repoCache, cfg.ThreadCount, cfg.RetryCount,
		scheduler.WithBackoff(retryCfg))

	agg, runErr := sched.Run(ctx, urls)

	printSummary(os.Stdout, agg, repoCache.Stats())

	if runErr != nil {
		if errors.Is(runErr, gitops.ErrAuthentication) {
			clog.ErrorContextf(ctx, "Run aborted, authentication failed: %v", runErr)
		} else {
			clog.ErrorContextf(ctx, "Run aborted: %v", runErr)
		}
		os.Exit(1)
	}
}

// tokenSource picks PAT or GitHub App authentication; Validate already
// guaranteed exactly one is configured.
func tokenSource(cfg *config.Config) (oauth2.TokenSource, error) {
	if cfg.GitHubToken != "" {
		return githubops.StaticTokenSource(cfg.GitHubToken), nil
	}
	return githubops.NewAppTokenSource(cfg.GitHubAppID, cfg.GitHubAppInstallationID, cfg.GitHubAppPrivateKey)
}

// serveMetrics exposes Prometheus metrics for the duration of the run.
func serveMetrics(ctx context.Context, port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	clog.InfoContextf(ctx, "Serving metrics on :%d", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		clog.WarnContextf(ctx, "Metrics listener: %v", err)
	}
}
