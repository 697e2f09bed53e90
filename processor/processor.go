/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package processor drives a single repository through the scan
// pipeline: sync the working copy, consult the cache, lint, and ensure
// the resulting pull request or issue exists.
package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chainguard-dev/clog"

	"chainguard.dev/cookstyle-runner/cache"
	"chainguard.dev/cookstyle-runner/cookstyle"
	"chainguard.dev/cookstyle-runner/githubops"
	"chainguard.dev/cookstyle-runner/gitops"
	"chainguard.dev/cookstyle-runner/metrics"
)

// GitClient is the subset of gitops.Client the processor needs.
type GitClient interface {
	CloneOrUpdate(ctx context.Context, rc *gitops.RepoContext, defaultBranch string) error
	HeadSHA(rc *gitops.RepoContext) (string, error)
	CreateBranch(ctx context.Context, rc *gitops.RepoContext, branchName string) error
	CommitAll(ctx context.Context, rc *gitops.RepoContext, message string) (bool, error)
	Push(ctx context.Context, rc *gitops.RepoContext, branchName string) error
}

// Linter runs Cookstyle against a working copy.
type Linter interface {
	Run(ctx context.Context, rc *gitops.RepoContext) cookstyle.Report
}

// ArtifactClient ensures PRs and issues exist for lint findings.
type ArtifactClient interface {
	EnsurePullRequest(ctx context.Context, spec githubops.PullRequestSpec) (string, bool, error)
	EnsureIssue(ctx context.Context, spec githubops.IssueSpec) (string, bool, error)
}

// RepoCache is the subset of cache.Cache the processor needs.
type RepoCache interface {
	UpToDate(repoName, currentSHA string, maxAge time.Duration) bool
	Update(repoName, commitSHA string, hadIssues bool, result string, processingTime float64) error
	Get(repoName string) (cache.Entry, bool)
}

// Options carries the scan policy shared by every repository.
type Options struct {
	DefaultBranch string
	BranchName    string
	CommitMessage string
	WorkDir       string

	PRTitle     string
	PRLabels    []string
	IssueTitle  string
	IssueLabels []string
	// ManageIssues enables tracking issues for offenses that cannot be
	// auto-corrected.
	ManageIssues bool

	UseCache     bool
	ForceRefresh bool
	CacheMaxAge  time.Duration

	// CleanupWorkDir removes each repository's working copy after
	// processing instead of keeping it for incremental updates on the
	// next run.
	CleanupWorkDir bool
}

// Processor scans repositories one at a time. It is safe for concurrent
// use; all mutable state lives in the cache, which locks internally.
type Processor struct {
	git       GitClient
	linter    Linter
	artifacts ArtifactClient
	cache     RepoCache
	opts      Options
}

// New builds a Processor.
func New(git GitClient, linter Linter, artifacts ArtifactClient, repoCache RepoCache, opts Options) *Processor {
	if opts.CommitMessage == "" {
		opts.CommitMessage = "Automated Cookstyle fixes"
	}
	return &Processor{
		git:       git,
		linter:    linter,
		artifacts: artifacts,
		cache:     repoCache,
		opts:      opts,
	}
}

// Process scans one repository. The returned error is non-nil only for
// authentication failures, which poison every remaining repository and
// must abort the run; all other failures are reported in the Outcome.
func (p *Processor) Process(ctx context.Context, cloneURL string) (Outcome, error) {
	start := time.Now()

	rc, err := gitops.NewRepoContext(cloneURL, p.opts.WorkDir)
	if err != nil {
		return p.finish(Outcome{Repo: cloneURL, Kind: KindError, Reason: err.Error()}, start), nil
	}

	log := clog.FromContext(ctx).With("repo", rc.FullName())
	ctx = clog.WithLogger(ctx, log)

	outcome, err := p.process(ctx, rc, start)

	if p.opts.CleanupWorkDir {
		if cerr := rc.Cleanup(); cerr != nil {
			log.Warnf("Removing work dir: %v", cerr)
		}
	}
	return p.finish(outcome, start), err
}

func (p *Processor) process(ctx context.Context, rc *gitops.RepoContext, start time.Time) (Outcome, error) {
	log := clog.FromContext(ctx)
	outcome := Outcome{Repo: rc.FullName()}

	if err := p.git.CloneOrUpdate(ctx, rc, p.opts.DefaultBranch); err != nil {
		if errors.Is(err, gitops.ErrAuthentication) {
			outcome.Kind = KindError
			outcome.Reason = err.Error()
			return outcome, err
		}
		outcome.Kind = KindError
		outcome.Reason = fmt.Sprintf("syncing repository: %v", err)
		return outcome, nil
	}

	sha, err := p.git.HeadSHA(rc)
	if err != nil {
		outcome.Kind = KindError
		outcome.Reason = fmt.Sprintf("resolving HEAD: %v", err)
		return outcome, nil
	}

	if p.opts.UseCache && !p.opts.ForceRefresh && p.cache.UpToDate(rc.FullName(), sha, p.opts.CacheMaxAge) {
		outcome.Kind = KindSkipped
		outcome.Reason = "unchanged since last scan"
		if entry, ok := p.cache.Get(rc.FullName()); ok && entry.Result != nil {
			outcome.Reason = "unchanged since last scan: " + *entry.Result
		}
		log.Info("Skipping repository, cache is current")
		return outcome, nil
	}

	report := p.linter.Run(ctx, rc)
	if report.Err {
		outcome.Kind = KindError
		outcome.Reason = report.ErrMessage
		return outcome, nil
	}

	if !report.HasOffenses() {
		outcome.Kind = KindNoIssues
		outcome.Reason = report.Summary()
		p.record(ctx, rc.FullName(), sha, report, start)
		return outcome, nil
	}

	outcome.Kind = KindIssuesFound
	outcome.Reason = report.Summary()

	if report.AutoCorrectable > 0 {
		return p.proposeFix(ctx, rc, sha, report, start, outcome)
	}

	// Manual-only offenses: no branch to push, optionally track an issue.
	p.record(ctx, rc.FullName(), sha, report, start)
	if !p.opts.ManageIssues {
		return outcome, nil
	}

	url, created, err := p.artifacts.EnsureIssue(ctx, githubops.IssueSpec{
		Owner:  rc.Owner,
		Repo:   rc.Name,
		Title:  p.opts.IssueTitle,
		Body:   report.IssueDescription,
		Labels: p.opts.IssueLabels,
	})
	if err != nil {
		if errors.Is(err, gitops.ErrAuthentication) {
			return outcome, err
		}
		log.Warnf("Ensuring issue failed: %v", err)
		outcome.ArtifactErr = err
		metrics.ArtifactErrors.Inc()
		return outcome, nil
	}
	outcome.ArtifactURL = url
	outcome.IssueCreated = created
	if created {
		metrics.IssuesCreated.Inc()
	}
	return outcome, nil
}

// proposeFix commits the autocorrected tree to the work branch and
// ensures a PR exists for it.
func (p *Processor) proposeFix(ctx context.Context, rc *gitops.RepoContext, sha string, report cookstyle.Report, start time.Time, outcome Outcome) (Outcome, error) {
	log := clog.FromContext(ctx)

	if err := p.git.CreateBranch(ctx, rc, p.opts.BranchName); err != nil {
		outcome.Kind = KindError
		outcome.Reason = fmt.Sprintf("creating branch: %v", err)
		return outcome, nil
	}

	committed, err := p.git.CommitAll(ctx, rc, p.opts.CommitMessage)
	if err != nil {
		outcome.Kind = KindError
		outcome.Reason = fmt.Sprintf("committing fixes: %v", err)
		return outcome, nil
	}
	if !committed {
		// The tool reported correctable offenses but the autocorrect
		// pass changed nothing. Treat as clean rather than opening an
		// empty PR.
		log.Warnf("Autocorrect staged no changes despite %d correctable offenses", report.AutoCorrectable)
		outcome.Kind = KindNoIssues
		outcome.Reason = "autocorrect produced no changes"
		p.record(ctx, rc.FullName(), sha, report, start)
		return outcome, nil
	}

	if err := p.git.Push(ctx, rc, p.opts.BranchName); err != nil {
		if errors.Is(err, gitops.ErrAuthentication) {
			outcome.Kind = KindError
			outcome.Reason = err.Error()
			return outcome, err
		}
		outcome.Kind = KindError
		outcome.Reason = fmt.Sprintf("pushing branch: %v", err)
		return outcome, nil
	}

	// The work branch head is the commit of record for this scan.
	if fixedSHA, err := p.git.HeadSHA(rc); err == nil {
		sha = fixedSHA
	}
	p.record(ctx, rc.FullName(), sha, report, start)

	url, created, err := p.artifacts.EnsurePullRequest(ctx, githubops.PullRequestSpec{
		Owner:  rc.Owner,
		Repo:   rc.Name,
		Head:   p.opts.BranchName,
		Base:   p.opts.DefaultBranch,
		Title:  p.opts.PRTitle,
		Body:   report.PRDescription,
		Labels: p.opts.PRLabels,
	})
	if err != nil {
		if errors.Is(err, gitops.ErrAuthentication) {
			return outcome, err
		}
		log.Warnf("Ensuring pull request failed: %v", err)
		outcome.ArtifactErr = err
		metrics.ArtifactErrors.Inc()
		return outcome, nil
	}
	outcome.ArtifactURL = url
	outcome.PRCreated = created
	if created {
		metrics.PullRequestsCreated.Inc()
	}
	return outcome, nil
}

// record persists the scan result for the SHA-keyed cache.
func (p *Processor) record(ctx context.Context, repo, sha string, report cookstyle.Report, start time.Time) {
	if !p.opts.UseCache || sha == "" {
		return
	}
	if err := p.cache.Update(repo, sha, report.HasOffenses(), report.Summary(), time.Since(start).Seconds()); err != nil {
		clog.FromContext(ctx).Warnf("Updating cache: %v", err)
	}
}

func (p *Processor) finish(outcome Outcome, start time.Time) Outcome {
	outcome.Duration = time.Since(start)
	metrics.ReposProcessed.WithLabelValues(string(outcome.Kind)).Inc()
	metrics.ProcessingSeconds.Observe(outcome.Duration.Seconds())
	return outcome
}
