/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package config defines the runner's typed configuration, loaded from
// the environment once at startup and validated before any worker runs.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"chainguard.dev/cookstyle-runner/cache"
	"github.com/sethvargo/go-envconfig"
)

// Config is the immutable runner configuration. Fields are populated
// from the environment; zero values are resolved by Validate.
type Config struct {
	// Owner is the GitHub organization to scan.
	Owner string `env:"OWNER, required"`
	// Topics filters the organization's repositories by topic.
	Topics []string `env:"TOPICS, default=chef-cookbook"`

	// GitHubToken authenticates as a personal access token. Mutually
	// exclusive with the App credential triple below.
	GitHubToken string `env:"GITHUB_TOKEN"`

	// GitHubAppID, GitHubAppInstallationID, and GitHubAppPrivateKey
	// authenticate as a GitHub App installation. All three must be set
	// together; the private key is a path to a PEM file.
	GitHubAppID             int64  `env:"GITHUB_APP_ID"`
	GitHubAppInstallationID int64  `env:"GITHUB_APP_INSTALLATION_ID"`
	GitHubAppPrivateKey     string `env:"GITHUB_APP_PRIVATE_KEY"`

	DefaultBranch string `env:"DEFAULT_BRANCH, default=main"`
	BranchName    string `env:"BRANCH_NAME, default=automated/cookstyle"`
	GitIdentity   string `env:"GIT_IDENTITY, default=cookstyle-runner"`

	PRTitle     string   `env:"PR_TITLE, default=Automated PR: Cookstyle Changes"`
	PRLabels    []string `env:"PR_LABELS, default=cookstyle"`
	IssueTitle  string   `env:"ISSUE_TITLE, default=Cookstyle: Manual fixes required"`
	IssueLabels []string `env:"ISSUE_LABELS, default=cookstyle,manual-fix"`

	// ManageManualFixIssues gates creation of tracking issues for
	// offenses Cookstyle cannot correct automatically.
	ManageManualFixIssues bool `env:"MANAGE_MANUAL_FIX_ISSUES, default=false"`

	CacheFile    string        `env:"CACHE_FILE, default=.cache/cache.json"`
	CacheMaxAge  time.Duration `env:"CACHE_MAX_AGE, default=168h"`
	UseCache     bool          `env:"USE_CACHE, default=true"`
	ForceRefresh bool          `env:"FORCE_REFRESH, default=false"`

	// ThreadCount bounds the worker pool; 0 means one worker per CPU.
	ThreadCount int `env:"THREAD_COUNT, default=0"`
	// RetryCount is the per-repository retry budget.
	RetryCount int `env:"RETRY_COUNT, default=3"`

	LintTimeout time.Duration `env:"LINT_TIMEOUT, default=300s"`
	WorkDir     string        `env:"WORK_DIR"`
	// CleanupWorkDir removes working copies after each repository is
	// processed; the default keeps them so the next run can fetch
	// instead of re-clone.
	CleanupWorkDir bool `env:"CLEANUP_WORK_DIR, default=false"`

	// MetricsPort serves Prometheus metrics while the batch runs;
	// 0 disables the listener.
	MetricsPort int `env:"METRICS_PORT, default=2112"`

	// OverridesFile optionally points at a YAML file with repository
	// include/exclude lists.
	OverridesFile string `env:"OVERRIDES_FILE"`
}

// Load populates a Config from the environment and validates it.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("processing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints and resolves derived defaults.
// Misconfiguration fails here, before any worker starts.
func (c *Config) Validate() error {
	if c.Owner == "" {
		return errors.New("owner cannot be empty")
	}

	hasToken := c.GitHubToken != ""
	hasApp := c.GitHubAppID != 0 || c.GitHubAppInstallationID != 0 || c.GitHubAppPrivateKey != ""
	switch {
	case hasToken && hasApp:
		return errors.New("GITHUB_TOKEN and GitHub App credentials are mutually exclusive")
	case !hasToken && !hasApp:
		return errors.New("either GITHUB_TOKEN or GitHub App credentials are required")
	case hasApp && (c.GitHubAppID == 0 || c.GitHubAppInstallationID == 0 || c.GitHubAppPrivateKey == ""):
		return errors.New("GITHUB_APP_ID, GITHUB_APP_INSTALLATION_ID, and GITHUB_APP_PRIVATE_KEY must all be set")
	}

	if c.ThreadCount < 0 {
		return fmt.Errorf("thread count cannot be negative, got %d", c.ThreadCount)
	}
	if c.ThreadCount == 0 {
		c.ThreadCount = runtime.NumCPU()
	}
	if c.RetryCount < 0 {
		return fmt.Errorf("retry count cannot be negative, got %d", c.RetryCount)
	}
	if c.LintTimeout <= 0 {
		return fmt.Errorf("lint timeout must be positive, got %v", c.LintTimeout)
	}

	// A non-positive max age is treated as misconfiguration to guard
	// against, not an error: fall back to the 7-day default.
	if c.CacheMaxAge <= 0 {
		c.CacheMaxAge = cache.DefaultMaxAge
	}

	if c.WorkDir == "" {
		c.WorkDir = filepath.Join(os.TempDir(), "cookstyle-runner")
	}

	return nil
}
