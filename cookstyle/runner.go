/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package cookstyle invokes the Cookstyle linter against a working copy
// and turns its JSON output into offense counts and artifact bodies. The
// linter runs twice when correctable offenses exist: once to report, and
// once in autocorrect mode to mutate the tree in place.
package cookstyle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"chainguard.dev/cookstyle-runner/gitops"
	"github.com/chainguard-dev/clog"
)

// Exit codes defined by the tool: anything else is an unexpected failure.
const (
	exitClean    = 0
	exitOffenses = 1
)

// Result captures one external tool invocation.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Commander runs an external command in a directory and captures its
// output. The production implementation shells out; tests substitute
// canned results.
type Commander interface {
	Run(ctx context.Context, dir, name string, args ...string) (Result, error)
}

type execCommander struct{}

func (execCommander) Run(ctx context.Context, dir, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return res, nil
	case errors.As(err, &exitErr):
		// Non-zero exits are data, not errors; the caller interprets
		// the code.
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	default:
		return res, err
	}
}

// Option configures a Runner.
type Option func(*Runner)

// WithCommander substitutes the external command implementation.
func WithCommander(c Commander) Option {
	return func(r *Runner) {
		r.commander = c
	}
}

// Runner invokes Cookstyle with a bounded timeout per invocation.
type Runner struct {
	commander Commander
	timeout   time.Duration
}

// NewRunner constructs a Runner. The timeout bounds each individual
// linter invocation.
func NewRunner(timeout time.Duration, opts ...Option) *Runner {
	r := &Runner{
		commander: execCommander{},
		timeout:   timeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run lints the working copy and returns the Report of record. When
// correctable offenses exist, a second autocorrect invocation mutates
// the tree; its own outcome never overrides the first run's counts.
func (r *Runner) Run(ctx context.Context, rc *gitops.RepoContext) Report {
	log := clog.FromContext(ctx)

	res, err := r.invoke(ctx, rc.Dir, "--format", "json", "--no-color")
	if err != nil {
		return errorReport(fmt.Sprintf("running cookstyle: %v", err))
	}
	if res.ExitCode != exitClean && res.ExitCode != exitOffenses {
		return errorReport(fmt.Sprintf("cookstyle exited %d: %s", res.ExitCode, bytes.TrimSpace(res.Stderr)))
	}

	report, err := parseReport(res.Stdout)
	if err != nil {
		// A clean exit with garbage output is untrustworthy; it must
		// not be mistaken for "no issues".
		return errorReport(fmt.Sprintf("parsing cookstyle output: %v", err))
	}

	if report.AutoCorrectable > 0 {
		log.Infof("Auto-correcting %d offenses", report.AutoCorrectable)
		res, err := r.invoke(ctx, rc.Dir, "-a", "--format", "json", "--no-color")
		switch {
		case err != nil:
			log.Warnf("Autocorrect invocation failed: %v", err)
		case res.ExitCode != exitClean && res.ExitCode != exitOffenses:
			log.Warnf("Autocorrect exited %d: %s", res.ExitCode, bytes.TrimSpace(res.Stderr))
		}
	}

	return report
}

func (r *Runner) invoke(ctx context.Context, dir string, args ...string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.commander.Run(ctx, dir, "cookstyle", args...)
	if ctx.Err() != nil {
		return res, fmt.Errorf("timed out after %v", r.timeout)
	}
	return res, err
}
