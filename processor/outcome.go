/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package processor

import "time"

// Kind classifies what happened to a repository during a scan.
type Kind string

const (
	// KindSkipped means the cache proved the repository unchanged and
	// lint was not run.
	KindSkipped Kind = "skipped"
	// KindNoIssues means lint ran and found nothing.
	KindNoIssues Kind = "no_issues"
	// KindIssuesFound means lint found offenses.
	KindIssuesFound Kind = "issues_found"
	// KindError means the repository could not be scanned.
	KindError Kind = "error"
)

// Outcome is the result of processing a single repository.
type Outcome struct {
	Repo string
	Kind Kind
	// Reason is a short human explanation of the outcome.
	Reason string
	// ArtifactURL is the PR or issue URL, when one was ensured.
	ArtifactURL string
	// ArtifactErr records a PR or issue API failure that did not change
	// the lint outcome.
	ArtifactErr error

	PRCreated    bool
	IssueCreated bool
	Duration     time.Duration
}
