/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package scheduler

import (
	"fmt"
	"time"

	"chainguard.dev/cookstyle-runner/processor"
)

// AggregateResult tallies a scan batch.
type AggregateResult struct {
	Total       int
	NoIssues    int
	IssuesFound int
	Skipped     int
	Errors      int

	PRsCreated     int
	IssuesCreated  int
	ArtifactErrors int

	Elapsed time.Duration
}

func (a *AggregateResult) add(o processor.Outcome) {
	a.Total++
	switch o.Kind {
	case processor.KindNoIssues:
		a.NoIssues++
	case processor.KindIssuesFound:
		a.IssuesFound++
	case processor.KindSkipped:
		a.Skipped++
	case processor.KindError:
		a.Errors++
	}
	if o.PRCreated {
		a.PRsCreated++
	}
	if o.IssueCreated {
		a.IssuesCreated++
	}
	if o.ArtifactErr != nil {
		a.ArtifactErrors++
	}
}

// Summary is a one-line rendering for logs.
func (a AggregateResult) Summary() string {
	return fmt.Sprintf("processed=%d clean=%d issues=%d skipped=%d errors=%d prs=%d tracking_issues=%d",
		a.Total, a.NoIssues, a.IssuesFound, a.Skipped, a.Errors, a.PRsCreated, a.IssuesCreated)
}
