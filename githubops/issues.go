/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubops

import (
	"context"
	"fmt"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v84/github"

	"chainguard.dev/cookstyle-runner/retry"
)

// IssueSpec describes the desired state of a manual-fix tracking issue.
type IssueSpec struct {
	Owner  string
	Repo   string
	Title  string
	Body   string
	Labels []string
}

// EnsureIssue opens a tracking issue unless an open issue with the same
// title already exists. Existing issues are left untouched so discussion
// on them is not clobbered by a rescan. Returns the issue URL and
// whether a new issue was created.
func (c *Client) EnsureIssue(ctx context.Context, spec IssueSpec) (string, bool, error) {
	log := clog.FromContext(ctx).With("repo", spec.Owner+"/"+spec.Repo)

	opts := &github.IssueListByRepoOptions{
		State:       "open",
		Labels:      spec.Labels,
		ListOptions: github.ListOptions{PerPage: 100},
	}
	for {
		issues, resp, err := c.issuesPage(ctx, spec, opts)
		if err != nil {
			return "", false, classify(fmt.Errorf("listing issues: %w", err))
		}

		for _, issue := range issues {
			// The list endpoint also returns PRs; skip them.
			if issue.IsPullRequest() {
				continue
			}
			if issue.GetTitle() == spec.Title {
				log.Infof("Issue #%d already open: %s", issue.GetNumber(), issue.GetHTMLURL())
				return issue.GetHTMLURL(), false, nil
			}
		}

		if resp.NextPage == 0 {
			break
		}
		// IssueListByRepoOptions embeds both cursor and page options;
		// the page field must be addressed through ListOptions.
		opts.ListOptions.Page = resp.NextPage
	}

	issue, err := retry.Do(ctx, c.retry, "issue create", isRetryable, func() (*github.Issue, error) {
		issue, _, err := c.rest.Issues.Create(ctx, spec.Owner, spec.Repo, &github.IssueRequest{
			Title:  github.Ptr(spec.Title),
			Body:   github.Ptr(spec.Body),
			Labels: &spec.Labels,
		})
		return issue, err
	})
	if err != nil {
		return "", false, classify(fmt.Errorf("creating issue: %w", err))
	}

	log.Infof("Created issue #%d: %s", issue.GetNumber(), issue.GetHTMLURL())
	return issue.GetHTMLURL(), true, nil
}

func (c *Client) issuesPage(ctx context.Context, spec IssueSpec, opts *github.IssueListByRepoOptions) ([]*github.Issue, *github.Response, error) {
	type page struct {
		issues []*github.Issue
		resp   *github.Response
	}
	p, err := retry.Do(ctx, c.retry, "issue list", isRetryable, func() (page, error) {
		issues, resp, err := c.rest.Issues.ListByRepo(ctx, spec.Owner, spec.Repo, opts)
		return page{issues: issues, resp: resp}, err
	})
	return p.issues, p.resp, err
}
