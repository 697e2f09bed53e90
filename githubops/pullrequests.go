/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubops

import (
	"context"
	"fmt"
	"slices"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v84/github"
	"github.com/shurcooL/githubv4"

	"chainguard.dev/cookstyle-runner/retry"
)

// PullRequestSpec describes the desired state of an automated PR.
type PullRequestSpec struct {
	Owner  string
	Repo   string
	Head   string
	Base   string
	Title  string
	Body   string
	Labels []string
}

// EnsurePullRequest creates a pull request for the head branch or, when
// an open one already exists, refreshes its title and body in place.
// Labels are unioned with whatever the existing PR carries so manually
// applied labels survive a rescan. Returns the PR URL and whether a new
// PR was created.
func (c *Client) EnsurePullRequest(ctx context.Context, spec PullRequestSpec) (string, bool, error) {
	log := clog.FromContext(ctx).With("repo", spec.Owner+"/"+spec.Repo).With("head", spec.Head)

	number, url, existingLabels, err := c.findOpenPR(ctx, spec)
	if err != nil {
		return "", false, classify(fmt.Errorf("looking up pull request: %w", err))
	}

	if number == 0 {
		pr, err := retry.Do(ctx, c.retry, "pull request create", isRetryable, func() (*github.PullRequest, error) {
			pr, _, err := c.rest.PullRequests.Create(ctx, spec.Owner, spec.Repo, &github.NewPullRequest{
				Title: github.Ptr(spec.Title),
				Body:  github.Ptr(spec.Body),
				Head:  github.Ptr(spec.Head),
				Base:  github.Ptr(spec.Base),
			})
			return pr, err
		})
		if err != nil {
			return "", false, classify(fmt.Errorf("creating pull request: %w", err))
		}

		if len(spec.Labels) > 0 {
			if _, _, err := c.rest.Issues.AddLabelsToIssue(ctx, spec.Owner, spec.Repo, pr.GetNumber(), spec.Labels); err != nil {
				return "", false, classify(fmt.Errorf("adding labels: %w", err))
			}
		}

		log.Infof("Created PR #%d: %s", pr.GetNumber(), pr.GetHTMLURL())
		return pr.GetHTMLURL(), true, nil
	}

	log.Infof("Updating existing PR #%d", number)

	if _, _, err := c.rest.PullRequests.Edit(ctx, spec.Owner, spec.Repo, number, &github.PullRequest{
		Title: github.Ptr(spec.Title),
		Body:  github.Ptr(spec.Body),
	}); err != nil {
		return "", false, classify(fmt.Errorf("updating pull request: %w", err))
	}

	var missing []string
	for _, label := range spec.Labels {
		if !slices.Contains(existingLabels, label) {
			missing = append(missing, label)
		}
	}
	if len(missing) > 0 {
		if _, _, err := c.rest.Issues.AddLabelsToIssue(ctx, spec.Owner, spec.Repo, number, missing); err != nil {
			return "", false, classify(fmt.Errorf("adding labels: %w", err))
		}
	}

	return url, false, nil
}

// findOpenPR looks up the open PR for the head branch in a single
// GraphQL query. Returns number 0 when none exists.
func (c *Client) findOpenPR(ctx context.Context, spec PullRequestSpec) (int, string, []string, error) {
	var query struct {
		Repository struct {
			PullRequests struct {
				Nodes []struct {
					Number int
					Url    string
					Labels struct {
						Nodes []struct {
							Name string
						}
					} `graphql:"labels(first: 100)"`
				}
			} `graphql:"pullRequests(headRefName: $headRef, baseRefName: $baseRef, states: [OPEN], first: 1)"`
		} `graphql:"repository(owner: $owner, name: $repo)"`
	}

	variables := map[string]any{
		"owner":   githubv4.String(spec.Owner),
		"repo":    githubv4.String(spec.Repo),
		"headRef": githubv4.String(spec.Head),
		"baseRef": githubv4.String(spec.Base),
	}

	if err := c.gql.Query(ctx, &query, variables); err != nil {
		return 0, "", nil, err
	}

	if len(query.Repository.PullRequests.Nodes) == 0 {
		return 0, "", nil, nil
	}

	pr := query.Repository.PullRequests.Nodes[0]
	var labels []string
	for _, label := range pr.Labels.Nodes {
		labels = append(labels, label.Name)
	}
	return pr.Number, pr.Url, labels, nil
}
