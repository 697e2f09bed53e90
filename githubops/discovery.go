/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubops

import (
	"context"
	"fmt"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v84/github"

	"chainguard.dev/cookstyle-runner/retry"
)

// FindRepositories returns clone URLs for every non-archived repository
// in the owner's organization carrying at least one of the given topics.
// With no topics it returns every non-archived repository.
func (c *Client) FindRepositories(ctx context.Context, owner string, topics []string) ([]string, error) {
	log := clog.FromContext(ctx)

	var urls []string
	seen := map[string]bool{}

	queries := []string{fmt.Sprintf("org:%s archived:false", owner)}
	if len(topics) > 0 {
		queries = nil
		for _, topic := range topics {
			queries = append(queries, fmt.Sprintf("org:%s topic:%s archived:false", owner, strings.TrimSpace(topic)))
		}
	}

	for _, query := range queries {
		opts := &github.SearchOptions{
			ListOptions: github.ListOptions{PerPage: 100},
		}
		for {
			result, resp, err := c.searchPage(ctx, query, opts)
			if err != nil {
				return nil, classify(fmt.Errorf("searching %q: %w", query, err))
			}

			for _, repo := range result.Repositories {
				url := repo.GetCloneURL()
				if url == "" || seen[url] {
					continue
				}
				seen[url] = true
				urls = append(urls, url)
			}

			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}
	}

	log.With("owner", owner).With("topics", topics).
		Infof("Discovered %d repositories", len(urls))
	return urls, nil
}

func (c *Client) searchPage(ctx context.Context, query string, opts *github.SearchOptions) (*github.RepositoriesSearchResult, *github.Response, error) {
	type page struct {
		result *github.RepositoriesSearchResult
		resp   *github.Response
	}
	p, err := retry.Do(ctx, c.retry, "repository search", isRetryable, func() (page, error) {
		result, resp, err := c.rest.Search.Repositories(ctx, query, opts)
		return page{result: result, resp: resp}, err
	})
	return p.result, p.resp, err
}
