/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package githubops talks to the GitHub API on behalf of the runner:
// discovering repositories by topic and keeping pull requests and issues
// in sync with lint results. All write operations are idempotent so a
// rescan of an unchanged repository never produces duplicates.
package githubops

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/go-github/v84/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"chainguard.dev/cookstyle-runner/gitops"
	"chainguard.dev/cookstyle-runner/retry"
)

// Client wraps the GitHub REST and GraphQL APIs.
type Client struct {
	rest  *github.Client
	gql   *githubv4.Client
	retry retry.Config
}

// Option configures a Client.
type Option func(*Client)

// WithRetry overrides the retry policy applied to API calls.
func WithRetry(cfg retry.Config) Option {
	return func(c *Client) {
		c.retry = cfg
	}
}

// WithBaseURLs points both API clients at an alternate endpoint.
// Used for GitHub Enterprise and for tests.
func WithBaseURLs(restURL, gqlURL string) Option {
	return func(c *Client) {
		if rest, err := c.rest.WithEnterpriseURLs(restURL, restURL); err == nil {
			c.rest = rest
		}
		c.gql = githubv4.NewEnterpriseClient(gqlURL, c.rest.Client())
	}
}

// New builds a Client authenticated by the given token source.
func New(ctx context.Context, ts oauth2.TokenSource, opts ...Option) *Client {
	hc := oauth2.NewClient(ctx, ts)
	c := &Client{
		rest:  github.NewClient(hc),
		gql:   githubv4.NewClient(hc),
		retry: retry.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// isRetryable reports whether an API error is worth retrying. Rate
// limits recover on their own; auth failures and 4xx responses do not.
func isRetryable(err error) bool {
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return true
	}
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		return respErr.Response.StatusCode >= http.StatusInternalServerError
	}
	return false
}

// classify maps authentication and authorization responses onto
// gitops.ErrAuthentication so callers can treat them as fatal.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch respErr.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return errors.Join(gitops.ErrAuthentication, err)
		}
	}
	return err
}
