/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package gitops provides the local working-copy operations for one
// repository at a time: clone or update, branch, commit, and push. Each
// RepoContext owns a dedicated directory, so callers can safely drive
// different repositories from different goroutines without locking.
package gitops

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	git "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"golang.org/x/oauth2"
)

// ErrAuthentication marks credential failures against the remote. These
// are fatal to the whole run: every subsequent repository would fail the
// same way, so callers must not retry past it.
var ErrAuthentication = errors.New("git authentication failed")

// Option configures a Client.
type Option func(*Client)

// WithSigner configures commit signing. The signer may be nil when
// signing is not required.
func WithSigner(signer git.Signer) Option {
	return func(c *Client) {
		c.signer = signer
	}
}

// Client performs git operations scoped to a RepoContext. The token
// source is consulted for a fresh credential on every network operation;
// installation tokens are short-lived, so nothing credential-bearing is
// cached across operations.
type Client struct {
	tokenSource oauth2.TokenSource
	identity    string
	signer      git.Signer
}

// New constructs a Client. The token source must allow cloning and
// pushing to the targeted repositories; identity is used as the commit
// author name.
func New(tokenSource oauth2.TokenSource, identity string, opts ...Option) (*Client, error) {
	if tokenSource == nil {
		return nil, errors.New("token source cannot be nil")
	}
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, errors.New("identity cannot be empty")
	}

	c := &Client{
		tokenSource: tokenSource,
		identity:    identity,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Exists reports whether the context's directory holds a valid working copy.
func (c *Client) Exists(rc *RepoContext) bool {
	_, err := git.PlainOpen(rc.Dir)
	return err == nil
}

// CloneOrUpdate brings the working copy to the remote's current state.
// A fresh directory is cloned and checked out at defaultBranch when that
// branch exists (warn and stay on the clone's HEAD otherwise). An
// existing copy is fetched, hard-reset, checked out, pulled, and cleaned
// of untracked files.
func (c *Client) CloneOrUpdate(ctx context.Context, rc *RepoContext, defaultBranch string) error {
	if c.Exists(rc) {
		return c.update(ctx, rc, defaultBranch)
	}
	return c.clone(ctx, rc, defaultBranch)
}

func (c *Client) clone(ctx context.Context, rc *RepoContext, defaultBranch string) error {
	log := clog.FromContext(ctx)

	auth, err := c.auth()
	if err != nil {
		return fmt.Errorf("getting token: %w", err)
	}

	log.Infof("Cloning %s into %s", rc.CloneURL, rc.Dir)
	repo, err := git.PlainCloneContext(ctx, rc.Dir, false, &git.CloneOptions{
		URL:  rc.CloneURL,
		Auth: auth,
	})
	if err != nil {
		return classify(fmt.Errorf("cloning repository: %w", err))
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}
	if err := worktree.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(defaultBranch),
	}); err != nil {
		// Repositories that never renamed their default branch land
		// here; the clone's own HEAD is good enough.
		log.Warnf("Checkout of %s failed, staying on clone HEAD: %v", defaultBranch, err)
	}
	return nil
}

func (c *Client) update(ctx context.Context, rc *RepoContext, defaultBranch string) error {
	log := clog.FromContext(ctx)

	repo, err := git.PlainOpen(rc.Dir)
	if err != nil {
		return fmt.Errorf("opening repo: %w", err)
	}

	auth, err := c.auth()
	if err != nil {
		return fmt.Errorf("getting token: %w", err)
	}

	log.Infof("Fetching %s", rc.FullName())
	if err := repo.FetchContext(ctx, &git.FetchOptions{Auth: auth}); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return classify(fmt.Errorf("fetching: %w", err))
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}

	if err := worktree.Reset(&git.ResetOptions{Mode: git.HardReset}); err != nil {
		return fmt.Errorf("resetting worktree: %w", err)
	}

	if err := worktree.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(defaultBranch),
		Force:  true,
	}); err != nil {
		log.Warnf("Checkout of %s failed, staying on current branch: %v", defaultBranch, err)
	}

	if err := worktree.PullContext(ctx, &git.PullOptions{
		RemoteName: "origin",
		Auth:       auth,
		Force:      true,
	}); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return classify(fmt.Errorf("pulling: %w", err))
	}

	if err := worktree.Clean(&git.CleanOptions{Dir: true}); err != nil {
		return fmt.Errorf("cleaning worktree: %w", err)
	}
	return nil
}

// HeadSHA returns the working copy's current HEAD commit hash.
func (c *Client) HeadSHA(rc *RepoContext) (string, error) {
	repo, err := git.PlainOpen(rc.Dir)
	if err != nil {
		return "", fmt.Errorf("opening repo: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("getting HEAD: %w", err)
	}
	return head.Hash().String(), nil
}

// CreateBranch creates branchName at the current HEAD and checks it out.
// Any pre-existing local branch of the same name is deleted first, so
// every run diffs against a clean base instead of accumulating drift.
func (c *Client) CreateBranch(ctx context.Context, rc *RepoContext, branchName string) error {
	if branchName == "" {
		return errors.New("branch name cannot be empty")
	}

	repo, err := git.PlainOpen(rc.Dir)
	if err != nil {
		return fmt.Errorf("opening repo: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return fmt.Errorf("getting HEAD: %w", err)
	}

	refName := plumbing.NewBranchReferenceName(branchName)
	if _, err := repo.Reference(refName, false); err == nil {
		clog.FromContext(ctx).Debugf("Deleting stale local branch %s", branchName)
		if err := repo.Storer.RemoveReference(refName); err != nil {
			return fmt.Errorf("removing stale branch: %w", err)
		}
	}

	if err := repo.Storer.SetReference(plumbing.NewHashReference(refName, head.Hash())); err != nil {
		return fmt.Errorf("setting branch reference: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}
	if err := worktree.Checkout(&git.CheckoutOptions{Branch: refName, Force: true}); err != nil {
		return fmt.Errorf("checking out branch: %w", err)
	}
	return nil
}

// HasChanges reports whether the working tree has any modified, added,
// or deleted paths.
func (c *Client) HasChanges(rc *RepoContext) (bool, error) {
	repo, err := git.PlainOpen(rc.Dir)
	if err != nil {
		return false, fmt.Errorf("opening repo: %w", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("getting worktree: %w", err)
	}
	status, err := worktree.Status()
	if err != nil {
		return false, fmt.Errorf("getting status: %w", err)
	}
	return !status.IsClean(), nil
}

// CommitAll stages everything and commits with the client's identity.
// Returns false without error when there is nothing to commit.
func (c *Client) CommitAll(ctx context.Context, rc *RepoContext, message string) (bool, error) {
	if message == "" {
		return false, errors.New("commit message cannot be empty")
	}

	repo, err := git.PlainOpen(rc.Dir)
	if err != nil {
		return false, fmt.Errorf("opening repo: %w", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("getting worktree: %w", err)
	}

	if err := worktree.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return false, fmt.Errorf("staging changes: %w", err)
	}

	status, err := worktree.Status()
	if err != nil {
		return false, fmt.Errorf("getting status: %w", err)
	}
	if status.IsClean() {
		clog.FromContext(ctx).Info("Nothing staged, skipping commit")
		return false, nil
	}

	email := c.identity
	if !strings.Contains(email, "@") {
		email = fmt.Sprintf("%s@users.noreply.github.com", email)
	}

	if _, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  c.identity,
			Email: email,
			When:  time.Now(),
		},
		Signer: c.signer,
	}); err != nil {
		return false, fmt.Errorf("committing: %w", err)
	}
	return true, nil
}

// Push force-pushes branchName to origin with a freshly minted credential.
func (c *Client) Push(ctx context.Context, rc *RepoContext, branchName string) error {
	log := clog.FromContext(ctx)

	repo, err := git.PlainOpen(rc.Dir)
	if err != nil {
		return fmt.Errorf("opening repo: %w", err)
	}

	auth, err := c.auth()
	if err != nil {
		return fmt.Errorf("getting token: %w", err)
	}

	ref := plumbing.NewBranchReferenceName(branchName)
	refSpec := gitconfig.RefSpec(fmt.Sprintf("+%s:%s", ref, ref))
	log.Infof("Force pushing %s", refSpec)

	if err := repo.PushContext(ctx, &git.PushOptions{
		RemoteName: "origin",
		Auth:       auth,
		Force:      true,
		RefSpecs:   []gitconfig.RefSpec{refSpec},
	}); err != nil {
		if errors.Is(err, git.NoErrAlreadyUpToDate) {
			log.Info("Branch already up to date")
			return nil
		}
		return classify(fmt.Errorf("pushing: %w", err))
	}
	return nil
}

func (c *Client) auth() (*githttp.BasicAuth, error) {
	token, err := c.tokenSource.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	return &githttp.BasicAuth{
		Username: "x-access-token",
		Password: token.AccessToken,
	}, nil
}

// classify wraps remote credential failures in ErrAuthentication so
// callers can distinguish them from ordinary transient git errors.
func classify(err error) error {
	if errors.Is(err, transport.ErrAuthenticationRequired) || errors.Is(err, transport.ErrAuthorizationFailed) {
		return fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	return err
}
