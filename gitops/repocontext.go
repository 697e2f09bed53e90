/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package gitops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RepoContext is the per-repository working set: identity, remote URL,
// and the dedicated local directory. It is owned by exactly one worker
// for the duration of processing and never shared.
type RepoContext struct {
	Owner    string
	Name     string
	CloneURL string
	Dir      string
}

// NewRepoContext derives a RepoContext from a clone URL. The working
// directory is keyed by owner and repository name under workDir, so
// concurrent workers always operate on disjoint paths.
func NewRepoContext(cloneURL, workDir string) (*RepoContext, error) {
	trimmed := strings.TrimSuffix(strings.TrimSuffix(cloneURL, "/"), ".git")
	parts := strings.Split(trimmed, "/")
	if len(parts) < 2 {
		return nil, fmt.Errorf("cannot derive owner/name from clone URL %q", cloneURL)
	}
	name := parts[len(parts)-1]
	owner := parts[len(parts)-2]
	if name == "" || owner == "" {
		return nil, fmt.Errorf("cannot derive owner/name from clone URL %q", cloneURL)
	}

	return &RepoContext{
		Owner:    owner,
		Name:     name,
		CloneURL: cloneURL,
		Dir:      filepath.Join(workDir, owner, name),
	}, nil
}

// FullName returns the owner-qualified repository name.
func (rc *RepoContext) FullName() string {
	return rc.Owner + "/" + rc.Name
}

// Cleanup removes the working directory.
func (rc *RepoContext) Cleanup() error {
	return os.RemoveAll(rc.Dir)
}
