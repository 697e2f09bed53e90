/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Overrides narrows the discovered repository set. Exclusions always
// win; when the include list is non-empty, only listed names survive.
type Overrides struct {
	IncludeRepos []string `yaml:"include_repos"`
	ExcludeRepos []string `yaml:"exclude_repos"`
}

// LoadOverrides reads a YAML overrides file. An empty path returns nil
// overrides (no filtering).
func LoadOverrides(path string) (*Overrides, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading overrides file: %w", err)
	}

	var o Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("parsing overrides file: %w", err)
	}
	return &o, nil
}

// Filter applies the overrides to a list of clone URLs, matching on the
// repository name (the final path segment, with any .git suffix removed).
func (o *Overrides) Filter(repoURLs []string) []string {
	if o == nil {
		return repoURLs
	}

	include := map[string]bool{}
	for _, name := range o.IncludeRepos {
		include[strings.ToLower(name)] = true
	}
	exclude := map[string]bool{}
	for _, name := range o.ExcludeRepos {
		exclude[strings.ToLower(name)] = true
	}

	var out []string
	for _, url := range repoURLs {
		name := strings.ToLower(RepoName(url))
		if exclude[name] {
			continue
		}
		if len(include) > 0 && !include[name] {
			continue
		}
		out = append(out, url)
	}
	return out
}

// RepoName extracts the repository name from a clone URL.
func RepoName(repoURL string) string {
	trimmed := strings.TrimSuffix(strings.TrimSuffix(repoURL, "/"), ".git")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}
