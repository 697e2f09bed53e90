/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func validConfig() Config {
	return Config{
		Owner:       "sous-chefs",
		GitHubToken: "ghp_test",
		ThreadCount: 4,
		RetryCount:  3,
		LintTimeout: 300 * time.Second,
		CacheMaxAge: 168 * time.Hour,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{{
		name:   "valid token config",
		mutate: func(*Config) {},
	}, {
		name: "missing owner",
		mutate: func(c *Config) {
			c.Owner = ""
		},
		wantErr: true,
	}, {
		name: "no auth at all",
		mutate: func(c *Config) {
			c.GitHubToken = ""
		},
		wantErr: true,
	}, {
		name: "both auth modes",
		mutate: func(c *Config) {
			c.GitHubAppID = 1
			c.GitHubAppInstallationID = 2
			c.GitHubAppPrivateKey = "key.pem"
		},
		wantErr: true,
	}, {
		name: "partial app credentials",
		mutate: func(c *Config) {
			c.GitHubToken = ""
			c.GitHubAppID = 1
		},
		wantErr: true,
	}, {
		name: "complete app credentials",
		mutate: func(c *Config) {
			c.GitHubToken = ""
			c.GitHubAppID = 1
			c.GitHubAppInstallationID = 2
			c.GitHubAppPrivateKey = "key.pem"
		},
	}, {
		name: "negative thread count",
		mutate: func(c *Config) {
			c.ThreadCount = -1
		},
		wantErr: true,
	}, {
		name: "negative retry count",
		mutate: func(c *Config) {
			c.RetryCount = -1
		},
		wantErr: true,
	}, {
		name: "zero lint timeout",
		mutate: func(c *Config) {
			c.LintTimeout = 0
		},
		wantErr: true,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateResolvesDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.ThreadCount = 0
	cfg.CacheMaxAge = -time.Hour
	cfg.WorkDir = ""

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.ThreadCount != runtime.NumCPU() {
		t.Errorf("ThreadCount = %d, want NumCPU (%d)", cfg.ThreadCount, runtime.NumCPU())
	}
	if cfg.CacheMaxAge != 7*24*time.Hour {
		t.Errorf("CacheMaxAge = %v, want 7 days", cfg.CacheMaxAge)
	}
	if cfg.WorkDir == "" {
		t.Error("WorkDir not defaulted")
	}
}

func TestRepoName(t *testing.T) {
	tests := map[string]string{
		"https://github.com/sous-chefs/apache2.git": "apache2",
		"https://github.com/sous-chefs/apache2":     "apache2",
		"https://github.com/sous-chefs/apache2/":    "apache2",
		"apache2":                                   "apache2",
	}
	for url, want := range tests {
		if got := RepoName(url); got != want {
			t.Errorf("RepoName(%q) = %q, want %q", url, got, want)
		}
	}
}

func TestOverridesFilter(t *testing.T) {
	urls := []string{
		"https://github.com/org/alpha.git",
		"https://github.com/org/beta.git",
		"https://github.com/org/gamma.git",
	}

	tests := []struct {
		name      string
		overrides *Overrides
		want      []string
	}{{
		name: "nil overrides pass everything",
		want: urls,
	}, {
		name:      "exclude removes",
		overrides: &Overrides{ExcludeRepos: []string{"beta"}},
		want: []string{
			"https://github.com/org/alpha.git",
			"https://github.com/org/gamma.git",
		},
	}, {
		name:      "include keeps only listed",
		overrides: &Overrides{IncludeRepos: []string{"Alpha"}},
		want:      []string{"https://github.com/org/alpha.git"},
	}, {
		name:      "exclude wins over include",
		overrides: &Overrides{IncludeRepos: []string{"alpha"}, ExcludeRepos: []string{"alpha"}},
		want:      nil,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.overrides.Filter(urls)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Filter() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overrides.yaml")
	content := "include_repos:\n  - alpha\nexclude_repos:\n  - beta\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	o, err := LoadOverrides(path)
	if err != nil {
		t.Fatalf("LoadOverrides: %v", err)
	}
	want := &Overrides{IncludeRepos: []string{"alpha"}, ExcludeRepos: []string{"beta"}}
	if diff := cmp.Diff(want, o); diff != "" {
		t.Errorf("overrides mismatch (-want +got):\n%s", diff)
	}

	if o, err := LoadOverrides(""); err != nil || o != nil {
		t.Errorf("LoadOverrides(\"\") = %v, %v; want nil, nil", o, err)
	}

	if _, err := LoadOverrides(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for absent overrides file")
	}
}
