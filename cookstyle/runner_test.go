/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package cookstyle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"chainguard.dev/cookstyle-runner/gitops"
)

// fakeCommander returns canned results in sequence and records the
// arguments of every invocation.
type fakeCommander struct {
	mu      sync.Mutex
	results []Result
	errs    []error
	calls   [][]string
}

func (f *fakeCommander) Run(_ context.Context, _ string, name string, args ...string) (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, append([]string{name}, args...))
	i := len(f.calls) - 1
	var res Result
	var err error
	if i < len(f.results) {
		res = f.results[i]
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return res, err
}

func (f *fakeCommander) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// blockingCommander waits for context cancellation, simulating a hung
// linter process.
type blockingCommander struct{}

func (blockingCommander) Run(ctx context.Context, _, _ string, _ ...string) (Result, error) {
	<-ctx.Done()
	return Result{}, ctx.Err()
}

type testOffense struct {
	cop         string
	message     string
	correctable bool
}

// toolJSON renders a well-formed Cookstyle JSON document.
func toolJSON(t *testing.T, offenses ...testOffense) []byte {
	t.Helper()

	type jsonOffense struct {
		Severity    string `json:"severity"`
		Message     string `json:"message"`
		CopName     string `json:"cop_name"`
		Correctable bool   `json:"correctable"`
		Location    struct {
			Line   int `json:"line"`
			Column int `json:"column"`
		} `json:"location"`
	}
	type jsonFile struct {
		Path     string        `json:"path"`
		Offenses []jsonOffense `json:"offenses"`
	}

	file := jsonFile{Path: "recipes/default.rb", Offenses: []jsonOffense{}}
	for i, off := range offenses {
		jo := jsonOffense{
			Severity:    "convention",
			Message:     off.message,
			CopName:     off.cop,
			Correctable: off.correctable,
		}
		jo.Location.Line = i + 1
		jo.Location.Column = 1
		file.Offenses = append(file.Offenses, jo)
	}

	doc := map[string]any{
		"files": []jsonFile{file},
		"summary": map[string]int{
			"offense_count":        len(offenses),
			"inspected_file_count": 1,
		},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	return data
}

func testRepoContext() *gitops.RepoContext {
	return &gitops.RepoContext{Owner: "org", Name: "cookbook", Dir: "/tmp/cookbook"}
}

func TestRunAllCorrectable(t *testing.T) {
	out := toolJSON(t,
		testOffense{cop: "Style/A", message: "fix a", correctable: true},
		testOffense{cop: "Style/B", message: "fix b", correctable: true},
		testOffense{cop: "Style/C", message: "fix c", correctable: true},
	)
	cmd := &fakeCommander{results: []Result{
		{Stdout: out, ExitCode: 1},
		{Stdout: out, ExitCode: 0},
	}}
	r := NewRunner(time.Minute, WithCommander(cmd))

	report := r.Run(context.Background(), testRepoContext())
	if report.Err {
		t.Fatalf("unexpected error report: %s", report.ErrMessage)
	}
	if report.AutoCorrectable != 3 || report.Manual != 0 {
		t.Fatalf("counts = auto:%d manual:%d, want 3/0", report.AutoCorrectable, report.Manual)
	}
	if cmd.callCount() != 2 {
		t.Fatalf("expected 2 invocations (report + autocorrect), got %d", cmd.callCount())
	}
	if got := cmd.calls[1]; got[1] != "-a" {
		t.Fatalf("second invocation args = %v, want autocorrect mode", got)
	}
	if !strings.Contains(report.PRDescription, "Auto-corrected: 3") {
		t.Errorf("PR description missing count:\n%s", report.PRDescription)
	}
	if report.IssueDescription != "" {
		t.Errorf("expected empty issue description, got:\n%s", report.IssueDescription)
	}
}

func TestRunManualOnly(t *testing.T) {
	out := toolJSON(t,
		testOffense{cop: "Chef/Deprecations", message: "deprecated api", correctable: false},
		testOffense{cop: "Chef/Correctness", message: "wrong property", correctable: false},
	)
	cmd := &fakeCommander{results: []Result{{Stdout: out, ExitCode: 1}}}
	r := NewRunner(time.Minute, WithCommander(cmd))

	report := r.Run(context.Background(), testRepoContext())
	if report.Err {
		t.Fatalf("unexpected error report: %s", report.ErrMessage)
	}
	if report.AutoCorrectable != 0 || report.Manual != 2 {
		t.Fatalf("counts = auto:%d manual:%d, want 0/2", report.AutoCorrectable, report.Manual)
	}
	if cmd.callCount() != 1 {
		t.Fatalf("expected 1 invocation (no autocorrect), got %d", cmd.callCount())
	}
	if !strings.Contains(report.IssueDescription, "Chef/Deprecations") {
		t.Errorf("issue description missing offense:\n%s", report.IssueDescription)
	}
}

func TestRunEmptyJSONObjectIsError(t *testing.T) {
	cmd := &fakeCommander{results: []Result{{Stdout: []byte("{}"), ExitCode: 0}}}
	r := NewRunner(time.Minute, WithCommander(cmd))

	report := r.Run(context.Background(), testRepoContext())
	if !report.Err {
		t.Fatal("expected {} output to be an error, not zero offenses")
	}
	if report.AutoCorrectable != 0 || report.Manual != 0 || report.Total != 0 {
		t.Fatalf("error report must have zero counts, got %+v", report)
	}
	if report.PRDescription != "" || report.IssueDescription != "" {
		t.Fatal("error report must have empty descriptions")
	}
}

func TestRunGarbageOutputIsError(t *testing.T) {
	tests := map[string]Result{
		"empty stdout":    {Stdout: nil, ExitCode: 0},
		"non-JSON":        {Stdout: []byte("Inspecting 4 files"), ExitCode: 0},
		"unexpected exit": {Stdout: toolJSON(t), ExitCode: 2, Stderr: []byte("bundler: command not found")},
	}
	for name, res := range tests {
		t.Run(name, func(t *testing.T) {
			cmd := &fakeCommander{results: []Result{res}}
			r := NewRunner(time.Minute, WithCommander(cmd))
			if report := r.Run(context.Background(), testRepoContext()); !report.Err {
				t.Fatalf("expected error report, got %+v", report)
			}
		})
	}
}

func TestRunTimeoutIsError(t *testing.T) {
	r := NewRunner(10*time.Millisecond, WithCommander(blockingCommander{}))

	report := r.Run(context.Background(), testRepoContext())
	if !report.Err {
		t.Fatal("expected timeout to produce an error report")
	}
	if !strings.Contains(report.ErrMessage, "timed out") {
		t.Fatalf("ErrMessage = %q, want timeout mention", report.ErrMessage)
	}
}

func TestRunCleanTree(t *testing.T) {
	cmd := &fakeCommander{results: []Result{{Stdout: toolJSON(t), ExitCode: 0}}}
	r := NewRunner(time.Minute, WithCommander(cmd))

	report := r.Run(context.Background(), testRepoContext())
	if report.Err || report.HasOffenses() {
		t.Fatalf("expected clean report, got %+v", report)
	}
	if cmd.callCount() != 1 {
		t.Fatalf("expected no autocorrect pass, got %d invocations", cmd.callCount())
	}
	// No offense listing headers over empty lists.
	if strings.Contains(report.PRDescription, "###") {
		t.Errorf("clean PR description must not contain offense sections:\n%s", report.PRDescription)
	}
}

func TestCountInvariant(t *testing.T) {
	// auto + manual must equal the tool's total for any well-formed output.
	for _, n := range []int{0, 1, 5, 12} {
		for correctableEvery := 1; correctableEvery <= 3; correctableEvery++ {
			var offenses []testOffense
			for i := range n {
				offenses = append(offenses, testOffense{
					cop:         fmt.Sprintf("Style/Cop%d", i),
					message:     "m",
					correctable: i%correctableEvery == 0,
				})
			}

			report, err := parseReport(toolJSON(t, offenses...))
			if err != nil {
				t.Fatalf("parseReport: %v", err)
			}
			if report.AutoCorrectable+report.Manual != n {
				t.Fatalf("auto(%d)+manual(%d) != total(%d)", report.AutoCorrectable, report.Manual, n)
			}
			if report.Total != n {
				t.Fatalf("Total = %d, want %d", report.Total, n)
			}
		}
	}
}

func TestAutocorrectFailureKeepsFirstRunCounts(t *testing.T) {
	out := toolJSON(t, testOffense{cop: "Style/A", message: "fix a", correctable: true})
	cmd := &fakeCommander{results: []Result{
		{Stdout: out, ExitCode: 1},
		{Stdout: nil, ExitCode: 2, Stderr: []byte("boom")},
	}}
	r := NewRunner(time.Minute, WithCommander(cmd))

	report := r.Run(context.Background(), testRepoContext())
	if report.Err {
		t.Fatalf("autocorrect failure must not override the report of record: %+v", report)
	}
	if report.AutoCorrectable != 1 {
		t.Fatalf("AutoCorrectable = %d, want 1", report.AutoCorrectable)
	}
}
