/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package cookstyle

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Report is the outcome of one lint pass over a repository. When Err is
// set, every count is zero and the descriptions are empty; callers must
// check Err before trusting the counts.
type Report struct {
	AutoCorrectable  int
	Manual           int
	Total            int
	PRDescription    string
	IssueDescription string
	Err              bool
	ErrMessage       string
}

// HasOffenses reports whether the lint pass found anything at all.
func (r Report) HasOffenses() bool {
	return r.AutoCorrectable > 0 || r.Manual > 0
}

// Summary is a one-line rendering suitable for cache entries and logs.
func (r Report) Summary() string {
	if r.Err {
		return "error: " + r.ErrMessage
	}
	return fmt.Sprintf("offenses=%d auto=%d manual=%d", r.Total, r.AutoCorrectable, r.Manual)
}

func errorReport(msg string) Report {
	return Report{Err: true, ErrMessage: msg}
}

// toolOutput mirrors the subset of Cookstyle's JSON format the runner
// consumes.
type toolOutput struct {
	Files []struct {
		Path     string    `json:"path"`
		Offenses []offense `json:"offenses"`
	} `json:"files"`
	Summary *struct {
		OffenseCount       int `json:"offense_count"`
		InspectedFileCount int `json:"inspected_file_count"`
	} `json:"summary"`
}

type offense struct {
	Severity    string `json:"severity"`
	Message     string `json:"message"`
	CopName     string `json:"cop_name"`
	Correctable bool   `json:"correctable"`
	Location    struct {
		Line   int `json:"line"`
		Column int `json:"column"`
	} `json:"location"`
}

// parseReport builds a Report from the tool's JSON stdout. Empty output,
// malformed JSON, and JSON without a summary object are all errors.
func parseReport(stdout []byte) (Report, error) {
	if len(strings.TrimSpace(string(stdout))) == 0 {
		return Report{}, errors.New("empty output")
	}

	var out toolOutput
	if err := json.Unmarshal(stdout, &out); err != nil {
		return Report{}, fmt.Errorf("malformed JSON: %w", err)
	}
	if out.Summary == nil {
		return Report{}, errors.New("output has no summary object")
	}

	var report Report
	var correctable, manual []string
	for _, file := range out.Files {
		for _, off := range file.Offenses {
			line := fmt.Sprintf("- `%s:%d` **%s**: %s", file.Path, off.Location.Line, off.CopName, off.Message)
			if off.Correctable {
				report.AutoCorrectable++
				correctable = append(correctable, line)
			} else {
				report.Manual++
				manual = append(manual, line)
			}
		}
	}
	report.Total = report.AutoCorrectable + report.Manual

	report.PRDescription = buildPRDescription(report, correctable, manual)
	report.IssueDescription = buildIssueDescription(report, manual)
	return report, nil
}

func buildPRDescription(r Report, correctable, manual []string) string {
	var b strings.Builder
	b.WriteString("## Cookstyle Report\n\n")
	fmt.Fprintf(&b, "- Total offenses: %d\n", r.Total)
	fmt.Fprintf(&b, "- Auto-corrected: %d\n", r.AutoCorrectable)
	fmt.Fprintf(&b, "- Manual review needed: %d\n", r.Manual)

	if len(correctable) > 0 {
		b.WriteString("\n### Auto-corrected offenses\n\n")
		b.WriteString(strings.Join(correctable, "\n"))
		b.WriteString("\n")
	}
	if len(manual) > 0 {
		b.WriteString("\n### Offenses requiring manual fixes\n\n")
		b.WriteString(strings.Join(manual, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}

func buildIssueDescription(r Report, manual []string) string {
	if len(manual) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Cookstyle: offenses requiring manual fixes\n\n")
	fmt.Fprintf(&b, "Cookstyle found %d offense(s) it cannot correct automatically.\n", r.Manual)
	b.WriteString("\n### Offenses\n\n")
	b.WriteString(strings.Join(manual, "\n"))
	b.WriteString("\n")
	return b.String()
}
