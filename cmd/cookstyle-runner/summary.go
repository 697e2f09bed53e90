/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"chainguard.dev/cookstyle-runner/cache"
	"chainguard.dev/cookstyle-runner/scheduler"
)

// printSummary renders the batch tally and cache statistics as a
// markdown table.
func printSummary(w io.Writer, agg scheduler.AggregateResult, stats cache.Stats) {
	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Header: tw.CellConfig{
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
				Formatting: tw.CellFormatting{AutoFormat: tw.Off},
			},
			Row: tw.CellConfig{
				Alignment: tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithHeader([]string{"Metric", "Value"}),
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithRendition(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleMarkdown),
		}),
	)

	rows := [][]string{
		{"Repositories processed", fmt.Sprintf("%d", agg.Total)},
		{"Clean", fmt.Sprintf("%d", agg.NoIssues)},
		{"Issues found", fmt.Sprintf("%d", agg.IssuesFound)},
		{"Skipped (cache)", fmt.Sprintf("%d", agg.Skipped)},
		{"Errors", fmt.Sprintf("%d", agg.Errors)},
		{"PRs created", fmt.Sprintf("%d", agg.PRsCreated)},
		{"Tracking issues created", fmt.Sprintf("%d", agg.IssuesCreated)},
		{"Artifact API failures", fmt.Sprintf("%d", agg.ArtifactErrors)},
		{"Elapsed", agg.Elapsed.Round(time.Millisecond).String()},
		{"Cache hits", fmt.Sprintf("%d", stats.Hits)},
		{"Cache misses", fmt.Sprintf("%d", stats.Misses)},
		{"Cache hit rate", fmt.Sprintf("%.1f%%", stats.HitRate()*100)},
		{"Time saved by cache", stats.TimeSaved.Round(time.Second).String()},
	}
	for _, row := range rows {
		_ = table.Append(row)
	}
	_ = table.Render()
}
