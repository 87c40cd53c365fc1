// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package gate

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/AleutianAI/perfgate/services/perfgate/compare"
)

// Format is a report format.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// ParseFormat parses "text", "markdown" (or "md") and "json".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", errors.Newf("unknown report format %q", s)
	}
}

// VerdictStyle decorates a verdict label. Nil leaves it unchanged.
type VerdictStyle func(v compare.Verdict, label string) string

// Row is one line of the metrics table.
type Row struct {
	Metric         string  `json:"metric"`
	Baseline       float64 `json:"baseline"`
	Current        float64 `json:"current"`
	AbsoluteChange float64 `json:"absolute_change"`
	PercentChange  float64 `json:"percent_change"`
	PercentDefined bool    `json:"percent_defined"`
}

// Rows returns the primary metric followed by the auxiliary metrics
// sorted by name. A decision without a comparison has no rows.
func Rows(d *Decision) []Row {
	if d == nil || d.Result == nil {
		return nil
	}
	primary := "mean"
	if d.Unit != "" {
		primary = "mean (" + d.Unit + ")"
	}
	rows := []Row{newRow(primary, d.Result.Primary())}

	names := make([]string, 0, len(d.Result.Auxiliary))
	for name := range d.Result.Auxiliary {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		rows = append(rows, newRow(name, d.Result.Auxiliary[name]))
	}
	return rows
}

func newRow(name string, m compare.MetricComparison) Row {
	return Row{
		Metric:         name,
		Baseline:       m.Baseline,
		Current:        m.Current,
		AbsoluteChange: m.AbsoluteChange,
		PercentChange:  m.PercentChange,
		PercentDefined: m.PercentDefined,
	}
}

// Render writes outcomes in the given format.
func Render(w io.Writer, format Format, outcomes []Outcome, style VerdictStyle) error {
	switch format {
	case FormatText:
		return RenderText(w, outcomes, style)
	case FormatMarkdown:
		return RenderMarkdown(w, outcomes)
	case FormatJSON:
		return RenderJSON(w, outcomes)
	default:
		return errors.Newf("unknown report format %q", format)
	}
}

// -----------------------------------------------------------------------------
// Text
// -----------------------------------------------------------------------------

// RenderText writes an aligned plain-text report.
func RenderText(w io.Writer, outcomes []Outcome, style VerdictStyle) error {
	if style == nil {
		style = func(_ compare.Verdict, label string) string { return label }
	}

	for i, o := range outcomes {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if o.Err != nil {
			fmt.Fprintf(w, "%s: ERROR\n  %v\n", o.Key, o.Err)
			continue
		}
		d := o.Decision
		if d == nil {
			fmt.Fprintf(w, "%s: ERROR\n  not checked\n", o.Key)
			continue
		}

		fmt.Fprintf(w, "%s: %s\n", d.Key, style(d.Verdict, verdictLabel(d.Verdict)))
		if d.Result == nil {
			fmt.Fprintln(w, "  no baseline found, run stored as the first baseline")
			continue
		}

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "  metric\tbaseline\tcurrent\tchange\tchange %\t")
		for _, r := range Rows(d) {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\t\n",
				r.Metric, formatValue(r.Baseline), formatValue(r.Current),
				formatSigned(r.AbsoluteChange), formatPercent(r))
		}
		if err := tw.Flush(); err != nil {
			return errors.Wrap(err, "write report")
		}

		res := d.Result
		fmt.Fprintf(w, "  welch: t=%s df=%.1f critical=%.3f p=%.4g alpha=%g significant=%t\n",
			formatT(res.Welch.TStatistic), res.Welch.DegreesOfFreedom, res.Welch.Critical,
			res.Welch.PValue, res.SignificanceLevel, res.IsSignificant)
		fmt.Fprintf(w, "  difference: %s [%s, %s] at %g%% confidence\n",
			formatSigned(res.MeanDifference), formatSigned(res.DifferenceInterval.Lower),
			formatSigned(res.DifferenceInterval.Upper), res.DifferenceInterval.Level*100)
		fmt.Fprintf(w, "  quality: baseline %s (n=%d, cv=%.2f%%), current %s (n=%d, cv=%.2f%%)\n",
			res.Baseline.Quality, res.Baseline.SampleCount, res.Baseline.CoefficientOfVariation*100,
			res.Current.Quality, res.Current.SampleCount, res.Current.CoefficientOfVariation*100)
		if d.BaselineUpdated {
			fmt.Fprintln(w, "  baseline updated with current run")
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Markdown
// -----------------------------------------------------------------------------

// RenderMarkdown writes a report suitable for a pull request comment.
func RenderMarkdown(w io.Writer, outcomes []Outcome) error {
	var sb strings.Builder

	sb.WriteString("# Regression Gate Report\n\n")
	if ExitCode(outcomes) == compare.ExitPass {
		sb.WriteString("**Status: PASS**\n")
	} else {
		sb.WriteString("**Status: FAIL**\n")
	}

	for _, o := range outcomes {
		sb.WriteString(fmt.Sprintf("\n## %s\n\n", o.Key))
		if o.Err != nil {
			sb.WriteString(fmt.Sprintf("**Error:** %s\n", o.Err))
			continue
		}
		d := o.Decision
		if d == nil {
			sb.WriteString("**Error:** not checked\n")
			continue
		}
		sb.WriteString(fmt.Sprintf("Verdict: **%s**\n", verdictLabel(d.Verdict)))
		sb.WriteString(fmt.Sprintf("Timestamp: %s\n\n", d.Timestamp.UTC().Format(time.RFC3339)))

		if d.Result == nil {
			sb.WriteString("*No baseline found - first run.*\n")
			continue
		}

		sb.WriteString("| Metric | Baseline | Current | Change | Change % |\n")
		sb.WriteString("|--------|----------|---------|--------|----------|\n")
		for _, r := range Rows(d) {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
				r.Metric, formatValue(r.Baseline), formatValue(r.Current),
				formatSigned(r.AbsoluteChange), formatPercent(r)))
		}

		res := d.Result
		sb.WriteString(fmt.Sprintf("\nWelch t = %s, df = %.1f, p = %.4g (alpha %g, %s)\n",
			formatT(res.Welch.TStatistic), res.Welch.DegreesOfFreedom, res.Welch.PValue,
			res.SignificanceLevel, significance(res.IsSignificant)))

		if d.BaselineUpdated {
			sb.WriteString("\n*Baseline updated with current metrics.*\n")
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// -----------------------------------------------------------------------------
// JSON
// -----------------------------------------------------------------------------

type jsonOutcome struct {
	Key      string    `json:"key"`
	ExitCode int       `json:"exit_code"`
	Error    string    `json:"error,omitempty"`
	Decision *Decision `json:"decision,omitempty"`
	Rows     []Row     `json:"rows,omitempty"`
}

type jsonReport struct {
	ExitCode int           `json:"exit_code"`
	Outcomes []jsonOutcome `json:"outcomes"`
}

// RenderJSON writes the outcomes as one JSON document.
func RenderJSON(w io.Writer, outcomes []Outcome) error {
	report := jsonReport{
		ExitCode: ExitCode(outcomes),
		Outcomes: make([]jsonOutcome, 0, len(outcomes)),
	}
	for _, o := range outcomes {
		jo := jsonOutcome{
			Key:      o.Key,
			ExitCode: o.ExitCode(),
			Decision: o.Decision,
			Rows:     Rows(o.Decision),
		}
		if o.Err != nil {
			jo.Error = o.Err.Error()
		}
		report.Outcomes = append(report.Outcomes, jo)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(report), "encode report")
}

// -----------------------------------------------------------------------------
// Formatting
// -----------------------------------------------------------------------------

func verdictLabel(v compare.Verdict) string {
	switch v {
	case compare.Regression:
		return "REGRESSION"
	case compare.Improvement:
		return "IMPROVEMENT"
	default:
		return "NO CHANGE"
	}
}

func significance(significant bool) string {
	if significant {
		return "significant"
	}
	return "not significant"
}

func formatValue(v float64) string {
	return fmt.Sprintf("%.4g", v)
}

func formatSigned(v float64) string {
	return fmt.Sprintf("%+.4g", v)
}

func formatT(t float64) string {
	if math.IsInf(t, 0) {
		if t > 0 {
			return "+inf"
		}
		return "-inf"
	}
	return fmt.Sprintf("%.3f", t)
}

func formatPercent(r Row) string {
	if !r.PercentDefined {
		return "n/a"
	}
	return fmt.Sprintf("%+.2f%%", r.PercentChange)
}
