// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux provides terminal output styling for the perfgate CLI.
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Palette - deep ocean teals and arctic waters
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7")
	ColorTealPrimary = lipgloss.Color("#20B9B4")
	ColorSlate       = lipgloss.Color("#2C4A54")

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
	ColorMuted   = lipgloss.Color("#2C4A54")
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title   lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Bold:    lipgloss.NewStyle().Bold(true),
	Muted:   lipgloss.NewStyle().Foreground(ColorSlate),
	Success: lipgloss.NewStyle().Bold(true).Foreground(ColorSuccess),
	Warning: lipgloss.NewStyle().Bold(true).Foreground(ColorWarning),
	Error:   lipgloss.NewStyle().Bold(true).Foreground(ColorError),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconArrow   Icon = "→"
)

// Mode selects how output is decorated.
type Mode int

const (
	// ModePlain writes text unchanged. Used for pipes and files.
	ModePlain Mode = iota

	// ModeColor applies lipgloss styles and icons.
	ModeColor
)

// Styler decorates text for one output stream.
//
// Thread Safety: Immutable; safe for concurrent use.
type Styler struct {
	mode Mode
}

// NewStyler returns a Styler for w. Color is used only when w is a
// terminal and noColor is false.
func NewStyler(w io.Writer, noColor bool) *Styler {
	if !noColor && IsTerminal(w) {
		return &Styler{mode: ModeColor}
	}
	return &Styler{mode: ModePlain}
}

// NewStylerMode returns a Styler fixed to mode.
func NewStylerMode(mode Mode) *Styler {
	return &Styler{mode: mode}
}

// Mode returns the styler's mode.
func (s *Styler) Mode() Mode {
	return s.mode
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (s *Styler) render(style lipgloss.Style, text string) string {
	if s == nil || s.mode == ModePlain {
		return text
	}
	return style.Render(text)
}

// Title styles a heading.
func (s *Styler) Title(text string) string { return s.render(Styles.Title, text) }

// Bold styles emphasised text.
func (s *Styler) Bold(text string) string { return s.render(Styles.Bold, text) }

// Muted styles secondary text.
func (s *Styler) Muted(text string) string { return s.render(Styles.Muted, text) }

// Success styles a passing status with a check mark.
func (s *Styler) Success(text string) string { return s.status(IconSuccess, Styles.Success, text) }

// Warning styles a neutral status with a warning sign.
func (s *Styler) Warning(text string) string { return s.status(IconWarning, Styles.Warning, text) }

// Error styles a failing status with a cross.
func (s *Styler) Error(text string) string { return s.status(IconError, Styles.Error, text) }

func (s *Styler) status(icon Icon, style lipgloss.Style, text string) string {
	if s == nil || s.mode == ModePlain {
		return text
	}
	return style.Render(string(icon) + " " + text)
}

// Errorf writes an error line to w, as "error: ..." in plain mode.
func (s *Styler) Errorf(w io.Writer, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if s == nil || s.mode == ModePlain {
		fmt.Fprintf(w, "error: %s\n", msg)
		return
	}
	fmt.Fprintln(w, s.Error(msg))
}

// Rule returns a horizontal separator of width characters.
func (s *Styler) Rule(width int) string {
	if width <= 0 {
		return ""
	}
	return s.Muted(strings.Repeat("─", width))
}
