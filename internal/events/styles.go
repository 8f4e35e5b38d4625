// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package events

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// =============================================================================
// SHARED STYLES
// =============================================================================

// Styles is the palette for human readable output. Every style is bound to
// one renderer, so output written to a pipe stays plain while a terminal
// gets colors.
type Styles struct {
	Title   lipgloss.Style
	Section lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Path    lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Dim     lipgloss.Style

	profile termenv.Profile
}

// NewStyles returns the palette rendered for w with color profile p.
func NewStyles(w io.Writer, p termenv.Profile) Styles {
	r := lipgloss.NewRenderer(w)
	r.SetColorProfile(p)

	return Styles{
		Title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")), // Cyan
		Section: r.NewStyle().Bold(true).Foreground(lipgloss.Color("255")),
		Label:   r.NewStyle().Foreground(lipgloss.Color("245")),
		Value:   r.NewStyle().Foreground(lipgloss.Color("252")),
		Path:    r.NewStyle().Bold(true),
		Success: r.NewStyle().Bold(true).Foreground(lipgloss.Color("42")), // Green
		Error:   r.NewStyle().Foreground(lipgloss.Color("196")),           // Red
		Warning: r.NewStyle().Foreground(lipgloss.Color("214")),           // Orange
		Dim:     r.NewStyle().Faint(true).Foreground(lipgloss.Color("242")),

		profile: p,
	}
}

// Plain reports whether the styles render without escape codes.
func (s Styles) Plain() bool {
	return s.profile == termenv.Ascii
}
