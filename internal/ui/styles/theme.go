// Copyright (c) 2025 GPTStir Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the lipgloss styling for the stir-tui views.
package styles

import "github.com/charmbracelet/lipgloss"

// Palette colors. Dark-terminal first, adaptive where it matters.
var (
	colorAccent  = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7D79F6"}
	colorSubtle  = lipgloss.AdaptiveColor{Light: "#6C6C6C", Dark: "#8A8A8A"}
	colorError   = lipgloss.AdaptiveColor{Light: "#C73E3E", Dark: "#FF6B6B"}
	colorUser    = lipgloss.AdaptiveColor{Light: "#2B6CB0", Dark: "#6CB2EB"}
	colorBorder  = lipgloss.AdaptiveColor{Light: "#D0D0D0", Dark: "#3A3A3A"}
	colorFocused = colorAccent
)

// Theme holds the styled components shared by the views.
type Theme struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Faint    lipgloss.Style
	Error    lipgloss.Style

	// Sidebar
	Sidebar          lipgloss.Style
	SidebarFocused   lipgloss.Style
	ConvTitle        lipgloss.Style
	ConvTitleActive  lipgloss.Style
	ConvSummary      lipgloss.Style
	ConvModel        lipgloss.Style

	// Chat pane
	ChatPane       lipgloss.Style
	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	UserText       lipgloss.Style
	ErrorText      lipgloss.Style
	Avatar         lipgloss.Style

	// Input / status
	InputBox        lipgloss.Style
	InputBoxFocused lipgloss.Style
	StatusBar       lipgloss.Style
	StatusKey       lipgloss.Style
	ModelTag        lipgloss.Style
}

// New builds the default theme.
func New() *Theme {
	border := lipgloss.RoundedBorder()
	return &Theme{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(colorAccent),
		Subtitle: lipgloss.NewStyle().Foreground(colorSubtle),
		Faint:    lipgloss.NewStyle().Foreground(colorSubtle),
		Error:    lipgloss.NewStyle().Foreground(colorError),

		Sidebar:         lipgloss.NewStyle().Border(border).BorderForeground(colorBorder).Padding(0, 1),
		SidebarFocused:  lipgloss.NewStyle().Border(border).BorderForeground(colorFocused).Padding(0, 1),
		ConvTitle:       lipgloss.NewStyle(),
		ConvTitleActive: lipgloss.NewStyle().Bold(true).Foreground(colorAccent),
		ConvSummary:     lipgloss.NewStyle().Foreground(colorSubtle),
		ConvModel:       lipgloss.NewStyle().Foreground(colorSubtle).Italic(true),

		ChatPane:       lipgloss.NewStyle().Padding(0, 1),
		UserLabel:      lipgloss.NewStyle().Bold(true).Foreground(colorUser),
		AssistantLabel: lipgloss.NewStyle().Bold(true).Foreground(colorAccent),
		UserText:       lipgloss.NewStyle().Foreground(colorUser),
		ErrorText:      lipgloss.NewStyle().Foreground(colorError),
		Avatar:         lipgloss.NewStyle().Bold(true).Reverse(true).Padding(0, 1),

		InputBox:        lipgloss.NewStyle().Border(border).BorderForeground(colorBorder).Padding(0, 1),
		InputBoxFocused: lipgloss.NewStyle().Border(border).BorderForeground(colorFocused).Padding(0, 1),
		StatusBar:       lipgloss.NewStyle().Foreground(colorSubtle),
		StatusKey:       lipgloss.NewStyle().Bold(true),
		ModelTag:        lipgloss.NewStyle().Foreground(colorAccent),
	}
}
