// Copyright (c) 2025 GPTStir Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/glamour"

	"github.com/gptstir/stir-tui/internal/model"
	"github.com/gptstir/stir-tui/internal/ui/styles"
)

// chatModel renders the message log of the selected conversation.
type chatModel struct {
	theme    *styles.Theme
	viewport viewport.Model
	spinner  spinner.Model

	renderer *glamour.TermRenderer
	markdown bool

	initials string
	width    int
	height   int
}

func newChatModel(theme *styles.Theme, markdown bool) chatModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return chatModel{
		theme:    theme,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		markdown: markdown,
	}
}

func (m *chatModel) setSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height

	if m.markdown {
		wrap := width - 4
		if wrap < 20 {
			wrap = 20
		}
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(wrap),
		)
		if err == nil {
			m.renderer = renderer
		}
	}
}

// renderAssistant renders reply text, through glamour when enabled.
func (m *chatModel) renderAssistant(text string) string {
	if m.renderer != nil {
		if out, err := m.renderer.Render(text); err == nil {
			return strings.TrimRight(out, "\n")
		}
	}
	return text
}

// setMessages rebuilds the viewport content and pins it to the bottom.
func (m *chatModel) setMessages(messages []model.Message, loading, sending bool) {
	var b strings.Builder

	switch {
	case loading:
		b.WriteString(m.theme.Faint.Render("Loading..."))
	case len(messages) == 0 && !sending:
		b.WriteString(m.theme.Faint.Render("Start a new conversation"))
	}

	for i, msg := range messages {
		if i > 0 {
			b.WriteString("\n")
		}
		switch {
		case msg.IsUser:
			avatar := m.theme.Avatar.Render(m.initials)
			b.WriteString(m.theme.UserLabel.Render("You") + " " + avatar + "\n")
			b.WriteString(m.theme.UserText.Render(msg.Text) + "\n")
		case msg.IsError:
			b.WriteString(m.theme.ErrorText.Render(msg.Text) + "\n")
		default:
			label := msg.Provider().Label()
			if msg.ModelName != "" {
				label += " · " + model.FormatModelName(msg.ModelName)
			}
			b.WriteString(m.theme.AssistantLabel.Render(label) + "\n")
			b.WriteString(m.renderAssistant(msg.Text) + "\n")
		}
	}

	if sending {
		b.WriteString("\n" + m.spinner.View() + m.theme.Faint.Render(" thinking..."))
	}

	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m chatModel) view() string {
	return m.theme.ChatPane.Render(m.viewport.View())
}
