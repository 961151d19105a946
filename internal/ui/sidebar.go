// Copyright (c) 2025 GPTStir Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/gptstir/stir-tui/internal/model"
	"github.com/gptstir/stir-tui/internal/ui/styles"
	"github.com/gptstir/stir-tui/internal/util"
)

type sidebarMode int

const (
	sidebarBrowse sidebarMode = iota
	sidebarRename
)

// sidebarModel renders the conversation list and owns the rename input.
type sidebarModel struct {
	theme *styles.Theme

	conversations []model.Conversation
	cursor        int
	selectedID    string

	mode        sidebarMode
	renameInput textinput.Model
	renameID    string

	width   int
	height  int
	focused bool
}

func newSidebarModel(theme *styles.Theme) sidebarModel {
	rename := textinput.New()
	rename.CharLimit = 80
	rename.Width = 24
	return sidebarModel{theme: theme, renameInput: rename}
}

// setConversations replaces the list and re-anchors cursor and highlight.
func (m *sidebarModel) setConversations(conversations []model.Conversation, selectedID string) {
	m.conversations = conversations
	m.selectedID = selectedID
	if m.cursor >= len(conversations) {
		m.cursor = len(conversations) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	for i, c := range conversations {
		if c.ID == selectedID {
			m.cursor = i
			break
		}
	}
}

func (m *sidebarModel) cursorConversation() (model.Conversation, bool) {
	if m.cursor < 0 || m.cursor >= len(m.conversations) {
		return model.Conversation{}, false
	}
	return m.conversations[m.cursor], true
}

// beginRename opens the inline rename input over the cursor row.
func (m *sidebarModel) beginRename() {
	conv, ok := m.cursorConversation()
	if !ok {
		return
	}
	m.mode = sidebarRename
	m.renameID = conv.ID
	m.renameInput.SetValue(conv.Title)
	m.renameInput.CursorEnd()
	m.renameInput.Focus()
}

// finishRename closes the rename input and returns its result. ok is false
// when the rename was cancelled.
func (m *sidebarModel) finishRename(accept bool) (id, title string, ok bool) {
	if m.mode != sidebarRename {
		return "", "", false
	}
	m.mode = sidebarBrowse
	m.renameInput.Blur()
	if !accept {
		return "", "", false
	}
	return m.renameID, strings.TrimSpace(m.renameInput.Value()), true
}

func (m *sidebarModel) moveCursor(delta int) {
	m.cursor += delta
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor >= len(m.conversations) {
		m.cursor = len(m.conversations) - 1
	}
}

func (m sidebarModel) updateRename(msg tea.Msg) (sidebarModel, tea.Cmd) {
	var cmd tea.Cmd
	m.renameInput, cmd = m.renameInput.Update(msg)
	return m, cmd
}

func (m sidebarModel) view() string {
	inner := m.width - 4 // border + padding
	if inner < 8 {
		inner = 8
	}

	var b strings.Builder
	b.WriteString(m.theme.Title.Render("Conversations"))
	b.WriteString("\n\n")

	if len(m.conversations) == 0 {
		b.WriteString(m.theme.Faint.Render("No conversations yet"))
	}

	// Three rows per conversation; keep the cursor visible in the space we
	// have below the heading.
	rowsPer := 3
	visible := (m.height - 4) / rowsPer
	if visible < 1 {
		visible = 1
	}
	start := 0
	if m.cursor >= visible {
		start = m.cursor - visible + 1
	}

	for i := start; i < len(m.conversations) && i < start+visible; i++ {
		conv := m.conversations[i]

		marker := "  "
		if i == m.cursor && m.focused {
			marker = "> "
		}

		titleStyle := m.theme.ConvTitle
		if conv.ID == m.selectedID {
			titleStyle = m.theme.ConvTitleActive
		}

		if m.mode == sidebarRename && conv.ID == m.renameID {
			b.WriteString(marker + m.renameInput.View() + "\n")
		} else {
			b.WriteString(marker + titleStyle.Render(util.TruncateWidth(conv.Title, inner-2)) + "\n")
		}
		summary := util.CollapseSpace(conv.LastMessageLabel())
		b.WriteString("  " + m.theme.ConvSummary.Render(util.TruncateWidth(summary, inner-2)) + "\n")
		b.WriteString("  " + m.theme.ConvModel.Render(util.TruncateWidth(conv.LastModelLabel(), inner-2)) + "\n")
	}

	style := m.theme.Sidebar
	if m.focused {
		style = m.theme.SidebarFocused
	}
	return style.Width(m.width - 2).Height(m.height).Render(b.String())
}
