// Copyright (c) 2025 GPTStir Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gptstir/stir-tui/internal/auth"
	"github.com/gptstir/stir-tui/internal/model"
)

// Messages produced by background commands. Each command does exactly one
// thing against the core packages and reports back here; all state reads
// for rendering go through the core packages directly.

type bootstrapDoneMsg struct {
	state auth.State
}

type loginFinishedMsg struct {
	err error
}

type sessionInvalidatedMsg struct{}

type conversationsRefreshedMsg struct {
	conversations []model.Conversation
	initial       bool
	err           error
}

type historyLoadedMsg struct {
	conversationID string
	err            error
}

type sendFinishedMsg struct {
	err error
}

type conversationCreatedMsg struct {
	conv *model.Conversation
	err  error
}

type conversationRenamedMsg struct {
	err error
}

type conversationRemovedMsg struct {
	err error
}

type clipboardResultMsg struct {
	err error
}

func (a *App) bootstrapCmd() tea.Cmd {
	return func() tea.Msg {
		// Bootstrap logs its own failures; the UI only needs the state it
		// settled in.
		_ = a.session.Bootstrap(context.Background())
		return bootstrapDoneMsg{state: a.session.State()}
	}
}

func (a *App) loginCmd(provider, credential string, oauthCode bool) tea.Cmd {
	return func() tea.Msg {
		var err error
		if oauthCode {
			err = a.session.CompleteOAuthCallback(context.Background(), provider, credential)
		} else {
			err = a.session.CompleteLogin(context.Background(), provider, credential)
		}
		return loginFinishedMsg{err: err}
	}
}

func (a *App) refreshCmd(initial bool) tea.Cmd {
	return func() tea.Msg {
		conversations, err := a.sync.Refresh(context.Background())
		return conversationsRefreshedMsg{conversations: conversations, initial: initial, err: err}
	}
}

func (a *App) loadHistoryCmd(conversationID string) tea.Cmd {
	return func() tea.Msg {
		err := a.flow.LoadHistory(context.Background(), conversationID)
		return historyLoadedMsg{conversationID: conversationID, err: err}
	}
}

func (a *App) sendCmd(prompt string, choice model.ModelChoice) tea.Cmd {
	return func() tea.Msg {
		err := a.flow.Send(context.Background(), prompt, choice.Name, choice.Type)
		return sendFinishedMsg{err: err}
	}
}

func (a *App) createConversationCmd() tea.Cmd {
	return func() tea.Msg {
		conv, err := a.sync.Create(context.Background(), model.DefaultTitle)
		return conversationCreatedMsg{conv: conv, err: err}
	}
}

func (a *App) renameConversationCmd(id, title string) tea.Cmd {
	return func() tea.Msg {
		return conversationRenamedMsg{err: a.sync.Rename(context.Background(), id, title)}
	}
}

func (a *App) removeConversationCmd(id string) tea.Cmd {
	return func() tea.Msg {
		return conversationRemovedMsg{err: a.sync.Remove(context.Background(), id)}
	}
}
