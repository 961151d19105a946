// Copyright (c) 2025 GPTStir Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui implements the bubbletea terminal interface: a login screen,
// the conversation sidebar, and the chat pane. All conversation and
// session state lives in the core packages; the UI renders snapshots and
// issues commands.
package ui

import (
	"errors"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gptstir/stir-tui/internal/api"
	"github.com/gptstir/stir-tui/internal/auth"
	"github.com/gptstir/stir-tui/internal/chat"
	"github.com/gptstir/stir-tui/internal/config"
	"github.com/gptstir/stir-tui/internal/model"
	"github.com/gptstir/stir-tui/internal/ui/styles"
)

type view int

const (
	viewLoading view = iota
	viewLogin
	viewMain
)

type focusArea int

const (
	focusInput focusArea = iota
	focusSidebar
)

const sidebarWidth = 34

// App is the bubbletea root model.
type App struct {
	cfg     *config.Config
	session *auth.Session
	sync    *chat.Sync
	flow    *chat.Flow
	theme   *styles.Theme

	view     view
	login    loginModel
	sidebar  sidebarModel
	chatPane chatModel
	input    textinput.Model
	focus    focusArea

	models   []model.ModelChoice
	modelIdx int

	width   int
	height  int
	status  string
	sending bool
}

// New assembles the App over the core components.
func New(cfg *config.Config, session *auth.Session, sync *chat.Sync, flow *chat.Flow) *App {
	theme := styles.New()

	input := textinput.New()
	input.Placeholder = "Type your message..."
	input.CharLimit = 4000
	input.Focus()

	models := model.FlatCatalog()
	modelIdx := 0
	for i, m := range models {
		if m.Name == cfg.UI.DefaultModelName {
			modelIdx = i
			break
		}
	}

	return &App{
		cfg:      cfg,
		session:  session,
		sync:     sync,
		flow:     flow,
		theme:    theme,
		view:     viewLoading,
		login:    newLoginModel(theme),
		sidebar:  newSidebarModel(theme),
		chatPane: newChatModel(theme, cfg.UI.Markdown),
		input:    input,
		models:   models,
		modelIdx: modelIdx,
	}
}

func (a *App) currentModel() model.ModelChoice {
	return a.models[a.modelIdx]
}

// Init starts the session bootstrap.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.chatPane.spinner.Tick, a.bootstrapCmd())
}

// Update is the bubbletea message loop.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.layout()
		a.refreshChatPane()
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.chatPane.spinner, cmd = a.chatPane.spinner.Update(msg)
		if a.sending {
			a.refreshChatPane()
		}
		return a, cmd

	case bootstrapDoneMsg:
		if msg.state == auth.StateAuthenticated {
			return a, a.enterMain()
		}
		a.view = viewLogin
		return a, nil

	case loginFinishedMsg:
		a.login.submitting = false
		if msg.err != nil {
			a.login.errText = loginErrorText(msg.err)
			return a, nil
		}
		a.login.errText = ""
		a.login.credential.SetValue("")
		return a, a.enterMain()

	case conversationsRefreshedMsg:
		if msg.err != nil {
			a.status = "Failed to load conversations"
		}
		a.sidebar.setConversations(a.sync.Conversations(), a.sync.CurrentID())
		if msg.initial && len(msg.conversations) > 0 {
			// First load after sign-in: open the most recent conversation.
			a.sync.Select(msg.conversations[0].ID)
			a.sidebar.setConversations(msg.conversations, msg.conversations[0].ID)
			return a, a.loadHistoryCmd(msg.conversations[0].ID)
		}
		return a, a.checkSession()

	case historyLoadedMsg:
		if msg.err != nil {
			a.status = "Failed to load conversation"
		}
		a.refreshChatPane()
		return a, a.checkSession()

	case sendFinishedMsg:
		a.sending = false
		if msg.err != nil {
			a.status = sendErrorText(msg.err)
		}
		a.sidebar.setConversations(a.sync.Conversations(), a.sync.CurrentID())
		a.refreshChatPane()
		return a, a.checkSession()

	case conversationCreatedMsg:
		if msg.err != nil {
			a.status = "Failed to create conversation"
			return a, a.checkSession()
		}
		a.sidebar.setConversations(a.sync.Conversations(), a.sync.CurrentID())
		if msg.conv != nil {
			return a, a.loadHistoryCmd(msg.conv.ID)
		}
		return a, nil

	case conversationRenamedMsg:
		if msg.err != nil {
			a.status = "Failed to rename conversation"
		}
		a.sidebar.setConversations(a.sync.Conversations(), a.sync.CurrentID())
		return a, a.checkSession()

	case conversationRemovedMsg:
		if msg.err != nil {
			a.status = "Failed to delete conversation"
		}
		a.sidebar.setConversations(a.sync.Conversations(), a.sync.CurrentID())
		// Selection may have dropped back to the new-chat state.
		return a, tea.Batch(a.loadHistoryCmd(a.sync.CurrentID()), a.checkSession())

	case clipboardResultMsg:
		if msg.err != nil {
			a.status = "Copy failed"
		} else {
			a.status = "Reply copied"
		}
		return a, nil

	case sessionInvalidatedMsg:
		a.toLogin("Session expired, please sign in again")
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.MouseMsg:
		if a.view == viewMain {
			var cmd tea.Cmd
			a.chatPane.viewport, cmd = a.chatPane.viewport.Update(msg)
			return a, cmd
		}
		return a, nil
	}

	return a, nil
}

// checkSession drops to the login screen when a background command hit a
// 401 and the session invalidated itself.
func (a *App) checkSession() tea.Cmd {
	if a.view == viewMain && a.session.State() != auth.StateAuthenticated {
		return func() tea.Msg { return sessionInvalidatedMsg{} }
	}
	return nil
}

func (a *App) enterMain() tea.Cmd {
	a.view = viewMain
	a.focus = focusInput
	a.input.Focus()
	a.chatPane.initials = a.session.User().Initials()
	a.layout()
	a.refreshChatPane()
	return a.refreshCmd(true)
}

func (a *App) toLogin(status string) {
	a.session.Logout()
	a.sync.Reset()
	a.flow.Reset()
	a.sending = false
	a.view = viewLogin
	a.login.errText = status
	a.status = ""
	a.sidebar.setConversations(nil, "")
	a.refreshChatPane()
}

func (a *App) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.String() == "ctrl+c" {
		return a, tea.Quit
	}

	switch a.view {
	case viewLoading:
		return a, nil
	case viewLogin:
		return a.handleLoginKey(key)
	default:
		return a.handleMainKey(key)
	}
}

func (a *App) handleLoginKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.String() == "enter" && !a.login.submitting {
		credential := strings.TrimSpace(a.login.credential.Value())
		if credential == "" {
			a.login.errText = "Credential must not be empty"
			return a, nil
		}
		a.login.submitting = true
		a.login.errText = ""
		return a, a.loginCmd(a.login.providerName(), credential, a.login.codeMode)
	}

	var cmd tea.Cmd
	a.login, cmd = a.login.update(key)
	return a, cmd
}

func (a *App) handleMainKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Rename input swallows everything except its terminators.
	if a.sidebar.mode == sidebarRename {
		switch key.String() {
		case "enter":
			id, title, ok := a.sidebar.finishRename(true)
			if ok && title != "" {
				return a, a.renameConversationCmd(id, title)
			}
			return a, nil
		case "esc":
			a.sidebar.finishRename(false)
			return a, nil
		default:
			var cmd tea.Cmd
			a.sidebar, cmd = a.sidebar.updateRename(key)
			return a, cmd
		}
	}

	switch key.String() {
	case "tab":
		if a.focus == focusInput {
			a.focus = focusSidebar
			a.input.Blur()
			a.sidebar.focused = true
		} else {
			a.focus = focusInput
			a.sidebar.focused = false
			a.input.Focus()
		}
		return a, nil

	case "ctrl+p":
		a.modelIdx = (a.modelIdx + 1) % len(a.models)
		return a, nil

	case "ctrl+y":
		return a, a.copyLastReplyCmd()

	case "ctrl+n":
		return a, a.createConversationCmd()

	case "ctrl+l":
		a.toLogin("")
		return a, nil

	case "pgup", "pgdown":
		var cmd tea.Cmd
		a.chatPane.viewport, cmd = a.chatPane.viewport.Update(key)
		return a, cmd
	}

	if a.focus == focusSidebar {
		return a.handleSidebarKey(key)
	}
	return a.handleInputKey(key)
}

func (a *App) handleSidebarKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "up", "k":
		a.sidebar.moveCursor(-1)
		return a, nil
	case "down", "j":
		a.sidebar.moveCursor(1)
		return a, nil
	case "enter":
		conv, ok := a.sidebar.cursorConversation()
		if !ok {
			return a, nil
		}
		a.sync.Select(conv.ID)
		a.sidebar.selectedID = conv.ID
		return a, a.loadHistoryCmd(conv.ID)
	case "n":
		return a, a.createConversationCmd()
	case "r":
		a.sidebar.beginRename()
		return a, nil
	case "d":
		conv, ok := a.sidebar.cursorConversation()
		if !ok {
			return a, nil
		}
		return a, a.removeConversationCmd(conv.ID)
	case "esc":
		a.focus = focusInput
		a.sidebar.focused = false
		a.input.Focus()
		return a, nil
	}
	return a, nil
}

func (a *App) handleInputKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.String() == "enter" {
		if a.sending {
			return a, nil
		}
		prompt := a.input.Value()
		if strings.TrimSpace(prompt) == "" {
			return a, nil
		}
		a.input.SetValue("")
		a.sending = true
		a.status = ""
		cmd := a.sendCmd(prompt, a.currentModel())
		// Show the optimistic entry on the next frame even though Send
		// appends it from the command goroutine.
		return a, tea.Batch(cmd, a.chatPane.spinner.Tick)
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(key)
	return a, cmd
}

// copyLastReplyCmd copies the most recent assistant reply to the system
// clipboard.
func (a *App) copyLastReplyCmd() tea.Cmd {
	messages := a.flow.Messages()
	for i := len(messages) - 1; i >= 0; i-- {
		if !messages[i].IsUser && !messages[i].IsError {
			text := messages[i].Text
			return func() tea.Msg {
				return clipboardResultMsg{err: clipboard.WriteAll(text)}
			}
		}
	}
	return nil
}

func (a *App) layout() {
	chatWidth := a.width - sidebarWidth
	if chatWidth < 20 {
		chatWidth = 20
	}
	// Input box (3 rows) and status bar (1 row) sit under the chat pane.
	paneHeight := a.height - 5
	if paneHeight < 3 {
		paneHeight = 3
	}
	a.sidebar.width = sidebarWidth
	a.sidebar.height = paneHeight
	a.chatPane.setSize(chatWidth-2, paneHeight)
	a.input.Width = chatWidth - 8
}

func (a *App) refreshChatPane() {
	a.chatPane.setMessages(a.flow.Messages(), a.flow.Loading(), a.sending)
}

// View renders the active screen.
func (a *App) View() string {
	switch a.view {
	case viewLoading:
		return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center,
			a.theme.Faint.Render("Verifying session..."))
	case viewLogin:
		return a.login.view(a.width, a.height)
	}

	inputStyle := a.theme.InputBox
	if a.focus == focusInput {
		inputStyle = a.theme.InputBoxFocused
	}
	chatWidth := a.width - sidebarWidth
	if chatWidth < 20 {
		chatWidth = 20
	}

	right := lipgloss.JoinVertical(lipgloss.Left,
		a.chatPane.view(),
		inputStyle.Width(chatWidth-2).Render(a.input.View()),
	)
	main := lipgloss.JoinHorizontal(lipgloss.Top, a.sidebar.view(), right)
	return lipgloss.JoinVertical(lipgloss.Left, main, a.statusLine())
}

func (a *App) statusLine() string {
	left := a.theme.ModelTag.Render(model.FormatModelName(a.currentModel().Name))
	help := a.theme.StatusBar.Render(
		"  tab: focus  ctrl+p: model  ctrl+n: new  ctrl+y: copy  ctrl+l: sign out  ctrl+c: quit")
	line := left + help
	if a.status != "" {
		line += "  " + a.theme.Error.Render(a.status)
	}
	return line
}

// loginErrorText maps login failures to what the login screen shows.
func loginErrorText(err error) string {
	switch {
	case errors.Is(err, auth.ErrLoginInFlight):
		return "A sign-in attempt is already running"
	case errors.Is(err, auth.ErrLoginThrottled):
		return "Too many attempts, wait a moment"
	case errors.Is(err, auth.ErrLoginTimeout):
		return "Sign-in timed out, try again"
	case errors.Is(err, api.ErrAuthInvalid):
		return "Sign-in was rejected"
	default:
		return "Sign-in failed, check your connection"
	}
}

func sendErrorText(err error) string {
	if errors.Is(err, api.ErrThrottled) {
		return "Sending too fast, slow down"
	}
	return "Message failed to send"
}
