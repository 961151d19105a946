// Copyright (c) 2025 GPTStir Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gptstir/stir-tui/internal/ui/styles"
)

// loginModel is the credential entry screen. The credential is an opaque
// string handed to the backend: a provider ID token by default, or an
// OAuth authorization code when the user toggles code mode.
type loginModel struct {
	theme *styles.Theme

	provider   textinput.Model
	credential textinput.Model
	focusCred  bool
	codeMode   bool

	submitting bool
	errText    string
}

func newLoginModel(theme *styles.Theme) loginModel {
	provider := textinput.New()
	provider.Placeholder = "google"
	provider.CharLimit = 32
	provider.Width = 24

	credential := textinput.New()
	credential.Placeholder = "paste your sign-in credential"
	credential.EchoMode = textinput.EchoPassword
	credential.EchoCharacter = '*'
	credential.Width = 48
	credential.Focus()

	return loginModel{
		theme:      theme,
		provider:   provider,
		credential: credential,
		focusCred:  true,
	}
}

func (m loginModel) providerName() string {
	p := strings.TrimSpace(m.provider.Value())
	if p == "" {
		return "google"
	}
	return strings.ToLower(p)
}

func (m loginModel) update(msg tea.Msg) (loginModel, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && !m.submitting {
		switch key.String() {
		case "tab", "shift+tab":
			m.focusCred = !m.focusCred
			if m.focusCred {
				m.provider.Blur()
				m.credential.Focus()
			} else {
				m.credential.Blur()
				m.provider.Focus()
			}
			return m, nil
		case "f2":
			m.codeMode = !m.codeMode
			if m.codeMode {
				m.credential.Placeholder = "paste the authorization code"
			} else {
				m.credential.Placeholder = "paste your sign-in credential"
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	if m.focusCred {
		m.credential, cmd = m.credential.Update(msg)
	} else {
		m.provider, cmd = m.provider.Update(msg)
	}
	return m, cmd
}

func (m loginModel) view(width, height int) string {
	title := m.theme.Title.Render("GPTStir")
	subtitle := m.theme.Subtitle.Render("Sign in to continue")

	mode := "credential"
	if m.codeMode {
		mode = "authorization code"
	}

	var status string
	switch {
	case m.submitting:
		status = m.theme.Faint.Render("Signing in...")
	case m.errText != "":
		status = m.theme.Error.Render(m.errText)
	default:
		status = m.theme.Faint.Render("enter: sign in  tab: switch field  f2: mode (" + mode + ")")
	}

	form := lipgloss.JoinVertical(lipgloss.Left,
		title,
		subtitle,
		"",
		m.theme.Faint.Render("Provider"),
		m.provider.View(),
		"",
		m.theme.Faint.Render("Credential"),
		m.credential.View(),
		"",
		status,
	)

	box := m.theme.InputBoxFocused.Render(form)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}
