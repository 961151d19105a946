// Copyright (c) 2025 GPTStir Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model defines the data types shared between the backend client,
// the session/conversation state machines, and the UI.
package model

// Conversation is one row of the backend's conversation list. The backend
// owns ordering (most recent first) and all fields; the client never
// fabricates or reorders rows.
type Conversation struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	LastMessage   string `json:"last_message"`
	LastModelName string `json:"last_model_name"`
}

// LastMessageLabel returns the sidebar summary line, with a placeholder for
// conversations that have no messages yet.
func (c Conversation) LastMessageLabel() string {
	if c.LastMessage == "" {
		return "No messages yet"
	}
	return c.LastMessage
}

// LastModelLabel returns the display name of the model last used in this
// conversation, with a placeholder when none was recorded.
func (c Conversation) LastModelLabel() string {
	if c.LastModelName == "" {
		return "No model used"
	}
	return FormatModelName(c.LastModelName)
}

// DefaultTitle is the title given to explicitly created conversations.
const DefaultTitle = "New Chat"
