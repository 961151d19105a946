// Copyright (c) 2025 GPTStir Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/gptstir/stir-tui/internal/api"
	"github.com/gptstir/stir-tui/internal/model"
)

// SendFailureText is the error entry injected into the log when a send
// fails. The prompt itself stays in the log so the user can copy it.
const SendFailureText = "Failed to send message. Please try again."

// Flow holds the message log of the selected conversation and drives the
// send sequence: optimistic user entry, backend call, implicit
// conversation adoption, reply or error entry, list refresh.
type Flow struct {
	mu       sync.Mutex
	messages []model.Message
	loading  bool
	sending  bool

	// sendMu serializes complete send sequences so two sends can never
	// interleave their log entries or adoption of an implicit id.
	sendMu sync.Mutex

	client *api.Client
	sync   *Sync
}

// NewFlow creates a Flow bound to the conversation selection in sync.
func NewFlow(client *api.Client, sync *Sync) *Flow {
	return &Flow{client: client, sync: sync}
}

// Messages returns a copy of the current log.
func (f *Flow) Messages() []model.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Message, len(f.messages))
	copy(out, f.messages)
	return out
}

// Loading reports whether a history fetch is in progress.
func (f *Flow) Loading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loading
}

// Sending reports whether a send is in progress.
func (f *Flow) Sending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sending
}

// Reset drops the log. Used on logout.
func (f *Flow) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = nil
	f.loading = false
}

// LoadHistory replaces the log with the persisted messages of the given
// conversation. An empty id is the new-chat state: the log clears without
// touching the network. On a failed fetch the log stays empty rather than
// showing another conversation's messages.
func (f *Flow) LoadHistory(ctx context.Context, conversationID string) error {
	f.mu.Lock()
	f.messages = nil
	if conversationID == "" {
		f.loading = false
		f.mu.Unlock()
		return nil
	}
	f.loading = true
	f.mu.Unlock()

	entries, err := f.client.History(ctx, conversationID)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.loading = false
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	messages := make([]model.Message, 0, len(entries))
	for _, e := range entries {
		msg := model.Message{
			ID:        e.ID,
			Text:      e.Content,
			IsUser:    e.Role == "user",
			ModelName: e.ModelName,
			ModelType: e.ModelType,
		}
		messages = append(messages, msg)
	}
	f.messages = messages
	return nil
}

// Send submits a prompt against the selected conversation. A whitespace
// prompt is a silent no-op. The user entry appears in the log before the
// network call; on failure it stays there, followed by one error entry.
// When the backend created the conversation implicitly, its id is adopted
// as the selection before the reply is appended, so the reply lands in a
// selected conversation.
func (f *Flow) Send(ctx context.Context, prompt, modelName, modelType string) error {
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return nil
	}

	f.sendMu.Lock()
	defer f.sendMu.Unlock()

	conversationID := f.sync.CurrentID()

	f.mu.Lock()
	f.messages = append(f.messages, model.NewUserMessage(trimmed))
	f.sending = true
	f.mu.Unlock()

	resp, err := f.client.SendMessage(ctx, api.SendRequest{
		Prompt:         trimmed,
		ModelType:      modelType,
		ModelName:      modelName,
		ConversationID: conversationID,
	})

	if err != nil {
		f.mu.Lock()
		f.messages = append(f.messages, model.NewErrorMessage(SendFailureText))
		f.sending = false
		f.mu.Unlock()
		// Selection and list are untouched: a failed first message does
		// not create a conversation anywhere.
		return err
	}

	if resp.ConversationID != nil && conversationID == "" {
		f.sync.Select(*resp.ConversationID)
	}

	f.mu.Lock()
	f.messages = append(f.messages, model.NewAssistantMessage(resp.Response, modelName, modelType))
	f.sending = false
	f.mu.Unlock()

	// The send may have changed titles, summaries or created a row; the
	// reply is already visible, so a failed refresh only logs.
	if _, err := f.sync.Refresh(ctx); err != nil {
		log.Printf("chat: list refresh after send failed: %v", err)
	}
	return nil
}
