// Copyright (c) 2025 GPTStir Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat keeps the client-side conversation state: the cached
// conversation list with its selection (Sync) and the message log of the
// selected conversation (Flow). The backend owns the data; this package
// owns the mirror the UI renders.
package chat

import (
	"context"
	"strings"
	"sync"

	"github.com/gptstir/stir-tui/internal/api"
	"github.com/gptstir/stir-tui/internal/model"
)

// Sync mirrors the backend's conversation list. Every refresh replaces the
// cache wholesale in backend order; the client never merges or sorts.
type Sync struct {
	mu            sync.Mutex
	client        *api.Client
	conversations []model.Conversation

	// currentID is the selected conversation, "" meaning a new, not yet
	// persisted chat.
	currentID string
}

// NewSync creates a Sync over the given backend client.
func NewSync(client *api.Client) *Sync {
	return &Sync{client: client}
}

// Refresh replaces the cached list with the backend's. On failure the
// cache keeps its previous contents. After a successful refresh a
// selection pointing at a vanished conversation is cleared.
func (s *Sync) Refresh(ctx context.Context) ([]model.Conversation, error) {
	conversations, err := s.client.ListConversations(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = conversations
	if s.currentID != "" && !s.containsLocked(s.currentID) {
		s.currentID = ""
	}
	return s.snapshotLocked(), nil
}

// Conversations returns a copy of the cached list.
func (s *Sync) Conversations() []model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// CurrentID returns the selected conversation id, "" for a new chat.
func (s *Sync) CurrentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentID
}

// Current returns the selected conversation from the cache, if any.
func (s *Sync) Current() (model.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conversations {
		if c.ID == s.currentID {
			return c, true
		}
	}
	return model.Conversation{}, false
}

// Select sets the selected conversation. "" selects the new-chat state.
func (s *Sync) Select(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentID = id
}

// Create makes a new conversation and selects it. A blank title is a
// silent no-op that never reaches the network.
func (s *Sync) Create(ctx context.Context, title string) (*model.Conversation, error) {
	if strings.TrimSpace(title) == "" {
		return nil, nil
	}

	conv, err := s.client.CreateConversation(ctx, title)
	if err != nil {
		return nil, err
	}

	if _, err := s.Refresh(ctx); err != nil {
		return conv, err
	}
	s.Select(conv.ID)
	return conv, nil
}

// Rename retitles a conversation. A blank title is a silent no-op.
func (s *Sync) Rename(ctx context.Context, id, title string) error {
	if strings.TrimSpace(title) == "" {
		return nil
	}

	if err := s.client.RenameConversation(ctx, id, title); err != nil {
		return err
	}
	_, err := s.Refresh(ctx)
	return err
}

// Remove deletes a conversation. Deleting the selected conversation drops
// the selection back to the new-chat state.
func (s *Sync) Remove(ctx context.Context, id string) error {
	if err := s.client.DeleteConversation(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	if s.currentID == id {
		s.currentID = ""
	}
	s.mu.Unlock()

	_, err := s.Refresh(ctx)
	return err
}

// Reset drops the cache and selection. Used on logout.
func (s *Sync) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = nil
	s.currentID = ""
}

func (s *Sync) containsLocked(id string) bool {
	for _, c := range s.conversations {
		if c.ID == id {
			return true
		}
	}
	return false
}

func (s *Sync) snapshotLocked() []model.Conversation {
	out := make([]model.Conversation, len(s.conversations))
	copy(out, s.conversations)
	return out
}
