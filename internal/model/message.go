// Copyright (c) 2025 GPTStir Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"

	"github.com/google/uuid"
)

// Message is one entry in the current conversation's message log. IDs are
// generated locally and are only unique within the session; the backend's
// history IDs are not reused because optimistic entries exist before the
// backend has seen them.
type Message struct {
	ID        string
	Text      string
	IsUser    bool
	ModelName string
	ModelType string
	IsError   bool
}

// NewUserMessage creates an optimistic user-authored entry.
func NewUserMessage(text string) Message {
	return Message{
		ID:     uuid.NewString(),
		Text:   text,
		IsUser: true,
	}
}

// NewAssistantMessage creates a model reply entry tagged with the model that
// produced it.
func NewAssistantMessage(text, modelName, modelType string) Message {
	return Message{
		ID:        uuid.NewString(),
		Text:      text,
		ModelName: modelName,
		ModelType: modelType,
	}
}

// NewErrorMessage creates an error entry shown in the log when a send fails.
func NewErrorMessage(text string) Message {
	return Message{
		ID:      uuid.NewString(),
		Text:    text,
		IsError: true,
	}
}

// Provider returns the provider classification for this message.
func (m Message) Provider() Provider {
	return Classify(m.ModelName, m.ModelType)
}

// User is the authenticated account profile returned by the backend during
// credential exchange.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Initials returns the initials of each word of the user's name, joined,
// for the chat header avatar. Falls back to "U" when the name is empty.
func (u User) Initials() string {
	fields := strings.Fields(u.Name)
	if len(fields) == 0 {
		return "U"
	}
	var b strings.Builder
	for _, f := range fields {
		for _, r := range f {
			b.WriteRune(r)
			break
		}
	}
	return b.String()
}
