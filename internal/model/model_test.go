// Copyright (c) 2025 GPTStir Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		modelName string
		modelType string
		want      Provider
	}{
		{"explicit type wins", "weird-model", "claude", ProviderClaude},
		{"explicit type wins over name", "gpt-4", "grok", ProviderGrok},
		{"invalid type falls back to name", "gpt-4", "azure", ProviderOpenAI},
		{"gpt substring", "gpt-3.5-turbo", "", ProviderOpenAI},
		{"claude substring", "claude-3-opus-latest", "", ProviderClaude},
		{"deepseek substring", "deepseek-chat", "", ProviderDeepSeek},
		{"grok substring", "grok-2-1212", "", ProviderGrok},
		{"case insensitive", "GPT-4", "", ProviderOpenAI},
		{"unrecognized", "mistral-large", "", ProviderUnknown},
		{"both empty", "", "", ProviderUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.modelName, tt.modelType); got != tt.want {
				t.Errorf("Classify(%q, %q) = %v, want %v", tt.modelName, tt.modelType, got, tt.want)
			}
		})
	}
}

func TestFormatModelName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "Unknown Model"},
		{"gpt-4", "gpt 4"},
		{"gpt-4-turbo", "gpt 4 turbo"},
		{"gpt-3.5-turbo", "gpt 3.5 turbo"},
		{"claude-3-5-sonnet-latest", "Claude 3.5 sonnet latest"},
		{"claude-3-opus-latest", "Claude 3 opus latest"},
		{"deepseek-chat", "Deepseek Chat"},
		{"grok-2-1212", "Grok 2.1212"},
	}
	for _, tt := range tests {
		if got := FormatModelName(tt.in); got != tt.want {
			t.Errorf("FormatModelName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConversationLabels(t *testing.T) {
	empty := Conversation{ID: "c1", Title: "New Chat"}
	if got := empty.LastMessageLabel(); got != "No messages yet" {
		t.Errorf("LastMessageLabel = %q", got)
	}
	if got := empty.LastModelLabel(); got != "No model used" {
		t.Errorf("LastModelLabel = %q", got)
	}

	full := Conversation{ID: "c2", LastMessage: "hi", LastModelName: "gpt-4"}
	if got := full.LastMessageLabel(); got != "hi" {
		t.Errorf("LastMessageLabel = %q", got)
	}
	if got := full.LastModelLabel(); got != "gpt 4" {
		t.Errorf("LastModelLabel = %q", got)
	}
}

func TestMessageConstructors(t *testing.T) {
	u := NewUserMessage("hello")
	if !u.IsUser || u.IsError || u.Text != "hello" || u.ID == "" {
		t.Errorf("NewUserMessage = %+v", u)
	}

	a := NewAssistantMessage("hi there", "gpt-4", "openai")
	if a.IsUser || a.IsError || a.ModelName != "gpt-4" || a.ModelType != "openai" {
		t.Errorf("NewAssistantMessage = %+v", a)
	}
	if a.Provider() != ProviderOpenAI {
		t.Errorf("Provider = %v", a.Provider())
	}

	e := NewErrorMessage("boom")
	if !e.IsError || e.IsUser {
		t.Errorf("NewErrorMessage = %+v", e)
	}

	if u.ID == a.ID || a.ID == e.ID {
		t.Error("message IDs must be unique")
	}
}

func TestUserInitials(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Ada Lovelace", "AL"},
		{"Prince", "P"},
		{"John Ronald Reuel Tolkien", "JRRT"},
		{"", "U"},
		{"   ", "U"},
	}
	for _, tt := range tests {
		u := User{Name: tt.name}
		if got := u.Initials(); got != tt.want {
			t.Errorf("Initials(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestCatalog(t *testing.T) {
	flat := FlatCatalog()
	if len(flat) != 8 {
		t.Fatalf("expected 8 models, got %d", len(flat))
	}
	if flat[0] != DefaultModel {
		t.Errorf("first model %+v, want default %+v", flat[0], DefaultModel)
	}
	for _, m := range flat {
		if Classify(m.Name, m.Type) == ProviderUnknown {
			t.Errorf("catalog model %q classifies as unknown", m.Name)
		}
	}
}
