// Copyright (c) 2025 GPTStir Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"regexp"
	"strings"
)

// Provider identifies which upstream provider produced a message, used only
// for display (label and color). The backend does the actual routing.
type Provider string

const (
	ProviderOpenAI   Provider = "openai"
	ProviderClaude   Provider = "claude"
	ProviderDeepSeek Provider = "deepseek"
	ProviderGrok     Provider = "grok"
	ProviderUnknown  Provider = "unknown"
)

// Label returns the human-readable provider name.
func (p Provider) Label() string {
	switch p {
	case ProviderOpenAI:
		return "OpenAI"
	case ProviderClaude:
		return "Claude"
	case ProviderDeepSeek:
		return "DeepSeek"
	case ProviderGrok:
		return "Grok"
	default:
		return "AI"
	}
}

// Classify maps a model name and declared model type to a Provider. The
// declared type wins when it names a known provider; otherwise the model
// name is matched by substring. Total over all inputs, never errors.
func Classify(modelName, modelType string) Provider {
	switch Provider(modelType) {
	case ProviderOpenAI, ProviderClaude, ProviderDeepSeek, ProviderGrok:
		return Provider(modelType)
	}

	if modelName == "" {
		return ProviderUnknown
	}

	lower := strings.ToLower(modelName)
	switch {
	case strings.Contains(lower, "gpt"):
		return ProviderOpenAI
	case strings.Contains(lower, "claude"):
		return ProviderClaude
	case strings.Contains(lower, "deepseek"):
		return ProviderDeepSeek
	case strings.Contains(lower, "grok"):
		return ProviderGrok
	default:
		return ProviderUnknown
	}
}

// Words kept as-is when prettifying a kebab-case model name. Everything
// else gets its first letter uppercased.
var plainModelWords = map[string]bool{
	"gpt": true, "3": true, "4": true, "5": true, "7": true,
	"opus": true, "sonnet": true, "latest": true, "turbo": true,
}

var versionJoinRe = regexp.MustCompile(`(\d+)\s+(\d+)`)

// FormatModelName converts a kebab-case model identifier into a display
// string, joining adjacent bare version digits with a dot
// ("claude-3-5-sonnet-latest" -> "Claude 3.5 sonnet latest").
func FormatModelName(modelName string) string {
	if modelName == "" {
		return "Unknown Model"
	}
	words := strings.Split(modelName, "-")
	for i, w := range words {
		if plainModelWords[w] || w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return versionJoinRe.ReplaceAllString(strings.Join(words, " "), "$1.$2")
}

// ModelChoice is one selectable entry of the model picker.
type ModelChoice struct {
	Name string
	Type string
}

// ModelGroup is a provider section of the model picker.
type ModelGroup struct {
	Provider string
	Models   []ModelChoice
}

// DefaultModel is the model selected before the user picks one.
var DefaultModel = ModelChoice{Name: "gpt-3.5-turbo", Type: "openai"}

// Catalog returns the selectable models grouped by provider. The list is
// fixed client-side; the backend validates whatever it receives.
func Catalog() []ModelGroup {
	return []ModelGroup{
		{Provider: "OpenAI", Models: []ModelChoice{
			{Name: "gpt-3.5-turbo", Type: "openai"},
			{Name: "gpt-4", Type: "openai"},
			{Name: "gpt-4-turbo", Type: "openai"},
		}},
		{Provider: "Anthropic", Models: []ModelChoice{
			{Name: "claude-3-opus-latest", Type: "claude"},
			{Name: "claude-3-5-sonnet-latest", Type: "claude"},
			{Name: "claude-3-7-sonnet-latest", Type: "claude"},
		}},
		{Provider: "DeepSeek", Models: []ModelChoice{
			{Name: "deepseek-chat", Type: "deepseek"},
		}},
		{Provider: "xAI", Models: []ModelChoice{
			{Name: "grok-2-1212", Type: "grok"},
		}},
	}
}

// FlatCatalog returns the catalog flattened in display order, for pickers
// that cycle rather than group.
func FlatCatalog() []ModelChoice {
	var out []ModelChoice
	for _, g := range Catalog() {
		out = append(out, g.Models...)
	}
	return out
}
