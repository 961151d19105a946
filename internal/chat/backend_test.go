// Copyright (c) 2025 GPTStir Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/gptstir/stir-tui/internal/api"
	"github.com/gptstir/stir-tui/internal/model"
)

// fakeBackend is an in-memory stand-in for the GPTStir proxy, covering the
// conversation and chat endpoints.
type fakeBackend struct {
	mu            sync.Mutex
	conversations []model.Conversation
	histories     map[string][]api.HistoryEntry
	nextID        int

	requests   []string
	failSend   bool
	failList   bool
	listStatus int

	srv *httptest.Server
}

func newFakeBackend(t *testing.T) *fakeBackend {
	b := &fakeBackend{
		histories: make(map[string][]api.HistoryEntry),
		nextID:    1,
	}
	b.srv = httptest.NewServer(http.HandlerFunc(b.handle))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBackend) client() *api.Client {
	return api.NewClient(b.srv.URL, func() string { return "test-token" })
}

func (b *fakeBackend) requestCount(prefix string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, r := range b.requests {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

func (b *fakeBackend) setConversations(convs ...model.Conversation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations = convs
}

func (b *fakeBackend) handle(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, r.Method+" "+r.URL.Path)

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/chat/conversations":
		if b.failList {
			status := b.listStatus
			if status == 0 {
				status = http.StatusInternalServerError
			}
			w.WriteHeader(status)
			return
		}
		json.NewEncoder(w).Encode(b.conversations)

	case r.Method == http.MethodPost && r.URL.Path == "/api/chat/conversation":
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		conv := model.Conversation{ID: "c" + strconv.Itoa(b.nextID), Title: body["title"]}
		b.nextID++
		b.conversations = append([]model.Conversation{conv}, b.conversations...)
		json.NewEncoder(w).Encode(conv)

	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/api/chat/conversation/"):
		id := strings.TrimPrefix(r.URL.Path, "/api/chat/conversation/")
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		for i := range b.conversations {
			if b.conversations[i].ID == id {
				b.conversations[i].Title = body["title"]
			}
		}
		w.WriteHeader(http.StatusNoContent)

	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/api/chat/conversation/"):
		id := strings.TrimPrefix(r.URL.Path, "/api/chat/conversation/")
		kept := b.conversations[:0]
		for _, c := range b.conversations {
			if c.ID != id {
				kept = append(kept, c)
			}
		}
		b.conversations = kept
		w.WriteHeader(http.StatusNoContent)

	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/chat/conversation/"):
		id := strings.TrimPrefix(r.URL.Path, "/api/chat/conversation/")
		json.NewEncoder(w).Encode(b.histories[id])

	case r.Method == http.MethodPost && r.URL.Path == "/api/chat":
		if b.failSend {
			w.WriteHeader(http.StatusBadGateway)
			json.NewEncoder(w).Encode(map[string]string{"error": "provider down"})
			return
		}
		var req api.SendRequest
		json.NewDecoder(r.Body).Decode(&req)
		resp := api.SendResponse{Response: "reply to: " + req.Prompt}
		if req.ConversationID == "" {
			conv := model.Conversation{ID: "c" + strconv.Itoa(b.nextID), Title: req.Prompt}
			b.nextID++
			b.conversations = append([]model.Conversation{conv}, b.conversations...)
			resp.ConversationID = &conv.ID
		}
		json.NewEncoder(w).Encode(resp)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}
