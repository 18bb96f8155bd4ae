package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/calbers/twinchat/internal/llm"
	"github.com/calbers/twinchat/internal/storage"
)

// stubAgent echoes the user message back and appends it to history.
type stubAgent struct {
	err   error
	calls int
	// lastHistory is the history the agent received on its last call.
	lastHistory []llm.Message
}

func (s *stubAgent) HandleTurn(_ context.Context, history []llm.Message, userMessage string) ([]llm.Message, string, error) {
	s.calls++
	s.lastHistory = append([]llm.Message(nil), history...)
	if s.err != nil {
		return history, "", s.err
	}
	if len(history) == 0 {
		history = []llm.Message{{Role: llm.RoleSystem, Content: "sys"}}
	}
	reply := "echo: " + userMessage
	history = append(history,
		llm.Message{Role: llm.RoleUser, Content: userMessage},
		llm.Message{Role: llm.RoleAssistant, Content: reply},
	)
	return history, reply, nil
}

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func postChat(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestChatNewSession(t *testing.T) {
	agent := &stubAgent{}
	h := NewHandler(agent, nil, "")

	rec := postChat(t, h, `{"message":"hello"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.SessionID == "" {
		t.Error("expected a minted session id")
	}
	if resp.Reply != "echo: hello" {
		t.Errorf("reply = %q", resp.Reply)
	}
	if len(agent.lastHistory) != 0 {
		t.Errorf("new session should start with empty history, got %d messages", len(agent.lastHistory))
	}
}

func TestChatContinuesSession(t *testing.T) {
	agent := &stubAgent{}
	h := NewHandler(agent, nil, "")

	rec := postChat(t, h, `{"message":"first"}`)
	var resp chatResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)

	body, _ := json.Marshal(chatRequest{SessionID: resp.SessionID, Message: "second"})
	rec = postChat(t, h, string(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	// The second turn must see the three messages committed by the first.
	if len(agent.lastHistory) != 3 {
		t.Errorf("second turn saw %d history messages, want 3", len(agent.lastHistory))
	}

	var second chatResponse
	json.Unmarshal(rec.Body.Bytes(), &second)
	if second.SessionID != resp.SessionID {
		t.Errorf("session id changed across turns: %q vs %q", resp.SessionID, second.SessionID)
	}
}

func TestChatUnknownSessionStartsFresh(t *testing.T) {
	agent := &stubAgent{}
	h := NewHandler(agent, nil, "")

	rec := postChat(t, h, `{"session_id":"does-not-exist","message":"hi"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(agent.lastHistory) != 0 {
		t.Errorf("unknown session should start empty, got %d messages", len(agent.lastHistory))
	}
}

func TestChatValidation(t *testing.T) {
	h := NewHandler(&stubAgent{}, nil, "")

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ``},
		{"not json", `not json`},
		{"missing message", `{"session_id":"abc"}`},
		{"blank message", `{"message":"   "}`},
		{"oversized message", `{"message":"` + strings.Repeat("a", maxMessageLength+1) + `"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postChat(t, h, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestChatTurnFailure(t *testing.T) {
	agent := &stubAgent{err: errors.New("context canceled")}
	h := NewHandler(agent, nil, "")

	rec := postChat(t, h, `{"message":"hello"}`)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("api_error")) {
		t.Errorf("body = %s, want api_error payload", rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	h := NewHandler(&stubAgent{}, nil, "")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if got := rec.Body.String(); got != `{"status":"ok"}` {
		t.Errorf("body = %q", got)
	}
}

func TestAdminRequiresToken(t *testing.T) {
	h := NewHandler(&stubAgent{}, openTestStore(t), "secret")

	req := httptest.NewRequest(http.MethodGet, "/admin/leads", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/leads", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d, want 401", rec.Code)
	}
}

func TestAdminDisabledWithoutToken(t *testing.T) {
	h := NewHandler(&stubAgent{}, openTestStore(t), "")

	req := httptest.NewRequest(http.MethodGet, "/admin/leads", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when admin is unmounted", rec.Code)
	}
}

func TestAdminListAndDeleteLeads(t *testing.T) {
	store := openTestStore(t)
	lead := storage.Lead{
		ID:        "lead-1",
		Email:     "ada@example.com",
		Name:      "Ada",
		CreatedAt: time.Now().UTC(),
	}
	if err := store.SaveLead(lead); err != nil {
		t.Fatalf("saving lead: %v", err)
	}

	h := NewHandler(&stubAgent{}, store, "secret")
	authed := func(method, path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set("Authorization", "Bearer secret")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := authed(http.MethodGet, "/admin/leads")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var listResp struct {
		Leads []storage.Lead `json:"leads"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("decoding list: %v", err)
	}
	if len(listResp.Leads) != 1 || listResp.Leads[0].Email != "ada@example.com" {
		t.Errorf("leads = %+v", listResp.Leads)
	}

	if rec := authed(http.MethodDelete, "/admin/leads/lead-1"); rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", rec.Code)
	}
	if rec := authed(http.MethodDelete, "/admin/leads/lead-1"); rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestHandlerAndMCPServerCoexist(t *testing.T) {
	store := openTestStore(t)

	h := NewHandler(&stubAgent{}, store, "secret")
	mcpSrv := NewMCPServer(MCPDeps{Store: store})
	if mcpSrv == nil {
		t.Fatal("MCP server was not constructed")
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("health = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestSessionStorePrune(t *testing.T) {
	s := newSessionStore()
	now := time.Now()
	s.now = func() time.Time { return now }

	s.Commit("old", []llm.Message{{Role: llm.RoleUser, Content: "x"}})

	now = now.Add(sessionTTL + time.Minute)
	s.Commit("fresh", nil)

	if _, ok := s.Get("old"); ok {
		t.Error("expired session survived prune")
	}
	if _, ok := s.Get("fresh"); !ok {
		t.Error("fresh session was pruned")
	}
	if s.Len() != 1 {
		t.Errorf("sessions = %d, want 1", s.Len())
	}
}

func TestSessionHistoryIsCopied(t *testing.T) {
	s := newSessionStore()
	s.Commit("id", []llm.Message{{Role: llm.RoleUser, Content: "original"}})

	h1, _ := s.Get("id")
	h1[0].Content = "mutated"

	h2, _ := s.Get("id")
	if h2[0].Content != "original" {
		t.Error("Get returned a shared slice; histories must be isolated")
	}
}
