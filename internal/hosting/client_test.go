package hosting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWhoami(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/whoami-v2" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("auth header = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"name": "robin",
			"orgs": []map[string]string{{"name": "acme"}},
		})
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("tok", srv.URL)
	acct, err := c.Whoami(context.Background())
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	if acct.Name != "robin" || len(acct.Orgs) != 1 || acct.Orgs[0] != "acme" {
		t.Errorf("account = %+v", acct)
	}
}

func TestWhoamiBadToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Invalid credentials"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("bad", srv.URL)
	if _, err := c.Whoami(context.Background()); err == nil {
		t.Fatal("expected error for invalid token")
	}
}

func TestCreateSpace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/repos/create" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var req CreateSpaceRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Type != "space" {
			t.Errorf("type = %q, want space", req.Type)
		}
		if req.Name != "digital-twin" || !req.Private {
			t.Errorf("request = %+v", req)
		}
		json.NewEncoder(w).Encode(createSpaceResponse{ID: "robin/digital-twin"})
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("tok", srv.URL)
	id, err := c.CreateSpace(context.Background(), CreateSpaceRequest{
		Name:    "digital-twin",
		SDK:     "docker",
		Private: true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id != "robin/digital-twin" {
		t.Errorf("id = %q", id)
	}
}

func TestCreateSpaceConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"already exists"}`, http.StatusConflict)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("tok", srv.URL)
	_, err := c.CreateSpace(context.Background(), CreateSpaceRequest{Name: "digital-twin"})
	if err == nil {
		t.Fatal("expected conflict error")
	}
	if !IsConflict(err) {
		t.Errorf("IsConflict = false for %v", err)
	}
	if IsNotFound(err) {
		t.Errorf("IsNotFound = true for conflict")
	}
}

func TestUploadFiles(t *testing.T) {
	var got commitRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/spaces/robin/digital-twin/commit/main" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("tok", srv.URL)
	err := c.UploadFiles(context.Background(), "robin/digital-twin", "deploy", []FileUpload{
		{Path: "app/main.go", Content: []byte("package main")},
		{Path: "personal_info/summary.txt", Content: []byte("hello")},
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if got.Message != "deploy" || len(got.Files) != 2 {
		t.Errorf("commit = %+v", got)
	}
	if string(got.Files[0].Content) != "package main" {
		t.Errorf("content round-trip broken: %q", got.Files[0].Content)
	}
}

func TestUploadNoFilesIsNoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request for empty upload")
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("tok", srv.URL)
	if err := c.UploadFiles(context.Background(), "robin/x", "m", nil); err != nil {
		t.Fatalf("empty upload: %v", err)
	}
}

func TestSetSecretAndVariable(t *testing.T) {
	paths := map[string]bool{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req secretRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Key == "" || req.Value == "" {
			t.Errorf("empty key/value in %s", r.URL.Path)
		}
		paths[r.URL.Path] = true
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("tok", srv.URL)
	if err := c.SetSecret(context.Background(), "robin/x", "OPENAI_API_KEY", "sk-1"); err != nil {
		t.Fatalf("secret: %v", err)
	}
	if err := c.SetVariable(context.Background(), "robin/x", "TWINCHAT_MODEL", "gpt-4o-mini"); err != nil {
		t.Fatalf("variable: %v", err)
	}
	if !paths["/api/spaces/robin/x/secrets"] || !paths["/api/spaces/robin/x/variables"] {
		t.Errorf("paths hit = %v", paths)
	}
}

func TestListSpacesNormalizesIDs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("author"); got != "robin" {
			t.Errorf("author = %q", got)
		}
		json.NewEncoder(w).Encode([]Space{
			{ID: "robin/full-id"},
			{ID: "bare-name"},
			{ID: "other-bare", Author: "acme"},
		})
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("tok", srv.URL)
	spaces, err := c.ListSpaces(context.Background(), "robin")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"robin/full-id", "robin/bare-name", "acme/other-bare"}
	for i, w := range want {
		if spaces[i].ID != w {
			t.Errorf("space[%d] = %q, want %q", i, spaces[i].ID, w)
		}
	}
}

func TestDeleteSpace(t *testing.T) {
	var deleted map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodDelete && r.URL.Path == "/api/spaces/robin/x/storage":
			http.Error(w, "no storage", http.StatusNotFound)
		case r.Method == http.MethodDelete && r.URL.Path == "/api/repos/delete":
			json.NewDecoder(r.Body).Decode(&deleted)
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("tok", srv.URL)

	err := c.DeleteSpaceStorage(context.Background(), "robin/x")
	if !IsNotFound(err) {
		t.Errorf("storage wipe: want not-found, got %v", err)
	}

	if err := c.DeleteSpace(context.Background(), "robin/x"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted["name"] != "robin/x" || deleted["type"] != "space" {
		t.Errorf("delete body = %v", deleted)
	}
}

func TestSpaceURL(t *testing.T) {
	c := NewClientWithBaseURL("tok", "https://hub.example")
	if got := c.SpaceURL("robin/digital-twin"); got != "https://hub.example/spaces/robin/digital-twin" {
		t.Errorf("url = %q", got)
	}
}
