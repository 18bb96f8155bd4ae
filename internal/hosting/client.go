// Package hosting is a minimal client for a Spaces-style hosting platform:
// space repositories holding an app's files, with per-space secrets and
// variables. It covers exactly what the deploy command needs.
package hosting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://huggingface.co"
	defaultTimeout = 60 * time.Second
	uploadTimeout  = 300 * time.Second
)

// APIError is returned for non-2xx platform responses.
type APIError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("platform returned %d for %s: %s", e.StatusCode, e.URL, e.Body)
}

// IsConflict reports whether the error is an already-exists conflict.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

// IsNotFound reports whether the error is a missing-resource response.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client talks to the hosting platform API.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a platform client with the given access token.
func NewClient(token string) *Client {
	return &Client{
		token:   token,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// NewClientWithBaseURL creates a client pointing at a custom base URL (for testing).
func NewClientWithBaseURL(token, baseURL string) *Client {
	c := NewClient(token)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// Whoami validates the token and returns the account it belongs to.
func (c *Client) Whoami(ctx context.Context) (Account, error) {
	var resp whoamiResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/whoami-v2", nil, &resp); err != nil {
		return Account{}, fmt.Errorf("authenticating: %w", err)
	}
	acct := Account{Name: resp.Name}
	for _, o := range resp.Orgs {
		acct.Orgs = append(acct.Orgs, o.Name)
	}
	return acct, nil
}

// CreateSpace creates a space repository. An already-existing space is not
// an error here; callers can detect it with IsConflict and reuse the space.
func (c *Client) CreateSpace(ctx context.Context, req CreateSpaceRequest) (string, error) {
	if req.Type == "" {
		req.Type = "space"
	}
	var resp createSpaceResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/repos/create", req, &resp); err != nil {
		return "", fmt.Errorf("creating space %s: %w", req.Name, err)
	}
	return resp.ID, nil
}

// UploadFiles commits the given files to the space in a single request.
func (c *Client) UploadFiles(ctx context.Context, spaceID, message string, files []FileUpload) error {
	if len(files) == 0 {
		return nil
	}
	req := commitRequest{Message: message}
	for _, f := range files {
		req.Files = append(req.Files, commitFile{Path: f.Path, Content: f.Content})
	}

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	path := "/api/spaces/" + spaceID + "/commit/main"
	if err := c.doJSON(ctx, http.MethodPost, path, req, nil); err != nil {
		return fmt.Errorf("uploading %d files to %s: %w", len(files), spaceID, err)
	}
	return nil
}

// SetSecret stores an encrypted secret on the space.
func (c *Client) SetSecret(ctx context.Context, spaceID, key, value string) error {
	path := "/api/spaces/" + spaceID + "/secrets"
	if err := c.doJSON(ctx, http.MethodPost, path, secretRequest{Key: key, Value: value}, nil); err != nil {
		return fmt.Errorf("setting secret %s on %s: %w", key, spaceID, err)
	}
	return nil
}

// SetVariable stores a plain-text runtime variable on the space.
func (c *Client) SetVariable(ctx context.Context, spaceID, key, value string) error {
	path := "/api/spaces/" + spaceID + "/variables"
	if err := c.doJSON(ctx, http.MethodPost, path, secretRequest{Key: key, Value: value}, nil); err != nil {
		return fmt.Errorf("setting variable %s on %s: %w", key, spaceID, err)
	}
	return nil
}

// ListSpaces returns the spaces owned by the given author.
func (c *Client) ListSpaces(ctx context.Context, author string) ([]Space, error) {
	path := "/api/spaces?author=" + url.QueryEscape(author)
	var spaces []Space
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &spaces); err != nil {
		return nil, fmt.Errorf("listing spaces for %s: %w", author, err)
	}
	// Older API versions return bare names; normalize to author/name.
	for i, s := range spaces {
		if !strings.Contains(s.ID, "/") {
			owner := s.Author
			if owner == "" {
				owner = author
			}
			spaces[i].ID = owner + "/" + s.ID
		}
	}
	return spaces, nil
}

// DeleteSpaceStorage wipes the space's persistent storage. A 404 means no
// storage was attached, which callers typically tolerate.
func (c *Client) DeleteSpaceStorage(ctx context.Context, spaceID string) error {
	path := "/api/spaces/" + spaceID + "/storage"
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("wiping storage of %s: %w", spaceID, err)
	}
	return nil
}

// DeleteSpace removes the space repository.
func (c *Client) DeleteSpace(ctx context.Context, spaceID string) error {
	body := map[string]string{"name": spaceID, "type": "space"}
	if err := c.doJSON(ctx, http.MethodDelete, "/api/repos/delete", body, nil); err != nil {
		return fmt.Errorf("deleting space %s: %w", spaceID, err)
	}
	return nil
}

// SpaceURL returns the public URL of a deployed space.
func (c *Client) SpaceURL(spaceID string) string {
	return c.baseURL + "/spaces/" + spaceID
}

// doJSON performs one API call. A nil in sends no body; a nil out discards
// the response body.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &APIError{
			StatusCode: resp.StatusCode,
			URL:        req.URL.String(),
			Body:       strings.TrimSpace(string(respBody)),
		}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
