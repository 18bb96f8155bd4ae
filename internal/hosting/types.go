package hosting

// Account identifies the authenticated platform user.
type Account struct {
	Name string   `json:"name"`
	Orgs []string `json:"orgs,omitempty"`
}

// Space describes a hosted space in listings.
type Space struct {
	ID      string `json:"id"`
	Author  string `json:"author,omitempty"`
	Private bool   `json:"private,omitempty"`
	SDK     string `json:"sdk,omitempty"`
}

// CreateSpaceRequest creates a new space repository.
type CreateSpaceRequest struct {
	Name         string `json:"name"`
	Organization string `json:"organization,omitempty"`
	Type         string `json:"type"`
	SDK          string `json:"sdk"`
	Private      bool   `json:"private"`
}

type createSpaceResponse struct {
	URL string `json:"url"`
	ID  string `json:"id"`
}

// FileUpload is one file in a commit.
type FileUpload struct {
	Path    string `json:"path"`
	Content []byte `json:"content"`
}

type commitRequest struct {
	Message string       `json:"message"`
	Files   []commitFile `json:"files"`
}

type commitFile struct {
	Path string `json:"path"`
	// Content is base64; encoding/json does this for []byte.
	Content []byte `json:"content"`
}

type secretRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type whoamiResponse struct {
	Name string `json:"name"`
	Orgs []struct {
		Name string `json:"name"`
	} `json:"orgs"`
}
