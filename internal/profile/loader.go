package profile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// File names resolved relative to the profile directory.
const (
	summaryFile  = "summary.txt"
	nameFile     = "name.txt"
	linkedinFile = "linkedin_url.txt"
	statusFile   = "status.json"
	pdfFile      = "linkedin_profile.pdf"
)

// ErrNoSummary is returned when the mandatory summary file is missing or
// empty. The system prompt is meaningless without it, so the process must
// refuse to serve.
var ErrNoSummary = errors.New("profile: summary.txt is missing or empty")

type statusPayload struct {
	Looking bool `json:"looking"`
}

// Load reads the profile from dir. The summary is mandatory; every other
// file is optional and degrades to a zero value. lookingOverride, when
// non-nil, takes precedence over status.json (it carries the
// LOOKING_FOR_ROLE environment override).
//
// Load is deterministic given the same files and has no side effects
// beyond reads.
func Load(dir string, lookingOverride *bool) (Profile, error) {
	var p Profile

	summary, err := readText(filepath.Join(dir, summaryFile))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Profile{}, fmt.Errorf("profile: reading summary: %w", err)
	}
	if strings.TrimSpace(summary) == "" {
		return Profile{}, ErrNoSummary
	}
	p.Summary = summary

	p.Name = readOptionalText(filepath.Join(dir, nameFile))
	if p.Name == "" {
		p.Name = "the site owner"
	}
	p.LinkedInURL = readOptionalText(filepath.Join(dir, linkedinFile))

	p.LookingForRole = readLookingFlag(filepath.Join(dir, statusFile))
	if lookingOverride != nil {
		p.LookingForRole = *lookingOverride
	}

	p.LinkedInText = readPDFText(filepath.Join(dir, pdfFile))

	return p, nil
}

func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// readOptionalText returns the trimmed file contents or "" on any error.
func readOptionalText(path string) string {
	text, err := readText(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("profile file unreadable, using default", "path", path, "error", err)
		}
		return ""
	}
	return text
}

// readLookingFlag parses status.json ({"looking": bool}); missing or
// malformed files default to false.
func readLookingFlag(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("profile status unreadable, defaulting to not looking", "path", path, "error", err)
		}
		return false
	}
	var status statusPayload
	if err := json.Unmarshal(data, &status); err != nil {
		slog.Warn("malformed status.json, defaulting to not looking", "path", path, "error", err)
		return false
	}
	return status.Looking
}

// readPDFText extracts the plain text of every page of the LinkedIn PDF
// export. A missing or unreadable PDF yields ""; the profile degrades to
// summary-only grounding rather than failing startup.
func readPDFText(path string) string {
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	text, err := extractPDF(path)
	if err != nil {
		slog.Warn("PDF extraction failed, continuing without LinkedIn text", "path", path, "error", err)
		return ""
	}
	return text
}

var extractPDF = func(path string) (string, error) {
	f, r, err := pdfOpen(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
