// Package profile loads the static personal profile that grounds the chat
// agent. The profile is read once at startup from a directory of plain
// files and is immutable for the process lifetime, so it can be shared
// across concurrent sessions without locking.
package profile

// Profile is the persona record injected into the grounding prompt.
type Profile struct {
	// Name is the display name the agent speaks as.
	Name string `json:"name"`
	// Summary is the mandatory background summary. The agent refuses to
	// start without it.
	Summary string `json:"summary"`
	// LinkedInURL is optional and offered to users who want the source.
	LinkedInURL string `json:"linkedin_url"`
	// LookingForRole switches the availability section of the prompt.
	LookingForRole bool `json:"looking_for_role"`
	// LinkedInText is the text extracted from an optional LinkedIn PDF
	// export, concatenated page by page.
	LinkedInText string `json:"linkedin_text,omitempty"`
}
