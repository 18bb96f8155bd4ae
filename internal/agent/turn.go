// Package agent implements the conversation turn handler: one user message
// in, one final assistant reply out, possibly spanning several completion
// round-trips when the model asks for tool execution. All intelligence is
// delegated to the hosted model; this package is the wiring around it.
package agent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/calbers/twinchat/internal/llm"
	"github.com/calbers/twinchat/internal/notify"
	"github.com/calbers/twinchat/internal/profile"
)

// turnState makes the loop's failure transitions explicit and testable.
type turnState int

const (
	stateAwaitingModel turnState = iota
	stateDispatching
	stateDone
	stateFailed
)

func (s turnState) String() string {
	switch s {
	case stateAwaitingModel:
		return "awaiting-model"
	case stateDispatching:
		return "dispatching"
	case stateDone:
		return "done"
	case stateFailed:
		return "failed"
	}
	return "unknown"
}

// maxToolRounds bounds the tool-call loop. A model that keeps issuing tool
// calls without converging ends the turn with the fallback reply instead of
// hanging.
const maxToolRounds = 5

// Fixed replies for the recoverable failure paths.
const (
	replyRefusal = "I'd rather keep this conversation professional and career-focused. " +
		"Happy to answer questions about my background, skills, or experience."
	replyFallback = "Sorry, I lost my train of thought there. Could you ask that again?"
	replyTechnicalDifficulty = "I'm having a technical difficulty answering right now. " +
		"Please try again in a moment."
	replyDeclineFallback = "Thanks so much for reaching out about the role. " +
		"I'm very happy where I am and not looking right now, " +
		"but I appreciate the connection and would love to stay in touch."
)

// CompletionClient is the slice of the llm client the agent needs.
type CompletionClient interface {
	Chat(ctx context.Context, req llm.ChatRequest) (llm.Completion, error)
	Moderate(ctx context.Context, input string) (bool, error)
}

// Agent handles conversation turns for a single loaded profile. It holds no
// per-session state: histories are owned by the caller, so one Agent safely
// serves concurrent sessions.
type Agent struct {
	client     CompletionClient
	dispatcher *Dispatcher
	notifier   notify.Notifier
	prof       profile.Profile

	systemPrompt  string
	declinePrompt string
	logger        *slog.Logger
}

func New(client CompletionClient, dispatcher *Dispatcher, notifier notify.Notifier, prof profile.Profile) *Agent {
	return &Agent{
		client:        client,
		dispatcher:    dispatcher,
		notifier:      notifier,
		prof:          prof,
		systemPrompt:  profile.BuildSystemPrompt(prof),
		declinePrompt: profile.BuildDeclinePrompt(prof),
		logger:        slog.Default(),
	}
}

// SystemPrompt exposes the grounding prompt for diagnostics.
func (a *Agent) SystemPrompt() string { return a.systemPrompt }

// HandleTurn runs one turn: appends the user message, loops through the
// completion API (dispatching tool calls as requested), and returns the
// updated history and the reply text.
//
// The input history is never mutated: the turn works on a private copy and
// the caller commits the returned slice, so a cancelled or failed turn
// cannot leave a half-appended tool cycle in shared history. The returned
// error is non-nil only for context cancellation; upstream failures degrade
// to fixed replies.
func (a *Agent) HandleTurn(ctx context.Context, history []llm.Message, userMessage string) ([]llm.Message, string, error) {
	pending := a.seedHistory(history)
	pending = append(pending, llm.Message{Role: llm.RoleUser, Content: userMessage})

	// Moderation pre-check. A flagged message short-circuits the turn; the
	// only notification for it is the flagged-content event itself.
	flagged, err := a.client.Moderate(ctx, userMessage)
	if err != nil {
		if ctx.Err() != nil {
			return history, "", ctx.Err()
		}
		// Fail open: moderation is a guard, not a gate on availability.
		a.logger.Warn("moderation check failed, continuing", "error", err)
	}
	if flagged {
		a.logger.Info("user message flagged by moderation")
		a.notifier.Notify(ctx, notify.Event{
			Title:   "Flagged message",
			Message: "A visitor message was flagged by moderation and refused.",
		})
		pending = append(pending, llm.Message{Role: llm.RoleAssistant, Content: replyRefusal})
		return pending, replyRefusal, nil
	}

	// Tailored decline for inbound job pitches when not looking.
	if !a.prof.LookingForRole && looksLikeJobPitch(userMessage) {
		reply := a.politeDecline(ctx, userMessage)
		pending = append(pending, llm.Message{Role: llm.RoleAssistant, Content: reply})
		return pending, reply, nil
	}

	state := stateAwaitingModel
	for round := 0; round < maxToolRounds; round++ {
		comp, err := a.client.Chat(ctx, llm.ChatRequest{
			Messages: pending,
			Tools:    ToolDefinitions(),
		})
		if err != nil {
			if ctx.Err() != nil {
				return history, "", ctx.Err()
			}
			state = stateFailed
			a.logger.Error("completion failed", "state", state.String(), "round", round, "error", err)
			pending = append(pending, llm.Message{Role: llm.RoleAssistant, Content: replyTechnicalDifficulty})
			return pending, replyTechnicalDifficulty, nil
		}

		if !comp.WantsTools() {
			state = stateDone
			pending = append(pending, comp.Message)
			return pending, comp.Message.Content, nil
		}

		state = stateDispatching
		pending = append(pending, comp.Message)
		for _, call := range comp.Message.ToolCalls {
			a.logger.Info("dispatching tool call", "tool", call.Function.Name)
			result := a.dispatcher.Dispatch(ctx, call)
			pending = append(pending, llm.Message{
				Role:       llm.RoleTool,
				Content:    result,
				ToolCallID: call.ID,
			})
		}
		state = stateAwaitingModel
	}

	// The model never converged to a plain answer. Recoverable: end the
	// turn with the generic fallback and log for inspection.
	a.logger.Warn("tool loop exceeded bound", "rounds", maxToolRounds)
	pending = append(pending, llm.Message{Role: llm.RoleAssistant, Content: replyFallback})
	return pending, replyFallback, nil
}

// seedHistory copies the caller's history and guarantees the invariant that
// the first message is the grounding prompt.
func (a *Agent) seedHistory(history []llm.Message) []llm.Message {
	pending := make([]llm.Message, 0, len(history)+4)
	if len(history) == 0 || history[0].Role != llm.RoleSystem {
		pending = append(pending, llm.Message{Role: llm.RoleSystem, Content: a.systemPrompt})
	}
	return append(pending, history...)
}

// politeDecline asks the model for a short tailored decline; on failure it
// falls back to the fixed decline text.
func (a *Agent) politeDecline(ctx context.Context, userMessage string) string {
	comp, err := a.client.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: a.declinePrompt},
			{Role: llm.RoleUser, Content: "Compose the reply to this inbound message:\n\n" + userMessage},
		},
		MaxTokens: 160,
	})
	if err != nil || strings.TrimSpace(comp.Message.Content) == "" {
		if err != nil {
			a.logger.Warn("decline generation failed, using fallback", "error", err)
		}
		return replyDeclineFallback
	}
	return comp.Message.Content
}

// jobPitchKeywords mark inbound messages that read like a role proposal.
var jobPitchKeywords = []string{
	"job", "position", "role", "opportunity", "opening",
	"hire", "hiring", "recruit", "recruiter", "headcount",
	"interview", "join our", "work with us", "offer",
}

func looksLikeJobPitch(text string) bool {
	t := strings.ToLower(text)
	for _, kw := range jobPitchKeywords {
		if strings.Contains(t, kw) {
			return true
		}
	}
	return false
}
