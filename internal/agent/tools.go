package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/calbers/twinchat/internal/llm"
	"github.com/calbers/twinchat/internal/notify"
	"github.com/calbers/twinchat/internal/storage"
)

// ToolName identifies one of the fixed local capabilities. The dispatch
// switch below is exhaustive over these values; adding a capability means
// touching the enum, the schema list, and the switch, all checked at
// compile time.
type ToolName string

const (
	ToolRecordContact            ToolName = "record_contact"
	ToolRecordUnansweredQuestion ToolName = "record_unanswered_question"
)

// Acknowledgment strings fed back to the model on the next loop iteration.
// The neutral ack is also used for protocol anomalies (unknown tool names,
// unusable arguments) so the model can move on instead of the turn dying.
const (
	ackRecorded = `{"recorded": "ok"}`
	ackSkipped  = `{"recorded": "skipped"}`
)

// ToolDefinitions returns the function schemas advertised to the model.
func ToolDefinitions() []llm.Tool {
	return []llm.Tool{
		{
			Type: "function",
			Function: llm.Function{
				Name:        string(ToolRecordContact),
				Description: "Use this tool to record that a user is interested in being in touch and provided an email address",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"email": {"type": "string", "description": "The email address of this user"},
						"name": {"type": "string", "description": "The user's name, if they provided it"},
						"notes": {"type": "string", "description": "Context worth recording from the conversation"}
					},
					"required": ["email"],
					"additionalProperties": false
				}`),
			},
		},
		{
			Type: "function",
			Function: llm.Function{
				Name:        string(ToolRecordUnansweredQuestion),
				Description: "Use this tool to record a question that was asked but not answered",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"question": {"type": "string", "description": "The question that was asked"}
					},
					"required": ["question"],
					"additionalProperties": false
				}`),
			},
		},
	}
}

// LeadStore persists tool side effects. Implemented by storage.Store;
// a nil store disables persistence (notification only).
type LeadStore interface {
	SaveLead(storage.Lead) error
	SaveQuestion(storage.Question) error
}

// Dispatcher executes model-issued tool calls. Both capabilities are pure
// side-effect producers: they notify, optionally persist a row, and return
// a short acknowledgment for the model.
type Dispatcher struct {
	notifier notify.Notifier
	store    LeadStore
	logger   *slog.Logger
}

func NewDispatcher(notifier notify.Notifier, store LeadStore) *Dispatcher {
	return &Dispatcher{
		notifier: notifier,
		store:    store,
		logger:   slog.Default(),
	}
}

// Dispatch runs a single tool call and returns the acknowledgment string.
// It never fails the turn: protocol anomalies (unknown name, malformed or
// missing arguments) produce the neutral ack and a log line.
//
// Argument validation is lenient by policy: optional fields default to
// empty, and only an unusable required field downgrades to the neutral ack.
func (d *Dispatcher) Dispatch(ctx context.Context, call llm.ToolCall) string {
	switch ToolName(call.Function.Name) {
	case ToolRecordContact:
		return d.recordContact(ctx, call.Function.Arguments)
	case ToolRecordUnansweredQuestion:
		return d.recordUnansweredQuestion(ctx, call.Function.Arguments)
	default:
		d.logger.Warn("model requested unknown tool", "tool", call.Function.Name)
		return ackSkipped
	}
}

type contactArgs struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Notes string `json:"notes"`
}

func (d *Dispatcher) recordContact(ctx context.Context, rawArgs string) string {
	var args contactArgs
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		d.logger.Warn("malformed record_contact arguments", "error", err)
		return ackSkipped
	}
	if !plausibleEmail(args.Email) {
		d.logger.Warn("record_contact called without a plausible email", "email", args.Email)
		return ackSkipped
	}
	if args.Name == "" {
		args.Name = "Name not provided"
	}
	if args.Notes == "" {
		args.Notes = "not provided"
	}

	d.notifier.Notify(ctx, notify.Event{
		Title:   "New contact",
		Message: "Recording interest from " + args.Name + " with email " + args.Email + " and notes " + args.Notes,
	})

	if d.store != nil {
		lead := storage.Lead{
			ID:        uuid.New().String(),
			Email:     args.Email,
			Name:      args.Name,
			Notes:     args.Notes,
			CreatedAt: time.Now().UTC(),
		}
		if err := d.store.SaveLead(lead); err != nil {
			// Persistence is best-effort, same contract as the notifier.
			d.logger.Warn("failed to persist lead", "error", err)
		}
	}
	return ackRecorded
}

type questionArgs struct {
	Question string `json:"question"`
}

func (d *Dispatcher) recordUnansweredQuestion(ctx context.Context, rawArgs string) string {
	var args questionArgs
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		d.logger.Warn("malformed record_unanswered_question arguments", "error", err)
		return ackSkipped
	}
	if strings.TrimSpace(args.Question) == "" {
		d.logger.Warn("record_unanswered_question called without a question")
		return ackSkipped
	}

	d.notifier.Notify(ctx, notify.Event{
		Title:   "Unanswered question",
		Message: "Recording " + args.Question + " asked that I couldn't answer",
	})

	if d.store != nil {
		q := storage.Question{
			ID:        uuid.New().String(),
			Question:  args.Question,
			CreatedAt: time.Now().UTC(),
		}
		if err := d.store.SaveQuestion(q); err != nil {
			d.logger.Warn("failed to persist question", "error", err)
		}
	}
	return ackRecorded
}

// plausibleEmail applies a deliberately loose shape check: one "@", a
// non-empty local part, and a host containing a dot. Real validation is
// impossible without sending mail; this only filters obvious garbage the
// model might hallucinate into the arguments.
func plausibleEmail(s string) bool {
	s = strings.TrimSpace(s)
	at := strings.Count(s, "@")
	if at != 1 || strings.ContainsAny(s, " \t\n") {
		return false
	}
	local, host, _ := strings.Cut(s, "@")
	if local == "" || host == "" {
		return false
	}
	dot := strings.LastIndex(host, ".")
	return dot > 0 && dot < len(host)-1
}
