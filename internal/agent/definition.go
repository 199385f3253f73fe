package agent

import (
	"context"
	"fmt"

	"github.com/minutedhq/minuted/common/llm"
	"github.com/minutedhq/minuted/internal/mail"
)

// Definition is a named agent configuration: role instructions, model and
// tool bindings. Definitions are pure configuration, immutable after process
// start and shared read-only across all jobs; behavior lives in the Runner.
type Definition struct {
	Name         string
	Instructions string
	Model        string
	Tools        []ToolBinding
}

// ToolBinding pairs a tool's wire definition with its executor.
type ToolBinding struct {
	Tool    llm.Tool
	Execute func(ctx context.Context, arguments string) (string, error)
}

func (d Definition) toolDefs() []llm.Tool {
	if len(d.Tools) == 0 {
		return nil
	}
	defs := make([]llm.Tool, len(d.Tools))
	for i, b := range d.Tools {
		defs[i] = b.Tool
	}
	return defs
}

func (d Definition) findTool(name string) (ToolBinding, error) {
	for _, b := range d.Tools {
		if b.Tool.Name == name {
			return b, nil
		}
	}
	return ToolBinding{}, fmt.Errorf("agent %s has no tool %q", d.Name, name)
}

// Set holds the three pipeline agents.
type Set struct {
	Transcriber Definition
	Clarifier   Definition
	Summarizer  Definition
}

type sendEmailArgs struct {
	Recipients []string `json:"recipients" jsonschema_description:"Email addresses to deliver the summary to"`
	Subject    string   `json:"subject" jsonschema_description:"Subject line"`
	Body       string   `json:"body" jsonschema_description:"Email body containing the summary"`
}

// NewSet builds the static agent definitions. Only the Summarizer carries a
// tool: the send_email stub, which the model may invoke at its own discretion.
func NewSet(model string, sender mail.Sender) Set {
	return Set{
		Transcriber: Definition{
			Name:         "Transcriber",
			Instructions: "You turn raw meeting audio transcripts into clean, speaker-labelled text.",
			Model:        model,
		},
		Clarifier: Definition{
			Name:         "Clarifier",
			Instructions: "Read the transcript and ask the summarizer to resolve any ambiguous points before final summary is produced.",
			Model:        model,
		},
		Summarizer: Definition{
			Name:         "Summarizer",
			Instructions: "Produce a concise 1-page summary plus a Mermaid timeline. Then call send_email to deliver it.",
			Model:        model,
			Tools: []ToolBinding{
				sendEmailTool(sender),
			},
		},
	}
}

func sendEmailTool(sender mail.Sender) ToolBinding {
	return ToolBinding{
		Tool: llm.Tool{
			Name:        "send_email",
			Description: "Send the summary via email (stub).",
			Parameters:  llm.GenerateSchema[sendEmailArgs](),
		},
		Execute: func(ctx context.Context, arguments string) (string, error) {
			args, err := llm.ParseToolArguments[sendEmailArgs](arguments)
			if err != nil {
				return "", err
			}
			return sender.Send(ctx, args.Recipients, args.Subject, args.Body)
		},
	}
}
