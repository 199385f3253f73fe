package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/minutedhq/minuted/common/llm"
	"github.com/minutedhq/minuted/common/logger"
)

// Stop the tool loop after this many model turns. A well-behaved stage
// finishes in one or two; the ceiling only guards against a model that
// never stops calling tools.
const maxIterations = 8

// RunContext carries per-job values the model may need for tool calls,
// such as where to send the summary email.
type RunContext struct {
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject"`
}

// Runner executes one agent definition against an input text and returns the
// agent's final output. It is the narrow seam between the pipeline and the
// remote model, so the pipeline can be tested against a fake implementation.
type Runner interface {
	Run(ctx context.Context, def Definition, input string, runCtx *RunContext) (string, error)
}

type llmRunner struct {
	llm       llm.AgentClient
	maxTokens int
}

// NewRunner creates a Runner backed by an LLM agent client.
func NewRunner(client llm.AgentClient, maxTokens int) Runner {
	return &llmRunner{
		llm:       client,
		maxTokens: maxTokens,
	}
}

// Run drives the tool-calling loop for one agent stage: send the input,
// execute any tool calls the model requests, feed results back, and return
// the model's text once it stops calling tools. Tool execution errors are
// reported back to the model as tool results; transport errors abort the run.
func (r *llmRunner) Run(ctx context.Context, def Definition, input string, runCtx *RunContext) (string, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Agent: logger.Ptr(def.Name)})

	messages := []llm.Message{
		{Role: "system", Content: def.Instructions},
		{Role: "user", Content: input},
	}
	if runCtx != nil {
		encoded, err := json.Marshal(runCtx)
		if err != nil {
			return "", fmt.Errorf("encode run context: %w", err)
		}
		messages = append(messages, llm.Message{
			Role:    "user",
			Content: "Context for tool calls:\n" + string(encoded),
		})
	}

	start := time.Now()
	tools := def.toolDefs()

	for iteration := 1; ; iteration++ {
		if iteration > maxIterations {
			return r.forceFinish(ctx, def, messages)
		}

		resp, err := r.llm.ChatWithTools(ctx, llm.AgentRequest{
			Messages:  messages,
			Tools:     tools,
			MaxTokens: r.maxTokens,
		})
		if err != nil {
			return "", fmt.Errorf("agent %s iteration %d: %w", def.Name, iteration, err)
		}

		// No tool calls = the stage is done.
		if len(resp.ToolCalls) == 0 {
			slog.DebugContext(ctx, "agent run completed",
				"model", def.Model,
				"iterations", iteration,
				"duration_ms", time.Since(start).Milliseconds(),
				"output_length", len(resp.Content))
			return resp.Content, nil
		}

		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, tc := range resp.ToolCalls {
			messages = append(messages, llm.Message{
				Role:       "tool",
				Content:    r.executeTool(ctx, def, tc),
				ToolCallID: tc.ID,
			})
		}
	}
}

func (r *llmRunner) executeTool(ctx context.Context, def Definition, tc llm.ToolCall) string {
	slog.DebugContext(ctx, "agent executing tool",
		"tool", tc.Name,
		"call_id", tc.ID)

	binding, err := def.findTool(tc.Name)
	if err != nil {
		return fmt.Sprintf("Error: %s", err)
	}

	result, err := binding.Execute(ctx, tc.Arguments)
	if err != nil {
		return fmt.Sprintf("Error: %s", err)
	}
	return result
}

// forceFinish asks the model for a final text response without tools.
func (r *llmRunner) forceFinish(ctx context.Context, def Definition, messages []llm.Message) (string, error) {
	slog.WarnContext(ctx, "agent hit iteration limit, forcing final response")

	messages = append(messages, llm.Message{
		Role:    "user",
		Content: "Stop calling tools. Write your final output now based on the work above.",
	})

	resp, err := r.llm.ChatWithTools(ctx, llm.AgentRequest{
		Messages:  messages,
		Tools:     nil, // No tools = force text response
		MaxTokens: r.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("agent %s forced finish: %w", def.Name, err)
	}
	return resp.Content, nil
}
