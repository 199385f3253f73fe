package agent_test

import (
	"context"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/minutedhq/minuted/common/llm"
	"github.com/minutedhq/minuted/internal/agent"
	"github.com/minutedhq/minuted/internal/mail"
)

type mockAgentClient struct {
	chatFn   func(ctx context.Context, req llm.AgentRequest) (*llm.AgentResponse, error)
	requests []llm.AgentRequest
}

func (m *mockAgentClient) ChatWithTools(ctx context.Context, req llm.AgentRequest) (*llm.AgentResponse, error) {
	m.requests = append(m.requests, req)
	if m.chatFn != nil {
		return m.chatFn(ctx, req)
	}
	return &llm.AgentResponse{Content: "", FinishReason: "stop"}, nil
}

func (m *mockAgentClient) Model() string { return "mock" }

type recordingSender struct {
	recipients []string
	subject    string
	body       string
	calls      int
}

func (r *recordingSender) Send(_ context.Context, recipients []string, subject, body string) (string, error) {
	r.calls++
	r.recipients = recipients
	r.subject = subject
	r.body = body
	return mail.Ack, nil
}

var _ = Describe("Runner", func() {
	var (
		client *mockAgentClient
		runner agent.Runner
		ctx    context.Context
		agents agent.Set
		sender *recordingSender
	)

	BeforeEach(func() {
		ctx = context.Background()
		client = &mockAgentClient{}
		runner = agent.NewRunner(client, 4096)
		sender = &recordingSender{}
		agents = agent.NewSet("gemini-1.5-flash", sender)
	})

	It("returns the model's text when it calls no tools", func() {
		client.chatFn = func(_ context.Context, _ llm.AgentRequest) (*llm.AgentResponse, error) {
			return &llm.AgentResponse{Content: "Alice: Hi.\nBob: Let's ship Friday.", FinishReason: "stop"}, nil
		}

		out, err := runner.Run(ctx, agents.Transcriber, "alice hi bob lets ship friday", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("Alice: Hi.\nBob: Let's ship Friday."))

		Expect(client.requests).To(HaveLen(1))
		req := client.requests[0]
		Expect(req.Messages[0].Role).To(Equal("system"))
		Expect(req.Messages[0].Content).To(ContainSubstring("speaker-labelled"))
		Expect(req.Messages[1].Content).To(Equal("alice hi bob lets ship friday"))
		Expect(req.Tools).To(BeEmpty())
	})

	It("appends the run context as a message for tool-capable stages", func() {
		client.chatFn = func(_ context.Context, _ llm.AgentRequest) (*llm.AgentResponse, error) {
			return &llm.AgentResponse{Content: "done", FinishReason: "stop"}, nil
		}

		_, err := runner.Run(ctx, agents.Summarizer, "clarified text", &agent.RunContext{
			Recipients: []string{"team@example.com"},
			Subject:    "Summary #abc",
		})
		Expect(err).NotTo(HaveOccurred())

		req := client.requests[0]
		Expect(req.Messages).To(HaveLen(3))
		Expect(req.Messages[2].Content).To(ContainSubstring("team@example.com"))
		Expect(req.Messages[2].Content).To(ContainSubstring("Summary #abc"))
		Expect(req.Tools).To(HaveLen(1))
		Expect(req.Tools[0].Name).To(Equal("send_email"))
	})

	It("executes requested tool calls and feeds results back to the model", func() {
		client.chatFn = func(_ context.Context, req llm.AgentRequest) (*llm.AgentResponse, error) {
			if len(client.requests) == 1 {
				return &llm.AgentResponse{
					FinishReason: "tool_calls",
					ToolCalls: []llm.ToolCall{{
						ID:        "call_1",
						Name:      "send_email",
						Arguments: `{"recipients":["team@example.com"],"subject":"Summary #abc","body":"the summary"}`,
					}},
				}, nil
			}
			// Second turn: model saw the tool result and concludes.
			last := req.Messages[len(req.Messages)-1]
			Expect(last.Role).To(Equal("tool"))
			Expect(last.Content).To(Equal(mail.Ack))
			Expect(last.ToolCallID).To(Equal("call_1"))
			return &llm.AgentResponse{Content: "summary delivered", FinishReason: "stop"}, nil
		}

		out, err := runner.Run(ctx, agents.Summarizer, "clarified text", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("summary delivered"))

		Expect(sender.calls).To(Equal(1))
		Expect(sender.recipients).To(ConsistOf("team@example.com"))
		Expect(sender.subject).To(Equal("Summary #abc"))
		Expect(sender.body).To(Equal("the summary"))
	})

	It("reports unknown tools back to the model instead of failing the run", func() {
		client.chatFn = func(_ context.Context, req llm.AgentRequest) (*llm.AgentResponse, error) {
			if len(client.requests) == 1 {
				return &llm.AgentResponse{
					FinishReason: "tool_calls",
					ToolCalls:    []llm.ToolCall{{ID: "call_1", Name: "delete_everything", Arguments: `{}`}},
				}, nil
			}
			last := req.Messages[len(req.Messages)-1]
			Expect(last.Content).To(HavePrefix("Error:"))
			return &llm.AgentResponse{Content: "recovered", FinishReason: "stop"}, nil
		}

		out, err := runner.Run(ctx, agents.Summarizer, "text", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("recovered"))
		Expect(sender.calls).To(BeZero())
	})

	It("forces a final response when the model never stops calling tools", func() {
		client.chatFn = func(_ context.Context, req llm.AgentRequest) (*llm.AgentResponse, error) {
			if req.Tools == nil {
				// The forced-finish turn carries no tools.
				return &llm.AgentResponse{Content: "forced output", FinishReason: "stop"}, nil
			}
			return &llm.AgentResponse{
				FinishReason: "tool_calls",
				ToolCalls: []llm.ToolCall{{
					ID:        fmt.Sprintf("call_%d", len(client.requests)),
					Name:      "send_email",
					Arguments: `{"recipients":["a@b.c"],"subject":"s","body":"b"}`,
				}},
			}, nil
		}

		out, err := runner.Run(ctx, agents.Summarizer, "text", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("forced output"))
	})

	It("propagates transport errors", func() {
		client.chatFn = func(_ context.Context, _ llm.AgentRequest) (*llm.AgentResponse, error) {
			return nil, errors.New("connection refused")
		}

		_, err := runner.Run(ctx, agents.Transcriber, "text", nil)
		Expect(err).To(MatchError(ContainSubstring("agent Transcriber")))
		Expect(err).To(MatchError(ContainSubstring("connection refused")))
	})
})

var _ = Describe("NewSet", func() {
	It("gives only the Summarizer a tool", func() {
		agents := agent.NewSet("gemini-1.5-flash", &recordingSender{})

		Expect(agents.Transcriber.Tools).To(BeEmpty())
		Expect(agents.Clarifier.Tools).To(BeEmpty())
		Expect(agents.Summarizer.Tools).To(HaveLen(1))
		Expect(agents.Summarizer.Tools[0].Tool.Name).To(Equal("send_email"))
	})

	It("stamps every agent with the configured model", func() {
		agents := agent.NewSet("gemini-1.5-flash", &recordingSender{})

		for _, def := range []agent.Definition{agents.Transcriber, agents.Clarifier, agents.Summarizer} {
			Expect(def.Model).To(Equal("gemini-1.5-flash"))
		}
	})
})
