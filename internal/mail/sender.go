package mail

import (
	"context"
	"log/slog"
	"strings"
)

// Ack is the constant acknowledgement token returned for a delivered message.
const Ack = "email_sent"

// Sender delivers a summary email on behalf of the Summarizer agent.
// The agent runner decides when (and whether) to invoke it.
type Sender interface {
	Send(ctx context.Context, recipients []string, subject, body string) (string, error)
}

// LogSender is the stub Sender: it logs the message instead of delivering it
// and always acknowledges. A real mail provider integration would replace this
// and bring its own error taxonomy.
type LogSender struct{}

func NewLogSender() *LogSender {
	return &LogSender{}
}

func (s *LogSender) Send(ctx context.Context, recipients []string, subject, body string) (string, error) {
	slog.InfoContext(ctx, "email sent",
		"recipients", strings.Join(recipients, ", "),
		"subject", subject,
		"body_length", len(body))
	return Ack, nil
}
