package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/minutedhq/minuted/core/config"
	"github.com/minutedhq/minuted/internal/agent"
	"github.com/minutedhq/minuted/internal/mail"
	"github.com/minutedhq/minuted/internal/model"
	"github.com/minutedhq/minuted/internal/pipeline"
	"github.com/minutedhq/minuted/internal/store"
)

type runnerCall struct {
	agent  string
	input  string
	runCtx *agent.RunContext
}

type mockRunner struct {
	mu    sync.Mutex
	runFn func(ctx context.Context, def agent.Definition, input string, runCtx *agent.RunContext) (string, error)
	calls []runnerCall
}

func (m *mockRunner) Run(ctx context.Context, def agent.Definition, input string, runCtx *agent.RunContext) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, runnerCall{agent: def.Name, input: input, runCtx: runCtx})
	m.mu.Unlock()
	if m.runFn != nil {
		return m.runFn(ctx, def, input, runCtx)
	}
	return "", nil
}

func (m *mockRunner) callNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.calls))
	for i, c := range m.calls {
		names[i] = c.agent
	}
	return names
}

var _ = Describe("Pipeline", func() {
	var (
		runner *mockRunner
		jobs   *store.MemoryJobStore
		p      *pipeline.Pipeline
		ctx    context.Context
	)

	email := config.EmailConfig{
		Recipients:    []string{"team@example.com"},
		SubjectPrefix: "Summary #",
	}

	BeforeEach(func() {
		ctx = context.Background()
		runner = &mockRunner{}
		jobs = store.NewMemoryJobStore()
		agents := agent.NewSet("gemini-1.5-flash", mail.NewLogSender())
		p = pipeline.New(runner, jobs, agents, email)
	})

	Context("when all three stages succeed", func() {
		BeforeEach(func() {
			runner.runFn = func(_ context.Context, def agent.Definition, input string, _ *agent.RunContext) (string, error) {
				switch def.Name {
				case "Transcriber":
					return "clean text", nil
				case "Clarifier":
					return "clarified text", nil
				default:
					return "summary", nil
				}
			}
		})

		It("runs the stages in order and completes the job", func() {
			Expect(jobs.Create("job-1")).To(Succeed())

			p.Process(ctx, "job-1", "raw transcript")

			Expect(runner.callNames()).To(Equal([]string{"Transcriber", "Clarifier", "Summarizer"}))

			job, err := jobs.Get("job-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(job.Status).To(Equal(model.JobStatusCompleted))
			Expect(job.Error).To(BeNil())
			Expect(job.FinishedAt).NotTo(BeNil())
		})

		It("threads each stage's output into the next", func() {
			Expect(jobs.Create("job-1")).To(Succeed())

			p.Process(ctx, "job-1", "raw transcript")

			Expect(runner.calls[0].input).To(Equal("raw transcript"))
			Expect(runner.calls[1].input).To(Equal("clean text"))
			Expect(runner.calls[2].input).To(Equal("clarified text"))
		})

		It("passes recipients and a job-derived subject to the summarizer only", func() {
			Expect(jobs.Create("job-1")).To(Succeed())

			p.Process(ctx, "job-1", "raw transcript")

			Expect(runner.calls[0].runCtx).To(BeNil())
			Expect(runner.calls[1].runCtx).To(BeNil())
			Expect(runner.calls[2].runCtx).NotTo(BeNil())
			Expect(runner.calls[2].runCtx.Recipients).To(ConsistOf("team@example.com"))
			Expect(runner.calls[2].runCtx.Subject).To(Equal("Summary #job-1"))
		})
	})

	Context("when the clarifier returns empty output", func() {
		It("falls back to the transcriber's text for the summarizer", func() {
			runner.runFn = func(_ context.Context, def agent.Definition, _ string, _ *agent.RunContext) (string, error) {
				switch def.Name {
				case "Transcriber":
					return "clean text", nil
				case "Clarifier":
					return "", nil
				default:
					return "summary", nil
				}
			}
			Expect(jobs.Create("job-1")).To(Succeed())

			p.Process(ctx, "job-1", "raw transcript")

			Expect(runner.calls[2].input).To(Equal("clean text"))

			job, _ := jobs.Get("job-1")
			Expect(job.Status).To(Equal(model.JobStatusCompleted))
		})
	})

	DescribeTable("a stage failure marks the job failed and skips later stages",
		func(failing string, wantCalls int, wantPrefix string) {
			runner.runFn = func(_ context.Context, def agent.Definition, _ string, _ *agent.RunContext) (string, error) {
				if def.Name == failing {
					return "", errors.New("model unavailable")
				}
				return "some output", nil
			}
			Expect(jobs.Create("job-1")).To(Succeed())

			p.Process(ctx, "job-1", "raw transcript")

			Expect(runner.calls).To(HaveLen(wantCalls))

			job, err := jobs.Get("job-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(job.Status).To(Equal(model.JobStatusFailed))
			Expect(job.Error).NotTo(BeNil())
			Expect(*job.Error).To(HavePrefix(wantPrefix))
			Expect(*job.Error).To(ContainSubstring("model unavailable"))
		},
		Entry("transcriber fails", "Transcriber", 1, "transcriber:"),
		Entry("clarifier fails", "Clarifier", 2, "clarifier:"),
		Entry("summarizer fails", "Summarizer", 3, "summarizer:"),
	)

	It("keeps concurrent jobs independent", func() {
		runner.runFn = func(_ context.Context, def agent.Definition, input string, _ *agent.RunContext) (string, error) {
			if def.Name == "Transcriber" && input == "bad transcript" {
				return "", errors.New("unreadable")
			}
			return input, nil
		}

		const n = 20
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			id := fmt.Sprintf("job-%d", i)
			Expect(jobs.Create(id)).To(Succeed())

			transcript := "good transcript"
			if i%4 == 0 {
				transcript = "bad transcript"
			}

			wg.Add(1)
			go func(id, transcript string) {
				defer wg.Done()
				p.Process(ctx, id, transcript)
			}(id, transcript)
		}
		wg.Wait()

		for i := 0; i < n; i++ {
			job, err := jobs.Get(fmt.Sprintf("job-%d", i))
			Expect(err).NotTo(HaveOccurred())
			if i%4 == 0 {
				Expect(job.Status).To(Equal(model.JobStatusFailed))
				Expect(*job.Error).To(ContainSubstring("unreadable"))
			} else {
				Expect(job.Status).To(Equal(model.JobStatusCompleted))
				Expect(job.Error).To(BeNil())
			}
		}
	})
})
