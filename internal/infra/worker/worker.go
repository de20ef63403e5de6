// File: internal/infra/worker/worker.go
package worker

import (
	"context"
	"strings"
	"sync"
	"time"

	"llm-chat-gateway/internal/domain"
	"llm-chat-gateway/internal/domain/model"
	"llm-chat-gateway/internal/domain/ports/adapter"
	"llm-chat-gateway/internal/infra/logging"
	"llm-chat-gateway/internal/infra/metrics"
	"llm-chat-gateway/internal/infra/queue"
	"llm-chat-gateway/internal/infra/resource"
	"llm-chat-gateway/internal/infra/stream"

	"github.com/rs/zerolog"
)

// Worker drains the job queue and drives the upstream LLM call for each job,
// publishing output events into the job's stream. A job failure is published
// as an error event and never stops the loop.
type Worker struct {
	queue     *queue.Queue
	streams   *stream.Registry
	ai        adapter.AIServiceAdapter
	resources *resource.Registry
	workers   int
	log       *zerolog.Logger

	wg sync.WaitGroup
}

func New(q *queue.Queue, streams *stream.Registry, ai adapter.AIServiceAdapter, resources *resource.Registry, workers int, log *zerolog.Logger) *Worker {
	if workers <= 0 {
		workers = 1
	}
	return &Worker{
		queue:     q,
		streams:   streams,
		ai:        ai,
		resources: resources,
		workers:   workers,
		log:       log,
	}
}

// Start launches the consumer goroutines. They exit when ctx is done.
func (w *Worker) Start(ctx context.Context) {
	w.log.Info().Int("workers", w.workers).Msg("job worker started")
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go func(id int) {
			defer w.wg.Done()
			w.run(ctx, id)
		}(i)
	}
}

// Stop blocks until all consumers have exited. Cancel the Start ctx first.
func (w *Worker) Stop() {
	w.wg.Wait()
	w.log.Info().Msg("job worker stopped")
}

func (w *Worker) run(ctx context.Context, id int) {
	for {
		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			w.log.Debug().Int("worker", id).Msg("consumer exiting")
			return
		}
		w.processJob(ctx, job)
	}
}

// processJob runs one upstream call and publishes the job's event sequence:
// zero or more chunks followed by exactly one done or error.
func (w *Worker) processJob(ctx context.Context, job *model.Job) {
	jobCtx, cancel := context.WithCancel(logging.WithJobID(ctx, job.ID))
	defer cancel()
	// Lets the SSE relay abort the upstream call on browser disconnect.
	w.streams.BindCancel(job.ID, cancel)

	log := logging.With(jobCtx, w.log)
	if !job.MarkStreaming() {
		log.Warn().Str("status", string(job.Status)).Msg("job not pending, skipping")
		return
	}
	log.Info().Str("model", job.Model).Int("messages", len(job.Messages)).Msg("processing job")

	req := w.buildRequest(jobCtx, job)

	promptTokens := 0
	if tokens, err := w.ai.CountTokens(jobCtx, req.Model, req.Messages); err == nil {
		promptTokens = tokens
		log.Debug().Int("prompt_tokens", tokens).Msg("prompt sized")
	}

	start := time.Now()
	err := w.ai.StreamChat(jobCtx, req, func(delta string) error {
		if perr := w.streams.Publish(jobCtx, job.ID, model.ChunkEvent(delta)); perr != nil {
			return perr
		}
		return nil
	})
	latency := time.Since(start)

	if err != nil {
		job.Fail(err.Error())
		metrics.ObserveChatCall(req.Model, promptTokens, int(latency/time.Millisecond), false)
		metrics.IncJob(string(job.Status))
		log.Error().Err(err).Dur("duration", latency).Msg("job failed")
		w.publishTerminal(job.ID, model.ErrorEvent(err.Error()))
		return
	}

	job.Complete()
	metrics.ObserveChatCall(req.Model, promptTokens, int(latency/time.Millisecond), true)
	metrics.IncJob(string(job.Status))
	log.Info().Dur("duration", latency).Msg("job completed")
	w.publishTerminal(job.ID, model.DoneEvent())
}

// publishTerminal delivers the final event on a fresh context: the job ctx may
// already be cancelled (disconnect, upstream abort) and the terminal event
// must still land for any relay that is waiting.
func (w *Worker) publishTerminal(jobID string, ev model.OutputEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.streams.Publish(ctx, jobID, ev); err != nil && err != domain.ErrUnknownJob && err != domain.ErrStreamClosed {
		w.log.Warn().Err(err).Str("job_id", jobID).Msg("terminal event not delivered")
	}
}

// buildRequest converts the job into an upstream request, injecting the
// deployed resources' context into the leading system message (or prepending
// one) and attaching their function tools.
func (w *Worker) buildRequest(ctx context.Context, job *model.Job) adapter.ChatRequest {
	msgs := make([]adapter.Message, 0, len(job.Messages)+1)
	for _, m := range job.Messages {
		msgs = append(msgs, adapter.Message{Role: m.Role, Content: m.Content})
	}

	if prompt := w.resources.BuildSystemPrompt(job.DeployedResources); prompt != "" {
		if len(msgs) > 0 && msgs[0].Role == "system" {
			msgs[0].Content = strings.TrimSpace(msgs[0].Content + "\n\n" + prompt)
		} else {
			msgs = append([]adapter.Message{{Role: "system", Content: prompt}}, msgs...)
		}
	}

	req := adapter.ChatRequest{
		Model:       job.Model,
		Temperature: job.Temperature,
		Messages:    msgs,
		Tools:       w.resources.BuildTools(job.DeployedResources),
	}
	if len(req.Tools) > 0 {
		resources := job.DeployedResources
		req.RunTool = func(ctx context.Context, call adapter.ToolCall) string {
			return w.resources.ExecuteTool(ctx, call, resources)
		}
	}
	return req
}
