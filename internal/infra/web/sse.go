// File: internal/infra/web/sse.go
package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"llm-chat-gateway/internal/domain/model"
	"llm-chat-gateway/internal/infra/logging"
	"llm-chat-gateway/internal/infra/metrics"

	"github.com/go-chi/chi/v5"
)

// handleStream is the SSE relay for one job: it drains the job's output
// channel and re-emits each event on the wire, closing after the terminal
// event. A disconnect before the terminal event cancels the upstream call.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	log := logging.With(logging.WithJobID(r.Context(), jobID), s.log)

	st, ok := s.streams.Lookup(jobID)
	if !ok {
		// Unknown or already-drained job: a single error event, then close.
		writeEvent(w, model.ErrorEvent("Unknown job ID"))
		flusher.Flush()
		log.Warn().Msg("stream requested for unknown job")
		return
	}

	metrics.StreamOpened()
	defer metrics.StreamClosed()
	log.Debug().Msg("stream opened")

	keepalive := time.NewTicker(s.keepalive)
	defer keepalive.Stop()
	// No event within the cutoff means the job is stalled: close with a
	// synthetic error instead of hanging the browser forever.
	stall := time.NewTimer(s.streamTimeout)
	defer stall.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			s.streams.CancelJob(jobID)
			s.streams.Remove(jobID)
			log.Info().Msg("client disconnected, job cancelled")
			return

		case <-keepalive.C:
			fmt.Fprintf(w, ":keepalive\n\n")
			flusher.Flush()

		case <-stall.C:
			s.streams.CancelJob(jobID)
			s.streams.Remove(jobID)
			writeEvent(w, model.ErrorEvent(fmt.Sprintf("No response after %s", s.streamTimeout)))
			flusher.Flush()
			metrics.IncStreamEvent(string(model.OutputError))
			log.Warn().Dur("timeout", s.streamTimeout).Msg("stream stalled, closing")
			return

		case ev := <-st.Events():
			stall.Stop()
			stall.Reset(s.streamTimeout)
			if ev.Terminal() {
				s.streams.Remove(jobID)
			}
			writeEvent(w, ev)
			flusher.Flush()
			metrics.IncStreamEvent(string(ev.Kind))
			if ev.Terminal() {
				log.Debug().Str("kind", string(ev.Kind)).Msg("stream finished")
				return
			}
		}
	}
}

// writeEvent serializes one output event in the wire format the browser
// client parses: named event plus a JSON data line.
func writeEvent(w http.ResponseWriter, ev model.OutputEvent) {
	var payload any
	switch ev.Kind {
	case model.OutputChunk:
		payload = map[string]string{"content": ev.Text}
	case model.OutputError:
		payload = map[string]string{"error": ev.Err}
	default:
		payload = map[string]string{}
	}
	data, _ := json.Marshal(payload)
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data)
}
