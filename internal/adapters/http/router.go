package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kirillkom/podcast-qa/internal/core/domain"
	"github.com/kirillkom/podcast-qa/internal/core/ports"
	"github.com/kirillkom/podcast-qa/internal/observability/metrics"
)

const maxQuestionBodyBytes = 64 << 10

// Options tunes traffic control on the /v1 endpoints. Zero values disable
// the corresponding control.
type Options struct {
	RateLimitRPS     float64
	RateLimitBurst   int
	MaxInFlight      int
	BackpressureWait time.Duration
	RequestTimeout   time.Duration
}

type Router struct {
	answers ports.QuestionAnswerer
	index   ports.IndexManager
	metrics *metrics.HTTPServerMetrics
	opts    Options
}

func NewRouter(
	answers ports.QuestionAnswerer,
	index ports.IndexManager,
	httpMetrics *metrics.HTTPServerMetrics,
	opts Options,
) *Router {
	return &Router{
		answers: answers,
		index:   index,
		metrics: httpMetrics,
		opts:    opts,
	}
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("/v1/answer", rt.answer)
	api.HandleFunc("/v1/index", rt.indexManifest)
	api.HandleFunc("/v1/index/reload", rt.reloadIndex)

	var controlled http.Handler = api
	controlled = backpressureMiddleware(controlled, rt.opts.MaxInFlight, rt.opts.BackpressureWait)
	controlled = rateLimitMiddleware(controlled, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.Handle("/v1/", controlled)

	var handler http.Handler = mux
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
		handler = rt.metrics.Middleware("api", handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type healthResponse struct {
	Status     string `json:"status"`
	IndexReady bool   `json:"index_ready"`
	BuildID    string `json:"build_id,omitempty"`
	Chunks     int    `json:"chunks,omitempty"`
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok"}
	if manifest, ok := rt.index.Manifest(); ok {
		resp.IndexReady = true
		resp.BuildID = manifest.BuildID
		resp.Chunks = manifest.ChunkCount
	}
	writeJSON(w, http.StatusOK, resp)
}

type answerRequest struct {
	Question string `json:"question"`
}

type answerChunk struct {
	ChunkID string  `json:"chunk_id"`
	Episode string  `json:"episode"`
	Source  string  `json:"source"`
	Score   float64 `json:"score"`
	Rank    int     `json:"rank"`
}

type answerResponse struct {
	Text    string        `json:"text"`
	Sources []string      `json:"sources"`
	Chunks  []answerChunk `json:"chunks"`
}

func (rt *Router) answer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	var req answerRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxQuestionBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:     "invalid JSON body",
			RequestID: requestIDFromContext(r.Context()),
		})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:     "question is required",
			RequestID: requestIDFromContext(r.Context()),
		})
		return
	}

	ctx := r.Context()
	if rt.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rt.opts.RequestTimeout)
		defer cancel()
	}

	answer, err := rt.answers.Answer(ctx, req.Question)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAnswerResponse(answer))
}

func toAnswerResponse(answer *domain.Answer) answerResponse {
	resp := answerResponse{
		Text:    answer.Text,
		Sources: answer.Sources,
		Chunks:  make([]answerChunk, 0, len(answer.Chunks)),
	}
	if resp.Sources == nil {
		resp.Sources = []string{}
	}
	for _, c := range answer.Chunks {
		resp.Chunks = append(resp.Chunks, answerChunk{
			ChunkID: c.ChunkID,
			Episode: c.Episode(),
			Source:  c.Source(),
			Score:   c.Score,
			Rank:    c.Rank,
		})
	}
	return resp
}

func (rt *Router) indexManifest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	manifest, ok := rt.index.Manifest()
	if !ok {
		writeError(w, r, domain.WrapError(domain.ErrIndexNotReady, "index manifest", errors.New("no index loaded")))
		return
	}
	writeJSON(w, http.StatusOK, manifest)
}

func (rt *Router) reloadIndex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	if err := rt.index.Reload(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	manifest, _ := rt.index.Manifest()
	writeJSON(w, http.StatusOK, manifest)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("request_id", requestIDFromContext(r.Context())).Msg("request_failed")
	}
	writeJSON(w, status, errorResponse{
		Error:     err.Error(),
		RequestID: requestIDFromContext(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn().Err(err).Msg("http_response_encode_failed")
	}
}
