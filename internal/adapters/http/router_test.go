package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/podcast-qa/internal/core/domain"
	"github.com/kirillkom/podcast-qa/internal/observability/metrics"
)

type engineFake struct {
	ready     bool
	answer    *domain.Answer
	err       error
	reloadErr error
	reloads   int
	questions []string
}

func (f *engineFake) Answer(_ context.Context, question string) (*domain.Answer, error) {
	f.questions = append(f.questions, question)
	if f.err != nil {
		return nil, f.err
	}
	if f.answer != nil {
		return f.answer, nil
	}
	return &domain.Answer{Text: "ok"}, nil
}

func (f *engineFake) Rebuild(context.Context, bool) (domain.IndexManifest, error) {
	return domain.IndexManifest{}, errors.New("not used")
}

func (f *engineFake) Reload(context.Context) error {
	f.reloads++
	if f.reloadErr != nil {
		return f.reloadErr
	}
	f.ready = true
	return nil
}

func (f *engineFake) Manifest() (domain.IndexManifest, bool) {
	if !f.ready {
		return domain.IndexManifest{}, false
	}
	return domain.IndexManifest{BuildID: "build-1", ChunkCount: 3, EmbeddingModel: "fake/embed"}, true
}

func newTestHandler(engine *engineFake) http.Handler {
	return NewRouter(engine, engine, nil, Options{}).Handler()
}

func postAnswer(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/answer", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestAnswerReturnsTextSourcesAndChunks(t *testing.T) {
	engine := &engineFake{
		ready: true,
		answer: &domain.Answer{
			Text:    "They talked about playdates.",
			Sources: []string{"1", "2"},
			Chunks: []domain.RetrievedChunk{
				{
					ChunkID:  "playdate1.txt#1",
					Score:    0.91,
					Rank:     1,
					Metadata: map[string]string{domain.MetaEpisode: "1", domain.MetaSource: "playdate1.txt"},
				},
				{
					ChunkID:  "playdate2.txt#1",
					Score:    0.42,
					Rank:     2,
					Metadata: map[string]string{domain.MetaEpisode: "2", domain.MetaSource: "playdate2.txt"},
				},
			},
		},
	}

	res := postAnswer(t, newTestHandler(engine), `{"question":"  what about playdates?  "}`)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var resp answerResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Text != "They talked about playdates." {
		t.Fatalf("unexpected text %q", resp.Text)
	}
	if len(resp.Sources) != 2 || resp.Sources[0] != "1" || resp.Sources[1] != "2" {
		t.Fatalf("unexpected sources %v", resp.Sources)
	}
	if len(resp.Chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(resp.Chunks))
	}
	first := resp.Chunks[0]
	if first.ChunkID != "playdate1.txt#1" || first.Episode != "1" || first.Source != "playdate1.txt" || first.Rank != 1 {
		t.Fatalf("unexpected first chunk %+v", first)
	}
	if len(engine.questions) != 1 {
		t.Fatalf("expected one engine call, got %d", len(engine.questions))
	}
}

func TestAnswerEmptyContextStillReturnsEmptyArrays(t *testing.T) {
	engine := &engineFake{ready: true, answer: &domain.Answer{Text: "I don't know."}}

	res := postAnswer(t, newTestHandler(engine), `{"question":"unrelated"}`)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), `"sources":[]`) || !strings.Contains(res.Body.String(), `"chunks":[]`) {
		t.Fatalf("expected empty arrays, got %s", res.Body.String())
	}
}

func TestAnswerRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"question":`},
		{name: "missing question", body: `{}`},
		{name: "blank question", body: `{"question":"   "}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &engineFake{ready: true}
			res := postAnswer(t, newTestHandler(engine), tt.body)
			if res.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", res.Code)
			}
			if len(engine.questions) != 0 {
				t.Fatalf("engine must not be called for a bad request")
			}
		})
	}
}

func TestAnswerRejectsGet(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/answer", nil)
	res := httptest.NewRecorder()
	newTestHandler(&engineFake{}).ServeHTTP(res, req)
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}

func TestAnswerMapsDomainErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "invalid input", err: domain.WrapError(domain.ErrInvalidInput, "answer", errors.New("bad")), want: http.StatusBadRequest},
		{name: "not ready", err: domain.WrapError(domain.ErrIndexNotReady, "answer", errors.New("no index")), want: http.StatusServiceUnavailable},
		{name: "temporary", err: domain.WrapError(domain.ErrTemporary, "embed", errors.New("503")), want: http.StatusServiceUnavailable},
		{
			name: "temporary generation failure",
			err: domain.WrapError(domain.ErrGenerationFailed, "generate answer",
				domain.WrapError(domain.ErrTemporary, "ollama.generate", errors.New("timeout"))),
			want: http.StatusServiceUnavailable,
		},
		{name: "generation failed", err: domain.WrapError(domain.ErrGenerationFailed, "generate answer", errors.New("boom")), want: http.StatusBadGateway},
		{name: "dimension mismatch", err: domain.WrapError(domain.ErrEmbeddingDimensionMismatch, "embed query", errors.New("3 vs 4")), want: http.StatusInternalServerError},
		{name: "deadline", err: context.DeadlineExceeded, want: http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := postAnswer(t, newTestHandler(&engineFake{ready: true, err: tt.err}), `{"question":"q"}`)
			if res.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, res.Code)
			}
			var resp errorResponse
			if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if resp.Error == "" || resp.RequestID == "" {
				t.Fatalf("expected error and request id, got %+v", resp)
			}
		})
	}
}

func TestHealthzReportsIndexReadiness(t *testing.T) {
	engine := &engineFake{}
	handler := newTestHandler(engine)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var before healthResponse
	if err := json.NewDecoder(res.Body).Decode(&before); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if before.IndexReady {
		t.Fatalf("index must not be ready before a build")
	}

	engine.ready = true
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var after healthResponse
	if err := json.NewDecoder(res.Body).Decode(&after); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !after.IndexReady || after.BuildID != "build-1" || after.Chunks != 3 {
		t.Fatalf("unexpected health %+v", after)
	}
}

func TestIndexManifestEndpoint(t *testing.T) {
	engine := &engineFake{}
	handler := newTestHandler(engine)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/index", nil))
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before the index is loaded, got %d", res.Code)
	}

	engine.ready = true
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/index", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var manifest domain.IndexManifest
	if err := json.NewDecoder(res.Body).Decode(&manifest); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if manifest.BuildID != "build-1" {
		t.Fatalf("unexpected build id %q", manifest.BuildID)
	}
}

func TestReloadIndex(t *testing.T) {
	engine := &engineFake{}
	handler := newTestHandler(engine)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/index/reload", bytes.NewReader(nil)))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if engine.reloads != 1 || !engine.ready {
		t.Fatalf("expected one reload, got %d", engine.reloads)
	}
}

func TestReloadIndexWithoutManifestReturns404(t *testing.T) {
	engine := &engineFake{reloadErr: domain.WrapError(domain.ErrNotFound, "load manifest", errors.New("absent"))}

	res := httptest.NewRecorder()
	newTestHandler(engine).ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/index/reload", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestRequestIDIsEchoedOrGenerated(t *testing.T) {
	handler := newTestHandler(&engineFake{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-42")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if got := res.Header().Get(requestIDHeader); got != "req-42" {
		t.Fatalf("expected echoed request id, got %q", got)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated request id")
	}
}

func TestMetricsEndpointIsServed(t *testing.T) {
	engine := &engineFake{ready: true}
	handler := NewRouter(engine, engine, metrics.NewHTTPServerMetrics("api"), Options{}).Handler()

	postAnswer(t, handler, `{"question":"q"}`)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), `path="/v1/answer"`) {
		t.Fatalf("expected request metrics for /v1/answer, got:\n%s", res.Body.String())
	}
}
