package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/podcast-qa/internal/core/domain"
	"github.com/kirillkom/podcast-qa/internal/core/ports"
	"github.com/kirillkom/podcast-qa/internal/infrastructure/resilience"
)

const locationScheme = "qdrant://"

// Client stores each index build in its own collection, named after the
// configured prefix and the build id.
type Client struct {
	baseURL    string
	prefix     string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Option func(*Client)

func WithExecutor(e *resilience.Executor) Option {
	return func(c *Client) { c.executor = e }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

func New(baseURL, prefix string, opts ...Option) *Client {
	if prefix == "" {
		prefix = "podcast_chunks"
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		prefix:     prefix,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) collectionFor(buildID string) string {
	id := strings.ReplaceAll(buildID, "-", "")
	if len(id) > 12 {
		id = id[:12]
	}
	return c.prefix + "_" + id
}

// Prune deletes collections under this client's prefix that none of the given
// manifests point at. Collections outside the prefix are left alone.
func (c *Client) Prune(ctx context.Context, keep ...domain.IndexManifest) (int, error) {
	kept := make(map[string]bool, len(keep))
	for _, m := range keep {
		if name, ok := strings.CutPrefix(m.Location, locationScheme); ok {
			kept[name] = true
		}
	}

	var list struct {
		Result struct {
			Collections []struct {
				Name string `json:"name"`
			} `json:"collections"`
		} `json:"result"`
	}
	if err := c.do(ctx, http.MethodGet, "/collections", nil, &list, "list collections"); err != nil {
		return 0, err
	}

	var (
		removed int
		errs    []error
	)
	for _, coll := range list.Result.Collections {
		if kept[coll.Name] || !c.ownsCollection(coll.Name) {
			continue
		}
		if err := c.do(ctx, http.MethodDelete, "/collections/"+coll.Name, nil, nil, "delete collection"); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// ownsCollection matches names produced by collectionFor.
func (c *Client) ownsCollection(name string) bool {
	id, ok := strings.CutPrefix(name, c.prefix+"_")
	if !ok || id == "" || len(id) > 12 {
		return false
	}
	for _, r := range id {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return false
		}
	}
	return true
}

func (c *Client) Create(_ context.Context, manifest *domain.IndexManifest) (ports.IndexBuilder, error) {
	if manifest.BuildID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "create qdrant index", errors.New("build id is required"))
	}
	collection := c.collectionFor(manifest.BuildID)
	manifest.Location = locationScheme + collection
	return &builder{client: c, collection: collection, dimension: manifest.Dimension}, nil
}

func (c *Client) Open(ctx context.Context, manifest domain.IndexManifest) (ports.VectorIndex, error) {
	collection, ok := strings.CutPrefix(manifest.Location, locationScheme)
	if !ok || collection == "" {
		return nil, domain.WrapError(domain.ErrNotFound, "open qdrant index", fmt.Errorf("unsupported location %q", manifest.Location))
	}

	var info struct {
		Result struct {
			PointsCount int `json:"points_count"`
		} `json:"result"`
	}
	if err := c.do(ctx, http.MethodGet, "/collections/"+collection, nil, &info, "collection info"); err != nil {
		var statusErr *HTTPStatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, domain.WrapError(domain.ErrNotFound, "open qdrant index", err)
		}
		return nil, err
	}
	if manifest.ChunkCount > 0 && info.Result.PointsCount != manifest.ChunkCount {
		return nil, domain.WrapError(
			domain.ErrStaleIndex,
			"open qdrant index",
			fmt.Errorf("collection holds %d points, manifest records %d", info.Result.PointsCount, manifest.ChunkCount),
		)
	}
	return &Index{client: c, collection: collection, dimension: manifest.Dimension, count: info.Result.PointsCount}, nil
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

type builder struct {
	client     *Client
	collection string
	dimension  int
	ensured    bool
	seq        int
}

func (b *builder) Add(ctx context.Context, entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if b.dimension == 0 {
		b.dimension = len(entries[0].Vector)
	}

	points := make([]point, 0, len(entries))
	for _, e := range entries {
		if len(e.Vector) != b.dimension {
			return domain.WrapError(
				domain.ErrEmbeddingDimensionMismatch,
				"add qdrant point",
				fmt.Errorf("entry %s has %d values, index dimension is %d", e.ID, len(e.Vector), b.dimension),
			)
		}
		points = append(points, point{
			ID:     pointID(e.ID),
			Vector: e.Vector,
			Payload: map[string]any{
				"chunk_id": e.ID,
				"text":     e.Text,
				"seq":      b.seq,
				"metadata": e.Metadata,
			},
		})
		b.seq++
	}

	if !b.ensured {
		if err := b.client.createCollection(ctx, b.collection, b.dimension); err != nil {
			return err
		}
		b.ensured = true
	}
	path := fmt.Sprintf("/collections/%s/points?wait=true", b.collection)
	return b.client.do(ctx, http.MethodPut, path, map[string]any{"points": points}, nil, "upsert")
}

func (b *builder) Commit(context.Context) (ports.VectorIndex, error) {
	if !b.ensured {
		return nil, domain.WrapError(domain.ErrEmptyCorpus, "commit qdrant index", errors.New("no points were added"))
	}
	return &Index{client: b.client, collection: b.collection, dimension: b.dimension, count: b.seq}, nil
}

func (b *builder) Discard(ctx context.Context) error {
	if !b.ensured {
		return nil
	}
	return b.client.do(ctx, http.MethodDelete, "/collections/"+b.collection, nil, nil, "delete collection")
}

type Index struct {
	client     *Client
	collection string
	dimension  int
	count      int
}

func (i *Index) Dimension() int { return i.dimension }
func (i *Index) Count() int     { return i.count }

func (i *Index) Query(ctx context.Context, vector []float32, fetchK int) ([]domain.Candidate, error) {
	if fetchK <= 0 || i.count == 0 {
		return nil, nil
	}
	reqBody := map[string]any{
		"vector":       vector,
		"limit":        fetchK,
		"with_payload": true,
		"with_vector":  true,
	}

	var searchResp struct {
		Result []struct {
			Score   float64   `json:"score"`
			Vector  []float32 `json:"vector"`
			Payload struct {
				ChunkID  string            `json:"chunk_id"`
				Text     string            `json:"text"`
				Seq      int               `json:"seq"`
				Metadata map[string]string `json:"metadata"`
			} `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", i.collection)
	if err := i.client.do(ctx, http.MethodPost, path, reqBody, &searchResp, "search"); err != nil {
		return nil, err
	}

	out := make([]domain.Candidate, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.Candidate{
			Entry: domain.IndexEntry{
				ID:       r.Payload.ChunkID,
				Vector:   r.Vector,
				Text:     r.Payload.Text,
				Metadata: r.Payload.Metadata,
			},
			Score: r.Score,
			Seq:   r.Payload.Seq,
		})
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Score != out[b].Score {
			return out[a].Score > out[b].Score
		}
		return out[a].Seq < out[b].Seq
	})
	return out, nil
}

func (c *Client) createCollection(ctx context.Context, collection string, vectorSize int) error {
	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	err := c.do(ctx, http.MethodPut, "/collections/"+collection, reqBody, nil, "create collection")
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict {
		return nil
	}
	return err
}

// pointID derives a stable uuid from the chunk id, as qdrant only accepts
// unsigned integers and uuids.
func pointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(chunkID)).String()
}

func (c *Client) do(ctx context.Context, method, path string, payload any, out any, operation string) error {
	call := func(callCtx context.Context) error {
		return c.send(callCtx, method, path, payload, out, operation)
	}
	if c.executor == nil {
		return call(ctx)
	}
	err := c.executor.Execute(ctx, "qdrant."+operation, call, classifyQdrantError)
	return wrapTemporaryIfNeeded("qdrant "+operation, err)
}

func (c *Client) send(ctx context.Context, method, path string, payload any, out any, operation string) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", operation, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &HTTPStatusError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(msg)),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}
