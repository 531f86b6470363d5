package store

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/piyumals/kathana/internal/model"
)

// The dataset viewer caps row reads at 100 per request; larger batch
// sizes are served as multiple page fetches.
const maxRowsPerPage = 100

// nowFunc supplies timestamps for pending file names (injectable for tests)
var nowFunc = time.Now

// Hub is the network-backed Store over the Hugging Face Hub API.
type Hub struct {
	client       *http.Client
	limiter      *rate.Limiter
	endpoint     string
	rowsEndpoint string
	token        string
	repo         string
	revision     string
	subset       string
	split        string
	pendingDir   string
	userAgent    string
	maxBytes     int64
}

// NewHub creates a Hub client from configuration. Zero values fall
// back to the built-in defaults.
func NewHub(cfg model.HubConfig) *Hub {
	def := model.DefaultConfig().Hub
	if cfg.Endpoint == "" {
		cfg.Endpoint = def.Endpoint
	}
	if cfg.RowsEndpoint == "" {
		cfg.RowsEndpoint = def.RowsEndpoint
	}
	if cfg.Revision == "" {
		cfg.Revision = def.Revision
	}
	if cfg.Subset == "" {
		cfg.Subset = def.Subset
	}
	if cfg.Split == "" {
		cfg.Split = def.Split
	}
	if cfg.PendingDir == "" {
		cfg.PendingDir = def.PendingDir
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Hub{
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy: proxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy),
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("stopped after 5 redirects")
				}
				return nil
			},
		},
		limiter:      rate.NewLimiter(limit, burst),
		endpoint:     strings.TrimRight(cfg.Endpoint, "/"),
		rowsEndpoint: strings.TrimRight(cfg.RowsEndpoint, "/"),
		token:        cfg.Token,
		repo:         cfg.Repo,
		revision:     cfg.Revision,
		subset:       cfg.Subset,
		split:        cfg.Split,
		pendingDir:   cfg.PendingDir,
		userAgent:    cfg.UserAgent,
		maxBytes:     cfg.MaxBodyBytes,
	}
}

// proxyFunc prefers explicit proxy overrides and falls back to the
// process environment.
func proxyFunc(httpProxy, httpsProxy string) func(*http.Request) (*url.URL, error) {
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment
	}
	return func(req *http.Request) (*url.URL, error) {
		if req.URL.Scheme == "https" && httpsProxy != "" {
			return url.Parse(httpsProxy)
		}
		if httpProxy != "" {
			return url.Parse(httpProxy)
		}
		return http.ProxyFromEnvironment(req)
	}
}

func (h *Hub) do(ctx context.Context, op, method, rawURL string, body io.Reader, contentType string) (*http.Response, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, &RemoteError{Op: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, &RemoteError{Op: op, Err: fmt.Errorf("create request: %w", err)}
	}
	if h.userAgent != "" {
		req.Header.Set("User-Agent", h.userAgent)
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &RemoteError{Op: op, Err: err}
	}
	return resp, nil
}

// statusErr drains and closes the response and builds an error for a
// non-2xx status.
func statusErr(op string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	_ = resp.Body.Close()
	msg := strings.TrimSpace(string(snippet))
	if msg != "" {
		return &RemoteError{Op: op, Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, msg)}
	}
	return &RemoteError{Op: op, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
}

// rowsPage mirrors the dataset viewer /rows response.
type rowsPage struct {
	Rows []struct {
		RowIdx int             `json:"row_idx"`
		Row    json.RawMessage `json:"row"`
	} `json:"rows"`
	NumRowsTotal int64 `json:"num_rows_total"`
}

func (h *Hub) rowsURL(offset int64, length int) string {
	q := url.Values{}
	q.Set("dataset", h.repo)
	q.Set("config", h.subset)
	q.Set("split", h.split)
	q.Set("offset", strconv.FormatInt(offset, 10))
	q.Set("length", strconv.Itoa(length))
	return h.rowsEndpoint + "/rows?" + q.Encode()
}

// fetchRows reads one page of rows. Rows that do not match the record
// schema are skipped rather than failing the page; raw is the number
// of rows the server actually returned, so callers can advance their
// offset correctly even when rows were skipped.
func (h *Hub) fetchRows(ctx context.Context, op string, offset int64, length int) (records []model.StoryRecord, raw int, total int64, err error) {
	resp, err := h.do(ctx, op, http.MethodGet, h.rowsURL(offset, length), nil, "")
	if err != nil {
		return nil, 0, 0, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, 0, 0, statusErr(op, resp)
	}
	defer resp.Body.Close()

	var page rowsPage
	if err := json.NewDecoder(io.LimitReader(resp.Body, h.maxBytes)).Decode(&page); err != nil {
		return nil, 0, 0, &RemoteError{Op: op, Err: fmt.Errorf("decode rows: %w", err)}
	}

	records = make([]model.StoryRecord, 0, len(page.Rows))
	for _, row := range page.Rows {
		var rec model.StoryRecord
		if err := json.Unmarshal(row.Row, &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, len(page.Rows), page.NumRowsTotal, nil
}

// FetchWindow returns up to the most recent n records.
func (h *Hub) FetchWindow(ctx context.Context, n int) ([]model.StoryRecord, error) {
	if n <= 0 {
		return nil, nil
	}

	// One probe request to learn the corpus size, then read pages
	// from the tail.
	_, _, total, err := h.fetchRows(ctx, "fetch window", 0, 1)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, nil
	}

	start := total - int64(n)
	if start < 0 {
		start = 0
	}

	var window []model.StoryRecord
	for offset := start; offset < total; {
		length := maxRowsPerPage
		if remaining := total - offset; remaining < int64(length) {
			length = int(remaining)
		}
		records, raw, _, err := h.fetchRows(ctx, "fetch window", offset, length)
		if err != nil {
			return nil, err
		}
		if raw == 0 {
			break
		}
		window = append(window, records...)
		offset += int64(raw)
	}
	return window, nil
}

// StreamAll begins a fresh batched iteration over the whole dataset.
func (h *Hub) StreamAll(ctx context.Context, batchSize int) Batches {
	if batchSize <= 0 {
		batchSize = maxRowsPerPage
	}
	return &hubBatches{hub: h, ctx: ctx, batchSize: batchSize, total: -1}
}

type hubBatches struct {
	hub       *Hub
	ctx       context.Context
	batchSize int
	offset    int64
	total     int64
	batch     []model.StoryRecord
	err       error
	done      bool
}

func (b *hubBatches) Next() bool {
	if b.done || b.err != nil {
		return false
	}
	if b.total >= 0 && b.offset >= b.total {
		b.done = true
		return false
	}

	// Batches above the page cap are assembled from several reads.
	var batch []model.StoryRecord
	want := b.batchSize
	for want > 0 {
		length := want
		if length > maxRowsPerPage {
			length = maxRowsPerPage
		}
		records, raw, total, err := b.hub.fetchRows(b.ctx, "stream dataset", b.offset, length)
		if err != nil {
			b.err = err
			return false
		}
		b.total = total
		if raw == 0 {
			b.done = true
			break
		}
		batch = append(batch, records...)
		b.offset += int64(raw)
		want -= raw
		if b.offset >= b.total {
			b.done = true
			break
		}
	}

	if len(batch) == 0 {
		b.done = true
		return false
	}
	b.batch = batch
	return true
}

func (b *hubBatches) Batch() []model.StoryRecord { return b.batch }

func (b *hubBatches) Err() error { return b.err }

// Append writes the records as one pending JSONL file in a single
// commit. The file name carries a UTC timestamp so pending entries
// sort chronologically.
func (h *Hub) Append(ctx context.Context, records []model.StoryRecord, message string) error {
	if len(records) == 0 {
		return nil
	}

	ts := UTCStamp(nowFunc())
	var buf bytes.Buffer
	for _, rec := range records {
		line, err := json.Marshal(model.PendingEntry{
			Story:        rec.Text,
			TimestampUTC: ts,
			Status:       "pending",
		})
		if err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	path := h.pendingDir + "/entry_" + ts + ".jsonl"
	return h.Commit(ctx, message, []CommitOp{AddFile(path, buf.Bytes())})
}

// Commit posts an NDJSON commit payload: a header line followed by one
// line per file operation.
func (h *Hub) Commit(ctx context.Context, message string, ops []CommitOp) error {
	if len(ops) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	header := map[string]any{
		"key":   "header",
		"value": map[string]string{"summary": message, "description": ""},
	}
	if err := enc.Encode(header); err != nil {
		return fmt.Errorf("encode commit header: %w", err)
	}
	for _, op := range ops {
		var line map[string]any
		if op.Delete {
			line = map[string]any{
				"key":   "deletedFile",
				"value": map[string]string{"path": op.Path},
			}
		} else {
			line = map[string]any{
				"key": "file",
				"value": map[string]string{
					"path":     op.Path,
					"content":  base64.StdEncoding.EncodeToString(op.Content),
					"encoding": "base64",
				},
			}
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("encode commit op: %w", err)
		}
	}

	commitURL := fmt.Sprintf("%s/api/datasets/%s/commit/%s", h.endpoint, h.repo, url.PathEscape(h.revision))
	resp, err := h.do(ctx, "commit", http.MethodPost, commitURL, &buf, "application/x-ndjson")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusErr("commit", resp)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return nil
}

// ListFiles returns every file path in the repo.
func (h *Hub) ListFiles(ctx context.Context) ([]string, error) {
	infoURL := fmt.Sprintf("%s/api/datasets/%s/revision/%s", h.endpoint, h.repo, url.PathEscape(h.revision))
	resp, err := h.do(ctx, "list files", http.MethodGet, infoURL, nil, "")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusErr("list files", resp)
	}
	defer resp.Body.Close()

	var info struct {
		Siblings []struct {
			Rfilename string `json:"rfilename"`
		} `json:"siblings"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, h.maxBytes)).Decode(&info); err != nil {
		return nil, &RemoteError{Op: "list files", Err: fmt.Errorf("decode repo info: %w", err)}
	}

	files := make([]string, 0, len(info.Siblings))
	for _, s := range info.Siblings {
		files = append(files, s.Rfilename)
	}
	return files, nil
}

// ReadFile downloads one repo file.
func (h *Hub) ReadFile(ctx context.Context, path string) ([]byte, error) {
	fileURL := fmt.Sprintf("%s/datasets/%s/resolve/%s/%s", h.endpoint, h.repo, url.PathEscape(h.revision), path)
	resp, err := h.do(ctx, "read file", http.MethodGet, fileURL, nil, "")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		_ = resp.Body.Close()
		return nil, &RemoteError{Op: "read file", Err: fmt.Errorf("%w: %s", ErrNotFound, path)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusErr("read file", resp)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBytes))
	if err != nil {
		return nil, &RemoteError{Op: "read file", Err: fmt.Errorf("read body: %w", err)}
	}
	return data, nil
}

// ListCommits returns the repo commit history, newest first.
func (h *Hub) ListCommits(ctx context.Context) ([]Commit, error) {
	commitsURL := fmt.Sprintf("%s/api/datasets/%s/commits/%s", h.endpoint, h.repo, url.PathEscape(h.revision))
	resp, err := h.do(ctx, "list commits", http.MethodGet, commitsURL, nil, "")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusErr("list commits", resp)
	}
	defer resp.Body.Close()

	var commits []Commit
	if err := json.NewDecoder(io.LimitReader(resp.Body, h.maxBytes)).Decode(&commits); err != nil {
		return nil, &RemoteError{Op: "list commits", Err: fmt.Errorf("decode commits: %w", err)}
	}
	return commits, nil
}
