package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/piyumals/kathana/internal/model"
)

const testRepo = "user/stories"

// fakeHub serves just enough of the hub API surface for the client
// tests: row pages, repo info, file resolution, commits.
type fakeHub struct {
	t       *testing.T
	records []model.StoryRecord
	rawRows []string // overrides records when set, to inject malformed rows
	files   map[string][]byte

	commitBodies [][]byte
	failAll      bool
}

func (f *fakeHub) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/rows", func(w http.ResponseWriter, r *http.Request) {
		if f.failAll {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			f.t.Errorf("Authorization = %q, want bearer token", got)
		}
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		length, _ := strconv.Atoi(r.URL.Query().Get("length"))
		if length > 100 {
			http.Error(w, "length above limit", http.StatusUnprocessableEntity)
			return
		}

		rows := f.rows()
		total := len(rows)
		end := offset + length
		if offset > total {
			offset = total
		}
		if end > total {
			end = total
		}

		var sb strings.Builder
		sb.WriteString(`{"rows":[`)
		for i := offset; i < end; i++ {
			if i > offset {
				sb.WriteString(",")
			}
			fmt.Fprintf(&sb, `{"row_idx":%d,"row":%s}`, i, rows[i])
		}
		fmt.Fprintf(&sb, `],"num_rows_total":%d}`, total)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sb.String()))
	})

	mux.HandleFunc("/api/datasets/"+testRepo+"/commit/main", func(w http.ResponseWriter, r *http.Request) {
		if f.failAll {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if r.Method != http.MethodPost {
			f.t.Errorf("commit method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-ndjson" {
			f.t.Errorf("commit content type = %q, want NDJSON", ct)
		}
		var body bytes.Buffer
		_, _ = body.ReadFrom(r.Body)
		f.commitBodies = append(f.commitBodies, body.Bytes())
		_, _ = w.Write([]byte(`{"success":true}`))
	})

	mux.HandleFunc("/api/datasets/"+testRepo+"/revision/main", func(w http.ResponseWriter, r *http.Request) {
		names := make([]string, 0, len(f.files))
		for name := range f.files {
			names = append(names, name)
		}
		siblings := make([]map[string]string, 0, len(names))
		for _, name := range names {
			siblings = append(siblings, map[string]string{"rfilename": name})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"siblings": siblings})
	})

	mux.HandleFunc("/api/datasets/"+testRepo+"/commits/main", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"id":"abc","title":"Merge pending submissions (20240102T030405Z) - merged 2 entries","message":"","date":"2024-01-02T03:04:05.000Z"},
			{"id":"def","title":"Add pending submission 20240101T000000Z","message":"","date":"2024-01-01T00:00:00.000Z"}
		]`))
	})

	mux.HandleFunc("/datasets/"+testRepo+"/resolve/main/", func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/datasets/"+testRepo+"/resolve/main/")
		data, ok := f.files[path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	})

	return mux
}

func (f *fakeHub) rows() []string {
	if f.rawRows != nil {
		return f.rawRows
	}
	rows := make([]string, len(f.records))
	for i, rec := range f.records {
		data, _ := json.Marshal(rec)
		rows[i] = string(data)
	}
	return rows
}

func newTestHub(t *testing.T, fake *fakeHub) (*Hub, *httptest.Server) {
	t.Helper()
	fake.t = t
	if fake.files == nil {
		fake.files = make(map[string][]byte)
	}
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	hub := NewHub(model.HubConfig{
		Endpoint:     server.URL,
		RowsEndpoint: server.URL,
		Token:        "test-token",
		Repo:         testRepo,
	})
	return hub, server
}

func manyRecords(n int) []model.StoryRecord {
	records := make([]model.StoryRecord, n)
	for i := range records {
		records[i] = model.StoryRecord{Text: fmt.Sprintf("story number %d", i)}
	}
	return records
}

func TestHub_FetchWindow(t *testing.T) {
	hub, _ := newTestHub(t, &fakeHub{records: manyRecords(250)})

	window, err := hub.FetchWindow(context.Background(), 100)
	if err != nil {
		t.Fatalf("FetchWindow: %v", err)
	}
	if len(window) != 100 {
		t.Fatalf("len(window) = %d, want 100", len(window))
	}
	if window[0].Text != "story number 150" || window[99].Text != "story number 249" {
		t.Errorf("window spans %q..%q, want the 100 most recent", window[0].Text, window[99].Text)
	}
}

func TestHub_FetchWindow_SmallRepo(t *testing.T) {
	hub, _ := newTestHub(t, &fakeHub{records: manyRecords(7)})

	window, err := hub.FetchWindow(context.Background(), 100)
	if err != nil {
		t.Fatalf("FetchWindow: %v", err)
	}
	if len(window) != 7 {
		t.Errorf("len(window) = %d, want all 7 records", len(window))
	}
}

func TestHub_FetchWindow_EmptyRepo(t *testing.T) {
	hub, _ := newTestHub(t, &fakeHub{})

	window, err := hub.FetchWindow(context.Background(), 100)
	if err != nil {
		t.Fatalf("FetchWindow: %v", err)
	}
	if len(window) != 0 {
		t.Errorf("len(window) = %d, want 0", len(window))
	}
}

func TestHub_StreamAll(t *testing.T) {
	hub, _ := newTestHub(t, &fakeHub{records: manyRecords(250)})

	batches := hub.StreamAll(context.Background(), 100)
	var sizes []int
	var count int
	for batches.Next() {
		sizes = append(sizes, len(batches.Batch()))
		count += len(batches.Batch())
	}
	if err := batches.Err(); err != nil {
		t.Fatalf("stream: %v", err)
	}
	if count != 250 {
		t.Errorf("streamed %d records, want 250", count)
	}
	want := []int{100, 100, 50}
	if fmt.Sprint(sizes) != fmt.Sprint(want) {
		t.Errorf("batch sizes = %v, want %v", sizes, want)
	}
}

func TestHub_StreamAll_SkipsMalformedRows(t *testing.T) {
	hub, _ := newTestHub(t, &fakeHub{rawRows: []string{
		`{"story":"a fine story"}`,
		`{"story":12345}`,
		`{"story":"another fine story"}`,
	}})

	batches := hub.StreamAll(context.Background(), 10)
	var all []model.StoryRecord
	for batches.Next() {
		all = append(all, batches.Batch()...)
	}
	if err := batches.Err(); err != nil {
		t.Fatalf("stream: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("kept %d records, want 2 (malformed row skipped)", len(all))
	}
}

func TestHub_StreamAll_RemoteFailure(t *testing.T) {
	hub, _ := newTestHub(t, &fakeHub{failAll: true})

	batches := hub.StreamAll(context.Background(), 10)
	if batches.Next() {
		t.Fatal("Next() = true on a failing stream")
	}
	if err := batches.Err(); !IsRemote(err) {
		t.Errorf("Err() = %v, want a RemoteError", err)
	}
}

func TestHub_Append(t *testing.T) {
	fake := &fakeHub{}
	hub, _ := newTestHub(t, fake)

	fixed := time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)
	origNow := nowFunc
	nowFunc = func() time.Time { return fixed }
	defer func() { nowFunc = origNow }()

	message := "Add pending submission 20240304T050607Z"
	err := hub.Append(context.Background(), []model.StoryRecord{{Text: "ගමක ළමයෙක් සිටියා"}}, message)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	if len(fake.commitBodies) != 1 {
		t.Fatalf("commits = %d, want 1", len(fake.commitBodies))
	}

	scanner := bufio.NewScanner(bytes.NewReader(fake.commitBodies[0]))

	// Header line carries the commit message.
	if !scanner.Scan() {
		t.Fatal("empty commit payload")
	}
	var header struct {
		Key   string `json:"key"`
		Value struct {
			Summary string `json:"summary"`
		} `json:"value"`
	}
	if err := json.Unmarshal(scanner.Bytes(), &header); err != nil {
		t.Fatalf("decode header line: %v", err)
	}
	if header.Key != "header" || header.Value.Summary != message {
		t.Errorf("header = %+v, want summary %q", header, message)
	}

	// One file op creating the pending entry.
	if !scanner.Scan() {
		t.Fatal("missing file op line")
	}
	var op struct {
		Key   string `json:"key"`
		Value struct {
			Path     string `json:"path"`
			Content  string `json:"content"`
			Encoding string `json:"encoding"`
		} `json:"value"`
	}
	if err := json.Unmarshal(scanner.Bytes(), &op); err != nil {
		t.Fatalf("decode file op: %v", err)
	}
	if op.Key != "file" || op.Value.Path != "pending/entry_20240304T050607Z.jsonl" {
		t.Errorf("file op = %+v, want timestamped pending path", op)
	}

	content, err := base64.StdEncoding.DecodeString(op.Value.Content)
	if err != nil {
		t.Fatalf("decode content: %v", err)
	}
	var entry model.PendingEntry
	if err := json.Unmarshal(bytes.TrimSpace(content), &entry); err != nil {
		t.Fatalf("decode pending entry: %v", err)
	}
	if entry.Story != "ගමක ළමයෙක් සිටියා" || entry.Status != "pending" || entry.TimestampUTC != "20240304T050607Z" {
		t.Errorf("entry = %+v", entry)
	}

	if scanner.Scan() {
		t.Errorf("unexpected extra commit line: %s", scanner.Text())
	}
}

func TestHub_AppendFailure(t *testing.T) {
	hub, _ := newTestHub(t, &fakeHub{failAll: true})

	err := hub.Append(context.Background(), []model.StoryRecord{{Text: "x"}}, "msg")
	if !IsRemote(err) {
		t.Errorf("err = %v, want a RemoteError", err)
	}
}

func TestHub_ListFilesAndReadFile(t *testing.T) {
	fake := &fakeHub{files: map[string][]byte{
		"pending/entry_1.jsonl": []byte(`{"story":"abc"}` + "\n"),
	}}
	hub, _ := newTestHub(t, fake)

	files, err := hub.ListFiles(context.Background())
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 1 || files[0] != "pending/entry_1.jsonl" {
		t.Errorf("files = %v", files)
	}

	data, err := hub.ReadFile(context.Background(), "pending/entry_1.jsonl")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Contains(data, []byte("abc")) {
		t.Errorf("data = %q", data)
	}

	_, err = hub.ReadFile(context.Background(), "missing.jsonl")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestHub_ListCommits(t *testing.T) {
	hub, _ := newTestHub(t, &fakeHub{})

	commits, err := hub.ListCommits(context.Background())
	if err != nil {
		t.Fatalf("ListCommits: %v", err)
	}
	if len(commits) != 2 {
		t.Fatalf("commits = %d, want 2", len(commits))
	}
	if !strings.HasPrefix(commits[0].Title, "Merge pending submissions") {
		t.Errorf("title = %q", commits[0].Title)
	}
	want := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	if !commits[0].Date.Equal(want) {
		t.Errorf("date = %v, want %v", commits[0].Date, want)
	}
}
