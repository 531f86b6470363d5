// Package merge folds pending submissions into the main dataset file.
// It is the maintenance counterpart of the submission pipeline: list
// the pending JSONL files, download them, append their records to the
// data file, and remove the processed files, all in one commit so a
// partial merge is never observable.
package merge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/piyumals/kathana/internal/model"
	"github.com/piyumals/kathana/internal/store"
	"github.com/piyumals/kathana/internal/worker"
)

// nowFunc supplies the merge commit timestamp (injectable for tests)
var nowFunc = time.Now

// Merger merges pending submissions into the main data file.
type Merger struct {
	store      store.Store
	pendingDir string
	dataFile   string
	workers    int
}

// NewMerger creates a Merger from configuration.
func NewMerger(st store.Store, cfg *model.Config) *Merger {
	if cfg == nil {
		cfg = model.DefaultConfig()
	}
	def := model.DefaultConfig()
	pendingDir := cfg.Hub.PendingDir
	if pendingDir == "" {
		pendingDir = def.Hub.PendingDir
	}
	dataFile := cfg.Hub.DataFile
	if dataFile == "" {
		dataFile = def.Hub.DataFile
	}
	workers := cfg.Merge.DownloadWorkers
	if workers <= 0 {
		workers = def.Merge.DownloadWorkers
	}
	return &Merger{store: st, pendingDir: pendingDir, dataFile: dataFile, workers: workers}
}

// Result summarizes one merge run.
type Result struct {
	PendingFiles int
	Merged       int
	Skipped      int
}

// downloadJob fetches one pending file through the worker pool.
type downloadJob struct {
	store store.Store
	ctx   context.Context
	path  string
}

type downloadResult struct {
	path string
	data []byte
	err  error
}

func (j *downloadJob) Execute(ctx context.Context) worker.Result {
	data, err := j.store.ReadFile(j.ctx, j.path)
	return &downloadResult{path: j.path, data: data, err: err}
}

func (r *downloadResult) GetError() error { return r.err }

// Run performs one merge pass. With no pending files it is a no-op.
// Any download or commit failure aborts the run with nothing changed
// remotely.
func (m *Merger) Run(ctx context.Context) (*Result, error) {
	files, err := m.store.ListFiles(ctx)
	if err != nil {
		return nil, err
	}

	pending := m.pendingFiles(files)
	result := &Result{PendingFiles: len(pending)}
	if len(pending) == 0 {
		return result, nil
	}

	downloads, err := m.download(ctx, pending)
	if err != nil {
		return nil, err
	}

	// Pending file names carry their submission timestamp, so the
	// sorted order preserves submission order in the data file.
	var appended bytes.Buffer
	for _, path := range pending {
		merged, skipped := appendRecords(&appended, downloads[path])
		result.Merged += merged
		result.Skipped += skipped
	}
	if result.Merged == 0 {
		return result, nil
	}

	existing, err := m.store.ReadFile(ctx, m.dataFile)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	var data bytes.Buffer
	if len(existing) > 0 {
		data.Write(existing)
		if existing[len(existing)-1] != '\n' {
			data.WriteByte('\n')
		}
	}
	data.Write(appended.Bytes())

	ops := []store.CommitOp{store.AddFile(m.dataFile, data.Bytes())}
	for _, path := range pending {
		ops = append(ops, store.DeleteFile(path))
	}

	message := fmt.Sprintf("%s (%s) - merged %d entries", mergeCommitPrefix, store.UTCStamp(nowFunc()), result.Merged)
	if err := m.store.Commit(ctx, message, ops); err != nil {
		return nil, err
	}
	return result, nil
}

const mergeCommitPrefix = "Merge pending submissions"

func (m *Merger) pendingFiles(files []string) []string {
	var pending []string
	prefix := m.pendingDir + "/"
	for _, f := range files {
		if strings.HasPrefix(f, prefix) && strings.HasSuffix(f, ".jsonl") {
			pending = append(pending, f)
		}
	}
	sort.Strings(pending)
	return pending
}

// download fetches all pending files concurrently and fails the run
// on the first error.
func (m *Merger) download(ctx context.Context, paths []string) (map[string][]byte, error) {
	pool := worker.NewPool(m.workers)
	pool.Start()
	for _, path := range paths {
		pool.Submit(&downloadJob{store: m.store, ctx: ctx, path: path})
	}

	downloads := make(map[string][]byte, len(paths))
	for _, res := range pool.Wait() {
		dl := res.(*downloadResult)
		if dl.err != nil {
			return nil, fmt.Errorf("download %s: %w", dl.path, dl.err)
		}
		downloads[dl.path] = dl.data
	}
	return downloads, nil
}

// appendRecords rewrites pending entries as plain story records, one
// JSON object per line. Lines that fail to parse or carry no story are
// skipped, not fatal.
func appendRecords(buf *bytes.Buffer, data []byte) (merged, skipped int) {
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var entry model.PendingEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil || entry.Story == "" {
			skipped++
			continue
		}
		out, err := json.Marshal(model.StoryRecord{Text: entry.Story})
		if err != nil {
			skipped++
			continue
		}
		buf.Write(out)
		buf.WriteByte('\n')
		merged++
	}
	return merged, skipped
}
