package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/piyumals/kathana/internal/model"
)

// Memory is an in-memory Store used by tests and local dry runs. All
// methods honor FailWith, so remote-failure paths can be exercised
// without a network.
type Memory struct {
	mu      sync.Mutex
	records []model.StoryRecord
	files   map[string][]byte
	commits []Commit

	// FailWith, when set, makes every remote call fail with a
	// RemoteError wrapping it.
	FailWith error
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{files: make(map[string][]byte)}
}

// SetRecords replaces the dataset contents.
func (m *Memory) SetRecords(records ...model.StoryRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append([]model.StoryRecord(nil), records...)
}

// SetFile adds or replaces one repo file.
func (m *Memory) SetFile(path string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = data
}

// AddCommit prepends an entry to the commit history (newest first).
func (m *Memory) AddCommit(c Commit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commits = append([]Commit{c}, m.commits...)
}

// Records returns a copy of the dataset contents.
func (m *Memory) Records() []model.StoryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.StoryRecord(nil), m.records...)
}

// File returns one repo file's content.
func (m *Memory) File(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[path]
	return data, ok
}

func (m *Memory) fail(op string) error {
	if m.FailWith == nil {
		return nil
	}
	return &RemoteError{Op: op, Err: m.FailWith}
}

func (m *Memory) FetchWindow(ctx context.Context, n int) ([]model.StoryRecord, error) {
	if err := m.fail("fetch window"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if n <= 0 || len(m.records) == 0 {
		return nil, nil
	}
	start := len(m.records) - n
	if start < 0 {
		start = 0
	}
	return append([]model.StoryRecord(nil), m.records[start:]...), nil
}

func (m *Memory) StreamAll(ctx context.Context, batchSize int) Batches {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &memBatches{store: m, batchSize: batchSize, snapshot: m.Records()}
}

type memBatches struct {
	store     *Memory
	snapshot  []model.StoryRecord
	batchSize int
	pos       int
	batch     []model.StoryRecord
	err       error
}

func (b *memBatches) Next() bool {
	if b.err != nil {
		return false
	}
	if err := b.store.fail("stream dataset"); err != nil {
		b.err = err
		return false
	}
	if b.pos >= len(b.snapshot) {
		return false
	}
	end := b.pos + b.batchSize
	if end > len(b.snapshot) {
		end = len(b.snapshot)
	}
	b.batch = b.snapshot[b.pos:end]
	b.pos = end
	return true
}

func (b *memBatches) Batch() []model.StoryRecord { return b.batch }

func (b *memBatches) Err() error { return b.err }

func (m *Memory) Append(ctx context.Context, records []model.StoryRecord, message string) error {
	if err := m.fail("commit"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, records...)
	m.commits = append([]Commit{{Title: message, Message: message, Date: time.Now().UTC()}}, m.commits...)
	return nil
}

func (m *Memory) ListFiles(ctx context.Context) ([]string, error) {
	if err := m.fail("list files"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	files := make([]string, 0, len(m.files))
	for path := range m.files {
		files = append(files, path)
	}
	sort.Strings(files)
	return files, nil
}

func (m *Memory) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := m.fail("read file"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[path]
	if !ok {
		return nil, &RemoteError{Op: "read file", Err: ErrNotFound}
	}
	return append([]byte(nil), data...), nil
}

func (m *Memory) Commit(ctx context.Context, message string, ops []CommitOp) error {
	if err := m.fail("commit"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range ops {
		if op.Delete {
			delete(m.files, op.Path)
			continue
		}
		m.files[op.Path] = append([]byte(nil), op.Content...)
	}
	m.commits = append([]Commit{{Title: firstLine(message), Message: message, Date: time.Now().UTC()}}, m.commits...)
	return nil
}

func (m *Memory) ListCommits(ctx context.Context) ([]Commit, error) {
	if err := m.fail("list commits"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Commit(nil), m.commits...), nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
