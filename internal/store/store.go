// Package store abstracts the remote dataset repository. The core
// components (dedup, stats, pipeline, merge) consume the Store
// interface; Hub talks to the real hosted service and Memory is an
// in-memory fake for tests.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/piyumals/kathana/internal/model"
)

// Store is the remote dataset capability surface.
type Store interface {
	// FetchWindow returns up to the most recent n records. Repos
	// smaller than n return everything they have.
	FetchWindow(ctx context.Context, n int) ([]model.StoryRecord, error)

	// StreamAll begins a fresh iteration over the whole dataset in
	// batches of at most batchSize records.
	StreamAll(ctx context.Context, batchSize int) Batches

	// Append stores the given records as a new pending entry in a
	// single atomic commit tagged with message. Prior records are
	// never touched.
	Append(ctx context.Context, records []model.StoryRecord, message string) error

	// ListFiles returns every file path in the repo.
	ListFiles(ctx context.Context) ([]string, error)

	// ReadFile returns the raw content of one repo file. A missing
	// file reports ErrNotFound.
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// Commit applies a set of file adds and deletes as one atomic
	// commit tagged with message.
	Commit(ctx context.Context, message string, ops []CommitOp) error

	// ListCommits returns the repo commit history, newest first.
	ListCommits(ctx context.Context) ([]Commit, error)
}

// Batches iterates a dataset in bounded batches, bufio.Scanner style:
// call Next, consume Batch, then check Err once Next returns false.
type Batches interface {
	Next() bool
	Batch() []model.StoryRecord
	Err() error
}

// CommitOp is one file operation inside an atomic commit.
type CommitOp struct {
	Path    string
	Content []byte
	Delete  bool
}

// AddFile builds an upload operation.
func AddFile(path string, content []byte) CommitOp {
	return CommitOp{Path: path, Content: content}
}

// DeleteFile builds a delete operation.
func DeleteFile(path string) CommitOp {
	return CommitOp{Path: path, Delete: true}
}

// Commit is one entry of the repo commit history.
type Commit struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	Date    time.Time `json:"date"`
}

// ErrNotFound reports a repo file that does not exist.
var ErrNotFound = errors.New("file not found")

// RemoteError wraps any failure talking to the remote dataset service,
// so callers can tell "service unavailable" apart from local faults.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string { return "remote " + e.Op + ": " + e.Err.Error() }

func (e *RemoteError) Unwrap() error { return e.Err }

// IsRemote reports whether err originated at the remote service
// boundary.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

// UTCStamp formats a time in the compact UTC form used in pending file
// names and commit messages.
func UTCStamp(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}
