package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/piyumals/kathana/internal/store"
)

func TestStatus_Idle(t *testing.T) {
	mem := store.NewMemory()
	mem.SetFile("README.md", []byte("# dataset"))
	p := newTestPipeline(mem)

	status, err := p.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.State != StateIdle || status.PendingCount != 0 {
		t.Errorf("status = %+v, want idle with 0 pending", status)
	}
}

func TestStatus_Pending(t *testing.T) {
	mem := store.NewMemory()
	mem.SetFile("pending/entry_1.jsonl", nil)
	mem.SetFile("pending/entry_2.jsonl", nil)
	mem.SetFile("pending/notes.txt", nil)
	p := newTestPipeline(mem)

	status, err := p.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.PendingCount != 2 {
		t.Errorf("PendingCount = %d, want 2 (only .jsonl files count)", status.PendingCount)
	}
	if status.State != StatePending {
		t.Errorf("State = %q, want pending", status.State)
	}
	if !status.LastMerge.IsZero() {
		t.Errorf("LastMerge = %v, want zero with no merge commit", status.LastMerge)
	}
}

func TestStatus_ProcessingAfterRecentMerge(t *testing.T) {
	mem := store.NewMemory()
	mem.SetFile("pending/entry_1.jsonl", nil)
	mem.AddCommit(store.Commit{
		Title: "Merge pending submissions (20240101T000000Z) - merged 5 entries",
		Date:  time.Now().UTC().Add(-10 * time.Minute),
	})
	p := newTestPipeline(mem)

	status, err := p.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.State != StateProcessing {
		t.Errorf("State = %q, want processing right after a merge", status.State)
	}
	if status.LastMerge.IsZero() {
		t.Error("LastMerge not recovered from the commit history")
	}
}

func TestStatus_TimestampFallbackFromMessage(t *testing.T) {
	mem := store.NewMemory()
	mem.SetFile("pending/entry_1.jsonl", nil)
	// The service reported no commit date; the timestamp embedded in
	// the message is the fallback.
	mem.AddCommit(store.Commit{
		Title: "Merge pending submissions (20240102T030405Z) - merged 3 entries",
	})
	p := newTestPipeline(mem)

	status, err := p.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	want := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	if !status.LastMerge.Equal(want) {
		t.Errorf("LastMerge = %v, want %v", status.LastMerge, want)
	}
	if status.State != StatePending {
		t.Errorf("State = %q, want pending for an old merge", status.State)
	}
}

func TestStatus_IgnoresNonMergeCommits(t *testing.T) {
	mem := store.NewMemory()
	mem.SetFile("pending/entry_1.jsonl", nil)
	mem.AddCommit(store.Commit{
		Title: "Add pending submission 20240101T000000Z",
		Date:  time.Now().UTC(),
	})
	p := newTestPipeline(mem)

	status, err := p.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.LastMerge.IsZero() {
		t.Errorf("LastMerge = %v, want zero (submission commits are not merges)", status.LastMerge)
	}
}

func TestStatus_RemoteFailure(t *testing.T) {
	mem := store.NewMemory()
	mem.FailWith = errors.New("service down")
	p := newTestPipeline(mem)

	_, err := p.Status(context.Background())
	if !store.IsRemote(err) {
		t.Errorf("err = %v, want a RemoteError", err)
	}
}

func TestStatus_CommitHistoryFailureIsBestEffort(t *testing.T) {
	// ListCommits failing on its own must not fail the status; only
	// the merge timestamp goes missing. The memory fake fails all
	// calls at once, so this is exercised through lastMerge directly.
	mem := store.NewMemory()
	mem.FailWith = errors.New("history unavailable")
	p := newTestPipeline(mem)

	if got := p.lastMerge(context.Background()); !got.IsZero() {
		t.Errorf("lastMerge = %v, want zero on failure", got)
	}
}
