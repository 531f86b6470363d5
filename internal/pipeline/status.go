package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// State summarizes where the repo stands in the submit-then-merge
// cycle.
type State string

const (
	StateIdle       State = "idle"
	StateProcessing State = "processing"
	StatePending    State = "pending"
)

// RepoStatus is a point-in-time view of the dataset repo.
type RepoStatus struct {
	PendingCount int
	// LastMerge is zero when no merge commit could be found.
	LastMerge time.Time
	State     State
	Detail    string
}

const mergeCommitPrefix = "Merge pending submissions"

var mergeStampRE = regexp.MustCompile(`\((\d{8}T\d{6}Z)\)`)

// Status reports the pending submission count and the last merge.
// The commit history lookup is best effort; only the file listing
// failure is fatal.
func (p *Pipeline) Status(ctx context.Context) (*RepoStatus, error) {
	files, err := p.store.ListFiles(ctx)
	if err != nil {
		return nil, err
	}

	status := &RepoStatus{
		PendingCount: countPending(files, p.pendingDir),
		LastMerge:    p.lastMerge(ctx),
	}

	switch {
	case status.PendingCount == 0:
		status.State = StateIdle
		status.Detail = "no pending stories; everything has been merged"
	case !status.LastMerge.IsZero() && nowFunc().UTC().Sub(status.LastMerge) < time.Hour:
		status.State = StateProcessing
		status.Detail = fmt.Sprintf("merge completed recently; %d new stories pending", status.PendingCount)
	default:
		status.State = StatePending
		status.Detail = fmt.Sprintf("%d stories waiting to be merged", status.PendingCount)
	}
	return status, nil
}

func countPending(files []string, pendingDir string) int {
	count := 0
	for _, f := range files {
		if strings.HasPrefix(f, pendingDir+"/") && strings.HasSuffix(f, ".jsonl") {
			count++
		}
	}
	return count
}

// lastMerge scans the commit history (newest first) for the most
// recent merge commit. When the service reports no commit date, the
// timestamp embedded in the message is used instead.
func (p *Pipeline) lastMerge(ctx context.Context) time.Time {
	commits, err := p.store.ListCommits(ctx)
	if err != nil {
		return time.Time{}
	}
	for _, c := range commits {
		title := c.Title
		if title == "" {
			title = c.Message
		}
		if !strings.Contains(title, mergeCommitPrefix) {
			continue
		}
		if !c.Date.IsZero() {
			return c.Date.UTC()
		}
		if m := mergeStampRE.FindStringSubmatch(title); m != nil {
			if t, err := time.Parse("20060102T150405Z", m[1]); err == nil {
				return t.UTC()
			}
		}
	}
	return time.Time{}
}
