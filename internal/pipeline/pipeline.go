// Package pipeline orchestrates a story submission: validate, check
// for probable duplicates, then append one pending record to the
// remote dataset repo.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/piyumals/kathana/internal/dedup"
	"github.com/piyumals/kathana/internal/model"
	"github.com/piyumals/kathana/internal/store"
	"github.com/piyumals/kathana/internal/validate"
)

// nowFunc supplies commit message timestamps (injectable for tests)
var nowFunc = time.Now

// Pipeline sequences validation, duplicate checking, and the append.
type Pipeline struct {
	validator  *validate.Validator
	checker    *dedup.Checker
	store      store.Store
	pendingDir string
}

// New builds a submission pipeline over the given store.
func New(st store.Store, cfg *model.Config) *Pipeline {
	if cfg == nil {
		cfg = model.DefaultConfig()
	}
	pendingDir := cfg.Hub.PendingDir
	if pendingDir == "" {
		pendingDir = model.DefaultConfig().Hub.PendingDir
	}
	return &Pipeline{
		validator:  validate.NewValidator(cfg.Validation),
		checker:    dedup.NewChecker(st, cfg.Dedup),
		store:      st,
		pendingDir: pendingDir,
	}
}

// SubmitResult describes the outcome of one submission attempt.
type SubmitResult struct {
	// Messages holds the validation findings; when any of them
	// rejects, nothing was sent to the remote repo.
	Messages validate.Result

	// Verdict is the duplicate check outcome. Nil when validation
	// rejected the text or when the check was skipped with force.
	Verdict *dedup.Verdict

	// Forced records that the submitter overrode the duplicate check.
	Forced bool

	// Submitted is true once the record is durably appended.
	Submitted bool
}

// Submit runs the full pipeline. A duplicate suspicion does not error:
// the result carries the verdict and the caller may retry with force.
// Only append failures return an error, and a failed append stores
// nothing (the remote commit is atomic).
func (p *Pipeline) Submit(ctx context.Context, text string, force bool) (*SubmitResult, error) {
	result := &SubmitResult{Forced: force}

	result.Messages = p.validator.Check(text)
	if !result.Messages.Accepted() {
		return result, nil
	}

	story := strings.TrimSpace(text)

	if !force {
		verdict := p.checker.Check(ctx, story)
		result.Verdict = &verdict
		if verdict.Suspected {
			return result, nil
		}
	}

	message := "Add pending submission " + store.UTCStamp(nowFunc())
	if err := p.store.Append(ctx, []model.StoryRecord{{Text: story}}, message); err != nil {
		return result, err
	}
	result.Submitted = true
	return result, nil
}
