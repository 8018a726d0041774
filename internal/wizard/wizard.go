// Package wizard drives the step-by-step creation of a capsule: a draft store
// accumulates input, a sequencer gates forward movement on per-step
// validation, and a pipeline submits the finished draft exactly once.
package wizard

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hpungsan/ecapsule/internal/api"
	"github.com/hpungsan/ecapsule/internal/capsule"
	"github.com/hpungsan/ecapsule/internal/errors"
	"github.com/hpungsan/ecapsule/internal/validate"
)

// Options configures a Wizard.
type Options struct {
	// Creator receives the submission. Required for Submit.
	Creator Creator

	// Steps overrides DefaultSteps. Nil or empty means DefaultSteps.
	Steps []Step

	// MaxFileBytes overrides capsule.MaxFileBytes.
	MaxFileBytes int64

	// Clock overrides time.Now for validation.
	Clock func() time.Time

	Logger *slog.Logger
}

// Wizard is one capsule-creation session.
// All methods are safe for concurrent use; the lock is not held while a
// submission is on the wire.
type Wizard struct {
	id        string
	mu        sync.Mutex
	store     *Store
	seq       *Sequencer
	validator *Validator
	pipeline  *Pipeline
	result    *api.Created
}

// New starts a session on the first step with an empty draft.
func New(opts Options) *Wizard {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	v := NewValidator(opts.Steps, opts.MaxFileBytes, opts.Clock)
	return &Wizard{
		id:        id,
		store:     NewStore(opts.MaxFileBytes),
		seq:       NewSequencer(v),
		validator: v,
		pipeline:  NewPipeline(opts.Creator, v, logger.With("session", id)),
	}
}

// ID returns the session identifier.
func (w *Wizard) ID() string {
	return w.id
}

// Steps returns the step list.
func (w *Wizard) Steps() []Step {
	return w.validator.Steps()
}

// Index returns the current step index.
func (w *Wizard) Index() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seq.Index()
}

// Step returns the current step.
func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seq.Step()
}

// IsFinal reports whether the session is on the last step.
func (w *Wizard) IsFinal() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seq.IsFinal()
}

// Draft returns a copy of the draft.
func (w *Wizard) Draft() capsule.Draft {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.store.Draft()
}

// Errors returns the errors currently shown for the step or the last submission.
func (w *Wizard) Errors() validate.Errors {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seq.Errors()
}

// FileErrors returns rejected files keyed by filename.
func (w *Wizard) FileErrors() map[string]string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.store.FileErrors()
}

// Pending reports whether a submission is in flight.
func (w *Wizard) Pending() bool {
	return w.pipeline.Pending()
}

// Done reports whether the capsule was created.
func (w *Wizard) Done() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.result != nil
}

// Result returns the created capsule, or nil before success.
func (w *Wizard) Result() *api.Created {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.result == nil {
		return nil
	}
	r := *w.result
	return &r
}

// SetField replaces one draft field.
func (w *Wizard) SetField(name string, value any) error {
	return w.mutate(func(s *Store) error { return s.SetField(name, value) })
}

// AddImage offers a file to the draft. It returns false when the file was
// rejected; the reason is available from FileErrors.
func (w *Wizard) AddImage(b capsule.Blob) (bool, error) {
	var added bool
	err := w.mutate(func(s *Store) error {
		added = s.AddImage(b)
		return nil
	})
	return added, err
}

// RemoveImage deletes the image at index.
func (w *Wizard) RemoveImage(index int) error {
	return w.mutate(func(s *Store) error { return s.RemoveImage(index) })
}

// SetImageCaption sets the caption of the image at index.
func (w *Wizard) SetImageCaption(index int, text string) error {
	return w.mutate(func(s *Store) error { return s.SetImageCaption(index, text) })
}

// ToggleRecipient adds or removes a recipient.
func (w *Wizard) ToggleRecipient(id string) error {
	return w.mutate(func(s *Store) error {
		s.ToggleRecipient(id)
		return nil
	})
}

func (w *Wizard) mutate(fn func(*Store) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.result != nil {
		return errors.NewInvalidRequest("capsule already created")
	}
	return fn(w.store)
}

// Next validates the current step and advances when it is valid.
// It reports whether the index moved.
func (w *Wizard) Next() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.result != nil {
		return false
	}
	return w.seq.Advance(w.store.draft)
}

// Back moves to the previous step. It reports whether the index moved.
func (w *Wizard) Back() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.result != nil {
		return false
	}
	return w.seq.Retreat()
}

// Submit sends the draft. It is only available on the final step.
//
// On VALIDATION_FAILED the field set becomes the displayed errors; on
// SUBMIT_FAILED the generic message is shown under SubmitErrorKey. In both
// cases the draft and step are kept so the user can retry. SUBMIT_IN_FLIGHT
// leaves the displayed errors alone.
func (w *Wizard) Submit(ctx context.Context) (*api.Created, error) {
	w.mu.Lock()
	if w.result != nil {
		w.mu.Unlock()
		return nil, errors.NewInvalidRequest("capsule already created")
	}
	if !w.seq.IsFinal() {
		w.mu.Unlock()
		return nil, errors.NewInvalidRequest("submit is only available on the final step")
	}
	if w.pipeline.creator == nil {
		w.mu.Unlock()
		return nil, errors.NewInternal(stderrors.New("wizard has no creator"))
	}
	step := w.seq.Index()
	draft := w.store.Draft()
	w.mu.Unlock()

	created, err := w.pipeline.Submit(ctx, step, draft)

	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case err == nil:
		w.result = created
		w.seq.SetErrors(nil)
		r := *created
		return &r, nil
	case errors.Is(err, errors.ErrValidationFailed):
		w.seq.SetErrors(errors.Fields(err))
	case errors.Is(err, errors.ErrSubmitFailed):
		w.seq.SetErrors(validate.Errors{SubmitErrorKey: errors.SubmitFailedMessage})
	}
	return nil, err
}
