package wizard

import (
	"maps"

	"github.com/hpungsan/ecapsule/internal/capsule"
	"github.com/hpungsan/ecapsule/internal/validate"
)

// Sequencer owns the current step index and gates transitions.
// Forward moves require a valid current step; backward moves are free.
type Sequencer struct {
	validator *Validator
	index     int
	errs      validate.Errors
}

// NewSequencer starts at the first step of the validator's step list.
func NewSequencer(v *Validator) *Sequencer {
	return &Sequencer{validator: v, errs: validate.Errors{}}
}

// Index returns the current step index.
func (s *Sequencer) Index() int {
	return s.index
}

// Step returns the current step.
func (s *Sequencer) Step() Step {
	return s.validator.steps[s.index]
}

// Len returns the number of steps.
func (s *Sequencer) Len() int {
	return len(s.validator.steps)
}

// IsFinal reports whether the current step is the last one.
func (s *Sequencer) IsFinal() bool {
	return s.index == len(s.validator.steps)-1
}

// Errors returns the errors currently displayed for the step.
func (s *Sequencer) Errors() validate.Errors {
	return maps.Clone(s.errs)
}

// SetErrors replaces the displayed errors.
func (s *Sequencer) SetErrors(errs validate.Errors) {
	if errs == nil {
		errs = validate.Errors{}
	}
	s.errs = maps.Clone(errs)
}

// Advance validates the current step against d and moves forward one step when
// it is valid. On failure the index is unchanged and the errors are kept for
// display. The last step never advances; its only action is submit.
func (s *Sequencer) Advance(d capsule.Draft) bool {
	s.errs = s.validator.Validate(s.index, d)
	if !s.errs.Empty() || s.IsFinal() {
		return false
	}
	s.index++
	return true
}

// Retreat moves back one step and clears the displayed errors.
// Returns false on the first step.
func (s *Sequencer) Retreat() bool {
	if s.index == 0 {
		return false
	}
	s.index--
	s.errs = validate.Errors{}
	return true
}
