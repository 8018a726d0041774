package wizard

import (
	"time"

	"github.com/hpungsan/ecapsule/internal/capsule"
	"github.com/hpungsan/ecapsule/internal/validate"
)

// MaxTitleChars is the longest accepted title, in characters.
const MaxTitleChars = 255

// Validator maps (step, draft) to the errors of the fields that step owns.
type Validator struct {
	steps []Step
	rules validate.Table[capsule.Draft]
	now   func() time.Time
}

// NewValidator builds a validator over steps. A nil or empty steps slice
// means DefaultSteps; maxFileBytes <= 0 means capsule.MaxFileBytes; a nil clock
// means time.Now.
func NewValidator(steps []Step, maxFileBytes int64, clock func() time.Time) *Validator {
	if len(steps) == 0 {
		steps = defaultSteps
	}
	if clock == nil {
		clock = time.Now
	}
	return &Validator{
		steps: cloneSteps(steps),
		rules: draftRules(maxFileBytes),
		now:   clock,
	}
}

// Steps returns a copy of the step list.
func (v *Validator) Steps() []Step {
	return cloneSteps(v.steps)
}

// Validate checks only the fields owned by step. Later steps' fields are never
// reported, so a draft can be completed incrementally. An out-of-range step or
// a step without fields yields an empty set.
func (v *Validator) Validate(step int, d capsule.Draft) validate.Errors {
	if step < 0 || step >= len(v.steps) || len(v.steps[step].Fields) == 0 {
		return validate.Errors{}
	}
	return v.rules.Apply(d, v.now(), v.steps[step].Fields...)
}

// ValidateAll checks every field of the draft.
func (v *Validator) ValidateAll(d capsule.Draft) validate.Errors {
	return v.rules.Apply(d, v.now())
}

func draftRules(maxFileBytes int64) validate.Table[capsule.Draft] {
	title := func(d capsule.Draft) string { return d.Title }
	openingTime := func(d capsule.Draft) time.Time { return d.OpeningTime }

	return validate.Table[capsule.Draft]{
		{Field: capsule.FieldTitle, Checks: []validate.Check[capsule.Draft]{
			validate.Required(title, "Title is required"),
			validate.MaxRunes(title, MaxTitleChars, "Title must be less than 255 characters"),
		}},
		{Field: capsule.FieldDescription, Checks: []validate.Check[capsule.Draft]{
			validate.Required(func(d capsule.Draft) string { return d.Description }, "Description is required"),
		}},
		{Field: capsule.FieldImages, Checks: []validate.Check[capsule.Draft]{
			validate.NonEmpty(func(d capsule.Draft) int { return len(d.Images) }, "At least one image is required"),
			validate.Each(func(d capsule.Draft) []capsule.Image { return d.Images }, func(_ int, img capsule.Image) string {
				_, msg := capsule.CheckFile(capsule.Blob{Name: img.Name, Data: img.Data}, maxFileBytes)
				if msg != "" {
					return img.Name + ": " + msg
				}
				return ""
			}),
		}},
		{Field: capsule.FieldTime, Checks: []validate.Check[capsule.Draft]{
			validate.Set(openingTime, "Opening time is required"),
			validate.After(openingTime, "Opening time must be in the future"),
		}},
		{Field: capsule.FieldVision, Checks: []validate.Check[capsule.Draft]{
			validate.Required(func(d capsule.Draft) string { return d.Vision }, "Vision is required"),
		}},
		{Field: capsule.FieldPrivacy, Checks: []validate.Check[capsule.Draft]{
			validate.OneOf(func(d capsule.Draft) bool { return d.Privacy.Valid() }, "Please select a privacy setting"),
		}},
		{Field: capsule.FieldDesign, Checks: []validate.Check[capsule.Draft]{
			validate.OneOf(func(d capsule.Draft) bool {
				_, ok := capsule.LookupDesign(d.Design)
				return ok
			}, "Please select a capsule design"),
		}},
		{Field: capsule.FieldSharedWith, Checks: []validate.Check[capsule.Draft]{
			validate.UniqueStrings(func(d capsule.Draft) []string { return d.SharedWith }, "Recipients must be unique"),
		}},
	}
}
