package wizard

import (
	"slices"

	"github.com/hpungsan/ecapsule/internal/capsule"
)

// Step is one screen of the creation wizard and the draft fields it owns.
type Step struct {
	Key    string   `json:"key"`
	Title  string   `json:"title"`
	Fields []string `json:"fields,omitempty"`
}

// Owns reports whether field belongs to this step.
func (s Step) Owns(field string) bool {
	return slices.Contains(s.Fields, field)
}

// defaultSteps lists the creation screens in order.
var defaultSteps = []Step{
	{Key: "details", Title: "TITLE AND DESCRIPTION", Fields: []string{capsule.FieldTitle, capsule.FieldDescription}},
	{Key: "images", Title: "IMAGES", Fields: []string{capsule.FieldImages}},
	{Key: "time", Title: "TIME AND DATE", Fields: []string{capsule.FieldTime}},
	{Key: "captions", Title: "IMAGE ADDONS"},
	{Key: "vision", Title: "VISION", Fields: []string{capsule.FieldVision}},
	{Key: "privacy", Title: "PRIVACY", Fields: []string{capsule.FieldPrivacy}},
	{Key: "design", Title: "CAPSULE DESIGN", Fields: []string{capsule.FieldDesign}},
	{Key: "preview", Title: "PREVIEW"},
	{Key: "sharing", Title: "SHARING", Fields: []string{capsule.FieldSharedWith}},
}

// DefaultSteps returns a copy of the standard step list.
func DefaultSteps() []Step {
	return cloneSteps(defaultSteps)
}

func cloneSteps(steps []Step) []Step {
	out := make([]Step, len(steps))
	for i, s := range steps {
		s.Fields = slices.Clone(s.Fields)
		out[i] = s
	}
	return out
}
