package capsule

import (
	"slices"
	"time"
)

// Field names, shared by validation, the wizard store and the wire payload.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldImages      = "images"
	FieldTime        = "time"
	FieldVision      = "vision"
	FieldPrivacy     = "privacy"
	FieldDesign      = "design"
	FieldSharedWith  = "shared_with"
)

// Draft is the capsule record assembled across the creation wizard.
type Draft struct {
	// Title is the headline shown on the capsule card (max 255 characters)
	Title string

	// Description is the body text; rendered as markdown in previews
	Description string

	// Images holds the uploaded media in display order, each with its caption
	Images []Image

	// OpeningTime is when the capsule unlocks; must be in the future
	OpeningTime time.Time

	// Vision is the author's note to their future self
	Vision string

	// Privacy controls who can see the capsule once created
	Privacy Privacy

	// Design is the identifier of a catalog design
	Design string

	// SharedWith lists recipient user identifiers (set semantics, insertion ordered)
	SharedWith []string
}

// Image pairs an uploaded blob with its caption so the two never drift apart.
type Image struct {
	Name      string
	MediaType string
	Data      []byte
	Caption   string
}

// Blob is a file offered for upload. Size is the full size of the file;
// Data may be a prefix when the file is too large to load.
type Blob struct {
	Name string
	Size int64
	Data []byte
}

// NewDraft returns an empty draft with the unset design sentinel.
func NewDraft() Draft {
	return Draft{Design: DefaultDesign}
}

// Clone returns a deep copy of the draft.
func (d Draft) Clone() Draft {
	out := d
	if d.Images != nil {
		out.Images = make([]Image, len(d.Images))
		for i, img := range d.Images {
			img.Data = slices.Clone(img.Data)
			out.Images[i] = img
		}
	}
	out.SharedWith = slices.Clone(d.SharedWith)
	return out
}

// Captions returns the caption of every image, in order.
func (d Draft) Captions() []string {
	captions := make([]string, len(d.Images))
	for i, img := range d.Images {
		captions[i] = img.Caption
	}
	return captions
}
