package capsule

import "time"

// Summary represents a draft's content without image bytes.
// Used for previews and state reports where the blobs are not needed.
type Summary struct {
	// Title is the capsule headline
	Title string `json:"title"`

	// Description is the capsule body text
	Description string `json:"description"`

	// Images lists uploaded media metadata in display order
	Images []ImageSummary `json:"images"`

	// OpeningTime is the unlock time in RFC 3339, empty when unset
	OpeningTime string `json:"time,omitempty"`

	// Vision is the note to the future
	Vision string `json:"vision"`

	// Privacy is the chosen visibility (may be empty while unset)
	Privacy Privacy `json:"privacy"`

	// Design is the chosen design identifier
	Design string `json:"design"`

	// SharedWith lists recipient identifiers
	SharedWith []string `json:"shared_with,omitempty"`
}

// ImageSummary describes one uploaded image.
type ImageSummary struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	SizeBytes int    `json:"size_bytes"`
	Caption   string `json:"caption"`
}

// ToSummary converts a Draft to a Summary by stripping the image bytes.
func (d Draft) ToSummary() Summary {
	s := Summary{
		Title:       d.Title,
		Description: d.Description,
		Images:      make([]ImageSummary, len(d.Images)),
		Vision:      d.Vision,
		Privacy:     d.Privacy,
		Design:      d.Design,
		SharedWith:  append([]string(nil), d.SharedWith...),
	}
	if !d.OpeningTime.IsZero() {
		s.OpeningTime = d.OpeningTime.UTC().Format(time.RFC3339)
	}
	for i, img := range d.Images {
		s.Images[i] = ImageSummary{
			Index:     i,
			Name:      img.Name,
			MediaType: img.MediaType,
			SizeBytes: len(img.Data),
			Caption:   img.Caption,
		}
	}
	return s
}
