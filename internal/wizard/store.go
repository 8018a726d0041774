package wizard

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/hpungsan/ecapsule/internal/capsule"
	"github.com/hpungsan/ecapsule/internal/errors"
)

// timeLayouts are the accepted textual forms of the opening time.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Store holds the draft being assembled and applies field-level updates.
// It never validates on write; validation is pulled by the sequencer.
type Store struct {
	draft        capsule.Draft
	fileErrors   map[string]string
	maxFileBytes int64
	location     *time.Location
}

// NewStore returns a store holding an empty draft.
// maxFileBytes <= 0 means capsule.MaxFileBytes.
func NewStore(maxFileBytes int64) *Store {
	if maxFileBytes <= 0 {
		maxFileBytes = capsule.MaxFileBytes
	}
	return &Store{
		draft:        capsule.NewDraft(),
		fileErrors:   map[string]string{},
		maxFileBytes: maxFileBytes,
		location:     time.Local,
	}
}

// Draft returns a deep copy of the current draft.
func (s *Store) Draft() capsule.Draft {
	return s.draft.Clone()
}

// FileErrors returns the rejected files and their reasons, keyed by filename.
func (s *Store) FileErrors() map[string]string {
	return maps.Clone(s.fileErrors)
}

// ClearFileErrors forgets every recorded file rejection.
func (s *Store) ClearFileErrors() {
	clear(s.fileErrors)
}

// SetField replaces a single field. Text fields take a string; time takes a
// time.Time or a string in one of the accepted layouts; privacy takes a
// capsule.Privacy or a string; shared_with takes a []string. Images are
// managed with AddImage and RemoveImage.
func (s *Store) SetField(name string, value any) error {
	switch name {
	case capsule.FieldTitle, capsule.FieldDescription, capsule.FieldVision, capsule.FieldDesign:
		text, ok := value.(string)
		if !ok {
			return errors.NewInvalidRequest(fmt.Sprintf("%s must be a string", name))
		}
		switch name {
		case capsule.FieldTitle:
			s.draft.Title = text
		case capsule.FieldDescription:
			s.draft.Description = text
		case capsule.FieldVision:
			s.draft.Vision = text
		case capsule.FieldDesign:
			s.draft.Design = strings.TrimSpace(text)
		}

	case capsule.FieldTime:
		switch v := value.(type) {
		case time.Time:
			s.draft.OpeningTime = v
		case string:
			t, err := s.parseTime(v)
			if err != nil {
				return err
			}
			s.draft.OpeningTime = t
		default:
			return errors.NewInvalidRequest("time must be a timestamp")
		}

	case capsule.FieldPrivacy:
		switch v := value.(type) {
		case capsule.Privacy:
			s.draft.Privacy = v
		case string:
			s.draft.Privacy = capsule.ParsePrivacy(v)
		default:
			return errors.NewInvalidRequest("privacy must be a string")
		}

	case capsule.FieldSharedWith:
		ids, ok := value.([]string)
		if !ok {
			return errors.NewInvalidRequest("shared_with must be a list of identifiers")
		}
		s.draft.SharedWith = capsule.NormalizeRecipients(ids)

	case capsule.FieldImages:
		return errors.NewInvalidRequest("images are managed with add/remove, not set")

	default:
		return errors.NewInvalidRequest(fmt.Sprintf("unknown field: %s", name))
	}
	return nil
}

// parseTime reads an opening time. Layouts without a zone use the store's location.
func (s *Store) parseTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, v, s.location); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.NewInvalidRequest(fmt.Sprintf("unrecognized time %q (use RFC 3339 or YYYY-MM-DD HH:MM)", v))
}

// AddImage checks the blob against the media rules. A rejected file is recorded
// under its name and not added; an accepted file is appended with an empty
// caption and any earlier rejection of the same name is cleared.
func (s *Store) AddImage(b capsule.Blob) bool {
	mediaType, msg := capsule.CheckFile(b, s.maxFileBytes)
	if msg != "" {
		s.fileErrors[b.Name] = msg
		return false
	}
	delete(s.fileErrors, b.Name)
	s.draft.Images = append(s.draft.Images, capsule.Image{
		Name:      b.Name,
		MediaType: mediaType,
		Data:      slices.Clone(b.Data),
	})
	return true
}

// RemoveImage deletes the image at index; later images shift down one
// position and keep their own captions.
func (s *Store) RemoveImage(index int) error {
	if err := s.checkIndex(index); err != nil {
		return err
	}
	s.draft.Images = slices.Delete(s.draft.Images, index, index+1)
	return nil
}

// SetImageCaption replaces the caption of the image at index.
func (s *Store) SetImageCaption(index int, text string) error {
	if err := s.checkIndex(index); err != nil {
		return err
	}
	s.draft.Images[index].Caption = text
	return nil
}

// ToggleRecipient adds id to the recipients, or removes it if already present.
func (s *Store) ToggleRecipient(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	if i := slices.Index(s.draft.SharedWith, id); i >= 0 {
		s.draft.SharedWith = slices.Delete(s.draft.SharedWith, i, i+1)
		return
	}
	s.draft.SharedWith = append(s.draft.SharedWith, id)
}

func (s *Store) checkIndex(index int) error {
	if index < 0 || index >= len(s.draft.Images) {
		return errors.NewInvalidRequest(fmt.Sprintf("image index %d out of range (have %d)", index, len(s.draft.Images)))
	}
	return nil
}
