// Package files reads local images and videos into upload blobs.
package files

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/ecapsule/internal/capsule"
	"github.com/hpungsan/ecapsule/internal/errors"
)

// ValidatePath checks that path names an existing regular file that is not a symlink.
func ValidatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.NewInvalidRequest("path is required")
	}

	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewFileNotFound(path)
		}
		return errors.NewInvalidRequest(fmt.Sprintf("cannot stat %s: %v", path, err))
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("path must not be a symlink")
	}
	if !info.Mode().IsRegular() {
		return errors.NewInvalidRequest("path must be a regular file")
	}
	return nil
}

// ReadBlob opens path and returns it as an upload blob. Files larger than
// maxBytes are not read in full: only the first capsule.SniffBytes are kept
// so the media type can still be reported, and Size carries the real length.
// maxBytes <= 0 means capsule.MaxFileBytes.
func ReadBlob(path string, maxBytes int64) (capsule.Blob, error) {
	if maxBytes <= 0 {
		maxBytes = capsule.MaxFileBytes
	}
	if err := ValidatePath(path); err != nil {
		return capsule.Blob{}, err
	}

	f, err := openFileNoFollowRead(path)
	if err != nil {
		return capsule.Blob{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return capsule.Blob{}, errors.NewInternal(fmt.Errorf("stat %s: %w", path, err))
	}

	limit := info.Size()
	if limit > maxBytes {
		limit = capsule.SniffBytes
	}
	data, err := io.ReadAll(io.LimitReader(f, limit))
	if err != nil {
		return capsule.Blob{}, errors.NewInternal(fmt.Errorf("read %s: %w", path, err))
	}

	return capsule.Blob{
		Name: SanitizeForFilename(filepath.Base(path)),
		Size: info.Size(),
		Data: data,
	}, nil
}

// SanitizeForFilename makes s safe to send as an upload filename.
// Path separators, ".." sequences and control characters are removed.
func SanitizeForFilename(s string) string {
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "\\", "-")
	s = strings.ReplaceAll(s, "..", "-")

	var result strings.Builder
	for _, r := range s {
		if r >= 32 && r != 127 {
			result.WriteRune(r)
		}
	}
	s = result.String()

	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.Trim(s, "-")

	if s == "" {
		s = "unnamed"
	}
	return s
}
