package capsule

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxFileBytes is the default upload size limit (64 MiB).
const MaxFileBytes int64 = 65536 * 1024

// SniffBytes is how much of a file is needed to detect its media type.
const SniffBytes = 3072

// mediaType pairs an accepted media type with its file extensions.
type mediaType struct {
	MIME       string
	Extensions []string
}

// allowedMediaTypes lists the accepted upload types in display order.
var allowedMediaTypes = []mediaType{
	{MIME: "image/jpeg", Extensions: []string{".jpg", ".jpeg"}},
	{MIME: "image/png", Extensions: []string{".png"}},
	{MIME: "image/gif", Extensions: []string{".gif"}},
	{MIME: "video/mp4", Extensions: []string{".mp4"}},
}

// AllowedMediaTypes returns the accepted MIME types.
func AllowedMediaTypes() []string {
	out := make([]string, len(allowedMediaTypes))
	for i, mt := range allowedMediaTypes {
		out[i] = mt.MIME
	}
	return out
}

// AllowedExtensions returns every accepted file extension, in display order.
func AllowedExtensions() []string {
	var out []string
	for _, mt := range allowedMediaTypes {
		out = append(out, mt.Extensions...)
	}
	return out
}

// DetectMediaType sniffs the media type from file content.
// Returns the canonical allowed type, or the detected type if it is not allowed.
func DetectMediaType(data []byte) string {
	m := mimetype.Detect(data)
	for _, mt := range allowedMediaTypes {
		if m.Is(mt.MIME) {
			return mt.MIME
		}
	}
	return m.String()
}

// IsAllowedMediaType reports whether mediaType is accepted for upload.
func IsAllowedMediaType(mediaType string) bool {
	for _, mt := range allowedMediaTypes {
		if mt.MIME == mediaType {
			return true
		}
	}
	return false
}

// CheckFile checks a blob against the media rules: type first, then size.
// Returns the detected media type and an empty message when the blob is accepted.
// maxBytes <= 0 means MaxFileBytes.
func CheckFile(b Blob, maxBytes int64) (string, string) {
	if maxBytes <= 0 {
		maxBytes = MaxFileBytes
	}

	detected := DetectMediaType(b.Data)
	if !IsAllowedMediaType(detected) {
		return detected, "File type not supported. Allowed types: " + strings.Join(AllowedExtensions(), ", ")
	}

	size := b.Size
	if size == 0 {
		size = int64(len(b.Data))
	}
	if size > maxBytes {
		return detected, fmt.Sprintf("File size must be less than %dMB", maxBytes/1024/1024)
	}

	return detected, ""
}
