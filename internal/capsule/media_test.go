package capsule

import (
	"strings"
	"testing"
)

var (
	pngHeader  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")
	jpegHeader = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")
	gifHeader  = []byte("GIF89a\x01\x00\x01\x00\x80\x00\x00\xff\xff\xff\x00\x00\x00")
)

func TestDetectMediaType(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{name: "png", data: pngHeader, want: "image/png"},
		{name: "jpeg", data: jpegHeader, want: "image/jpeg"},
		{name: "gif", data: gifHeader, want: "image/gif"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectMediaType(tt.data); got != tt.want {
				t.Errorf("DetectMediaType() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCheckFile(t *testing.T) {
	tests := []struct {
		name     string
		blob     Blob
		maxBytes int64
		wantType string
		wantMsg  string
	}{
		{
			name:     "accepted png",
			blob:     Blob{Name: "a.png", Data: pngHeader},
			wantType: "image/png",
		},
		{
			name:    "text rejected by content, not by name",
			blob:    Blob{Name: "fake.png", Data: []byte("just some words")},
			wantMsg: "File type not supported. Allowed types: .jpg, .jpeg, .png, .gif, .mp4",
		},
		{
			name:     "declared size over default limit",
			blob:     Blob{Name: "huge.png", Size: 100 * 1024 * 1024, Data: pngHeader},
			wantType: "image/png",
			wantMsg:  "File size must be less than 64MB",
		},
		{
			name:     "data length used when size unset",
			blob:     Blob{Name: "padded.png", Data: append(append([]byte{}, pngHeader...), make([]byte, 2<<20)...)},
			maxBytes: 1 << 20,
			wantType: "image/png",
			wantMsg:  "File size must be less than 1MB",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotType, gotMsg := CheckFile(tt.blob, tt.maxBytes)
			if gotMsg != tt.wantMsg {
				t.Errorf("CheckFile() msg = %q, want %q", gotMsg, tt.wantMsg)
			}
			if tt.wantType != "" && gotType != tt.wantType {
				t.Errorf("CheckFile() type = %q, want %q", gotType, tt.wantType)
			}
		})
	}
}

func TestAllowedExtensions(t *testing.T) {
	got := strings.Join(AllowedExtensions(), ",")
	if got != ".jpg,.jpeg,.png,.gif,.mp4" {
		t.Errorf("AllowedExtensions() = %q", got)
	}
	if !IsAllowedMediaType("video/mp4") || IsAllowedMediaType("image/webp") {
		t.Error("IsAllowedMediaType() disagrees with the allowed list")
	}
}
