package capsule

import (
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "simple lowercase",
			input: "Friends",
			want:  "friends",
		},
		{
			name:  "trim whitespace",
			input: "  public  ",
			want:  "public",
		},
		{
			name:  "collapse internal whitespace",
			input: "hello    world",
			want:  "hello world",
		},
		{
			name:  "tabs and newlines",
			input: "hello\t\n  world",
			want:  "hello world",
		},
		{
			name:  "only whitespace",
			input: "   \t\n   ",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.input)
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCountChars(t *testing.T) {
	if got := CountChars("héllo"); got != 5 {
		t.Errorf("CountChars() = %d, want 5", got)
	}
	if got := CountChars("日本語"); got != 3 {
		t.Errorf("CountChars() = %d, want 3", got)
	}
}

func TestNormalizeRecipients(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{name: "nil", input: nil, want: nil},
		{name: "blanks dropped", input: []string{" ", ""}, want: nil},
		{name: "keeps order", input: []string{"7", "3", "12"}, want: []string{"7", "3", "12"}},
		{name: "dedupes first wins", input: []string{"7", " 3", "7", "3 "}, want: []string{"7", "3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeRecipients(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("NormalizeRecipients(%v) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
