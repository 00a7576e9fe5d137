package textutil_test

import (
	"strings"
	"testing"

	"tunevault/internal/textutil"
)

func TestCleanComponent(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: "Daft Punk", want: "Daft Punk"},
		{name: "unsafe characters", input: `AC/DC: "Live"?`, want: "ACDC Live"},
		{name: "control characters", input: "Bad\x00Name\x1f", want: "BadName"},
		{name: "dots and spaces trimmed", input: " ...Hidden. ", want: "Hidden"},
		{name: "collapses whitespace", input: "A   B\t C", want: "A B C"},
		{name: "empty falls back", input: "???", want: textutil.UnknownComponent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := textutil.CleanComponent(tt.input); got != tt.want {
				t.Fatalf("CleanComponent(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCleanComponentCapsLength(t *testing.T) {
	long := strings.Repeat("é", 150)
	got := textutil.CleanComponent(long)
	if len(got) > textutil.MaxComponentLength {
		t.Fatalf("expected at most %d bytes, got %d", textutil.MaxComponentLength, len(got))
	}
	if !strings.HasPrefix(long, got) {
		t.Fatal("truncation split a rune")
	}
}

func TestNormalizeTag(t *testing.T) {
	if got := textutil.NormalizeTag("  Song\x00 Title \n Remix "); got != "Song Title Remix" {
		t.Fatalf("NormalizeTag returned %q", got)
	}
}

func TestMainArtist(t *testing.T) {
	tests := map[string]string{
		"Artist feat. Guest":      "Artist",
		"Artist ft Guest":         "Artist",
		"Artist Featuring Guest":  "Artist",
		"Artist, Other":           "Artist",
		"Solo Artist":             "Solo Artist",
		"Left ft. Right, Another": "Left",
		"":                        "",
	}
	for input, want := range tests {
		if got := textutil.MainArtist(input); got != want {
			t.Fatalf("MainArtist(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestEqualFold(t *testing.T) {
	if !textutil.EqualFold("Sigur Rós", "SIGUR RÓS") {
		t.Fatal("expected case-insensitive match")
	}
	if textutil.EqualFold("Muse", "Mused") {
		t.Fatal("unexpected match")
	}
}

func TestSanitizeToken(t *testing.T) {
	if got := textutil.SanitizeToken("My Song!"); got != "my_song" {
		t.Fatalf("SanitizeToken returned %q", got)
	}
	if got := textutil.SanitizeToken(""); got != "unknown" {
		t.Fatalf("SanitizeToken(empty) returned %q", got)
	}
}
