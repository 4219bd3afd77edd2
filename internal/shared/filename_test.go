package shared

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitizeFilename(t *testing.T) {
	tc := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: "unknown"},
		{name: "reserved characters", in: `a<b>c:d"e/f\g|h?i*j`, want: "a_b_c_d_e_f_g_h_i_j"},
		{name: "collapses underscores", in: "a//b", want: "a_b"},
		{name: "collapses whitespace", in: "  Song   Title  ", want: "Song Title"},
		{name: "control characters", in: "bad\x00name\x1f", want: "bad_name"},
		{name: "only reserved", in: "???", want: "unknown"},
		{name: "unicode kept", in: "周杰伦", want: "周杰伦"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.in); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestMusicFilename(t *testing.T) {
	t.Run("Artist And Title", func(t *testing.T) {
		if got := MusicFilename("Jay Chou", "Qing Tian", "MP3"); got != "Jay Chou - Qing Tian.mp3" {
			t.Errorf("unexpected filename %q", got)
		}
	})

	t.Run("Defaults For Missing Fields", func(t *testing.T) {
		if got := MusicFilename("", " ", "flac"); got != "Unknown Artist - Unknown Title.flac" {
			t.Errorf("unexpected filename %q", got)
		}
	})

	t.Run("Extension With Dot", func(t *testing.T) {
		if got := MusicFilename("A", "B", ".m4a"); got != "A - B.m4a" {
			t.Errorf("unexpected filename %q", got)
		}
	})

	t.Run("Long Names Are Capped", func(t *testing.T) {
		got := MusicFilename(strings.Repeat("a", 150), strings.Repeat("b", 150), "mp3")
		if n := utf8.RuneCountInString(got); n != 200 {
			t.Errorf("expected 200 characters, got %d", n)
		}
		if !strings.HasSuffix(got, ".mp3") {
			t.Errorf("extension should survive truncation: %q", got)
		}
	})
}

func TestExtensionFromURL(t *testing.T) {
	tc := []struct {
		url  string
		want string
	}{
		{"", "mp3"},
		{"http://cdn.example/a/b/song.FLAC?x=1", "flac"},
		{"http://cdn.example/song.m4a", "m4a"},
		{"http://cdn.example/song.exe", "mp3"},
		{"http://cdn.example/song", "mp3"},
		{"::not a url", "mp3"},
	}

	for _, tt := range tc {
		t.Run(tt.url, func(t *testing.T) {
			if got := ExtensionFromURL(tt.url); got != tt.want {
				t.Errorf("ExtensionFromURL(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestNormalizeExtension(t *testing.T) {
	if ext, ok := NormalizeExtension(".FLAC"); !ok || ext != "flac" {
		t.Errorf("expected flac/true, got %s/%v", ext, ok)
	}
	if _, ok := NormalizeExtension("txt"); ok {
		t.Error("txt is not an audio extension")
	}
}

func TestExpandHome(t *testing.T) {
	t.Setenv("HOME", "/home/listener")

	if got := ExpandHome("~/.mdx/session.json"); got != "/home/listener/.mdx/session.json" {
		t.Errorf("unexpected expansion %q", got)
	}
	if got := ExpandHome("/abs/path"); got != "/abs/path" {
		t.Errorf("absolute paths should be untouched, got %q", got)
	}
	if got := ExpandHome("~user/x"); got != "~user/x" {
		t.Errorf("other users' homes are not expanded, got %q", got)
	}
}
