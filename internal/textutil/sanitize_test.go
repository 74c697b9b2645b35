package textutil

import "testing"

func TestSanitizeFileName(t *testing.T) {
	tests := map[string]string{
		"  Talk: Part 1?.mp4 ": "Talk- Part 1.mp4",
		"a/b\\c.mov":           "a-b-c.mov",
		"quote\"d\n.mkv":       "quoted.mkv",
		"":                     "",
	}
	for in, want := range tests {
		if got := SanitizeFileName(in); got != want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestKeySegment(t *testing.T) {
	tests := map[string]string{
		"Alice":        "alice",
		"../etc":       "etc",
		"bob@mail.com": "bob_mail_com",
		"user_42-x":    "user_42-x",
		"":             "unknown",
		"///":          "unknown",
		"Zoë":          "zo",
	}
	for in, want := range tests {
		if got := KeySegment(in); got != want {
			t.Errorf("KeySegment(%q) = %q, want %q", in, got, want)
		}
	}
}
