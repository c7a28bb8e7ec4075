package platform

import "testing"

func TestOriginPolicy_Check(t *testing.T) {
	policy := NewOriginPolicy(nil)

	tests := []struct {
		url     string
		allowed bool
	}{
		{"https://www.youtube.com/watch?v=abc", true},
		{"https://music.youtube.com/watch?v=abc", true},
		{"https://youtu.be/abc", true},
		{"http://m.youtube.com/watch?v=abc", true},
		{"https://YOUTUBE.COM./watch?v=abc", true},
		{"https://example.com/watch?v=abc", false},
		{"https://notyoutube.com/watch?v=abc", false},
		{"https://youtube.com.evil.net/watch", false},
		{"ftp://youtube.com/file", false},
		{"youtube.com/watch?v=abc", false},
		{"", false},
	}

	for _, test := range tests {
		err := policy.Check(test.url)
		if (err == nil) != test.allowed {
			t.Errorf("Check(%q) error = %v, expected allowed=%v", test.url, err, test.allowed)
		}
	}
}

func TestOriginPolicy_Custom(t *testing.T) {
	policy := NewOriginPolicy([]string{" Vimeo.com ", ""})

	if err := policy.Check("https://player.vimeo.com/video/1"); err != nil {
		t.Errorf("Expected vimeo to be allowed, got %v", err)
	}
	if err := policy.Check("https://youtube.com/watch?v=1"); err == nil {
		t.Error("Expected youtube to be rejected by a custom list")
	}
	if len(policy.Hosts()) != 1 {
		t.Errorf("Expected 1 host, got %v", policy.Hosts())
	}
}

func TestStripPlaylistParams(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"https://www.youtube.com/watch?v=abc", "https://www.youtube.com/watch?v=abc"},
		{"https://www.youtube.com/watch?v=abc&list=PL123&index=4", "https://www.youtube.com/watch?v=abc"},
		{"https://www.youtube.com/watch?list=PL123&v=abc&t=10", "https://www.youtube.com/watch?t=10&v=abc"},
		{"https://youtu.be/abc?list=PL1", "https://youtu.be/abc"},
	}

	for _, test := range tests {
		if got := StripPlaylistParams(test.input); got != test.expected {
			t.Errorf("StripPlaylistParams(%s) = %s, expected %s", test.input, got, test.expected)
		}
	}
}

func TestExtractPlaylistID(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"https://www.youtube.com/playlist?list=PLabc123", "PLabc123"},
		{"https://www.youtube.com/watch?v=x&list=PLdef&index=2", "PLdef"},
		{"https://www.youtube.com/watch?v=x", ""},
		{"::bad", ""},
	}

	for _, test := range tests {
		if got := ExtractPlaylistID(test.input); got != test.expected {
			t.Errorf("ExtractPlaylistID(%s) = %s, expected %s", test.input, got, test.expected)
		}
	}
}

func TestVideoURL(t *testing.T) {
	if got := VideoURL("abc"); got != "https://www.youtube.com/watch?v=abc" {
		t.Errorf("Unexpected URL %s", got)
	}
}
