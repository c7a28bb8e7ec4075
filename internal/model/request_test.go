package model

import "testing"

func TestParseMediaKind(t *testing.T) {
	tests := []struct {
		input    string
		expected MediaKind
		wantErr  bool
	}{
		{"video", KindVideo, false},
		{"", KindVideo, false},
		{" Audio ", KindAudio, false},
		{"podcast", "", true},
	}

	for _, test := range tests {
		kind, err := ParseMediaKind(test.input)
		if (err != nil) != test.wantErr {
			t.Errorf("ParseMediaKind(%q) error = %v, wantErr %v", test.input, err, test.wantErr)
			continue
		}
		if kind != test.expected {
			t.Errorf("ParseMediaKind(%q) = %s, expected %s", test.input, kind, test.expected)
		}
	}
}

func TestDownloadRequest_WithDefaults(t *testing.T) {
	tests := []struct {
		name     string
		req      DownloadRequest
		quality  string
		format   string
		expTitle string
	}{
		{"video defaults", DownloadRequest{URL: " https://youtu.be/x "}, DefaultVideoQuality, DefaultVideoFormat, DefaultTitle},
		{"audio defaults", DownloadRequest{URL: "u", Kind: KindAudio}, DefaultAudioQuality, DefaultAudioFormat, DefaultTitle},
		{"audio with video hints", DownloadRequest{URL: "u", Kind: KindAudio, Quality: "1080p", Format: "mp4"}, DefaultAudioQuality, DefaultAudioFormat, DefaultTitle},
		{"explicit", DownloadRequest{URL: "u", Kind: KindVideo, Quality: "720P", Format: ".MKV", Title: "Clip"}, "720p", "mkv", "Clip"},
	}

	for _, test := range tests {
		r := test.req.WithDefaults()
		if r.Quality != test.quality {
			t.Errorf("%s: expected quality %s, got %s", test.name, test.quality, r.Quality)
		}
		if r.Format != test.format {
			t.Errorf("%s: expected format %s, got %s", test.name, test.format, r.Format)
		}
		if r.Title != test.expTitle {
			t.Errorf("%s: expected title %s, got %s", test.name, test.expTitle, r.Title)
		}
	}
}

func TestDownloadRequest_Validate(t *testing.T) {
	if err := (DownloadRequest{Kind: KindVideo}).Validate(); err == nil {
		t.Error("Expected error for empty URL")
	}
	if err := (DownloadRequest{URL: "u", Kind: "gif"}).Validate(); err == nil {
		t.Error("Expected error for unknown kind")
	}
	if err := (DownloadRequest{URL: "u", Kind: KindAudio}).Validate(); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}
