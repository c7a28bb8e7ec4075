package model

// PlaylistEntry represents a single video in a playlist
type PlaylistEntry struct {
	VideoID string `json:"video_id"`
	Title   string `json:"title"`
	URL     string `json:"url"`
}

// Playlist represents an expanded collection URL
type Playlist struct {
	ID      string          `json:"id"`
	Title   string          `json:"title"`
	URL     string          `json:"url"`
	Entries []PlaylistEntry `json:"entries"`
}
