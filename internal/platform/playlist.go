package platform

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ytget/ytdlp/v2"

	"github.com/ytget/ytflow/internal/model"
)

// Timeout constants
const (
	DefaultExpandTimeout = 30 * time.Second
)

// Default values
const (
	DefaultPlaylistName = "Unknown Playlist"
	PlaylistSuffix      = " Playlist"
	MinPrefixLength     = 10
)

// PlaylistExpander lists the videos of a collection URL
type PlaylistExpander struct {
	timeout time.Duration
	limit   int
}

// NewPlaylistExpander creates an expander. A zero limit lists every item.
func NewPlaylistExpander(timeout time.Duration, limit int) *PlaylistExpander {
	if timeout <= 0 {
		timeout = DefaultExpandTimeout
	}
	return &PlaylistExpander{
		timeout: timeout,
		limit:   limit,
	}
}

// Expand fetches the playlist items referenced by the list parameter of url
func (e *PlaylistExpander) Expand(ctx context.Context, url string) (*model.Playlist, error) {
	playlistID := ExtractPlaylistID(url)
	if playlistID == "" {
		return nil, fmt.Errorf("could not extract playlist ID from URL: %s", url)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	items, err := ytdlp.New().GetPlaylistItemsAll(ctx, playlistID, e.limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist items: %w", err)
	}

	entries := make([]model.PlaylistEntry, 0, len(items))
	for _, it := range items {
		if it.VideoID == "" {
			continue
		}
		entries = append(entries, model.PlaylistEntry{
			VideoID: it.VideoID,
			Title:   it.Title,
			URL:     VideoURL(it.VideoID),
		})
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("playlist %s has no videos", playlistID)
	}

	return &model.Playlist{
		ID:      playlistID,
		Title:   PlaylistTitle(entries),
		URL:     url,
		Entries: entries,
	}, nil
}

// PlaylistTitle derives a label for the playlist from its entries
func PlaylistTitle(entries []model.PlaylistEntry) string {
	if len(entries) == 0 {
		return DefaultPlaylistName
	}
	if len(entries) > 1 {
		commonPrefix := findCommonPrefix(entries[0].Title, entries[1].Title)
		if len(commonPrefix) > MinPrefixLength {
			return strings.TrimSpace(commonPrefix) + PlaylistSuffix
		}
	}
	return entries[0].Title + PlaylistSuffix
}

// findCommonPrefix finds the common prefix between two strings
func findCommonPrefix(s1, s2 string) string {
	minLen := min(len(s1), len(s2))
	for i := 0; i < minLen; i++ {
		if s1[i] != s2[i] {
			return s1[:i]
		}
	}
	return s1[:minLen]
}
