package platform

import (
	"fmt"
	"net/url"
	"strings"
)

// URL query parameters that bind a video to a collection
const (
	PlaylistQueryParam = "list"
	IndexQueryParam    = "index"
)

// URL templates
const (
	YouTubeVideoURLTemplate = "https://www.youtube.com/watch?v=%s"
)

// DefaultAllowedOrigins are the hosts accepted when no allow-list is configured
var DefaultAllowedOrigins = []string{"youtube.com", "youtu.be", "youtube-nocookie.com"}

// OriginPolicy decides which hosts may be submitted for download
type OriginPolicy struct {
	hosts []string
}

// NewOriginPolicy creates a policy accepting the given hosts and their subdomains
func NewOriginPolicy(hosts []string) *OriginPolicy {
	if len(hosts) == 0 {
		hosts = DefaultAllowedOrigins
	}

	p := &OriginPolicy{}
	for _, h := range hosts {
		h = strings.Trim(strings.ToLower(strings.TrimSpace(h)), ".")
		if h != "" {
			p.hosts = append(p.hosts, h)
		}
	}
	return p
}

// Hosts returns the accepted host suffixes
func (p *OriginPolicy) Hosts() []string {
	return append([]string(nil), p.hosts...)
}

// Check returns an error unless raw is an absolute http(s) URL on an allowed host
func (p *OriginPolicy) Check(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("malformed url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported url scheme: %q", u.Scheme)
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return fmt.Errorf("url has no host")
	}

	for _, allowed := range p.hosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return nil
		}
	}

	return fmt.Errorf("unsupported origin: %s", host)
}

// StripPlaylistParams removes the collection binding from a single video URL
func StripPlaylistParams(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	q := u.Query()
	if !q.Has(PlaylistQueryParam) && !q.Has(IndexQueryParam) {
		return raw
	}

	q.Del(PlaylistQueryParam)
	q.Del(IndexQueryParam)
	u.RawQuery = q.Encode()

	return u.String()
}

// ExtractPlaylistID returns the list parameter of a collection URL
func ExtractPlaylistID(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(u.Query().Get(PlaylistQueryParam))
}

// VideoURL builds a watch URL for a video id
func VideoURL(videoID string) string {
	return fmt.Sprintf(YouTubeVideoURLTemplate, videoID)
}
