package download

import (
	"context"
	"fmt"

	"github.com/lrstanley/go-ytdlp"
)

// EngineInfo describes the resolved yt-dlp executable
type EngineInfo struct {
	Executable string
	Version    string
}

// InstallEngine resolves yt-dlp, downloading or updating the cached copy when needed
func InstallEngine(ctx context.Context) (*EngineInfo, error) {
	resolved, err := ytdlp.Install(ctx, &ytdlp.InstallOptions{
		AllowVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to install yt-dlp: %w", err)
	}

	return &EngineInfo{
		Executable: resolved.Executable,
		Version:    resolved.Version,
	}, nil
}
