package download

import (
	"testing"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/ytget/ytflow/internal/model"
)

func TestFormatSelector(t *testing.T) {
	tests := []struct {
		kind     model.MediaKind
		quality  string
		expected string
	}{
		{model.KindAudio, "192", AudioFormatSelector},
		{model.KindAudio, "1080p", AudioFormatSelector},
		{model.KindVideo, "1080p", "bestvideo[height<=1080]+bestaudio/best[height<=1080]"},
		{model.KindVideo, "720", "bestvideo[height<=720]+bestaudio/best[height<=720]"},
		{model.KindVideo, " 480P ", "bestvideo[height<=480]+bestaudio/best[height<=480]"},
		{model.KindVideo, "best", BestVideoSelector},
		{model.KindVideo, "", BestVideoSelector},
		{model.KindVideo, "hd", BestVideoSelector},
	}

	for _, test := range tests {
		result := FormatSelector(test.kind, test.quality)
		if result != test.expected {
			t.Errorf("FormatSelector(%s, %q): expected %q, got %q", test.kind, test.quality, test.expected, result)
		}
	}
}

func TestFormatSpeed(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{0, "0B/s"},
		{512, "512B/s"},
		{1536, "1.5KiB/s"},
		{5 * 1024 * 1024, "5.0MiB/s"},
		{3 * 1024 * 1024 * 1024, "3.0GiB/s"},
	}

	for _, test := range tests {
		result := FormatSpeed(test.input)
		if result != test.expected {
			t.Errorf("FormatSpeed(%v): expected %s, got %s", test.input, test.expected, result)
		}
	}
}

func TestProgressFromUpdate(t *testing.T) {
	t.Run("downloading", func(t *testing.T) {
		update := ytdlp.ProgressUpdate{
			Status:          ytdlp.ProgressStatusDownloading,
			TotalBytes:      200,
			DownloadedBytes: 50,
			Started:         time.Now().Add(-2 * time.Second),
		}

		p, ok := progressFromUpdate(&update, false)
		if !ok {
			t.Fatal("Expected update to be mapped")
		}
		if p.Phase != model.TaskStatusDownloading {
			t.Errorf("Expected downloading phase, got %s", p.Phase)
		}
		if p.Percent != 25 {
			t.Errorf("Expected 25%%, got %v", p.Percent)
		}
		if p.Speed == "" {
			t.Error("Expected a speed label")
		}
	})

	t.Run("unknown size", func(t *testing.T) {
		update := ytdlp.ProgressUpdate{Status: ytdlp.ProgressStatusDownloading}

		p, ok := progressFromUpdate(&update, false)
		if !ok {
			t.Fatal("Expected update to be mapped")
		}
		if p.Percent != -1 {
			t.Errorf("Expected unknown percent, got %v", p.Percent)
		}
	})

	t.Run("finished", func(t *testing.T) {
		update := ytdlp.ProgressUpdate{Status: ytdlp.ProgressStatusFinished}

		p, _ := progressFromUpdate(&update, false)
		if p.Percent != 100 || p.Phase != model.TaskStatusDownloading {
			t.Errorf("Expected download complete, got %+v", p)
		}
	})

	t.Run("post-processing", func(t *testing.T) {
		update := ytdlp.ProgressUpdate{Status: ytdlp.ProgressStatusPostProcessing}

		p, _ := progressFromUpdate(&update, false)
		if p.Phase != model.TaskStatusProcessing {
			t.Errorf("Expected processing phase, got %s", p.Phase)
		}
	})

	t.Run("collection item boundaries", func(t *testing.T) {
		for _, status := range []ytdlp.ProgressStatus{ytdlp.ProgressStatusFinished, ytdlp.ProgressStatusPostProcessing} {
			update := ytdlp.ProgressUpdate{Status: status}
			if p, ok := progressFromUpdate(&update, true); ok {
				t.Errorf("Expected %s to be ignored for a collection, got %+v", status, p)
			}
		}
	})
}

func TestProgressFromUpdate_CollectionKeepsDownloading(t *testing.T) {
	task := model.NewDownloadTask("0123456789abcdef", model.DownloadRequest{
		URL:              "https://www.youtube.com/playlist?list=PL123",
		Kind:             model.KindVideo,
		ExpandCollection: true,
	})
	task.Status = model.TaskStatusDownloading

	updates := []ytdlp.ProgressUpdate{
		{Status: ytdlp.ProgressStatusDownloading, TotalBytes: 100, DownloadedBytes: 40},
		{Status: ytdlp.ProgressStatusFinished},
		{Status: ytdlp.ProgressStatusPostProcessing},
		{Status: ytdlp.ProgressStatusDownloading, TotalBytes: 100, DownloadedBytes: 60},
	}

	for _, update := range updates {
		if p, ok := progressFromUpdate(&update, true); ok {
			task.ApplyProgress(p)
		}
	}

	if task.Status != model.TaskStatusDownloading {
		t.Errorf("Expected Downloading, got %s", task.Status)
	}
	if task.Progress != 60 {
		t.Errorf("Expected progress 60, got %v", task.Progress)
	}
}
