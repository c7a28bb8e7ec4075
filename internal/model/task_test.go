package model

import (
	"testing"
)

func TestDownloadTask_GetETAString(t *testing.T) {
	tests := []struct {
		etaSec   int
		expected string
	}{
		{-1, "—"},
		{0, "—"},
		{30, "00:30"},
		{90, "01:30"},
		{3600, "01:00:00"},
		{3661, "01:01:01"},
		{7323, "02:02:03"},
	}

	for _, test := range tests {
		task := &DownloadTask{ETASec: test.etaSec}
		result := task.GetETAString()
		if result != test.expected {
			t.Errorf("GetETAString() with ETASec=%d = %s, expected %s", test.etaSec, result, test.expected)
		}
	}
}

func TestDownloadTask_GetDisplayTitle(t *testing.T) {
	tests := []struct {
		title    string
		url      string
		outputs  []string
		expected string
	}{
		{"Video Title", "https://youtube.com/watch?v=123", nil, "Video Title"},
		{"", "https://youtube.com/watch?v=123", nil, "https://youtube.com/watch?v=123"},
		{DefaultTitle, "https://youtube.com/watch?v=123", []string{"/tmp/out/Some Clip.mp4"}, "Some Clip"},
		{DefaultTitle, "https://youtube.com/watch?v=123", []string{`C:\Users\me\Song.mp3`}, "Song"},
		{DefaultTitle, "", nil, DefaultTitle},
	}

	for _, test := range tests {
		task := &DownloadTask{
			Title:       test.title,
			URL:         test.url,
			OutputPaths: test.outputs,
		}
		result := task.GetDisplayTitle()
		if result != test.expected {
			t.Errorf("GetDisplayTitle() with title='%s', url='%s' = '%s', expected '%s'",
				test.title, test.url, result, test.expected)
		}
	}
}

func TestNewDownloadTask(t *testing.T) {
	req := DownloadRequest{URL: "https://youtu.be/abc", Kind: KindAudio}.WithDefaults()
	task := NewDownloadTask("0198a1b2-0000-7000-8000-000000000000", req)

	if task.Status != TaskStatusQueued {
		t.Errorf("Expected status %s, got %s", TaskStatusQueued, task.Status)
	}
	if task.ETASec != -1 {
		t.Errorf("Expected ETASec -1, got %d", task.ETASec)
	}
	if task.Format != DefaultAudioFormat {
		t.Errorf("Expected format %s, got %s", DefaultAudioFormat, task.Format)
	}
	if task.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
	if task.GetShortID() != "0198a1b2" {
		t.Errorf("Expected short id 0198a1b2, got %s", task.GetShortID())
	}
}

func TestDownloadTask_Clone(t *testing.T) {
	task := &DownloadTask{ID: "a", OutputPaths: []string{"/x.mp4"}}
	c := task.Clone()
	c.OutputPaths[0] = "/y.mp4"

	if task.OutputPaths[0] != "/x.mp4" {
		t.Errorf("Clone shares OutputPaths with the original: %s", task.OutputPaths[0])
	}
}

func TestDownloadTask_ApplyProgress(t *testing.T) {
	task := &DownloadTask{Status: TaskStatusDownloading, ETASec: -1}

	task.ApplyProgress(Progress{Phase: TaskStatusDownloading, Percent: 40, Speed: "1.0MiB/s", ETASec: 12})
	if task.Progress != 40 || task.Speed != "1.0MiB/s" || task.ETASec != 12 {
		t.Errorf("Unexpected state after first update: %+v", task)
	}

	// a second stream restarts at zero, progress must stay put
	task.ApplyProgress(Progress{Phase: TaskStatusDownloading, Percent: 5, ETASec: -1})
	if task.Progress != 40 {
		t.Errorf("Expected progress to stay at 40, got %v", task.Progress)
	}
	if task.ETASec != 12 {
		t.Errorf("Expected unknown ETA to keep previous value, got %d", task.ETASec)
	}

	task.ApplyProgress(Progress{Phase: TaskStatusDownloading, Percent: 250})
	if task.Progress != 100 {
		t.Errorf("Expected progress clamped to 100, got %v", task.Progress)
	}

	task.ApplyProgress(Progress{Phase: TaskStatusProcessing, Percent: 30})
	if task.Status != TaskStatusProcessing {
		t.Fatalf("Expected status %s, got %s", TaskStatusProcessing, task.Status)
	}
	if task.ProcessingProgress != 30 {
		t.Errorf("Expected processing progress 30, got %v", task.ProcessingProgress)
	}

	task.ApplyProgress(Progress{Phase: TaskStatusDownloading, Percent: 99})
	if task.Status != TaskStatusProcessing {
		t.Errorf("Task moved back to %s", task.Status)
	}
}

func TestDownloadTask_ApplyProgressIgnoredWhenInactive(t *testing.T) {
	task := &DownloadTask{Status: TaskStatusCancelled}
	task.ApplyProgress(Progress{Phase: TaskStatusDownloading, Percent: 50})

	if task.Progress != 0 {
		t.Errorf("Expected inactive task to ignore progress, got %v", task.Progress)
	}
}
