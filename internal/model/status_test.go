package model

import "testing"

func TestTaskStatus_IsActive(t *testing.T) {
	tests := []struct {
		status   TaskStatus
		expected bool
	}{
		{TaskStatusQueued, false},
		{TaskStatusDownloading, true},
		{TaskStatusProcessing, true},
		{TaskStatusCompleted, false},
		{TaskStatusFailed, false},
		{TaskStatusCancelled, false},
	}

	for _, test := range tests {
		result := test.status.IsActive()
		if result != test.expected {
			t.Errorf("TaskStatus(%s).IsActive() = %v, expected %v", test.status, result, test.expected)
		}
	}
}

func TestTaskStatus_IsFinished(t *testing.T) {
	tests := []struct {
		status   TaskStatus
		expected bool
	}{
		{TaskStatusQueued, false},
		{TaskStatusDownloading, false},
		{TaskStatusProcessing, false},
		{TaskStatusCompleted, true},
		{TaskStatusFailed, true},
		{TaskStatusCancelled, true},
	}

	for _, test := range tests {
		result := test.status.IsFinished()
		if result != test.expected {
			t.Errorf("TaskStatus(%s).IsFinished() = %v, expected %v", test.status, result, test.expected)
		}
	}
}

func TestTaskStatus_IsValid(t *testing.T) {
	if !TaskStatusQueued.IsValid() {
		t.Error("Expected Queued to be valid")
	}
	if TaskStatus("Paused").IsValid() {
		t.Error("Expected Paused to be invalid")
	}
}

func TestTaskStatus_String(t *testing.T) {
	status := TaskStatusDownloading
	expected := "Downloading"
	result := status.String()

	if result != expected {
		t.Errorf("TaskStatus.String() = %s, expected %s", result, expected)
	}
}
