package model

// TaskStatus represents the lifecycle state of a download task
type TaskStatus string

const (
	// TaskStatusQueued means the task waits in the intake queue
	TaskStatusQueued TaskStatus = "Queued"

	// TaskStatusDownloading means the engine is fetching media
	TaskStatusDownloading TaskStatus = "Downloading"

	// TaskStatusProcessing means media is fetched and being post-processed
	TaskStatusProcessing TaskStatus = "Processing"

	// TaskStatusCompleted means the task finished successfully
	TaskStatusCompleted TaskStatus = "Completed"

	// TaskStatusFailed means the task failed with an error
	TaskStatusFailed TaskStatus = "Failed"

	// TaskStatusCancelled means the task was cancelled by user
	TaskStatusCancelled TaskStatus = "Cancelled"
)

// String returns the string representation of TaskStatus
func (ts TaskStatus) String() string {
	return string(ts)
}

// IsActive returns true if the task occupies a worker slot
func (ts TaskStatus) IsActive() bool {
	return ts == TaskStatusDownloading || ts == TaskStatusProcessing
}

// IsFinished returns true if the task is in a terminal state (completed, failed, or cancelled)
func (ts TaskStatus) IsFinished() bool {
	return ts == TaskStatusCompleted || ts == TaskStatusFailed || ts == TaskStatusCancelled
}

// IsValid reports whether ts is one of the known states
func (ts TaskStatus) IsValid() bool {
	return ts == TaskStatusQueued || ts.IsActive() || ts.IsFinished()
}
