package domain

// CleanupTask is one images_released event ready for processing
type CleanupTask struct {
	JobID  int64
	UserID int64
	Images []string
}

// CleanupResult reports what happened to each image of a task
type CleanupResult struct {
	Removed    []string
	Referenced []string
	Skipped    []string
}
