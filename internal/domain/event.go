package domain

// EventImagesReleased is published when a saved job stops referencing
// stored image files, either by an update or a delete.
const EventImagesReleased = "images_released"

// ImagesReleasedEvent is the RabbitMQ message body for EventImagesReleased
type ImagesReleasedEvent struct {
	Event  string   `json:"event"`
	JobID  int64    `json:"job_id"`
	UserID int64    `json:"user_id"`
	Images []string `json:"images"`
}
