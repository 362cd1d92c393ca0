package domain

// Task represents a single board item within a room.
type Task struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}
