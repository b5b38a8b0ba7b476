package domain

import "time"

// MinContentLength is the shortest markdown body accepted for a broadcast.
const MinContentLength = 20

// Update is a timeline entry. It is deleted again when its broadcast
// reached nobody.
type Update struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	ContentMD   string    `json:"content_md"`
	CreatedAt   time.Time `json:"created_at"`
	EmailSent   bool      `json:"email_sent"`
	SentCount   int       `json:"sent_count"`
	FailedCount int       `json:"failed_count"`
}

// Delivery is the recorded outcome of a broadcast.
type Delivery struct {
	EmailSent bool
	Sent      int
	Failed    int
}
