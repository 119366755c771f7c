package model

import "time"

type ScheduledDeletion struct {
	ID        string
	ChatID    int64
	MessageID int
	FireAt    time.Time
}
