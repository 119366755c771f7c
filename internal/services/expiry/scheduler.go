// Package expiry deletes delivered messages after a fixed delay.
//
// Firing is at-most-once and best-effort: a failed deletion (message already
// gone, bot lost its rights) is logged and dropped. Scheduled deletions cannot
// be cancelled or moved.
package expiry

import (
	"context"
	"time"
)

const deleteTimeout = 15 * time.Second

type Deleter interface {
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}

type Scheduler interface {
	Schedule(ctx context.Context, chatID int64, messageID int, delay time.Duration) error
	Pending(ctx context.Context) (int, error)
}

type Timer interface {
	Stop() bool
}

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func SystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
