package expiry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ivankudzin/tgdrop/internal/domain/model"
)

// Queue is durable storage for pending deletions. PopDue must hand each
// deletion to exactly one caller.
type Queue interface {
	Enqueue(context.Context, model.ScheduledDeletion) error
	PopDue(ctx context.Context, now time.Time, limit int) ([]model.ScheduledDeletion, error)
	Len(context.Context) (int64, error)
}

// QueueScheduler persists deletions in a Queue and fires them from Run, so
// pending deletions survive restarts.
type QueueScheduler struct {
	queue     Queue
	deleter   Deleter
	interval  time.Duration
	batchSize int
	now       func() time.Time
	logger    *zap.Logger
}

func NewQueueScheduler(queue Queue, deleter Deleter, interval time.Duration, logger *zap.Logger) *QueueScheduler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueScheduler{
		queue:     queue,
		deleter:   deleter,
		interval:  interval,
		batchSize: 100,
		now:       time.Now,
		logger:    logger,
	}
}

func (s *QueueScheduler) Schedule(ctx context.Context, chatID int64, messageID int, delay time.Duration) error {
	if delay < 0 {
		delay = 0
	}
	deletion := model.ScheduledDeletion{
		ChatID:    chatID,
		MessageID: messageID,
		FireAt:    s.now().Add(delay).UTC(),
	}
	if err := s.queue.Enqueue(ctx, deletion); err != nil {
		return fmt.Errorf("enqueue message deletion: %w", err)
	}
	return nil
}

func (s *QueueScheduler) Pending(ctx context.Context) (int, error) {
	n, err := s.queue.Len(ctx)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *QueueScheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.FireDue(ctx); err != nil {
			s.logger.Warn("poll due message deletions", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// FireDue deletes every message whose fire time has passed and returns how many were attempted.
func (s *QueueScheduler) FireDue(ctx context.Context) (int, error) {
	fired := 0
	for {
		due, err := s.queue.PopDue(ctx, s.now(), s.batchSize)
		if err != nil {
			return fired, fmt.Errorf("pop due deletions: %w", err)
		}
		// Claimed deletions are already gone from the queue, so they finish
		// even when ctx is cancelled mid-batch.
		for _, deletion := range due {
			deleteCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deleteTimeout)
			deleteMessage(deleteCtx, s.deleter, s.logger, deletion.ChatID, deletion.MessageID)
			cancel()
			fired++
		}
		if len(due) < s.batchSize || ctx.Err() != nil {
			return fired, nil
		}
	}
}
