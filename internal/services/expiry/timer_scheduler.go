package expiry

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrSchedulerClosed = errors.New("expiry scheduler is closed")

// TimerScheduler keeps one in-memory timer per message. Pending deletions do
// not survive a restart.
type TimerScheduler struct {
	deleter Deleter
	clock   Clock
	logger  *zap.Logger

	mu     sync.Mutex
	seq    uint64
	timers map[uint64]Timer
	closed bool
}

func NewTimerScheduler(deleter Deleter, clock Clock, logger *zap.Logger) *TimerScheduler {
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimerScheduler{
		deleter: deleter,
		clock:   clock,
		logger:  logger,
		timers:  make(map[uint64]Timer),
	}
}

func (s *TimerScheduler) Schedule(_ context.Context, chatID int64, messageID int, delay time.Duration) error {
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSchedulerClosed
	}

	s.seq++
	id := s.seq
	s.timers[id] = s.clock.AfterFunc(delay, func() {
		s.fire(id, chatID, messageID)
	})

	s.logger.Debug("message deletion scheduled",
		zap.Int64("chat_id", chatID),
		zap.Int("message_id", messageID),
		zap.Time("fire_at", s.clock.Now().Add(delay)))
	return nil
}

func (s *TimerScheduler) Pending(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers), nil
}

// Close stops all pending timers. Their deletions are dropped.
func (s *TimerScheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true

	dropped := 0
	for id, timer := range s.timers {
		if timer.Stop() {
			dropped++
		}
		delete(s.timers, id)
	}
	if dropped > 0 {
		s.logger.Warn("pending message deletions dropped on shutdown", zap.Int("count", dropped))
	}
}

func (s *TimerScheduler) fire(id uint64, chatID int64, messageID int) {
	s.mu.Lock()
	_, ok := s.timers[id]
	delete(s.timers, id)
	s.mu.Unlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeout)
	defer cancel()
	deleteMessage(ctx, s.deleter, s.logger, chatID, messageID)
}

func deleteMessage(ctx context.Context, deleter Deleter, logger *zap.Logger, chatID int64, messageID int) {
	if err := deleter.DeleteMessage(ctx, chatID, messageID); err != nil {
		logger.Warn("scheduled message deletion failed",
			zap.Int64("chat_id", chatID),
			zap.Int("message_id", messageID),
			zap.Error(err))
		return
	}
	logger.Info("scheduled message deleted",
		zap.Int64("chat_id", chatID),
		zap.Int("message_id", messageID))
}
