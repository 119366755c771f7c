package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/ivankudzin/tgdrop/internal/domain/model"
)

const defaultDeletionKey = "expiry:deletions"

// DeletionRepo keeps pending message deletions in a sorted set scored by
// fire time in unix milliseconds.
type DeletionRepo struct {
	client *goredis.Client
	key    string
}

type deletionMember struct {
	ID        string `json:"id"`
	ChatID    int64  `json:"chat_id"`
	MessageID int    `json:"message_id"`
}

func NewDeletionRepo(client *goredis.Client, key string) *DeletionRepo {
	if key == "" {
		key = defaultDeletionKey
	}
	return &DeletionRepo{client: client, key: key}
}

func (r *DeletionRepo) Enqueue(ctx context.Context, deletion model.ScheduledDeletion) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if deletion.ChatID == 0 || deletion.MessageID <= 0 {
		return fmt.Errorf("invalid deletion payload")
	}
	if deletion.ID == "" {
		deletion.ID = uuid.NewString()
	}

	member, err := json.Marshal(deletionMember{
		ID:        deletion.ID,
		ChatID:    deletion.ChatID,
		MessageID: deletion.MessageID,
	})
	if err != nil {
		return fmt.Errorf("encode deletion: %w", err)
	}

	if err := r.client.ZAdd(ctx, r.key, goredis.Z{
		Score:  float64(deletion.FireAt.UnixMilli()),
		Member: string(member),
	}).Err(); err != nil {
		return fmt.Errorf("enqueue deletion: %w", err)
	}
	return nil
}

// PopDue claims up to limit deletions due at now. A deletion is returned only
// to the caller whose ZREM removed it, so concurrent pollers never share one.
func (r *DeletionRepo) PopDue(ctx context.Context, now time.Time, limit int) ([]model.ScheduledDeletion, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if limit <= 0 {
		limit = 100
	}

	members, err := r.client.ZRangeByScoreWithScores(ctx, r.key, &goredis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list due deletions: %w", err)
	}

	out := make([]model.ScheduledDeletion, 0, len(members))
	for _, z := range members {
		raw, ok := z.Member.(string)
		if !ok {
			continue
		}
		removed, err := r.client.ZRem(ctx, r.key, raw).Result()
		if err != nil {
			return out, fmt.Errorf("claim deletion: %w", err)
		}
		if removed != 1 {
			continue
		}

		var member deletionMember
		if err := json.Unmarshal([]byte(raw), &member); err != nil {
			// Undecodable members are dropped with the claim.
			continue
		}
		out = append(out, model.ScheduledDeletion{
			ID:        member.ID,
			ChatID:    member.ChatID,
			MessageID: member.MessageID,
			FireAt:    time.UnixMilli(int64(z.Score)).UTC(),
		})
	}
	return out, nil
}

func (r *DeletionRepo) Len(ctx context.Context) (int64, error) {
	if r.client == nil {
		return 0, fmt.Errorf("redis client is nil")
	}
	n, err := r.client.ZCard(ctx, r.key).Result()
	if err != nil {
		return 0, fmt.Errorf("count pending deletions: %w", err)
	}
	return n, nil
}
