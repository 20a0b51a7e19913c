package notifications

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

const ChannelPrefix = "civicfix:notifications:"

// RedisNotifier publishes notices on a per-owner channel so a push gateway
// can forward them to connected clients.
type RedisNotifier struct {
	rdb redis.Cmdable
}

func NewRedisNotifier(rdb redis.Cmdable) *RedisNotifier {
	return &RedisNotifier{rdb: rdb}
}

func Channel(ownerID string) string {
	return ChannelPrefix + ownerID
}

func (n *RedisNotifier) NotifyComment(ctx context.Context, in CommentNotice) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return n.rdb.Publish(ctx, Channel(in.OwnerID), payload).Err()
}
