package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RentSmsSeen 记录每个租用订单已推送的短信条数
// key 按订单设 TTL，随租期结束自然过期
type RentSmsSeen struct {
	client *redis.Client
}

func NewRentSmsSeen(client *redis.Client) *RentSmsSeen {
	return &RentSmsSeen{client: client}
}

func (s *RentSmsSeen) key(orderID string) string {
	return fmt.Sprintf("rent:sms:seen:%s", orderID)
}

// Seen 返回已推送条数，没有记录视为 0
func (s *RentSmsSeen) Seen(ctx context.Context, orderID string) (int, error) {
	seen, err := s.client.Get(ctx, s.key(orderID)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	return seen, err
}

// MarkSeen 覆盖写入已推送条数
func (s *RentSmsSeen) MarkSeen(ctx context.Context, orderID string, count int, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(orderID), count, ttl).Err()
}
