package lock

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var ErrLockFailed = errors.New("获取分布式锁失败")

const (
	lockExpiration = 30 * time.Second
	retryInterval  = 100 * time.Millisecond
	maxRetries     = 50
)

// 释放时先验证持有者再删除，避免误删他人已重新持有的锁
const unlockScript = `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`

// DistributedLock 基于 Redis SetNX 的分布式锁
// 加锁: SET key value NX EX，value 为持有者标识
// 解锁: Lua 脚本里验证 value 后删除，保证原子性
type DistributedLock struct {
	client *redis.Client
}

func NewDistributedLock(client *redis.Client) *DistributedLock {
	return &DistributedLock{client: client}
}

// Acquire 阻塞式获取锁（带重试），返回释放函数
func (l *DistributedLock) Acquire(ctx context.Context, key string) (func(), error) {
	value := uuid.NewString()
	for i := 0; i < maxRetries; i++ {
		ok, err := l.client.SetNX(ctx, key, value, lockExpiration).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				l.client.Eval(context.Background(), unlockScript, []string{key}, value)
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return nil, ErrLockFailed
}
