package middleware

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// IPBlocker manages temporary IP blocks in Redis.
type IPBlocker struct {
	client *redis.Client
}

func NewIPBlocker(client *redis.Client) *IPBlocker {
	return &IPBlocker{client: client}
}

func blockKey(ip string) string { return "blocked:ip:" + ip }

// IsBlocked reports whether ip is currently blocked.
func (b *IPBlocker) IsBlocked(ctx context.Context, ip string) bool {
	if b.client == nil {
		return false
	}
	n, _ := b.client.Exists(ctx, blockKey(ip)).Result()
	return n > 0
}

// Block blocks ip for duration, recording reason.
func (b *IPBlocker) Block(ctx context.Context, ip string, duration time.Duration, reason string) {
	if b.client != nil {
		b.client.Set(ctx, blockKey(ip), reason, duration)
	}
}

// Unblock removes a block on ip.
func (b *IPBlocker) Unblock(ctx context.Context, ip string) {
	if b.client != nil {
		b.client.Del(ctx, blockKey(ip))
	}
}
