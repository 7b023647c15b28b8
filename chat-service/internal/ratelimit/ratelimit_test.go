package ratelimit

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// Runs against a real server when TEST_REDIS_ADDR is set.
func TestRedisLimiter(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx := context.Background()
	prefix := fmt.Sprintf("test:rl:%d", time.Now().UnixNano())
	l := NewRedisLimiter(client, prefix, 3, time.Minute)

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, 1)
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		if !ok {
			t.Fatalf("message %d rejected under the limit", i+1)
		}
	}
	if ok, _ := l.Allow(ctx, 1); ok {
		t.Fatal("message over the limit allowed")
	}
	if ok, _ := l.Allow(ctx, 2); !ok {
		t.Fatal("limit leaked across users")
	}
}

func TestUnlimited(t *testing.T) {
	ok, err := Unlimited{}.Allow(context.Background(), 1)
	if !ok || err != nil {
		t.Fatalf("Unlimited.Allow = %v, %v", ok, err)
	}
}
