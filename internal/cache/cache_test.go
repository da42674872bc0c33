package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func Test_Remember_NilCacheCallsLoad(t *testing.T) {
	var c *Cache
	calls := 0
	for i := 0; i < 2; i++ {
		v, err := Remember(context.Background(), c, "k", func() (int, error) {
			calls++
			return 42, nil
		})
		if err != nil || v != 42 {
			t.Fatalf("v=%d err=%v", v, err)
		}
	}
	if calls != 2 {
		t.Fatalf("calls = %d", calls)
	}
	c.Invalidate(context.Background(), "k")
	c.Close()
}

func Test_Remember_PropagatesLoadError(t *testing.T) {
	want := errors.New("db down")
	_, err := Remember(context.Background(), nil, "k", func() (int, error) { return 0, want })
	if !errors.Is(err, want) {
		t.Fatalf("err = %v", err)
	}
}

func Test_Remember_UnreachableRedisDegrades(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond})
	c := NewWithClient(client, time.Second, zap.NewNop())
	defer c.Close()

	v, err := Remember(context.Background(), c, "stats", func() (string, error) { return "fresh", nil })
	if err != nil || v != "fresh" {
		t.Fatalf("v=%q err=%v", v, err)
	}
}

func Test_Remember_HitsRedis(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR is empty")
	}
	c := NewWithClient(redis.NewClient(&redis.Options{Addr: addr}), time.Minute, zap.NewNop())
	defer c.Close()
	ctx := context.Background()
	c.Invalidate(ctx, "test:hits")

	calls := 0
	load := func() (map[string]int, error) {
		calls++
		return map[string]int{"RECEIVED": 3}, nil
	}
	for i := 0; i < 3; i++ {
		v, err := Remember(ctx, c, "test:hits", load)
		if err != nil || v["RECEIVED"] != 3 {
			t.Fatalf("v=%v err=%v", v, err)
		}
	}
	if calls != 1 {
		t.Fatalf("load called %d times", calls)
	}
	c.Invalidate(ctx, "test:hits")
}
