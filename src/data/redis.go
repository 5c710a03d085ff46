package data

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	noncePrefix  = "forum:nonce:"
	nonceTTL     = 5 * time.Minute
	streamEvents = "bobu.forum.events"
)

// ErrNoNonce is returned when no challenge is pending for an address.
var ErrNoNonce = errors.New("no pending challenge")

func MustRedis(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	return redis.NewClient(opt)
}

// Nonces stores sign-in challenges, one per address, consumed on read.
type Nonces struct {
	rdb *redis.Client
}

func NewNonces(rdb *redis.Client) Nonces { return Nonces{rdb: rdb} }

func (n Nonces) Set(ctx context.Context, addr, nonce string) error {
	return n.rdb.Set(ctx, noncePrefix+addr, nonce, nonceTTL).Err()
}

func (n Nonces) Take(ctx context.Context, addr string) (string, error) {
	v, err := n.rdb.GetDel(ctx, noncePrefix+addr).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoNonce
	}
	return v, err
}

// Events appends forum events to a Redis stream for downstream consumers.
type Events struct {
	rdb *redis.Client
}

func NewEvents(rdb *redis.Client) Events { return Events{rdb: rdb} }

func (e Events) Publish(ctx context.Context, kind string, fields map[string]interface{}) error {
	values := make(map[string]interface{}, len(fields)+2)
	for k, v := range fields {
		values[k] = v
	}
	values["kind"] = kind
	values["at"] = time.Now().Unix()
	_, err := e.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: streamEvents,
		MaxLen: 10000,
		Approx: true,
		Values: values,
	}).Result()
	return err
}
