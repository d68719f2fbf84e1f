package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Presence marks connected live-update observers in Redis so other instances
// and operators can see who is watching. Markers expire after ttl in case a
// process dies without calling Leave.
type Presence struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewPresence(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Presence {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Presence{client: client, ttl: ttl, logger: logger}
}

// Join sets the liveness marker for an observer. Best effort.
func (p *Presence) Join(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	pipe := p.client.TxPipeline()
	pipe.Set(ctx, p.key(id), "1", p.ttl)
	pipe.SAdd(ctx, observersKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		p.logger.Warn("failed to mark observer present", zap.String("observer", id), zap.Error(err))
	}
}

// Leave removes the liveness marker for an observer. Best effort.
func (p *Presence) Leave(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	pipe := p.client.TxPipeline()
	pipe.Del(ctx, p.key(id))
	pipe.SRem(ctx, observersKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		p.logger.Warn("failed to clear observer marker", zap.String("observer", id), zap.Error(err))
	}
}

// Refresh extends the marker of every id still connected, re-adding any
// marker that already expired.
func (p *Presence) Refresh(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pipe := p.client.TxPipeline()
	members := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		pipe.Set(ctx, p.key(id), "1", p.ttl)
		members = append(members, id)
	}
	pipe.SAdd(ctx, observersKey, members...)
	_, err := pipe.Exec(ctx)
	return err
}

// Keepalive refreshes the markers of ids() every half ttl until ctx is done.
func (p *Presence) Keepalive(ctx context.Context, ids func() []string) {
	interval := p.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Refresh(ctx, ids()); err != nil && ctx.Err() == nil {
				p.logger.Warn("failed to refresh observer markers", zap.Error(err))
			}
		}
	}
}

// Count returns how many observers are still marked live, pruning set members
// whose marker has expired.
func (p *Presence) Count(ctx context.Context) (int, error) {
	ids, err := p.client.SMembers(ctx, observersKey).Result()
	if err != nil {
		return 0, err
	}
	live := 0
	for _, id := range ids {
		n, err := p.client.Exists(ctx, p.key(id)).Result()
		if err != nil {
			return 0, err
		}
		if n == 0 {
			_ = p.client.SRem(ctx, observersKey, id).Err()
			continue
		}
		live++
	}
	return live, nil
}

const observersKey = "eval:observers"

func (p *Presence) key(id string) string {
	return "eval:observer:" + id
}
