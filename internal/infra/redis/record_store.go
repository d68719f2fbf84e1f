package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-eval-service/internal/domain"
)

// RecordStore keeps each domain collection in Redis:
//
//	RPUSH eval:{collection}:records <record json>
//	HINCRBY eval:{collection}:counts correct|incorrect 1
//
// Both writes run in one MULTI so counts and records stay in step.
type RecordStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRecordStore builds a store. A ttl of zero keeps records forever.
func NewRecordStore(client *redis.Client, ttl time.Duration) *RecordStore {
	return &RecordStore{client: client, ttl: ttl}
}

func (s *RecordStore) Create(ctx context.Context, d domain.Domain, rec domain.Record) error {
	collection := d.Collection()
	if collection == "" {
		return domain.ErrUnknownDomain
	}
	if rec.Domain == "" {
		rec.Domain = d
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	recordsKey := s.recordsKey(collection)
	countsKey := s.countsKey(collection)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, recordsKey, payload)
		pipe.HIncrBy(ctx, countsKey, countField(rec.CorrectBoolean), 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, recordsKey, s.ttl)
			pipe.Expire(ctx, countsKey, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save %s record: %w", collection, err)
	}
	return nil
}

func (s *RecordStore) Count(ctx context.Context, d domain.Domain, correct bool) (int, error) {
	collection := d.Collection()
	if collection == "" {
		return 0, domain.ErrUnknownDomain
	}
	n, err := s.client.HGet(ctx, s.countsKey(collection), countField(correct)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

func (s *RecordStore) ResponseTimes(ctx context.Context, d domain.Domain) ([]int64, error) {
	collection := d.Collection()
	if collection == "" {
		return nil, domain.ErrUnknownDomain
	}
	raw, err := s.client.LRange(ctx, s.recordsKey(collection), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	times := make([]int64, 0, len(raw))
	for _, item := range raw {
		var rec domain.Record
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("decode %s record: %w", collection, err)
		}
		times = append(times, rec.ResponseTimeMs)
	}
	return times, nil
}

func (s *RecordStore) recordsKey(collection string) string {
	return "eval:" + collection + ":records"
}

func (s *RecordStore) countsKey(collection string) string {
	return "eval:" + collection + ":counts"
}

func countField(correct bool) string {
	if correct {
		return "correct"
	}
	return "incorrect"
}
