package redis

import (
	"context"

	"github.com/bazaarline/discovery/internal/db"
)

// ZAdd adds members with scores to a sorted set.
func (s *Store) ZAdd(ctx context.Context, key string, items ...db.ZAddItem) error {
	if len(items) == 0 {
		return nil
	}
	cmd := s.b().Zadd().Key(key).ScoreMember()
	for _, item := range items {
		cmd = cmd.ScoreMember(item.Score, item.Member)
	}
	if err := s.do(ctx, cmd.Build()).Error(); err != nil {
		return &db.Error{Op: db.OpZAdd, Err: err}
	}
	return nil
}

// ZRem removes members from a sorted set.
func (s *Store) ZRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	cmd := s.b().Zrem().Key(key).Member(members...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpZRem, Err: err}
	}
	return nil
}

// ZRevRange returns members ordered by descending score, inclusive of start and stop.
func (s *Store) ZRevRange(ctx context.Context, key string, start, stop int) ([]string, error) {
	cmd := s.b().Zrevrange().Key(key).Start(int64(start)).Stop(int64(stop)).Build()
	members, err := s.do(ctx, cmd).AsStrSlice()
	if err != nil {
		return nil, &db.Error{Op: db.OpZRevRange, Err: err}
	}
	return members, nil
}
