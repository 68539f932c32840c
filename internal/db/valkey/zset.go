package valkey

import (
	"context"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/discovery/internal/db"
)

// ZAddGreater adds members via ZADD GT: new members are inserted, existing
// ones only move forward.
func (s *Store) ZAddGreater(ctx context.Context, key string, members []db.ScoredMember) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]string, 0, 1+len(members)*2)
	args = append(args, "GT")
	for _, m := range members {
		args = append(args, formatScore(m.Score), m.Member)
	}

	cmd := s.b().Arbitrary("ZADD").Keys(key).Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpZAdd, Err: err}
	}
	return nil
}

// ZRevRangeByScore returns up to limit members in [minScore, maxScore], highest score first.
func (s *Store) ZRevRangeByScore(
	ctx context.Context, key string, minScore, maxScore float64, limit int,
) ([]db.ScoredMember, error) {
	cmd := s.b().Zrevrangebyscore().Key(key).
		Max(formatScore(maxScore)).Min(formatScore(minScore)).
		Withscores().Limit(0, int64(limit)).Build()

	scores, err := s.do(ctx, cmd).AsZScores()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, nil
		}
		return nil, &db.Error{Op: db.OpZRevRangeByScore, Err: err}
	}

	out := make([]db.ScoredMember, len(scores))
	for i, z := range scores {
		out[i] = db.ScoredMember{Member: z.Member, Score: z.Score}
	}
	return out, nil
}

// ZRemRangeByScore removes members with scores in [minScore, maxScore].
func (s *Store) ZRemRangeByScore(ctx context.Context, key string, minScore, maxScore float64) error {
	cmd := s.b().Zremrangebyscore().Key(key).
		Min(formatScore(minScore)).Max(formatScore(maxScore)).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpZRemRangeByScore, Err: err}
	}
	return nil
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
