package redis

import (
	"context"
	"errors"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/gate"
)

// raiseProgress stores max(current, ARGV[2]) for field ARGV[1] and returns the stored value.
var raiseProgress = redis.NewScript(`
local current = tonumber(redis.call('HGET', KEYS[1], ARGV[1]) or '0')
local n = tonumber(ARGV[2])
if n > current then
  redis.call('HSET', KEYS[1], ARGV[1], n)
  return n
end
return current
`)

// ProgressStore keeps gate state in Redis so every instance sees the same pause points
// and progress:
//
//	quiz:{quizID}:progress  HASH participantID -> furthest question number
//	quiz:{quizID}:pauses    ZSET member and score = pause point
type ProgressStore struct {
	client *redis.Client
}

func NewProgressStore(client *redis.Client) *ProgressStore {
	return &ProgressStore{client: client}
}

func (s *ProgressStore) RecordProgress(ctx context.Context, quizID, participantID string, questionNumber int) (int, error) {
	n, err := raiseProgress.Run(ctx, s.client, []string{progressKey(quizID)}, participantID, questionNumber).Int()
	if err != nil {
		return 0, domain.Unavailable("record progress", err)
	}
	return n, nil
}

func (s *ProgressStore) Progress(ctx context.Context, quizID, participantID string) (int, error) {
	n, err := s.client.HGet(ctx, progressKey(quizID), participantID).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, domain.Unavailable("read progress", err)
	}
	return n, nil
}

func (s *ProgressStore) AllProgress(ctx context.Context, quizID string) (map[string]int, error) {
	raw, err := s.client.HGetAll(ctx, progressKey(quizID)).Result()
	if err != nil {
		return nil, domain.Unavailable("read progress", err)
	}
	out := make(map[string]int, len(raw))
	for id, v := range raw {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, domain.Unavailable("read progress", err)
		}
		out[id] = n
	}
	return out, nil
}

// SetPausePoints replaces the whole set in one MULTI so readers never see a partial set.
func (s *ProgressStore) SetPausePoints(ctx context.Context, quizID string, points []int) error {
	key := pausesKey(quizID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(points) == 0 {
			return nil
		}
		members := make([]redis.Z, 0, len(points))
		for _, p := range points {
			members = append(members, redis.Z{Score: float64(p), Member: strconv.Itoa(p)})
		}
		pipe.ZAdd(ctx, key, members...)
		return nil
	})
	if err != nil {
		return domain.Unavailable("set pause points", err)
	}
	return nil
}

func (s *ProgressStore) PausePoints(ctx context.Context, quizID string) ([]int, error) {
	raw, err := s.client.ZRange(ctx, pausesKey(quizID), 0, -1).Result()
	if err != nil {
		return nil, domain.Unavailable("read pause points", err)
	}
	return parsePoints(raw)
}

func (s *ProgressStore) ClearPausePoints(ctx context.Context, quizID string) error {
	if err := s.client.Del(ctx, pausesKey(quizID)).Err(); err != nil {
		return domain.Unavailable("clear pause points", err)
	}
	return nil
}

// Snapshot reads the pause points and one participant's progress in a single MULTI.
func (s *ProgressStore) Snapshot(ctx context.Context, quizID, participantID string) (gate.Snapshot, error) {
	var points *redis.StringSliceCmd
	var progress *redis.StringCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		points = pipe.ZRange(ctx, pausesKey(quizID), 0, -1)
		progress = pipe.HGet(ctx, progressKey(quizID), participantID)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return gate.Snapshot{}, domain.Unavailable("read gate snapshot", err)
	}

	parsed, err := parsePoints(points.Val())
	if err != nil {
		return gate.Snapshot{}, err
	}
	snap := gate.Snapshot{PausePoints: parsed}
	if progress.Err() == nil {
		n, err := progress.Int()
		if err != nil {
			return gate.Snapshot{}, domain.Unavailable("read gate snapshot", err)
		}
		snap.Progress = n
	}
	return snap, nil
}

func (s *ProgressStore) ResetQuiz(ctx context.Context, quizID string) error {
	if err := s.client.Del(ctx, pausesKey(quizID), progressKey(quizID)).Err(); err != nil {
		return domain.Unavailable("reset gate", err)
	}
	return nil
}

func parsePoints(raw []string) ([]int, error) {
	out := make([]int, 0, len(raw))
	for _, v := range raw {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, domain.Unavailable("read pause points", err)
		}
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}

func progressKey(quizID string) string {
	return "quiz:" + quizID + ":progress"
}

func pausesKey(quizID string) string {
	return "quiz:" + quizID + ":pauses"
}
