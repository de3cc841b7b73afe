package main

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"
)

// leaderboardEntry is one persisted name→wins record.
type leaderboardEntry struct {
	Name string `json:"name"`
	Wins int64  `json:"wins"`
}

// leaderboardStore is the one collaborator with durable state. It may see
// concurrent external writers, so IncrementWins must be atomic
// increment-or-create by name and TopN an idempotent read.
type leaderboardStore interface {
	IncrementWins(ctx context.Context, name string) error
	TopN(ctx context.Context, n int) ([]leaderboardEntry, error)
}

const leaderboardKey = "xoarena:leaderboard"

// redisLeaderboard keeps win counts in a redis sorted set.
type redisLeaderboard struct {
	client *redis.Client
}

func newRedisLeaderboard(addr string) *redisLeaderboard {
	return &redisLeaderboard{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func (s *redisLeaderboard) IncrementWins(ctx context.Context, name string) error {
	return s.client.ZIncrBy(ctx, leaderboardKey, 1, name).Err()
}

func (s *redisLeaderboard) TopN(ctx context.Context, n int) ([]leaderboardEntry, error) {
	res, err := s.client.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}

	out := make([]leaderboardEntry, 0, len(res))
	for _, z := range res {
		name, ok := z.Member.(string)
		if !ok {
			continue
		}
		out = append(out, leaderboardEntry{Name: name, Wins: int64(z.Score)})
	}
	return out, nil
}

// fileLeaderboard keeps win counts in a flat JSON file, {"name": wins, ...}.
// Good enough for a single instance with no redis around; an unreadable or
// corrupt file counts as empty rather than failing games.
type fileLeaderboard struct {
	path string
	mu   sync.Mutex
}

func newFileLeaderboard(path string) *fileLeaderboard {
	return &fileLeaderboard{path: path}
}

func (s *fileLeaderboard) load() map[string]int64 {
	counts := make(map[string]int64)

	data, err := os.ReadFile(s.path)
	if err != nil {
		return counts
	}
	if err := json.Unmarshal(data, &counts); err != nil {
		return make(map[string]int64)
	}
	return counts
}

func (s *fileLeaderboard) IncrementWins(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := s.load()
	counts[name]++

	data, err := json.Marshal(counts)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}

func (s *fileLeaderboard) TopN(_ context.Context, n int) ([]leaderboardEntry, error) {
	s.mu.Lock()
	counts := s.load()
	s.mu.Unlock()

	out := make([]leaderboardEntry, 0, len(counts))
	for name, wins := range counts {
		out = append(out, leaderboardEntry{Name: name, Wins: wins})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Wins != out[j].Wins {
			return out[i].Wins > out[j].Wins
		}
		return out[i].Name < out[j].Name
	})

	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}
