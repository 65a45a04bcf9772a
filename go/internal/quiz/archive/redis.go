package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizclient/go/internal/quiz/machine"
)

// RedisStore keeps final standings in Redis: a hash per session plus a sorted set
// leaderboard. Saves for one session code are serialised with a redsync mutex so two
// host views of the same session archive it once.
type RedisStore struct {
	rdb *redis.Client
	rs  *redsync.Redsync
	ttl time.Duration
}

// OpenRedis connects to the Redis server at url. A zero ttl keeps results forever.
func OpenRedis(ctx context.Context, url string, ttl time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return NewRedisStore(rdb, ttl), nil
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		rdb: rdb,
		rs:  redsync.New(goredis.NewPool(rdb)),
		ttl: ttl,
	}
}

func sessionKey(code string) string { return "quiz:session:" + code }
func leaderboardKey(code string) string { return "quiz:leaderboard:" + code }

// Save stores result unless the session was already archived, in which case the id of
// the earlier save is returned.
func (s *RedisStore) Save(ctx context.Context, result machine.FinalResult) (uuid.UUID, error) {
	code := result.Identity.Code
	mutex := s.rs.NewMutex("quiz:archive-lock:"+code, redsync.WithExpiry(10*time.Second))
	if err := mutex.LockContext(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("lock session %s: %w", code, err)
	}
	defer func() {
		if ok, err := mutex.UnlockContext(ctx); !ok || err != nil {
			log.Warn().Err(err).Str("session_code", code).Msg("failed to release archive lock")
		}
	}()

	existing, err := s.rdb.HGet(ctx, sessionKey(code), "id").Result()
	switch {
	case err == nil:
		id, err := uuid.Parse(existing)
		if err != nil {
			return uuid.Nil, fmt.Errorf("parse archived id %q: %w", existing, err)
		}
		log.Info().Str("session_code", code).Str("archive_id", existing).Msg("session already archived")
		return id, nil
	case err != redis.Nil:
		return uuid.Nil, fmt.Errorf("read session %s: %w", code, err)
	}

	id := uuid.New()
	fields := map[string]interface{}{
		"id":       id.String(),
		"ended_at": result.EndedAt.UTC().Format(time.RFC3339),
		"players":  len(result.Leaderboard),
		"snapshot": string(result.Snapshot),
	}
	if started := result.Roster.StartedAt; started != nil {
		fields["started_at"] = started.UTC().Format(time.RFC3339)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, sessionKey(code), fields)
		for _, row := range result.Leaderboard {
			pipe.ZAdd(ctx, leaderboardKey(code), &redis.Z{Score: float64(row.Score), Member: row.ParticipantName})
		}
		if s.ttl > 0 {
			pipe.Expire(ctx, sessionKey(code), s.ttl)
			pipe.Expire(ctx, leaderboardKey(code), s.ttl)
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("archive session %s: %w", code, err)
	}

	log.Info().
		Str("session_code", code).
		Str("archive_id", id.String()).
		Int("players", len(result.Leaderboard)).
		Msg("session results archived")
	return id, nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
