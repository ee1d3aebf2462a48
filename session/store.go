package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/auracore/aurarouter/logger"
)

var log = logger.New("session")

const (
	keyPrefix  = "aurarouter:session:"
	indexKey   = "aurarouter:sessions:index"
	defaultTTL = 30 * 24 * time.Hour
)

// Store is the persistent session key-value store. Every operation is a
// single Redis round trip (SET/ZADD as a pipeline, GET, ZREVRANGE, ...),
// so writes serialize on the server without an additional in-process
// mutex.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore wraps an already-constructed *redis.Client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client, ttl: defaultTTL}
}

func sessionKey(id string) string { return keyPrefix + id }

// Save upserts the session and updates the recency index, in one pipeline.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	sess.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKey(sess.SessionID), data, s.ttl)
	pipe.ZAdd(ctx, indexKey, redis.Z{Score: float64(sess.UpdatedAt.Unix()), Member: sess.SessionID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("saving session %s: %w", sess.SessionID, err)
	}
	return nil
}

// Load fetches a session by ID. ok is false if it does not exist.
func (s *Store) Load(ctx context.Context, id string) (*Session, bool, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading session %s: %w", id, err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, false, fmt.Errorf("decoding session %s: %w", id, err)
	}
	return &sess, true, nil
}

// Delete removes a session, reporting whether it existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	pipe := s.client.TxPipeline()
	delCmd := pipe.Del(ctx, sessionKey(id))
	pipe.ZRem(ctx, indexKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("deleting session %s: %w", id, err)
	}
	return delCmd.Val() > 0, nil
}

// SessionSummary is the lightweight listing row returned by ListSessions.
type SessionSummary struct {
	SessionID string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ListSessions returns up to limit summaries, most-recently-updated first,
// skipping offset entries.
func (s *Store) ListSessions(ctx context.Context, limit, offset int) ([]SessionSummary, error) {
	ids, err := s.client.ZRevRange(ctx, indexKey, int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing session index: %w", err)
	}
	out := make([]SessionSummary, 0, len(ids))
	for _, id := range ids {
		sess, ok, err := s.Load(ctx, id)
		if err != nil {
			log.Warn().Err(err).Str("session_id", id).Msg("dropping unreadable session from listing")
			continue
		}
		if !ok {
			continue
		}
		out = append(out, SessionSummary{SessionID: sess.SessionID, CreatedAt: sess.CreatedAt, UpdatedAt: sess.UpdatedAt})
	}
	return out, nil
}

// PurgeBefore deletes every indexed session last updated strictly before
// cutoff.
func (s *Store) PurgeBefore(ctx context.Context, cutoff time.Time) (int, error) {
	ids, err := s.client.ZRangeByScore(ctx, indexKey, &redis.ZRangeBy{
		Min: "-inf", Max: fmt.Sprintf("(%d", cutoff.Unix()),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("scanning purge candidates: %w", err)
	}
	purged := 0
	for _, id := range ids {
		ok, err := s.Delete(ctx, id)
		if err != nil {
			return purged, err
		}
		if ok {
			purged++
		}
	}
	return purged, nil
}
