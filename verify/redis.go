package verify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore keeps sessions in Redis so multiple processes can share
// the verification map. Keys carry a retention TTL well past the code
// expiry; expiry itself is still judged against Session.ExpiresAt so a
// late redeem reports "expired" rather than "no session".
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
}

func NewRedisStore(client *redis.Client, retention time.Duration) *RedisStore {
	if retention <= 0 {
		retention = time.Hour
	}
	return &RedisStore{client: client, retention: retention}
}

func sessionKey(userID int64) string {
	return fmt.Sprintf("verify:session:%d", userID)
}

func (s *RedisStore) Put(ctx context.Context, session Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("verify: marshal session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(session.UserID), payload, s.retention).Err(); err != nil {
		return fmt.Errorf("verify: store session: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, userID int64) (Session, error) {
	payload, err := s.client.Get(ctx, sessionKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrNoSession
		}
		return Session{}, fmt.Errorf("verify: load session: %w", err)
	}
	var session Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return Session{}, fmt.Errorf("verify: decode session: %w", err)
	}
	return session, nil
}

// redeemRetries bounds how often a redeem is replayed when the watched
// key changes under it.
const redeemRetries = 5

// Redeem runs the check-and-mark inside a WATCH/MULTI transaction so
// concurrent redeemers across processes cannot both succeed: the loser
// has its transaction aborted, replays, and sees Used already set.
func (s *RedisStore) Redeem(ctx context.Context, userID int64, code string, now time.Time) error {
	key := sessionKey(userID)

	txn := func(tx *redis.Tx) error {
		payload, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNoSession
			}
			return fmt.Errorf("verify: load session: %w", err)
		}
		var session Session
		if err := json.Unmarshal(payload, &session); err != nil {
			return fmt.Errorf("verify: decode session: %w", err)
		}
		if err := session.checkRedeem(code, now); err != nil {
			return err
		}
		session.Used = true
		updated, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("verify: marshal session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, s.retention)
			return nil
		})
		return err
	}

	for i := 0; i < redeemRetries; i++ {
		err := s.client.Watch(ctx, txn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("verify: redeem session: watch retries exhausted")
}
