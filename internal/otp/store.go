package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Result classifies a verification attempt.
type Result int

const (
	// ResultValid means the code matched; the entry is deleted (single-use).
	ResultValid Result = iota
	// ResultInvalid means an active code exists but did not match. The entry
	// stays so the user may retry until the TTL elapses.
	ResultInvalid
	// ResultExpired means no active code exists for the user.
	ResultExpired
)

// DefaultTTL is the code lifetime.
const DefaultTTL = 5 * time.Minute

// verifyScript compares and deletes in one round trip so a code can never
// verify twice, even under concurrent attempts.
var verifyScript = redis.NewScript(`
local stored = redis.call("GET", KEYS[1])
if stored == false then
  return -1
end
if stored == ARGV[1] then
  redis.call("DEL", KEYS[1])
  return 1
end
return 0
`)

// Store keeps pending codes in Redis with a TTL. One pending code per user;
// issuing a new one overwrites the old.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore constructs a Store. A non-positive ttl falls back to DefaultTTL.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{client: client, ttl: ttl}
}

// Put stores the user's pending code, replacing any prior one.
func (s *Store) Put(ctx context.Context, userID int64, code string) error {
	if code == "" {
		return errors.New("otp: empty code")
	}
	return s.client.Set(ctx, s.key(userID), code, s.ttl).Err()
}

// Verify checks a submitted code. A match consumes the entry atomically.
func (s *Store) Verify(ctx context.Context, userID int64, submitted string) (Result, error) {
	n, err := verifyScript.Run(ctx, s.client, []string{s.key(userID)}, submitted).Int64()
	if err != nil {
		return ResultExpired, fmt.Errorf("otp: verify: %w", err)
	}
	switch n {
	case 1:
		return ResultValid, nil
	case 0:
		return ResultInvalid, nil
	default:
		return ResultExpired, nil
	}
}

// Delete discards any pending code for the user.
func (s *Store) Delete(ctx context.Context, userID int64) error {
	return s.client.Del(ctx, s.key(userID)).Err()
}

// TTL exposes the configured code lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

func (s *Store) key(userID int64) string {
	return fmt.Sprintf("otp:%d", userID)
}
