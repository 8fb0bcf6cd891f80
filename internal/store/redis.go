package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kozaktomas/face-review/internal/config"
	"github.com/redis/go-redis/v9"
)

const (
	userKeyPrefix = "review:user:"
	queueKey      = "review:queue"
	allocKey      = "review:alloc"
)

// allocateScript pops the next queued account and records its allocation in
// one round trip. Redis executes scripts atomically, so a second admin can
// never pop the same entry.
var allocateScript = redis.NewScript(`
local id = redis.call('LPOP', KEYS[1])
if not id then
	return {'', 0}
end
redis.call('HSET', KEYS[2], id, ARGV[1])
return {id, redis.call('LLEN', KEYS[1])}
`)

// RedisStore is the Redis-backed account store.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg *config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// Close closes the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func userKey(userID string) string {
	return userKeyPrefix + userID
}

// GetUser returns the account record, or nil when the user has no state.
func (s *RedisStore) GetUser(ctx context.Context, userID string) (*Account, error) {
	val, err := s.client.Get(ctx, userKey(userID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}

	var account Account
	if err := json.Unmarshal([]byte(val), &account); err != nil {
		return nil, fmt.Errorf("unmarshal user %s: %w", userID, err)
	}
	return &account, nil
}

func (s *RedisStore) saveUser(ctx context.Context, account *Account) error {
	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("marshal user %s: %w", account.UserID, err)
	}
	if err := s.client.Set(ctx, userKey(account.UserID), data, 0).Err(); err != nil {
		return fmt.Errorf("save user %s: %w", account.UserID, err)
	}
	return nil
}

// MarkForReview flags the account as a possible duplicate, records the
// candidate set and bumps the review counter, then enqueues the account for
// admin allocation. Enqueueing is skipped when the account is already queued.
func (s *RedisStore) MarkForReview(ctx context.Context, userID, ip string, candidates []string, retries int) error {
	account, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if account == nil {
		account = &Account{UserID: userID}
	}

	account.IP = ip
	account.PossibleDuplicateWith = unionIDs(account.PossibleDuplicateWith, candidates, userID)
	count := retries + 1
	account.DuplicateReviewCount = &count

	if err := s.saveUser(ctx, account); err != nil {
		return err
	}

	_, err = s.client.LPos(ctx, queueKey, userID, redis.LPosArgs{}).Result()
	if err == redis.Nil {
		if err := s.client.RPush(ctx, queueKey, userID).Err(); err != nil {
			return fmt.Errorf("enqueue user %s: %w", userID, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("check queue for %s: %w", userID, err)
	}
	return nil
}

// RollbackManualReview undoes MarkForReview: the queue entry is removed and
// the record is restored to its prior value (deleted when there was none).
func (s *RedisStore) RollbackManualReview(ctx context.Context, userID string, prior *Account) error {
	if err := s.client.LRem(ctx, queueKey, 0, userID).Err(); err != nil {
		return fmt.Errorf("dequeue user %s: %w", userID, err)
	}
	if err := s.client.HDel(ctx, allocKey, userID).Err(); err != nil {
		return fmt.Errorf("clear allocation for %s: %w", userID, err)
	}

	if prior == nil {
		if err := s.client.Del(ctx, userKey(userID)).Err(); err != nil {
			return fmt.Errorf("delete user %s: %w", userID, err)
		}
		return nil
	}
	return s.saveUser(ctx, prior)
}

// AllocateReviewUser atomically pops the next queued account for the admin.
// Returns an empty user id and zero length when the queue is empty.
func (s *RedisStore) AllocateReviewUser(ctx context.Context, adminID string) (string, int, error) {
	res, err := allocateScript.Run(ctx, s.client, []string{queueKey, allocKey}, adminID).Result()
	if err != nil {
		return "", 0, fmt.Errorf("allocate review user: %w", err)
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return "", 0, fmt.Errorf("allocate review user: unexpected reply %v", res)
	}

	userID, _ := vals[0].(string)
	length, _ := vals[1].(int64)
	return userID, int(length), nil
}

// UserReviewed clears the review state after an admin decision. With retry
// set, the review counter survives so the account re-enters the upload flow;
// otherwise the counter is cleared too.
func (s *RedisStore) UserReviewed(ctx context.Context, adminID, userID string, retry bool) error {
	if err := s.client.HDel(ctx, allocKey, userID).Err(); err != nil {
		return fmt.Errorf("clear allocation for %s: %w", userID, err)
	}
	if err := s.client.LRem(ctx, queueKey, 0, userID).Err(); err != nil {
		return fmt.Errorf("dequeue user %s: %w", userID, err)
	}

	account, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if account == nil {
		return nil
	}

	account.PossibleDuplicateWith = nil
	account.IP = ""
	account.AllocatedTo = ""
	if !retry {
		account.DuplicateReviewCount = nil
	}
	return s.saveUser(ctx, account)
}

// RollbackReviewed restores the record captured before UserReviewed and
// hands the allocation back to the admin so the decision can be retried.
func (s *RedisStore) RollbackReviewed(ctx context.Context, adminID, userID string, prior *Account) error {
	if prior == nil {
		return fmt.Errorf("rollback reviewed %s: no prior state", userID)
	}
	if err := s.saveUser(ctx, prior); err != nil {
		return err
	}
	if err := s.client.HSet(ctx, allocKey, userID, adminID).Err(); err != nil {
		return fmt.Errorf("restore allocation for %s: %w", userID, err)
	}
	return nil
}

// AddPossibleDuplicates unions new candidate ids into the account's set.
func (s *RedisStore) AddPossibleDuplicates(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	account, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if account == nil {
		account = &Account{UserID: userID}
	}

	account.PossibleDuplicateWith = unionIDs(account.PossibleDuplicateWith, ids, userID)
	return s.saveUser(ctx, account)
}

// PopPossibleDuplicate removes a single candidate from the account's set.
func (s *RedisStore) PopPossibleDuplicate(ctx context.Context, userID, dupID string) error {
	account, err := s.GetUser(ctx, userID)
	if err != nil || account == nil {
		return err
	}

	kept := account.PossibleDuplicateWith[:0]
	for _, id := range account.PossibleDuplicateWith {
		if id != dupID {
			kept = append(kept, id)
		}
	}
	account.PossibleDuplicateWith = kept
	return s.saveUser(ctx, account)
}

// DisableUser marks the account disabled at the given timestamp (unix ns).
// Returns ErrAlreadyDisabled when the account was disabled before the call.
func (s *RedisStore) DisableUser(ctx context.Context, userID string, now int64) error {
	account, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if account == nil {
		account = &Account{UserID: userID}
	}
	if account.Disabled() {
		return ErrAlreadyDisabled
	}

	account.DisabledAt = now
	return s.saveUser(ctx, account)
}

// unionIDs merges ids into existing, dropping duplicates and self.
func unionIDs(existing, ids []string, self string) []string {
	seen := make(map[string]struct{}, len(existing)+len(ids))
	out := existing
	for _, id := range existing {
		seen[id] = struct{}{}
	}
	for _, id := range ids {
		if id == "" || id == self {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
