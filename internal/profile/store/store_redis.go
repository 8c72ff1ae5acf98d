package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"profilereg/internal/profile/models"
	id "profilereg/pkg/domain"
	"profilereg/pkg/platform/sentinel"
)

const defaultRedisPrefix = "profilereg:entry:"

// RedisStore keeps one JSON value per account. Remove uses GETDEL so the
// returned entry is exactly the one deleted.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, prefix: defaultRedisPrefix}
}

func (s *RedisStore) key(account id.AccountID) string {
	return s.prefix + account.String()
}

func (s *RedisStore) Get(ctx context.Context, account id.AccountID) (*models.Entry, bool, error) {
	data, err := s.client.Get(ctx, s.key(account)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get profile entry: %w: %w", sentinel.ErrUnavailable, err)
	}
	entry, err := decodeEntry(data)
	if err != nil {
		return nil, false, fmt.Errorf("decode profile entry: %w", err)
	}
	return entry, true, nil
}

func (s *RedisStore) Put(ctx context.Context, account id.AccountID, entry *models.Entry) error {
	data, err := encodeEntry(entry)
	if err != nil {
		return fmt.Errorf("encode profile entry: %w", err)
	}
	if err := s.client.Set(ctx, s.key(account), data, 0).Err(); err != nil {
		return fmt.Errorf("put profile entry: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, account id.AccountID) (*models.Entry, bool, error) {
	data, err := s.client.GetDel(ctx, s.key(account)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("remove profile entry: %w: %w", sentinel.ErrUnavailable, err)
	}
	entry, err := decodeEntry(data)
	if err != nil {
		return nil, false, fmt.Errorf("decode profile entry: %w", err)
	}
	return entry, true, nil
}
