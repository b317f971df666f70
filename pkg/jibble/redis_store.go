package jibble

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisTokenStore shares the access token between processes. Entries expire
// together with the token.
type RedisTokenStore struct {
	client redisClient
	key    string
}

type storedToken struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	Expiry      time.Time `json:"expiry"`
}

func NewRedisTokenStore(client redis.UniversalClient, key string) *RedisTokenStore {
	return &RedisTokenStore{client: client, key: key}
}

// NewRedisTokenStoreFromURL parses a redis:// URL.
func NewRedisTokenStoreFromURL(rawURL, key string) (*RedisTokenStore, func() error, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, nil, gerrors.Wrap(err, "parse REDIS_URL")
	}
	client := redis.NewClient(opts)
	return NewRedisTokenStore(client, key), client.Close, nil
}

func (s *RedisTokenStore) Load(ctx context.Context) (*oauth2.Token, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, gerrors.Wrap(err, "redis get token")
	}
	var st storedToken
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, gerrors.Wrap(err, "decode cached token")
	}
	return &oauth2.Token{AccessToken: st.AccessToken, TokenType: st.TokenType, Expiry: st.Expiry}, nil
}

func (s *RedisTokenStore) Save(ctx context.Context, token *oauth2.Token) error {
	if token == nil {
		return errors.New("jibble: nil token")
	}
	var ttl time.Duration
	if !token.Expiry.IsZero() {
		ttl = time.Until(token.Expiry)
		if ttl <= 0 {
			return nil
		}
	}
	raw, err := json.Marshal(storedToken{AccessToken: token.AccessToken, TokenType: token.TokenType, Expiry: token.Expiry})
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, raw, ttl).Err(); err != nil {
		return gerrors.Wrap(err, "redis set token")
	}
	return nil
}

func (s *RedisTokenStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return gerrors.Wrap(err, "redis del token")
	}
	return nil
}
