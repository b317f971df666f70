package jibble

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// TokenStore persists the provider access token between runs.
type TokenStore interface {
	// Load returns nil, nil when nothing is stored.
	Load(ctx context.Context) (*oauth2.Token, error)
	Save(ctx context.Context, token *oauth2.Token) error
	Clear(ctx context.Context) error
}

type MemoryTokenStore struct {
	mu    sync.Mutex
	token *oauth2.Token
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) Load(_ context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == nil {
		return nil, nil
	}
	tok := *s.token
	return &tok, nil
}

func (s *MemoryTokenStore) Save(_ context.Context, token *oauth2.Token) error {
	if token == nil {
		return errors.New("jibble: nil token")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tok := *token
	s.token = &tok
	return nil
}

func (s *MemoryTokenStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.token = nil
	s.mu.Unlock()
	return nil
}

// TokenSource hands out a valid access token, consulting the in-process copy,
// then the store, then the identity provider. Concurrent callers share one
// refresh.
type TokenSource struct {
	fetch FetchFunc
	store TokenStore
	log   *logrus.Logger

	mu      sync.Mutex
	current *oauth2.Token
}

// FetchFunc requests a new token from the identity provider.
type FetchFunc func(ctx context.Context) (*oauth2.Token, error)

func NewTokenSource(fetch FetchFunc, store TokenStore, log *logrus.Logger) *TokenSource {
	if store == nil {
		store = NewMemoryTokenStore()
	}
	return &TokenSource{fetch: fetch, store: store, log: log}
}

// Token implements oauth2.TokenSource.
func (s *TokenSource) Token() (*oauth2.Token, error) {
	return s.TokenContext(context.Background())
}

func (s *TokenSource) TokenContext(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.Valid() {
		return s.current, nil
	}

	if cached, err := s.store.Load(ctx); err != nil {
		s.warn(err, "token store load failed")
	} else if cached.Valid() {
		s.current = cached
		return cached, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tok, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, errors.New("jibble: empty access token from identity provider")
	}
	s.current = tok
	if err := s.store.Save(ctx, tok); err != nil {
		s.warn(err, "token store save failed")
	}
	return tok, nil
}

// Invalidate drops the cached token after the API rejected it.
func (s *TokenSource) Invalidate(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	if err := s.store.Clear(ctx); err != nil {
		s.warn(err, "token store clear failed")
	}
}

func (s *TokenSource) warn(err error, msg string) {
	if s.log != nil {
		s.log.WithError(err).Warn("jibble: " + msg)
	}
}
