package api

import (
	"log/slog"
	"sync"
	"time"
)

// Token is the access/refresh pair issued by the server. Owned
// exclusively by the TokenStore: mutated only by login, refresh, and
// logout, destroyed on logout or unrecoverable refresh failure.
type Token struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	RefreshToken string    `json:"refresh_token"`
}

// KeyValue is the slice of the persistence layer the token store needs.
// *persist.Store satisfies it.
type KeyValue interface {
	Put(key string, v any) error
	Get(key string, out any) (bool, error)
}

const tokenKey = "auth_token"

// TokenStore holds the current token in memory and mirrors every change
// to local storage immediately, not debounced: losing a token to a
// crash would force a re-login.
type TokenStore struct {
	kv  KeyValue
	log *slog.Logger

	mu  sync.Mutex
	tok *Token
}

// NewTokenStore creates a TokenStore and loads any persisted token.
func NewTokenStore(kv KeyValue, log *slog.Logger) *TokenStore {
	ts := &TokenStore{kv: kv, log: log}
	var tok Token
	if ok, err := kv.Get(tokenKey, &tok); err != nil {
		log.Warn("loading stored token", "error", err)
	} else if ok && tok.AccessToken != "" {
		ts.tok = &tok
	}
	return ts
}

// Token returns the current token, if any.
func (ts *TokenStore) Token() (Token, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.tok == nil {
		return Token{}, false
	}
	return *ts.tok, true
}

// Set replaces the stored token.
func (ts *TokenStore) Set(tok Token) {
	ts.mu.Lock()
	ts.tok = &tok
	ts.mu.Unlock()
	if err := ts.kv.Put(tokenKey, tok); err != nil {
		ts.log.Warn("persisting token", "error", err)
	}
}

// Clear destroys the stored token.
func (ts *TokenStore) Clear() {
	ts.mu.Lock()
	ts.tok = nil
	ts.mu.Unlock()
	if err := ts.kv.Put(tokenKey, Token{}); err != nil {
		ts.log.Warn("clearing token", "error", err)
	}
}
