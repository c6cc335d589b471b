// Package credentials caches short-lived access tokens, such as the
// OAuth tokens exchanged for MCP servers.
package credentials

import "time"

// Token is a cached access token. A token is expired once
// CreatedAt + ExpiresIn seconds is in the past.
type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	CreatedAt   time.Time `json:"created_at"`
}

// Expired reports whether the token's lifetime has elapsed at the
// given instant.
func (t Token) Expired(now time.Time) bool {
	return t.CreatedAt.Add(time.Duration(t.ExpiresIn) * time.Second).Before(now)
}

// Store is a concurrent-safe token cache keyed by an opaque identifier
// (typically the server URL). Get never returns an expired token.
type Store interface {
	Get(key string) (Token, bool)
	Put(key string, token Token) error
	Delete(key string) error
}
