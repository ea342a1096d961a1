package opensky

import (
	"context"
	"sync"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

const (
	// TokenLifetime is the assumed validity of an issued token, measured from
	// issuance. The provider reports expires_in but has been observed to
	// revoke early under load, so a fixed conservative lifetime is used.
	TokenLifetime = 30 * time.Minute

	// TokenRefreshBuffer is how much remaining validity a cached token must
	// have to be reused without a network call.
	TokenRefreshBuffer = 5 * time.Minute
)

// TokenBroker obtains and caches an OAuth2 bearer token via the
// client-credentials grant. At most one token is live at a time; it is
// invalidated wholesale on authentication failure.
type TokenBroker struct {
	mu        sync.Mutex
	conf      *clientcredentials.Config
	token     string
	expiresAt time.Time

	// now is a test hook; defaults to time.Now
	now func() time.Time
}

// NewTokenBroker creates a broker for the given token endpoint and client
// credentials.
func NewTokenBroker(tokenURL, clientID, clientSecret string) *TokenBroker {
	return &TokenBroker{
		conf: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
		},
		now: time.Now,
	}
}

// Token returns a bearer token, reusing the cached one when it has more than
// TokenRefreshBuffer of validity remaining. Otherwise it performs a
// client-credentials grant and caches the result with the assumed fixed
// lifetime. On grant failure the cache is cleared and an AuthError returned.
func (b *TokenBroker) Token(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.token != "" && b.now().Add(TokenRefreshBuffer).Before(b.expiresAt) {
		return b.token, nil
	}

	tok, err := b.conf.Token(ctx)
	if err != nil {
		b.token = ""
		b.expiresAt = time.Time{}
		return "", &AuthError{Op: "token grant", Err: err}
	}

	b.token = tok.AccessToken
	b.expiresAt = b.now().Add(TokenLifetime)
	return b.token, nil
}

// Invalidate discards the cached token. Callers use this after a 401 from the
// protected resource so the next Token call performs a fresh grant.
func (b *TokenBroker) Invalidate() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.token = ""
	b.expiresAt = time.Time{}
}
