package fcm

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	// MessagingScope is the OAuth2 scope required by the v1 API.
	MessagingScope = "https://www.googleapis.com/auth/firebase.messaging"

	// A cached token is only used while it has more than expiryMargin left.
	expiryMargin = 300 * time.Second
	// Used when the token exchange does not report an expiry.
	defaultTokenLifetime = time.Hour

	credentialKey = "fcm:access_token"
)

type credential struct {
	accessToken string
	expiresAt   time.Time
}

// CredentialProvider mints and caches bearer tokens for the v1 API.
// Concurrent refreshes may race; a duplicate fetch is harmless.
type CredentialProvider struct {
	keyPath string
	timeout time.Duration
	base    http.RoundTripper
	metrics *Metrics
	logger  *slog.Logger

	tokens     *cache.Cache
	loadSource func(ctx context.Context) (oauth2.TokenSource, error)
}

// NewCredentialProvider creates a provider that reads the service account key
// at keyPath, or falls back to Application Default Credentials when keyPath is
// empty. Nothing is loaded until a token or client is requested.
func NewCredentialProvider(keyPath string, timeout time.Duration, logger *slog.Logger) *CredentialProvider {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	p := &CredentialProvider{
		keyPath: keyPath,
		timeout: timeout,
		base:    http.DefaultTransport,
		logger:  logger.With("component", "FCMCredentialProvider"),
		// No janitor: entries are checked for expiry on read.
		tokens: cache.New(cache.NoExpiration, 0),
	}
	p.loadSource = p.loadCredentials
	return p
}

// GetAccessToken returns a bearer token with more than five minutes of life
// left, refreshing it synchronously when needed.
func (p *CredentialProvider) GetAccessToken(ctx context.Context) (string, error) {
	if cached, ok := p.tokens.Get(credentialKey); ok {
		return cached.(credential).accessToken, nil
	}

	cred, err := p.refresh(ctx)
	p.metrics.observeRefresh(err)
	if err != nil {
		p.logger.Error("Access token refresh failed", "err", err)
		return "", err
	}

	if ttl := time.Until(cred.expiresAt) - expiryMargin; ttl > 0 {
		p.tokens.Set(credentialKey, cred, ttl)
	}
	p.logger.Debug("Access token refreshed", "expires_at", cred.expiresAt)
	return cred.accessToken, nil
}

// CreateAuthenticatedClient returns an HTTP client that injects a fresh bearer
// token into every request and applies the configured timeout. Credentials are
// resolved eagerly so a bad key fails here rather than on the first send.
func (p *CredentialProvider) CreateAuthenticatedClient(ctx context.Context) (*http.Client, error) {
	if _, err := p.loadSource(ctx); err != nil {
		return nil, &Error{
			Kind:    ErrAuth,
			Op:      "fcm.CreateAuthenticatedClient",
			Message: "failed to create authenticated client",
			Err:     err,
		}
	}
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: &providerTokenSource{provider: p},
			Base:   p.base,
		},
		Timeout: p.timeout,
	}, nil
}

func (p *CredentialProvider) refresh(ctx context.Context) (credential, error) {
	const op = "fcm.GetAccessToken"

	src, err := p.loadSource(ctx)
	if err != nil {
		return credential{}, err
	}
	tok, err := src.Token()
	if err != nil {
		return credential{}, &Error{Kind: ErrAuth, Op: op, Message: "failed to refresh access token", Err: err}
	}
	if tok == nil || tok.AccessToken == "" {
		return credential{}, newError(ErrAuth, op, "failed to obtain access token")
	}

	expiresAt := tok.Expiry
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(defaultTokenLifetime)
	}
	return credential{accessToken: tok.AccessToken, expiresAt: expiresAt}, nil
}

// loadCredentials builds a new token source on every refresh so the library's
// own reuse window never hands back a token inside our margin.
func (p *CredentialProvider) loadCredentials(ctx context.Context) (oauth2.TokenSource, error) {
	const op = "fcm.loadCredentials"

	if p.keyPath != "" {
		data, err := os.ReadFile(p.keyPath)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, &Error{Kind: ErrAuth, Op: op, Message: "service account key file not found: " + p.keyPath}
			}
			return nil, &Error{Kind: ErrAuth, Op: op, Message: "failed to read service account key file", Err: err}
		}
		creds, err := google.CredentialsFromJSON(ctx, data, MessagingScope)
		if err != nil {
			return nil, &Error{Kind: ErrAuth, Op: op, Message: "invalid service account key file", Err: err}
		}
		return creds.TokenSource, nil
	}

	creds, err := google.FindDefaultCredentials(ctx, MessagingScope)
	if err != nil {
		return nil, &Error{Kind: ErrAuth, Op: op, Message: "application default credentials unavailable", Err: err}
	}
	return creds.TokenSource, nil
}

// providerTokenSource adapts the provider to oauth2.Transport.
type providerTokenSource struct {
	provider *CredentialProvider
}

func (s *providerTokenSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.provider.timeout)
	defer cancel()

	accessToken, err := s.provider.GetAccessToken(ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}, nil
}
