package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// ErrAuth is returned when the token exchange itself is rejected, meaning
// the client id, client secret, or refresh token is bad. There is no point
// retrying: the operator has to fix the credentials.
var ErrAuth = errors.New("token exchange rejected")

// Access tokens are short-lived. Treat a cached token that expires within
// this margin as already expired so that in-flight API calls don't race the
// upstream expiry.
const expiryMargin = 30 * time.Second

// Manager owns the OAuth credentials and the cached access token. Access
// tokens are replaced atomically; a refresh is single-flighted so that
// concurrent scrapes never issue duplicate exchanges (Zoho may rotate
// tokens, and duplicate exchanges can invalidate each other).
type Manager struct {
	conf         *oauth2.Config
	refreshToken string
	logSecrets   bool
	httpClient   *http.Client

	mu     sync.Mutex
	token  string
	expiry time.Time

	group singleflight.Group
}

// NewManager creates a token manager for the given Zoho token endpoint.
// httpClient may be nil, in which case a default client with a bounded
// timeout is used.
func NewManager(clientID, clientSecret, refreshToken, tokenURL string, logSecrets bool, httpClient *http.Client) *Manager {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if logSecrets {
		log.Printf("WARNING: secret logging is enabled, tokens will be written to the log")
	}
	return &Manager{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
		},
		refreshToken: refreshToken,
		logSecrets:   logSecrets,
		httpClient:   httpClient,
	}
}

// Token returns a valid access token, reusing the cached one while it is
// comfortably within its lifetime and refreshing otherwise. Concurrent
// callers needing a refresh share a single exchange.
func (m *Manager) Token(ctx context.Context) (string, error) {
	if token, ok := m.cached(); ok {
		return token, nil
	}

	value, err, _ := m.group.Do("refresh", func() (interface{}, error) {
		// A caller that queued behind a finished refresh can use its result.
		if token, ok := m.cached(); ok {
			return token, nil
		}
		return m.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return value.(string), nil
}

// Invalidate drops the cached token so the next Token call performs a fresh
// exchange. Called when the API rejects the current token mid-flight.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.token = ""
	m.expiry = time.Time{}
	m.mu.Unlock()
	tokenValid.Set(0)
}

func (m *Manager) cached() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token != "" && time.Until(m.expiry) > expiryMargin {
		return m.token, true
	}
	return "", false
}

func (m *Manager) refresh(ctx context.Context) (string, error) {
	log.Printf("Requesting access token from %s", m.conf.Endpoint.TokenURL)
	if m.logSecrets {
		log.Printf("Token exchange refresh token: %s", m.refreshToken)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
	source := m.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: m.refreshToken})
	token, err := source.Token()
	if err != nil {
		refreshFailure.Inc()
		tokenValid.Set(0)
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			body := strings.TrimSpace(string(retrieveErr.Body))
			return "", fmt.Errorf("%w: server replied %d: %s", ErrAuth, retrieveErr.Response.StatusCode, body)
		}
		// Zoho replies 200 with an error body when the refresh token is
		// bad, which surfaces as a token response without an access token.
		if strings.Contains(err.Error(), "missing access_token") {
			return "", fmt.Errorf("%w: %v", ErrAuth, err)
		}
		return "", fmt.Errorf("token exchange: %w", err)
	}

	m.mu.Lock()
	m.token = token.AccessToken
	m.expiry = token.Expiry
	m.mu.Unlock()

	refreshSuccess.Inc()
	tokenValid.Set(1)
	log.Printf("Successfully acquired access token")
	if m.logSecrets {
		log.Printf("Access token value: %s", token.AccessToken)
	}
	return token.AccessToken, nil
}
