package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/teranos/warden/errors"
	"github.com/teranos/warden/internal/httpclient"
	"github.com/teranos/warden/sym"
)

const (
	// tokenRequestTimeout bounds the token exchange round trip.
	tokenRequestTimeout = 15 * time.Second

	// TokenExpirySkew is how long before the JWT exp claim a cached token
	// is already treated as expired, so a token never dies mid-request.
	TokenExpirySkew = 30 * time.Second
)

// TokenStore exchanges the long-lived refresh token for short-lived access
// tokens and caches the result. Tokens are fetched lazily on first use,
// re-fetched on demand after a 401, and proactively refreshed when the JWT
// exp claim is within TokenExpirySkew.
type TokenStore struct {
	authURL string
	http    *httpclient.SaferClient
	log     *zap.SugaredLogger

	mu           sync.Mutex
	refreshToken string
	token        string
	expiry       time.Time

	now func() time.Time
}

// NewTokenStore returns a store authenticating against authURL. A nil
// httpc gets a default SSRF-guarded client.
func NewTokenStore(authURL, refreshToken string, httpc *httpclient.SaferClient, log *zap.SugaredLogger) *TokenStore {
	if httpc == nil {
		httpc = httpclient.NewSaferClient(tokenRequestTimeout)
	}
	return &TokenStore{
		authURL:      authURL,
		http:         httpc,
		log:          log,
		refreshToken: refreshToken,
		now:          time.Now,
	}
}

// SetRefreshToken swaps in new credentials, dropping any cached access
// token so the next Get authenticates with the new refresh token. Used by
// the credentials file watcher.
func (s *TokenStore) SetRefreshToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshToken = token
	s.token = ""
	s.expiry = time.Time{}
}

// Get returns an access token, fetching a new one when refresh is set, when
// nothing is cached yet, or when the cached token is about to expire.
func (s *TokenStore) Get(ctx context.Context, refresh bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !refresh && s.token != "" && !s.expiringSoonLocked() {
		return s.token, nil
	}

	s.log.Debugw("Retrieving new access token", "symbol", sym.Cloud)
	token, err := s.fetch(ctx)
	if err != nil {
		return "", err
	}
	s.token = token
	s.expiry = tokenExpiry(token)
	return s.token, nil
}

func (s *TokenStore) expiringSoonLocked() bool {
	return !s.expiry.IsZero() && s.now().After(s.expiry.Add(-TokenExpirySkew))
}

func (s *TokenStore) fetch(ctx context.Context) (string, error) {
	query := "query GetToken($refresh_token: String!) { token(refreshToken: $refresh_token) { access_token } }"
	payload := Payload{Query: query, Variables: map[string]interface{}{"refresh_token": s.refreshToken}}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", errors.Wrap(err, "marshal token request")
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.authURL, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "build token request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", errors.Mark(errors.Wrap(err, "request token"), errors.ErrTransient)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return "", errors.Wrap(errors.ErrUnauthorized, "refresh token rejected")
	}
	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(resp.Body)
		s.log.Errorw("Token request failed",
			"symbol", sym.Cloud,
			"status", resp.StatusCode,
			"body", string(text))
		return "", errors.Newf("token request failed with status %d", resp.StatusCode)
	}

	var out struct {
		Data struct {
			Token struct {
				AccessToken string `json:"access_token"`
			} `json:"token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Wrap(err, "decode token response")
	}
	if out.Data.Token.AccessToken == "" {
		return "", errors.New("token response missing access_token")
	}
	return out.Data.Token.AccessToken, nil
}

// tokenExpiry pulls the exp claim out of the JWT without verifying the
// signature; the agent only needs the timestamp, trust comes from TLS.
// Opaque (non-JWT) tokens yield a zero time and are refreshed on 401 only.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
