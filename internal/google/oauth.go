package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
)

// OOB is the out-of-band redirect URI for the copy/paste authorization flow.
const OOB = "urn:ietf:wg:oauth:2.0:oob"

// Scopes requested for mail access. gmail.modify covers reading, sending
// and label mutation without granting full account access.
var Scopes = []string{
	gmail.GmailModifyScope,
}

// AuthError indicates that no usable credential exists: nothing is stored,
// the stored token is expired without a refresh token, or the provider
// rejected the refresh. The caller must re-run the authorization flow.
type AuthError struct {
	Account string
	Reason  string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth failed for account %q: %s: %v", e.Account, e.Reason, e.Err)
	}
	return fmt.Sprintf("auth failed for account %q: %s", e.Account, e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// IsAuthError reports whether err is (or wraps) an AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// Store owns the OAuth credential for one account: acquisition, transparent
// refresh and durable persistence. Refresh is serialized so a token is never
// invalidated mid-use by a concurrent caller.
type Store struct {
	account string
	conf    *oauth2.Config

	mu     sync.Mutex
	cached *oauth2.Token
}

// NewStore creates a credential store for the given account. The client ID
// and secret may be empty, in which case cached tokens still work until
// they expire but refresh will fail.
func NewStore(account, clientID, clientSecret string) *Store {
	return &Store{
		account: account,
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			RedirectURL:  OOB,
			Scopes:       Scopes,
		},
	}
}

// Account returns the account this store manages.
func (s *Store) Account() string { return s.account }

// AuthURL returns the URL the user must visit to authorize mail access.
func (s *Store) AuthURL() string {
	return s.conf.AuthCodeURL("state", oauth2.AccessTypeOffline)
}

// SaveAuthCode exchanges an authorization code for tokens and persists them.
func (s *Store) SaveAuthCode(ctx context.Context, authCode string) error {
	tok, err := s.conf.Exchange(ctx, authCode)
	if err != nil {
		return fmt.Errorf("failed to exchange auth code: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = tok
	return writeToken(s.account, tok)
}

// GetValidToken returns a non-expired credential, transparently refreshing
// an expired token when a refresh token is available and persisting the
// result. It fails with *AuthError when no credential exists or the
// provider rejects the refresh.
func (s *Store) GetValidToken(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok := s.cached
	if tok == nil {
		var err error
		tok, err = readToken(s.account)
		if err != nil {
			return nil, &AuthError{Account: s.account, Reason: "no stored credential", Err: err}
		}
	}

	if tok.Valid() {
		s.cached = tok
		return tok, nil
	}

	if tok.RefreshToken == "" {
		return nil, &AuthError{Account: s.account, Reason: "token expired and no refresh token stored"}
	}

	// TokenSource refreshes lazily on Token(). The surrounding mutex
	// guarantees only one refresh is in flight for this account.
	refreshed, err := s.conf.TokenSource(ctx, tok).Token()
	if err != nil {
		return nil, &AuthError{Account: s.account, Reason: "provider rejected token refresh", Err: err}
	}

	s.cached = refreshed
	if err := writeToken(s.account, refreshed); err != nil {
		return nil, fmt.Errorf("failed to persist refreshed token: %w", err)
	}
	return refreshed, nil
}

// Invalidate clears the stored credential, e.g. on a revocation signal.
func (s *Store) Invalidate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cached = nil
	path := tokenFile(s.account)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}

// TokenSource returns an oauth2.TokenSource backed by this store. Every
// Token() call goes through GetValidToken, so refreshes stay serialized.
func (s *Store) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &storeTokenSource{ctx: ctx, store: s}
}

// HTTPClient returns an HTTP client that authenticates requests with the
// stored credential. The client forces HTTP/1.1 to avoid HTTP/2 protocol
// errors seen with the Google APIs.
func (s *Store) HTTPClient(ctx context.Context) (*http.Client, error) {
	if _, err := s.GetValidToken(ctx); err != nil {
		return nil, err
	}

	client := oauth2.NewClient(ctx, s.TokenSource(ctx))
	if transport, ok := client.Transport.(*oauth2.Transport); ok {
		transport.Base = &http.Transport{
			ForceAttemptHTTP2: false,
		}
	}
	return client, nil
}

type storeTokenSource struct {
	ctx   context.Context
	store *Store
}

func (ts *storeTokenSource) Token() (*oauth2.Token, error) {
	return ts.store.GetValidToken(ts.ctx)
}

// HasToken checks if a persisted credential exists for the account.
func HasToken(account string) bool {
	_, err := os.Stat(tokenFile(account))
	return err == nil
}

// SetEndpointForTesting overrides the OAuth endpoint, for tests that stand
// in for the provider's token server.
func (s *Store) SetEndpointForTesting(e oauth2.Endpoint) {
	s.conf.Endpoint = e
}

// persistedToken is the on-disk token format.
type persistedToken struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	Scopes       []string  `json:"scopes,omitempty"`
}

func tokenFile(account string) string {
	return filepath.Join(cacheDir(), account+".token.json")
}

func readToken(account string) (*oauth2.Token, error) {
	raw, err := os.ReadFile(tokenFile(account))
	if err != nil {
		return nil, err
	}
	var pt persistedToken
	if err := json.Unmarshal(raw, &pt); err != nil {
		return nil, fmt.Errorf("invalid token file: %w", err)
	}
	if pt.AccessToken == "" && pt.RefreshToken == "" {
		return nil, fmt.Errorf("token file contains no credential")
	}
	return &oauth2.Token{
		AccessToken:  pt.AccessToken,
		RefreshToken: pt.RefreshToken,
		TokenType:    pt.TokenType,
		Expiry:       pt.Expiry,
	}, nil
}

func writeToken(account string, tok *oauth2.Token) error {
	dir := cacheDir()
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	pt := persistedToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
		Scopes:       Scopes,
	}
	raw, err := json.MarshalIndent(pt, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(tokenFile(account), raw, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

func cacheDir() string {
	return filepath.Join(userCacheDir(), "mailpilot")
}

func userCacheDir() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return xdg
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Caches")
	case "windows":
		for _, ev := range []string{"TEMP", "TMP"} {
			if v := os.Getenv(ev); v != "" {
				return v
			}
		}
	}
	return filepath.Join(homeDir(), ".cache")
}

func homeDir() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("HOMEDRIVE") + os.Getenv("HOMEPATH")
	}
	return os.Getenv("HOME")
}
