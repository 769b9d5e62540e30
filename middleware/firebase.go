package middleware

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/papayapulse/pulse-api/internal/core/domain"
)

// DefaultFirebaseJWKSURL serves the public keys that sign Firebase ID tokens.
const DefaultFirebaseJWKSURL = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"

const clockLeeway = 5 * time.Minute

// Identity is the verified caller attached to every authenticated request.
type Identity struct {
	UID           string
	Email         string
	EmailVerified bool
	Name          string
}

// TokenVerifier validates a bearer credential.
// Errors wrapping domain.ErrUnauthenticated mean the token was rejected; any
// other error means the key provider could not be consulted.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*Identity, error)
}

// keySourceError marks a failure to obtain signing keys, as opposed to a bad token.
type keySourceError struct{ err error }

func (e *keySourceError) Error() string { return "signing keys unavailable: " + e.err.Error() }
func (e *keySourceError) Unwrap() error { return e.err }

// FirebaseVerifier checks Firebase Authentication ID tokens (RS256) against
// Google's published keys.
type FirebaseVerifier struct {
	projectID string
	issuer    string
	keys      *jwksCache
	now       func() time.Time
}

type FirebaseOptions struct {
	ProjectID  string
	JWKSURL    string
	KeyTTL     time.Duration
	HTTPClient *http.Client
}

func NewFirebaseVerifier(opts FirebaseOptions) (*FirebaseVerifier, error) {
	projectID := strings.TrimSpace(opts.ProjectID)
	if projectID == "" {
		return nil, errors.New("FIREBASE_PROJECT_ID is required")
	}
	url := strings.TrimSpace(opts.JWKSURL)
	if url == "" {
		url = DefaultFirebaseJWKSURL
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	ttl := opts.KeyTTL
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &FirebaseVerifier{
		projectID: projectID,
		issuer:    "https://securetoken.google.com/" + projectID,
		keys:      newJWKSCache(hc, url, ttl),
		now:       time.Now,
	}, nil
}

func (v *FirebaseVerifier) Verify(ctx context.Context, rawToken string) (*Identity, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, fmt.Errorf("%w: empty token", domain.ErrUnauthenticated)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithoutClaimsValidation(),
	)
	claims := jwt.MapClaims{}
	tok, err := parser.ParseWithClaims(rawToken, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if strings.TrimSpace(kid) == "" {
			return nil, errors.New("missing kid")
		}
		return v.keys.getKey(ctx, kid)
	})
	if err != nil {
		var ks *keySourceError
		if errors.As(err, &ks) {
			return nil, ks
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	if tok == nil || !tok.Valid {
		return nil, fmt.Errorf("%w: invalid token", domain.ErrUnauthenticated)
	}

	if err := v.validateClaims(claims); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}

	out := &Identity{}
	out.UID, _ = claims["sub"].(string)
	out.Email, _ = claims["email"].(string)
	out.Name, _ = claims["name"].(string)
	out.EmailVerified, _ = claims["email_verified"].(bool)
	return out, nil
}

func (v *FirebaseVerifier) validateClaims(claims jwt.MapClaims) error {
	now := v.now()

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return errors.New("missing exp")
	}
	if now.After(exp.Time) {
		return errors.New("token expired")
	}
	iat, err := claims.GetIssuedAt()
	if err != nil || iat == nil {
		return errors.New("missing iat")
	}
	if iat.After(now.Add(clockLeeway)) {
		return errors.New("token issued in the future")
	}
	if at, ok := claims["auth_time"].(float64); ok && time.Unix(int64(at), 0).After(now.Add(clockLeeway)) {
		return errors.New("auth_time in the future")
	}

	if iss, _ := claims["iss"].(string); iss != v.issuer {
		return fmt.Errorf("issuer mismatch: %q", iss)
	}
	if !audContains(claims["aud"], v.projectID) {
		return errors.New("audience mismatch")
	}
	if sub, _ := claims["sub"].(string); strings.TrimSpace(sub) == "" || len(sub) > 128 {
		return errors.New("missing or oversized sub")
	}
	return nil
}

func audContains(aud any, required string) bool {
	switch v := aud.(type) {
	case string:
		return v == required
	case []any:
		for _, it := range v {
			if s, ok := it.(string); ok && s == required {
				return true
			}
		}
	}
	return false
}

// jwksRefreshCooldown bounds how often an unknown kid or a failing key
// endpoint can trigger another fetch.
const jwksRefreshCooldown = time.Minute

// jwksCache keeps the RSA keys by kid and refreshes them on TTL expiry or an
// unknown kid. Concurrent refreshes share one fetch, and fetches are at least
// cooldown apart.
type jwksCache struct {
	httpClient *http.Client
	url        string
	ttl        time.Duration
	cooldown   time.Duration
	flight     singleflight.Group

	mu          sync.RWMutex
	keys        map[string]*rsa.PublicKey
	fetchedAt   time.Time
	attemptedAt time.Time
	lastErr     error
}

func newJWKSCache(hc *http.Client, url string, ttl time.Duration) *jwksCache {
	return &jwksCache{
		httpClient: hc,
		url:        url,
		ttl:        ttl,
		cooldown:   jwksRefreshCooldown,
		keys:       map[string]*rsa.PublicKey{},
	}
}

type jwkSet struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (j *jwksCache) getKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	j.mu.RLock()
	key := j.keys[kid]
	stale := time.Since(j.fetchedAt) > j.ttl
	j.mu.RUnlock()

	if key != nil && !stale {
		return key, nil
	}

	if err := j.refreshShared(ctx); err != nil {
		// serve a stale key rather than fail every request during an outage
		if key != nil {
			return key, nil
		}
		return nil, &keySourceError{err: err}
	}

	j.mu.RLock()
	defer j.mu.RUnlock()
	key = j.keys[kid]
	if key == nil {
		return nil, fmt.Errorf("kid not found in jwks: %s", kid)
	}
	return key, nil
}

// refreshShared fetches the key set unless another fetch happened within the
// cooldown, in which case that fetch's result is reused.
func (j *jwksCache) refreshShared(ctx context.Context) error {
	_, err, _ := j.flight.Do("jwks", func() (any, error) {
		j.mu.RLock()
		recent := !j.attemptedAt.IsZero() && time.Since(j.attemptedAt) < j.cooldown
		lastErr := j.lastErr
		j.mu.RUnlock()
		if recent {
			return nil, lastErr
		}

		// shared by every waiter; httpClient.Timeout bounds it
		err := j.refresh(context.WithoutCancel(ctx))
		j.mu.Lock()
		j.attemptedAt = time.Now()
		j.lastErr = err
		j.mu.Unlock()
		return nil, err
	})
	return err
}

func (j *jwksCache) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.url, nil)
	if err != nil {
		return err
	}
	res, err := j.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("jwks fetch failed: %s", res.Status)
	}

	var set jwkSet
	if err := json.NewDecoder(res.Body).Decode(&set); err != nil {
		return fmt.Errorf("decode jwks: %w", err)
	}

	next := map[string]*rsa.PublicKey{}
	for _, k := range set.Keys {
		if strings.TrimSpace(k.Kid) == "" || k.Kty != "RSA" {
			continue
		}
		if pub, err := rsaFromModExp(k.N, k.E); err == nil {
			next[k.Kid] = pub
		}
	}
	if len(next) == 0 {
		return errors.New("jwks contained no usable keys")
	}

	j.mu.Lock()
	j.keys = next
	j.fetchedAt = time.Now()
	j.mu.Unlock()
	return nil
}

func rsaFromModExp(nB64, eB64 string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(nB64)
	if err != nil {
		return nil, err
	}
	eb, err := base64.RawURLEncoding.DecodeString(eB64)
	if err != nil {
		return nil, err
	}
	e := new(big.Int).SetBytes(eb)
	if !e.IsInt64() || e.Int64() <= 1 {
		return nil, errors.New("invalid rsa exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: int(e.Int64())}, nil
}
