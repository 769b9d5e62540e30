package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papayapulse/pulse-api/internal/core/domain"
)

const testProject = "papaya-pulse-test"

type jwksFixture struct {
	key    *rsa.PrivateKey
	server *httptest.Server
	hits   atomic.Int32
	fail   atomic.Bool
}

func newJWKSFixture(t *testing.T) *jwksFixture {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := &jwksFixture{key: key}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		if f.fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": "k1",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			}},
		})
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *jwksFixture) verifier(t *testing.T) *FirebaseVerifier {
	t.Helper()
	v, err := NewFirebaseVerifier(FirebaseOptions{ProjectID: testProject, JWKSURL: f.server.URL})
	require.NoError(t, err)
	return v
}

func validClaims() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":            "https://securetoken.google.com/" + testProject,
		"aud":            testProject,
		"sub":            "uid-123",
		"user_id":        "uid-123",
		"email":          "farmer@example.com",
		"email_verified": true,
		"name":           "Nimal",
		"iat":            now.Add(-time.Minute).Unix(),
		"auth_time":      now.Add(-time.Minute).Unix(),
		"exp":            now.Add(time.Hour).Unix(),
	}
}

func (f *jwksFixture) sign(t *testing.T, claims jwt.MapClaims, kid string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	s, err := tok.SignedString(f.key)
	require.NoError(t, err)
	return s
}

func TestFirebaseVerifier_ValidToken(t *testing.T) {
	f := newJWKSFixture(t)
	v := f.verifier(t)

	id, err := v.Verify(t.Context(), f.sign(t, validClaims(), "k1"))
	require.NoError(t, err)
	assert.Equal(t, "uid-123", id.UID)
	assert.Equal(t, "farmer@example.com", id.Email)
	assert.True(t, id.EmailVerified)
	assert.Equal(t, "Nimal", id.Name)

	// second call is served from the key cache
	_, err = v.Verify(t.Context(), f.sign(t, validClaims(), "k1"))
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.hits.Load())
}

func TestFirebaseVerifier_RejectsBadTokens(t *testing.T) {
	f := newJWKSFixture(t)
	v := f.verifier(t)

	mutate := func(fn func(jwt.MapClaims)) string {
		c := validClaims()
		fn(c)
		return f.sign(t, c, "k1")
	}

	hs, err := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims()).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := map[string]string{
		"expired":        mutate(func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Hour).Unix() }),
		"wrong audience": mutate(func(c jwt.MapClaims) { c["aud"] = "other-project" }),
		"wrong issuer":   mutate(func(c jwt.MapClaims) { c["iss"] = "https://accounts.google.com" }),
		"empty subject":  mutate(func(c jwt.MapClaims) { c["sub"] = "" }),
		"future iat":     mutate(func(c jwt.MapClaims) { c["iat"] = time.Now().Add(time.Hour).Unix() }),
		"missing exp":    mutate(func(c jwt.MapClaims) { delete(c, "exp") }),
		"unknown kid":    f.sign(t, validClaims(), "k2"),
		"hmac signed":    hs,
		"garbage":        "not-a-jwt",
		"empty":          "",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(t.Context(), token)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrUnauthenticated)
		})
	}
}

func TestFirebaseVerifier_KeySourceFailureIsNotUnauthenticated(t *testing.T) {
	f := newJWKSFixture(t)
	f.fail.Store(true)
	v := f.verifier(t)

	_, err := v.Verify(t.Context(), f.sign(t, validClaims(), "k1"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestFirebaseVerifier_UnknownKidsShareOneFetch(t *testing.T) {
	f := newJWKSFixture(t)
	v := f.verifier(t)

	for i := range 50 {
		_, err := v.Verify(t.Context(), f.sign(t, validClaims(), fmt.Sprintf("bogus-%d", i)))
		require.ErrorIs(t, err, domain.ErrUnauthenticated)
	}
	assert.Equal(t, int32(1), f.hits.Load())

	// the known key is still served from cache
	_, err := v.Verify(t.Context(), f.sign(t, validClaims(), "k1"))
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.hits.Load())
}

func TestFirebaseVerifier_ConcurrentColdStartFetchesOnce(t *testing.T) {
	f := newJWKSFixture(t)
	v := f.verifier(t)
	token := f.sign(t, validClaims(), "k1")

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := v.Verify(t.Context(), token)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), f.hits.Load())
}

func TestFirebaseVerifier_FailingKeySourceIsNotHammered(t *testing.T) {
	f := newJWKSFixture(t)
	f.fail.Store(true)
	v := f.verifier(t)

	for range 10 {
		_, err := v.Verify(t.Context(), f.sign(t, validClaims(), "k1"))
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrUnauthenticated)
	}
	assert.Equal(t, int32(1), f.hits.Load())

	// once the cooldown has passed the next unknown kid refetches
	f.fail.Store(false)
	v.keys.cooldown = 0
	_, err := v.Verify(t.Context(), f.sign(t, validClaims(), "k1"))
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.hits.Load())
}

func TestNewFirebaseVerifier_RequiresProject(t *testing.T) {
	_, err := NewFirebaseVerifier(FirebaseOptions{})
	require.Error(t, err)
}
