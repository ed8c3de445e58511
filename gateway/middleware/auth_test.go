package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"stakingcore/crypto"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testCaller(t *testing.T) crypto.Address {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	return key.PubKey().Address()
}

func protected(auth *Authenticator, seen *crypto.Address) http.Handler {
	return auth.Middleware(ScopeStakeWrite)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := CallerFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		*seen = caller
		w.WriteHeader(http.StatusNoContent)
	}))
}

func TestAuthenticatorAcceptsScopedToken(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{HMACSecret: testSecret, Issuer: "issuer", Audience: "stake"}, nil)
	caller := testCaller(t)
	token, err := auth.Issue(caller, time.Minute, ScopeStakeWrite)
	require.NoError(t, err)

	var seen crypto.Address
	req := httptest.NewRequest(http.MethodPost, "/v1/stake", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	protected(auth, &seen).ServeHTTP(res, req)

	require.Equal(t, http.StatusNoContent, res.Code)
	require.Equal(t, caller, seen)
}

func TestAuthenticatorRejections(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{HMACSecret: testSecret, Issuer: "issuer"}, nil)
	caller := testCaller(t)

	noScope, err := auth.Issue(caller, time.Minute)
	require.NoError(t, err)
	expired, err := auth.Issue(caller, -time.Hour, ScopeStakeWrite)
	require.NoError(t, err)
	other := NewAuthenticator(AuthConfig{HMACSecret: "ffffffffffffffffffffffffffffffff", Issuer: "issuer"}, nil)
	forged, err := other.Issue(caller, time.Minute, ScopeStakeWrite)
	require.NoError(t, err)
	wrongIssuer, err := NewAuthenticator(AuthConfig{HMACSecret: testSecret, Issuer: "elsewhere"}, nil).Issue(caller, time.Minute, ScopeStakeWrite)
	require.NoError(t, err)
	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Scope: ScopeStakeWrite,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "not-an-address",
			Issuer:    "issuer",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + noScope, http.StatusUnauthorized},
		{"no scope", "Bearer " + noScope, http.StatusForbidden},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"forged", "Bearer " + forged, http.StatusUnauthorized},
		{"issuer", "Bearer " + wrongIssuer, http.StatusUnauthorized},
		{"subject", "Bearer " + badSubject, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var seen crypto.Address
			req := httptest.NewRequest(http.MethodPost, "/v1/stake", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			res := httptest.NewRecorder()
			protected(auth, &seen).ServeHTTP(res, req)
			require.Equal(t, tc.status, res.Code)
			require.True(t, seen.IsZero())
		})
	}
}

func TestAuthenticatorWithoutSecret(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{}, nil)
	_, err := auth.Issue(testCaller(t), time.Minute)
	require.Error(t, err)
	_, _, err = auth.Verify("anything")
	require.Error(t, err)
}

func TestCallerFromContextRejectsZero(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := CallerFromContext(WithCaller(req.Context(), crypto.Address{}))
	require.False(t, ok)
}
