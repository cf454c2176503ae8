package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"gestaoplus/ms_nfse_core/internal/infrastructure/config"
	"gestaoplus/ms_nfse_core/internal/testutil"
)

const testIssuer = "https://issuer.example.com"

// newJWKSServer serves a one-key JWK set for the generated RSA key so
// the authenticator can be exercised without a real identity provider.
func newJWKSServer(t *testing.T) (*httptest.Server, *rsa.PrivateKey) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	n := base64.RawURLEncoding.EncodeToString(key.N.Bytes())
	e := base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes())
	body := fmt.Sprintf(`{"keys":[{"kty":"RSA","kid":"test-key","use":"sig","alg":"RS256","n":"%s","e":"%s"}]}`, n, e)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return srv, key
}

func signedToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = "test-key"

	signed, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func newTestAuthenticator(t *testing.T, jwksURL string, bypass []string) *JWTAuthenticator {
	t.Helper()

	auth, err := NewJWTAuthenticator(config.AuthSettings{
		Enabled:     true,
		IssuerURI:   testIssuer,
		JWKSetURI:   jwksURL,
		BypassPaths: bypass,
	}, testutil.NewTestLogger())
	if err != nil {
		t.Fatalf("failed to build authenticator: %v", err)
	}
	t.Cleanup(auth.Close)

	return auth
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestJWTAuthenticator_Disabled_PassesThrough(t *testing.T) {
	auth, err := NewJWTAuthenticator(config.AuthSettings{Enabled: false}, testutil.NewTestLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer auth.Close()

	w := httptest.NewRecorder()
	auth.Middleware(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200 with auth disabled, got %d", w.Code)
	}
}

func TestNewJWTAuthenticator_UnreachableJWKS(t *testing.T) {
	_, err := NewJWTAuthenticator(config.AuthSettings{
		Enabled:   true,
		IssuerURI: testIssuer,
		JWKSetURI: "http://127.0.0.1:1/jwks.json",
	}, testutil.NewTestLogger())

	if err == nil {
		t.Fatal("expected error for unreachable JWK set")
	}
}

func TestJWTAuthenticator_BypassPath(t *testing.T) {
	srv, _ := newJWKSServer(t)
	auth := newTestAuthenticator(t, srv.URL, []string{"/health"})

	w := httptest.NewRecorder()
	auth.Middleware(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected bypass path to skip auth, got %d", w.Code)
	}
}

func TestJWTAuthenticator_MissingHeader(t *testing.T) {
	srv, _ := newJWKSServer(t)
	auth := newTestAuthenticator(t, srv.URL, nil)

	w := httptest.NewRecorder()
	auth.Middleware(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/nfse", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401 without credentials, got %d", w.Code)
	}
}

func TestJWTAuthenticator_MalformedToken(t *testing.T) {
	srv, _ := newJWKSServer(t)
	auth := newTestAuthenticator(t, srv.URL, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nfse", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")

	w := httptest.NewRecorder()
	auth.Middleware(okHandler()).ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401 for malformed token, got %d", w.Code)
	}
}

func TestJWTAuthenticator_ValidToken(t *testing.T) {
	srv, key := newJWKSServer(t)
	auth := newTestAuthenticator(t, srv.URL, nil)

	token := signedToken(t, key, jwt.MapClaims{
		"iss": testIssuer,
		"sub": "backoffice-user",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	var sawToken bool
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawToken = r.Context().Value(ContextKeyToken{}).(*jwt.Token)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nfse", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 for valid token, got %d", w.Code)
	}
	if !sawToken {
		t.Error("expected verified token in request context")
	}
}

func TestJWTAuthenticator_WrongIssuer(t *testing.T) {
	srv, key := newJWKSServer(t)
	auth := newTestAuthenticator(t, srv.URL, nil)

	token := signedToken(t, key, jwt.MapClaims{
		"iss": "https://other-issuer.example.com",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nfse", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	auth.Middleware(okHandler()).ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401 for wrong issuer, got %d", w.Code)
	}
}

func TestJWTAuthenticator_ExpiredToken(t *testing.T) {
	srv, key := newJWKSServer(t)
	auth := newTestAuthenticator(t, srv.URL, nil)

	token := signedToken(t, key, jwt.MapClaims{
		"iss": testIssuer,
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nfse", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	auth.Middleware(okHandler()).ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401 for expired token, got %d", w.Code)
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{name: "empty header", header: "", wantErr: true},
		{name: "no scheme", header: "token123", wantErr: true},
		{name: "wrong scheme", header: "Basic dXNlcg==", wantErr: true},
		{name: "too many parts", header: "Bearer token extra", wantErr: true},
		{name: "valid", header: "Bearer token123", want: "token123"},
		{name: "scheme is case-insensitive", header: "bearer token123", want: "token123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractBearerToken(tt.header)

			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected token %q, got %q", tt.want, got)
			}
		})
	}
}

func TestJWTAuthenticator_shouldBypass(t *testing.T) {
	auth, _ := NewJWTAuthenticator(config.AuthSettings{
		BypassPaths: []string{"/health", "/public"},
	}, testutil.NewTestLogger())

	tests := []struct {
		path string
		want bool
	}{
		{"/health", true},
		{"/public", true},
		{"/api/v1/nfse", false},
		{"/health/status", false},
	}

	for _, tt := range tests {
		if got := auth.shouldBypass(tt.path); got != tt.want {
			t.Errorf("shouldBypass(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
