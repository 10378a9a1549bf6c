package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestJWT(t *testing.T) *JWTAuthMiddleware {
	t.Helper()
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	return NewJWTAuthMiddleware(&JWTAuthConfig{
		Enabled:           true,
		AdminUsername:     "admin",
		AdminPasswordHash: hash,
		JWTSecret:         "test-secret",
		JWTExpiryHours:    1,
		SkipPaths:         []string{"/health", "/metrics", "/auth/*"},
	})
}

func userEcho(t *testing.T, seen *string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*seen = GetUserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestJWTAuth_ValidToken(t *testing.T) {
	m := newTestJWT(t)
	token, err := m.GenerateToken("admin")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	var user string
	req := httptest.NewRequest(http.MethodGet, "/api/orders/suspicious", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	m.Wrap(userEcho(t, &user)).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if user != "admin" {
		t.Errorf("expected user in context, got %q", user)
	}
}

func TestJWTAuth_Rejects(t *testing.T) {
	m := newTestJWT(t)

	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, UserClaims{
		Username: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			Issuer:    "someone-else",
		},
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, UserClaims{
		Username: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			Issuer:    tokenIssuer,
		},
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"not bearer", "Basic YWRtaW46czNjcmV0"},
		{"garbage", "Bearer not-a-token"},
		{"wrong issuer", "Bearer " + foreign},
		{"expired", "Bearer " + expired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var user string
			req := httptest.NewRequest(http.MethodGet, "/api/orders/1", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			m.Wrap(userEcho(t, &user)).ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", w.Code)
			}
			if w.Header().Get("WWW-Authenticate") == "" {
				t.Error("expected WWW-Authenticate header")
			}
		})
	}
}

func TestJWTAuth_SkipPaths(t *testing.T) {
	m := newTestJWT(t)

	for _, path := range []string{"/health", "/metrics", "/auth/login"} {
		var user string
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		m.Wrap(userEcho(t, &user)).ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("%s: expected 200 without token, got %d", path, w.Code)
		}
	}
}

func TestJWTAuth_WebSocketQueryToken(t *testing.T) {
	m := newTestJWT(t)
	token, err := m.GenerateToken("admin")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	var user string
	req := httptest.NewRequest(http.MethodGet, "/api/orders/events?access_token="+token, nil)
	req.Header.Set("Upgrade", "websocket")
	w := httptest.NewRecorder()
	m.Wrap(userEcho(t, &user)).ServeHTTP(w, req)
	if w.Code != http.StatusOK || user != "admin" {
		t.Errorf("expected query token accepted on upgrade, got %d user=%q", w.Code, user)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/orders/suspicious?access_token="+token, nil)
	w = httptest.NewRecorder()
	m.Wrap(userEcho(t, &user)).ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected query token ignored on plain requests, got %d", w.Code)
	}
}

func TestJWTAuth_Disabled(t *testing.T) {
	m := NewJWTAuthMiddleware(&JWTAuthConfig{Enabled: false, JWTSecret: "test-secret"})

	var user string
	req := httptest.NewRequest(http.MethodGet, "/api/orders/1", nil)
	w := httptest.NewRecorder()
	m.Wrap(userEcho(t, &user)).ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 with auth disabled, got %d", w.Code)
	}
	if user != "" {
		t.Errorf("expected no user with auth disabled, got %q", user)
	}
}

func TestJWTAuth_TokenClaims(t *testing.T) {
	m := newTestJWT(t)
	token, err := m.GenerateToken("admin")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.Username != "admin" || claims.Subject != "admin" || claims.Issuer != tokenIssuer {
		t.Errorf("unexpected claims: %+v", claims)
	}
	lifetime := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	if lifetime != time.Hour || m.ExpirySeconds() != 3600 {
		t.Errorf("expected one hour lifetime, got %v (%ds)", lifetime, m.ExpirySeconds())
	}

	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, UserClaims{
		Username:         "admin",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: tokenIssuer},
	}).SignedString([]byte("test-secret"))
	if _, err := m.ValidateToken(noExpiry); err == nil {
		t.Error("expected token without expiry to be rejected")
	}

	anonymous, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, UserClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("test-secret"))
	if _, err := m.ValidateToken(anonymous); err == nil {
		t.Error("expected token without username to be rejected")
	}
}

func TestJWTAuth_ValidateCredentials(t *testing.T) {
	m := newTestJWT(t)

	tests := []struct {
		user, pass string
		want       bool
	}{
		{"admin", "s3cret", true},
		{"admin", "wrong", false},
		{"root", "s3cret", false},
		{"", "", false},
	}
	for _, tt := range tests {
		if got := m.ValidateCredentials(tt.user, tt.pass); got != tt.want {
			t.Errorf("ValidateCredentials(%q, %q) = %v, want %v", tt.user, tt.pass, got, tt.want)
		}
	}
}
