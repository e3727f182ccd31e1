package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/lestrrat-go/jwx/jwk"
)

func signedToken(t *testing.T, key *rsa.PrivateKey, kid string, claims StandardClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func jwksServer(t *testing.T, key *rsa.PrivateKey, kid string) *httptest.Server {
	t.Helper()
	pub, err := jwk.New(&key.PublicKey)
	if err != nil {
		t.Fatalf("failed to build jwk: %v", err)
	}
	if err := pub.Set(jwk.KeyIDKey, kid); err != nil {
		t.Fatalf("failed to set kid: %v", err)
	}
	set := jwk.NewSet()
	set.Add(pub)

	body, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("failed to marshal jwks: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestJWTValidatorDevMode(t *testing.T) {
	validator, err := NewTokenValidator(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, StandardClaims{Sub: "user-1", Email: "ada@example.com", Name: "Ada"})
	signed, err := token.SignedString([]byte("anything"))
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}

	identity, err := validator.ValidateToken(context.Background(), signed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identity.UserID != "user-1" || identity.DisplayName() != "Ada" {
		t.Errorf("unexpected identity %+v", identity)
	}

	empty, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, StandardClaims{}).SignedString([]byte("x"))
	if _, err := validator.ValidateToken(context.Background(), empty); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for claims without subject, got %v", err)
	}
}

func TestJWTValidatorWithJWKS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	server := jwksServer(t, key, "kid-1")

	validator, err := NewTokenValidator(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	valid := signedToken(t, key, "kid-1", StandardClaims{
		UserId: "uid-7",
		Email:  "grace@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	identity, err := validator.ValidateToken(context.Background(), valid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identity.UserID != "uid-7" || identity.DisplayName() != "grace@example.com" {
		t.Errorf("unexpected identity %+v", identity)
	}

	expired := signedToken(t, key, "kid-1", StandardClaims{
		Sub: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	if _, err := validator.ValidateToken(context.Background(), expired); err == nil {
		t.Error("expected expired token to be rejected")
	}

	unknown := signedToken(t, key, "kid-2", StandardClaims{Sub: "user-1"})
	if _, err := validator.ValidateToken(context.Background(), unknown); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for unknown kid, got %v", err)
	}
}

type staticValidator struct {
	identity Identity
	err      error
}

func (s staticValidator) ValidateToken(ctx context.Context, token string) (Identity, error) {
	return s.identity, s.err
}

func TestRequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		header     string
		query      string
		upgrade    bool
		validator  TokenValidator
		wantStatus int
	}{
		{name: "missing header", validator: staticValidator{}, wantStatus: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic abc", validator: staticValidator{}, wantStatus: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer abc", validator: staticValidator{err: ErrInvalidToken}, wantStatus: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer abc", validator: staticValidator{identity: Identity{UserID: "user-1"}}, wantStatus: http.StatusOK},
		{name: "websocket query token", query: "?token=abc", upgrade: true, validator: staticValidator{identity: Identity{UserID: "user-1"}}, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(NewMiddleware(tt.validator).RequireAuth())
			router.GET("/me", func(c *gin.Context) {
				userID, _ := GetUserID(c)
				c.String(http.StatusOK, userID)
			})

			req := httptest.NewRequest(http.MethodGet, "/me"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.upgrade {
				req.Header.Set("Upgrade", "websocket")
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if tt.wantStatus == http.StatusOK && w.Body.String() != "user-1" {
				t.Errorf("expected user-1, got %q", w.Body.String())
			}
		})
	}
}
