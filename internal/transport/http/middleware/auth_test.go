package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/LegalDragon/funtime-identity/internal/domain"
	"github.com/LegalDragon/funtime-identity/internal/transport/http/middleware"
	"github.com/LegalDragon/funtime-identity/internal/usecase"
	"github.com/gin-gonic/gin"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newAuthRig(t *testing.T) (*gin.Engine, *usecase.TokenService, *fakeClock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clk := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	tokens, err := usecase.NewTokenService(
		[]byte("0123456789abcdef0123456789abcdef"),
		"funtime-identity", "funtime-sites", time.Hour, clk,
	)
	if err != nil {
		t.Fatalf("token service: %v", err)
	}

	r := gin.New()
	r.GET("/protected", middleware.Auth(tokens), func(c *gin.Context) {
		id, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no user id"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": id})
	})
	return r, tokens, clk
}

func TestAuth_MissingHeader(t *testing.T) {
	r, _, _ := newAuthRig(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestAuth_WrongScheme(t *testing.T) {
	r, tokens, _ := newAuthRig(t)

	raw, err := tokens.Issue(&domain.User{ID: 7})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Basic "+raw)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestAuth_GarbageToken(t *testing.T) {
	r, _, _ := newAuthRig(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestAuth_ExpiredToken(t *testing.T) {
	r, tokens, clk := newAuthRig(t)

	raw, err := tokens.Issue(&domain.User{ID: 7})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	clk.Advance(time.Hour + time.Second)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestAuth_ValidToken(t *testing.T) {
	r, tokens, _ := newAuthRig(t)

	raw, err := tokens.Issue(&domain.User{ID: 42})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	if body := w.Body.String(); body != `{"user_id":42}` {
		t.Errorf("body = %s", body)
	}
}
