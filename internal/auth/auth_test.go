package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	j := JWT{Secret: []byte("s3cret"), TokenTTL: time.Hour}
	tok, exp, err := j.Sign("ops", "admin")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expiry in the past: %v", exp)
	}
	claims, err := j.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "ops" || claims.Role != "admin" || claims.ID == "" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	other := JWT{Secret: []byte("different")}
	if _, err := other.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, _, err := (JWT{}).Sign("ops", ""); !errors.Is(err, ErrNoSecret) {
		t.Fatalf("expected ErrNoSecret, got %v", err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	// Expiry is stored at second precision, so a 1ns TTL is already past.
	j := JWT{Secret: []byte("s3cret"), TokenTTL: time.Nanosecond}
	tok, _, err := j.Sign("ops", "")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := j.Verify(tok); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}

func TestRequireBearer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	j := JWT{Secret: []byte("s3cret")}
	good, _, err := j.Sign("ops", "")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	build := func(disabled bool) *gin.Engine {
		r := gin.New()
		r.Use(RequireBearer(j, disabled))
		r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
		r.GET("/api/v2/agents", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(SubjectKey)) })
		return r
	}

	cases := []struct {
		name     string
		disabled bool
		path     string
		header   string
		status   int
		body     string
	}{
		{"health open", false, "/healthz", "", http.StatusOK, "ok"},
		{"missing token", false, "/api/v2/agents", "", http.StatusUnauthorized, ""},
		{"wrong scheme", false, "/api/v2/agents", "Basic " + good, http.StatusUnauthorized, ""},
		{"bad token", false, "/api/v2/agents", "Bearer nope", http.StatusUnauthorized, ""},
		{"good token", false, "/api/v2/agents", "Bearer " + good, http.StatusOK, "ops"},
		{"disabled", true, "/api/v2/agents", "", http.StatusOK, ""},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		build(tc.disabled).ServeHTTP(w, req)
		if w.Code != tc.status {
			t.Fatalf("%s: status=%d want %d", tc.name, w.Code, tc.status)
		}
		if tc.status == http.StatusOK && w.Body.String() != tc.body {
			t.Fatalf("%s: body=%q want %q", tc.name, w.Body.String(), tc.body)
		}
	}
}
