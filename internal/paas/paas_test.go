package paas

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type fakePaaS struct {
	mu     sync.Mutex
	logins int
	logs   []CreateLogRequest
}

func (f *fakePaaS) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.logins++
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{
			"token":      "tok",
			"expires_at": time.Now().Add(time.Hour).Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/api/v1/logs", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req CreateLogRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.logs = append(f.logs, req)
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	})
	return mux
}

func TestNewRequiresConfig(t *testing.T) {
	if New("", "key", "a") != nil || New("http://x", "", "a") != nil {
		t.Fatalf("unconfigured client must be nil")
	}
}

func TestLogBestEffortCtxReusesToken(t *testing.T) {
	fake := &fakePaaS{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	p := New(srv.URL, "key", "tradeagents-test")
	ctx := WithStage(WithClient(context.Background(), p), "perception")
	LogBestEffortCtx(ctx, "opportunity_identified", "info", map[string]any{"symbol": "XYZ"})
	LogBestEffortCtx(ctx, "opportunity_identified", "info", map[string]any{"symbol": "ABC"})

	if fake.logins != 1 {
		t.Fatalf("logins=%d want 1", fake.logins)
	}
	if len(fake.logs) != 2 || fake.logs[0].Agent != "tradeagents-test" {
		t.Fatalf("logs=%+v", fake.logs)
	}
	if fake.logs[0].SessionKey != "perception" || fake.logs[0].Metadata["stage"] != "perception" {
		t.Fatalf("stage not attached: %+v", fake.logs[0])
	}
}

func TestLogBestEffortCtxWithoutClient(t *testing.T) {
	// no client on the context: nothing to send and nothing to panic on
	LogBestEffortCtx(WithStage(context.Background(), "memory"), "memory_stored", "info", nil)
	if StageFromContext(context.Background()) != "" || ClientFromContext(context.Background()) != nil {
		t.Fatalf("empty context must carry no stage or client")
	}
}

func TestInjectClientMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	p := New("http://paas.invalid", "key", "")
	r := gin.New()
	r.Use(InjectClientMiddleware(p))
	var got *Client
	r.POST("/api/v2/agents/:agent/run", func(c *gin.Context) {
		got = ClientFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v2/agents/decision/run", nil))
	if got != p {
		t.Fatalf("client not injected")
	}
}

func TestWriteAuditMiddlewareSkipsReads(t *testing.T) {
	gin.SetMode(gin.TestMode)
	fake := &fakePaaS{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	r := gin.New()
	r.Use(WriteAuditMiddleware(New(srv.URL, "key", ""), nil))
	r.GET("/api/v2/agents", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.PUT("/api/v2/system-settings/:key", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/v2/agents", nil),
		httptest.NewRequest(http.MethodPut, "/api/v2/system-settings/feature_agent_decision", nil),
	} {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
	if len(fake.logs) != 1 {
		t.Fatalf("logs=%d want 1", len(fake.logs))
	}
	got := fake.logs[0]
	if got.Action != "tradeagents_http_write" || got.Agent != "tradeagents" {
		t.Fatalf("log=%+v", got)
	}
	if got.Details["route"] != "/api/v2/system-settings/:key" {
		t.Fatalf("route=%v", got.Details["route"])
	}
}
