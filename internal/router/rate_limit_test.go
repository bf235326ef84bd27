package router

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func TestKeyByIPAndJSONField(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"phone_number":" +33612345678 "}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Request.RemoteAddr = "1.2.3.4:5678"

	key := KeyByIPAndJSONField("phone_number")(c)
	if key != "+33612345678|1.2.3.4" {
		t.Fatalf("key want +33612345678|1.2.3.4 got %s", key)
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		t.Fatalf("read body after key extraction failed: %v", err)
	}
	if !strings.Contains(string(body), "+33612345678") {
		t.Fatalf("request body should be restored after reading field")
	}
}

func TestRateLimitMiddlewareWithoutClient(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RateLimitMiddleware(nil, RateLimitRule{WindowSeconds: 60, MaxRequests: 1}, KeyByIP))
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok":true`) {
		t.Fatalf("expected handler response body, got %s", w.Body.String())
	}
}

func TestToInt64(t *testing.T) {
	cases := []struct {
		name  string
		input interface{}
		want  int64
		ok    bool
	}{
		{name: "int64", input: int64(10), want: 10, ok: true},
		{name: "int", input: int(11), want: 11, ok: true},
		{name: "uint8", input: uint8(12), want: 12, ok: true},
		{name: "float64", input: float64(13.9), want: 13, ok: true},
		{name: "string", input: "bad", want: 0, ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := toInt64(tc.input)
			if ok != tc.ok {
				t.Fatalf("ok want %v got %v", tc.ok, ok)
			}
			if got != tc.want {
				t.Fatalf("value want %d got %d", tc.want, got)
			}
		})
	}
}

func newRateLimitTestEngine(t *testing.T, rule RateLimitRule) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	r := gin.New()
	r.Use(RateLimitMiddleware(client, rule, KeyByIP))
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status_code": 0})
	})
	return r, mr
}

func doRateLimitedRequest(t *testing.T, r *gin.Engine) (int, *httptest.ResponseRecorder) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	r.ServeHTTP(w, req)
	var resp struct {
		StatusCode int `json:"status_code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	return resp.StatusCode, w
}

func TestRateLimitMiddlewareBlocksAfterMaxRequests(t *testing.T) {
	r, mr := newRateLimitTestEngine(t, RateLimitRule{Prefix: "test:rate", WindowSeconds: 60, MaxRequests: 2})

	for i := 0; i < 2; i++ {
		if code, _ := doRateLimitedRequest(t, r); code != 0 {
			t.Fatalf("request %d should pass, got code %d", i+1, code)
		}
	}
	code, w := doRateLimitedRequest(t, r)
	if code != 429 {
		t.Fatalf("third request want 429 got %d", code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header on throttled response")
	}

	mr.FastForward(61 * time.Second)
	if code, _ := doRateLimitedRequest(t, r); code != 0 {
		t.Fatalf("request after window should pass, got code %d", code)
	}
}

func TestRateLimitMiddlewareBlockSecondsOutlastsWindow(t *testing.T) {
	r, mr := newRateLimitTestEngine(t, RateLimitRule{Prefix: "test:rate", WindowSeconds: 10, MaxRequests: 1, BlockSeconds: 120})

	if code, _ := doRateLimitedRequest(t, r); code != 0 {
		t.Fatalf("first request should pass, got code %d", code)
	}
	if code, _ := doRateLimitedRequest(t, r); code != 429 {
		t.Fatalf("second request want 429 got %d", code)
	}
	if !mr.Exists("test:rate:10.0.0.1:blocked") {
		t.Fatalf("expected block key to be set")
	}

	mr.FastForward(30 * time.Second)
	code, w := doRateLimitedRequest(t, r)
	if code != 429 {
		t.Fatalf("request during block want 429 got %d", code)
	}
	if got := w.Header().Get("Retry-After"); got != "90" {
		t.Fatalf("Retry-After want 90 got %s", got)
	}

	mr.FastForward(91 * time.Second)
	if code, _ := doRateLimitedRequest(t, r); code != 0 {
		t.Fatalf("request after block should pass, got code %d", code)
	}
}

func TestRateLimitMiddlewareRedisDown(t *testing.T) {
	r, mr := newRateLimitTestEngine(t, RateLimitRule{Prefix: "test:rate", WindowSeconds: 60, MaxRequests: 5})
	mr.Close()

	if code, _ := doRateLimitedRequest(t, r); code != 503 {
		t.Fatalf("redis failure want 503 got %d", code)
	}
}
