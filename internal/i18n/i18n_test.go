package i18n

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestResolveLocale(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name   string
		target string
		header map[string]string
		want   string
	}{
		{name: "default", target: "/", want: LocaleFR},
		{name: "query wins", target: "/?lang=en", header: map[string]string{"Accept-Language": "fr-FR"}, want: LocaleEN},
		{name: "x-locale", target: "/", header: map[string]string{"X-Locale": "EN_us"}, want: LocaleEN},
		{name: "accept language", target: "/", header: map[string]string{"Accept-Language": "en-GB,en;q=0.9"}, want: LocaleEN},
		{name: "unsupported", target: "/?lang=de", want: LocaleFR},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, tc.target, nil)
			for k, v := range tc.header {
				c.Request.Header.Set(k, v)
			}
			if got := ResolveLocale(c); got != tc.want {
				t.Fatalf("locale want %s got %s", tc.want, got)
			}
		})
	}
}

func TestTranslateFallbacks(t *testing.T) {
	if got := T("en", "error.phone_invalid"); got != "Invalid phone number" {
		t.Fatalf("unexpected en message %q", got)
	}
	if got := T("de", "error.phone_invalid"); got != "Numéro de téléphone invalide" {
		t.Fatalf("unknown locale must fall back to fr, got %q", got)
	}
	if got := T("en", "error.unknown_key"); got != "error.unknown_key" {
		t.Fatalf("missing key must return key, got %q", got)
	}
	if got := Sprintf("en", "error.otp_cooldown", 42); got != "Please wait 42 seconds before resending the code" {
		t.Fatalf("unexpected formatted message %q", got)
	}
}

func TestMessageTablesInSync(t *testing.T) {
	for key := range messages[LocaleFR] {
		if _, ok := messages[LocaleEN][key]; !ok {
			t.Fatalf("key %s missing in en", key)
		}
	}
	for key := range messages[LocaleEN] {
		if _, ok := messages[LocaleFR][key]; !ok {
			t.Fatalf("key %s missing in fr", key)
		}
	}
}
