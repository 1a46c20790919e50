package http_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	httpapi "github.com/jinford/srt-generator/internal/interface/http"
)

func TestCORS(t *testing.T) {
	tests := []struct {
		name            string
		origins         []string
		origin          string
		wantAllowOrigin string
		wantCredentials string
	}{
		{name: "未設定なら他オリジンを許可しない", origins: nil, origin: "http://evil.example", wantAllowOrigin: "", wantCredentials: ""},
		{name: "許可リストのオリジンはCookie付きで許可", origins: []string{"http://app.example"}, origin: "http://app.example", wantAllowOrigin: "http://app.example", wantCredentials: "true"},
		{name: "許可リスト外のオリジンは許可しない", origins: []string{"http://app.example"}, origin: "http://evil.example", wantAllowOrigin: "", wantCredentials: ""},
		{name: "ワイルドカードはCookieなしで許可", origins: []string{"*"}, origin: "http://any.example", wantAllowOrigin: "*", wantCredentials: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Setup
			gin.SetMode(gin.TestMode)
			engine := gin.New()
			engine.Use(httpapi.CORS(tt.origins))
			engine.GET("/api/jobs", func(c *gin.Context) { c.Status(http.StatusOK) })
			req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()

			// Execute
			engine.ServeHTTP(rec, req)

			// Assert
			assert.Equal(t, tt.wantAllowOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCredentials, rec.Header().Get("Access-Control-Allow-Credentials"))
		})
	}
}
