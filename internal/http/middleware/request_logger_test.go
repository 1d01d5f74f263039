package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/intellagent/scheduling-service/pkg/logging"
)

func TestRequestLoggerLogsStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter("info", &buf)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/agents", nil)
	rec := httptest.NewRecorder()
	RequestLogger(logger)(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rec.Code)
	}
	out := buf.String()
	if !strings.Contains(out, `"status":418`) {
		t.Fatalf("expected status in log output, got %s", out)
	}
	if !strings.Contains(out, `"path":"/api/agents"`) {
		t.Fatalf("expected path in log output, got %s", out)
	}
}

func TestRequestLoggerSkipsWrappingOnUpgrade(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := w.(*statusRecorder); ok {
			t.Fatalf("upgrade request must see the raw ResponseWriter")
		}
	})

	req := httptest.NewRequest(http.MethodGet, "/api/chat/ws", nil)
	req.Header.Set("Upgrade", "websocket")
	rec := httptest.NewRecorder()
	RequestLogger(nil)(handler).ServeHTTP(rec, req)
}
