package log

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		var entry map[string]any
		if err := dec.Decode(&entry); err != nil {
			t.Fatalf("decode log line: %v", err)
		}
		out = append(out, entry)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug") != zerolog.DebugLevel {
		t.Error("debug not parsed")
	}
	if ParseLevel("nonsense") != zerolog.InfoLevel || ParseLevel("") != zerolog.InfoLevel {
		t.Error("unknown levels must fall back to info")
	}
}

func TestWithConnection(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "info", ServiceName: "chat", Output: &buf})

	ctx := WithConnection(WithLogger(context.Background(), logger), 3, 9, "conn-1")
	l := Ctx(ctx)
	l.Info().Msg("hello")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("lines = %v", lines)
	}
	entry := lines[0]
	if entry[FieldLinkID] != float64(3) || entry[FieldUserID] != float64(9) || entry[FieldConnID] != "conn-1" || entry[FieldService] != "chat" {
		t.Fatalf("entry = %v", entry)
	}
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	logger := New(Config{Level: "debug", Output: &buf})

	r := gin.New()
	r.Use(GinMiddleware(logger))
	r.GET("/items/:id", func(c *gin.Context) {
		c.Set(FieldUserID, uint(42))
		c.Status(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/items/7", nil)
	req.Header.Set(headerRequestID, "req-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Header().Get(headerRequestID) != "req-1" {
		t.Fatalf("request id not echoed: %v", rec.Header())
	}

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("lines = %v", lines)
	}
	entry := lines[0]
	if entry["level"] != "warn" || entry[FieldPath] != "/items/:id" || entry[FieldRequestID] != "req-1" || entry[FieldUserID] != float64(42) {
		t.Fatalf("entry = %v", entry)
	}
}
