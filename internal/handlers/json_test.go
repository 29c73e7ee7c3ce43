package handlers

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type brokenWriter struct {
	*httptest.ResponseRecorder
}

func (brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("connection reset by peer")
}

func TestWriteJSONLogsEncodeError(t *testing.T) {
	var buf bytes.Buffer
	m := Main{logger: slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))}

	w := brokenWriter{httptest.NewRecorder()}
	m.writeJSON(w, http.StatusOK, struct{}{})

	if w.Code != http.StatusOK {
		t.Errorf("status = %v, want %v", w.Code, http.StatusOK)
	}
	if got := w.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", got)
	}
	logged := buf.String()
	if !strings.Contains(logged, "Failed to write response") || !strings.Contains(logged, "connection reset by peer") {
		t.Errorf("log = %q, want the write failure", logged)
	}
}
