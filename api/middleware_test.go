package api

import (
	"bytes"
	"compress/gzip"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func gzipped(t *testing.T, s string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(s)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return &buf
}

func TestGzipEncodedBodyIsInflated(t *testing.T) {
	s := newTestServer(t, nil)
	body := `{"category":"load-capacity","manufacturer":"Scania","model":"R500","year":2017,"startingPrice":"30000","loadCapacity":24}`
	req := httptest.NewRequest(http.MethodPost, "/api/items", gzipped(t, body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderContentEncoding, "identity, GZIP")
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	expectStatus(t, rec, http.StatusCreated)
	if got := decode[itemResponse](t, rec); got.LoadCapacity != 24 {
		t.Fatalf("unexpected item %+v", got)
	}
}

func TestInvalidGzipBodyRejected(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/items", strings.NewReader("not gzip"))
	req.Header.Set(echo.HeaderContentEncoding, "gzip")
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	expectStatus(t, rec, http.StatusBadRequest)
}

func TestAcceptsGzip(t *testing.T) {
	tests := map[string]bool{
		"":           false,
		"gzip":       true,
		"br, gzip":   true,
		"deflate":    false,
		"x-gzip-ish": false,
		" Gzip ":     true,
	}
	for header, want := range tests {
		if got := acceptsGzip(header); got != want {
			t.Fatalf("acceptsGzip(%q) = %v, want %v", header, got, want)
		}
	}
}
