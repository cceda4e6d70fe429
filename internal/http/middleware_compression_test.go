package httpx

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/target/mmk-rpc-api/internal/domain/rpc"
)

const contentEncodingGzip = "gzip"

type compressionCase struct {
	name           string
	method         string
	acceptEncoding string
	contentType    string
	encoding       string
	status         int
	expectGzip     bool
}

func serveCompressed(t *testing.T, tc compressionCase, body string) *http.Response {
	t.Helper()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tc.contentType != "" {
			w.Header().Set("Content-Type", tc.contentType)
		}
		if tc.encoding != "" {
			w.Header().Set("Content-Encoding", tc.encoding)
		}
		w.WriteHeader(tc.status)
		if tc.status != http.StatusNoContent && tc.status != http.StatusNotModified && r.Method != http.MethodHead {
			_, _ = io.WriteString(w, body)
		}
	})

	method := tc.method
	if method == "" {
		method = http.MethodPost
	}
	req := httptest.NewRequest(method, "/session/info", nil)
	if tc.acceptEncoding != "" {
		req.Header.Set("Accept-Encoding", tc.acceptEncoding)
	}
	rec := httptest.NewRecorder()
	Compression(CompressionConfig{Level: 6})(handler).ServeHTTP(rec, req)
	return rec.Result()
}

func TestCompression(t *testing.T) {
	body := `{"success":true,"data":"` + strings.Repeat("pong ", 500) + `"}`

	tests := []compressionCase{
		{name: "json envelope", acceptEncoding: "gzip, deflate", contentType: "application/json", status: 200, expectGzip: true},
		{name: "json with charset", acceptEncoding: "gzip", contentType: "application/json; charset=utf-8", status: 200, expectGzip: true},
		{name: "error status still compressed", acceptEncoding: "gzip", contentType: "application/json", status: 429, expectGzip: true},
		{name: "prometheus text", acceptEncoding: "gzip", contentType: "text/plain; version=0.0.4", status: 200, expectGzip: true},
		{name: "client without gzip", acceptEncoding: "deflate", contentType: "application/json", status: 200},
		{name: "no accept-encoding", contentType: "application/json", status: 200},
		{name: "gzip disabled by q=0", acceptEncoding: "gzip;q=0", contentType: "application/json", status: 200},
		{name: "gzip q=0.5", acceptEncoding: "deflate, gzip;q=0.5", contentType: "application/json", status: 200, expectGzip: true},
		{name: "binary content", acceptEncoding: "gzip", contentType: "application/octet-stream", status: 200},
		{name: "already encoded", acceptEncoding: "gzip", contentType: "application/json", encoding: "br", status: 200},
		{name: "no content", acceptEncoding: "gzip", status: http.StatusNoContent},
		{name: "not modified", acceptEncoding: "gzip", status: http.StatusNotModified},
		{name: "HEAD request", method: http.MethodHead, acceptEncoding: "gzip", contentType: "application/json", status: 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := serveCompressed(t, tt, body)
			defer resp.Body.Close()

			if resp.StatusCode != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, resp.StatusCode)
			}
			got := resp.Header.Get("Content-Encoding")
			if !tt.expectGzip {
				if got == contentEncodingGzip {
					t.Fatalf("expected no gzip encoding")
				}
				return
			}

			if got != contentEncodingGzip {
				t.Fatalf("expected Content-Encoding gzip, got %q", got)
			}
			if resp.Header.Get("Content-Length") != "" {
				t.Errorf("expected no Content-Length header, got %s", resp.Header.Get("Content-Length"))
			}
			if resp.Header.Get("Vary") != "Accept-Encoding" {
				t.Errorf("expected Vary: Accept-Encoding, got %s", resp.Header.Get("Vary"))
			}
			if decoded := decompressGzipBody(t, resp.Body); string(decoded) != body {
				t.Errorf("decompressed content mismatch")
			}
		})
	}
}

func TestCompressionWriterReuse(t *testing.T) {
	h := Compression(CompressionConfig{Level: 1})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, rpc.OK("pong"))
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/system/ping", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if got := string(decompressGzipBody(t, rec.Body)); got != "{\"success\":true,\"data\":\"pong\"}\n" {
			t.Fatalf("request %d: unexpected body %q", i, got)
		}
	}
}

func decompressGzipBody(t *testing.T, r io.Reader) []byte {
	t.Helper()

	gr, err := gzip.NewReader(r)
	if err != nil {
		t.Fatalf("failed to create gzip reader: %v", err)
	}
	defer gr.Close()

	body, err := io.ReadAll(gr)
	if err != nil {
		t.Fatalf("failed to read decompressed body: %v", err)
	}
	return body
}
