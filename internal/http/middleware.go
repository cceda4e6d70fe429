package httpx

import (
	"bufio"
	"compress/gzip"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"github.com/target/mmk-rpc-api/internal/domain/rpc"
)

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &respWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Recover returns a middleware that recovers from panics outside the dispatcher,
// logs them and answers with a HANDLER_ERROR envelope.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					WriteJSON(w, http.StatusInternalServerError,
						rpc.FailKind(rpc.KindHandlerError, "The request could not be processed"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// CORS wraps h with a cross-origin policy for the given origins. The session token
// travels in headers, so credentials are not allowed.
func CORS(origins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", SessionTokenHeader},
		MaxAge:         600,
	})
	return c.Handler
}

// RateLimitConfig configures the per-client limiter.
type RateLimitConfig struct {
	RPS     float64
	Burst   int
	IdleTTL time.Duration
	// KeyFunc derives the limiter key. Defaults to the caller's address.
	KeyFunc func(*http.Request) string
	Now     func() time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter keeps one token bucket per client key and sweeps idle buckets
// every 512 admissions.
type rateLimiter struct {
	cfg   RateLimitConfig
	mu    sync.Mutex
	byKey map[string]*clientLimiter
	hits  uint64
}

func (l *rateLimiter) allow(key string) bool {
	now := l.cfg.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.byKey[key]
	if !ok {
		entry = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(l.cfg.RPS), l.cfg.Burst)}
		l.byKey[key] = entry
	}
	entry.lastSeen = now
	allowed := entry.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%512 == 0 {
		cutoff := now.Add(-l.cfg.IdleTTL)
		for k, v := range l.byKey {
			if v.lastSeen.Before(cutoff) {
				delete(l.byKey, k)
			}
		}
	}
	return allowed
}

// RateLimit rejects callers exceeding their budget with 429 and a failure envelope.
// A non-positive RPS disables limiting.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.RPS <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = func(r *http.Request) string { return remoteIP(r, false) }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	l := &rateLimiter{cfg: cfg, byKey: make(map[string]*clientLimiter)}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.allow(cfg.KeyFunc(r)) {
				w.Header().Set("Retry-After", "1")
				WriteJSON(w, http.StatusTooManyRequests, rpc.Fail("Too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CompressionConfig holds configuration for the compression middleware.
type CompressionConfig struct {
	Level  int // gzip level 1-9
	Logger *slog.Logger
}

func getDefaultCompressibleTypes() map[string]bool {
	return map[string]bool{
		"application/json":             true,
		"application/problem+json":     true,
		"application/openmetrics-text": true,
		"text/plain":                   true,
	}
}

// Compression gzips JSON and text responses for clients that accept it.
// 1xx, 204 and 304 responses, HEAD requests and already-encoded bodies pass through.
func Compression(cfg CompressionConfig) func(http.Handler) http.Handler {
	if cfg.Level < gzip.BestSpeed || cfg.Level > gzip.BestCompression {
		cfg.Level = gzip.DefaultCompression
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	compressTypes := getDefaultCompressibleTypes()
	pool := &sync.Pool{New: func() any { return newGzipWriter(cfg.Level) }}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodHead || !acceptsGzip(r.Header.Get("Accept-Encoding")) {
				next.ServeHTTP(w, r)
				return
			}

			gzw := &gzipResponseWriter{
				ResponseWriter: w,
				request:        r,
				pool:           pool,
				compressTypes:  compressTypes,
				logger:         cfg.Logger,
			}
			w.Header().Add("Vary", "Accept-Encoding")
			next.ServeHTTP(gzw, r)

			if gzw.gzipWriter != nil {
				if err := gzw.gzipWriter.Close(); err != nil {
					cfg.Logger.ErrorContext(r.Context(), "closing gzip writer failed", "error", err)
				}
				gzw.gzipWriter.Reset(io.Discard)
				pool.Put(gzw.gzipWriter)
			}
		})
	}
}

// acceptsGzip checks if the client accepts gzip encoding, respecting q-values.
func acceptsGzip(acceptEncoding string) bool {
	for _, part := range strings.Split(acceptEncoding, ",") {
		encoding, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if !strings.EqualFold(strings.TrimSpace(encoding), "gzip") {
			continue
		}
		// q=0 disables the encoding.
		q := strings.ReplaceAll(params, " ", "")
		return q != "q=0" && q != "q=0.0" && q != "q=0.00" && q != "q=0.000"
	}
	return false
}

func isCompressibleContentType(contentType string, compressTypes map[string]bool) bool {
	mediaType, _, _ := strings.Cut(contentType, ";")
	return compressTypes[strings.ToLower(strings.TrimSpace(mediaType))]
}

func newGzipWriter(level int) *gzip.Writer {
	w, err := gzip.NewWriterLevel(io.Discard, level)
	if err != nil {
		return gzip.NewWriter(io.Discard)
	}
	return w
}

// gzipResponseWriter decides at WriteHeader time whether the body is compressed.
type gzipResponseWriter struct {
	http.ResponseWriter
	request       *http.Request
	pool          *sync.Pool
	compressTypes map[string]bool
	logger        *slog.Logger
	gzipWriter    *gzip.Writer
	headerWritten bool
}

func (w *gzipResponseWriter) WriteHeader(statusCode int) {
	if w.headerWritten {
		return
	}
	w.headerWritten = true

	switch {
	case statusCode < 200, statusCode == http.StatusNoContent, statusCode == http.StatusNotModified:
	case w.Header().Get("Content-Encoding") != "":
	case !isCompressibleContentType(w.Header().Get("Content-Type"), w.compressTypes):
	default:
		gz, ok := w.pool.Get().(*gzip.Writer)
		if !ok {
			gz = newGzipWriter(gzip.DefaultCompression)
		}
		gz.Reset(w.ResponseWriter)
		w.gzipWriter = gz
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Del("Content-Length")
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	if !w.headerWritten {
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", http.DetectContentType(b))
		}
		w.WriteHeader(http.StatusOK)
	}
	if w.gzipWriter != nil {
		return w.gzipWriter.Write(b)
	}
	return w.ResponseWriter.Write(b)
}

// Flush implements http.Flusher.
func (w *gzipResponseWriter) Flush() {
	if w.gzipWriter != nil {
		if err := w.gzipWriter.Flush(); err != nil {
			w.logger.ErrorContext(w.request.Context(), "flushing gzip writer failed", "error", err)
		}
	}
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack implements http.Hijacker.
func (w *gzipResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := w.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, errors.New("http.Hijacker not supported")
}
