package middleware

import (
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

// CompressConfig tunes the Brotli middleware.
type CompressConfig struct {
	Quality int
	// MinLength is the body size below which responses are sent as-is.
	// Session commands return a few hundred bytes; the review payload and
	// the catalog are the ones worth compressing.
	MinLength int
	// SkipPrefixes lists path prefixes that are never compressed.
	SkipPrefixes []string
}

// DefaultCompressConfig skips the WebSocket routes.
var DefaultCompressConfig = CompressConfig{
	Quality:      brotli.DefaultCompression,
	MinLength:    1024,
	SkipPrefixes: []string{"/ws/"},
}

// compressWriter buffers the body until it knows whether compression pays
// off. After the decision every write goes straight to its destination.
type compressWriter struct {
	gin.ResponseWriter
	quality   int
	minLength int

	buf     []byte
	decided bool
	br      *brotli.Writer
}

func (w *compressWriter) Write(data []byte) (int, error) {
	if w.decided {
		if w.br != nil {
			return w.br.Write(data)
		}
		return w.ResponseWriter.Write(data)
	}

	w.buf = append(w.buf, data...)
	if len(w.buf) < w.minLength {
		return len(data), nil
	}

	w.startBrotli()
	if err := w.drain(); err != nil {
		return 0, err
	}
	return len(data), nil
}

func (w *compressWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// Flush commits to plain output if no decision was made yet.
func (w *compressWriter) Flush() {
	if !w.decided {
		w.decided = true
	}
	_ = w.drain()
	if w.br != nil {
		_ = w.br.Flush()
	}
	w.ResponseWriter.Flush()
}

func (w *compressWriter) startBrotli() {
	w.decided = true
	w.ResponseWriter.Header().Set("Content-Encoding", "br")
	w.ResponseWriter.Header().Del("Content-Length")
	w.br = brotli.NewWriterLevel(w.ResponseWriter, w.quality)
}

func (w *compressWriter) drain() error {
	if len(w.buf) == 0 {
		return nil
	}
	var err error
	if w.br != nil {
		_, err = w.br.Write(w.buf)
	} else {
		_, err = w.ResponseWriter.Write(w.buf)
	}
	w.buf = w.buf[:0]
	return err
}

// finish writes out whatever is still buffered and closes the encoder.
func (w *compressWriter) finish() error {
	w.decided = true
	if err := w.drain(); err != nil {
		return err
	}
	if w.br != nil {
		return w.br.Close()
	}
	return nil
}

// Brotli compresses responses with the default configuration.
func Brotli() gin.HandlerFunc {
	return Compress(DefaultCompressConfig)
}

// Compress brotli-encodes response bodies of at least cfg.MinLength bytes for
// clients that send "Accept-Encoding: br".
func Compress(cfg CompressConfig) gin.HandlerFunc {
	if cfg.Quality < brotli.BestSpeed || cfg.Quality > brotli.BestCompression {
		cfg.Quality = brotli.DefaultCompression
	}
	if cfg.MinLength <= 0 {
		cfg.MinLength = DefaultCompressConfig.MinLength
	}

	return func(c *gin.Context) {
		if skipCompression(c, cfg.SkipPrefixes) || !acceptsBrotli(c.Request) {
			c.Next()
			return
		}

		c.Header("Vary", "Accept-Encoding")

		cw := &compressWriter{
			ResponseWriter: c.Writer,
			quality:        cfg.Quality,
			minLength:      cfg.MinLength,
		}
		c.Writer = cw

		defer func() {
			if err := cw.finish(); err != nil {
				_ = c.Error(err)
			}
		}()

		c.Next()
	}
}

// skipCompression is true for upgrades, event streams and skipped paths.
func skipCompression(c *gin.Context, prefixes []string) bool {
	if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		return true
	}
	if strings.Contains(c.GetHeader("Accept"), "text/event-stream") {
		return true
	}
	path := c.Request.URL.Path
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func acceptsBrotli(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		// Drop any quality suffix such as "br;q=0.8".
		name, _, _ := strings.Cut(strings.TrimSpace(enc), ";")
		if strings.EqualFold(name, "br") {
			return true
		}
	}
	return false
}
