package middleware

import (
	"mime"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

// BrotliConfig tunes response compression.
type BrotliConfig struct {
	Quality int
	// MinLength is the smallest body worth compressing.
	MinLength int
}

// DefaultBrotliConfig compresses bodies of 1 KiB and up at the default quality.
var DefaultBrotliConfig = BrotliConfig{
	Quality:   brotli.DefaultCompression,
	MinLength: 1024,
}

// brotliWriter buffers the start of the body until it knows whether the
// response is large and compressible enough, then commits either way.
type brotliWriter struct {
	gin.ResponseWriter
	enc       *brotli.Writer
	quality   int
	minLength int
	buf       []byte
	decided   bool
	compress  bool
}

func (w *brotliWriter) Write(p []byte) (int, error) {
	if w.decided {
		if w.compress {
			return w.enc.Write(p)
		}
		return w.ResponseWriter.Write(p)
	}

	w.buf = append(w.buf, p...)
	if len(w.buf) < w.minLength {
		return len(p), nil
	}
	if err := w.decide(true); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *brotliWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// Flush commits to the current decision and pushes buffered bytes out.
func (w *brotliWriter) Flush() {
	if !w.decided {
		_ = w.decide(false)
	}
	if w.compress {
		_ = w.enc.Flush()
	}
	w.ResponseWriter.Flush()
}

func (w *brotliWriter) decide(large bool) error {
	w.decided = true
	h := w.Header()
	w.compress = large && h.Get("Content-Encoding") == "" && compressible(h.Get("Content-Type"))

	buf := w.buf
	w.buf = nil

	if w.compress {
		h.Set("Content-Encoding", "br")
		h.Del("Content-Length")
		w.enc = brotli.NewWriterLevel(w.ResponseWriter, w.quality)
		_, err := w.enc.Write(buf)
		return err
	}
	if len(buf) == 0 {
		return nil
	}
	_, err := w.ResponseWriter.Write(buf)
	return err
}

func (w *brotliWriter) close() error {
	if !w.decided {
		if err := w.decide(false); err != nil {
			return err
		}
	}
	if w.compress {
		return w.enc.Close()
	}
	return nil
}

// Brotli compresses responses for clients that accept "br".
func Brotli() gin.HandlerFunc {
	return BrotliWithConfig(DefaultBrotliConfig)
}

func BrotliWithConfig(cfg BrotliConfig) gin.HandlerFunc {
	if cfg.Quality < brotli.BestSpeed || cfg.Quality > brotli.BestCompression {
		cfg.Quality = brotli.DefaultCompression
	}
	if cfg.MinLength <= 0 {
		cfg.MinLength = DefaultBrotliConfig.MinLength
	}

	return func(c *gin.Context) {
		// WebSocket upgrades hijack the connection and must not be wrapped.
		if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") || !acceptsBrotli(c.Request) {
			c.Next()
			return
		}

		c.Header("Vary", "Accept-Encoding")

		bw := &brotliWriter{
			ResponseWriter: c.Writer,
			quality:        cfg.Quality,
			minLength:      cfg.MinLength,
		}
		c.Writer = bw
		defer func() {
			if err := bw.close(); err != nil {
				_ = c.Error(err)
			}
		}()

		c.Next()
	}
}

// compressible reports whether a content type benefits from compression.
// Workbooks and images are already compressed.
func compressible(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch {
	case strings.HasPrefix(mediaType, "text/"):
		return true
	case mediaType == "application/json", mediaType == "application/javascript", mediaType == "application/xml":
		return true
	}
	return false
}

func acceptsBrotli(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		name, _, _ := strings.Cut(strings.TrimSpace(enc), ";")
		if strings.EqualFold(name, "br") {
			return true
		}
	}
	return false
}
