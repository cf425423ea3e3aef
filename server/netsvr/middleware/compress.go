package middleware

import (
	"bufio"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// CompressConfig 控制回應壓縮。
//
// MinSize 以下的回應（單次 walk 結果、設定列表）直接原樣送出；
// 帶 trace 的 walk、模擬報表與 alias table 通常遠大於此值。
type CompressConfig struct {
	GzipLevel int
	ZstdLevel zstd.EncoderLevel
	MinSize   int
}

var DefaultCompressConfig = CompressConfig{
	GzipLevel: gzip.DefaultCompression,
	ZstdLevel: zstd.SpeedFastest,
	MinSize:   1024,
}

const (
	encZstd = "zstd"
	encGzip = "gzip"
)

// encoder 是 gzip.Writer 與 zstd.Encoder 的共同行為。
type encoder interface {
	io.Writer
	Flush() error
	Close() error
}

var (
	gzipPool sync.Pool
	zstdPool sync.Pool
)

func acquireEncoder(enc string, w io.Writer) encoder {
	switch enc {
	case encZstd:
		if v := zstdPool.Get(); v != nil {
			zw := v.(*zstd.Encoder)
			zw.Reset(w)
			return zw
		}
		zw, err := zstd.NewWriter(w,
			zstd.WithEncoderLevel(DefaultCompressConfig.ZstdLevel),
			zstd.WithEncoderConcurrency(1),
		)
		if err != nil {
			panic(err)
		}
		return zw
	default:
		if v := gzipPool.Get(); v != nil {
			gw := v.(*gzip.Writer)
			gw.Reset(w)
			return gw
		}
		gw, _ := gzip.NewWriterLevel(w, DefaultCompressConfig.GzipLevel)
		return gw
	}
}

func releaseEncoder(e encoder) {
	_ = e.Close()
	switch v := e.(type) {
	case *zstd.Encoder:
		zstdPool.Put(v)
	case *gzip.Writer:
		gzipPool.Put(v)
	}
}

// negotiate 依 Accept-Encoding 選出編碼（zstd 優先），q=0 視為拒絕。
func negotiate(accept string) string {
	var zstdOK, gzipOK bool
	for _, part := range strings.Split(accept, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if !acceptable(params) {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(name)) {
		case encZstd:
			zstdOK = true
		case encGzip:
			gzipOK = true
		}
	}
	switch {
	case zstdOK:
		return encZstd
	case gzipOK:
		return encGzip
	}
	return ""
}

func acceptable(params string) bool {
	for _, p := range strings.Split(params, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(p), "=")
		if ok && strings.EqualFold(k, "q") {
			q, err := strconv.ParseFloat(v, 64)
			return err == nil && q > 0
		}
	}
	return true
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade") ||
		r.Header.Get("Upgrade") != ""
}

func isNoBodyStatus(code int) bool {
	return (code >= 100 && code < 200) || code == http.StatusNoContent || code == http.StatusNotModified
}

// compressWriter 先緩衝 MinSize bytes 再決定是否壓縮。
//
// 狀態只會往前走：緩衝中 → 壓縮中（enc != nil）或 原樣輸出（plain）。
type compressWriter struct {
	http.ResponseWriter
	name   string
	min    int
	status int
	buf    []byte
	enc    encoder
	plain  bool
}

func (cw *compressWriter) WriteHeader(code int) {
	if cw.status != 0 {
		return
	}
	cw.status = code
	if isNoBodyStatus(code) {
		_ = cw.writePlain()
	}
}

func (cw *compressWriter) Write(b []byte) (int, error) {
	if cw.status == 0 {
		cw.status = http.StatusOK
	}
	switch {
	case cw.plain:
		return cw.ResponseWriter.Write(b)
	case cw.enc != nil:
		return cw.enc.Write(b)
	}
	cw.buf = append(cw.buf, b...)
	if len(cw.buf) >= cw.min {
		if err := cw.startEncoding(); err != nil {
			return 0, err
		}
	}
	return len(b), nil
}

func (cw *compressWriter) startEncoding() error {
	h := cw.Header()
	if h.Get("Content-Type") == "" && len(cw.buf) > 0 {
		h.Set("Content-Type", http.DetectContentType(cw.buf))
	}
	h.Del("Content-Length")
	h.Set("Content-Encoding", cw.name)
	cw.ResponseWriter.WriteHeader(cw.status)

	cw.enc = acquireEncoder(cw.name, cw.ResponseWriter)
	_, err := cw.enc.Write(cw.buf)
	cw.buf = nil
	return err
}

func (cw *compressWriter) writePlain() error {
	cw.plain = true
	if cw.status != 0 {
		cw.ResponseWriter.WriteHeader(cw.status)
	}
	if len(cw.buf) == 0 {
		return nil
	}
	_, err := cw.ResponseWriter.Write(cw.buf)
	cw.buf = nil
	return err
}

// finish 在 handler 結束後送出緩衝或關閉壓縮器。
func (cw *compressWriter) finish() {
	switch {
	case cw.enc != nil:
		releaseEncoder(cw.enc)
		cw.enc = nil
	case !cw.plain:
		_ = cw.writePlain()
	}
}

// Flush 代表呼叫端要串流輸出，緩衝中的資料會直接進入壓縮。
func (cw *compressWriter) Flush() {
	if !cw.plain && cw.enc == nil {
		if cw.status == 0 {
			cw.status = http.StatusOK
		}
		_ = cw.startEncoding()
	}
	if cw.enc != nil {
		_ = cw.enc.Flush()
	}
	if f, ok := cw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (cw *compressWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := cw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("underlying response writer does not support Hijacker")
	}
	return hj.Hijack()
}

// Compression 依 Accept-Encoding 以 zstd 或 gzip 壓縮回應。
func Compression(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead || isWebSocketUpgrade(r) || w.Header().Get("Content-Encoding") != "" {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Add("Vary", "Accept-Encoding")
		name := negotiate(r.Header.Get("Accept-Encoding"))
		if name == "" {
			next.ServeHTTP(w, r)
			return
		}
		cw := &compressWriter{ResponseWriter: w, name: name, min: DefaultCompressConfig.MinSize}
		defer cw.finish()
		next.ServeHTTP(cw, r)
	})
}
