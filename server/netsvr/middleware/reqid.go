package middleware

import (
	"net/http"
	"strings"

	chimid "github.com/go-chi/chi/v5/middleware"
)

// HeaderRequestID 是回應中回傳 request id 的標頭，方便對照 access log 與 walk uid。
const HeaderRequestID = "X-Request-Id"

// RequestID 產生（或沿用上游的 X-Request-Id）request id，並寫回回應標頭。
func RequestID(next http.Handler) http.Handler {
	return chimid.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := GetReqId(r); id != "" {
			w.Header().Set(HeaderRequestID, id)
		}
		next.ServeHTTP(w, r)
	}))
}

func GetReqId(r *http.Request) string {
	return chimid.GetReqID(r.Context())
}

// GetReqIdNumPart 回傳 chi 產生的 id 的流水號部分（host/prefix-000123 → 000123）。
func GetReqIdNumPart(r *http.Request) string {
	str := GetReqId(r)
	if str == "" {
		return ""
	}
	i := strings.LastIndex(str, "-")
	if i < 0 || i+1 >= len(str) {
		return str
	}
	return str[i+1:]
}
