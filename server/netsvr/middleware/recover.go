package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/zintix-labs/lerwlab/errs"
	"github.com/zintix-labs/lerwlab/server/httperr"
)

// Recover 攔截 handler panic，記錄 stack 並回 500。
//
// walker 的 panic 已由 WalkerPool 收斂成 Fatal 錯誤，這裡只會接到 handler 本身的錯誤。
// http.ErrAbortHandler 照原樣往上拋，交給 net/http 中斷連線。
func Recover(log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.LogAttrs(r.Context(), slog.LevelError, "http.panic",
					slog.String("path", r.URL.Path),
					slog.String("req_id", GetReqIdNumPart(r)),
					slog.Any("panic", rec),
					slog.String("stack", string(debug.Stack())))
				httperr.Errs(w, errs.NewFatal(fmt.Sprintf("internal error: %v", rec)))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
