package server

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"slices"
	"time"
)

// withMiddleware はルーターにミドルウェアを適用します（最後に適用したものが最初に実行される）
func (s *Server) withMiddleware(handler http.Handler) http.Handler {
	handler = s.authMiddleware(handler)
	handler = s.recoveryMiddleware(handler)
	handler = s.loggingMiddleware(handler)
	return handler
}

// loggingMiddleware はリクエストとレスポンスを記録します
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		s.log.Debug("HTTP response",
			"method", r.Method,
			"path", r.URL.Path,
			"query", r.URL.RawQuery,
			"status", rw.statusCode,
			"duration", time.Since(start),
		)
	})
}

// recoveryMiddleware はパニックを回復し500を返します
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("Panic recovered", "error", fmt.Sprintf("%v", rec), "path", r.URL.Path)
				WriteError(w, http.StatusInternalServerError, "internal server error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// authMiddleware はAPIキーを検証します
// 公開パスは検証を行わず、キーが1つも設定されていない場合は503を返します
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if slices.Contains(s.cfg.PublicPaths, r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		if len(s.cfg.APIKeys) == 0 {
			s.log.Error("API auth is enabled but no API key is configured")
			WriteError(w, http.StatusServiceUnavailable, "API auth misconfigured: no API key configured on server.")
			return
		}

		provided := r.Header.Get(s.cfg.AuthHeader)
		if provided == "" {
			WriteError(w, http.StatusUnauthorized, "Missing API key.")
			return
		}
		if !validKey(provided, s.cfg.APIKeys) {
			WriteError(w, http.StatusUnauthorized, "Invalid API key.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// validKey は全てのキーと定数時間で比較します
func validKey(provided string, keys []string) bool {
	matched := 0
	for _, key := range keys {
		matched |= subtle.ConstantTimeCompare([]byte(provided), []byte(key))
	}
	return matched == 1
}

// responseWriter はステータスコードを記録するhttp.ResponseWriter
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
