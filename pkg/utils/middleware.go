package utils

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDHeader는 요청 ID를 주고받는 헤더 이름입니다.
const RequestIDHeader = "X-Request-ID"

// ErrorHandlerMiddleware는 패닉을 복구하고 요청에 에러 슬롯을 준비하는 미들웨어입니다.
func ErrorHandlerMiddleware(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = WithErrorSlot(r)

		// 패닉 복구
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("HTTP handler panic",
					zap.Any("error", rec),
					zap.String("stack", string(debug.Stack())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("ip", r.RemoteAddr),
					zap.String("request_id", GetRequestID(r.Context())),
				)

				errCtx := NewErrorContext(r, fmt.Errorf("panic: %v", rec), http.StatusInternalServerError, "Internal Server Error")
				RecordError(r, errCtx)
				WriteError(w, errCtx)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// RequestIDMiddleware는 요청 ID를 생성하는 미들웨어입니다.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = GenerateRequestID()
			r.Header.Set(RequestIDHeader, requestID)
		}

		w.Header().Set(RequestIDHeader, requestID)

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GenerateRequestID는 고유한 요청 ID를 생성합니다.
func GenerateRequestID() string {
	return uuid.NewString()[:12]
}

// GetRequestID는 컨텍스트에서 요청 ID를 가져옵니다.
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
