package utils

import (
	"context"
	"encoding/json"
	"net/http"
)

// 컨텍스트 키 타입 정의
type contextKey string

const (
	// ErrorContextKey는 요청 컨텍스트의 에러 슬롯 키입니다.
	ErrorContextKey contextKey = "error"
	// RequestIDKey는 요청 컨텍스트의 요청 ID 키입니다.
	RequestIDKey contextKey = "request_id"
)

// ErrorContext는 에러 응답과 로깅에 필요한 정보를 저장하는 구조체입니다.
type ErrorContext struct {
	Error     error
	Message   string
	Code      int
	RequestID string
	Path      string
	Method    string
}

// errorSlot은 미들웨어가 핸들러의 에러를 나중에 읽을 수 있게 해주는 저장소입니다.
type errorSlot struct {
	errCtx *ErrorContext
}

// WithErrorSlot은 요청 컨텍스트에 빈 에러 슬롯을 추가합니다.
func WithErrorSlot(r *http.Request) *http.Request {
	if r == nil {
		return nil
	}
	if _, ok := r.Context().Value(ErrorContextKey).(*errorSlot); ok {
		return r
	}
	ctx := context.WithValue(r.Context(), ErrorContextKey, &errorSlot{})
	return r.WithContext(ctx)
}

// NewErrorContext는 요청 정보로 에러 컨텍스트를 생성합니다.
func NewErrorContext(r *http.Request, err error, code int, message string) *ErrorContext {
	if message == "" && err != nil {
		message = err.Error()
	}
	errCtx := &ErrorContext{
		Error:   err,
		Message: message,
		Code:    code,
	}
	if r != nil {
		errCtx.Path = r.URL.Path
		errCtx.Method = r.Method
		errCtx.RequestID = GetRequestID(r.Context())
	}
	return errCtx
}

// RecordError는 에러 컨텍스트를 요청의 에러 슬롯에 기록합니다.
// 슬롯이 없으면 아무 작업도 하지 않습니다.
func RecordError(r *http.Request, errCtx *ErrorContext) {
	if r == nil || errCtx == nil {
		return
	}
	if slot, ok := r.Context().Value(ErrorContextKey).(*errorSlot); ok {
		slot.errCtx = errCtx
	}
}

// GetErrorContext는 컨텍스트에서 에러 정보를 가져옵니다.
func GetErrorContext(ctx context.Context) *ErrorContext {
	if ctx == nil {
		return nil
	}
	if slot, ok := ctx.Value(ErrorContextKey).(*errorSlot); ok {
		return slot.errCtx
	}
	return nil
}

type errorBody struct {
	Error     string `json:"error"`
	Code      int    `json:"code"`
	Path      string `json:"path,omitempty"`
	Method    string `json:"method,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteError는 에러 응답을 클라이언트에 전송합니다.
func WriteError(w http.ResponseWriter, errCtx *ErrorContext) {
	if errCtx == nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(errCtx.Code)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error:     errCtx.Message,
		Code:      errCtx.Code,
		Path:      errCtx.Path,
		Method:    errCtx.Method,
		RequestID: errCtx.RequestID,
	})
}
