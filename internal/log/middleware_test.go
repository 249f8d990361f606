package log

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddlewareAttachesLogger(t *testing.T) {
	logger := NewComponent(ComponentHTTP)

	var got *Logger
	handler := Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got != logger {
		t.Error("FromContext did not return the attached logger")
	}
}

func TestFromContextWithoutLogger(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if FromContext(req.Context()) == nil {
		t.Error("FromContext returned nil without an attached logger")
	}
}
