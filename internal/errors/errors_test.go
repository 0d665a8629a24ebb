package errors

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/anneal/internal/logging"
)

var errSentinel = stderrors.New("sentinel")

func TestErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"message", New("bad input"), "bad input"},
		{"operation", New("bad input").WithOperation("start"), "bad input: operation=start"},
		{"component", New("bad input").WithOperation("start").WithComponent("server"), "bad input: operation=start, component=server"},
		{"wrapped", Wrap(errSentinel, "job failed"), "job failed: sentinel"},
		{"only cause", &Error{Err: errSentinel}, "sentinel"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, "x"))
	assert.Nil(t, Wrapf(nil, "x %d", 1))
}

func TestWrapDoesNotMutate(t *testing.T) {
	inner := New("inner").WithCode(http.StatusNotFound)
	outer := Wrapf(inner, "job %s", "abc")

	assert.Equal(t, "inner", inner.Message)
	assert.Equal(t, "job abc: inner", outer.Error())
	assert.Equal(t, http.StatusNotFound, outer.Code)
	assert.NotEmpty(t, outer.StackTrace())
}

func TestIsAsUnwrap(t *testing.T) {
	err := fmt.Errorf("outer: %w", BadRequest(errSentinel, "invalid"))

	assert.True(t, Is(err, errSentinel))
	assert.False(t, Is(err, stderrors.New("sentinel")), "matching text is not identity")

	var e *Error
	require.True(t, As(err, &e))
	assert.Equal(t, http.StatusBadRequest, e.Code)
	assert.Equal(t, e, Unwrap(err))
}

func TestCode(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, Code(errSentinel))
	assert.Equal(t, http.StatusBadRequest, Code(BadRequest(errSentinel, "x")))
	assert.Equal(t, http.StatusNotFound, Code(fmt.Errorf("ctx: %w", NotFound(nil, "missing"))))
	assert.Equal(t, http.StatusConflict, Code(Conflict(errSentinel, "done")))
	assert.Equal(t, http.StatusInternalServerError, Code(New("plain")))
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.DebugLevel, &buf)

	rr := httptest.NewRecorder()
	WriteJSON(rr, logger, NotFound(nil, "run not found"))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "run not found", body["error"])
	assert.Zero(t, buf.Len(), "client errors are not logged")

	rr = httptest.NewRecorder()
	WriteJSON(rr, logger, Wrap(errSentinel, "store failed"))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, buf.String(), "store failed")
}

func TestRecoveryMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.InfoLevel, &buf)

	h := RecoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("objective exploded")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/anneal", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, buf.String(), "Recovered from panic")
	assert.Contains(t, buf.String(), "objective exploded")
}
