package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"

	"github.com/G1D0/routekit/internal/observe"
)

// Respond writes a handler's return value. nil writes nothing: the handler
// is assumed to have answered on w itself. Maps, slices, arrays, structs
// and pointers are sent as JSON; strings as HTML text; []byte as an octet
// stream; any other scalar as its fmt text.
func Respond(w http.ResponseWriter, v any) error {
	switch body := v.(type) {
	case nil:
		return nil
	case string:
		return write(w, "text/html; charset=utf-8", []byte(body))
	case []byte:
		return write(w, "application/octet-stream", body)
	case json.RawMessage:
		return write(w, "application/json", body)
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Pointer, reflect.Interface:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode response: %w", err)
		}
		return write(w, "application/json", data)
	default:
		return write(w, "text/plain; charset=utf-8", []byte(fmt.Sprint(v)))
	}
}

func write(w http.ResponseWriter, contentType string, body []byte) error {
	h := w.Header()
	if h.Get("Content-Type") == "" {
		h.Set("Content-Type", contentType)
	}
	h.Set("Content-Length", strconv.Itoa(len(body)))
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

// ErrorHandler answers a request whose handler, controller resolution or
// response encoding failed.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// HTTPError carries the status a handler wants for its error.
type HTTPError struct {
	Status int
	Err    error
}

// Error wraps err with an HTTP status.
func Error(status int, err error) error {
	return &HTTPError{Status: status, Err: err}
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d %s: %v", e.Status, http.StatusText(e.Status), e.Err)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// StatusOf returns the status carried by err, or 500.
func StatusOf(err error) int {
	var he *HTTPError
	if errors.As(err, &he) && he.Status >= 400 {
		return he.Status
	}
	return http.StatusInternalServerError
}

// DefaultErrorHandler logs err and replies with a JSON {"error": ...} body.
// Server errors hide the message from the client.
func DefaultErrorHandler(logger *slog.Logger) ErrorHandler {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		status := StatusOf(err)

		observe.LoggerFromOr(r.Context(), logger).Error("handler error", "error", err, "status", status, "path", r.URL.Path)

		msg := http.StatusText(status)
		var he *HTTPError
		if status < 500 && errors.As(err, &he) && he.Err != nil {
			msg = he.Err.Error()
		}

		data, _ := json.Marshal(map[string]string{"error": msg})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write(data)
	}
}
