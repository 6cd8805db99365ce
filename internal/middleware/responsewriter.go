package middleware

import "net/http"

// ResponseCapture wraps http.ResponseWriter to capture the status code
// and bytes written. Needed by logging and metrics middleware since
// http.ResponseWriter doesn't expose the status after WriteHeader().
type ResponseCapture struct {
	http.ResponseWriter
	StatusCode  int
	Written     int64
	wroteHeader bool
}

// NewResponseCapture wraps a ResponseWriter.
func NewResponseCapture(w http.ResponseWriter) *ResponseCapture {
	return &ResponseCapture{
		ResponseWriter: w,
		StatusCode:     http.StatusOK, // default if WriteHeader is never called
	}
}

// WriteHeader captures the first status code then delegates.
func (rc *ResponseCapture) WriteHeader(code int) {
	if !rc.wroteHeader {
		rc.StatusCode = code
		rc.wroteHeader = true
	}
	rc.ResponseWriter.WriteHeader(code)
}

// Write captures bytes written then delegates.
func (rc *ResponseCapture) Write(b []byte) (int, error) {
	rc.wroteHeader = true
	n, err := rc.ResponseWriter.Write(b)
	rc.Written += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rc *ResponseCapture) Unwrap() http.ResponseWriter {
	return rc.ResponseWriter
}
