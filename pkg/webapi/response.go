package webapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Response is a decoded Web API reply.
type Response struct {
	Method     string
	StatusCode int
	Header     http.Header
	Data       map[string]any
}

func (r *Response) OK() bool {
	if r == nil {
		return false
	}
	ok, _ := r.Data["ok"].(bool)
	return ok
}

func (r *Response) Get(key string) any {
	if r == nil {
		return nil
	}
	return r.Data[key]
}

// String returns the value under key if it is a string, "" otherwise.
func (r *Response) String(key string) string {
	s, _ := r.Get(key).(string)
	return s
}

// RetryAfter reports the server-requested delay from the Retry-After header.
func (r *Response) RetryAfter() (time.Duration, bool) {
	if r == nil || r.Header == nil {
		return 0, false
	}
	v := strings.TrimSpace(r.Header.Get("Retry-After"))
	if v == "" {
		return 0, false
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}

// APIError is returned for well-formed but unsuccessful responses. The full
// response is kept so callers can look at error codes and headers.
type APIError struct {
	Message  string
	Response *Response
}

func (e *APIError) Error() string {
	if e.Response == nil {
		return e.Message
	}
	return fmt.Sprintf("%s\nThe server responded with: %v", e.Message, e.Response.Data)
}

// Code is the platform error code ("invalid_auth", "ratelimited", ...).
func (e *APIError) Code() string {
	return e.Response.String("error")
}

func (e *APIError) RetryAfter() (time.Duration, bool) {
	return e.Response.RetryAfter()
}
