package security

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

// RequestIDHeader carries a request's correlation id
const RequestIDHeader = "X-Request-ID"

var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._\-]{1,64}$`)

// RequestID returns the caller-supplied correlation id when it is well formed,
// otherwise a fresh UUID
func RequestID(r *http.Request) string {
	if id := r.Header.Get(RequestIDHeader); requestIDPattern.MatchString(id) {
		return id
	}
	return uuid.NewString()
}
