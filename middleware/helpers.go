package middleware

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey int

const requestIDKey ctxKey = iota

// UserHeader names the user who makes an edit. Requests without it are
// attributed to the system.
const UserHeader = "X-User"

const systemAuthor = "system"

// RequestID returns the id assigned by RequestLogger, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Author returns the author of a request for the workflow history.
func Author(r *http.Request) string {
	if u := strings.TrimSpace(r.Header.Get(UserHeader)); u != "" {
		return u
	}
	return systemAuthor
}
