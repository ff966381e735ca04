package testutil

import (
	"net/http"

	"bureau/internal/platform/middleware"
)

// WithUser attaches a caller identity to the request context, as the auth
// middleware does for a valid bearer token.
func WithUser(req *http.Request, userID, role string) *http.Request {
	return req.WithContext(middleware.WithUser(req.Context(), userID, role))
}
