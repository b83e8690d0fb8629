package http

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/utafrali/tgshop/internal/bridge"
	"github.com/utafrali/tgshop/internal/domain"
	apperrors "github.com/utafrali/tgshop/pkg/errors"
	"github.com/utafrali/tgshop/pkg/httputil"
	"github.com/utafrali/tgshop/pkg/logger"
	"github.com/utafrali/tgshop/pkg/middleware"
)

// Identity headers set by the mini-app from the host's init data.
const (
	HeaderUserID     = "X-User-ID"
	HeaderUserName   = "X-User-Name"
	HeaderUserHandle = "X-User-Handle"
)

// Identity reads the chat user from the identity headers and stores it for
// bridge.UserFromContext and the request logger. Requests without a user id
// are rejected with 401.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if uid == "" {
			httputil.WriteError(w, r, apperrors.Unauthorized("X-User-ID header is required"), nil)
			return
		}

		ctx := bridge.WithUser(r.Context(), domain.Customer{
			ExternalID:  uid,
			DisplayName: headerText(r, HeaderUserName),
			Handle:      strings.TrimPrefix(headerText(r, HeaderUserHandle), "@"),
		})
		ctx = logger.WithUserID(ctx, uid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// headerText returns a header value, percent-decoding it when the client
// escaped non-ASCII names.
func headerText(r *http.Request, name string) string {
	v := strings.TrimSpace(r.Header.Get(name))
	if decoded, err := url.PathUnescape(v); err == nil {
		return decoded
	}
	return v
}

// userID returns the id stored by Identity.
func userID(r *http.Request) string {
	u, _ := bridge.UserFromContext(r.Context())
	return u.ExternalID
}

// UserKey buckets rate limits per chat user, falling back to the client IP.
func UserKey(r *http.Request) string {
	if uid := r.Header.Get(HeaderUserID); uid != "" {
		return "user:" + uid
	}
	return "ip:" + middleware.ClientIP(r)
}

// ContentTypeJSON rejects bodies that are not JSON with 415.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "UNSUPPORTED_MEDIA_TYPE", Message: "Content-Type must be application/json"},
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
