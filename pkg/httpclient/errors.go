package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/utafrali/tgshop/pkg/errors"
)

// errorBody covers the two error shapes we talk to: our own
// {"error":{"code","message"}} envelope and the chat Bot API's
// {"ok":false,"error_code","description"} reply.
type errorBody struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Description string `json:"description"`
}

func (b errorBody) message() string {
	if b.Error != nil && b.Error.Message != "" {
		return b.Error.Message
	}
	return b.Description
}

// ParseResponseError reads a non-2xx response and translates it into an
// AppError. The body is consumed and closed.
func ParseResponseError(resp *http.Response, upstream string) error {
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", upstream, resp.StatusCode, err)
	}

	msg := string(raw)
	var body errorBody
	if json.Unmarshal(raw, &body) == nil && body.message() != "" {
		msg = body.message()
	}
	qualified := fmt.Sprintf("%s: %s", upstream, msg)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.NotFound(upstream, msg)
	case resp.StatusCode == http.StatusBadRequest:
		return apperrors.InvalidInput(qualified)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return apperrors.Unauthorized(qualified)
	case resp.StatusCode == http.StatusConflict:
		return apperrors.Conflict(qualified)
	case resp.StatusCode == http.StatusTooManyRequests:
		return apperrors.TooManyRequests(qualified)
	case resp.StatusCode == http.StatusServiceUnavailable:
		return apperrors.ServiceUnavailable(qualified)
	default:
		return fmt.Errorf("%s returned status %d: %s", upstream, resp.StatusCode, msg)
	}
}
