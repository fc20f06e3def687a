package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/utafrali/zaver-checkout/pkg/errors"
)

// errorBody accepts both the nested {"error":{"code","message"}} envelope and
// flat {"errorCode","message"} bodies returned by external APIs.
type errorBody struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

// ParseResponseError reads and closes the body of a non-2xx response and
// translates it into an AppError for the given upstream service.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", serviceName, resp.StatusCode, err)
	}

	code, message := "", strings.TrimSpace(string(raw))
	var body errorBody
	if json.Unmarshal(raw, &body) == nil {
		switch {
		case body.Error != nil:
			code, message = body.Error.Code, body.Error.Message
		case body.Message != "":
			code, message = body.ErrorCode, body.Message
		}
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	return mapStatus(resp.StatusCode, code, fmt.Sprintf("%s: %s", serviceName, message))
}

func mapStatus(status int, code, message string) error {
	switch {
	case status == http.StatusBadRequest:
		return apperrors.InvalidInput(message)
	case status == http.StatusUnauthorized:
		return apperrors.Unauthorized(message)
	case status == http.StatusForbidden:
		return apperrors.Forbidden(message)
	case status == http.StatusNotFound:
		return apperrors.New("NOT_FOUND", message, http.StatusNotFound, apperrors.ErrNotFound)
	case status == http.StatusConflict:
		return apperrors.Conflict(message)
	case status == http.StatusGone:
		return apperrors.Gone(message)
	case status == http.StatusUnprocessableEntity:
		return apperrors.Unprocessable(message)
	case status >= 500:
		return apperrors.ServiceUnavailable(message, nil)
	default:
		if code == "" {
			code = "UPSTREAM_ERROR"
		}
		return apperrors.New(code, message, status, nil)
	}
}

// IsClientError reports whether status is a 4xx code.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
