package web

// errors.go turns service errors into JSON responses.
//
// The technical error is logged with the request id; the client only sees the
// core.MapError message, its suggested action and its support code. The HTTP
// status is derived from the code family.

import (
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/royalties/internal/core"
	"github.com/JonMunkholm/royalties/internal/logging"
)

var (
	errRateLimited = errors.New("rate limit exceeded")
	errNoFile      = errors.New("invalid request: multipart field \"file\" is required")
	errTooLarge    = errors.New("upload exceeds the maximum file size")
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Action string            `json:"action,omitempty"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := core.MapError(err)
	if errors.Is(err, errTooLarge) {
		msg = core.UserMessage{Message: err.Error(), Action: "Split the file and upload the parts", Code: "VAL004"}
	}

	log := logging.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request error", "path", r.URL.Path, "method", r.Method, "status", status, "code", msg.Code, "error", err)
	} else {
		log.Info("request refused", "path", r.URL.Path, "method", r.Method, "status", status, "code", msg.Code, "error", err)
	}

	resp := ErrorResponse{Error: msg.Message, Action: msg.Action, Code: msg.Code}
	var re *core.RequestError
	if errors.As(err, &re) {
		resp.Fields = re.Fields
	}
	writeJSON(w, status, resp)
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	if errors.Is(err, errTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	code := core.MapError(err).Code
	switch {
	case strings.HasPrefix(code, "VAL"):
		return http.StatusBadRequest
	case code == "NF001":
		return http.StatusNotFound
	case strings.HasPrefix(code, "STM"), strings.HasPrefix(code, "IMP"), code == "DB001":
		return http.StatusConflict
	case code == "RATE001":
		return http.StatusTooManyRequests
	case code == "DB003", code == "DB004", code == "DB005":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
