package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"disasterwatch/internal/bootstrap/logging"
	"disasterwatch/internal/errs"
)

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an error kind to its HTTP status. Unknown errors are 500.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	}

	switch errs.KindOf(err) {
	case errs.ErrValidation:
		return http.StatusBadRequest
	case errs.ErrNotFound:
		return http.StatusNotFound
	case errs.ErrUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers {error, request_id}. Client errors carry their message;
// server errors get a generic one and the full chain goes to the log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	ctx := r.Context()

	body := errorBody{RequestID: middleware.GetReqID(ctx)}
	switch {
	case code == http.StatusRequestEntityTooLarge:
		body.Error = "request body too large"
	case code < http.StatusInternalServerError:
		body.Error = errs.Message(err)
	case code == http.StatusBadGateway:
		body.Error = "upstream service unavailable"
	default:
		body.Error = "internal server error"
	}

	if code >= http.StatusInternalServerError {
		logging.Error(ctx, "request failed", slog.Int("status", code), slog.Any("err", errs.Loggable(err)))
	} else {
		logging.Debug(ctx, "request rejected", slog.Int("status", code), slog.String("reason", body.Error))
	}
	writeJSON(w, code, body)
}

// decodeJSON reads one JSON object from the request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errs.Mark(errs.ErrValidation, nil, "request body is required")
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	var tooLarge *http.MaxBytesError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &tooLarge):
		return err
	case errors.Is(err, io.EOF):
		return errs.Mark(errs.ErrValidation, nil, "request body is required")
	default:
		return errs.Mark(errs.ErrValidation, nil, "request body must be a JSON object")
	}
}

// tagList accepts either a comma separated string or an array of strings.
type tagList []string

func (t *tagList) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*t = nil
		return nil
	}
	if strings.HasPrefix(trimmed, "\"") {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		*t = strings.Split(raw, ",")
		return nil
	}
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*t = items
	return nil
}
