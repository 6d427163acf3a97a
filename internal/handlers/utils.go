package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	platformerrors "github.com/jmgilman/go/errors"

	"movieview/internal/logging"
	"movieview/internal/thumbnail"
	"movieview/internal/thumbnails"
)

// statusClientClosedRequest is the nginx convention for a request the
// client abandoned.
const statusClientClosedRequest = 499

var errPathOutsideMedia = errors.New("path is outside the media directory")

// ErrorBody is the JSON error response.
type ErrorBody struct {
	*platformerrors.ErrorResponse
	Suggestion string `json:"suggestion"`
}

// writeJSON encodes v as JSON and writes it to the response writer.
// Any encoding or write errors are logged since we typically cannot
// recover from them in an HTTP handler context.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONStatus writes a JSON body with the given status code.
func writeJSONStatus(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, v)
}

// writeError renders err with the status code matching its error code.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.Error("request failed: %v", err)
	} else {
		logging.Debug("request rejected (%d): %v", status, err)
	}
	writeJSONStatus(w, status, ErrorBody{
		ErrorResponse: platformerrors.ToJSON(err),
		Suggestion:    thumbnails.RecoverySuggestion(err),
	})
}

// badRequest wraps a parameter problem as INVALID_INPUT.
func badRequest(w http.ResponseWriter, err error, message string) {
	writeError(w, platformerrors.Wrap(err, platformerrors.CodeInvalidInput, message))
}

func statusFor(err error) int {
	switch platformerrors.GetCode(err) {
	case thumbnail.CodeNotFound:
		return http.StatusNotFound
	case thumbnail.CodeNotAccessible:
		return http.StatusForbidden
	case thumbnail.CodeInvalidSource:
		return http.StatusUnprocessableEntity
	case platformerrors.CodeInvalidInput:
		return http.StatusBadRequest
	case thumbnail.CodeOperationInProgress:
		return http.StatusConflict
	case thumbnail.CodeCancelled:
		return statusClientClosedRequest
	default:
		if thumbnail.IsCancellation(err) {
			return statusClientClosedRequest
		}
		return http.StatusInternalServerError
	}
}

// resolvePath turns a media-relative path into an absolute path inside the
// media directory.
func (h *Handlers) resolvePath(relative string) (string, error) {
	if relative == "" {
		return "", platformerrors.New(platformerrors.CodeInvalidInput, "path is required")
	}

	root, err := filepath.Abs(h.mediaDir)
	if err != nil {
		return "", platformerrors.Wrap(err, thumbnail.CodeIO, "resolve media directory")
	}
	full := filepath.Join(root, filepath.Clean("/"+relative))
	if !isSubPath(root, full) {
		return "", platformerrors.Wrap(errPathOutsideMedia, platformerrors.CodeInvalidInput, "invalid path")
	}
	return full, nil
}

func isSubPath(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
