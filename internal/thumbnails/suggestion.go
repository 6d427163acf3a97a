package thumbnails

import (
	platformerrors "github.com/jmgilman/go/errors"

	"movieview/internal/thumbnail"
)

// RecoverySuggestion returns a user-facing hint for an error surfaced by the
// orchestrator.
func RecoverySuggestion(err error) string {
	if err == nil {
		return ""
	}
	switch platformerrors.GetCode(err) {
	case thumbnail.CodeNotFound:
		return "Check that the video still exists and has not been moved or renamed."
	case thumbnail.CodeNotAccessible:
		return "Check file permissions and retry."
	case thumbnail.CodeInvalidSource:
		return "The video may be damaged or in an unsupported format. Try re-encoding it."
	case thumbnail.CodeEncodingFailed:
		return "Switch the cache format to jpeg, or install libvips with HEIF support."
	case thumbnail.CodeIO:
		return "Check free space and permissions on the cache directory, then retry."
	case thumbnail.CodeOperationInProgress:
		return "Wait for the running operation on this video to finish, or cancel it."
	case thumbnail.CodeCancelled:
		return "Start the operation again when ready."
	default:
		return "Retry the operation. If it keeps failing, check the server logs."
	}
}
