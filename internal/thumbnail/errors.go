package thumbnail

import (
	"context"
	"errors"
	"io/fs"

	platformerrors "github.com/jmgilman/go/errors"
)

// Error codes surfaced by the cache and the orchestrator.
const (
	CodeNotFound            = platformerrors.CodeNotFound
	CodeNotAccessible       = platformerrors.CodeForbidden
	CodeInvalidSource       platformerrors.ErrorCode = "INVALID_SOURCE"
	CodeEncodingFailed      platformerrors.ErrorCode = "ENCODING_FAILED"
	CodeIO                  platformerrors.ErrorCode = "IO_ERROR"
	CodeOperationInProgress platformerrors.ErrorCode = "OPERATION_IN_PROGRESS"
	CodeCancelled           platformerrors.ErrorCode = "CANCELLED"
)

// WrapFileError classifies a filesystem error: missing files become
// NOT_FOUND, permission errors FORBIDDEN, everything else IO_ERROR.
func WrapFileError(err error, message string) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return platformerrors.Wrap(err, CodeNotFound, message)
	case errors.Is(err, fs.ErrPermission):
		return platformerrors.Wrap(err, CodeNotAccessible, message)
	default:
		return platformerrors.Wrap(err, CodeIO, message)
	}
}

// IsCancellation reports whether err stems from a cancelled or expired context
// or carries the CANCELLED code.
func IsCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		platformerrors.GetCode(err) == CodeCancelled
}
