package cachekey

import (
	platformerrors "github.com/jmgilman/go/errors"

	"movieview/internal/thumbnail"
)

var errNotAFile = platformerrors.New(thumbnail.CodeInvalidSource, "not a regular file")
