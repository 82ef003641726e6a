package domain

import (
	"errors"
	"fmt"

	"go.trai.ch/zerr"
)

var (
	// ErrMissingTransformer is returned when a stage is built without a transformer.
	ErrMissingTransformer = zerr.New("transformer is required")

	// ErrInvalidConfig is returned when the stage configuration cannot be used.
	ErrInvalidConfig = zerr.New("invalid configuration")

	// ErrUnknownEncoding is returned when a configured text codec does not exist.
	ErrUnknownEncoding = zerr.New("unknown encoding")

	// ErrNoDestination is returned when a processable path has no destination path.
	ErrNoDestination = zerr.New("processable path has no destination")

	// ErrIO is the sentinel wrapped by filesystem failures.
	ErrIO = zerr.New("i/o failure")

	// ErrNotAFile is returned when fingerprinting something that is not a regular file.
	ErrNotAFile = zerr.New("not a file")

	// ErrPassInProgress is returned when a build pass is requested while another is running.
	ErrPassInProgress = zerr.New("build pass already in progress")

	// ErrUnknownStage is returned when a requested stage is not declared in the configuration.
	ErrUnknownStage = zerr.New("unknown stage")

	// ErrTransformFailed is the sentinel matched by every TransformError.
	ErrTransformFailed = zerr.New("transformation failed")
)

// TransformError reports a transformation failure for a single file.
type TransformError struct {
	// Err is the underlying failure.
	Err error
	// File is the relative path of the file being transformed.
	File RelativePath
	// TreeDir is the source root the file was read from.
	TreeDir string
}

// NewTransformError wraps err with the failing path and source root.
// A nil err is normalized into a generic error so callers always see a message.
func NewTransformError(err error, file RelativePath, treeDir string) *TransformError {
	if err == nil {
		err = errors.New("transformer failed without an error value")
	}
	return &TransformError{Err: err, File: file, TreeDir: treeDir}
}

// NewTransformPanic normalizes a recovered panic value into a TransformError.
func NewTransformPanic(recovered any, file RelativePath, treeDir string) *TransformError {
	var err error
	switch v := recovered.(type) {
	case error:
		err = v
	default:
		err = fmt.Errorf("transformer panicked: %v", v)
	}
	return NewTransformError(err, file, treeDir)
}

// Error implements the error interface.
func (e *TransformError) Error() string {
	return fmt.Sprintf("%s (file %q in %q)", e.Err.Error(), e.File, e.TreeDir)
}

// Unwrap returns the underlying error.
func (e *TransformError) Unwrap() error {
	return e.Err
}

// Is makes every TransformError match ErrTransformFailed.
func (e *TransformError) Is(target error) bool {
	return target == ErrTransformFailed
}
