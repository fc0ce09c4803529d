// errors.go: structured error handling for cache operations (spec section 7)
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0
package caffeine

import (
	goerrors "errors"
	"fmt"

	"github.com/agilira/go-errors"
)

// Error codes for cache operations.
const (
	// Configuration errors (1xxx)
	ErrCodeInvalidConfig errors.ErrorCode = "CAFFEINE_INVALID_CONFIG"

	// Illegal-argument errors (2xxx): rejected synchronously, before any
	// state mutation (spec section 7).
	ErrCodeEmptyKey      errors.ErrorCode = "CAFFEINE_EMPTY_KEY"
	ErrCodeNilLoader     errors.ErrorCode = "CAFFEINE_NIL_LOADER"
	ErrCodeNegativeWeight errors.ErrorCode = "CAFFEINE_NEGATIVE_WEIGHT"

	// Load errors (3xxx)
	ErrCodeLoaderFailed      errors.ErrorCode = "CAFFEINE_LOADER_FAILED"
	ErrCodeInvalidLoadResult errors.ErrorCode = "CAFFEINE_INVALID_LOAD_RESULT"

	// Internal errors (5xxx)
	ErrCodeInternalError  errors.ErrorCode = "CAFFEINE_INTERNAL_ERROR"
	ErrCodePanicRecovered errors.ErrorCode = "CAFFEINE_PANIC_RECOVERED"
)

const (
	msgInvalidConfig      = "invalid cache configuration"
	msgEmptyKey           = "key cannot be empty"
	msgNilLoader          = "loader function cannot be nil"
	msgNegativeWeight     = "weigher returned a negative weight"
	msgLoaderFailed       = "loader function returned an error"
	msgInvalidLoadResult  = "loader completed without error but produced no usable value"
	msgInternalError      = "internal cache error"
	msgPanicRecovered     = "panic recovered in cache operation"
)

// NewErrInvalidConfig reports a Configuration that failed Validate (spec
// section 7 "Illegal-argument"): mutually exclusive options, a weigher
// without a weight bound, refreshAfterWrite without a loader, and so on.
func NewErrInvalidConfig(reason string) error {
	return errors.NewWithField(ErrCodeInvalidConfig, msgInvalidConfig, "reason", reason)
}

// NewErrEmptyKey reports a call whose key argument is the empty string,
// which every external operation rejects synchronously without touching
// cache state (spec section 7).
func NewErrEmptyKey(operation string) error {
	return errors.NewWithField(ErrCodeEmptyKey, msgEmptyKey, "operation", operation)
}

// NewErrNilLoader reports a get-with-loader call whose loader is nil.
func NewErrNilLoader(key string) error {
	return errors.NewWithField(ErrCodeNilLoader, msgNilLoader, "key", key)
}

// NewErrNegativeWeight reports a configured Weigher returning a negative
// weight for key (spec section 4.2: weight must be >= 0).
func NewErrNegativeWeight(key string, weight int) error {
	return errors.NewWithContext(ErrCodeNegativeWeight, msgNegativeWeight, map[string]interface{}{
		"key":    key,
		"weight": weight,
	})
}

// NewErrLoaderFailed wraps a loader's own error (spec section 7
// "Load-failure"): the in-flight call is failed, nothing is cached, and
// every other caller waiting on the same key's single-flight call
// observes this same wrapped error.
func NewErrLoaderFailed(key string, cause error) error {
	return errors.Wrap(cause, ErrCodeLoaderFailed, msgLoaderFailed).
		WithContext("key", key).
		AsRetryable()
}

// NewErrInvalidLoadResult reports a loader that returned (nil, nil) or an
// otherwise unusable value (spec section 7 "Invalid-load-result"): from
// the caller's perspective this is handled identically to Load-failure.
func NewErrInvalidLoadResult(key string) error {
	return errors.NewWithField(ErrCodeInvalidLoadResult, msgInvalidLoadResult, "key", key)
}

// NewErrPanicRecovered reports a panic caught while invoking user-supplied
// code: a GetWithLoader loader, a GetAll bulk loader, or a refresh
// Reloader/Loader. Removal-listener panics are only logged, and weigher
// panics are not recovered.
func NewErrPanicRecovered(operation string, panicValue interface{}) error {
	return errors.NewWithContext(ErrCodePanicRecovered, msgPanicRecovered, map[string]interface{}{
		"operation":   operation,
		"panic_value": fmt.Sprintf("%v", panicValue),
	}).WithSeverity("critical")
}

// NewErrInternal wraps an unexpected internal failure.
func NewErrInternal(operation string, cause error) error {
	if cause != nil {
		return errors.Wrap(cause, ErrCodeInternalError, msgInternalError).
			WithContext("operation", operation).
			WithSeverity("warning")
	}
	return errors.NewWithField(ErrCodeInternalError, msgInternalError, "operation", operation).
		WithSeverity("warning")
}

// IsConfigError reports whether err came from Config.Validate.
func IsConfigError(err error) bool {
	return errors.HasCode(err, ErrCodeInvalidConfig)
}

// IsLoaderError reports whether err originated from a loader (Load-failure
// or Invalid-load-result); both are handled identically by callers.
func IsLoaderError(err error) bool {
	if err == nil {
		return false
	}
	var coder errors.ErrorCoder
	if goerrors.As(err, &coder) {
		code := coder.ErrorCode()
		return code == ErrCodeLoaderFailed || code == ErrCodeInvalidLoadResult
	}
	return false
}

// IsRetryable reports whether err's originator marked it retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var retryable errors.Retryable
	if goerrors.As(err, &retryable) {
		return retryable.IsRetryable()
	}
	return false
}

// GetErrorCode extracts the error code from err, or "" if it carries none.
func GetErrorCode(err error) errors.ErrorCode {
	if err == nil {
		return ""
	}
	var coder errors.ErrorCoder
	if goerrors.As(err, &coder) {
		return coder.ErrorCode()
	}
	return ""
}

// GetErrorContext extracts the structured context map attached to err.
func GetErrorContext(err error) map[string]interface{} {
	if err == nil {
		return nil
	}
	var cerr *errors.Error
	if goerrors.As(err, &cerr) {
		return cerr.Context
	}
	return nil
}
