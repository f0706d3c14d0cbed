package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrGeneration    = errors.New("script generation failed")
	ErrSynthesis     = errors.New("voiceover synthesis failed")
	ErrAssetNotFound = errors.New("asset not found")
	ErrCompilation   = errors.New("filter graph compilation failed")
	ErrExecution     = errors.New("render execution failed")
	ErrCancelled     = errors.New("cancelled")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrTransient     = errors.New("transient failure")
)

// Error kinds persisted alongside a failed project.
const (
	KindGeneration    = "generation"
	KindSynthesis     = "synthesis"
	KindAssetNotFound = "asset_not_found"
	KindCompilation   = "compilation"
	KindExecution     = "execution"
	KindCancelled     = "cancelled"
	KindValidation    = "validation"
	KindConfiguration = "configuration"
	KindUnknown       = "unknown"
)

// Recovery actions a failed project can take.
const (
	RecoverRegenerate  = "regenerate"
	RecoverRetryRender = "retry-render"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ErrorKind classifies err by the first marker it carries.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, ErrGeneration):
		return KindGeneration
	case errors.Is(err, ErrSynthesis):
		return KindSynthesis
	case errors.Is(err, ErrAssetNotFound):
		return KindAssetNotFound
	case errors.Is(err, ErrCompilation):
		return KindCompilation
	case errors.Is(err, ErrExecution):
		return KindExecution
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	default:
		return KindUnknown
	}
}

// RecoveryAction names the lifecycle action that can move a project failed
// with err back into a workable state.
func RecoveryAction(err error) string {
	switch ErrorKind(err) {
	case KindGeneration, KindSynthesis, KindValidation:
		return RecoverRegenerate
	default:
		return RecoverRetryRender
	}
}

// FailureMessage renders err as the single human-readable line stored on a
// failed project, including the action that recovers from it.
func FailureMessage(err error) string {
	return FormatFailure(err, RecoveryAction(err))
}

// FormatFailure renders err with an explicit recovery action.
func FormatFailure(err error, action string) string {
	if err == nil {
		return ""
	}
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		msg = "unknown failure"
	}
	return fmt.Sprintf("%s (run %s to recover)", msg, action)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
