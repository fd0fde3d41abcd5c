package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration marks missing or invalid dataset files and config keys.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks a referenced feature or checkpoint file that is absent.
	ErrNotFound = errors.New("not found")
	// ErrInvalidBatch marks empty or malformed batch input, a caller bug.
	ErrInvalidBatch = errors.New("invalid batch")
	// ErrCompute marks a failure inside the encoder forward or backward pass.
	ErrCompute = errors.New("compute error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrCompute
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsFatalBeforeStart reports whether the error should be reported before any
// training or inference work begins.
func IsFatalBeforeStart(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
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
