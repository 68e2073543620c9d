package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrParse         = errors.New("parse error")
	ErrPrecisionLoss = errors.New("precision loss")
	ErrSelector      = errors.New("selector error")
	ErrStage         = errors.New("stage error")
	ErrVerification  = errors.New("verification error")
	ErrSplice        = errors.New("splice error")
	ErrConfiguration = errors.New("configuration error")
	ErrExternalTool  = errors.New("external tool error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrStage
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Fatal reports whether an error aborts an entire pipeline run rather than a
// single clip. Parse, precision-loss, selector, and configuration failures
// happen before or outside per-clip processing and leave no output file.
func Fatal(err error) bool {
	switch {
	case errors.Is(err, ErrParse),
		errors.Is(err, ErrPrecisionLoss),
		errors.Is(err, ErrSelector),
		errors.Is(err, ErrConfiguration):
		return true
	default:
		return false
	}
}

// Kind returns the taxonomy label for an error, suitable for run reports.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrPrecisionLoss):
		return "precision_loss"
	case errors.Is(err, ErrSelector):
		return "selector"
	case errors.Is(err, ErrVerification):
		return "verification"
	case errors.Is(err, ErrSplice):
		return "splice"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrExternalTool):
		return "external_tool"
	default:
		return "stage"
	}
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
