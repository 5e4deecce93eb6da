package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidSource marks locators that cannot be resolved to a canonical
	// source. Submissions failing with this marker never create a job.
	ErrInvalidSource = errors.New("invalid source")
	// ErrAcquisition marks failures while fetching raw media.
	ErrAcquisition = errors.New("acquisition failed")
	// ErrTranscode marks failures while producing the canonical audio format.
	ErrTranscode = errors.New("transcode failed")
	// ErrFeedPersist marks failures while writing the feed document.
	ErrFeedPersist = errors.New("feed persist failed")
	// ErrNotFound marks lookups for jobs or entries that do not exist.
	ErrNotFound = errors.New("not found")
	// ErrExternalTool marks subprocess launch or exit failures.
	ErrExternalTool = errors.New("external tool error")
	// ErrTimeout marks subprocess invocations that exceeded their deadline.
	ErrTimeout = errors.New("timeout")
)

// Wrap builds an error message that includes pipeline context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
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
