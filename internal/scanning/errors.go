package scanning

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind tags an AnalysisError.
type Kind string

const (
	KindInitialization Kind = "initialization"
	KindConversion     Kind = "conversion"
	KindTextExtraction Kind = "text_extraction"
	KindParsing        Kind = "parsing"
	KindPreflight      Kind = "preflight"
	KindTimeout        Kind = "timeout"
	KindNetwork        Kind = "network"
	KindResource       Kind = "resource"
	KindCanceled       Kind = "canceled"
	KindUnknown        Kind = "unknown"
)

var recoverable = map[Kind]bool{
	KindInitialization: true,
	KindConversion:     true,
	KindTextExtraction: true,
	KindParsing:        false,
	KindPreflight:      false,
	KindTimeout:        true,
	KindNetwork:        true,
	KindResource:       false,
	KindCanceled:       false,
	KindUnknown:        true,
}

var userMessages = map[Kind]string{
	KindInitialization: "The text recognition engine could not be started. Please try again.",
	KindConversion:     "The document could not be read. Please upload a valid PDF, JPEG, PNG or HEIC file.",
	KindTextExtraction: "No text could be read from the document. Try a sharper scan.",
	KindParsing:        "No invoice details were recognized. Please fill in the fields manually.",
	KindPreflight:      "The file is too large or not supported.",
	KindTimeout:        "Text recognition took too long. Please try again.",
	KindNetwork:        "A network error occurred. Please check your connection and try again.",
	KindResource:       "The document is too large to process. Try a smaller file.",
	KindCanceled:       "The analysis was canceled.",
	KindUnknown:        "The document could not be analyzed. Please try again.",
}

// AnalysisError is a failure tagged with a closed Kind.
type AnalysisError struct {
	Kind        Kind
	Recoverable bool
	Message     string
	Err         error
}

// NewError creates an AnalysisError; recoverability follows from kind.
func NewError(kind Kind, message string, cause error) *AnalysisError {
	return &AnalysisError{
		Kind:        kind,
		Recoverable: recoverable[kind],
		Message:     message,
		Err:         cause,
	}
}

func (e *AnalysisError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the retry controller may attempt again.
// Only initialization and network-class failures qualify.
func (e *AnalysisError) Retryable() bool {
	if !e.Recoverable {
		return false
	}
	switch e.Kind {
	case KindInitialization, KindNetwork, KindTimeout:
		return true
	}
	return false
}

// Classify maps any error onto the closed taxonomy. Tagged errors keep their
// kind; errors from third-party code fall back to message sniffing.
func Classify(err error) *AnalysisError {
	if err == nil {
		return nil
	}
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(KindTimeout, "operation timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return NewError(KindCanceled, "operation canceled", err)
	}
	return NewError(sniffKind(err.Error()), "unclassified failure", err)
}

func sniffKind(message string) Kind {
	msg := strings.ToLower(message)
	switch {
	case containsAny(msg, "network", "fetch", "connection", "dial", "no such host"):
		return KindNetwork
	case containsAny(msg, "memory", "resource exhausted", "cannot allocate"):
		return KindResource
	case containsAny(msg, "timeout", "timed out", "deadline"):
		return KindTimeout
	}
	return KindUnknown
}

// IsPreflight reports whether err is a preflight rejection.
func IsPreflight(err error) bool {
	var ae *AnalysisError
	return errors.As(err, &ae) && ae.Kind == KindPreflight
}

// UserMessage returns a human-readable message for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var ae *AnalysisError
	if errors.As(err, &ae) {
		if msg, ok := userMessages[ae.Kind]; ok && ae.Kind != KindUnknown {
			return msg
		}
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "memory"):
		return userMessages[KindResource]
	case strings.Contains(msg, "network"):
		return userMessages[KindNetwork]
	case strings.Contains(msg, "timeout"):
		return userMessages[KindTimeout]
	}
	return userMessages[KindUnknown]
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
