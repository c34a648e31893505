package publish

import (
	"fmt"
	"strings"
)

// MissingCredentialsError is returned when required credentials are missing.
type MissingCredentialsError struct {
	Platform string
	Keys     []string
}

func (e MissingCredentialsError) Error() string {
	if len(e.Keys) == 0 {
		return fmt.Sprintf("%s credentials not configured", e.Platform)
	}
	return fmt.Sprintf("%s credentials not configured (missing %s)", e.Platform, strings.Join(e.Keys, ", "))
}

// ValidationError captures platform-specific validation issues.
type ValidationError struct {
	Platform string
	Reason   string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s validation failed: %s", e.Platform, e.Reason)
}

// PlatformNotFoundError is returned when a platform is not registered.
type PlatformNotFoundError struct {
	Platform string
}

func (e PlatformNotFoundError) Error() string {
	return fmt.Sprintf("platform %q is not registered", e.Platform)
}

// DuplicatePlatformError is returned when a name is registered twice.
type DuplicatePlatformError struct {
	Platform string
}

func (e DuplicatePlatformError) Error() string {
	return fmt.Sprintf("platform %q is already registered", e.Platform)
}

// UnsupportedAttachmentError is returned for an unknown attachment kind.
type UnsupportedAttachmentError struct {
	Platform string
	Type     string
}

func (e UnsupportedAttachmentError) Error() string {
	if e.Platform == "" {
		return fmt.Sprintf("unsupported attachment type %q", e.Type)
	}
	return fmt.Sprintf("%s: unsupported attachment type %q", e.Platform, e.Type)
}

// TransportError wraps a network level failure.
type TransportError struct {
	Platform string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport error: %v", e.Platform, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError is returned when a platform answers but rejects the request.
// Message is the platform's own description and is used verbatim as the
// failure text of a Result.
type APIError struct {
	Platform string
	Status   int
	Code     string
	Message  string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return fmt.Sprintf("%s API error %s (HTTP %d)", e.Platform, e.Code, e.Status)
	}
	return fmt.Sprintf("%s API error (HTTP %d)", e.Platform, e.Status)
}
