package qci

import "fmt"

type IDNotProvidedError struct{}

func (e IDNotProvidedError) Error() string {
	return "ID was not provided."
}

type ValidationError struct {
	ID  string
	Msg string
}

func (e ValidationError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("Validation failed: %s.", e.Msg)
	}
	return fmt.Sprintf("Validation failed for ID %s: %s.", e.ID, e.Msg)
}

type AuthenticationError struct {
	StatusCode int
	Cause      error
}

func (e AuthenticationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("Authentication failed (status %d): %v.", e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("Authentication failed (status %d).", e.StatusCode)
}

func (e AuthenticationError) Unwrap() error {
	return e.Cause
}

type TransportError struct {
	Cause error
}

func (e TransportError) Error() string {
	return fmt.Sprintf("Failed QCI API request: %v.", e.Cause)
}

func (e TransportError) Unwrap() error {
	return e.Cause
}

type MalformedResponseError struct {
	Cause error
}

func (e MalformedResponseError) Error() string {
	return fmt.Sprintf("Failed to decode QCI API response: %v.", e.Cause)
}

func (e MalformedResponseError) Unwrap() error {
	return e.Cause
}

type FileError struct {
	Path  string
	Cause error
}

func (e FileError) Error() string {
	return fmt.Sprintf("Failed to write file %s: %v.", e.Path, e.Cause)
}

func (e FileError) Unwrap() error {
	return e.Cause
}
