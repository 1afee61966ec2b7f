package app

import "fmt"

// DomainError is a validation or lookup failure the HTTP layer can translate
// directly into a response: Status becomes the HTTP status, Code and Message
// the error body, Details an optional payload (e.g. the allowed task
// statuses).
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}
