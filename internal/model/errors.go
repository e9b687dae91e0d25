package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrServer is returned when the translation server answers a request with an error.
	ErrServer = errors.New("server error")
)

// ServerError is an error answered by the translation server.
// Message is the user facing reason sent by the server, if any.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server answered with status %d", e.StatusCode)
	}
	return fmt.Sprintf("server answered with status %d: %s", e.StatusCode, e.Message)
}

func (e *ServerError) Unwrap() error { return ErrServer }
