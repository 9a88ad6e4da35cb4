package main

import (
	"errors"

	"mcpdesk/internal/domain"
)

const (
	exitFailure    = 1
	exitValidation = 2
	exitRemote     = 3
)

type exitError struct {
	code    int
	message string
	silent  bool
}

func (e exitError) Error() string {
	return e.message
}

func exitSilent(code int) error {
	return exitError{code: code, silent: true}
}

func usageError(message string) error {
	return exitError{code: exitValidation, message: message}
}

// describeExit maps an error returned by a command to its process exit code.
func describeExit(err error) (int, string, bool) {
	var exitErr exitError
	if errors.As(err, &exitErr) {
		return exitErr.code, exitErr.message, exitErr.silent
	}
	code, _ := domain.CodeFrom(err)
	switch code {
	case domain.CodeValidation:
		return exitValidation, err.Error(), false
	case domain.CodeTransport, domain.CodeRemote, domain.CodeNotFound:
		return exitRemote, err.Error(), false
	default:
		return exitFailure, err.Error(), false
	}
}
