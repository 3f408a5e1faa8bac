package service

import "fmt"

// ServiceError reports a failed stop or start command, carrying the
// command's diagnostic output for the logging collaborator.
type ServiceError struct {
	Unit   string
	Op     string // "stop" or "start"
	Detail string // trimmed combined output of the failed command
	Err    error
}

func (e *ServiceError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: %v: %s", e.Op, e.Unit, e.Err, e.Detail)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Unit, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// IsServiceError reports whether err is a failed service action.
func IsServiceError(err error) bool {
	_, ok := err.(*ServiceError)
	return ok
}
