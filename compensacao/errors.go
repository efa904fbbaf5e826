package compensacao

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindTransportFailure        ErrorKind = "transport_failure"
	KindLogicalFailure          ErrorKind = "logical_failure"
	KindUnexpectedResponseShape ErrorKind = "unexpected_response_shape"
	KindPreconditionViolation   ErrorKind = "precondition_violation"
	KindInFlight                ErrorKind = "in_flight"
	// KindOverrideFailed is what the operator sees for any failed override,
	// whether the transport or the server rejected it.
	KindOverrideFailed ErrorKind = "override_failed"
)

var (
	ErrTransport       = errors.New("transport failure")
	ErrLogical         = errors.New("logical failure")
	ErrUnexpectedShape = errors.New("unexpected response shape")
	ErrPrecondition    = errors.New("precondition violation")
	ErrInFlight        = errors.New("remediation already in flight")
)

type RemediationError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *RemediationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *RemediationError) Unwrap() error { return e.Err }

func (e *RemediationError) Is(target error) bool {
	switch e.Kind {
	case KindTransportFailure:
		return target == ErrTransport
	case KindLogicalFailure:
		return target == ErrLogical
	case KindUnexpectedResponseShape:
		return target == ErrUnexpectedShape
	case KindPreconditionViolation:
		return target == ErrPrecondition
	case KindInFlight:
		return target == ErrInFlight
	}
	return false
}

func transportError(err error) *RemediationError {
	return &RemediationError{Kind: KindTransportFailure, Message: err.Error(), Err: err}
}

func transportErrorf(format string, args ...any) *RemediationError {
	return &RemediationError{Kind: KindTransportFailure, Message: fmt.Sprintf(format, args...)}
}

// logicalError keeps the server message verbatim.
func logicalError(message string) *RemediationError {
	if message == "" {
		message = "request rejected by server"
	}
	return &RemediationError{Kind: KindLogicalFailure, Message: message}
}

func unexpectedShapeError(format string, args ...any) *RemediationError {
	return &RemediationError{Kind: KindUnexpectedResponseShape, Message: fmt.Sprintf(format, args...)}
}

func preconditionError(format string, args ...any) *RemediationError {
	return &RemediationError{Kind: KindPreconditionViolation, Message: fmt.Sprintf(format, args...)}
}

// KindOf reports the kind of a remediation error, or "" for anything else.
func KindOf(err error) ErrorKind {
	var re *RemediationError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}

type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is the single report an operator gets for a command.
type Notification struct {
	Level    Level     `json:"level"`
	Kind     ErrorKind `json:"kind,omitempty"`
	Message  string    `json:"message"`
	RecordID string    `json:"recordId,omitempty"`
}

func (n Notification) Failed() bool {
	return n.Level == LevelError
}

// notificationFor turns err into the operator report. Client-side
// rejections are warnings and come back with a nil error since nothing
// changed anywhere.
func notificationFor(recordID string, err error) (Notification, error) {
	var re *RemediationError
	if !errors.As(err, &re) {
		re = transportError(err)
	}
	n := Notification{Kind: re.Kind, Message: re.Error(), RecordID: recordID}
	switch re.Kind {
	case KindPreconditionViolation, KindInFlight:
		n.Level = LevelWarning
		return n, nil
	default:
		n.Level = LevelError
		return n, re
	}
}
