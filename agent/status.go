package agent

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrCode classifies a handler failure. The zero value means success.
type ErrCode int

const (
	errNone ErrCode = iota
	// ErrInternal covers storage engine and other local failures.
	ErrInternal
	// ErrAlreadyExists marks a clone that found the tablet already present.
	ErrAlreadyExists
	// ErrTaskRequest marks a malformed or mis-typed request.
	ErrTaskRequest
	// ErrFileDownload marks a transport failure or size mismatch while
	// copying files from a peer.
	ErrFileDownload
	// ErrRPC marks a failed call to the master or a peer agent.
	ErrRPC
)

func (c ErrCode) String() string {
	switch c {
	case errNone:
		return "success"
	case ErrInternal:
		return "internal error"
	case ErrAlreadyExists:
		return "already exists"
	case ErrTaskRequest:
		return "task request error"
	case ErrFileDownload:
		return "file download failed"
	case ErrRPC:
		return "rpc failure"
	}
	return fmt.Sprintf("err_code(%d)", int(c))
}

// TaskError is an error tagged with an ErrCode so handlers can map it onto
// the reported status.
type TaskError struct {
	Code ErrCode
	Msg  string
}

func (e *TaskError) Error() string {
	if e.Msg == "" {
		return e.Code.String()
	}
	return e.Msg
}

// TaskErrorf builds a TaskError with a formatted message.
func TaskErrorf(code ErrCode, format string, args ...interface{}) error {
	return &TaskError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// CodeOf returns the ErrCode carried by err, unwrapping pkg/errors causes.
// Untagged errors classify as ErrInternal; nil classifies as success.
func CodeOf(err error) ErrCode {
	if err == nil {
		return errNone
	}
	if te, ok := errors.Cause(err).(*TaskError); ok {
		return te.Code
	}
	return ErrInternal
}

// StatusOf maps an error onto the StatusCode reported to the master.
// AlreadyExists is a success from the master's point of view.
func StatusOf(err error) StatusCode {
	switch CodeOf(err) {
	case errNone, ErrAlreadyExists:
		return StatusOK
	case ErrTaskRequest:
		return StatusAnalysisError
	default:
		return StatusRuntimeError
	}
}
