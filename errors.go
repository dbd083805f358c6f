package parbatch

import (
	"fmt"
	"github.com/pkg/errors"
	"io"
)

// BatchError represent an error raised during a parallel run
type BatchError interface {
	// Code code of the error
	Code() string
	// Message readable message of the error
	Message() string
	// Error error interface
	Error() string
	// Unwrap the wrapped cause, may be nil
	Unwrap() error
	// StackTrace stack trace of the position the error was created at
	StackTrace() string
}

type batchError struct {
	code string
	msg  string
	err  error
}

// NewBatchError new instance.
// The message may contain format verbs consuming args. A trailing error arg
// not consumed by the message is kept as the wrapped cause.
func NewBatchError(code string, msg string, args ...interface{}) BatchError {
	var cause error
	if len(args) > 0 && formatVerbs(msg) < len(args) {
		if e, ok := args[len(args)-1].(error); ok {
			cause = e
			args = args[:len(args)-1]
		}
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	var err error
	if cause != nil {
		err = errors.WithStack(cause)
	} else {
		err = errors.New(msg)
	}
	return &batchError{code: code, msg: msg, err: err}
}

func formatVerbs(msg string) int {
	count := 0
	for i := 0; i < len(msg); i++ {
		if msg[i] == '%' {
			if i+1 < len(msg) && msg[i+1] == '%' {
				i++
				continue
			}
			count++
		}
	}
	return count
}

func (e *batchError) Code() string {
	return e.code
}

func (e *batchError) Message() string {
	return e.msg
}

func (e *batchError) Error() string {
	if e.err != nil && e.err.Error() != e.msg {
		return fmt.Sprintf("batch error, code:%v, message:%v, cause:%v", e.code, e.msg, e.err)
	}
	return fmt.Sprintf("batch error, code:%v, message:%v", e.code, e.msg)
}

func (e *batchError) Unwrap() error {
	return e.err
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

func (e *batchError) StackTrace() string {
	if st, ok := e.err.(stackTracer); ok {
		return fmt.Sprintf("%+v", st.StackTrace())
	}
	return ""
}

func (e *batchError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			io.WriteString(s, e.Error())
			io.WriteString(s, e.StackTrace())
			return
		}
		fallthrough
	case 's':
		io.WriteString(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}

const (
	//ErrCodeValidation argument validation failed before dispatch
	ErrCodeValidation = "validation"
	//ErrCodeChunk a single chunk execution failed
	ErrCodeChunk = "chunk"
	//ErrCodeRun the run as a whole failed
	ErrCodeRun = "run"
	//ErrCodePersistence a checkpoint write failed
	ErrCodePersistence = "persistence"
	//ErrCodeStop the run was cancelled cooperatively
	ErrCodeStop = "stop"
	//ErrCodeConcurrency concurrent modification detected
	ErrCodeConcurrency = "concurrency"
	//ErrCodeDbFail run repository access failed
	ErrCodeDbFail = "db_fail"
	//ErrCodeGeneral uncategorized failure
	ErrCodeGeneral = "general"
)

var (
	//StopError raised inside a run when a cooperative stop is requested
	StopError BatchError = NewBatchError(ErrCodeStop, "run stopping")
	//ConcurrentError raised on an optimistic lock conflict in the run repository
	ConcurrentError BatchError = NewBatchError(ErrCodeConcurrency, "concurrent modification of run execution")
)
