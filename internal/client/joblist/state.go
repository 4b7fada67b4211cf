package joblist

import (
	"errors"
	"fmt"
)

var (
	// ErrOperationFailed matches every failed load or mutation
	ErrOperationFailed = errors.New("operation failed")

	// ErrSuperseded is returned by a Load whose response arrived after a
	// newer Load was issued or after a mutation was confirmed
	ErrSuperseded = errors.New("load superseded by a newer request")

	// ErrMissingRecord is wrapped when a create or update succeeds without
	// returning the stored job
	ErrMissingRecord = errors.New("backend returned no job record")

	// ErrInvalidFilter is returned for status filters outside "all" and the status enum
	ErrInvalidFilter = errors.New("invalid status filter")
)

// Kind names a manager operation
type Kind string

const (
	KindLoad   Kind = "load"
	KindCreate Kind = "create"
	KindUpdate Kind = "update"
	KindRemove Kind = "remove"
)

// Op identifies one operation for State. JobID is zero for load and create.
type Op struct {
	Kind  Kind
	JobID int64
}

func (o Op) String() string {
	if o.JobID == 0 {
		return string(o.Kind)
	}
	return fmt.Sprintf("%s #%d", o.Kind, o.JobID)
}

// Phase is where an operation is in its request/response cycle
type Phase int

const (
	Idle Phase = iota
	InFlight
	Succeeded
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case InFlight:
		return "in_flight"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// OpState is the last observed state of an operation
type OpState struct {
	Phase Phase
	Err   error
}

// OpError reports a failed operation. It matches ErrOperationFailed and
// unwraps to the underlying transport, status or session error.
type OpError struct {
	Op  Op
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() []error {
	return []error{ErrOperationFailed, e.Err}
}
