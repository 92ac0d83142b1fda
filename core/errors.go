package core

// Code is a stable error identifier shared by the scheduling core, the
// register apps and the cross-core error queue. It is comparable and
// implements error.
type Code string

func (c Code) Error() string { return string(c) }

const (
	OK                  Code = "ok"
	CapacityError       Code = "capacity_error"
	ValidationError     Code = "validation_error"
	StateConflictError  Code = "state_conflict"
	DeadlineMissedFault Code = "deadline_missed"
	QueueFullFault      Code = "queue_full"
	DriverError         Code = "driver_error"

	Error Code = "error" // generic fallback
)

// E carries a Code together with the failing operation and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Is lets errors.Is(err, SomeCode) match a wrapped E.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

// newError builds an *E without a cause
func newError(c Code, op, msg string) error {
	return &E{C: c, Op: op, Msg: msg}
}

// wrapError builds an *E around a driver error
func wrapError(c Code, op string, err error) error {
	return &E{C: c, Op: op, Err: err}
}

// CodeOf extracts a Code from an error, defaulting to Error.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	type unwrapper interface{ Unwrap() error }
	if u, ok := err.(unwrapper); ok {
		return CodeOf(u.Unwrap())
	}
	return Error
}
