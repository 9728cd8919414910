package notice

import (
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
)

// maxCauseDepth bounds the causal chain recorded on a single notice.
// Deeper chains are truncated silently.
const maxCauseDepth = 10

// ErrorClasser is implemented by errors that want to control the class name
// reported to the collector. Without it the class is the error's dynamic
// type name.
type ErrorClasser interface {
	ErrorClass() string
}

// StackTracer is implemented by errors that carry the program counters of
// the stack at the point they were created.
type StackTracer interface {
	StackTrace() []uintptr
}

// Error is the error description embedded in a Notice: the class and message
// of the reported error, an optional backtrace, and the flattened chain of
// causes discovered by unwrapping. A cause entry never nests further causes.
type Error struct {
	Class       string   `json:"class"`
	Message     string   `json:"message"`
	Tags        []string `json:"tags,omitempty"`
	Fingerprint string   `json:"fingerprint,omitempty"`
	Backtrace   []Frame  `json:"backtrace,omitempty"`
	Causes      []Error  `json:"causes,omitempty"`
}

// New builds an Error with an explicit class and message.
func New(class, message string) Error {
	return Error{Class: class, Message: message}
}

// NewError converts an arbitrary value into an Error. Accepted forms:
//
//   - an existing Error (returned as-is)
//   - any Go error: the class comes from ErrorClass() when implemented,
//     otherwise the dynamic type name; the cause chain is walked via Unwrap
//     (both single and joined forms) into a flat Causes list, most-proximate
//     first; a backtrace is taken from StackTrace() when implemented
//   - a plain string, reported with class "error"
//   - anything else, formatted with %v (fmt.Stringer honored)
//
// Absent capabilities (no class, no causes, no trace) are normal and leave
// the corresponding fields empty.
func NewError(v any) Error {
	switch e := v.(type) {
	case Error:
		return e
	case *Error:
		if e != nil {
			return *e
		}
		return New("nil", "<nil>")
	case error:
		return fromError(e)
	case string:
		return New("error", e)
	case fmt.Stringer:
		return Error{Class: classOf(v), Message: e.String()}
	default:
		return Error{Class: classOf(v), Message: fmt.Sprintf("%v", v)}
	}
}

// NewErrorFrom converts v like NewError and, when the value carried no stack
// of its own, attaches a backtrace captured at the caller. skip counts
// additional frames to drop above the caller (0 means the NewErrorFrom call
// site is the first frame).
func NewErrorFrom(v any, skip int) Error {
	e := NewError(v)
	if len(e.Backtrace) == 0 {
		e.Backtrace = Stack(skip + 1)
	}
	return e
}

// FromPanic converts a value recovered from a panic into an Error, attaching
// a backtrace captured at the recovery point. Error values convert as in
// NewError; any other panic value is reported with class "panic".
func FromPanic(v any) Error {
	var e Error
	if err, ok := v.(error); ok {
		e = fromError(err)
	} else {
		e = Error{Class: "panic", Message: fmt.Sprintf("%v", v)}
	}
	if len(e.Backtrace) == 0 {
		e.Backtrace = Stack(1)
	}
	return e
}

// FromValidationErrors adapts a go-playground/validator failure set into an
// Error with one cause per failed field, bounded like any other cause chain.
func FromValidationErrors(verrs validator.ValidationErrors) Error {
	e := Error{Class: classOf(verrs), Message: verrs.Error()}
	for _, fe := range verrs {
		if len(e.Causes) >= maxCauseDepth {
			break
		}
		e.Causes = append(e.Causes, Error{
			Class:   classOf(fe),
			Message: fe.Error(),
		})
	}
	return e
}

func fromError(err error) Error {
	e := Error{Class: classOf(err), Message: err.Error()}
	if st, ok := err.(StackTracer); ok {
		e.Backtrace = framesFromPCs(st.StackTrace())
	}
	e.Causes = causeChain(err)
	return e
}

// causeChain walks err's cause links into a flat list, most-proximate cause
// first. Joined errors contribute each member as one cause without further
// descent. The walk stops at maxCauseDepth entries.
func causeChain(err error) []Error {
	var out []Error
	cur := err
	for len(out) < maxCauseDepth {
		switch u := cur.(type) {
		case interface{ Unwrap() error }:
			next := u.Unwrap()
			if next == nil {
				return out
			}
			out = append(out, causeEntry(next))
			cur = next
		case interface{ Unwrap() []error }:
			for _, m := range u.Unwrap() {
				if m == nil {
					continue
				}
				if len(out) >= maxCauseDepth {
					break
				}
				out = append(out, causeEntry(m))
			}
			return out
		default:
			return out
		}
	}
	return out
}

func causeEntry(err error) Error {
	e := Error{Class: classOf(err), Message: err.Error()}
	if st, ok := err.(StackTracer); ok {
		e.Backtrace = framesFromPCs(st.StackTrace())
	}
	return e
}

// classOf names the reported class for a value: ErrorClass() when
// implemented and non-empty, otherwise the dynamic type name.
func classOf(v any) string {
	if ec, ok := v.(ErrorClasser); ok {
		if c := ec.ErrorClass(); c != "" {
			return c
		}
	}
	t := reflect.TypeOf(v)
	if t == nil {
		return "nil"
	}
	return t.String()
}
