package notice

import (
	"runtime"
	"strconv"
	"strings"
)

// maxStackDepth bounds how many program counters a capture collects.
const maxStackDepth = 32

// Frame is one backtrace entry in the collector's schema. Number is the line
// number rendered as a string.
type Frame struct {
	Number string `json:"number"`
	File   string `json:"file"`
	Method string `json:"method"`
}

// Stack captures the calling goroutine's stack and renders it as backtrace
// frames, oldest call last. skip counts frames to drop above the caller of
// Stack: 0 means the Stack call site itself is the first frame.
func Stack(skip int) []Frame {
	pcs := make([]uintptr, maxStackDepth)
	n := runtime.Callers(skip+2, pcs)
	return framesFromPCs(pcs[:n])
}

// framesFromPCs resolves program counters to frames. Runtime-internal frames
// (panic plumbing, goroutine bootstrap) are trimmed.
func framesFromPCs(pcs []uintptr) []Frame {
	if len(pcs) == 0 {
		return nil
	}
	frames := runtime.CallersFrames(pcs)
	var out []Frame
	for {
		f, more := frames.Next()
		if f.Function != "" && !strings.HasPrefix(f.Function, "runtime.") {
			out = append(out, Frame{
				Number: strconv.Itoa(f.Line),
				File:   f.File,
				Method: f.Function,
			})
		}
		if !more {
			break
		}
	}
	return out
}
