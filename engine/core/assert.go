package core

import "fmt"

// Assert checks an invariant of the calling component. With debug enabled a
// failed check panics; otherwise it is logged at debug level and the caller
// is expected to turn it into a no-op.
func Assert(debug bool, cond bool, format string, args ...interface{}) bool {
	if cond {
		return true
	}
	msg := fmt.Sprintf(format, args...)
	if debug {
		panic("assertion failed: " + msg)
	}
	LogDebug("assertion failed: %s", msg)
	return false
}
