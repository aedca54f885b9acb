package allocator

import "fmt"

// InvariantError reports a violated allocator invariant, such as reserving
// the same handle twice or freeing a handle the allocator never issued.
// It is a programming error: callers propagate it upward and tear down the
// session, they never recover from it.
type InvariantError struct {
	msg string
}

func (e *InvariantError) Error() string {
	return e.msg
}

func invariantf(format string, args ...any) *InvariantError {
	return &InvariantError{msg: fmt.Sprintf(format, args...)}
}
