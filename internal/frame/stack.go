package frame

import "fmt"

// #region imbalance

// ContextStackImbalance reports a pop that does not pair with its push. This is
// a scoping bug in calling code and is treated as a fatal internal-consistency
// violation, not a recoverable error.
type ContextStackImbalance struct {
	Want int // depth the pop expected
	Got  int // actual depth
}

func (e ContextStackImbalance) Error() string {
	return fmt.Sprintf("context stack imbalance: pop expected depth %d, stack at %d", e.Want, e.Got)
}

// #endregion imbalance

// #region stack

// Stack is the per-execution-context sequence of active call frames, oldest
// first. It is only ever touched by its own execution context; no locking.
type Stack struct {
	frames []CallFrame
}

// Push appends a frame and returns the depth token its pop must present.
func (s *Stack) Push(f CallFrame) int {
	s.frames = append(s.frames, f)
	return len(s.frames)
}

// Pop removes the top frame. The token must be the value returned by the
// matching Push; anything else means pushes and pops are out of order.
func (s *Stack) Pop(token int) error {
	if len(s.frames) != token {
		return ContextStackImbalance{Want: token, Got: len(s.frames)}
	}
	s.frames[len(s.frames)-1] = CallFrame{}
	s.frames = s.frames[:len(s.frames)-1]
	return nil
}

// MustPop is Pop for internally paired push/pop sites, where a mismatch can
// only mean engine misuse across execution contexts.
func (s *Stack) MustPop(token int) {
	if err := s.Pop(token); err != nil {
		panic(err)
	}
}

// Depth returns the number of active frames.
func (s *Stack) Depth() int {
	return len(s.frames)
}

// Snapshot returns a copy of the live frames, oldest first.
func (s *Stack) Snapshot() []CallFrame {
	out := make([]CallFrame, len(s.frames))
	copy(out, s.frames)
	return out
}

// #endregion stack
