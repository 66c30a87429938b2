package trace

import "sync"

// #region recorder

// Recorder owns the process-wide trace session. Node attachment is guarded
// because invocations on different execution contexts may share the root
// forest (or a common ancestor node); the current-node cursor itself is
// execution-context-local and lives with the caller.
type Recorder struct {
	mu    sync.Mutex
	open  bool
	roots []*Node
}

// NewRecorder returns a recorder with no open session.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Start opens a session with an empty root forest, discarding any previous
// unfinished session.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open = true
	r.roots = nil
}

// Stop closes the session and hands the collected forest to the caller. After
// Stop no further nodes are recorded until Start is called again.
func (r *Recorder) Stop(reg Snapshot) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := &Session{Roots: r.roots, Registry: reg}
	r.open = false
	r.roots = nil
	return s
}

// Active reports whether a session is open.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.open
}

// Begin attaches n under the execution context's current node (nil means the
// root forest) and returns the new cursor. ok is false when no session is
// open, in which case nothing is recorded and the cursor is unchanged.
func (r *Recorder) Begin(cursor *Node, n *Node) (*Node, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.open {
		return cursor, false
	}
	n.parent = cursor
	if cursor == nil {
		r.roots = append(r.roots, n)
	} else {
		cursor.Items = append(cursor.Items, n)
	}
	return n, true
}

// End restores the cursor that was current before n began.
func (r *Recorder) End(n *Node) *Node {
	return n.parent
}

// #endregion recorder
