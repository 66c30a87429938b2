// Package match tests selectors against live context stacks and computes
// selector specificity.
package match

import (
	"reflect"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/choicepoint/internal/frame"
)

// #region hierarchy

// Hierarchy answers subclass questions for ClassMethod patterns that opt in to
// subclass matching.
type Hierarchy interface {
	Descends(child, ancestor uuid.UUID) bool
}

// #endregion hierarchy

// #region match

// Match reports whether the selector is satisfied by the stack. The stack must
// already include the current call as its top frame; the selector's trailing
// element is checked against that frame, and the remaining elements must match
// strictly increasing indices among the frames below it (a subsequence, not a
// contiguous run). On success the returned captures hold one argument snapshot
// per selector element, in selector order.
func Match(sel frame.Selector, stack []frame.CallFrame, h Hierarchy) ([]frame.Args, bool) {
	n := len(sel.Items)
	if n == 0 || len(stack) == 0 {
		return nil, false
	}
	top := stack[len(stack)-1]
	below := stack[:len(stack)-1]

	target := sel.Items[n-1]
	if !patternMatches(target, top, below, len(below), h) {
		return nil, false
	}

	captures := make([]frame.Args, n)
	i := 0
	for k := 0; k < n-1; k++ {
		found := false
		for ; i < len(below); i++ {
			if patternMatches(sel.Items[k], below[i], below, i, h) {
				captures[k] = below[i].Args
				i++
				found = true
				break
			}
		}
		if !found {
			return nil, false
		}
	}
	captures[n-1] = top.Args
	return captures, true
}

// patternMatches tests one pattern against one frame. prefix and idx give the
// frames at or before the candidate position, which Context patterns need:
// an active scope anywhere at or before the position satisfies them.
func patternMatches(p frame.Pattern, f frame.CallFrame, prefix []frame.CallFrame, idx int, h Hierarchy) bool {
	switch pat := p.(type) {
	case frame.FuncPattern:
		return f.Kind == frame.KindCall && f.Site == pat.Site
	case frame.ArgPattern:
		if f.Kind != frame.KindCall || f.Site != pat.Site {
			return false
		}
		return argsSatisfy(f.Args, pat.Constraints)
	case frame.ClassMethodPattern:
		if f.Kind != frame.KindCall || f.Method != pat.Method {
			return false
		}
		if f.DeclaringClass == pat.Class {
			return true
		}
		return pat.Subclasses && h != nil && h.Descends(f.RuntimeClass, pat.Class)
	case frame.ContextPattern:
		return contextActiveAt(prefix, idx, pat.Class) || isContext(f, pat.Class)
	default:
		return false
	}
}

func isContext(f frame.CallFrame, class uuid.UUID) bool {
	return f.Kind == frame.KindContext && f.ContextClass == class
}

// contextActiveAt reports whether a context frame of the class appears at any
// index <= idx within prefix.
func contextActiveAt(prefix []frame.CallFrame, idx int, class uuid.UUID) bool {
	if idx >= len(prefix) {
		idx = len(prefix) - 1
	}
	for j := 0; j <= idx; j++ {
		if isContext(prefix[j], class) {
			return true
		}
	}
	return false
}

// argsSatisfy reports whether every constrained key is present and equal.
func argsSatisfy(args, constraints frame.Args) bool {
	for k, want := range constraints {
		got, ok := args[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

// #endregion match

// #region specificity

// Specificity scores a selector: one unit per non-target element, two for an
// ArgMatch element, plus one when the target itself carries argument
// constraints. Higher scores win at resolution time.
func Specificity(sel frame.Selector) int {
	n := len(sel.Items)
	if n == 0 {
		return 0
	}
	score := 0
	for _, it := range sel.Items[:n-1] {
		if _, ok := it.(frame.ArgPattern); ok {
			score += 2
		} else {
			score++
		}
	}
	if tp, ok := sel.Target().(frame.ArgPattern); ok && len(tp.Constraints) > 0 {
		score++
	}
	return score
}

// #endregion specificity
