// Package registry stores choice function descriptors, their implementations,
// and their rules. Registration happens in a setup phase; dispatch reads each
// function's rule list through an atomically swapped immutable snapshot, so a
// late registration never blocks or tears a concurrent resolution.
package registry

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/choicepoint/internal/frame"
)

// #region callable

// Callable is the underlying function an implementation dispatches to. args
// are the caller's positional arguments; kwargs is the merged keyword map
// (explicit call kwargs over rule overrides over declared defaults).
type Callable func(ctx context.Context, args []any, kwargs map[string]any) (any, error)

// #endregion callable

// #region implementation

// Implementation is a concrete callable eligible to satisfy a choice function.
type Implementation struct {
	ID         uuid.UUID
	Name       string
	Implements uuid.UUID
	Params     []string       // positional parameter names, in order
	Defaults   map[string]any // declared choice-argument defaults
	Fn         Callable
}

// #endregion implementation

// #region choice-function

// ChoiceFunction is a named customization point: its interface implementation,
// its alternates, and its rules sorted by descending specificity.
type ChoiceFunction struct {
	ID        uuid.UUID
	Name      string
	Params    []string
	Interface *Implementation

	impls map[uuid.UUID]*Implementation
	byName map[string]*Implementation
	rules atomic.Pointer[[]*Rule]
}

// Rules returns the current immutable rule list, most specific first.
func (c *ChoiceFunction) Rules() []*Rule {
	p := c.rules.Load()
	if p == nil {
		return nil
	}
	return *p
}

// Implementations returns the registered alternates keyed by name.
func (c *ChoiceFunction) Implementations() map[string]*Implementation {
	out := make(map[string]*Implementation, len(c.byName))
	for k, v := range c.byName {
		out[k] = v
	}
	return out
}

// #endregion choice-function

// #region rule

// Decision is what a dynamic rule's capture function produces: an
// implementation override (uuid.Nil keeps the current one), keyword overrides,
// or a skip signal that removes the rule from that resolution.
type Decision struct {
	Impl      uuid.UUID
	Overrides map[string]any
	Skip      bool
}

// CaptureFunc inspects the per-selector-element argument snapshots of a
// matching call and decides what the rule contributes.
type CaptureFunc func(captures []frame.Args) (Decision, error)

// Rule is a registered customization: static (fixed impl/overrides) or
// dynamic (capture function). Specificity is computed at registration so
// dispatch never recomputes it.
type Rule struct {
	Selector    frame.Selector
	Impl        *Implementation // nil = keep current
	Overrides   map[string]any
	Capture     CaptureFunc // non-nil for dynamic rules
	Specificity int

	seq uint64 // registration order, stabilizes sorting
}

// Dynamic reports whether the rule computes its payload at match time.
func (r *Rule) Dynamic() bool {
	return r.Capture != nil
}

// #endregion rule

// #region sites

// Site is a plain tracked callable that may appear in selectors but is not
// itself a choice function.
type Site struct {
	ID     uuid.UUID
	Name   string
	Params []string
}

// Class is a registered class identity with an optional parent link, used by
// ClassMethod patterns that match subclasses.
type Class struct {
	ID     uuid.UUID
	Name   string
	Parent uuid.UUID
}

// ContextClass is a registered ambient context marker class.
type ContextClass struct {
	ID   uuid.UUID
	Name string
}

// #endregion sites
