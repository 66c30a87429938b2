package frame

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// #region namespace

// Namespace is the UUIDv5 namespace for all deterministic site ids.
var Namespace = uuid.MustParse("8c9f5b6e-2a41-4d3a-9b87-5f1e0c2d4a66")

// NameID derives the deterministic id for a registered name.
func NameID(name string) uuid.UUID {
	return uuid.NewSHA1(Namespace, []byte(name))
}

// #endregion namespace

// #region args

// Args is a snapshot of a call's named arguments.
type Args map[string]any

// String renders args as a stable "k=v, k=v" list.
func (a Args) String() string {
	if len(a) == 0 {
		return ""
	}
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, a[k])
	}
	return strings.Join(parts, ",")
}

// Clone returns a shallow copy.
func (a Args) Clone() Args {
	out := make(Args, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// #endregion args

// #region pattern

// Pattern is one element of a selector. The set of kinds is closed:
// FuncPattern, ClassMethodPattern, ContextPattern, ArgPattern.
type Pattern interface {
	fmt.Stringer
	pattern()
}

// FuncPattern matches a call to a specific registered callable.
type FuncPattern struct {
	Site  uuid.UUID
	Label string
}

// ClassMethodPattern matches a method call by declaring class and method name.
// With Subclasses set it also matches frames whose runtime class descends from
// the named class.
type ClassMethodPattern struct {
	Class      uuid.UUID
	Method     string
	Subclasses bool
	Label      string
}

// ContextPattern matches an active scoped context of the named class.
type ContextPattern struct {
	Class uuid.UUID
	Label string
}

// ArgPattern matches a call to a specific callable whose explicit arguments
// equal the given constants.
type ArgPattern struct {
	Site        uuid.UUID
	Constraints Args
	Label       string
}

func (FuncPattern) pattern()        {}
func (ClassMethodPattern) pattern() {}
func (ContextPattern) pattern()     {}
func (ArgPattern) pattern()         {}

func (p FuncPattern) String() string { return p.Label }

func (p ClassMethodPattern) String() string {
	if p.Label != "" {
		return fmt.Sprintf("%s.%s", p.Label, p.Method)
	}
	return p.Method
}

func (p ContextPattern) String() string { return p.Label }

func (p ArgPattern) String() string {
	if len(p.Constraints) == 0 {
		return p.Label
	}
	return fmt.Sprintf("%s(%s)", p.Label, p.Constraints)
}

// #endregion pattern

// #region selector

// Selector is an ordered chain of patterns. The final element always names the
// choice function being resolved.
type Selector struct {
	Items []Pattern
}

// Target returns the trailing pattern.
func (s Selector) Target() Pattern {
	if len(s.Items) == 0 {
		return nil
	}
	return s.Items[len(s.Items)-1]
}

// String renders the pattern chain space-separated, oldest first.
func (s Selector) String() string {
	parts := make([]string, len(s.Items))
	for i, it := range s.Items {
		parts[i] = it.String()
	}
	return strings.Join(parts, " ")
}

// #endregion selector

// #region call-frame

// Kind distinguishes tracked calls from ambient context scopes.
type Kind uint8

const (
	KindCall Kind = iota
	KindContext
)

// CallFrame is one entry on the execution-context stack: the identity of the
// currently executing tracked call plus a snapshot of its explicit arguments,
// or an ambient context scope (no arguments).
type CallFrame struct {
	Kind           Kind
	Site           uuid.UUID // callable identity for plain and choice calls
	DeclaringClass uuid.UUID // method frames only
	RuntimeClass   uuid.UUID // method frames only
	Method         string    // method frames only
	ContextClass   uuid.UUID // context frames only
	Label          string
	Args           Args
}

// CallSite builds a frame for a plain or choice function call.
func CallSite(site uuid.UUID, label string, args Args) CallFrame {
	return CallFrame{Kind: KindCall, Site: site, Label: label, Args: args}
}

// MethodSite builds a frame for a method call.
func MethodSite(declaring, runtime uuid.UUID, method, label string, args Args) CallFrame {
	return CallFrame{
		Kind:           KindCall,
		DeclaringClass: declaring,
		RuntimeClass:   runtime,
		Method:         method,
		Label:          label,
		Args:           args,
	}
}

// ContextScope builds a frame for an ambient context entry.
func ContextScope(class uuid.UUID, label string) CallFrame {
	return CallFrame{Kind: KindContext, ContextClass: class, Label: label}
}

// Describe renders a human-readable frame descriptor for trace output.
func (f CallFrame) Describe() string {
	if f.Kind == KindContext {
		return fmt.Sprintf("<context %s>", f.Label)
	}
	if f.Method != "" {
		return fmt.Sprintf("%s.%s(%s)", f.Label, f.Method, f.Args)
	}
	return fmt.Sprintf("%s(%s)", f.Label, f.Args)
}

// #endregion call-frame
