// Package choicepoint is a choice resolution engine: callers register choice
// functions with alternate implementations, then steer which implementation
// runs (and with which keyword arguments) through rules whose selectors match
// the explicit call stack of the current execution context. Sessions of
// resolved invocations can be traced, rendered, serialized, and persisted.
package choicepoint

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/choicepoint/internal/dispatch"
	"github.com/danielpatrickdp/choicepoint/internal/frame"
	"github.com/danielpatrickdp/choicepoint/internal/registry"
	"github.com/danielpatrickdp/choicepoint/internal/trace"
)

// #region aliases

// Args is a named-argument snapshot, used both for call frames and for
// argument constraints in selectors.
type Args = frame.Args

// Pattern is one selector element.
type Pattern = frame.Pattern

// Callable is the signature implementations dispatch to.
type Callable = registry.Callable

// Decision is a dynamic rule's verdict.
type Decision = registry.Decision

// CaptureFunc computes a dynamic rule's decision from the matched call's
// argument snapshots.
type CaptureFunc = registry.CaptureFunc

// Session is a finished trace session.
type Session = trace.Session

// Body is the wrapped user code a tracked call executes.
type Body = dispatch.Body

// #endregion aliases

// #region selector-elements

// Fn selects a call to the named callable or choice function.
func Fn(site uuid.UUID) Pattern {
	return frame.FuncPattern{Site: site}
}

// MatchArgs selects a call to the named callable whose explicit arguments
// equal the given constants.
func MatchArgs(site uuid.UUID, constraints Args) Pattern {
	return frame.ArgPattern{Site: site, Constraints: constraints}
}

// Method selects a call to the named class's method.
func Method(class uuid.UUID, method string) Pattern {
	return frame.ClassMethodPattern{Class: class, Method: method}
}

// MethodSub selects a method call on the named class or any of its
// descendants.
func MethodSub(class uuid.UUID, method string) Pattern {
	return frame.ClassMethodPattern{Class: class, Method: method, Subclasses: true}
}

// Ctx selects an active ambient context of the named class.
func Ctx(class uuid.UUID) Pattern {
	return frame.ContextPattern{Class: class}
}

// #endregion selector-elements

// #region engine

// Engine owns one registry, one trace recorder, and the dispatch machinery.
type Engine struct {
	reg  *registry.Registry
	rec  *trace.Recorder
	disp *dispatch.Engine
	log  *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New creates an engine with an empty registry and no open trace session.
func New(opts ...Option) *Engine {
	e := &Engine{
		reg: registry.New(),
		rec: trace.NewRecorder(),
		log: zap.NewNop(),
	}
	for _, o := range opts {
		o(e)
	}
	e.disp = dispatch.New(e.reg, e.rec, e.log)
	return e
}

// Registry exposes the underlying registry for inspection tooling.
func (e *Engine) Registry() *registry.Registry {
	return e.reg
}

// #endregion engine

// #region registration

// Func registers a choice function with its interface implementation. params
// are the positional parameter names in call order; defaults declare the
// choice-arguments.
func (e *Engine) Func(name string, params []string, defaults map[string]any, fn Callable) (uuid.UUID, error) {
	return e.reg.RegisterChoiceFunction(name, params, defaults, fn)
}

// Impl registers an alternate implementation for a choice function.
func (e *Engine) Impl(name string, implements uuid.UUID, params []string, defaults map[string]any, fn Callable) (uuid.UUID, error) {
	return e.reg.RegisterImplementation(name, implements, params, defaults, fn)
}

// Tracked registers a plain callable so it can appear in selectors.
func (e *Engine) Tracked(name string, params []string) (uuid.UUID, error) {
	return e.reg.RegisterTracked(name, params)
}

// Class registers a class identity. parent may be uuid.Nil.
func (e *Engine) Class(name string, parent uuid.UUID) (uuid.UUID, error) {
	return e.reg.RegisterClass(name, parent)
}

// ContextClass registers an ambient context marker class.
func (e *Engine) ContextClass(name string) (uuid.UUID, error) {
	return e.reg.RegisterContextClass(name)
}

// Rule registers a static rule. impl uuid.Nil keeps the current
// implementation; vals override keyword arguments.
func (e *Engine) Rule(selector []Pattern, impl uuid.UUID, vals map[string]any) error {
	return e.reg.RegisterStaticRule(selector, impl, vals)
}

// DynamicRule registers a rule whose payload capture computes at match time.
func (e *Engine) DynamicRule(selector []Pattern, capture CaptureFunc) error {
	return e.reg.RegisterDynamicRule(selector, capture)
}

// #endregion registration
