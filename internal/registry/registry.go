package registry

import (
	"sync"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/choicepoint/internal/frame"
	"github.com/danielpatrickdp/choicepoint/internal/match"
)

// #region registry-struct

// Registry is the process-wide owned store of choice functions, alternate
// implementations, tracked sites, classes, and context classes. A single
// writer lock guards mutation; per-function rule lists are swapped atomically
// so dispatch reads never block.
type Registry struct {
	mu        sync.RWMutex
	functions map[uuid.UUID]*ChoiceFunction
	impls     map[uuid.UUID]*Implementation
	sites     map[uuid.UUID]*Site
	classes   map[uuid.UUID]*Class
	contexts  map[uuid.UUID]*ContextClass
	names     map[string]uuid.UUID
	seq       uint64
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		functions: make(map[uuid.UUID]*ChoiceFunction),
		impls:     make(map[uuid.UUID]*Implementation),
		sites:     make(map[uuid.UUID]*Site),
		classes:   make(map[uuid.UUID]*Class),
		contexts:  make(map[uuid.UUID]*ContextClass),
		names:     make(map[string]uuid.UUID),
	}
}

func (r *Registry) claimName(op, name string) (uuid.UUID, error) {
	if name == "" {
		return uuid.Nil, regErr(op, name, "empty name")
	}
	if _, exists := r.names[name]; exists {
		return uuid.Nil, regErr(op, name, "duplicate id")
	}
	id := frame.NameID(name)
	r.names[name] = id
	return id, nil
}

// #endregion registry-struct

// #region register-choice-function

// RegisterChoiceFunction registers a customization point. params are the
// positional parameter names in call order; defaults declare the
// choice-arguments and their default values. Every default key must be a
// declared parameter.
func (r *Registry) RegisterChoiceFunction(name string, params []string, defaults map[string]any, fn Callable) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := checkDefaults("choice function", name, params, defaults); err != nil {
		return uuid.Nil, err
	}
	id, err := r.claimName("choice function", name)
	if err != nil {
		return uuid.Nil, err
	}

	iface := &Implementation{
		ID:         id,
		Name:       name,
		Implements: id,
		Params:     params,
		Defaults:   defaults,
		Fn:         fn,
	}
	cf := &ChoiceFunction{
		ID:        id,
		Name:      name,
		Params:    params,
		Interface: iface,
		impls:     make(map[uuid.UUID]*Implementation),
		byName:    make(map[string]*Implementation),
	}
	r.functions[id] = cf
	r.impls[id] = iface
	return id, nil
}

// #endregion register-choice-function

// #region register-implementation

// RegisterImplementation registers an alternate implementation for an
// existing choice function. The implementation may declare its own parameter
// set and defaults, which need not mirror the interface's.
func (r *Registry) RegisterImplementation(name string, implements uuid.UUID, params []string, defaults map[string]any, fn Callable) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cf, ok := r.functions[implements]
	if !ok {
		return uuid.Nil, regErr("implementation", name, "implements target %s is not a choice function", implements)
	}
	if err := checkDefaults("implementation", name, params, defaults); err != nil {
		return uuid.Nil, err
	}
	id, err := r.claimName("implementation", name)
	if err != nil {
		return uuid.Nil, err
	}

	impl := &Implementation{
		ID:         id,
		Name:       name,
		Implements: cf.ID,
		Params:     params,
		Defaults:   defaults,
		Fn:         fn,
	}
	r.impls[id] = impl
	cf.impls[id] = impl
	cf.byName[name] = impl
	return id, nil
}

func checkDefaults(op, name string, params []string, defaults map[string]any) error {
	for k := range defaults {
		found := false
		for _, p := range params {
			if p == k {
				found = true
				break
			}
		}
		if !found {
			return regErr(op, name, "choice argument %q is not a declared parameter", k)
		}
	}
	return nil
}

// #endregion register-implementation

// #region register-sites

// RegisterTracked registers a plain callable so it can appear in selectors and
// push frames around its calls.
func (r *Registry) RegisterTracked(name string, params []string) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := r.claimName("tracked callable", name)
	if err != nil {
		return uuid.Nil, err
	}
	r.sites[id] = &Site{ID: id, Name: name, Params: params}
	return id, nil
}

// RegisterClass registers a class identity. parent may be uuid.Nil; otherwise
// it must name an already registered class.
func (r *Registry) RegisterClass(name string, parent uuid.UUID) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if parent != uuid.Nil {
		if _, ok := r.classes[parent]; !ok {
			return uuid.Nil, regErr("class", name, "unknown parent class %s", parent)
		}
	}
	id, err := r.claimName("class", name)
	if err != nil {
		return uuid.Nil, err
	}
	r.classes[id] = &Class{ID: id, Name: name, Parent: parent}
	return id, nil
}

// RegisterContextClass registers an ambient context marker class.
func (r *Registry) RegisterContextClass(name string) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := r.claimName("context class", name)
	if err != nil {
		return uuid.Nil, err
	}
	r.contexts[id] = &ContextClass{ID: id, Name: name}
	return id, nil
}

// #endregion register-sites

// #region register-rules

// RegisterStaticRule adds a rule with a fixed implementation override
// (uuid.Nil keeps the current implementation) and keyword overrides. The
// selector's trailing pattern must resolve to a registered choice function.
func (r *Registry) RegisterStaticRule(items []frame.Pattern, impl uuid.UUID, overrides map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sel, cf, err := r.resolveSelector(items)
	if err != nil {
		return err
	}

	var implRef *Implementation
	if impl != uuid.Nil {
		implRef, err = r.resolveImpl(cf, impl)
		if err != nil {
			return err
		}
	}

	r.addRule(cf, &Rule{
		Selector:  sel,
		Impl:      implRef,
		Overrides: overrides,
	})
	return nil
}

// RegisterDynamicRule adds a rule whose payload is computed at match time from
// the captured call arguments.
func (r *Registry) RegisterDynamicRule(items []frame.Pattern, capture CaptureFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if capture == nil {
		return regErr("rule", "", "nil capture function")
	}
	sel, cf, err := r.resolveSelector(items)
	if err != nil {
		return err
	}

	r.addRule(cf, &Rule{
		Selector: sel,
		Capture:  capture,
	})
	return nil
}

func (r *Registry) addRule(cf *ChoiceFunction, rule *Rule) {
	rule.Specificity = match.Specificity(rule.Selector)
	r.seq++
	rule.seq = r.seq

	old := cf.Rules()
	next := make([]*Rule, 0, len(old)+1)
	inserted := false
	for _, existing := range old {
		// Descending specificity; equal specificity keeps registration order.
		if !inserted && rule.Specificity > existing.Specificity {
			next = append(next, rule)
			inserted = true
		}
		next = append(next, existing)
	}
	if !inserted {
		next = append(next, rule)
	}
	cf.rules.Store(&next)
}

// #endregion register-rules

// #region resolve-selector

// resolveSelector validates every pattern site, fills display labels, and
// resolves the trailing pattern to the targeted choice function.
func (r *Registry) resolveSelector(items []frame.Pattern) (frame.Selector, *ChoiceFunction, error) {
	if len(items) == 0 {
		return frame.Selector{}, nil, regErr("rule", "", "empty selector")
	}

	resolved := make([]frame.Pattern, len(items))
	for i, it := range items {
		p, err := r.resolvePattern(it)
		if err != nil {
			return frame.Selector{}, nil, err
		}
		resolved[i] = p
	}

	var targetSite uuid.UUID
	switch tp := resolved[len(resolved)-1].(type) {
	case frame.FuncPattern:
		targetSite = tp.Site
	case frame.ArgPattern:
		targetSite = tp.Site
	default:
		return frame.Selector{}, nil, regErr("rule", "", "selector must terminate in a choice function pattern")
	}
	cf, ok := r.functions[targetSite]
	if !ok {
		return frame.Selector{}, nil, regErr("rule", "", "selector target %s is not a choice function", targetSite)
	}
	return frame.Selector{Items: resolved}, cf, nil
}

func (r *Registry) resolvePattern(p frame.Pattern) (frame.Pattern, error) {
	switch pat := p.(type) {
	case frame.FuncPattern:
		name, ok := r.siteName(pat.Site)
		if !ok {
			return nil, regErr("rule", "", "unknown selector site %s", pat.Site)
		}
		pat.Label = name
		return pat, nil
	case frame.ArgPattern:
		name, ok := r.siteName(pat.Site)
		if !ok {
			return nil, regErr("rule", "", "unknown selector site %s", pat.Site)
		}
		pat.Label = name
		return pat, nil
	case frame.ClassMethodPattern:
		cls, ok := r.classes[pat.Class]
		if !ok {
			return nil, regErr("rule", "", "unknown selector class %s", pat.Class)
		}
		pat.Label = cls.Name
		return pat, nil
	case frame.ContextPattern:
		cc, ok := r.contexts[pat.Class]
		if !ok {
			return nil, regErr("rule", "", "unknown selector context class %s", pat.Class)
		}
		pat.Label = cc.Name
		return pat, nil
	default:
		return nil, regErr("rule", "", "unsupported selector pattern %T", p)
	}
}

func (r *Registry) siteName(id uuid.UUID) (string, bool) {
	if cf, ok := r.functions[id]; ok {
		return cf.Name, true
	}
	if s, ok := r.sites[id]; ok {
		return s.Name, true
	}
	return "", false
}

// resolveImpl accepts either an alternate of cf or cf itself (meaning its
// interface implementation).
func (r *Registry) resolveImpl(cf *ChoiceFunction, impl uuid.UUID) (*Implementation, error) {
	if impl == cf.ID {
		return cf.Interface, nil
	}
	ref, ok := r.impls[impl]
	if !ok {
		return nil, regErr("rule", "", "unknown implementation %s", impl)
	}
	if ref.Implements != cf.ID {
		return nil, regErr("rule", ref.Name, "does not implement %s", cf.Name)
	}
	return ref, nil
}

// #endregion resolve-selector

// #region lookups

// Function returns the choice function for id.
func (r *Registry) Function(id uuid.UUID) (*ChoiceFunction, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cf, ok := r.functions[id]
	return cf, ok
}

// Implementation returns any registered implementation for id.
func (r *Registry) Implementation(id uuid.UUID) (*Implementation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	impl, ok := r.impls[id]
	return impl, ok
}

// Tracked returns the tracked site for id.
func (r *Registry) Tracked(id uuid.UUID) (*Site, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sites[id]
	return s, ok
}

// Class returns the class for id.
func (r *Registry) Class(id uuid.UUID) (*Class, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.classes[id]
	return c, ok
}

// ContextClass returns the context class for id.
func (r *Registry) ContextClass(id uuid.UUID) (*ContextClass, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.contexts[id]
	return c, ok
}

// Lookup resolves a registered name of any kind to its id.
func (r *Registry) Lookup(name string) (uuid.UUID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.names[name]
	return id, ok
}

// Descends walks parent links to answer whether child is ancestor or descends
// from it.
func (r *Registry) Descends(child, ancestor uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id := child; id != uuid.Nil; {
		if id == ancestor {
			return true
		}
		cls, ok := r.classes[id]
		if !ok {
			return false
		}
		id = cls.Parent
	}
	return false
}

// Selectors returns every registered rule selector, in registration order per
// function, for partial-order analysis.
func (r *Registry) Selectors() []frame.Selector {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []frame.Selector
	for _, cf := range r.functions {
		for _, rule := range cf.Rules() {
			out = append(out, rule.Selector)
		}
	}
	return out
}

// #endregion lookups
