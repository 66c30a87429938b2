// Package ruleset loads declarative static-rule files. A rule file names
// already-registered sites, so it can only be applied after the setup phase
// has registered every function, implementation, class, and context it refers
// to. Dynamic rules are code and have no file form.
package ruleset

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/choicepoint/internal/frame"
	"github.com/danielpatrickdp/choicepoint/internal/registry"
)

// #region file-types

// File is the top-level structure of a rule file.
type File struct {
	Description string     `yaml:"description"`
	Rules       []RuleSpec `yaml:"rules"`
}

// RuleSpec is one static rule: a selector element chain, an optional
// implementation name, and keyword overrides.
type RuleSpec struct {
	Selector []Element      `yaml:"selector"`
	Impl     string         `yaml:"impl"`
	Vals     map[string]any `yaml:"vals"`
}

// Element is one selector element. A plain scalar names a tracked callable or
// choice function; the map forms select argument-constrained calls, class
// methods, and ambient contexts.
type Element struct {
	Name       string
	Func       string
	Args       map[string]any
	Class      string
	Method     string
	Subclasses bool
	Context    string
}

type elementMap struct {
	Func       string         `yaml:"func"`
	Args       map[string]any `yaml:"args"`
	Class      string         `yaml:"class"`
	Method     string         `yaml:"method"`
	Subclasses bool           `yaml:"subclasses"`
	Context    string         `yaml:"context"`
}

// UnmarshalYAML accepts either a scalar name or one of the map forms.
func (e *Element) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&e.Name)
	}
	var m elementMap
	if err := value.Decode(&m); err != nil {
		return err
	}
	e.Func = m.Func
	e.Args = m.Args
	e.Class = m.Class
	e.Method = m.Method
	e.Subclasses = m.Subclasses
	e.Context = m.Context
	return nil
}

// #endregion file-types

// #region load

// Load reads and parses a YAML rule file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses rule file contents.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rule file: %w", err)
	}
	return &f, nil
}

// #endregion load

// #region apply

// Apply registers every rule in the file against the registry, resolving
// names to registered ids.
func Apply(f *File, reg *registry.Registry) error {
	for i, spec := range f.Rules {
		items, err := buildSelector(spec.Selector, reg)
		if err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}

		impl := uuid.Nil
		if spec.Impl != "" {
			id, ok := reg.Lookup(spec.Impl)
			if !ok {
				return fmt.Errorf("rule %d: unknown implementation %q", i, spec.Impl)
			}
			impl = id
		}

		if err := reg.RegisterStaticRule(items, impl, spec.Vals); err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
	}
	return nil
}

func buildSelector(elems []Element, reg *registry.Registry) ([]frame.Pattern, error) {
	if len(elems) == 0 {
		return nil, fmt.Errorf("empty selector")
	}
	items := make([]frame.Pattern, len(elems))
	for i, e := range elems {
		p, err := buildElement(e, reg)
		if err != nil {
			return nil, err
		}
		items[i] = p
	}
	return items, nil
}

func buildElement(e Element, reg *registry.Registry) (frame.Pattern, error) {
	switch {
	case e.Name != "":
		id, ok := reg.Lookup(e.Name)
		if !ok {
			return nil, fmt.Errorf("unknown name %q", e.Name)
		}
		return frame.FuncPattern{Site: id}, nil
	case e.Func != "":
		id, ok := reg.Lookup(e.Func)
		if !ok {
			return nil, fmt.Errorf("unknown function %q", e.Func)
		}
		if len(e.Args) == 0 {
			return frame.FuncPattern{Site: id}, nil
		}
		return frame.ArgPattern{Site: id, Constraints: frame.Args(e.Args)}, nil
	case e.Class != "":
		if e.Method == "" {
			return nil, fmt.Errorf("class element %q needs a method", e.Class)
		}
		id, ok := reg.Lookup(e.Class)
		if !ok {
			return nil, fmt.Errorf("unknown class %q", e.Class)
		}
		return frame.ClassMethodPattern{Class: id, Method: e.Method, Subclasses: e.Subclasses}, nil
	case e.Context != "":
		id, ok := reg.Lookup(e.Context)
		if !ok {
			return nil, fmt.Errorf("unknown context class %q", e.Context)
		}
		return frame.ContextPattern{Class: id}, nil
	default:
		return nil, fmt.Errorf("empty selector element")
	}
}

// #endregion apply
