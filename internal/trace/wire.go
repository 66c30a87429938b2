package trace

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// #region wire-shapes

type wireRuleRef struct {
	Selector string `json:"selector"`
	Impl     string `json:"impl"`
}

type wireRule struct {
	Rule     wireRuleRef       `json:"rule"`
	Captures map[string]string `json:"captures"`
	Vals     string            `json:"vals"`
}

type wireNode struct {
	Func         string            `json:"func"`
	Impl         string            `json:"impl"`
	Rules        []wireRule        `json:"rules"`
	StackInfo    []string          `json:"stack_info"`
	Args         []string          `json:"args"`
	Kwargs       map[string]string `json:"kwargs"`
	ChoiceKwargs map[string]string `json:"choice_kwargs"`
	Items        []wireNode        `json:"items"`
}

type wireSession struct {
	Items    []wireNode `json:"items"`
	Registry Snapshot   `json:"registry"`
}

// #endregion wire-shapes

// #region encode

func toWire(n *Node) wireNode {
	w := wireNode{
		Func:         n.Func.String(),
		Impl:         n.Impl.String(),
		Rules:        make([]wireRule, len(n.Rules)),
		StackInfo:    n.StackInfo,
		Args:         n.Args,
		Kwargs:       n.Kwargs,
		ChoiceKwargs: n.ChoiceKwargs,
		Items:        make([]wireNode, len(n.Items)),
	}
	if w.Args == nil {
		w.Args = []string{}
	}
	if w.StackInfo == nil {
		w.StackInfo = []string{}
	}
	if w.Kwargs == nil {
		w.Kwargs = map[string]string{}
	}
	if w.ChoiceKwargs == nil {
		w.ChoiceKwargs = map[string]string{}
	}
	for i, r := range n.Rules {
		w.Rules[i] = wireRule{
			Rule:     wireRuleRef{Selector: r.Selector, Impl: r.Impl},
			Captures: r.Captures,
			Vals:     r.Vals,
		}
		if w.Rules[i].Captures == nil {
			w.Rules[i].Captures = map[string]string{}
		}
	}
	if w.Rules == nil {
		w.Rules = []wireRule{}
	}
	return w
}

// MarshalJSON emits the session in the wire schema: a root item forest plus
// the registry snapshot.
func (s *Session) MarshalJSON() ([]byte, error) {
	out := wireSession{
		Items:    make([]wireNode, len(s.Roots)),
		Registry: s.Registry,
	}
	if out.Registry == nil {
		out.Registry = Snapshot{}
	}
	for i, n := range s.Roots {
		out.Items[i] = toWire(n)
	}
	return json.Marshal(out)
}

// WriteJSON writes the indented wire form of the session.
func (s *Session) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// #endregion encode

// #region decode

func fromWire(w wireNode, reg Snapshot) *Node {
	n := &Node{
		Func:         parseID(w.Func),
		Impl:         parseID(w.Impl),
		StackInfo:    w.StackInfo,
		Args:         w.Args,
		Kwargs:       w.Kwargs,
		ChoiceKwargs: w.ChoiceKwargs,
	}
	if fs, ok := reg[w.Func]; ok {
		n.FuncName = fs.Interface.Func
	}
	n.ImplName = implName(reg, w.Impl)
	for _, r := range w.Rules {
		n.Rules = append(n.Rules, MatchedRule{
			Selector: r.Rule.Selector,
			Impl:     r.Rule.Impl,
			Captures: r.Captures,
			Vals:     r.Vals,
		})
	}
	for _, c := range w.Items {
		child := fromWire(c, reg)
		child.parent = n
		n.Items = append(n.Items, child)
	}
	return n
}

func parseID(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return id
}

func implName(reg Snapshot, implID string) string {
	for _, fs := range reg {
		if fs.Interface.ID == implID {
			return fs.Interface.Func
		}
		for name, info := range fs.Funcs {
			if info.ID == implID {
				return name
			}
		}
	}
	return ""
}

// UnmarshalJSON restores a session from its wire form, resolving display names
// through the embedded registry snapshot.
func (s *Session) UnmarshalJSON(data []byte) error {
	var w wireSession
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	s.Registry = w.Registry
	s.Roots = nil
	for _, item := range w.Items {
		s.Roots = append(s.Roots, fromWire(item, w.Registry))
	}
	return nil
}

// #endregion decode

// #region render

// Render writes the indented human-readable form of the forest.
func (s *Session) Render(w io.Writer) {
	for _, n := range s.Roots {
		renderNode(w, n, 0)
	}
}

func renderNode(w io.Writer, n *Node, indent int) {
	prefix := ""
	for i := 0; i < indent; i++ {
		prefix += " "
	}
	fn := n.FuncName
	if fn == "" {
		fn = n.Func.String()
	}
	impl := n.ImplName
	if impl == "" {
		impl = n.Impl.String()
	}
	fmt.Fprintf(w, "%s%s [%s]\n", prefix, fn, impl)
	fmt.Fprintf(w, "%s  Args: %v, Kwargs: %v, Choice Kwargs: %v\n", prefix, n.Args, n.Kwargs, n.ChoiceKwargs)
	if len(n.Rules) == 0 {
		fmt.Fprintf(w, "%s  Rules: No rules\n", prefix)
	} else {
		for _, r := range n.Rules {
			fmt.Fprintf(w, "%s  Rule: %s [%s] %s\n", prefix, r.Selector, r.Impl, r.Vals)
		}
	}
	for _, c := range n.Items {
		renderNode(w, c, indent+2)
	}
}

// #endregion render
