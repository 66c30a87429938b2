package trace

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

// #region helpers

var (
	greetID    = uuid.NewSHA1(uuid.NameSpaceOID, []byte("greet"))
	informalID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("informal"))
	outerID    = uuid.NewSHA1(uuid.NameSpaceOID, []byte("pipeline"))
)

func greetNode() *Node {
	return &Node{
		Func:     greetID,
		FuncName: "greet",
		Impl:     informalID,
		ImplName: "informal",
		Rules: []MatchedRule{{
			Selector: "broadcast greet",
			Impl:     informalID.String(),
			Captures: map[string]string{"audience": "all"},
			Vals:     "",
		}},
		StackInfo:    []string{"broadcast(audience=all)", "greet(name=User)"},
		Args:         []string{"User"},
		Kwargs:       map[string]string{},
		ChoiceKwargs: map[string]string{"greeting": "Hey"},
	}
}

func greetSnapshot() Snapshot {
	return Snapshot{
		greetID.String(): FunctionSnapshot{
			ID: greetID.String(),
			Interface: ImplementationInfo{
				ID:       greetID.String(),
				Func:     "greet",
				Defaults: map[string]string{"greeting": "Hi"},
			},
			Funcs: map[string]ImplementationInfo{
				"informal": {
					ID:       informalID.String(),
					Func:     "informal",
					Defaults: map[string]string{"greeting": "Hey"},
				},
			},
			Rules: []RuleInfo{{Selector: "broadcast greet", Impl: informalID.String(), Vals: ""}},
		},
	}
}

// #endregion helpers

// #region recorder-tests

func TestRecorderNesting(t *testing.T) {
	r := NewRecorder()
	r.Start()

	outer := &Node{Func: outerID, FuncName: "pipeline"}
	cursor, ok := r.Begin(nil, outer)
	if !ok || cursor != outer {
		t.Fatalf("begin outer: ok=%v", ok)
	}

	inner := greetNode()
	cursor, ok = r.Begin(cursor, inner)
	if !ok {
		t.Fatal("begin inner failed")
	}
	cursor = r.End(cursor)
	if cursor != outer {
		t.Fatal("end inner did not restore outer cursor")
	}
	cursor = r.End(cursor)
	if cursor != nil {
		t.Fatal("end outer did not restore root cursor")
	}

	sess := r.Stop(nil)
	if len(sess.Roots) != 1 {
		t.Fatalf("expected 1 root, got %d", len(sess.Roots))
	}
	if len(sess.Roots[0].Items) != 1 || sess.Roots[0].Items[0].FuncName != "greet" {
		t.Errorf("unexpected forest: %+v", sess.Roots[0])
	}
}

func TestRecorderInactive(t *testing.T) {
	r := NewRecorder()
	if r.Active() {
		t.Fatal("recorder active before start")
	}

	cursor, ok := r.Begin(nil, greetNode())
	if ok || cursor != nil {
		t.Fatal("begin recorded without an open session")
	}

	r.Start()
	if !r.Active() {
		t.Fatal("recorder inactive after start")
	}
	r.Stop(nil)
	if r.Active() {
		t.Fatal("recorder active after stop")
	}
}

func TestRecorderStartDiscardsPrevious(t *testing.T) {
	r := NewRecorder()
	r.Start()
	r.Begin(nil, greetNode())

	r.Start()
	sess := r.Stop(nil)
	if len(sess.Roots) != 0 {
		t.Fatalf("expected restart to discard nodes, got %d roots", len(sess.Roots))
	}
}

// #endregion recorder-tests

// #region wire-tests

func TestWireFieldNames(t *testing.T) {
	sess := &Session{Roots: []*Node{greetNode()}, Registry: greetSnapshot()}
	data, err := json.Marshal(sess)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal top level: %v", err)
	}
	for _, key := range []string{"items", "registry"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing top-level key %q", key)
		}
	}

	var items []map[string]json.RawMessage
	if err := json.Unmarshal(raw["items"], &items); err != nil {
		t.Fatalf("unmarshal items: %v", err)
	}
	node := items[0]
	for _, key := range []string{"func", "impl", "rules", "stack_info", "args", "kwargs", "choice_kwargs", "items"} {
		if _, ok := node[key]; !ok {
			t.Errorf("missing node key %q", key)
		}
	}

	var rules []map[string]json.RawMessage
	if err := json.Unmarshal(node["rules"], &rules); err != nil {
		t.Fatalf("unmarshal rules: %v", err)
	}
	for _, key := range []string{"rule", "captures", "vals"} {
		if _, ok := rules[0][key]; !ok {
			t.Errorf("missing rule key %q", key)
		}
	}
}

func TestWireEmptyCollections(t *testing.T) {
	// A bare node must serialize empty collections, not nulls.
	sess := &Session{Roots: []*Node{{Func: greetID, Impl: greetID}}}
	data, err := json.Marshal(sess)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(data)
	for _, want := range []string{`"rules":[]`, `"args":[]`, `"kwargs":{}`, `"items":[]`, `"stack_info":[]`} {
		if !strings.Contains(s, want) {
			t.Errorf("expected %s in %s", want, s)
		}
	}
}

func TestWireRoundtrip(t *testing.T) {
	orig := &Session{Roots: []*Node{greetNode()}, Registry: greetSnapshot()}
	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got Session
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if len(got.Roots) != 1 {
		t.Fatalf("expected 1 root, got %d", len(got.Roots))
	}
	n := got.Roots[0]
	if n.Func != greetID || n.Impl != informalID {
		t.Errorf("ids lost: %s %s", n.Func, n.Impl)
	}
	// Display names come back through the embedded snapshot.
	if n.FuncName != "greet" || n.ImplName != "informal" {
		t.Errorf("names not resolved: %q %q", n.FuncName, n.ImplName)
	}
	if diff := cmp.Diff(orig.Roots[0].Rules, n.Rules); diff != "" {
		t.Errorf("rules mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(orig.Roots[0].ChoiceKwargs, n.ChoiceKwargs); diff != "" {
		t.Errorf("choice kwargs mismatch (-want +got):\n%s", diff)
	}
}

// #endregion wire-tests

// #region render-tests

func TestRender(t *testing.T) {
	parent := &Node{Func: outerID, FuncName: "pipeline", Impl: outerID, ImplName: "pipeline"}
	parent.Items = []*Node{greetNode()}
	sess := &Session{Roots: []*Node{parent}}

	var buf bytes.Buffer
	sess.Render(&buf)
	out := buf.String()

	for _, want := range []string{
		"pipeline [pipeline]",
		"  greet [informal]",
		"Rule: broadcast greet",
		"Rules: No rules",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q:\n%s", want, out)
		}
	}
}

// #endregion render-tests

// #region format-tests

func TestFormatVals(t *testing.T) {
	cases := []struct {
		name string
		in   map[string]any
		want string
	}{
		{"empty", nil, ""},
		{"single", map[string]any{"greeting": "Hi"}, "greeting=Hi"},
		{"sorted", map[string]any{"b": 2, "a": 1}, "a=1, b=2"},
		{"nil value", map[string]any{"x": nil}, "x=None"},
	}
	for _, tc := range cases {
		if got := FormatVals(tc.in); got != tc.want {
			t.Errorf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

// #endregion format-tests
