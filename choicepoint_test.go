package choicepoint

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
)

// #region fixture

type greetWorld struct {
	eng      *Engine
	greet    uuid.UUID
	informal uuid.UUID
	app      uuid.UUID
	bcast    uuid.UUID
	quiet    uuid.UUID
}

func newGreetWorld(t *testing.T) *greetWorld {
	t.Helper()
	w := &greetWorld{eng: New()}

	greetFn := func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		return fmt.Sprintf("%v %v", kwargs["greeting"], args[0]), nil
	}

	var err error
	w.greet, err = w.eng.Func("greet", []string{"name", "greeting"},
		map[string]any{"greeting": "Hi"}, greetFn)
	if err != nil {
		t.Fatalf("register greet: %v", err)
	}
	w.informal, err = w.eng.Impl("informal", w.greet, []string{"name", "greeting"},
		map[string]any{"greeting": "Hey"}, greetFn)
	if err != nil {
		t.Fatalf("register informal: %v", err)
	}
	w.app, err = w.eng.Tracked("app", nil)
	if err != nil {
		t.Fatalf("register app: %v", err)
	}
	w.bcast, err = w.eng.Tracked("broadcast", []string{"audience"})
	if err != nil {
		t.Fatalf("register broadcast: %v", err)
	}
	w.quiet, err = w.eng.ContextClass("quiet")
	if err != nil {
		t.Fatalf("register quiet: %v", err)
	}
	return w
}

func (w *greetWorld) say(t *testing.T, ctx context.Context, name string) string {
	t.Helper()
	out, err := w.eng.Call(ctx, w.greet, []any{name}, nil)
	if err != nil {
		t.Fatalf("call greet: %v", err)
	}
	return out.(string)
}

// #endregion fixture

// #region end-to-end-tests

func TestEndToEndResolution(t *testing.T) {
	w := newGreetWorld(t)
	rules := []struct {
		sel  []Pattern
		impl uuid.UUID
		vals map[string]any
	}{
		{[]Pattern{Fn(w.bcast), Fn(w.greet)}, w.informal, nil},
		{[]Pattern{MatchArgs(w.greet, Args{"name": "VIP"})}, uuid.Nil, map[string]any{"greeting": "Welcome"}},
		{[]Pattern{Ctx(w.quiet), Fn(w.greet)}, uuid.Nil, map[string]any{"greeting": "hi"}},
	}
	for _, r := range rules {
		if err := w.eng.Rule(r.sel, r.impl, r.vals); err != nil {
			t.Fatalf("register rule: %v", err)
		}
	}

	ctx := context.Background()
	if got := w.say(t, ctx, "World"); got != "Hi World" {
		t.Errorf("default: %q", got)
	}

	_, err := w.eng.Track(ctx, w.app, nil, nil, func(ctx context.Context) (any, error) {
		return w.eng.Track(ctx, w.bcast, []any{"everyone"}, nil, func(ctx context.Context) (any, error) {
			if got := w.say(t, ctx, "User"); got != "Hey User" {
				t.Errorf("broadcast: %q", got)
			}
			return nil, nil
		})
	})
	if err != nil {
		t.Fatalf("track: %v", err)
	}

	if got := w.say(t, ctx, "VIP"); got != "Welcome VIP" {
		t.Errorf("arg rule: %q", got)
	}

	qctx, release, err := w.eng.EnterContext(ctx, w.quiet)
	if err != nil {
		t.Fatalf("enter context: %v", err)
	}
	if got := w.say(t, qctx, "Neighbor"); got != "hi Neighbor" {
		t.Errorf("context rule: %q", got)
	}
	release()
}

func TestEndToEndDynamicRule(t *testing.T) {
	w := newGreetWorld(t)
	err := w.eng.DynamicRule(
		[]Pattern{Fn(w.bcast), Fn(w.greet)},
		func(captures []Args) (Decision, error) {
			if captures[0]["audience"] == "friends" {
				return Decision{Impl: w.informal}, nil
			}
			return Decision{Skip: true}, nil
		})
	if err != nil {
		t.Fatalf("register dynamic rule: %v", err)
	}

	run := func(audience string) string {
		var got string
		_, err := w.eng.Track(context.Background(), w.bcast, []any{audience}, nil,
			func(ctx context.Context) (any, error) {
				got = w.say(t, ctx, "User")
				return nil, nil
			})
		if err != nil {
			t.Fatalf("track: %v", err)
		}
		return got
	}

	if got := run("friends"); got != "Hey User" {
		t.Errorf("friends audience: %q", got)
	}
	if got := run("board"); got != "Hi User" {
		t.Errorf("board audience: %q", got)
	}
}

func TestWrap(t *testing.T) {
	w := newGreetWorld(t)
	if err := w.eng.Rule([]Pattern{Fn(w.bcast), Fn(w.greet)}, w.informal, nil); err != nil {
		t.Fatalf("register rule: %v", err)
	}

	wrapped := w.eng.Wrap(w.bcast, func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		return w.eng.Call(ctx, w.greet, []any{"User"}, nil)
	})
	out, err := wrapped(context.Background(), []any{"everyone"}, nil)
	if err != nil {
		t.Fatalf("wrapped call: %v", err)
	}
	if out != "Hey User" {
		t.Errorf("expected wrapped frame to satisfy the rule, got %q", out)
	}
}

func TestWithExecIsolation(t *testing.T) {
	w := newGreetWorld(t)
	if err := w.eng.Rule([]Pattern{Fn(w.app), Fn(w.greet)}, w.informal, nil); err != nil {
		t.Fatalf("register rule: %v", err)
	}

	ctx := WithExec(context.Background())
	_, err := w.eng.Track(ctx, w.app, nil, nil, func(ctx context.Context) (any, error) {
		if got := w.say(t, ctx, "A"); got != "Hey A" {
			t.Errorf("inside app: %q", got)
		}
		// A detached task gets its own empty stack; the app frame is not
		// visible there.
		detached := WithExec(ctx)
		if got := w.say(t, detached, "B"); got != "Hi B" {
			t.Errorf("detached: %q", got)
		}
		return nil, nil
	})
	if err != nil {
		t.Fatalf("track: %v", err)
	}
}

// #endregion end-to-end-tests

// #region trace-tests

func TestEndToEndTrace(t *testing.T) {
	w := newGreetWorld(t)
	if err := w.eng.Rule([]Pattern{Fn(w.bcast), Fn(w.greet)}, w.informal, nil); err != nil {
		t.Fatalf("register rule: %v", err)
	}

	w.eng.TraceStart()
	if !w.eng.Tracing() {
		t.Fatal("tracing not active")
	}
	_, err := w.eng.Track(context.Background(), w.bcast, []any{"everyone"}, nil,
		func(ctx context.Context) (any, error) {
			w.say(t, ctx, "User")
			return nil, nil
		})
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	sess := w.eng.TraceStop()

	if len(sess.Roots) != 1 {
		t.Fatalf("expected 1 traced invocation, got %d", len(sess.Roots))
	}
	node := sess.Roots[0]
	if node.FuncName != "greet" || node.ImplName != "informal" {
		t.Errorf("node: %s [%s]", node.FuncName, node.ImplName)
	}
	if len(sess.Registry) == 0 {
		t.Error("registry snapshot missing")
	}

	var buf bytes.Buffer
	if err := sess.WriteJSON(&buf); err != nil {
		t.Fatalf("write json: %v", err)
	}
	for _, want := range []string{`"items"`, `"registry"`, `"stack_info"`} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("wire output missing %s", want)
		}
	}
}

// #endregion trace-tests

// #region rules-file-tests

func TestLoadRules(t *testing.T) {
	w := newGreetWorld(t)

	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `
description: greeting rules
rules:
  - selector: [broadcast, greet]
    impl: informal
  - selector:
      - func: greet
        args: {name: VIP}
    vals: {greeting: Welcome}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write rules file: %v", err)
	}
	if err := w.eng.LoadRules(path); err != nil {
		t.Fatalf("load rules: %v", err)
	}

	if got := w.say(t, context.Background(), "VIP"); got != "Welcome VIP" {
		t.Errorf("file rule: %q", got)
	}
}

// #endregion rules-file-tests

// #region poset-tests

func TestEnginePoset(t *testing.T) {
	w := newGreetWorld(t)
	for _, sel := range [][]Pattern{
		{Fn(w.greet)},
		{Fn(w.bcast), Fn(w.greet)},
		{Fn(w.app), Fn(w.bcast), Fn(w.greet)},
	} {
		if err := w.eng.Rule(sel, uuid.Nil, nil); err != nil {
			t.Fatalf("register rule: %v", err)
		}
	}

	g := w.eng.Poset()
	edges := g.Edges()
	if len(edges) != 2 {
		t.Fatalf("expected 2 reduced edges, got %v", edges)
	}
}

// #endregion poset-tests
