package frame

import (
	"errors"
	"testing"
)

// #region push-pop-tests
func TestPushPop(t *testing.T) {
	var s Stack

	t1 := s.Push(CallSite(NameID("a"), "a", nil))
	t2 := s.Push(CallSite(NameID("b"), "b", nil))
	if s.Depth() != 2 {
		t.Fatalf("expected depth 2, got %d", s.Depth())
	}

	if err := s.Pop(t2); err != nil {
		t.Fatalf("pop b: %v", err)
	}
	if err := s.Pop(t1); err != nil {
		t.Fatalf("pop a: %v", err)
	}
	if s.Depth() != 0 {
		t.Fatalf("expected empty stack, got depth %d", s.Depth())
	}
}

func TestPopOutOfOrder(t *testing.T) {
	var s Stack

	t1 := s.Push(CallSite(NameID("a"), "a", nil))
	s.Push(CallSite(NameID("b"), "b", nil))

	err := s.Pop(t1)
	if err == nil {
		t.Fatal("expected imbalance error")
	}
	var imb ContextStackImbalance
	if !errors.As(err, &imb) {
		t.Fatalf("expected ContextStackImbalance, got %T", err)
	}
	if imb.Want != 1 || imb.Got != 2 {
		t.Errorf("unexpected imbalance detail: %+v", imb)
	}
}

func TestMustPopPanics(t *testing.T) {
	var s Stack
	s.Push(CallSite(NameID("a"), "a", nil))
	s.Push(CallSite(NameID("b"), "b", nil))

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on unbalanced MustPop")
		}
	}()
	s.MustPop(1)
}

// #endregion push-pop-tests

// #region snapshot-tests
func TestSnapshotIsCopy(t *testing.T) {
	var s Stack
	s.Push(CallSite(NameID("a"), "a", Args{"x": 1}))
	token := s.Push(CallSite(NameID("b"), "b", nil))

	snap := s.Snapshot()
	s.MustPop(token)

	if len(snap) != 2 {
		t.Fatalf("expected snapshot length 2, got %d", len(snap))
	}
	if snap[1].Label != "b" {
		t.Errorf("expected frame b preserved, got %q", snap[1].Label)
	}
}

// #endregion snapshot-tests

// #region describe-tests
func TestDescribe(t *testing.T) {
	cases := []struct {
		name  string
		frame CallFrame
		want  string
	}{
		{"call", CallSite(NameID("greet"), "greet", Args{"name": "World"}), "greet(name=World)"},
		{"method", MethodSite(NameID("Animal"), NameID("Dog"), "speak", "Animal", nil), "Animal.speak()"},
		{"context", ContextScope(NameID("quiet"), "quiet"), "<context quiet>"},
	}
	for _, tc := range cases {
		if got := tc.frame.Describe(); got != tc.want {
			t.Errorf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

// #endregion describe-tests
