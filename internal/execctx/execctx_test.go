package execctx

import (
	"context"
	"testing"

	"github.com/danielpatrickdp/choicepoint/internal/frame"
)

func TestEnsureReusesState(t *testing.T) {
	ctx, st := Ensure(context.Background())
	ctx2, st2 := Ensure(ctx)

	if st2 != st {
		t.Fatal("ensure created a second state on the same context")
	}
	if ctx2 != ctx {
		t.Fatal("ensure rederived the context")
	}
}

func TestWithInstallsFreshState(t *testing.T) {
	ctx, st := With(context.Background())
	st.Stack.Push(frame.CallSite(frame.NameID("a"), "a", nil))

	_, st2 := With(ctx)
	if st2 == st {
		t.Fatal("with reused the existing state")
	}
	if st2.Stack.Depth() != 0 {
		t.Fatalf("fresh state has depth %d", st2.Stack.Depth())
	}

	got, ok := From(ctx)
	if !ok || got != st {
		t.Fatal("original context lost its state")
	}
}
