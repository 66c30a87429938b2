package tracestore

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/choicepoint/internal/trace"
)

// #region helpers

func tempStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "choicepoint.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleSession() *trace.Session {
	greetID := uuid.NewSHA1(uuid.NameSpaceOID, []byte("greet"))
	outerID := uuid.NewSHA1(uuid.NameSpaceOID, []byte("pipeline"))

	inner := &trace.Node{
		Func:     greetID,
		FuncName: "greet",
		Impl:     greetID,
		ImplName: "greet",
		Rules: []trace.MatchedRule{{
			Selector: "pipeline greet",
			Impl:     greetID.String(),
			Captures: map[string]string{},
		}},
		Args: []string{"World"},
	}
	outer := &trace.Node{
		Func:     outerID,
		FuncName: "pipeline",
		Impl:     outerID,
		ImplName: "pipeline",
		Items:    []*trace.Node{inner},
	}
	return &trace.Session{Roots: []*trace.Node{outer}}
}

// #endregion helpers

// #region save-load-tests

func TestSaveAndGetSession(t *testing.T) {
	store := tempStore(t)

	id, err := store.SaveSession("run-1", sampleSession())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if id == "" {
		t.Fatal("empty session id")
	}

	got, err := store.GetSession(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Roots) != 1 {
		t.Fatalf("expected 1 root, got %d", len(got.Roots))
	}
	root := got.Roots[0]
	if len(root.Items) != 1 {
		t.Fatalf("nesting lost: %+v", root)
	}
	if root.Items[0].Rules[0].Selector != "pipeline greet" {
		t.Errorf("rule lost: %+v", root.Items[0].Rules)
	}
}

func TestGetSessionUnknown(t *testing.T) {
	store := tempStore(t)
	if _, err := store.GetSession("nope"); err == nil {
		t.Fatal("expected error for unknown session")
	}
}

func TestListSessions(t *testing.T) {
	store := tempStore(t)

	if _, err := store.SaveSession("first", sampleSession()); err != nil {
		t.Fatalf("save first: %v", err)
	}
	if _, err := store.SaveSession("", sampleSession()); err != nil {
		t.Fatalf("save second: %v", err)
	}

	sessions, err := store.ListSessions(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	for _, s := range sessions {
		if s.Invocations != 2 {
			t.Errorf("session %s: expected 2 invocations, got %d", s.SessionID, s.Invocations)
		}
	}

	limited, err := store.ListSessions(1)
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("limit ignored, got %d sessions", len(limited))
	}
}

func TestListInvocations(t *testing.T) {
	store := tempStore(t)
	id, err := store.SaveSession("run", sampleSession())
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	rows, err := store.ListInvocations(id)
	if err != nil {
		t.Fatalf("list invocations: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	// Pre-order: pipeline at depth 0, greet at depth 1.
	if rows[0].FuncName != "pipeline" || rows[0].Depth != 0 {
		t.Errorf("row 0: %+v", rows[0])
	}
	if rows[1].FuncName != "greet" || rows[1].Depth != 1 || rows[1].RuleCount != 1 {
		t.Errorf("row 1: %+v", rows[1])
	}
}

func TestRawSessionIsValidWire(t *testing.T) {
	store := tempStore(t)
	id, err := store.SaveSession("run", sampleSession())
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	data, err := store.RawSession(id)
	if err != nil {
		t.Fatalf("raw: %v", err)
	}

	var sess trace.Session
	if err := sess.UnmarshalJSON(data); err != nil {
		t.Fatalf("stored wire form does not decode: %v", err)
	}
	if len(sess.Roots) != 1 {
		t.Errorf("expected 1 root, got %d", len(sess.Roots))
	}
}

// #endregion save-load-tests
