package state

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	logx "hookrelay/pkg/logx"
)

func newFileStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "state.json")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestFileLoadAbsent(t *testing.T) {
	t.Parallel()
	st := newFileStore(t)

	s, v, err := st.Load(context.Background())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if v != "" {
		t.Fatalf("version = %q, want absent", v)
	}
	if s.Len() != 0 {
		t.Fatalf("expected empty state, got %d accounts", s.Len())
	}
}

func TestFileCommitLoadRoundtrip(t *testing.T) {
	t.Parallel()
	st := newFileStore(t)
	ctx := context.Background()

	s, v, err := st.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	s.SetIdentity("alice", "1001")
	s.Advance("alice", 500)

	v2, err := st.Commit(ctx, s, v)
	if err != nil {
		t.Fatalf("Commit error: %v", err)
	}
	if v2 == "" {
		t.Fatal("Commit returned absent version")
	}

	got, v3, err := st.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if v3 != v2 {
		t.Fatalf("reload version = %q, want %q", v3, v2)
	}
	if cur, _ := got.Cursor("alice"); cur != 500 {
		t.Fatalf("cursor = %d, want 500", cur)
	}
	if id, _ := got.Identity("alice"); id != "1001" {
		t.Fatalf("id = %q, want 1001", id)
	}
}

func TestFileCommitLeavesNoTempFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	s := New()
	s.Advance("alice", 1)
	if _, err := st.Commit(context.Background(), s, ""); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestFileLoadMalformed(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{nope"), 0o600); err != nil {
		t.Fatal(err)
	}
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	if _, _, err := st.Load(context.Background()); err == nil {
		t.Fatal("expected error for malformed state file")
	}
}
