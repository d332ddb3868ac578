package accounts

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestCanonical(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "alice", want: "alice"},
		{name: "sigil", in: "@alice", want: "alice"},
		{name: "case", in: "ALICE", want: "alice"},
		{name: "padded", in: "  @Bob \n", want: "bob"},
		{name: "blank", in: "   ", want: ""},
		{name: "comment", in: "# tracked since 2024", want: ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := Canonical(tt.in); got != tt.want {
				t.Fatalf("Canonical(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "accounts.txt")
	data := "@alice\n\n# infra folks\nbob\nALICE\n@carol\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	want := []string{"alice", "bob", "carol"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Load = %v, want %v", got, want)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	t.Parallel()
	if _, err := Load(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Fatal("expected error for missing accounts file")
	}
}
