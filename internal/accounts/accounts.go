// Package accounts loads the tracked-handle list.
//
// The list is a plain text file: one handle per line, optional leading "@",
// "#" lines are comments. Handles are case-insensitive; first occurrence
// wins and order is preserved.
package accounts

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Load reads the handle list. It is the only input whose failure is fatal
// to a run: with no accounts there is nothing to relay.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("accounts list: %w", err)
	}
	defer f.Close()

	var (
		out  []string
		seen = map[string]bool{}
	)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		h := Canonical(sc.Text())
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("accounts list: %w", err)
	}
	return out, nil
}

// Canonical normalizes one raw line to a handle, or "" if the line carries none.
func Canonical(line string) string {
	s := strings.TrimSpace(line)
	if s == "" || strings.HasPrefix(s, "#") {
		return ""
	}
	s = strings.TrimPrefix(s, "@")
	return strings.ToLower(strings.TrimSpace(s))
}
