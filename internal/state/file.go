package state

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"

	logx "hookrelay/pkg/logx"
)

// fileStore is the dependency-free backend: one JSON document, read whole,
// written whole via tmp+rename.
//
// There is no native versioning; the file is assumed single-writer (the
// original deployment ran one scheduled job at a time). Load still reports
// a content hash as the version so logs can show what was read, but Commit
// never conflicts.
type fileStore struct {
	path string
	log  logx.Logger
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("state.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &fileStore{path: path, log: log}, nil
}

func (s *fileStore) Load(ctx context.Context) (*State, Version, error) {
	_ = ctx
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.log.Debug("state file absent; starting empty", logx.String("path", s.path))
		return New(), "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	st, err := decode(b)
	if err != nil {
		return nil, "", err
	}
	return st, contentVersion(b), nil
}

func (s *fileStore) Commit(ctx context.Context, st *State, v Version) (Version, error) {
	_ = ctx
	_ = v // single-writer; no conditional check
	b, err := encode(st)
	if err != nil {
		return "", err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return "", err
	}
	return contentVersion(b), nil
}

func (s *fileStore) Close() error { return nil }

func contentVersion(b []byte) Version {
	h := fnv.New64a()
	_, _ = h.Write(b)
	return Version(fmt.Sprintf("%016x", h.Sum64()))
}
