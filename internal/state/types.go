package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	// ErrConflict means the backing document changed between Load and
	// Commit (another run won). The caller must not retry the commit.
	ErrConflict = errors.New("state: version conflict")

	// ErrUnavailable means the backing store could not be reached or
	// refused us. A run may proceed on empty in-memory state but must not
	// commit, or it would erase durable history.
	ErrUnavailable = errors.New("state: store unavailable")
)

// Version is an opaque revision token. Empty means "absent" (the document
// did not exist at load time).
type Version string

// Config configures the state store.
//
// Driver values:
//   - "file": whole-document JSON on local disk (single-writer)
//   - "remote": versioned HTTP object, ETag / If-Match
//   - "sqlite": SQLite database file (optional build tag)
type Config struct {
	Driver      string
	Path        string        // file, sqlite
	URL         string        // remote
	Token       string        // remote bearer credential
	Timeout     time.Duration // remote request timeout; 0 means default
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Account is one tracked handle's durable record.
type Account struct {
	ID         string `json:"id,omitempty"`
	LastPostID uint64 `json:"last_post_id,omitempty,string"`
}

// State is the in-memory working copy of the persisted document.
// It is mutated only by the relay cycle (single thread, see internal/relay).
type State struct {
	users map[string]*Account
	dirty bool
}

func New() *State {
	return &State{users: map[string]*Account{}}
}

// Identity returns the cached upstream id for handle, if resolved before.
func (s *State) Identity(handle string) (string, bool) {
	a := s.users[handle]
	if a == nil || a.ID == "" {
		return "", false
	}
	return a.ID, true
}

// SetIdentity caches a resolved id. Ids are stable upstream, so this is
// effectively write-once.
func (s *State) SetIdentity(handle, id string) {
	if handle == "" || id == "" {
		return
	}
	a := s.users[handle]
	if a == nil {
		a = &Account{}
		s.users[handle] = a
	}
	if a.ID != id {
		a.ID = id
		s.dirty = true
	}
}

// Cursor returns the last delivered post id for handle. ok is false when the
// account has never had a post relayed.
func (s *State) Cursor(handle string) (uint64, bool) {
	a := s.users[handle]
	if a == nil || a.LastPostID == 0 {
		return 0, false
	}
	return a.LastPostID, true
}

// Advance moves the cursor forward. The cursor is monotonic: an id at or
// below the current cursor is refused, so an out-of-band fetch returning
// older data can never rewind durable progress.
func (s *State) Advance(handle string, id uint64) bool {
	if handle == "" || id == 0 {
		return false
	}
	a := s.users[handle]
	if a == nil {
		a = &Account{}
		s.users[handle] = a
	}
	if id <= a.LastPostID {
		return false
	}
	a.LastPostID = id
	s.dirty = true
	return true
}

// Dirty reports whether anything changed since load.
func (s *State) Dirty() bool { return s.dirty }

// MarkClean clears the dirty flag. Store drivers call it after rebuilding a
// loaded document so a run with no new detections commits nothing.
func (s *State) MarkClean() { s.dirty = false }

// Len returns the number of known accounts.
func (s *State) Len() int { return len(s.users) }

// Handles returns known handles in stable order (for logging).
func (s *State) Handles() []string {
	out := make([]string, 0, len(s.users))
	for h := range s.users {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// ---- wire document ----

const docVersion = 1

// document is the serialized shape, kept compatible with the historical
// state.json layout: {"version":1,"users":{"<handle>":{"id":...,"last_post_id":...}}}.
type document struct {
	Version int                 `json:"version"`
	Users   map[string]*Account `json:"users"`
}

func encode(s *State) ([]byte, error) {
	doc := document{Version: docVersion, Users: s.users}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func decode(b []byte) (*State, error) {
	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("state: malformed document: %w", err)
	}
	if doc.Users == nil {
		doc.Users = map[string]*Account{}
	}
	return &State{users: doc.Users}, nil
}
