package state

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	logx "hookrelay/pkg/logx"
)

// remoteStore keeps the document in a versioned HTTP object store.
//
// Protocol:
//   - GET url            -> 200 body + ETag, or 404 (absent)
//   - PUT url If-Match   -> 200/201/204 + new ETag, or 412 (version moved)
//   - PUT url If-None-Match: * when creating from an absent version
//
// The ETag is treated as fully opaque. A 412 (or 409) means another run
// committed first; the caller gives up its cursor advances for this run.
type remoteStore struct {
	url   string
	token string
	http  *http.Client
	log   logx.Logger
}

const defaultRemoteTimeout = 15 * time.Second

func openRemote(cfg Config, log logx.Logger) (Store, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, errors.New("state.url is required for remote driver")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}
	return &remoteStore{
		url:   url,
		token: strings.TrimSpace(cfg.Token),
		http:  &http.Client{Timeout: timeout},
		log:   log,
	}, nil
}

func (s *remoteStore) Load(ctx context.Context) (*State, Version, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, "", err
	}
	s.auth(req)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		st, err := decode(b)
		if err != nil {
			return nil, "", err
		}
		return st, Version(resp.Header.Get("ETag")), nil
	case http.StatusNotFound:
		s.log.Debug("remote state absent; starting empty", logx.String("url", s.url))
		return New(), "", nil
	default:
		return nil, "", fmt.Errorf("%w: GET %s: status %d", ErrUnavailable, s.url, resp.StatusCode)
	}
}

func (s *remoteStore) Commit(ctx context.Context, st *State, v Version) (Version, error) {
	b, err := encode(st)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	s.auth(req)
	req.Header.Set("Content-Type", "application/json")
	if v == "" {
		// Create-only: lose the race cleanly if someone else created it.
		req.Header.Set("If-None-Match", "*")
	} else {
		req.Header.Set("If-Match", string(v))
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return Version(resp.Header.Get("ETag")), nil
	case http.StatusPreconditionFailed, http.StatusConflict:
		return "", fmt.Errorf("%w: PUT %s: status %d", ErrConflict, s.url, resp.StatusCode)
	default:
		return "", fmt.Errorf("state: PUT %s: status %d", s.url, resp.StatusCode)
	}
}

func (s *remoteStore) Close() error {
	s.http.CloseIdleConnections()
	return nil
}

func (s *remoteStore) auth(req *http.Request) {
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
}
