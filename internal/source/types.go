package source

import "errors"

var (
	// ErrRateLimited means both the attempt and its single retry hit the
	// upstream rate limit. The operation is abandoned for this run.
	ErrRateLimited = errors.New("source: rate limited")

	// ErrResolutionFailed covers any non-success, non-rate-limit outcome
	// of a handle lookup. Account-scoped: skip the account, not the run.
	ErrResolutionFailed = errors.New("source: resolution failed")

	// ErrFetchFailed covers any non-success, non-rate-limit outcome of a
	// posts fetch. Account-scoped.
	ErrFetchFailed = errors.New("source: fetch failed")

	// ErrMalformedResponse means a 2xx body was missing expected fields.
	ErrMalformedResponse = errors.New("source: malformed response")
)

// Post is one fetched upstream post. Ids are numeric tokens wider than
// float precision allows; they stay uint64 end to end.
type Post struct {
	ID   uint64
	Text string
}

// IdentityCache is the resolved-id cache consulted before any lookup.
// *state.State satisfies it.
type IdentityCache interface {
	Identity(handle string) (string, bool)
	SetIdentity(handle, id string)
}

// wire shapes; field absence is an error, not a zero value.

type userEnvelope struct {
	Data *struct {
		ID string `json:"id"`
	} `json:"data"`
}

type postsEnvelope struct {
	Data []struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}
