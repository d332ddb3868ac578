// Package relay drives the polling cycle: for each tracked account,
// resolve -> fetch -> select -> emit -> advance, then one state commit for
// the whole run.
//
// Everything is strictly sequential. The per-account cursor update and the
// shared upstream/destination quotas are much easier to reason about
// serially, and pacing between posts and accounts keeps both sides of the
// relay under their rate limits.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"hookrelay/internal/publish"
	"hookrelay/internal/source"
	"hookrelay/internal/state"
	logx "hookrelay/pkg/logx"
)

// Source is the slice of the upstream client the cycle needs.
type Source interface {
	ResolveID(ctx context.Context, handle string, cache source.IdentityCache) (string, error)
	FetchRecent(ctx context.Context, userID string, sinceID uint64) ([]source.Post, error)
}

// Config tunes one cycle.
type Config struct {
	// MaxPostsPerAccount caps emissions per account per run. The OLDEST
	// unseen posts go first so the chat reads chronologically across runs.
	MaxPostsPerAccount int
	// PostDelay spaces consecutive deliveries (shared across accounts).
	PostDelay time.Duration
	// AccountDelay spaces consecutive accounts.
	AccountDelay time.Duration
}

// Report summarizes one cycle for logs and exit status.
type Report struct {
	Accounts  int
	Published int
	Errors    int
	Committed bool
}

type Runner struct {
	store state.Store
	src   Source
	pub   publish.Publisher
	cfg   Config
	log   logx.Logger

	postPace *rate.Limiter
	acctPace *rate.Limiter
}

func New(store state.Store, src Source, pub publish.Publisher, cfg Config, log logx.Logger) *Runner {
	if cfg.MaxPostsPerAccount <= 0 {
		cfg.MaxPostsPerAccount = 2
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Runner{
		store:    store,
		src:      src,
		pub:      pub,
		cfg:      cfg,
		log:      log,
		postPace: pacer(cfg.PostDelay),
		acctPace: pacer(cfg.AccountDelay),
	}
}

// pacer builds a fixed-interval limiter. Burst 1 makes the first Wait free,
// so the delay lands strictly between consecutive events.
func pacer(d time.Duration) *rate.Limiter {
	if d <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(d), 1)
}

// Run executes one full cycle: load state once, walk every account, commit
// once. A single account's failure never aborts the remaining accounts.
func (r *Runner) Run(ctx context.Context, handles []string) Report {
	rep := Report{Accounts: len(handles)}

	st, ver, err := r.store.Load(ctx)
	commitAllowed := true
	if err != nil {
		// Proceed on empty state so posts still flow, but never commit:
		// an empty overwrite would erase every cursor we could not read.
		r.log.Error("state load failed; relaying without persistence this run", logx.Err(err))
		st = state.New()
		commitAllowed = false
		rep.Errors++
	}

	for _, handle := range handles {
		if ctx.Err() != nil {
			break
		}
		if err := r.acctPace.Wait(ctx); err != nil {
			break
		}

		n, err := r.processAccount(ctx, st, handle)
		rep.Published += n
		if err != nil {
			rep.Errors++
			r.log.Error("account failed; continuing with next",
				logx.String("account", handle), logx.Err(err))
		}
	}

	if !commitAllowed {
		r.log.Warn("state commit skipped (load failed at start of run)")
		return rep
	}
	if !st.Dirty() {
		r.log.Debug("state unchanged; nothing to commit")
		rep.Committed = true
		return rep
	}

	// Deliveries already happened; losing the cursor advance now would mean
	// duplicates next run. If the run context is gone, commit on a fresh one.
	cctx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
	}

	newVer, err := r.store.Commit(cctx, st, ver)
	switch {
	case errors.Is(err, state.ErrConflict):
		// Another run committed first. Our cursor advances are lost and the
		// same posts may be re-delivered next run.
		r.log.Warn("state commit conflicted with a concurrent run; cursors not recorded", logx.Err(err))
		rep.Errors++
	case err != nil:
		r.log.Error("state commit failed", logx.Err(err))
		rep.Errors++
	default:
		rep.Committed = true
		r.log.Debug("state committed", logx.String("version", string(newVer)))
	}
	return rep
}

// processAccount walks one account through resolve, fetch, select, emit.
// The cursor advances only past posts whose delivery succeeded; a failed
// delivery leaves it at the last delivered post so the next run re-fetches
// from there.
func (r *Runner) processAccount(ctx context.Context, st *state.State, handle string) (int, error) {
	log := r.log.With(logx.String("account", handle))

	userID, err := r.src.ResolveID(ctx, handle, st)
	if err != nil {
		if errors.Is(err, source.ErrRateLimited) {
			log.Warn("resolve rate limited; skipping account this run")
			return 0, nil
		}
		return 0, fmt.Errorf("resolve: %w", err)
	}

	cursor, _ := st.Cursor(handle)
	posts, err := r.src.FetchRecent(ctx, userID, cursor)
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}
	if len(posts) == 0 {
		log.Debug("caught up")
		return 0, nil
	}

	selected := selectOldest(posts, cursor, r.cfg.MaxPostsPerAccount)
	if len(selected) == 0 {
		log.Debug("nothing newer than cursor", logx.Uint64("cursor", cursor))
		return 0, nil
	}

	published := 0
	for _, p := range selected {
		if err := r.postPace.Wait(ctx); err != nil {
			return published, err
		}
		if err := r.pub.Publish(ctx, handle, p.ID, p.Text); err != nil {
			// Later posts stay unsent too: emitting around a gap would
			// reorder the chat and advancing past it would drop the post.
			return published, fmt.Errorf("deliver post %d: %w", p.ID, err)
		}
		st.Advance(handle, p.ID)
		published++
	}

	log.Info("relayed",
		logx.Int("posts", published),
		logx.Int("fetched", len(posts)),
		logx.Uint64("cursor", mustCursor(st, handle)))
	return published, nil
}

// selectOldest sorts ascending by id (numeric, ids overflow float precision),
// drops anything at or below the cursor, and keeps the oldest max entries.
// Taking the oldest — never the newest — is what keeps the destination
// chronological across consecutive runs.
func selectOldest(posts []source.Post, cursor uint64, max int) []source.Post {
	sorted := make([]source.Post, 0, len(posts))
	for _, p := range posts {
		if p.ID > cursor {
			sorted = append(sorted, p)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	if len(sorted) > max {
		sorted = sorted[:max]
	}
	return sorted
}

func mustCursor(st *state.State, handle string) uint64 {
	c, _ := st.Cursor(handle)
	return c
}
