package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/model"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/vocab"
)

// retryOnAuth runs call, and on ErrAuthExpired refreshes once and runs it again.
// A second ErrAuthExpired is returned to the caller.
func retryOnAuth[T any](ctx context.Context, r Refresher, call func() (T, error)) (T, error) {
	out, err := call()
	if !errors.Is(err, ErrAuthExpired) {
		return out, err
	}
	if rerr := r.Refresh(ctx); rerr != nil {
		var zero T
		return zero, fmt.Errorf("refresh after %v: %w", err, errors.Join(ErrAuthExpired, rerr))
	}
	return call()
}

type authRefreshSubmitter struct {
	next Submitter
	r    Refresher
}

// WithAuthRefresh wraps sub so every call gets at most one refresh-then-retry.
func WithAuthRefresh(sub Submitter, r Refresher) Submitter {
	return &authRefreshSubmitter{next: sub, r: r}
}

func (a *authRefreshSubmitter) SubmitCreate(ctx context.Context, rec model.EventRecord) (Result, error) {
	return retryOnAuth(ctx, a.r, func() (Result, error) { return a.next.SubmitCreate(ctx, rec) })
}

func (a *authRefreshSubmitter) SubmitEdit(ctx context.Context, rec model.EventRecord) (Result, error) {
	return retryOnAuth(ctx, a.r, func() (Result, error) { return a.next.SubmitEdit(ctx, rec) })
}

func (a *authRefreshSubmitter) SubmitDelete(ctx context.Context, rec model.EventRecord) (Result, error) {
	return retryOnAuth(ctx, a.r, func() (Result, error) { return a.next.SubmitDelete(ctx, rec) })
}

type authRefreshOracle struct {
	next Oracle
	r    Refresher
}

// WithOracleAuthRefresh applies the same single-retry policy to oracle calls.
func WithOracleAuthRefresh(o Oracle, r Refresher) Oracle {
	return &authRefreshOracle{next: o, r: r}
}

func (a *authRefreshOracle) Status(ctx context.Context, world string, kind vocab.Kind) (OracleStatus, error) {
	return retryOnAuth(ctx, a.r, func() (OracleStatus, error) { return a.next.Status(ctx, world, kind) })
}

func (a *authRefreshOracle) Register(ctx context.Context, rec model.EventRecord) error {
	_, err := retryOnAuth(ctx, a.r, func() (struct{}, error) { return struct{}{}, a.next.Register(ctx, rec) })
	return err
}
