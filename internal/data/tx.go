package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/target/mmk-rpc-api/internal/core"
)

// DBTX is the statement surface shared by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

// Conn returns the transaction bound to ctx by Transactor.Begin, or db when there is none.
func Conn(ctx context.Context, db *sql.DB) DBTX {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok && tx != nil {
		return tx
	}
	return db
}

// InTx reports whether ctx carries a transaction.
func InTx(ctx context.Context) bool {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	return ok && tx != nil
}

// Transactor implements core.Transactor over database/sql.
type Transactor struct {
	DB   *sql.DB
	Opts *sql.TxOptions
}

// NewTransactor creates a Transactor using the server's default isolation.
func NewTransactor(db *sql.DB) *Transactor {
	return &Transactor{DB: db}
}

// Begin opens a transaction and returns a context carrying it. When ctx already carries
// one, the caller joins it and the returned Tx leaves commit and rollback to the owner.
func (t *Transactor) Begin(ctx context.Context) (context.Context, core.Tx, error) {
	if InTx(ctx) {
		return ctx, joinedTx{}, nil
	}
	tx, err := t.DB.BeginTx(ctx, t.Opts)
	if err != nil {
		return ctx, nil, fmt.Errorf("begin tx: %w", err)
	}
	txCtx, hooks := WithCommitHooks(context.WithValue(ctx, txKey{}, tx))
	return txCtx, sqlTx{tx: tx, hooks: hooks, ctx: ctx}, nil
}

type hooksKey struct{}

// CommitHooks collects work registered with AfterCommit for one transaction.
type CommitHooks struct {
	mu  sync.Mutex
	fns []func(context.Context)
}

// WithCommitHooks returns a context whose AfterCommit calls are queued on the
// returned hooks instead of running at once.
func WithCommitHooks(ctx context.Context) (context.Context, *CommitHooks) {
	h := &CommitHooks{}
	return context.WithValue(ctx, hooksKey{}, h), h
}

// Run calls the queued functions in registration order and empties the queue.
func (h *CommitHooks) Run(ctx context.Context) {
	h.mu.Lock()
	fns := h.fns
	h.fns = nil
	h.mu.Unlock()
	for _, fn := range fns {
		fn(ctx)
	}
}

// Discard drops the queued functions.
func (h *CommitHooks) Discard() {
	h.mu.Lock()
	h.fns = nil
	h.mu.Unlock()
}

// AfterCommit runs fn once the transaction bound to ctx commits, or immediately
// when ctx carries none. A rollback discards fn.
func AfterCommit(ctx context.Context, fn func(context.Context)) {
	if h, ok := ctx.Value(hooksKey{}).(*CommitHooks); ok && h != nil {
		h.mu.Lock()
		h.fns = append(h.fns, fn)
		h.mu.Unlock()
		return
	}
	fn(ctx)
}

// WithTx runs fn inside a transaction, committing when fn returns nil.
func WithTx(ctx context.Context, t core.Transactor, fn func(ctx context.Context) error) (err error) {
	txCtx, tx, err := t.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
	}()
	if err = fn(txCtx); err != nil {
		return err
	}
	return tx.Commit()
}

type sqlTx struct {
	tx    *sql.Tx
	hooks *CommitHooks
	ctx   context.Context // the context Begin was called with, free of the tx
}

// Commit commits and then runs the AfterCommit hooks outside the transaction.
func (s sqlTx) Commit() error {
	if err := s.tx.Commit(); err != nil {
		s.hooks.Discard()
		return fmt.Errorf("commit: %w", err)
	}
	s.hooks.Run(s.ctx)
	return nil
}

// Rollback after Commit is a no-op.
func (s sqlTx) Rollback() error {
	s.hooks.Discard()
	if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

type joinedTx struct{}

func (joinedTx) Commit() error   { return nil }
func (joinedTx) Rollback() error { return nil }
