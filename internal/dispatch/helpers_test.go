package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/target/mmk-rpc-api/internal/core"
	domainauth "github.com/target/mmk-rpc-api/internal/domain/auth"
	"github.com/target/mmk-rpc-api/internal/observability/metrics"
)

// staticAuthorizer grants each user a fixed set of keys.
type staticAuthorizer struct {
	grants map[string][]string
	err    error
}

func (a staticAuthorizer) HasPermissions(_ context.Context, userID string, required []string) (bool, error) {
	if a.err != nil {
		return false, a.err
	}
	return domainauth.Covers(a.grants[userID], required), nil
}

// stagedStore buffers writes per transaction and publishes them on commit.
type stagedStore struct {
	mu        sync.Mutex
	committed []string
	rollbacks int
	beginErr  error
}

type stagedTxKey struct{}

type stagedTx struct {
	store  *stagedStore
	writes []string
	done   bool
}

func (s *stagedStore) Begin(ctx context.Context) (context.Context, core.Tx, error) {
	if s.beginErr != nil {
		return ctx, nil, s.beginErr
	}
	tx := &stagedTx{store: s}
	return context.WithValue(ctx, stagedTxKey{}, tx), tx, nil
}

func (s *stagedStore) write(ctx context.Context, v string) {
	if tx, ok := ctx.Value(stagedTxKey{}).(*stagedTx); ok {
		tx.writes = append(tx.writes, v)
		return
	}
	s.mu.Lock()
	s.committed = append(s.committed, v)
	s.mu.Unlock()
}

func (s *stagedStore) rows() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.committed...)
}

func (t *stagedTx) Commit() error {
	if t.done {
		return errors.New("tx already closed")
	}
	t.done = true
	t.store.mu.Lock()
	t.store.committed = append(t.store.committed, t.writes...)
	t.store.mu.Unlock()
	return nil
}

func (t *stagedTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.mu.Lock()
	t.store.rollbacks++
	t.store.mu.Unlock()
	return nil
}

type callRecorder struct {
	mu    sync.Mutex
	calls []metrics.CallMetric
}

func (r *callRecorder) ObserveCall(m metrics.CallMetric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, m)
}

func (r *callRecorder) ObserveReap(metrics.ReapMetric) {}

func newTestPipeline(t *testing.T, authz Authorizer, tx core.Transactor, rec metrics.Recorder) *Pipeline {
	t.Helper()
	p, err := NewPipeline(PipelineOptions{Authorizer: authz, Tx: tx, Metrics: rec})
	require.NoError(t, err)
	return p
}
