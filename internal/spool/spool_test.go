// ABOUTME: Unit tests for the submission spool store and retry worker
// ABOUTME: Uses a temp-file SQLite database and a fake submitter

package spool

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formgate/formgate/internal/lead"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "spool.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testLead(email string) lead.Lead {
	return lead.Lead{Name: "Ada", Email: email, SubmittedAt: time.Now().UTC()}
}

func TestEnqueuePending(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.Enqueue(ctx, testLead("ada@example.com"))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	entries, err := store.Pending(ctx, 10, 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ID)
	assert.Equal(t, "ada@example.com", entries[0].Lead.Email)
	assert.Equal(t, 0, entries[0].Attempts)

	count, err := store.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPending_OldestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// created_at has second granularity; force distinct timestamps via direct rows
	first, err := store.Enqueue(ctx, testLead("first@example.com"))
	require.NoError(t, err)
	_, err = store.db.Exec("UPDATE outbox SET created_at = ? WHERE id = ?",
		time.Now().UTC().Add(-time.Hour).Format(time.RFC3339), first)
	require.NoError(t, err)

	_, err = store.Enqueue(ctx, testLead("second@example.com"))
	require.NoError(t, err)

	entries, err := store.Pending(ctx, 10, 5)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "first@example.com", entries[0].Lead.Email)
}

func TestMarkDelivered(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.Enqueue(ctx, testLead("ada@example.com"))
	require.NoError(t, err)
	require.NoError(t, store.MarkDelivered(ctx, id))

	entries, err := store.Pending(ctx, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.ErrorIs(t, store.MarkDelivered(ctx, "no-such-id"), ErrNotFound)
}

func TestMarkFailed_CountsAttemptsAndCapsRetries(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.Enqueue(ctx, testLead("ada@example.com"))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.MarkFailed(ctx, id, "connection refused"))
	}

	entries, err := store.Pending(ctx, 10, 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 3, entries[0].Attempts)
	assert.Equal(t, "connection refused", entries[0].LastError)

	// At the attempt cap the entry drops out of the pending set
	entries, err = store.Pending(ctx, 10, 3)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPruneDelivered(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.Enqueue(ctx, testLead("ada@example.com"))
	require.NoError(t, err)
	require.NoError(t, store.MarkDelivered(ctx, id))

	// Backdate the delivery so the prune cutoff catches it
	_, err = store.db.Exec("UPDATE outbox SET delivered_at = ? WHERE id = ?",
		time.Now().UTC().Add(-48*time.Hour).Format(time.RFC3339), id)
	require.NoError(t, err)

	pruned, err := store.PruneDelivered(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)
}

// fakeSubmitter fails a configurable number of times before succeeding.
type fakeSubmitter struct {
	failures  int
	submitted []lead.Lead
}

func (f *fakeSubmitter) Submit(_ context.Context, l lead.Lead) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("webhook unreachable")
	}
	f.submitted = append(f.submitted, l)
	return nil
}

func TestWorker_DrainDeliversPending(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Enqueue(ctx, testLead("one@example.com"))
	require.NoError(t, err)
	_, err = store.Enqueue(ctx, testLead("two@example.com"))
	require.NoError(t, err)

	submitter := &fakeSubmitter{}
	worker := NewWorker(store, submitter, time.Minute, 5)

	delivered := worker.Drain(ctx)
	assert.Equal(t, 2, delivered)
	assert.Len(t, submitter.submitted, 2)

	count, err := store.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestWorker_DrainRecordsFailures(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.Enqueue(ctx, testLead("ada@example.com"))
	require.NoError(t, err)

	submitter := &fakeSubmitter{failures: 1}
	worker := NewWorker(store, submitter, time.Minute, 5)

	var outcomes []bool
	worker.OnRetry = func(ok bool) { outcomes = append(outcomes, ok) }

	assert.Equal(t, 0, worker.Drain(ctx))

	entries, err := store.Pending(ctx, 10, 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ID)
	assert.Equal(t, 1, entries[0].Attempts)
	assert.Equal(t, "webhook unreachable", entries[0].LastError)

	// Second drain succeeds
	assert.Equal(t, 1, worker.Drain(ctx))
	assert.Equal(t, []bool{false, true}, outcomes)
}
