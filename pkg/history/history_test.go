// Unit tests for the generation run history store
package history

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hosterr "coating-host/pkg/errors"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStartAndGetRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec, err := s.StartRun(ctx, "panel batch 4")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, StatusInProgress, rec.Status)

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "panel batch 4", got.ProjectName)
	assert.Equal(t, StatusInProgress, got.Status)
	assert.Nil(t, got.FinishedAt)
	assert.Zero(t, got.Duration())
}

func TestFinishRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec, err := s.StartRun(ctx, "panel")
	require.NoError(t, err)
	require.NoError(t, s.FinishRun(ctx, rec.ID, StatusCompleted, 3, 42, 2048, ""))

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, 3, got.ShapeCount)
	assert.Equal(t, 42, got.MoveCount)
	assert.Equal(t, int64(2048), got.ProgramBytes)
	require.NotNil(t, got.FinishedAt)
	assert.False(t, got.FinishedAt.Before(got.StartedAt))
}

func TestFinishRunRecordsError(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec, err := s.StartRun(ctx, "panel")
	require.NoError(t, err)
	require.NoError(t, s.FinishRun(ctx, rec.ID, StatusFailed, 1, 0, 0,
		"[GENERATE_FAILED:s1] generation aborted"))

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Contains(t, got.Error, "GENERATE_FAILED")
}

func TestFinishUnknownRun(t *testing.T) {
	s := openTestStore(t)
	err := s.FinishRun(context.Background(), "no-such-run", StatusCompleted, 0, 0, 0, "")
	require.Error(t, err)
	assert.True(t, hosterr.Is(err, hosterr.ErrStorage))
}

func TestGetUnknownRun(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), "no-such-run")
	require.Error(t, err)
	assert.True(t, hosterr.Is(err, hosterr.ErrStorage))
}

func TestListReturnsAllRuns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	want := make(map[string]bool)
	for i := 0; i < 5; i++ {
		rec, err := s.StartRun(ctx, "panel")
		require.NoError(t, err)
		want[rec.ID] = true
	}

	runs, err := s.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, runs, 5)
	for _, r := range runs {
		assert.True(t, want[r.ID], "unexpected run %s", r.ID)
	}
}

func TestListPagination(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.StartRun(ctx, "panel")
		require.NoError(t, err)
	}

	page1, err := s.List(ctx, 2, 0)
	require.NoError(t, err)
	assert.Len(t, page1, 2)

	page3, err := s.List(ctx, 2, 4)
	require.NoError(t, err)
	assert.Len(t, page3, 1)
}

func TestTotals(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a, err := s.StartRun(ctx, "panel")
	require.NoError(t, err)
	require.NoError(t, s.FinishRun(ctx, a.ID, StatusCompleted, 2, 30, 1000, ""))

	b, err := s.StartRun(ctx, "panel")
	require.NoError(t, err)
	require.NoError(t, s.FinishRun(ctx, b.ID, StatusFailed, 1, 0, 0, "boom"))

	_, err = s.StartRun(ctx, "panel")
	require.NoError(t, err)

	totals, err := s.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, totals.TotalRuns)
	assert.Equal(t, 1, totals.CompletedRuns)
	assert.Equal(t, 1, totals.FailedRuns)
	assert.Equal(t, int64(30), totals.TotalMoves)
	assert.Equal(t, int64(1000), totals.TotalBytes)
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec, err := s.StartRun(ctx, "panel")
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, rec.ID))

	_, err = s.Get(ctx, rec.ID)
	require.Error(t, err)

	err = s.Delete(ctx, rec.ID)
	require.Error(t, err)
}

func TestReset(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.StartRun(ctx, "panel")
		require.NoError(t, err)
	}
	require.NoError(t, s.Reset(ctx))

	totals, err := s.Totals(ctx)
	require.NoError(t, err)
	assert.Zero(t, totals.TotalRuns)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.db")
	ctx := context.Background()

	s1, err := Open(path)
	require.NoError(t, err)
	rec, err := s1.StartRun(ctx, "panel")
	require.NoError(t, err)
	require.NoError(t, s1.FinishRun(ctx, rec.ID, StatusCompleted, 1, 4, 128, ""))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, int64(128), got.ProgramBytes)
}
