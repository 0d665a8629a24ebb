package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(id string, finished time.Time) Run {
	return Run{
		ID:         id,
		Objective:  "rastrigin",
		Schedule:   "fast",
		Status:     3,
		Cause:      3,
		Message:    "Maximum cooling iterations reached",
		JMin:       0.125,
		XMin:       []float64{0.01, -0.02},
		T:          1e-4,
		FEval:      1234,
		Iters:      400,
		Accept:     321,
		Seed:       1 << 63,
		StartedAt:  finished.Add(-time.Second),
		FinishedAt: finished,
	}
}

func TestSaveAndGet(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 500, time.UTC)

	want := sampleRun("a", now)
	require.NoError(t, s.Save(ctx, want))

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSaveReplaces(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	run := sampleRun("a", now)
	require.NoError(t, s.Save(ctx, run))
	run.Status = 6
	run.Message = "cancelled"
	require.NoError(t, s.Save(ctx, run))

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 6, got.Status)

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGetNotFound(t *testing.T) {
	s := memStore(t)
	_, err := s.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListOrderAndLimit(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"first", "second", "third"} {
		require.NoError(t, s.Save(ctx, sampleRun(id, base.Add(time.Duration(i)*time.Minute))))
	}

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "third", all[0].ID)
	assert.Equal(t, "first", all[2].ID)

	two, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, two, 2)
	assert.Equal(t, "second", two[1].ID)
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), sampleRun("x", time.Now().UTC())))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Get(context.Background(), "x")
	assert.NoError(t, err)
}
