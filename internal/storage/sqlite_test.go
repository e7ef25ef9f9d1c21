package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "trace.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testRun(id string, created time.Time, reqs ...TracedRequirement) *Run {
	return &Run{
		ID:           id,
		Group:        "web_api",
		Tag:          "API",
		Language:     "golang",
		Commit:       "abc123",
		CreatedAt:    created,
		Requirements: reqs,
	}
}

func TestSQLiteStore_SaveRun_LatestRun(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	first := testRun("run-1", base, TracedRequirement{Number: 1, Section: "Users", Text: "Old", Verifications: []string{"V1: a"}})
	require.NoError(t, store.SaveRun(ctx, first))

	want := []TracedRequirement{
		{
			Number:        1,
			Section:       "Users",
			Text:          "Creates a user",
			OriginalText:  "CreatesAUser",
			File:          "repo/users_test.go",
			Line:          3,
			Steps:         []string{"S1: Post user", "S2: Read it"},
			Verifications: []string{"V1: Verify 201", "V2: Verify body"},
		},
		{
			Number:        2,
			Section:       "Admin",
			Text:          "Lists admins",
			OriginalText:  "ListsAdmins",
			File:          "repo/admin_test.go",
			Line:          5,
			Verifications: []string{"V1: Verify list"},
		},
	}
	second := testRun("run-2", base.Add(time.Minute), want...)
	require.NoError(t, store.SaveRun(ctx, second))

	latest, err := store.LatestRun(ctx, "web_api")
	require.NoError(t, err)
	assert.Equal(t, "run-2", latest.ID)
	assert.Equal(t, "abc123", latest.Commit)
	assert.True(t, second.CreatedAt.Equal(latest.CreatedAt))
	assert.Equal(t, want, latest.Requirements)

	runs, err := store.Runs(ctx, "web_api", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, "run-1", runs[1].ID)
	assert.Empty(t, runs[0].Requirements)
}

func TestSQLiteStore_LatestRun_NotFound(t *testing.T) {
	store := newStore(t)
	_, err := store.LatestRun(context.Background(), "ios_app")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLiteStore_SaveRun_Rollback(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	dup := TracedRequirement{Number: 1, Text: "Dup"}
	err := store.SaveRun(ctx, testRun("run-1", time.Now(), dup, dup))
	require.Error(t, err, "duplicate requirement numbers violate the primary key")

	runs, err := store.Runs(ctx, "web_api", 0)
	require.NoError(t, err)
	assert.Empty(t, runs, "failed run is rolled back")

	assert.Error(t, store.SaveRun(ctx, &Run{}))
}
