package task

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"va-tasks/internal/db"
)

// backends returns every store implementation that can run without external
// services.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	handle, err := db.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { handle.Close() })
	lite := NewSQLiteStore(handle)
	require.NoError(t, lite.EnsureTable(context.Background()))

	return map[string]Store{
		"mem":    NewMemStore(),
		"sqlite": lite,
	}
}

func TestCreateDefaults(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			created, err := Create(ctx, s, &Task{Title: "  Buy milk  "})
			require.NoError(t, err)

			got, err := s.Get(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, "Buy milk", got.Title)
			assert.Equal(t, StatusInbox, got.Status)
			assert.Equal(t, []string{}, got.Context)
			assert.Equal(t, []string{}, got.People)
			assert.Equal(t, []string{}, got.Links)
			assert.Equal(t, []HistoryEntry{}, got.History)
			assert.Nil(t, got.ParentID)
			assert.False(t, got.CreatedAt.IsZero())
		})
	}
}

func TestCreateRejectsInvalid(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := Create(ctx, s, &Task{Title: "   "})
			assert.ErrorIs(t, err, ErrInvalid)

			_, err = Create(ctx, s, &Task{Title: "x", Status: "archived"})
			assert.ErrorIs(t, err, ErrInvalid)

			_, err = Create(ctx, s, &Task{Title: strings.Repeat("a", MaxTitleLen+1)})
			assert.ErrorIs(t, err, ErrInvalid)

			n, err := s.Count(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestTitleLengthCountsCharacters(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			limit := strings.Repeat("é", MaxTitleLen)
			created, err := Create(ctx, s, &Task{Title: limit})
			require.NoError(t, err)
			assert.Equal(t, limit, created.Title)

			long := limit + "e"
			_, err = Update(ctx, s, created.ID, Patch{Title: &long})
			assert.ErrorIs(t, err, ErrInvalid)

			got, err := s.Get(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, limit, got.Title)
		})
	}
}

func TestGetMissing(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(context.Background(), 42)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestListOrderAndFilter(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			var ids []int64
			for _, title := range []string{"first", "second", "third"} {
				created, err := Create(ctx, s, &Task{Title: title})
				require.NoError(t, err)
				ids = append(ids, created.ID)
			}
			done := StatusDone
			_, err := Update(ctx, s, ids[1], Patch{Status: &done})
			require.NoError(t, err)

			all, err := s.List(ctx, Filter{})
			require.NoError(t, err)
			assert.Equal(t, []int64{ids[2], ids[1], ids[0]}, taskIDs(all))

			open, err := s.List(ctx, Filter{Open: true})
			require.NoError(t, err)
			assert.Equal(t, []int64{ids[2], ids[0]}, taskIDs(open))

			onlyDone, err := s.List(ctx, Filter{Status: StatusDone})
			require.NoError(t, err)
			assert.Equal(t, []int64{ids[1]}, taskIDs(onlyDone))

			page, err := s.List(ctx, Filter{Limit: 1, Offset: 1})
			require.NoError(t, err)
			assert.Equal(t, []int64{ids[1]}, taskIDs(page))
		})
	}
}

func TestUpdatePatch(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			created, err := Create(ctx, s, &Task{Title: "draft", Priority: "P2"})
			require.NoError(t, err)

			due := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
			project := "Q3"
			people := []string{"alice"}
			updated, err := Update(ctx, s, created.ID, Patch{Due: &due, Project: &project, People: &people})
			require.NoError(t, err)
			assert.Equal(t, "P2", updated.Priority)

			got, err := s.Get(ctx, created.ID)
			require.NoError(t, err)
			require.NotNil(t, got.Due)
			assert.True(t, due.Equal(*got.Due))
			assert.Equal(t, "Q3", got.Project)
			assert.Equal(t, []string{"alice"}, got.People)

			_, err = Update(ctx, s, created.ID+100, Patch{Project: &project})
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestInTxRollback(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			created, err := Create(ctx, s, &Task{Title: "keep"})
			require.NoError(t, err)

			boom := errors.New("boom")
			err = s.InTx(ctx, func(tx Tx) error {
				if _, err := tx.Create(ctx, &Task{Title: "discard"}); err != nil {
					return err
				}
				cur, err := tx.Get(ctx, created.ID)
				if err != nil {
					return err
				}
				cur.Status = StatusDone
				if err := tx.Save(ctx, cur); err != nil {
					return err
				}
				if err := tx.AppendHistory(ctx, created.ID, HistoryEntry{Event: EventSuggestionApply, ID: "abc"}); err != nil {
					return err
				}
				return boom
			})
			assert.ErrorIs(t, err, boom)

			n, err := s.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			got, err := s.Get(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, StatusInbox, got.Status)
			assert.Empty(t, got.History)
		})
	}
}

func TestAppendHistoryPreservesOrder(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			created, err := Create(ctx, s, &Task{Title: "audited"})
			require.NoError(t, err)

			ts := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
			err = s.InTx(ctx, func(tx Tx) error {
				if err := tx.AppendHistory(ctx, created.ID, HistoryEntry{Event: EventSuggestionFeedback, ID: "one", Type: "combine", Timestamp: ts}); err != nil {
					return err
				}
				return tx.AppendHistory(ctx, created.ID, HistoryEntry{Event: EventSuggestionApply, ID: "two", Type: "split", Accepted: true, Timestamp: ts, Children: []int64{7, 8}})
			})
			require.NoError(t, err)

			// Save must not clobber the log.
			_, err = Update(ctx, s, created.ID, Patch{Notes: strPtr("n")})
			require.NoError(t, err)

			got, err := s.Get(ctx, created.ID)
			require.NoError(t, err)
			require.Len(t, got.History, 2)
			assert.Equal(t, "one", got.History[0].ID)
			assert.Equal(t, "two", got.History[1].ID)
			assert.Equal(t, []int64{7, 8}, got.History[1].Children)
			assert.True(t, ts.Equal(got.History[1].Timestamp))
		})
	}
}

func TestDeleteDetachesChildren(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			parent, err := Create(ctx, s, &Task{Title: "parent"})
			require.NoError(t, err)
			child, err := Create(ctx, s, &Task{Title: "child", ParentID: &parent.ID})
			require.NoError(t, err)

			require.NoError(t, s.Delete(ctx, parent.ID))
			assert.ErrorIs(t, s.Delete(ctx, parent.ID), ErrNotFound)

			got, err := s.Get(ctx, child.ID)
			require.NoError(t, err)
			assert.Nil(t, got.ParentID)
		})
	}
}

func TestMemStoreGetReturnsCopy(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	created, err := Create(ctx, s, &Task{Title: "x", Context: []string{"home"}})
	require.NoError(t, err)

	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	got.Context[0] = "mutated"

	again, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"home"}, again.Context)
}

func taskIDs(ts []Task) []int64 {
	out := make([]int64, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.ID)
	}
	return out
}

func strPtr(s string) *string { return &s }
