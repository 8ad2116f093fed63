package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docstore/internal/database"
	"docstore/internal/database/migration"
	"docstore/internal/model"
)

func openRegistry(t *testing.T) (*DocumentSQLite, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registry.db")
	db, err := database.NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migration.EnsureMigrated(context.Background(), db, migration.SQLite, zerolog.Nop()))
	return NewDocumentSQLite(db), path
}

func newDoc(owner, name string) *model.Document {
	return &model.Document{
		ID:           uuid.NewString(),
		OwnerID:      owner,
		OriginalName: name,
		BlobRef:      uuid.NewString() + ".pdf",
		SizeBytes:    42,
		Extension:    "pdf",
		ContentType:  "application/pdf",
		CreatedAt:    time.Now().UTC(),
	}
}

func ptr(s string) *string { return &s }

func TestDocumentSQLite_AppendQueryRemove(t *testing.T) {
	reg, path := openRegistry(t)
	ctx := context.Background()

	a := newDoc("abc", "a.pdf")
	b := newDoc("ABC", "b.pdf")
	c := newDoc("other", "c.pdf")
	for _, d := range []*model.Document{a, b, c} {
		out, err := reg.Append(ctx, d)
		require.NoError(t, err)
		assert.Equal(t, d.ID, out.ID)
	}

	all, err := reg.Query(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, []string{all[0].ID, all[1].ID, all[2].ID})
	assert.Equal(t, "ABC", all[1].OwnerID)

	mine, err := reg.Query(ctx, ptr("aBc"))
	require.NoError(t, err)
	require.Len(t, mine, 2)

	none, err := reg.Query(ctx, ptr("nobody"))
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	require.NoError(t, reg.Remove(ctx, b.ID))
	assert.ErrorIs(t, reg.Remove(ctx, b.ID), model.ErrNotFound)

	// A second connection to the same file sees the committed state.
	db, err := database.NewSQLite(path)
	require.NoError(t, err)
	defer db.Close()
	all, err = NewDocumentSQLite(db).Query(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, a.ID, all[0].ID)
	assert.Equal(t, c.ID, all[1].ID)
}

func TestDocumentSQLite_FindOne(t *testing.T) {
	reg, _ := openRegistry(t)
	ctx := context.Background()

	first := newDoc("c1", "report.pdf")
	second := newDoc("C1", "report.pdf")
	_, err := reg.Append(ctx, first)
	require.NoError(t, err)
	_, err = reg.Append(ctx, second)
	require.NoError(t, err)

	got, err := reg.FindOne(ctx, "C1", "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	_, err = reg.FindOne(ctx, "c1", "REPORT.pdf")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestDocumentSQLite_DuplicateID(t *testing.T) {
	reg, _ := openRegistry(t)
	ctx := context.Background()

	d := newDoc("c1", "a.pdf")
	_, err := reg.Append(ctx, d)
	require.NoError(t, err)

	dup := newDoc("c1", "b.pdf")
	dup.ID = d.ID
	_, err = reg.Append(ctx, dup)
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	all, err := reg.Query(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestDocumentSQLite_CreatedAtNeverGoesBackwards(t *testing.T) {
	reg, _ := openRegistry(t)
	ctx := context.Background()

	late := newDoc("c1", "a.pdf")
	late.CreatedAt = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	early := newDoc("c1", "b.pdf")
	early.CreatedAt = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := reg.Append(ctx, late)
	require.NoError(t, err)
	out, err := reg.Append(ctx, early)
	require.NoError(t, err)
	assert.True(t, out.CreatedAt.Equal(late.CreatedAt))

	all, err := reg.Query(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.False(t, all[1].CreatedAt.Before(all[0].CreatedAt))
}

func TestDocumentSQLite_ConcurrentAppends(t *testing.T) {
	reg, _ := openRegistry(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reg.Append(ctx, newDoc("c1", "x.pdf"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	all, err := reg.Query(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, n)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].CreatedAt.Before(all[i-1].CreatedAt))
	}
}
