package jsonfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docstore/internal/model"
)

func newDoc(owner, name string) *model.Document {
	return &model.Document{
		ID:           uuid.NewString(),
		OwnerID:      owner,
		OriginalName: name,
		BlobRef:      uuid.NewString() + ".csv",
		SizeBytes:    12,
		Extension:    "csv",
		ContentType:  "text/csv",
		CreatedAt:    time.Now().UTC(),
	}
}

func ptr(s string) *string { return &s }

func TestDocumentJSONFile_AppendQueryRemove(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	reg, err := Open(dir)
	require.NoError(t, err)

	a := newDoc("abc", "a.csv")
	b := newDoc("ABC", "b.csv")
	c := newDoc("other", "c.csv")
	for _, d := range []*model.Document{a, b, c} {
		_, err := reg.Append(ctx, d)
		require.NoError(t, err)
	}

	all, err := reg.Query(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	mine, err := reg.Query(ctx, ptr("Abc"))
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, a.ID, mine[0].ID)
	assert.Equal(t, b.ID, mine[1].ID)

	require.NoError(t, reg.Remove(ctx, b.ID))
	assert.ErrorIs(t, reg.Remove(ctx, b.ID), model.ErrNotFound)

	// Reopen from disk: the snapshot reflects every completed call.
	reopened, err := Open(dir)
	require.NoError(t, err)
	all, err = reopened.Query(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, a.ID, all[0].ID)
	assert.Equal(t, c.ID, all[1].ID)
}

func TestDocumentJSONFile_FindOneReturnsEarliest(t *testing.T) {
	ctx := context.Background()
	reg, err := Open(t.TempDir())
	require.NoError(t, err)

	first := newDoc("c1", "report.csv")
	second := newDoc("C1", "report.csv")
	_, err = reg.Append(ctx, first)
	require.NoError(t, err)
	_, err = reg.Append(ctx, second)
	require.NoError(t, err)

	got, err := reg.FindOne(ctx, "c1", "report.csv")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	_, err = reg.FindOne(ctx, "c1", "REPORT.csv")
	assert.ErrorIs(t, err, model.ErrNotFound, "names match exactly")

	require.NoError(t, reg.Remove(ctx, first.ID))
	got, err = reg.FindOne(ctx, "c1", "report.csv")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
}

func TestDocumentJSONFile_DuplicateID(t *testing.T) {
	ctx := context.Background()
	reg, err := Open(t.TempDir())
	require.NoError(t, err)

	d := newDoc("o", "x.pdf")
	_, err = reg.Append(ctx, d)
	require.NoError(t, err)
	_, err = reg.Append(ctx, d)
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	all, err := reg.Query(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestDocumentJSONFile_CreatedAtNeverGoesBackwards(t *testing.T) {
	ctx := context.Background()
	reg, err := Open(t.TempDir())
	require.NoError(t, err)

	later := newDoc("o", "1.pdf")
	later.CreatedAt = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	earlier := newDoc("o", "2.pdf")
	earlier.CreatedAt = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err = reg.Append(ctx, later)
	require.NoError(t, err)
	stored, err := reg.Append(ctx, earlier)
	require.NoError(t, err)
	assert.True(t, stored.CreatedAt.Equal(later.CreatedAt))
}

func TestDocumentJSONFile_ConcurrentAppends(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	reg, err := Open(dir)
	require.NoError(t, err)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := reg.Append(ctx, newDoc("owner", fmt.Sprintf("%d.csv", i)))
			assert.NoError(t, err)
		}(i)
	}
	// Readers run alongside the writers and must always decode a full snapshot.
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reg.Query(ctx, ptr("owner"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	reopened, err := Open(dir)
	require.NoError(t, err)
	all, err := reopened.Query(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, n)

	seen := map[string]bool{}
	for i, d := range all {
		assert.False(t, seen[d.ID])
		seen[d.ID] = true
		if i > 0 {
			assert.False(t, d.CreatedAt.Before(all[i-1].CreatedAt))
		}
	}
}

func TestOpen_EmptyAndCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), nil, 0o644))
	reg, err := Open(dir)
	require.NoError(t, err)
	all, err := reg.Query(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, all)

	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("{not json"), 0o644))
	_, err = Open(dir)
	assert.ErrorIs(t, err, model.ErrIOFailure)
}

func TestDocumentJSONFile_Ping(t *testing.T) {
	dir := t.TempDir()
	reg, err := Open(dir)
	require.NoError(t, err)
	assert.NoError(t, reg.Ping(context.Background()))
	assert.Equal(t, filepath.Join(dir, FileName), reg.Path())
}
