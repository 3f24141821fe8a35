package gocouch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocouch/gocouch/pkg/adapter"
	"github.com/gocouch/gocouch/pkg/revision"
)

func TestMemoryPutGetRoundTrip(t *testing.T) {
	db := Memory("test")
	ctx := context.Background()

	resp, err := db.Put(ctx, "doc1", revision.Revision{}, adapter.Body{"greeting": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "doc1", resp.ID)

	doc, err := db.Get(ctx, "doc1", adapter.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "hi", doc.Body["greeting"])
}

func TestMemoryPutRequiresCurrentRevOnUpdate(t *testing.T) {
	db := Memory("test")
	ctx := context.Background()

	resp, err := db.Put(ctx, "doc1", revision.Revision{}, adapter.Body{"v": 1.0})
	require.NoError(t, err)

	_, err = db.Put(ctx, "doc1", revision.Revision{}, adapter.Body{"v": 2.0})
	assert.Error(t, err, "updating without the current rev must conflict")

	_, err = db.Put(ctx, "doc1", resp.Rev, adapter.Body{"v": 2.0})
	assert.NoError(t, err)
}

func TestMemoryDeleteTombstones(t *testing.T) {
	db := Memory("test")
	ctx := context.Background()

	resp, err := db.Put(ctx, "doc1", revision.Revision{}, adapter.Body{"v": 1.0})
	require.NoError(t, err)

	_, err = db.Delete(ctx, "doc1", resp.Rev)
	require.NoError(t, err)

	_, err = db.Get(ctx, "doc1", adapter.GetOptions{})
	assert.Error(t, err)
}

func TestDatabaseClosedAfterClose(t *testing.T) {
	db := Memory("test")
	require.NoError(t, db.Close())
	require.NoError(t, db.Close(), "Close must be idempotent")

	_, err := db.Info(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestEmbeddedOpensAndCloses(t *testing.T) {
	db, err := Embedded(EmbeddedConfig{Name: "test", DataDir: t.TempDir()})
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	_, err = db.Put(ctx, "doc1", revision.Revision{}, adapter.Body{"v": 1.0})
	require.NoError(t, err)

	info, err := db.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.DocCount)
}
