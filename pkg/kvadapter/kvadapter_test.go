package kvadapter

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocouch/gocouch/pkg/adapter"
	"github.com/gocouch/gocouch/pkg/revision"
)

func openTest(t *testing.T) *Adapter {
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)
	a, err := Open(Config{Path: t.TempDir(), Name: "test", Logger: l})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestOpenAndInfoOnEmptyDB(t *testing.T) {
	a := openTest(t)
	info, err := a.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.DocCount)
	assert.Equal(t, int64(0), info.UpdateSeq.Num)
}

func TestBulkDocsCreateAndGet(t *testing.T) {
	a := openTest(t)
	ctx := context.Background()

	results, err := a.BulkDocs(ctx, []*adapter.Document{{ID: "x", Body: adapter.Body{"v": 1.0}}}, adapter.BulkDocsOptions{})
	require.NoError(t, err)
	require.True(t, results[0].OK)
	rev1 := results[0].Rev

	doc, err := a.Get(ctx, "x", adapter.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, rev1, doc.Rev)
	assert.Equal(t, 1.0, doc.Body["v"])

	info, err := a.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.DocCount)
	assert.Equal(t, int64(1), info.UpdateSeq.Num)
}

func TestBulkDocsStaleRevConflicts(t *testing.T) {
	a := openTest(t)
	ctx := context.Background()

	r1, _ := a.BulkDocs(ctx, []*adapter.Document{{ID: "x", Body: adapter.Body{"v": 1.0}}}, adapter.BulkDocsOptions{})
	base := r1[0].Rev

	r2, _ := a.BulkDocs(ctx, []*adapter.Document{{ID: "x", Rev: base, Body: adapter.Body{"v": 2.0}}}, adapter.BulkDocsOptions{})
	require.True(t, r2[0].OK)

	r3, err := a.BulkDocs(ctx, []*adapter.Document{{ID: "x", Rev: base, Body: adapter.Body{"v": 3.0}}}, adapter.BulkDocsOptions{})
	require.NoError(t, err)
	assert.False(t, r3[0].OK)
	assert.Equal(t, "conflict", r3[0].Error)
}

func TestChangesMonotoneAndCompaction(t *testing.T) {
	a := openTest(t)
	ctx := context.Background()

	for _, id := range []string{"d1", "d2", "d3"} {
		_, err := a.BulkDocs(ctx, []*adapter.Document{{ID: id, Body: adapter.Body{"n": 1.0}}}, adapter.BulkDocsOptions{})
		require.NoError(t, err)
	}

	doc1, err := a.Get(ctx, "d1", adapter.GetOptions{})
	require.NoError(t, err)
	_, err = a.BulkDocs(ctx, []*adapter.Document{{ID: "d1", Rev: doc1.Rev, Body: adapter.Body{"n": 2.0}}}, adapter.BulkDocsOptions{})
	require.NoError(t, err)

	changes, err := a.Changes(ctx, adapter.ChangesOptions{Since: adapter.NumSeq(0)})
	require.NoError(t, err)
	require.Len(t, changes.Results, 3)

	seen := map[string]int64{}
	for _, ev := range changes.Results {
		seen[ev.ID] = ev.Seq.Num
	}
	assert.Equal(t, int64(4), seen["d1"])
	assert.Equal(t, int64(4), changes.LastSeq.Num)
}

func TestCompactDropsNonWinningBodies(t *testing.T) {
	a := openTest(t)
	ctx := context.Background()

	r1, _ := a.BulkDocs(ctx, []*adapter.Document{{ID: "x", Body: adapter.Body{"v": 1.0}}}, adapter.BulkDocsOptions{})
	base := r1[0].Rev
	r2, _ := a.BulkDocs(ctx, []*adapter.Document{{ID: "x", Rev: base, Body: adapter.Body{"v": 2.0}}}, adapter.BulkDocsOptions{})
	require.True(t, r2[0].OK)

	require.NoError(t, a.Compact(ctx))

	_, err := a.Get(ctx, "x", adapter.GetOptions{Rev: base})
	assert.Error(t, err)

	doc, err := a.Get(ctx, "x", adapter.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, r2[0].Rev, doc.Rev)
}

func TestRevsDiff(t *testing.T) {
	a := openTest(t)
	ctx := context.Background()

	r1, _ := a.BulkDocs(ctx, []*adapter.Document{{ID: "x", Body: adapter.Body{"v": 1.0}}}, adapter.BulkDocsOptions{})

	diff, err := a.RevsDiff(ctx, adapter.RevsDiffRequest{"x": {r1[0].Rev, revision.New(9, "nope")}})
	require.NoError(t, err)
	assert.Len(t, diff["x"].Missing, 1)
	assert.Equal(t, "nope", diff["x"].Missing[0].Hash)
}

func TestReplayingBulkDocsDoesNotAdvanceUpdateSeq(t *testing.T) {
	a := openTest(t)
	ctx := context.Background()

	r1, err := a.BulkDocs(ctx, []*adapter.Document{{ID: "x", Body: adapter.Body{"v": 1.0}}}, adapter.BulkDocsOptions{})
	require.NoError(t, err)
	rev := r1[0].Rev

	infoBefore, err := a.Info(ctx)
	require.NoError(t, err)

	falseFlag := false
	doc := &adapter.Document{
		ID:        "x",
		Rev:       rev,
		Body:      adapter.Body{"v": 1.0},
		Revisions: &adapter.RevisionsInfo{Start: rev.Pos, IDs: []string{rev.Hash}},
	}
	r2, err := a.BulkDocs(ctx, []*adapter.Document{doc}, adapter.BulkDocsOptions{NewEdits: &falseFlag})
	require.NoError(t, err)
	require.True(t, r2[0].OK)

	infoAfter, err := a.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, infoBefore.UpdateSeq, infoAfter.UpdateSeq, "replaying an already-known revision must not bump update_seq")

	changes, err := a.Changes(ctx, adapter.ChangesOptions{Since: adapter.NumSeq(0)})
	require.NoError(t, err)
	require.Len(t, changes.Results, 1, "replay must not add a second changes-feed entry for x")
}

func TestLocalDocsRoundTrip(t *testing.T) {
	a := openTest(t)
	ctx := context.Background()

	require.NoError(t, a.PutLocal(ctx, "_local/cp", adapter.Body{"seq": 3.0}))
	body, err := a.GetLocal(ctx, "_local/cp")
	require.NoError(t, err)
	assert.Equal(t, 3.0, body["seq"])

	require.NoError(t, a.RemoveLocal(ctx, "_local/cp"))
	_, err = a.GetLocal(ctx, "_local/cp")
	assert.Error(t, err)
}

func TestDestroyEmptiesButKeepsFile(t *testing.T) {
	a := openTest(t)
	ctx := context.Background()

	_, err := a.BulkDocs(ctx, []*adapter.Document{{ID: "x", Body: adapter.Body{"v": 1.0}}}, adapter.BulkDocsOptions{})
	require.NoError(t, err)

	require.NoError(t, a.Destroy(ctx))

	info, err := a.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.DocCount)
	assert.Equal(t, int64(0), info.UpdateSeq.Num)
}

func TestAllDocsRangeAndLimit(t *testing.T) {
	a := openTest(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d"} {
		_, err := a.BulkDocs(ctx, []*adapter.Document{{ID: id, Body: adapter.Body{}}}, adapter.BulkDocsOptions{})
		require.NoError(t, err)
	}

	resp, err := a.AllDocs(ctx, adapter.AllDocsOptions{HasStartKey: true, StartKey: "b", HasEndKey: true, EndKey: "c", InclusiveEnd: true})
	require.NoError(t, err)
	require.Len(t, resp.Rows, 2)
	assert.Equal(t, "b", resp.Rows[0].ID)
	assert.Equal(t, "c", resp.Rows[1].ID)
}
