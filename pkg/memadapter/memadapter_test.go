package memadapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocouch/gocouch/pkg/adapter"
	"github.com/gocouch/gocouch/pkg/revision"
)

func put(t *testing.T, a *Adapter, id string, rev revision.Revision, body adapter.Body) adapter.DocResult {
	doc := &adapter.Document{ID: id, Rev: rev, Body: body}
	results, err := a.BulkDocs(context.Background(), []*adapter.Document{doc}, adapter.BulkDocsOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	return results[0]
}

func TestPutGetRoundTrip(t *testing.T) {
	a := New("test")
	res := put(t, a, "x", revision.Revision{}, adapter.Body{"v": 1.0})
	assert.True(t, res.OK)
	assert.Equal(t, int64(1), res.Rev.Pos)

	doc, err := a.Get(context.Background(), "x", adapter.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, doc.Body["v"])
}

func TestUpdateRequiresCurrentRev(t *testing.T) {
	a := New("test")
	res1 := put(t, a, "x", revision.Revision{}, adapter.Body{"v": 1.0})
	require.True(t, res1.OK)

	res2 := put(t, a, "x", res1.Rev, adapter.Body{"v": 2.0})
	assert.True(t, res2.OK)

	stale := put(t, a, "x", res1.Rev, adapter.Body{"v": 3.0})
	assert.False(t, stale.OK)
	assert.Equal(t, "conflict", stale.Error)
}

func TestConflictCreationAndSync(t *testing.T) {
	a := New("test")
	res := put(t, a, "x", revision.Revision{}, adapter.Body{"v": 1.0})
	require.True(t, res.OK)
	base := res.Rev

	resA := put(t, a, "x", base, adapter.Body{"v": "a"})
	require.True(t, resA.OK)
	revA := resA.Rev

	// Simulate a second branch landing via replication's new_edits=false
	// write path, creating a real conflict against the already-applied A
	// branch sharing the same parent.
	falseFlag := false
	branchB := &adapter.Document{
		ID:        "x",
		Rev:       revision.New(base.Pos+1, "zzzzzz"),
		Body:      adapter.Body{"v": "b"},
		Revisions: &adapter.RevisionsInfo{Start: base.Pos + 1, IDs: []string{"zzzzzz", base.Hash}},
	}
	resultsB, err := a.BulkDocs(context.Background(), []*adapter.Document{branchB}, adapter.BulkDocsOptions{NewEdits: &falseFlag})
	require.NoError(t, err)
	require.True(t, resultsB[0].OK)

	info, err := a.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.DocCount)

	doc, err := a.Get(context.Background(), "x", adapter.GetOptions{Conflicts: true})
	require.NoError(t, err)
	if revA.Hash > "zzzzzz" {
		assert.Equal(t, revA, doc.Rev)
	} else {
		assert.Equal(t, "zzzzzz", doc.Rev.Hash)
	}
	assert.Len(t, doc.Conflicts, 1)
}

func TestChangesCompaction(t *testing.T) {
	a := New("test")
	put(t, a, "d1", revision.Revision{}, adapter.Body{"n": 1.0})
	put(t, a, "d2", revision.Revision{}, adapter.Body{"n": 2.0})
	put(t, a, "d3", revision.Revision{}, adapter.Body{"n": 3.0})

	doc1, err := a.Get(context.Background(), "d1", adapter.GetOptions{})
	require.NoError(t, err)
	res := put(t, a, "d1", doc1.Rev, adapter.Body{"n": 100.0})
	require.True(t, res.OK)

	changes, err := a.Changes(context.Background(), adapter.ChangesOptions{Since: adapter.NumSeq(0)})
	require.NoError(t, err)
	require.Len(t, changes.Results, 3)

	seen := map[string]int64{}
	for _, ev := range changes.Results {
		seen[ev.ID] = ev.Seq.Num
	}
	assert.Equal(t, int64(4), seen["d1"])
	assert.Equal(t, int64(2), seen["d2"])
	assert.Equal(t, int64(3), seen["d3"])
	assert.Equal(t, int64(4), changes.LastSeq.Num)
}

func TestReplayingBulkDocsDoesNotAdvanceUpdateSeq(t *testing.T) {
	a := New("test")
	res := put(t, a, "x", revision.Revision{}, adapter.Body{"v": 1.0})
	require.True(t, res.OK)

	falseFlag := false
	doc := &adapter.Document{
		ID:        "x",
		Rev:       res.Rev,
		Body:      adapter.Body{"v": 1.0},
		Revisions: &adapter.RevisionsInfo{Start: res.Rev.Pos, IDs: []string{res.Rev.Hash}},
	}

	infoBefore, err := a.Info(context.Background())
	require.NoError(t, err)

	results, err := a.BulkDocs(context.Background(), []*adapter.Document{doc}, adapter.BulkDocsOptions{NewEdits: &falseFlag})
	require.NoError(t, err)
	require.True(t, results[0].OK)

	infoAfter, err := a.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, infoBefore.UpdateSeq, infoAfter.UpdateSeq, "replaying an already-known revision must not bump update_seq")

	changes, err := a.Changes(context.Background(), adapter.ChangesOptions{Since: adapter.NumSeq(0)})
	require.NoError(t, err)
	require.Len(t, changes.Results, 1, "replay must not add a second changes-feed entry for x")
}

func TestDeletionLosesToLiveEdit(t *testing.T) {
	a := New("test")
	res := put(t, a, "x", revision.Revision{}, adapter.Body{"v": 1.0})
	base := res.Rev

	del := &adapter.Document{ID: "x", Rev: base, Deleted: true, Body: adapter.Body{}}
	_, err := a.BulkDocs(context.Background(), []*adapter.Document{del}, adapter.BulkDocsOptions{})
	require.NoError(t, err)

	falseFlag := false
	editBranch := &adapter.Document{
		ID:        "x",
		Rev:       revision.New(base.Pos+1, "liveedit"),
		Body:      adapter.Body{"v": 2.0},
		Revisions: &adapter.RevisionsInfo{Start: base.Pos + 1, IDs: []string{"liveedit", base.Hash}},
	}
	_, err = a.BulkDocs(context.Background(), []*adapter.Document{editBranch}, adapter.BulkDocsOptions{NewEdits: &falseFlag})
	require.NoError(t, err)

	doc, err := a.Get(context.Background(), "x", adapter.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2.0, doc.Body["v"])
	assert.False(t, doc.Deleted)
}

func TestLocalDocsNotInChanges(t *testing.T) {
	a := New("test")
	require.NoError(t, a.PutLocal(context.Background(), "_local/cp", adapter.Body{"seq": 5.0}))
	body, err := a.GetLocal(context.Background(), "_local/cp")
	require.NoError(t, err)
	assert.Equal(t, 5.0, body["seq"])

	changes, err := a.Changes(context.Background(), adapter.ChangesOptions{})
	require.NoError(t, err)
	assert.Empty(t, changes.Results)
}

func TestRevsDiffReportsMissing(t *testing.T) {
	a := New("test")
	res := put(t, a, "x", revision.Revision{}, adapter.Body{"v": 1.0})

	diff, err := a.RevsDiff(context.Background(), adapter.RevsDiffRequest{
		"x": {res.Rev, revision.New(5, "nope")},
	})
	require.NoError(t, err)
	result := diff["x"]
	assert.Len(t, result.Missing, 1)
	assert.Equal(t, "nope", result.Missing[0].Hash)
}

func TestCompactDropsNonWinningBodies(t *testing.T) {
	a := New("test")
	res1 := put(t, a, "x", revision.Revision{}, adapter.Body{"v": 1.0})
	res2 := put(t, a, "x", res1.Rev, adapter.Body{"v": 2.0})
	require.True(t, res2.OK)

	require.NoError(t, a.Compact(context.Background()))

	_, err := a.Get(context.Background(), "x", adapter.GetOptions{Rev: res1.Rev})
	assert.Error(t, err, "ancestor body was dropped by compaction")

	doc, err := a.Get(context.Background(), "x", adapter.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, res2.Rev, doc.Rev)
}

func TestDestroyEmptiesState(t *testing.T) {
	a := New("test")
	put(t, a, "x", revision.Revision{}, adapter.Body{"v": 1.0})
	require.NoError(t, a.Destroy(context.Background()))

	info, err := a.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.DocCount)
}
