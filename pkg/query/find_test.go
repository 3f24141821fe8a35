package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocouch/gocouch/pkg/adapter"
)

func findDocs() []*adapter.Document {
	return []*adapter.Document{
		{ID: "1", Body: adapter.Body{"name": "Alice", "age": 30.0}},
		{ID: "2", Body: adapter.Body{"name": "Bob", "age": 25.0}},
		{ID: "3", Body: adapter.Body{"name": "Carl", "age": 40.0}},
		{ID: "4", Deleted: true, Body: adapter.Body{"name": "Dead", "age": 1.0}},
	}
}

func TestFindSelectsMatchingDocs(t *testing.T) {
	out := Find(findDocs(), FindOptions{Selector: Selector{"age": map[string]interface{}{"$gte": 30.0}}})
	require.Len(t, out, 2)
}

func TestFindSortAscending(t *testing.T) {
	out := Find(findDocs(), FindOptions{
		Selector: Selector{},
		Sort:     []SortField{{Field: "age"}},
	})
	require.Len(t, out, 3)
	assert.Equal(t, "2", out[0].ID)
	assert.Equal(t, "1", out[1].ID)
	assert.Equal(t, "3", out[2].ID)
}

func TestFindSkipLimit(t *testing.T) {
	out := Find(findDocs(), FindOptions{
		Selector: Selector{},
		Sort:     []SortField{{Field: "age"}},
		Skip:     1,
		Limit:    1,
	})
	require.Len(t, out, 1)
	assert.Equal(t, "1", out[0].ID)
}

func TestFindFieldsProjection(t *testing.T) {
	out := Find(findDocs(), FindOptions{
		Selector: Selector{"name": "Alice"},
		Fields:   []string{"name"},
	})
	require.Len(t, out, 1)
	assert.Equal(t, adapter.Body{"name": "Alice"}, out[0].Body)
	_, hasAge := out[0].Body["age"]
	assert.False(t, hasAge)
}

func TestFindExcludesDeleted(t *testing.T) {
	out := Find(findDocs(), FindOptions{Selector: Selector{}})
	for _, d := range out {
		assert.NotEqual(t, "Dead", d.Body["name"])
	}
}
