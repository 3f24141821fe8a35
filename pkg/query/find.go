package query

import (
	"sort"

	"github.com/gocouch/gocouch/pkg/adapter"
	"github.com/gocouch/gocouch/pkg/collate"
)

// SortField is one entry of a Mango sort spec: {"field": "asc"|"desc"}.
type SortField struct {
	Field      string
	Descending bool
}

// FindOptions mirrors a Mango _find request body.
type FindOptions struct {
	Selector Selector
	Fields   []string
	Sort     []SortField
	Skip     int
	Limit    int
}

// Find scans docs, keeping non-deleted documents whose body matches
// selector, then applies sort/skip/limit/fields projection.
func Find(docs []*adapter.Document, opts FindOptions) []*adapter.Document {
	var matched []*adapter.Document
	for _, d := range docs {
		if d == nil || d.Deleted {
			continue
		}
		if Match(opts.Selector, d.Body) {
			matched = append(matched, d)
		}
	}

	if len(opts.Sort) > 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			return lessBySort(matched[i].Body, matched[j].Body, opts.Sort)
		})
	}

	matched = applyDocSkipLimit(matched, opts.Skip, opts.Limit)

	if len(opts.Fields) > 0 {
		for i, d := range matched {
			matched[i] = projectFields(d, opts.Fields)
		}
	}
	return matched
}

func lessBySort(a, b adapter.Body, spec []SortField) bool {
	for _, s := range spec {
		av, _ := getField(a, s.Field)
		bv, _ := getField(b, s.Field)
		c := collate.Compare(av, bv)
		if c == 0 {
			continue
		}
		if s.Descending {
			return c > 0
		}
		return c < 0
	}
	return false
}

func applyDocSkipLimit(docs []*adapter.Document, skip, limit int) []*adapter.Document {
	if skip > 0 {
		if skip >= len(docs) {
			return nil
		}
		docs = docs[skip:]
	}
	if limit > 0 && limit < len(docs) {
		docs = docs[:limit]
	}
	return docs
}

func projectFields(d *adapter.Document, fields []string) *adapter.Document {
	projected := adapter.Body{}
	for _, f := range fields {
		if v, ok := getField(d.Body, f); ok {
			projected[f] = v
		}
	}
	clone := *d
	clone.Body = projected
	return &clone
}
