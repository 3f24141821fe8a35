package query

import (
	"sort"

	"github.com/gocouch/gocouch/pkg/adapter"
	"github.com/gocouch/gocouch/pkg/collate"
)

// MapFunc emits zero or more key/value pairs for a document. Map
// functions never see deleted documents.
type MapFunc func(id string, body adapter.Body) []KV

// KV is one emitted row before grouping/reduction.
type KV struct {
	Key   interface{}
	Value interface{}
}

// Reducer is the custom-reducer capability of a view: a reduce function
// decides the result for a set of keys/values. Run calls it once per
// group with rereduce=false and never calls it with rereduce=true.
type Reducer interface {
	Call(keys []interface{}, values []interface{}, rereduce bool) (interface{}, error)
}

// Sum is the built-in "_sum" reducer.
type Sum struct{}

func (Sum) Call(_ []interface{}, values []interface{}, _ bool) (interface{}, error) {
	var total float64
	for _, v := range values {
		if n, ok := v.(float64); ok {
			total += n
		}
	}
	return total, nil
}

// Count is the built-in "_count" reducer.
type Count struct{}

func (Count) Call(_ []interface{}, values []interface{}, _ bool) (interface{}, error) {
	return float64(len(values)), nil
}

// Stats is the built-in "_stats" reducer, returning sum/min/max/count/sumsqr.
type Stats struct{}

type StatsResult struct {
	Sum    float64 `json:"sum"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Count  float64 `json:"count"`
	SumSqr float64 `json:"sumsqr"`
}

func (Stats) Call(_ []interface{}, values []interface{}, rereduce bool) (interface{}, error) {
	var out StatsResult
	first := true
	for _, v := range values {
		var s StatsResult
		if rereduce {
			m, _ := v.(StatsResult)
			s = m
		} else {
			n, _ := v.(float64)
			s = StatsResult{Sum: n, Min: n, Max: n, Count: 1, SumSqr: n * n}
		}
		if first {
			out = s
			first = false
			continue
		}
		out.Sum += s.Sum
		out.Count += s.Count
		out.SumSqr += s.SumSqr
		if s.Min < out.Min {
			out.Min = s.Min
		}
		if s.Max > out.Max {
			out.Max = s.Max
		}
	}
	return out, nil
}

// Row is one output row of a view query, after optional reduction.
type Row struct {
	Key   interface{}
	Value interface{}
	ID    string // empty for reduced rows
	Doc   *adapter.Document
}

// Options configures a view query.
type Options struct {
	Key          interface{}
	HasKey       bool
	StartKey     interface{}
	HasStartKey  bool
	EndKey       interface{}
	HasEndKey    bool
	InclusiveEnd bool
	Descending   bool
	Skip         int
	Limit        int
	IncludeDocs  bool
	Reduce       *bool // nil means "true if a reducer was given"
	Group        bool
	GroupLevel   int
}

func (o Options) wantReduce(reducer Reducer) bool {
	if o.Reduce != nil {
		return *o.Reduce
	}
	return reducer != nil
}

// emittedRow pairs a KV with the document it came from, for
// include_docs and for stable group ordering.
type emittedRow struct {
	kv  KV
	id  string
	doc *adapter.Document
}

// Run executes mapFn over docs, filters by key range, and applies
// reducer (if requested) according to group/group_level.
func Run(docs []*adapter.Document, mapFn MapFunc, reducer Reducer, opts Options) ([]Row, error) {
	var emitted []emittedRow
	for _, d := range docs {
		if d == nil || d.Deleted {
			continue
		}
		for _, kv := range mapFn(d.ID, d.Body) {
			emitted = append(emitted, emittedRow{kv: kv, id: d.ID, doc: d})
		}
	}

	sort.SliceStable(emitted, func(i, j int) bool {
		return collate.Compare(emitted[i].kv.Key, emitted[j].kv.Key) < 0
	})

	emitted = filterRange(emitted, opts)

	if opts.wantReduce(reducer) && reducer != nil {
		return reduceRows(emitted, reducer, opts)
	}
	return mapRows(emitted, opts), nil
}

func filterRange(rows []emittedRow, opts Options) []emittedRow {
	var out []emittedRow
	for _, r := range rows {
		if opts.HasKey && collate.Compare(r.kv.Key, opts.Key) != 0 {
			continue
		}
		if opts.HasStartKey && collate.Compare(r.kv.Key, opts.StartKey) < 0 {
			continue
		}
		if opts.HasEndKey {
			c := collate.Compare(r.kv.Key, opts.EndKey)
			if opts.InclusiveEnd {
				if c > 0 {
					continue
				}
			} else if c >= 0 {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

func mapRows(rows []emittedRow, opts Options) []Row {
	if opts.Descending {
		reverseRows(rows)
	}
	rows = applySkipLimit(rows, opts.Skip, opts.Limit)

	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = Row{Key: r.kv.Key, Value: r.kv.Value, ID: r.id}
		if opts.IncludeDocs {
			out[i].Doc = r.doc
		}
	}
	return out
}

func applySkipLimit(rows []emittedRow, skip, limit int) []emittedRow {
	if skip > 0 {
		if skip >= len(rows) {
			return nil
		}
		rows = rows[skip:]
	}
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

func reverseRows(rows []emittedRow) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
}

// reduceRows groups emitted rows per group/group_level and invokes
// reducer once per group.
func reduceRows(rows []emittedRow, reducer Reducer, opts Options) ([]Row, error) {
	if !opts.Group && opts.GroupLevel == 0 {
		if len(rows) == 0 {
			return nil, nil
		}
		keys, values := splitKV(rows)
		v, err := reducer.Call(keys, values, false)
		if err != nil {
			return nil, err
		}
		return []Row{{Value: v}}, nil
	}

	type bucket struct {
		key  interface{}
		rows []emittedRow
	}
	var buckets []bucket
	for _, r := range rows {
		k := groupKey(r.kv.Key, opts)
		if len(buckets) > 0 && collate.Compare(buckets[len(buckets)-1].key, k) == 0 {
			buckets[len(buckets)-1].rows = append(buckets[len(buckets)-1].rows, r)
			continue
		}
		buckets = append(buckets, bucket{key: k, rows: []emittedRow{r}})
	}

	out := make([]Row, 0, len(buckets))
	for _, b := range buckets {
		keys, values := splitKV(b.rows)
		v, err := reducer.Call(keys, values, false)
		if err != nil {
			return nil, err
		}
		out = append(out, Row{Key: b.key, Value: v})
	}

	if opts.Descending {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}

	var rowsOut []emittedRow
	for _, r := range out {
		rowsOut = append(rowsOut, emittedRow{kv: KV{Key: r.Key, Value: r.Value}})
	}
	rowsOut = applySkipLimit(rowsOut, opts.Skip, opts.Limit)
	final := make([]Row, len(rowsOut))
	for i, r := range rowsOut {
		final[i] = Row{Key: r.kv.Key, Value: r.kv.Value}
	}
	return final, nil
}

// groupKey truncates an array key to group_level elements; non-array
// keys and group_level 0 (with group=true) group by the full key.
func groupKey(key interface{}, opts Options) interface{} {
	if opts.GroupLevel <= 0 {
		return key
	}
	arr, ok := key.([]interface{})
	if !ok {
		return key
	}
	if opts.GroupLevel >= len(arr) {
		return key
	}
	return arr[:opts.GroupLevel]
}

func splitKV(rows []emittedRow) ([]interface{}, []interface{}) {
	keys := make([]interface{}, len(rows))
	values := make([]interface{}, len(rows))
	for i, r := range rows {
		keys[i] = r.kv.Key
		values[i] = r.kv.Value
	}
	return keys, values
}
