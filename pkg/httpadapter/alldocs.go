package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/gocouch/gocouch/pkg/adapter"
)

type allDocsWire struct {
	TotalRows int `json:"total_rows"`
	Offset    int `json:"offset"`
	Rows      []struct {
		ID  string `json:"id"`
		Key string `json:"key"`
		Doc map[string]interface{} `json:"doc,omitempty"`
		Value struct {
			Rev string `json:"rev"`
		} `json:"value"`
	} `json:"rows"`
}

func (a *Adapter) AllDocs(ctx context.Context, opts adapter.AllDocsOptions) (adapter.AllDocsResponse, error) {
	q := url.Values{}
	if opts.HasStartKey {
		q.Set("startkey", quoteJSON(opts.StartKey))
	}
	if opts.HasEndKey {
		q.Set("endkey", quoteJSON(opts.EndKey))
	}
	if opts.InclusiveEnd {
		q.Set("inclusive_end", "true")
	}
	if opts.Descending {
		q.Set("descending", "true")
	}
	if opts.Skip > 0 {
		q.Set("skip", jsonNumber(opts.Skip))
	}
	if opts.Limit > 0 {
		q.Set("limit", jsonNumber(opts.Limit))
	}
	if opts.IncludeDocs {
		q.Set("include_docs", "true")
	}

	path := "/_all_docs"
	var body interface{}
	method := http.MethodGet
	if len(opts.Keys) > 0 {
		method = http.MethodPost
		body = map[string]interface{}{"keys": opts.Keys}
	}

	var wire allDocsWire
	if err := a.do(ctx, method, path, q, body, &wire); err != nil {
		return adapter.AllDocsResponse{}, err
	}

	resp := adapter.AllDocsResponse{TotalRows: wire.TotalRows, Offset: wire.Offset}
	for _, r := range wire.Rows {
		row := adapter.AllDocsRow{ID: r.ID}
		if rev, err := parseRev(r.Value.Rev); err == nil {
			row.Rev = rev
		}
		if r.Doc != nil {
			if doc, err := toDocument(r.Doc); err == nil {
				row.Doc = doc
			}
		}
		resp.Rows = append(resp.Rows, row)
	}
	return resp, nil
}

func quoteJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func jsonNumber(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}
