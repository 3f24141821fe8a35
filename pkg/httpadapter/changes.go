package httpadapter

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gocouch/gocouch/pkg/adapter"
)

type changesWire struct {
	Results []struct {
		Seq     rawSeq `json:"seq"`
		ID      string `json:"id"`
		Deleted bool   `json:"deleted,omitempty"`
		Changes []struct {
			Rev string `json:"rev"`
		} `json:"changes"`
		Doc map[string]interface{} `json:"doc,omitempty"`
	} `json:"results"`
	LastSeq rawSeq `json:"last_seq"`
}

// rawSeq decodes a CouchDB sequence value, which may be a plain number
// or an opaque string depending on server version.
type rawSeq string

func (s *rawSeq) UnmarshalJSON(b []byte) error {
	*s = rawSeq(trimQuotes(string(b)))
	return nil
}

func trimQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

func (a *Adapter) Changes(ctx context.Context, opts adapter.ChangesOptions) (adapter.ChangesResponse, error) {
	q := url.Values{}
	q.Set("since", opts.Since.String())
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.IncludeDocs {
		q.Set("include_docs", "true")
	}
	if opts.Descending {
		q.Set("descending", "true")
	}

	var wire changesWire
	if err := a.do(ctx, http.MethodGet, "/_changes", q, nil, &wire); err != nil {
		return adapter.ChangesResponse{}, err
	}

	resp := adapter.ChangesResponse{LastSeq: parseSeq(string(wire.LastSeq))}
	for _, r := range wire.Results {
		ev := adapter.ChangeEvent{Seq: parseSeq(string(r.Seq)), ID: r.ID, Deleted: r.Deleted}
		for _, c := range r.Changes {
			if rev, err := parseRev(c.Rev); err == nil {
				ev.Changes = append(ev.Changes, adapter.ChangeRev{Rev: rev})
			}
		}
		if r.Doc != nil {
			if doc, err := toDocument(r.Doc); err == nil {
				ev.Doc = doc
			}
		}
		resp.Results = append(resp.Results, ev)
	}
	return resp, nil
}
