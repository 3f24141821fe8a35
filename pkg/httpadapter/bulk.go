package httpadapter

import (
	"context"
	"net/http"

	"github.com/gocouch/gocouch/pkg/adapter"
	"github.com/gocouch/gocouch/pkg/revision"
)

type bulkDocsRequest struct {
	Docs     []map[string]interface{} `json:"docs"`
	NewEdits bool                      `json:"new_edits"`
}

func toWireDoc(d *adapter.Document) map[string]interface{} {
	return d.ToWire()
}

func (a *Adapter) BulkDocs(ctx context.Context, docs []*adapter.Document, opts adapter.BulkDocsOptions) ([]adapter.DocResult, error) {
	wire := make([]map[string]interface{}, len(docs))
	for i, d := range docs {
		wire[i] = toWireDoc(d)
	}

	var out []struct {
		ID     string `json:"id"`
		Rev    string `json:"rev,omitempty"`
		OK     bool   `json:"ok,omitempty"`
		Error  string `json:"error,omitempty"`
		Reason string `json:"reason,omitempty"`
	}
	req := bulkDocsRequest{Docs: wire, NewEdits: opts.EffectiveNewEdits()}
	if err := a.do(ctx, http.MethodPost, "/_bulk_docs", nil, req, &out); err != nil {
		return nil, err
	}

	results := make([]adapter.DocResult, len(out))
	for i, r := range out {
		res := adapter.DocResult{ID: r.ID, OK: r.OK, Error: r.Error, Reason: r.Reason}
		if r.Rev != "" {
			if rev, err := revision.Parse(r.Rev); err == nil {
				res.Rev = rev
			}
		}
		results[i] = res
	}
	return results, nil
}

type bulkGetRequest struct {
	Docs []bulkGetDocRequest `json:"docs"`
}

type bulkGetDocRequest struct {
	ID  string `json:"id"`
	Rev string `json:"rev,omitempty"`
}

func (a *Adapter) BulkGet(ctx context.Context, reqs []adapter.BulkGetRequest) ([]adapter.BulkGetResult, error) {
	wire := make([]bulkGetDocRequest, len(reqs))
	for i, r := range reqs {
		d := bulkGetDocRequest{ID: r.ID}
		if !r.Rev.IsZero() {
			d.Rev = r.Rev.String()
		}
		wire[i] = d
	}

	var out struct {
		Results []struct {
			ID   string `json:"id"`
			Docs []struct {
				OK    map[string]interface{} `json:"ok,omitempty"`
				Error *struct {
					Rev    string `json:"rev"`
					Error  string `json:"error"`
					Reason string `json:"reason"`
				} `json:"error,omitempty"`
			} `json:"docs"`
		} `json:"results"`
	}
	if err := a.do(ctx, http.MethodPost, "/_bulk_get", nil, bulkGetRequest{Docs: wire}, &out); err != nil {
		return nil, err
	}

	results := make([]adapter.BulkGetResult, len(out.Results))
	for i, r := range out.Results {
		res := adapter.BulkGetResult{ID: r.ID}
		for _, d := range r.Docs {
			if d.OK != nil {
				doc, err := toDocument(d.OK)
				if err == nil {
					res.Docs = append(res.Docs, adapter.BulkGetDoc{OK: doc})
				}
				continue
			}
			if d.Error != nil {
				rev, _ := revision.Parse(d.Error.Rev)
				res.Error = &adapter.BulkGetError{Rev: rev, Error: d.Error.Error, Reason: d.Error.Reason}
			}
		}
		results[i] = res
	}
	return results, nil
}

type revsDiffWireResult struct {
	Missing           []string `json:"missing,omitempty"`
	PossibleAncestors []string `json:"possible_ancestors,omitempty"`
}

func (a *Adapter) RevsDiff(ctx context.Context, req adapter.RevsDiffRequest) (adapter.RevsDiffResponse, error) {
	wire := make(map[string][]string, len(req))
	for id, revs := range req {
		strs := make([]string, len(revs))
		for i, r := range revs {
			strs[i] = r.String()
		}
		wire[id] = strs
	}

	var out map[string]revsDiffWireResult
	if err := a.do(ctx, http.MethodPost, "/_revs_diff", nil, wire, &out); err != nil {
		return nil, err
	}

	resp := make(adapter.RevsDiffResponse, len(out))
	for id, r := range out {
		resp[id] = adapter.RevsDiffResult{
			Missing:           parseRevs(r.Missing),
			PossibleAncestors: parseRevs(r.PossibleAncestors),
		}
	}
	return resp, nil
}

func parseRev(s string) (revision.Revision, error) {
	return revision.Parse(s)
}

func parseRevs(strs []string) []revision.Revision {
	out := make([]revision.Revision, 0, len(strs))
	for _, s := range strs {
		if r, err := revision.Parse(s); err == nil {
			out = append(out, r)
		}
	}
	return out
}
