package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/gocouch/gocouch/pkg/adapter"
	"github.com/gocouch/gocouch/pkg/revision"
)

type docWire struct {
	ID        string         `json:"_id"`
	Rev       string         `json:"_rev"`
	Deleted   bool           `json:"_deleted,omitempty"`
	Conflicts []string       `json:"_conflicts,omitempty"`
	Revisions *revisionsWire `json:"_revisions,omitempty"`
}

type revisionsWire struct {
	Start int64    `json:"start"`
	IDs   []string `json:"ids"`
}

func toDocument(raw map[string]interface{}) (*adapter.Document, error) {
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var w docWire
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, err
	}
	rev, err := revision.Parse(w.Rev)
	if err != nil {
		return nil, err
	}

	doc := &adapter.Document{ID: w.ID, Rev: rev, Deleted: w.Deleted, Body: adapter.StripMetadata(raw)}
	for _, c := range w.Conflicts {
		if r, err := revision.Parse(c); err == nil {
			doc.Conflicts = append(doc.Conflicts, r)
		}
	}
	if w.Revisions != nil {
		doc.Revisions = &adapter.RevisionsInfo{Start: w.Revisions.Start, IDs: w.Revisions.IDs}
	}
	return doc, nil
}

func (a *Adapter) Get(ctx context.Context, id string, opts adapter.GetOptions) (*adapter.Document, error) {
	q := url.Values{}
	if !opts.Rev.IsZero() {
		q.Set("rev", opts.Rev.String())
	}
	if opts.Conflicts {
		q.Set("conflicts", "true")
	}
	if opts.Revs {
		q.Set("revs", "true")
	}
	if opts.OpenRevs.All {
		q.Set("open_revs", "all")
	} else if len(opts.OpenRevs.Revs) > 0 {
		revs := make([]string, len(opts.OpenRevs.Revs))
		for i, r := range opts.OpenRevs.Revs {
			revs[i] = r.String()
		}
		b, _ := json.Marshal(revs)
		q.Set("open_revs", string(b))
	}

	path := "/" + url.PathEscape(id)

	if opts.OpenRevs.All || len(opts.OpenRevs.Revs) > 0 {
		var wires []struct {
			OK    map[string]interface{} `json:"ok,omitempty"`
			Error string                  `json:"error,omitempty"`
			Rev   string                  `json:"rev,omitempty"`
			Reason string                 `json:"reason,omitempty"`
		}
		if err := a.do(ctx, http.MethodGet, path, q, nil, &wires); err != nil {
			return nil, err
		}
		doc := &adapter.Document{ID: id}
		for _, w := range wires {
			if w.OK != nil {
				d, err := toDocument(w.OK)
				result := adapter.OpenRevResult{OK: d}
				if err != nil {
					result.Err = err
				}
				doc.OpenRevs = append(doc.OpenRevs, result)
				continue
			}
			rev, _ := revision.Parse(w.Rev)
			doc.OpenRevs = append(doc.OpenRevs, adapter.OpenRevResult{Err: &wireError{rev: rev, reason: w.Reason}})
		}
		return doc, nil
	}

	var raw map[string]interface{}
	if err := a.do(ctx, http.MethodGet, path, q, nil, &raw); err != nil {
		return nil, err
	}
	return toDocument(raw)
}

type wireError struct {
	rev    revision.Revision
	reason string
}

func (e *wireError) Error() string {
	return "rev " + e.rev.String() + ": " + strings.TrimSpace(e.reason)
}
