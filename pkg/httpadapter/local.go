package httpadapter

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/gocouch/gocouch/pkg/adapter"
)

// localDocPath builds the `/db/_local/{id}` path CouchDB expects for
// local docs. Callers pass id already carrying the "_local/" prefix
// (e.g. pkg/replicate's checkpoint ids); PathEscape would otherwise
// turn that literal "/" into "%2F" and miss the local-doc endpoint
// entirely, so the separator is routed around escaping, not through it.
func localDocPath(id string) string {
	return "/_local/" + url.PathEscape(strings.TrimPrefix(id, "_local/"))
}

func (a *Adapter) GetLocal(ctx context.Context, id string) (adapter.Body, error) {
	var body map[string]interface{}
	if err := a.do(ctx, http.MethodGet, localDocPath(id), nil, nil, &body); err != nil {
		return nil, err
	}
	return adapter.StripMetadata(body), nil
}

func (a *Adapter) PutLocal(ctx context.Context, id string, body adapter.Body) error {
	return a.do(ctx, http.MethodPut, localDocPath(id), nil, body, nil)
}

func (a *Adapter) RemoveLocal(ctx context.Context, id string) error {
	return a.do(ctx, http.MethodDelete, localDocPath(id), nil, nil, nil)
}

func (a *Adapter) Compact(ctx context.Context) error {
	return a.do(ctx, http.MethodPost, "/_compact", nil, struct{}{}, nil)
}

func (a *Adapter) Destroy(ctx context.Context) error {
	return a.do(ctx, http.MethodDelete, "", nil, nil, nil)
}
