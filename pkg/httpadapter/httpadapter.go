// Package httpadapter implements the adapter.Adapter contract against a
// remote CouchDB-wire-compatible server: a *http.Client, json.Marshal/Decode
// request bodies, and status-code checks that turn into typed errors
// instead of bare strings.
package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gocouch/gocouch/pkg/adapter"
	"github.com/gocouch/gocouch/pkg/dberr"
)

// Config describes a remote database reachable over HTTP.
type Config struct {
	BaseURL  string // e.g. "http://localhost:5984/mydb"
	Username string
	Password string
	Client   *http.Client
	Logger   *slog.Logger
}

type Adapter struct {
	baseURL string
	user    string
	pass    string
	client  *http.Client
	log     *slog.Logger
}

var _ adapter.Adapter = (*Adapter)(nil)

func New(cfg Config) *Adapter {
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		user:    cfg.Username,
		pass:    cfg.Password,
		client:  client,
		log:     log,
	}
}

func (a *Adapter) url(path string, query url.Values) string {
	u := a.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// do issues an HTTP request, decodes a JSON response into out (if non-nil),
// and translates non-2xx statuses into the dberr taxonomy.
func (a *Adapter) do(ctx context.Context, method, path string, query url.Values, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return dberr.JSON(err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.url(path, query), reader)
	if err != nil {
		return dberr.IO(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if a.user != "" {
		req.SetBasicAuth(a.user, a.pass)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return dberr.IO(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(resp.Body)
		return statusToError(resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	if out == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(out); err != nil {
		return dberr.JSON(err)
	}
	return nil
}

func statusToError(status int, body string) error {
	switch status {
	case http.StatusUnauthorized:
		return dberr.Unauthorized()
	case http.StatusForbidden:
		return dberr.Forbidden(body)
	case http.StatusNotFound:
		return dberr.NotFound(body)
	case http.StatusConflict:
		return dberr.Conflict()
	case http.StatusBadRequest:
		return dberr.BadRequest(body)
	default:
		return dberr.Database("http", fmt.Errorf("status %d: %s", status, body))
	}
}

type infoWire struct {
	DBName    string `json:"db_name"`
	DocCount  int64  `json:"doc_count"`
	UpdateSeq string `json:"update_seq"`
}

func (a *Adapter) Info(ctx context.Context) (adapter.DbInfo, error) {
	var wire infoWire
	if err := a.do(ctx, http.MethodGet, "", nil, nil, &wire); err != nil {
		return adapter.DbInfo{}, err
	}
	return adapter.DbInfo{Name: wire.DBName, DocCount: wire.DocCount, UpdateSeq: parseSeq(wire.UpdateSeq)}, nil
}

func parseSeq(s string) adapter.Seq {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return adapter.NumSeq(n)
	}
	return adapter.StrSeq(s)
}
