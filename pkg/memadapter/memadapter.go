// Package memadapter implements pkg/adapter.Adapter entirely in memory
// behind a single exclusive write lock. It is the reference
// implementation every other backend is tested against.
package memadapter

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sort"
	"strings"
	"sync"

	"github.com/gocouch/gocouch/pkg/adapter"
	"github.com/gocouch/gocouch/pkg/dberr"
	"github.com/gocouch/gocouch/pkg/revision"
	"github.com/gocouch/gocouch/pkg/revtree"
)

type record struct {
	tree revtree.Tree
	seq  int64
}

// Adapter is the in-memory reference backend.
type Adapter struct {
	mu sync.Mutex

	name      string
	dbUUID    string
	updateSeq int64
	revLimit  int64

	docs    map[string]*record
	bodies  map[string]adapter.Body // key: id\0rev
	changes map[int64]string        // seq -> doc id
	local   map[string]adapter.Body
}

// New creates an empty in-memory database.
func New(name string) *Adapter {
	return &Adapter{
		name:     name,
		dbUUID:   newUUID(),
		revLimit: 1000,
		docs:     make(map[string]*record),
		bodies:   make(map[string]adapter.Body),
		changes:  make(map[int64]string),
		local:    make(map[string]adapter.Body),
	}
}

func newUUID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func bodyKey(id string, rev revision.Revision) string {
	return id + "\x00" + rev.String()
}

var _ adapter.Adapter = (*Adapter)(nil)

func (a *Adapter) Info(ctx context.Context) (adapter.DbInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var count int64
	for _, rec := range a.docs {
		if _, ok := revtree.WinningRev(rec.tree); ok && !revtree.IsDeleted(rec.tree) {
			count++
		}
	}
	return adapter.DbInfo{Name: a.name, DocCount: count, UpdateSeq: adapter.NumSeq(a.updateSeq)}, nil
}

func (a *Adapter) Get(ctx context.Context, id string, opts adapter.GetOptions) (*adapter.Document, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.getLocked(id, opts)
}

func (a *Adapter) getLocked(id string, opts adapter.GetOptions) (*adapter.Document, error) {
	rec, ok := a.docs[id]
	if !ok {
		return nil, dberr.NotFound(id)
	}

	if opts.OpenRevs.All || len(opts.OpenRevs.Revs) > 0 {
		return a.getOpenRevs(id, rec, opts)
	}

	rev := opts.Rev
	if rev.IsZero() {
		win, ok := revtree.WinningRev(rec.tree)
		if !ok {
			return nil, dberr.NotFound(id)
		}
		rev = win
	}

	node, ok := revtree.FindNode(rec.tree, rev)
	if !ok {
		return nil, dberr.NotFound(id)
	}
	if node.Deleted && opts.Rev.IsZero() {
		return nil, dberr.NotFound(id)
	}
	if node.Status == revtree.Missing {
		return nil, dberr.NotFound(id + "@" + rev.String())
	}

	body := a.bodies[bodyKey(id, rev)]
	doc := &adapter.Document{ID: id, Rev: rev, Deleted: node.Deleted, Body: body}

	if opts.Conflicts {
		doc.Conflicts = revtree.CollectConflicts(rec.tree)
	}
	if opts.Revs {
		if chain, ok := revtree.Ancestry(rec.tree, rev); ok {
			ids := make([]string, len(chain))
			for i, r := range chain {
				ids[len(chain)-1-i] = r.Hash
			}
			doc.Revisions = &adapter.RevisionsInfo{Start: rev.Pos, IDs: ids}
		}
	}
	return doc, nil
}

func (a *Adapter) getOpenRevs(id string, rec *record, opts adapter.GetOptions) (*adapter.Document, error) {
	var revs []revision.Revision
	if opts.OpenRevs.All {
		for _, l := range revtree.Leaves(rec.tree) {
			revs = append(revs, l.Revision())
		}
	} else {
		revs = opts.OpenRevs.Revs
	}

	var results []adapter.OpenRevResult
	for _, r := range revs {
		node, ok := revtree.FindNode(rec.tree, r)
		if !ok {
			results = append(results, adapter.OpenRevResult{Err: dberr.NotFound(id + "@" + r.String())})
			continue
		}
		body := a.bodies[bodyKey(id, r)]
		results = append(results, adapter.OpenRevResult{OK: &adapter.Document{ID: id, Rev: r, Deleted: node.Deleted, Body: body}})
	}
	return &adapter.Document{ID: id, OpenRevs: results}, nil
}

func (a *Adapter) BulkDocs(ctx context.Context, docs []*adapter.Document, opts adapter.BulkDocsOptions) ([]adapter.DocResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	newEdits := opts.EffectiveNewEdits()
	results := make([]adapter.DocResult, len(docs))

	for i, doc := range docs {
		if doc.ID == "" {
			return nil, dberr.MissingID()
		}

		rec, existed := a.docs[doc.ID]
		if !existed {
			rec = &record{}
		}

		var path *revtree.Path
		var newRev revision.Revision

		if newEdits {
			win, hasWinner := revtree.WinningRev(rec.tree)
			if hasWinner && doc.Rev.IsZero() {
				results[i] = adapter.DocResult{ID: doc.ID, OK: false, Error: "conflict", Reason: "Document update conflict."}
				continue
			}
			if hasWinner && doc.Rev != win {
				results[i] = adapter.DocResult{ID: doc.ID, OK: false, Error: "conflict", Reason: "Document update conflict."}
				continue
			}
			if !hasWinner && !doc.Rev.IsZero() {
				results[i] = adapter.DocResult{ID: doc.ID, OK: false, Error: "conflict", Reason: "Document update conflict."}
				continue
			}
			canonical := adapter.CanonicalBytes(doc.Body)
			newRev = revision.Next(win, doc.Deleted, canonical)
			path = revtree.NewPath(win, newRev, doc.Deleted)
		} else {
			newRev = doc.Rev
			if doc.Revisions != nil && len(doc.Revisions.IDs) > 0 {
				path = revtree.NewPathFromAncestry(doc.Revisions.Start, doc.Revisions.IDs, doc.Deleted, false)
			} else {
				// No _revisions means the supplied rev is accepted as a new,
				// disjoint root, reproducing CouchDB's own behavior here
				// rather than inventing a new policy — see DESIGN.md.
				path = &revtree.Path{Pos: newRev.Pos, Root: &revtree.Node{
					Hash:    newRev.Hash,
					Status:  revtree.Available,
					Deleted: doc.Deleted,
				}}
			}
		}

		newTree, mergeResult := revtree.Merge(rec.tree, path, a.revLimit)
		rec.tree = newTree

		// AlreadyKnown means the graft was a no-op (e.g. a replayed
		// new_edits=false batch): the tree may still gain a Status or
		// Deleted upgrade, but nothing changed that belongs in the
		// changes feed, so update_seq does not advance.
		if mergeResult != revtree.AlreadyKnown {
			a.updateSeq++
			if existed && rec.seq != 0 {
				delete(a.changes, rec.seq)
			}
			rec.seq = a.updateSeq
			a.changes[rec.seq] = doc.ID
		}
		a.docs[doc.ID] = rec
		a.bodies[bodyKey(doc.ID, newRev)] = doc.Body

		results[i] = adapter.DocResult{ID: doc.ID, Rev: newRev, OK: true}
	}
	return results, nil
}

func (a *Adapter) AllDocs(ctx context.Context, opts adapter.AllDocsOptions) (adapter.AllDocsResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var all []allDocsRow
	for id, rec := range a.docs {
		win, ok := revtree.WinningRev(rec.tree)
		if !ok || revtree.IsDeleted(rec.tree) {
			continue
		}
		all = append(all, allDocsRow{id: id, win: win})
	}

	if len(opts.Keys) > 0 {
		wanted := make(map[string]bool, len(opts.Keys))
		for _, k := range opts.Keys {
			wanted[k] = true
		}
		filtered := all[:0]
		for _, r := range all {
			if wanted[r.id] {
				filtered = append(filtered, r)
			}
		}
		all = filtered
	}

	sort.Slice(all, func(i, j int) bool { return all[i].id < all[j].id })
	if opts.Descending {
		sort.Slice(all, func(i, j int) bool { return all[i].id > all[j].id })
	}

	all = rangeFilter(all, opts)

	total := len(all)
	if opts.Skip > 0 && opts.Skip < len(all) {
		all = all[opts.Skip:]
	} else if opts.Skip >= len(all) {
		all = nil
	}
	if opts.Limit > 0 && opts.Limit < len(all) {
		all = all[:opts.Limit]
	}

	resp := adapter.AllDocsResponse{TotalRows: total, Offset: opts.Skip}
	for _, r := range all {
		docRow := adapter.AllDocsRow{ID: r.id, Rev: r.win}
		if opts.IncludeDocs {
			doc, err := a.getLocked(r.id, adapter.GetOptions{})
			if err == nil {
				docRow.Doc = doc
			}
		}
		resp.Rows = append(resp.Rows, docRow)
	}
	return resp, nil
}

type allDocsRow struct {
	id  string
	win revision.Revision
}

func rangeFilter(all []allDocsRow, opts adapter.AllDocsOptions) []allDocsRow {
	if !opts.HasStartKey && !opts.HasEndKey {
		return all
	}
	var out []allDocsRow
	for _, r := range all {
		if opts.HasStartKey && strings.Compare(r.id, opts.StartKey) < 0 {
			continue
		}
		if opts.HasEndKey {
			cmp := strings.Compare(r.id, opts.EndKey)
			if cmp > 0 || (cmp == 0 && !opts.InclusiveEnd) {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

func (a *Adapter) Changes(ctx context.Context, opts adapter.ChangesOptions) (adapter.ChangesResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var seqs []int64
	for seq := range a.changes {
		if seq > opts.Since.Num {
			seqs = append(seqs, seq)
		}
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	if opts.Descending {
		sort.Slice(seqs, func(i, j int) bool { return seqs[i] > seqs[j] })
	}
	if opts.Limit > 0 && opts.Limit < len(seqs) {
		seqs = seqs[:opts.Limit]
	}

	resp := adapter.ChangesResponse{LastSeq: opts.Since}
	for _, seq := range seqs {
		id := a.changes[seq]
		rec := a.docs[id]
		win, _ := revtree.WinningRev(rec.tree)
		ev := adapter.ChangeEvent{
			Seq:     adapter.NumSeq(seq),
			ID:      id,
			Changes: []adapter.ChangeRev{{Rev: win}},
			Deleted: revtree.IsDeleted(rec.tree),
		}
		if opts.IncludeDocs {
			if doc, err := a.getLocked(id, adapter.GetOptions{}); err == nil {
				ev.Doc = doc
			}
		}
		resp.Results = append(resp.Results, ev)
		if seq > resp.LastSeq.Num {
			resp.LastSeq = adapter.NumSeq(seq)
		}
	}
	return resp, nil
}

func (a *Adapter) RevsDiff(ctx context.Context, req adapter.RevsDiffRequest) (adapter.RevsDiffResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	resp := make(adapter.RevsDiffResponse, len(req))
	for id, revs := range req {
		rec, ok := a.docs[id]
		var result adapter.RevsDiffResult
		for _, r := range revs {
			if !ok {
				result.Missing = append(result.Missing, r)
				continue
			}
			if _, found := revtree.FindNode(rec.tree, r); !found {
				result.Missing = append(result.Missing, r)
			}
		}
		if ok && len(result.Missing) > 0 {
			for _, l := range revtree.Leaves(rec.tree) {
				result.PossibleAncestors = append(result.PossibleAncestors, l.Revision())
			}
		}
		resp[id] = result
	}
	return resp, nil
}

func (a *Adapter) BulkGet(ctx context.Context, reqs []adapter.BulkGetRequest) ([]adapter.BulkGetResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	results := make([]adapter.BulkGetResult, len(reqs))
	for i, req := range reqs {
		opts := adapter.GetOptions{Rev: req.Rev, Revs: true}
		doc, err := a.getLocked(req.ID, opts)
		if err != nil {
			results[i] = adapter.BulkGetResult{ID: req.ID, Error: &adapter.BulkGetError{Rev: req.Rev, Error: "not_found", Reason: err.Error()}}
			continue
		}
		results[i] = adapter.BulkGetResult{ID: req.ID, Docs: []adapter.BulkGetDoc{{OK: doc}}}
	}
	return results, nil
}

func (a *Adapter) GetLocal(ctx context.Context, id string) (adapter.Body, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	body, ok := a.local[id]
	if !ok {
		return nil, dberr.NotFound(id)
	}
	return body, nil
}

func (a *Adapter) PutLocal(ctx context.Context, id string, body adapter.Body) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.local[id] = body
	return nil
}

func (a *Adapter) RemoveLocal(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.local, id)
	return nil
}

func (a *Adapter) Compact(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for id, rec := range a.docs {
		win, ok := revtree.WinningRev(rec.tree)
		if !ok {
			continue
		}
		leaves := map[revision.Revision]bool{}
		for _, l := range revtree.Leaves(rec.tree) {
			leaves[l.Revision()] = true
		}
		for key := range a.bodies {
			prefix := id + "\x00"
			if !strings.HasPrefix(key, prefix) {
				continue
			}
			revStr := key[len(prefix):]
			rev, err := revision.Parse(revStr)
			if err != nil {
				continue
			}
			if rev == win || leaves[rev] {
				continue
			}
			delete(a.bodies, key)
			if node, ok := revtree.FindNode(rec.tree, rev); ok {
				node.Status = revtree.Missing
			}
		}
	}
	return nil
}

func (a *Adapter) Destroy(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.docs = make(map[string]*record)
	a.bodies = make(map[string]adapter.Body)
	a.changes = make(map[int64]string)
	a.local = make(map[string]adapter.Body)
	a.updateSeq = 0
	a.dbUUID = newUUID()
	return nil
}
