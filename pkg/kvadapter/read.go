package kvadapter

import (
	"context"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/gocouch/gocouch/pkg/adapter"
	"github.com/gocouch/gocouch/pkg/dberr"
	"github.com/gocouch/gocouch/pkg/revision"
	"github.com/gocouch/gocouch/pkg/revtree"
)

func (a *Adapter) Info(ctx context.Context) (adapter.DbInfo, error) {
	var info adapter.DbInfo
	info.Name = a.name

	err := a.db.View(func(txn *badger.Txn) error {
		var meta metaRecord
		if err := getJSON(txn, []byte(metaKey), &meta); err != nil {
			return err
		}
		info.UpdateSeq = adapter.NumSeq(meta.UpdateSeq)

		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte{prefixDocs, 0}
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec docRecord
			if err := it.Item().Value(func(b []byte) error { return decodeDocRecordBytes(b, &rec) }); err != nil {
				return err
			}
			if _, ok := revtree.WinningRev(rec.Tree); ok && !revtree.IsDeleted(rec.Tree) {
				info.DocCount++
			}
		}
		return nil
	})
	if err != nil {
		return adapter.DbInfo{}, dberr.Database("info", err)
	}
	return info, nil
}

func (a *Adapter) Get(ctx context.Context, id string, opts adapter.GetOptions) (*adapter.Document, error) {
	var doc *adapter.Document
	err := a.db.View(func(txn *badger.Txn) error {
		d, err := a.getLocked(txn, id, opts)
		doc = d
		return err
	})
	return doc, err
}

func (a *Adapter) getLocked(txn *badger.Txn, id string, opts adapter.GetOptions) (*adapter.Document, error) {
	var rec docRecord
	if err := getJSON(txn, docsKey(id), &rec); err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, dberr.NotFound(id)
		}
		return nil, err
	}

	if opts.OpenRevs.All || len(opts.OpenRevs.Revs) > 0 {
		return a.getOpenRevs(txn, id, rec, opts)
	}

	rev := opts.Rev
	if rev.IsZero() {
		win, ok := revtree.WinningRev(rec.Tree)
		if !ok {
			return nil, dberr.NotFound(id)
		}
		rev = win
	}

	node, ok := revtree.FindNode(rec.Tree, rev)
	if !ok {
		return nil, dberr.NotFound(id)
	}
	if node.Deleted && opts.Rev.IsZero() {
		return nil, dberr.NotFound(id)
	}
	if node.Status == revtree.Missing {
		return nil, dberr.NotFound(id + "@" + rev.String())
	}

	body, deleted, err := a.readRevBody(txn, id, rev)
	if err != nil {
		return nil, err
	}

	doc := &adapter.Document{ID: id, Rev: rev, Deleted: deleted, Body: body}
	if opts.Conflicts {
		doc.Conflicts = revtree.CollectConflicts(rec.Tree)
	}
	if opts.Revs {
		if chain, ok := revtree.Ancestry(rec.Tree, rev); ok {
			ids := make([]string, len(chain))
			for i, r := range chain {
				ids[len(chain)-1-i] = r.Hash
			}
			doc.Revisions = &adapter.RevisionsInfo{Start: rev.Pos, IDs: ids}
		}
	}
	return doc, nil
}

func (a *Adapter) getOpenRevs(txn *badger.Txn, id string, rec docRecord, opts adapter.GetOptions) (*adapter.Document, error) {
	var revs []revision.Revision
	if opts.OpenRevs.All {
		for _, l := range revtree.Leaves(rec.Tree) {
			revs = append(revs, l.Revision())
		}
	} else {
		revs = opts.OpenRevs.Revs
	}

	var results []adapter.OpenRevResult
	for _, r := range revs {
		node, ok := revtree.FindNode(rec.Tree, r)
		if !ok || node.Status == revtree.Missing {
			results = append(results, adapter.OpenRevResult{Err: dberr.NotFound(id + "@" + r.String())})
			continue
		}
		body, deleted, err := a.readRevBody(txn, id, r)
		if err != nil {
			results = append(results, adapter.OpenRevResult{Err: err})
			continue
		}
		results = append(results, adapter.OpenRevResult{OK: &adapter.Document{ID: id, Rev: r, Deleted: deleted, Body: body}})
	}
	return &adapter.Document{ID: id, OpenRevs: results}, nil
}

func (a *Adapter) readRevBody(txn *badger.Txn, id string, rev revision.Revision) (adapter.Body, bool, error) {
	item, err := txn.Get(revDataKey(id, rev.String()))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, false, dberr.NotFound(id + "@" + rev.String())
		}
		return nil, false, err
	}
	var out revDataRecord
	err = item.Value(func(b []byte) error {
		rec, err := unmarshalRevDataValue(b)
		if err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return adapter.Body(out.Data), out.Deleted, nil
}

func decodeDocRecordBytes(b []byte, rec *docRecord) error {
	return jsonUnmarshalOrDBErr(b, rec)
}

func (a *Adapter) AllDocs(ctx context.Context, opts adapter.AllDocsOptions) (adapter.AllDocsResponse, error) {
	type row struct {
		id  string
		win revision.Revision
	}
	var all []row

	err := a.db.View(func(txn *badger.Txn) error {
		if len(opts.Keys) > 0 {
			for _, id := range opts.Keys {
				var rec docRecord
				if err := getJSON(txn, docsKey(id), &rec); err != nil {
					continue
				}
				if win, ok := revtree.WinningRev(rec.Tree); ok && !revtree.IsDeleted(rec.Tree) {
					all = append(all, row{id: id, win: win})
				}
			}
			return nil
		}

		iterOpts := badger.DefaultIteratorOptions
		prefix := []byte{prefixDocs, 0}
		it := txn.NewIterator(iterOpts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			id := string(it.Item().Key()[len(prefix):])
			if opts.HasStartKey && strings.Compare(id, opts.StartKey) < 0 {
				continue
			}
			if opts.HasEndKey {
				cmp := strings.Compare(id, opts.EndKey)
				if cmp > 0 || (cmp == 0 && !opts.InclusiveEnd) {
					continue
				}
			}
			var rec docRecord
			if err := it.Item().Value(func(b []byte) error { return decodeDocRecordBytes(b, &rec) }); err != nil {
				return err
			}
			win, ok := revtree.WinningRev(rec.Tree)
			if !ok || revtree.IsDeleted(rec.Tree) {
				continue
			}
			all = append(all, row{id: id, win: win})
		}
		return nil
	})
	if err != nil {
		return adapter.AllDocsResponse{}, dberr.Database("all_docs", err)
	}

	if opts.Descending {
		reverseRows(all)
	}

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
			if doc, err := a.Get(ctx, r.id, adapter.GetOptions{}); err == nil {
				docRow.Doc = doc
			}
		}
		resp.Rows = append(resp.Rows, docRow)
	}
	return resp, nil
}

func reverseRows[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func (a *Adapter) Changes(ctx context.Context, opts adapter.ChangesOptions) (adapter.ChangesResponse, error) {
	resp := adapter.ChangesResponse{LastSeq: opts.Since}

	err := a.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		start := changesKey(opts.Since.Num + 1)
		for it.Seek(start); it.ValidForPrefix(changesPrefix()); it.Next() {
			seq := seqFromChangesKey(it.Item().Key())
			var cr changeRecord
			if err := it.Item().Value(func(b []byte) error { return jsonUnmarshalOrDBErr(b, &cr) }); err != nil {
				return err
			}

			var rec docRecord
			if err := getJSON(txn, docsKey(cr.DocID), &rec); err != nil {
				continue
			}
			win, _ := revtree.WinningRev(rec.Tree)
			ev := adapter.ChangeEvent{
				Seq:     adapter.NumSeq(seq),
				ID:      cr.DocID,
				Changes: []adapter.ChangeRev{{Rev: win}},
				Deleted: cr.Deleted,
			}
			if opts.IncludeDocs {
				if doc, err := a.getLocked(txn, cr.DocID, adapter.GetOptions{}); err == nil {
					ev.Doc = doc
				}
			}
			resp.Results = append(resp.Results, ev)
			if adapter.NumSeq(seq).Num > resp.LastSeq.Num {
				resp.LastSeq = adapter.NumSeq(seq)
			}
			if opts.Limit > 0 && len(resp.Results) >= opts.Limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return adapter.ChangesResponse{}, dberr.Database("changes", err)
	}
	if opts.Descending {
		reverseRows(resp.Results)
	}
	return resp, nil
}

func (a *Adapter) RevsDiff(ctx context.Context, req adapter.RevsDiffRequest) (adapter.RevsDiffResponse, error) {
	resp := make(adapter.RevsDiffResponse, len(req))

	err := a.db.View(func(txn *badger.Txn) error {
		for id, revs := range req {
			var rec docRecord
			found := true
			if err := getJSON(txn, docsKey(id), &rec); err != nil {
				if err != badger.ErrKeyNotFound {
					return err
				}
				found = false
			}

			var result adapter.RevsDiffResult
			for _, r := range revs {
				if !found {
					result.Missing = append(result.Missing, r)
					continue
				}
				if _, ok := revtree.FindNode(rec.Tree, r); !ok {
					result.Missing = append(result.Missing, r)
				}
			}
			if found && len(result.Missing) > 0 {
				for _, l := range revtree.Leaves(rec.Tree) {
					result.PossibleAncestors = append(result.PossibleAncestors, l.Revision())
				}
			}
			resp[id] = result
		}
		return nil
	})
	if err != nil {
		return nil, dberr.Database("revs_diff", err)
	}
	return resp, nil
}

func (a *Adapter) BulkGet(ctx context.Context, reqs []adapter.BulkGetRequest) ([]adapter.BulkGetResult, error) {
	results := make([]adapter.BulkGetResult, len(reqs))
	err := a.db.View(func(txn *badger.Txn) error {
		for i, req := range reqs {
			doc, err := a.getLocked(txn, req.ID, adapter.GetOptions{Rev: req.Rev, Revs: true})
			if err != nil {
				results[i] = adapter.BulkGetResult{ID: req.ID, Error: &adapter.BulkGetError{Rev: req.Rev, Error: "not_found", Reason: err.Error()}}
				continue
			}
			results[i] = adapter.BulkGetResult{ID: req.ID, Docs: []adapter.BulkGetDoc{{OK: doc}}}
		}
		return nil
	})
	if err != nil {
		return nil, dberr.Database("bulk_get", err)
	}
	return results, nil
}
