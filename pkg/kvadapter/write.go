package kvadapter

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/gocouch/gocouch/pkg/adapter"
	"github.com/gocouch/gocouch/pkg/dberr"
	"github.com/gocouch/gocouch/pkg/revision"
	"github.com/gocouch/gocouch/pkg/revtree"
)

// docRecord is what the docs table stores for one document: its full
// revision tree and the sequence of its most recent change.
type docRecord struct {
	Tree revtree.Tree `json:"tree"`
	Seq  int64        `json:"seq"`
}

type changeRecord struct {
	DocID   string `json:"doc_id"`
	Deleted bool   `json:"deleted"`
}

// BulkDocs implements the atomic write path: one badger write transaction
// under the process-level write permit, applying every input document in
// order and recording a per-doc result.
func (a *Adapter) BulkDocs(ctx context.Context, docs []*adapter.Document, opts adapter.BulkDocsOptions) ([]adapter.DocResult, error) {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	newEdits := opts.EffectiveNewEdits()
	results := make([]adapter.DocResult, len(docs))

	err := a.db.Update(func(txn *badger.Txn) error {
		var meta metaRecord
		if err := getJSON(txn, []byte(metaKey), &meta); err != nil {
			return err
		}

		for i, doc := range docs {
			if doc.ID == "" {
				return dberr.MissingID()
			}

			var rec docRecord
			existed := true
			if err := getJSON(txn, docsKey(doc.ID), &rec); err != nil {
				if err != badger.ErrKeyNotFound {
					return err
				}
				existed = false
			}

			var path *revtree.Path
			var newRev revision.Revision

			if newEdits {
				win, hasWinner := revtree.WinningRev(rec.Tree)
				switch {
				case hasWinner && doc.Rev.IsZero():
					results[i] = conflictResult(doc.ID)
					continue
				case hasWinner && doc.Rev != win:
					results[i] = conflictResult(doc.ID)
					continue
				case !hasWinner && !doc.Rev.IsZero():
					results[i] = conflictResult(doc.ID)
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
					// Accept the rev as a disjoint root when no ancestry is
					// supplied, reproducing CouchDB's own behavior here
					// rather than inventing a new policy — see DESIGN.md.
					path = &revtree.Path{Pos: newRev.Pos, Root: &revtree.Node{
						Hash: newRev.Hash, Status: revtree.Available, Deleted: doc.Deleted,
					}}
				}
			}

			var mergeResult revtree.MergeResult
			rec.Tree, mergeResult = revtree.Merge(rec.Tree, path, a.revLimit)

			// AlreadyKnown means the graft was a no-op (e.g. a replayed
			// new_edits=false batch): the tree may still gain a Status or
			// Deleted upgrade, but nothing changed that belongs in the
			// changes feed, so update_seq does not advance.
			if mergeResult != revtree.AlreadyKnown {
				meta.UpdateSeq++
				if existed && rec.Seq != 0 {
					txn.Delete(changesKey(rec.Seq))
				}
				rec.Seq = meta.UpdateSeq
			}

			if err := putJSON(txn, docsKey(doc.ID), rec); err != nil {
				return err
			}
			if mergeResult != revtree.AlreadyKnown {
				if err := putJSON(txn, changesKey(rec.Seq), changeRecord{DocID: doc.ID, Deleted: revtree.IsDeleted(rec.Tree)}); err != nil {
					return err
				}
			}
			value, err := marshalRevDataValue(revDataRecord{Data: doc.Body, Deleted: doc.Deleted})
			if err != nil {
				return err
			}
			if err := txn.Set(revDataKey(doc.ID, newRev.String()), value); err != nil {
				return err
			}

			results[i] = adapter.DocResult{ID: doc.ID, Rev: newRev, OK: true}
		}

		return putJSON(txn, []byte(metaKey), meta)
	})
	if err != nil {
		if dberr.IsConflict(err) || dberr.IsNotFound(err) || dberr.IsMissingID(err) {
			return nil, err
		}
		a.log.WithFields(logrus.Fields{"op": "bulk_docs", "count": len(docs)}).WithError(err).Error("bulk_docs transaction failed")
		return nil, dberr.Database("bulk_docs", err)
	}
	return results, nil
}

func conflictResult(id string) adapter.DocResult {
	return adapter.DocResult{ID: id, OK: false, Error: "conflict", Reason: "Document update conflict."}
}
