package kvadapter

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/gocouch/gocouch/pkg/dberr"
	"github.com/gocouch/gocouch/pkg/revision"
	"github.com/gocouch/gocouch/pkg/revtree"
)

// Compact walks every document's rev tree, drops rev_data rows for
// non-winning, non-leaf revisions, and rewrites those nodes as Missing.
// Bodies that survive (the winner and every leaf,
// conflicted or not) are re-packed through xz so the compaction pass
// also tightens their on-disk footprint.
func (a *Adapter) Compact(ctx context.Context) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	var dropped, recompressed int

	err := a.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := []byte{prefixDocs, 0}
		it := txn.NewIterator(opts)
		defer it.Close()

		var docIDs []string
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			docIDs = append(docIDs, string(it.Item().KeyCopy(nil)[len(prefix):]))
		}

		for _, id := range docIDs {
			var rec docRecord
			if err := getJSON(txn, docsKey(id), &rec); err != nil {
				if err == badger.ErrKeyNotFound {
					continue
				}
				return err
			}

			win, ok := revtree.WinningRev(rec.Tree)
			if !ok {
				continue
			}
			keep := map[string]bool{win.String(): true}
			for _, l := range revtree.Leaves(rec.Tree) {
				keep[l.Revision().String()] = true
			}

			changed := false
			dataPrefix := revDataPrefix(id)
			dit := txn.NewIterator(badger.DefaultIteratorOptions)
			var revKeys [][]byte
			for dit.Seek(dataPrefix); dit.ValidForPrefix(dataPrefix); dit.Next() {
				revKeys = append(revKeys, dit.Item().KeyCopy(nil))
			}
			dit.Close()

			for _, key := range revKeys {
				revStr := string(key[len(dataPrefix):])
				if keep[revStr] {
					item, err := txn.Get(key)
					if err != nil {
						return err
					}
					stored, err := item.ValueCopy(nil)
					if err != nil {
						return err
					}
					recompressed2, err := recompressRevDataValue(stored)
					if err != nil {
						return err
					}
					if string(recompressed2) != string(stored) {
						if err := txn.Set(key, recompressed2); err != nil {
							return err
						}
						recompressed++
					}
					continue
				}
				rev, err := revision.Parse(revStr)
				if err != nil {
					continue
				}
				if node, ok := revtree.FindNode(rec.Tree, rev); ok {
					node.Status = revtree.Missing
					changed = true
				}
				if err := txn.Delete(key); err != nil {
					return err
				}
				dropped++
			}

			if changed {
				if err := putJSON(txn, docsKey(id), rec); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return dberr.Database("compact", err)
	}

	a.log.WithFields(logrus.Fields{"dropped": dropped, "recompressed": recompressed}).Info("compaction complete")
	return nil
}
