package kvadapter

import (
	"context"

	"github.com/dgraph-io/badger/v4"

	"github.com/gocouch/gocouch/pkg/dberr"
)

// Destroy empties every table but keeps the underlying badger files in
// place: destruction empties tables but preserves the file.
func (a *Adapter) Destroy(ctx context.Context) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	err := a.db.Update(func(txn *badger.Txn) error {
		for _, prefix := range [][]byte{
			{prefixDocs, 0}, {prefixRevData, 0}, {prefixChanges},
			{prefixLocalDocs, 0}, {prefixAttachment, 0},
		} {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			var keys [][]byte
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				keys = append(keys, it.Item().KeyCopy(nil))
			}
			it.Close()
			for _, k := range keys {
				if err := txn.Delete(k); err != nil {
					return err
				}
			}
		}
		return putJSON(txn, []byte(metaKey), metaRecord{UpdateSeq: 0, DBUUID: newUUID()})
	})
	if err != nil {
		return dberr.Database("destroy", err)
	}
	return nil
}
