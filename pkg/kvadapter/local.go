package kvadapter

import (
	"context"
	"encoding/json"

	"github.com/dgraph-io/badger/v4"

	"github.com/gocouch/gocouch/pkg/adapter"
	"github.com/gocouch/gocouch/pkg/dberr"
)

// GetLocal, PutLocal, and RemoveLocal implement the local-docs side
// channel: plain key/value pairs, never part of the changes feed and
// never replicated, stored in their own table.
func (a *Adapter) GetLocal(ctx context.Context, id string) (adapter.Body, error) {
	var body adapter.Body
	err := a.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(localKey(id))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return dberr.NotFound(id)
			}
			return err
		}
		return item.Value(func(b []byte) error {
			var m map[string]interface{}
			if err := json.Unmarshal(b, &m); err != nil {
				return dberr.JSON(err)
			}
			body = m
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (a *Adapter) PutLocal(ctx context.Context, id string, body adapter.Body) error {
	b, err := json.Marshal(body)
	if err != nil {
		return dberr.JSON(err)
	}
	err = a.db.Update(func(txn *badger.Txn) error {
		return txn.Set(localKey(id), b)
	})
	if err != nil {
		return dberr.Database("put_local", err)
	}
	return nil
}

func (a *Adapter) RemoveLocal(ctx context.Context, id string) error {
	err := a.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(localKey(id))
	})
	if err != nil {
		return dberr.Database("remove_local", err)
	}
	return nil
}
