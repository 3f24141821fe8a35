package kvadapter

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/ulikunitz/xz/lzma"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/gocouch/gocouch/pkg/dberr"
)

var errEmptyRevData = errors.New("kvadapter: empty or unrecognized rev_data value")

// putJSON and getJSON back the docs/changes/meta tables: a
// self-describing JSON encoding, chosen for debuggability over the
// embedded store's raw bytes, which a binary encoding is free to use
// provided round-trip equivalence holds.
func putJSON(txn *badger.Txn, key []byte, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return dberr.JSON(err)
	}
	return txn.Set(key, b)
}

func getJSON(txn *badger.Txn, key []byte, v interface{}) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(b []byte) error { return jsonUnmarshalOrDBErr(b, v) })
}

func jsonUnmarshalOrDBErr(b []byte, v interface{}) error {
	if err := json.Unmarshal(b, v); err != nil {
		return dberr.JSON(err)
	}
	return nil
}

// revDataRecord is what rev_data stores for one revision: the body
// without underscore fields, plus the deleted flag. A binary form is
// allowed provided round-trip equivalence holds; this package
// encodes it as a protobuf structpb.Struct so the on-disk bytes are
// compact and schema-free without hand-rolled binary framing.
type revDataRecord struct {
	Data    map[string]interface{}
	Deleted bool
}

func encodeRevData(rec revDataRecord) ([]byte, error) {
	fields := map[string]interface{}{
		"data":    rec.Data,
		"deleted": rec.Deleted,
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, dberr.JSON(err)
	}
	b, err := proto.Marshal(s)
	if err != nil {
		return nil, dberr.JSON(err)
	}
	return b, nil
}

func decodeRevData(b []byte) (revDataRecord, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(b, &s); err != nil {
		return revDataRecord{}, dberr.JSON(err)
	}
	m := s.AsMap()
	rec := revDataRecord{}
	if data, ok := m["data"].(map[string]interface{}); ok {
		rec.Data = data
	}
	if deleted, ok := m["deleted"].(bool); ok {
		rec.Deleted = deleted
	}
	return rec, nil
}

// compressRevData xz-compresses an already-encoded rev_data value for
// the compaction pass, which re-packs the bodies that survive stemming
// more tightly since they are no longer expected to be read often.
func compressRevData(encoded []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := lzma.NewWriter(&buf)
	if err != nil {
		return nil, dberr.IO(err)
	}
	if _, err := w.Write(encoded); err != nil {
		return nil, dberr.IO(err)
	}
	if err := w.Close(); err != nil {
		return nil, dberr.IO(err)
	}
	return buf.Bytes(), nil
}

func decompressRevData(compressed []byte) ([]byte, error) {
	r, err := lzma.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, dberr.IO(err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, dberr.IO(err)
	}
	return buf.Bytes(), nil
}

// Stored rev_data values carry a one-byte marker so compaction can
// recompress a value in place without the reader needing to know which
// revisions were ever compacted.
const (
	revDataRaw        byte = 0
	revDataCompressed byte = 1
)

func marshalRevDataValue(rec revDataRecord) ([]byte, error) {
	encoded, err := encodeRevData(rec)
	if err != nil {
		return nil, err
	}
	return append([]byte{revDataRaw}, encoded...), nil
}

func unmarshalRevDataValue(stored []byte) (revDataRecord, error) {
	if len(stored) == 0 {
		return revDataRecord{}, dberr.JSON(errEmptyRevData)
	}
	marker, body := stored[0], stored[1:]
	switch marker {
	case revDataRaw:
		return decodeRevData(body)
	case revDataCompressed:
		raw, err := decompressRevData(body)
		if err != nil {
			return revDataRecord{}, err
		}
		return decodeRevData(raw)
	default:
		return revDataRecord{}, dberr.JSON(errEmptyRevData)
	}
}

// recompressRevDataValue takes an existing stored value and returns the
// xz-compressed form, used by Compact to tighten bodies it keeps.
func recompressRevDataValue(stored []byte) ([]byte, error) {
	if len(stored) == 0 {
		return nil, dberr.JSON(errEmptyRevData)
	}
	if stored[0] == revDataCompressed {
		return stored, nil
	}
	compressed, err := compressRevData(stored[1:])
	if err != nil {
		return nil, err
	}
	return append([]byte{revDataCompressed}, compressed...), nil
}
