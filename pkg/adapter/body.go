package adapter

import "encoding/json"

// metadataFields are the underscore-prefixed surfaces treated as
// metadata, never stored as part of Body.
var metadataFields = map[string]bool{
	"_id":          true,
	"_rev":         true,
	"_deleted":     true,
	"_attachments": true,
	"_revisions":   true,
	"_conflicts":   true,
}

// StripMetadata returns a copy of raw with every underscore-prefixed
// metadata field removed, ready to be stored as a document's Body.
func StripMetadata(raw Body) Body {
	out := make(Body, len(raw))
	for k, v := range raw {
		if metadataFields[k] {
			continue
		}
		out[k] = v
	}
	return out
}

// CanonicalBytes encodes body the way the storage layer hashes a
// revision: via encoding/json, which sorts map keys. This departs from
// CouchDB's own "hash the bytes as received" behavior — Go's JSON
// decoder already discards source field order when it builds
// a Body, so there is no surviving order to preserve by the time a
// revision reaches this call. What the testable properties actually
// require is determinism, which alphabetical key order still gives.
func CanonicalBytes(body Body) []byte {
	b, err := json.Marshal(body)
	if err != nil {
		// Body only ever holds values produced by json.Unmarshal into
		// interface{}, which always re-marshals.
		panic("adapter: body is not marshalable: " + err.Error())
	}
	return b
}

// ToWire combines a decoded document body with its _id/_rev/_deleted
// metadata for the wire form Get/BulkGet return.
func (d *Document) ToWire() map[string]interface{} {
	out := make(map[string]interface{}, len(d.Body)+4)
	for k, v := range d.Body {
		out[k] = v
	}
	out["_id"] = d.ID
	if !d.Rev.IsZero() {
		out["_rev"] = d.Rev.String()
	}
	if d.Deleted {
		out["_deleted"] = true
	}
	if d.Revisions != nil {
		out["_revisions"] = map[string]interface{}{
			"start": d.Revisions.Start,
			"ids":   d.Revisions.IDs,
		}
	}
	if len(d.Conflicts) > 0 {
		conflicts := make([]string, len(d.Conflicts))
		for i, c := range d.Conflicts {
			conflicts[i] = c.String()
		}
		out["_conflicts"] = conflicts
	}
	return out
}
