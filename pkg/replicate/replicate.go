// Package replicate implements a checkpointed, resumable pull/push/sync
// loop driving any two adapter.Adapter implementations through their
// public contract alone. It owns no state beyond a checkpoint document
// stored via each side's local-docs facility.
package replicate

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"

	"github.com/gocouch/gocouch/pkg/adapter"
	"github.com/gocouch/gocouch/pkg/query"
)

// Filter narrows which changes are replicated. Exactly one of the
// fields is set; an empty Filter replicates everything.
type Filter struct {
	IDs       []string
	Selector  query.Selector
	Predicate func(adapter.ChangeEvent) bool
}

func (f Filter) fingerprint() string {
	b, _ := json.Marshal(struct {
		IDs      []string       `json:"ids,omitempty"`
		Selector query.Selector `json:"selector,omitempty"`
		Custom   bool           `json:"custom,omitempty"`
	}{IDs: f.IDs, Selector: f.Selector, Custom: f.Predicate != nil})
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func (f Filter) match(ev adapter.ChangeEvent) bool {
	if f.Predicate != nil {
		return f.Predicate(ev)
	}
	if len(f.IDs) > 0 {
		for _, id := range f.IDs {
			if id == ev.ID {
				return true
			}
		}
		return false
	}
	if f.Selector != nil {
		if ev.Doc == nil {
			// Replicate callers request IncludeDocs whenever a Selector is
			// set; a nil Doc here means the change is a tombstone with no
			// body to test, so it cannot match a selector.
			return false
		}
		return query.Match(f.Selector, ev.Doc.Body)
	}
	return true
}

// Options configures one replication run.
type Options struct {
	BatchSize int
	Filter    Filter
	Logger    *slog.Logger
}

func (o Options) batchSize() int {
	if o.BatchSize > 0 {
		return o.BatchSize
	}
	return 100
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// DocResult mirrors adapter.DocResult for the docs a replication run
// attempted to write at the target.
type DocResult = adapter.DocResult

// Result is the outcome of one pull or push run.
type Result struct {
	OK          bool
	LastSeq     adapter.Seq
	DocsWritten int
	Errors      []DocResult
	Err         error
}

// Report is the outcome of Sync: a push followed by a pull.
type Report struct {
	Push Result
	Pull Result
}

// checkpoint is persisted on both sides under _local/<replicationID>.
type checkpoint struct {
	ReplicationID string        `json:"replication_id"`
	SessionID     string        `json:"session_id"`
	LastSeq       adapter.Seq   `json:"last_seq"`
	History       []adapter.Seq `json:"history,omitempty"`
}

// ReplicationID derives a stable id from the source, target, and filter
// fingerprint, so the same pairing with the same filter always resumes
// the same checkpoint.
func ReplicationID(sourceID, targetID string, filter Filter) string {
	sum := sha256.Sum256([]byte(sourceID + "\x00" + targetID + "\x00" + filter.fingerprint()))
	return "repl-" + hex.EncodeToString(sum[:])[:32]
}

func localKey(replicationID string) string { return "_local/" + replicationID }
