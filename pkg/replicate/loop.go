package replicate

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/gocouch/gocouch/pkg/adapter"
	"github.com/gocouch/gocouch/pkg/revision"
)

// Replicate drives one direction: every change on source not yet known
// to target is fetched and written to target, in batches, resuming from
// a checkpoint stored under local docs on both sides.
func Replicate(ctx context.Context, source adapter.Adapter, sourceID string, target adapter.Adapter, targetID string, opts Options) Result {
	log := opts.logger()
	replicationID := ReplicationID(sourceID, targetID, opts.Filter)

	since, sessionID := loadCheckpoint(ctx, source, target, replicationID)
	result := Result{OK: true, LastSeq: since}

	for {
		if err := ctx.Err(); err != nil {
			result.OK, result.Err = false, err
			return result
		}

		changes, err := source.Changes(ctx, adapter.ChangesOptions{
			Since:       since,
			Limit:       opts.batchSize(),
			IncludeDocs: opts.Filter.Selector != nil,
		})
		if err != nil {
			result.OK, result.Err = false, err
			log.Error("replication: fetching changes failed", "replication_id", replicationID, "error", err)
			return result
		}
		if len(changes.Results) == 0 {
			break
		}

		events := filterEvents(changes.Results, opts.Filter)
		if len(events) > 0 {
			if !processBatch(ctx, source, target, events, &result, log, replicationID) {
				// processBatch already set result.OK=false; the
				// checkpoint must not advance past a failed batch.
				return result
			}
		}

		since = changes.LastSeq
		result.LastSeq = since
		persistCheckpoint(ctx, source, target, replicationID, sessionID, since)
	}

	return result
}

// processBatch runs revs_diff + bulk_get + bulk_docs(new_edits=false) for
// one batch of changes. It returns false when the run must terminate:
// any adapter error from revs_diff, bulk_get, or bulk_docs aborts the
// run so the checkpoint is not advanced past a batch that failed to
// replicate — the caller retries the same since on the next run. Only
// per-document write failures inside a successful bulk_docs call are
// collected into result.Errors without stopping the run.
func processBatch(ctx context.Context, source, target adapter.Adapter, events []adapter.ChangeEvent, result *Result, log logger, replicationID string) bool {
	diffReq := make(adapter.RevsDiffRequest, len(events))
	for _, ev := range events {
		revs := make([]revision.Revision, len(ev.Changes))
		for i, c := range ev.Changes {
			revs[i] = c.Rev
		}
		diffReq[ev.ID] = revs
	}

	diff, err := target.RevsDiff(ctx, diffReq)
	if err != nil {
		result.OK, result.Err = false, err
		log.Error("replication: revs_diff failed", "replication_id", replicationID, "error", err)
		return false
	}

	var getReqs []adapter.BulkGetRequest
	for id, d := range diff {
		for _, rev := range d.Missing {
			getReqs = append(getReqs, adapter.BulkGetRequest{ID: id, Rev: rev})
		}
	}
	if len(getReqs) == 0 {
		return true
	}

	bulkGetResults, err := source.BulkGet(ctx, getReqs)
	if err != nil {
		result.OK, result.Err = false, err
		log.Error("replication: bulk_get failed", "replication_id", replicationID, "error", err)
		return false
	}

	var docs []*adapter.Document
	for _, r := range bulkGetResults {
		for _, d := range r.Docs {
			if d.OK != nil {
				docs = append(docs, d.OK)
			}
		}
	}
	if len(docs) == 0 {
		return true
	}

	falseFlag := false
	writeResults, err := target.BulkDocs(ctx, docs, adapter.BulkDocsOptions{NewEdits: &falseFlag})
	if err != nil {
		result.OK, result.Err = false, err
		log.Error("replication: bulk_docs failed", "replication_id", replicationID, "error", err)
		return false
	}

	for _, wr := range writeResults {
		if wr.OK {
			result.DocsWritten++
		} else {
			result.Errors = append(result.Errors, wr)
		}
	}
	return true
}

// logger is the subset of *slog.Logger used here, kept narrow so tests
// can pass any compatible logger without importing log/slog directly.
type logger interface {
	Error(msg string, args ...any)
}

func filterEvents(events []adapter.ChangeEvent, f Filter) []adapter.ChangeEvent {
	if f.IDs == nil && f.Selector == nil && f.Predicate == nil {
		return events
	}
	out := make([]adapter.ChangeEvent, 0, len(events))
	for _, ev := range events {
		if f.match(ev) {
			out = append(out, ev)
		}
	}
	return out
}

func newSessionID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
