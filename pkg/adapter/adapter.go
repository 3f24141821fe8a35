// Package adapter defines the capability contract every storage backend
// implements: memory (pkg/memadapter), embedded KV (pkg/kvadapter), and
// remote CouchDB over HTTP (pkg/httpadapter). The replicator (pkg/replicate)
// and the facade drive any two adapters through this contract alone.
package adapter

import (
	"context"
	"strconv"

	"github.com/gocouch/gocouch/pkg/revision"
)

// Body is a document's content keyed by field name, decoded the way
// encoding/json decodes into interface{}. Underscore-prefixed metadata
// fields are never present in a Body; they are carried on Document
// itself and re-synthesized on the way out.
type Body map[string]interface{}

// Seq is a changes-feed sequence value. Embedded and memory adapters use
// Num; the HTTP adapter carries CouchDB's opaque string sequences in Str
// unchanged, since they are not required to be numeric or comparable
// across servers.
type Seq struct {
	Num int64
	Str string
}

// NumSeq builds a numeric Seq.
func NumSeq(n int64) Seq { return Seq{Num: n} }

// StrSeq builds an opaque string Seq, as returned by a remote server.
func StrSeq(s string) Seq { return Seq{Str: s} }

// String renders the sequence for wire/display purposes.
func (s Seq) String() string {
	if s.Str != "" {
		return s.Str
	}
	return strconv.FormatInt(s.Num, 10)
}

// Less orders two Seq values. String sequences compare lexically, which
// is only meaningful between sequences issued by the same server.
func (s Seq) Less(other Seq) bool {
	if s.Str != "" || other.Str != "" {
		return s.Str < other.Str
	}
	return s.Num < other.Num
}

// Document is one stored document as seen through the adapter contract:
// the id and revision plus its metadata surfaces (conflicts, deleted,
// revision history).
type Document struct {
	ID          string
	Rev         revision.Revision
	Deleted     bool
	Body        Body
	Conflicts   []revision.Revision  // populated when GetOptions.Conflicts
	Revisions   *RevisionsInfo       // populated when GetOptions.Revs
	OpenRevs    []OpenRevResult      // populated when GetOptions.OpenRevs is set
}

// RevisionsInfo is the `_revisions` surface: ancestry hashes, leaf-first,
// paired with the leaf's generation.
type RevisionsInfo struct {
	Start int64
	IDs   []string // hash-only, leaf first
}

// OpenRevResult is one branch returned when a Get targets multiple open
// revisions.
type OpenRevResult struct {
	OK  *Document
	Err error
}

// GetOptions controls Get.
type GetOptions struct {
	Rev         revision.Revision // zero means "the winner"
	Conflicts   bool
	Revs        bool
	OpenRevs    OpenRevsSelector
	Attachments bool
}

// OpenRevsSelector picks which branches Get should return.
type OpenRevsSelector struct {
	All  bool
	Revs []revision.Revision
}

// PutResponse is the result of a single successful write.
type PutResponse struct {
	ID  string
	Rev revision.Revision
}

// DocResult is one entry of a BulkDocs response, preserving input order.
type DocResult struct {
	ID      string
	Rev     revision.Revision
	OK      bool
	Error   string // e.g. "conflict"
	Reason  string
}

// BulkDocsOptions controls BulkDocs.
type BulkDocsOptions struct {
	// NewEdits defaults to true: _rev is validated against the current
	// winner and a new revision is assigned. False accepts the supplied
	// revision unconditionally and honors _revisions ancestry; this is
	// the replication write path.
	NewEdits *bool
}

// EffectiveNewEdits reports the effective NewEdits value (true when unset).
func (o BulkDocsOptions) EffectiveNewEdits() bool {
	return o.NewEdits == nil || *o.NewEdits
}

// AllDocsOptions controls AllDocs.
type AllDocsOptions struct {
	StartKey     string
	EndKey       string
	HasStartKey  bool
	HasEndKey    bool
	InclusiveEnd bool
	Descending   bool
	Skip         int
	Limit        int
	IncludeDocs  bool
	Keys         []string // explicit id list; overrides the range when set
}

// AllDocsRow is one row of an AllDocs response.
type AllDocsRow struct {
	ID  string
	Rev revision.Revision
	Doc *Document // set when IncludeDocs
}

// AllDocsResponse is the full result of AllDocs.
type AllDocsResponse struct {
	TotalRows int
	Offset    int
	Rows      []AllDocsRow
}

// DbInfo is the result of Info.
type DbInfo struct {
	Name      string
	DocCount  int64
	UpdateSeq Seq
}

// ChangesOptions controls Changes.
type ChangesOptions struct {
	Since       Seq
	Limit       int
	IncludeDocs bool
	Descending  bool
}

// ChangeRev names one revision touched at a change entry.
type ChangeRev struct {
	Rev revision.Revision
}

// ChangeEvent is one entry of a Changes response.
type ChangeEvent struct {
	Seq     Seq
	ID      string
	Changes []ChangeRev
	Deleted bool
	Doc     *Document // set when IncludeDocs
}

// ChangesResponse is the full result of Changes.
type ChangesResponse struct {
	Results  []ChangeEvent
	LastSeq  Seq
}

// BulkGetRequest names one document (and optionally one revision) to
// fetch via BulkGet.
type BulkGetRequest struct {
	ID  string
	Rev revision.Revision // zero means "the winner"
}

// BulkGetResult is one outcome of BulkGet, mirroring CouchDB's
// _bulk_get response shape: either docs (one per open revision matched)
// or an error.
type BulkGetResult struct {
	ID    string
	Docs  []BulkGetDoc
	Error *BulkGetError
}

// BulkGetDoc wraps one successfully fetched revision.
type BulkGetDoc struct {
	OK *Document
}

// BulkGetError reports a failed lookup within a BulkGet batch.
type BulkGetError struct {
	Rev    revision.Revision
	Error  string
	Reason string
}

// RevsDiffRequest maps a document id to the revisions the caller wants
// to know about.
type RevsDiffRequest map[string][]revision.Revision

// RevsDiffResult is the answer for one document: which of the asked-for
// revisions are missing locally, plus ancestors that might speed up a
// subsequent replication (revisions this store has that are ancestors
// of a missing rev, letting the sender avoid resending full bodies).
type RevsDiffResult struct {
	Missing            []revision.Revision
	PossibleAncestors  []revision.Revision
}

// RevsDiffResponse maps document id to its RevsDiffResult.
type RevsDiffResponse map[string]RevsDiffResult

// Adapter is the capability contract every storage backend implements.
// All operations are safe for concurrent use; each backend owns its own
// internal synchronization.
type Adapter interface {
	Info(ctx context.Context) (DbInfo, error)
	Get(ctx context.Context, id string, opts GetOptions) (*Document, error)
	BulkDocs(ctx context.Context, docs []*Document, opts BulkDocsOptions) ([]DocResult, error)
	AllDocs(ctx context.Context, opts AllDocsOptions) (AllDocsResponse, error)
	Changes(ctx context.Context, opts ChangesOptions) (ChangesResponse, error)
	RevsDiff(ctx context.Context, req RevsDiffRequest) (RevsDiffResponse, error)
	BulkGet(ctx context.Context, reqs []BulkGetRequest) ([]BulkGetResult, error)

	GetLocal(ctx context.Context, id string) (Body, error)
	PutLocal(ctx context.Context, id string, body Body) error
	RemoveLocal(ctx context.Context, id string) error

	Compact(ctx context.Context) error
	Destroy(ctx context.Context) error
}
