// Package revision implements CouchDB's "{pos}-{hash}" revision identifier:
// parsing, formatting, and the deterministic hash derived from an edit.
package revision

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/gocouch/gocouch/pkg/dberr"
)

// Revision names one edit of a document: a generation number and a hex
// digest of that edit's content. Equality and ordering are structural,
// pos first, then hash.
type Revision struct {
	Pos  int64
	Hash string
}

// New builds a Revision without validating Hash; callers that parse
// untrusted input should use Parse instead.
func New(pos int64, hash string) Revision {
	return Revision{Pos: pos, Hash: hash}
}

// String renders the wire form "{pos}-{hash}".
func (r Revision) String() string {
	return fmt.Sprintf("%d-%s", r.Pos, r.Hash)
}

// IsZero reports whether r is the unset Revision.
func (r Revision) IsZero() bool {
	return r.Pos == 0 && r.Hash == ""
}

// Compare orders revisions by pos, then by hash, matching CouchDB's
// winner-selection tie-break. It returns <0, 0, or >0.
func (r Revision) Compare(other Revision) int {
	if r.Pos != other.Pos {
		if r.Pos < other.Pos {
			return -1
		}
		return 1
	}
	return strings.Compare(r.Hash, other.Hash)
}

// Less reports whether r sorts before other.
func (r Revision) Less(other Revision) bool {
	return r.Compare(other) < 0
}

// Parse decodes a wire-form revision string. It fails with dberr.InvalidRev
// when the string lacks a dash, the position is not a positive integer, or
// the hash is empty.
func Parse(s string) (Revision, error) {
	dash := strings.IndexByte(s, '-')
	if dash < 0 {
		return Revision{}, dberr.InvalidRev(s)
	}
	posStr, hash := s[:dash], s[dash+1:]
	pos, err := strconv.ParseInt(posStr, 10, 64)
	if err != nil || pos <= 0 {
		return Revision{}, dberr.InvalidRev(s)
	}
	if hash == "" {
		return Revision{}, dberr.InvalidRev(s)
	}
	return Revision{Pos: pos, Hash: hash}, nil
}

// Hash computes the deterministic revision hash from the previous
// revision's hash (empty string for a new document), the deleted flag, and
// the canonical JSON encoding of the new body.
//
// hex(md5( prevHash || ("1" if deleted else "0") || canonicalBody ))
//
// canonicalBody must already be serialized using the caller's chosen field
// order; this package does not reorder keys, matching CouchDB's own
// behavior of hashing the body as received.
func Hash(prevHash string, deleted bool, canonicalBody []byte) string {
	h := md5.New()
	h.Write([]byte(prevHash))
	if deleted {
		h.Write([]byte("1"))
	} else {
		h.Write([]byte("0"))
	}
	h.Write(canonicalBody)
	return hex.EncodeToString(h.Sum(nil))
}

// Next computes the revision that follows prev for an edit with the given
// deleted flag and canonical body.
func Next(prev Revision, deleted bool, canonicalBody []byte) Revision {
	return Revision{
		Pos:  prev.Pos + 1,
		Hash: Hash(prev.Hash, deleted, canonicalBody),
	}
}
