package replicate

import (
	"context"
	"encoding/json"

	"github.com/gocouch/gocouch/pkg/adapter"
)

func encodeCheckpoint(cp checkpoint) adapter.Body {
	b, _ := json.Marshal(cp)
	var m map[string]interface{}
	_ = json.Unmarshal(b, &m)
	return m
}

func decodeCheckpoint(body adapter.Body, out *checkpoint) bool {
	b, err := json.Marshal(body)
	if err != nil {
		return false
	}
	return json.Unmarshal(b, out) == nil
}

func loadCheckpoint(ctx context.Context, source, target adapter.Adapter, replicationID string) (adapter.Seq, string) {
	var srcCP, dstCP checkpoint
	srcOK := readCheckpoint(ctx, source, replicationID, &srcCP)
	dstOK := readCheckpoint(ctx, target, replicationID, &dstCP)

	if srcOK && dstOK && srcCP.LastSeq == dstCP.LastSeq {
		return srcCP.LastSeq, srcCP.SessionID
	}
	return adapter.NumSeq(0), newSessionID()
}

func readCheckpoint(ctx context.Context, a adapter.Adapter, replicationID string, out *checkpoint) bool {
	body, err := a.GetLocal(ctx, localKey(replicationID))
	if err != nil {
		return false
	}
	return decodeCheckpoint(body, out)
}

func persistCheckpoint(ctx context.Context, source, target adapter.Adapter, replicationID, sessionID string, seq adapter.Seq) {
	cp := checkpoint{ReplicationID: replicationID, SessionID: sessionID, LastSeq: seq}
	body := encodeCheckpoint(cp)
	_ = source.PutLocal(ctx, localKey(replicationID), body)
	_ = target.PutLocal(ctx, localKey(replicationID), body)
}
